package sqlguard

import "testing"

func TestMustBeStatementKind(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		kind    Kind
		wantErr bool
	}{
		{"create user ok", "CREATE USER 'mysql_innodb_cluster_1001'@'10.0.0.5' IDENTIFIED BY 'x'", KindCreateUser, false},
		{"create user wrong kind", "DROP USER 'mysql_innodb_cluster_1001'@'10.0.0.5'", KindCreateUser, true},
		{"grant ok", "GRANT REPLICATION SLAVE ON *.* TO 'repl'@'%'", KindGrant, false},
		{"semicolon rejected", "CREATE USER 'a'@'b' IDENTIFIED BY 'x'; DROP TABLE t", KindCreateUser, true},
		{"change source ok", "CHANGE REPLICATION SOURCE TO SOURCE_HOST='a'", KindChangeSource, false},
		{"change source wrong prefix", "SELECT 1", KindChangeSource, true},
		{"start replica ok", "START REPLICA", KindStartReplica, false},
		{"not sql at all", "not even sql (((", KindCreateUser, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MustBeStatementKind(tt.sql, tt.kind)
			if tt.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestEscapeIdentifier(t *testing.T) {
	if got := EscapeIdentifier("my_cluster"); got != "`my_cluster`" {
		t.Errorf("EscapeIdentifier() = %q", got)
	}
	if got := EscapeIdentifier("weird`name"); got != "`weird``name`" {
		t.Errorf("EscapeIdentifier() = %q", got)
	}
}

func TestEscapeAccountHost(t *testing.T) {
	if _, err := EscapeAccountHost("10.0.0.%"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := EscapeAccountHost("a' OR '1'='1"); err == nil {
		t.Error("expected error for quote injection attempt")
	}
}
