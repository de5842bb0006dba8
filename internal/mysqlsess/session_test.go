package mysqlsess

import "testing"

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ConnectionConfig
		want    string
		wantErr bool
	}{
		{
			name: "TCP connection with all fields",
			cfg: ConnectionConfig{
				Host:     "localhost",
				Port:     3306,
				User:     "root",
				Password: "secret",
				Database: "mydb",
			},
			want: "root:secret@tcp(localhost:3306)/mydb?parseTime=true&interpolateParams=true&multiStatements=false",
		},
		{
			name: "TCP connection without database",
			cfg: ConnectionConfig{
				Host:     "10.0.0.5",
				Port:     3307,
				User:     "admin",
				Password: "pw",
			},
			want: "admin:pw@tcp(10.0.0.5:3307)/information_schema?parseTime=true&interpolateParams=true&multiStatements=false",
		},
		{
			name: "Unix socket connection",
			cfg: ConnectionConfig{
				Socket:   "/var/run/mysqld/mysqld.sock",
				User:     "app",
				Password: "apppass",
				Database: "mysql_innodb_cluster_metadata",
			},
			want: "app:apppass@unix(/var/run/mysqld/mysqld.sock)/mysql_innodb_cluster_metadata?parseTime=true&interpolateParams=true&multiStatements=false",
		},
		{
			name: "TLS required",
			cfg: ConnectionConfig{
				Host:     "db1.example.com",
				Port:     3306,
				User:     "admin",
				Password: "pass",
				Database: "prod",
				TLSMode:  "required",
			},
			want: "admin:pass@tcp(db1.example.com:3306)/prod?parseTime=true&interpolateParams=true&multiStatements=false&tls=true",
		},
		{
			name: "invalid TLS mode",
			cfg: ConnectionConfig{
				Host:    "localhost",
				Port:    3306,
				TLSMode: "bogus",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildDSN(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("buildDSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConnectionConfig_Endpoint(t *testing.T) {
	if got := (ConnectionConfig{Host: "a", Port: 3306}).Endpoint(); got != "a:3306" {
		t.Errorf("Endpoint() = %q", got)
	}
	if got := (ConnectionConfig{Socket: "/tmp/x.sock", Host: "a", Port: 3306}).Endpoint(); got != "/tmp/x.sock" {
		t.Errorf("Endpoint() with socket = %q", got)
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		raw              string
		wantFlavor       string
		wantMySQLStack   bool
		wantIPv6Local    bool
	}{
		{"8.0.27-log", "mysql", true, true},
		{"8.0.26", "mysql", false, true},
		{"8.0.13", "mysql", false, false},
		{"8.0.35-27-Percona Server", "percona", true, true},
	}
	for _, tt := range tests {
		v, err := ParseVersion(tt.raw)
		if err != nil {
			t.Fatalf("ParseVersion(%q): %v", tt.raw, err)
		}
		if v.Flavor != tt.wantFlavor {
			t.Errorf("ParseVersion(%q).Flavor = %q, want %q", tt.raw, v.Flavor, tt.wantFlavor)
		}
		if v.SupportsMySQLCommStack() != tt.wantMySQLStack {
			t.Errorf("ParseVersion(%q).SupportsMySQLCommStack() = %v, want %v", tt.raw, v.SupportsMySQLCommStack(), tt.wantMySQLStack)
		}
		if v.SupportsIPv6LocalAddress() != tt.wantIPv6Local {
			t.Errorf("ParseVersion(%q).SupportsIPv6LocalAddress() = %v, want %v", tt.raw, v.SupportsIPv6LocalAddress(), tt.wantIPv6Local)
		}
	}
}

func TestServerVersion_AtLeastAtMost(t *testing.T) {
	v := ServerVersion{Major: 8, Minor: 0, Patch: 27}
	if !v.AtLeast(8, 0, 27) || !v.AtLeast(8, 0, 26) || v.AtLeast(8, 0, 28) {
		t.Error("AtLeast boundary check failed")
	}
	if !v.AtMost(8, 0, 27) || !v.AtMost(8, 1, 0) || v.AtMost(8, 0, 26) {
		t.Error("AtMost boundary check failed")
	}
}
