package recovery

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/myshdb/clusteradm/internal/mysqlsess"
)

func TestCreateReplicationUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	sess := mysqlsess.NewSessionForTesting(db)

	mock.ExpectExec("CREATE USER 'mysql_innodb_cluster_1001'@'%' IDENTIFIED BY ?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("GRANT REPLICATION SLAVE, BACKUP_ADMIN, CLONE_ADMIN ON \\*\\.\\* TO 'mysql_innodb_cluster_1001'@'%'").
		WillReturnResult(sqlmock.NewResult(0, 1))

	m := NewAccountManager(nil)
	creds, err := m.CreateReplicationUser(context.Background(), sess, "mysql_innodb_cluster_1001", "%")
	if err != nil {
		t.Fatalf("CreateReplicationUser: %v", err)
	}
	if creds.User != "mysql_innodb_cluster_1001" || creds.Password == "" {
		t.Errorf("unexpected credentials: %+v", creds)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateReplicationUser_RejectsHostInjection(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	sess := mysqlsess.NewSessionForTesting(db)

	m := NewAccountManager(nil)
	_, err = m.CreateReplicationUser(context.Background(), sess, "attacker", "a' OR '1'='1")
	if err == nil {
		t.Fatal("expected error for host containing a quote")
	}
}

func TestCleanReplicationUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	sess := mysqlsess.NewSessionForTesting(db)

	mock.ExpectExec("DROP USER IF EXISTS 'mysql_innodb_cluster_1001'@'%'").
		WillReturnResult(sqlmock.NewResult(0, 1))

	m := NewAccountManager(nil)
	if err := m.CleanReplicationUser(context.Background(), sess, "mysql_innodb_cluster_1001", "%"); err != nil {
		t.Fatalf("CleanReplicationUser: %v", err)
	}
}
