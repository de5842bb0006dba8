package precondition

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/myshdb/clusteradm/internal/dbaerr"
	"github.com/myshdb/clusteradm/internal/metadata"
	"github.com/myshdb/clusteradm/internal/mysqlsess"
)

func expectVersionAndGRQueries(mock sqlmock.Sqlmock, version string, groupName string) {
	mock.ExpectQuery(`SELECT VERSION\(\)`).
		WillReturnRows(sqlmock.NewRows([]string{"VERSION()"}).AddRow(version))

	gnRows := sqlmock.NewRows([]string{"Variable_name", "Value"})
	if groupName != "" {
		gnRows.AddRow("group_replication_group_name", groupName)
	}
	mock.ExpectQuery("SHOW GLOBAL VARIABLES LIKE").WillReturnRows(gnRows)

	if groupName != "" {
		mock.ExpectQuery("SHOW GLOBAL VARIABLES LIKE").
			WillReturnRows(sqlmock.NewRows([]string{"Variable_name", "Value"}).AddRow("group_replication_single_primary_mode", "ON"))
		mock.ExpectQuery("SHOW GLOBAL STATUS LIKE").
			WillReturnRows(sqlmock.NewRows([]string{"Variable_name", "Value"}))
		mock.ExpectQuery("SELECT MEMBER_ID, MEMBER_HOST, MEMBER_PORT, MEMBER_STATE, MEMBER_ROLE, MEMBER_VERSION").
			WillReturnRows(sqlmock.NewRows([]string{"MEMBER_ID", "MEMBER_HOST", "MEMBER_PORT", "MEMBER_STATE", "MEMBER_ROLE", "MEMBER_VERSION"}).
				AddRow("u1", "a", 3306, "ONLINE", "PRIMARY", "8.0.34"))
	}
}

func TestCheck_RejectsUnsupportedVersion(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	sess := mysqlsess.NewSessionForTesting(db)

	expectVersionAndGRQueries(mock, "5.7.40", "")

	c := New(nil)
	err := c.Check(context.Background(), sess, CommandConditions{Command: "addInstance"}, 0)
	if err == nil {
		t.Fatal("expected error for unsupported version")
	}
	if !dbaerr.Is(err, dbaerr.CodeUnsupportedVersion) {
		t.Errorf("expected CodeUnsupportedVersion, got %v", err)
	}
}

func TestCheck_RejectsInstanceNotManagedWhenPrimaryRequired(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	sess := mysqlsess.NewSessionForTesting(db)
	store := metadata.New(sess)

	expectVersionAndGRQueries(mock, "8.0.34", "")

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM performance_schema.replication_connection_status").
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(0))
	mock.ExpectQuery("SELECT @@server_uuid").
		WillReturnRows(sqlmock.NewRows([]string{"@@server_uuid"}).AddRow("instance-uuid"))
	mock.ExpectQuery("SELECT member_id, cluster_id, uuid, endpoint, role, state, label, recovery_account_user, joined_at").
		WillReturnRows(sqlmock.NewRows([]string{"member_id", "cluster_id", "uuid", "endpoint", "role", "state", "label", "recovery_account_user", "joined_at"}))
	mock.ExpectQuery("SELECT SCHEMA_NAME FROM information_schema.SCHEMATA").
		WillReturnError(sql.ErrNoRows)

	c := New(store)
	err := c.Check(context.Background(), sess, CommandConditions{
		Command:             "setPrimaryInstance",
		InstanceConfigState: ConfigStateManagedInCluster,
		PrimaryRequired:     true,
	}, 0)
	if err == nil {
		t.Fatal("expected error for unmanaged instance")
	}
	if !dbaerr.Is(err, dbaerr.CodeInstanceNotManaged) {
		t.Errorf("expected CodeInstanceNotManaged, got %v", err)
	}
}

func TestCheck_PassesForOnlineManagedPrimary(t *testing.T) {
	db, mock, _ := sqlmock.New()
	defer db.Close()
	sess := mysqlsess.NewSessionForTesting(db)
	store := metadata.New(sess)

	expectVersionAndGRQueries(mock, "8.0.34", "group-uuid")

	mock.ExpectQuery("SELECT cluster_id, name, group_name, comm_stack, single_primary, cluster_set_id, is_primary_cluster, fenced, created_at").
		WillReturnRows(sqlmock.NewRows([]string{"cluster_id", "name", "group_name", "comm_stack", "single_primary", "cluster_set_id", "is_primary_cluster", "fenced", "created_at"}).
			AddRow(1, "prod", "group-uuid", "XCOM", true, nil, true, false, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	c := New(store)
	err := c.Check(context.Background(), sess, CommandConditions{
		Command:             "setPrimaryInstance",
		InstanceConfigState: ConfigStateManagedInCluster,
		PrimaryRequired:     true,
	}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCheckVersion_ClusterSetMinimum(t *testing.T) {
	v8026 := mustParse(t, "8.0.26")
	v8027 := mustParse(t, "8.0.27")

	if err := checkVersion(v8026, CommandConditions{RequireClusterSet: true}); err == nil {
		t.Error("expected 8.0.26 to fail the ClusterSet minimum version check")
	}
	if err := checkVersion(v8027, CommandConditions{RequireClusterSet: true}); err != nil {
		t.Errorf("expected 8.0.27 to satisfy the ClusterSet minimum version check, got %v", err)
	}
}

func mustParse(t *testing.T, raw string) mysqlsess.ServerVersion {
	t.Helper()
	v, err := mysqlsess.ParseVersion(raw)
	if err != nil {
		t.Fatalf("ParseVersion(%q): %v", raw, err)
	}
	return v
}

func TestErrorsIsUnwrap(t *testing.T) {
	base := errors.New("boom")
	wrapped := dbaerr.Wrap("op", dbaerr.CodeConnectionLost, base)
	if !errors.Is(wrapped, base) {
		t.Error("expected errors.Is to find the wrapped base error")
	}
}
