package recovery

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/myshdb/clusteradm/internal/grprobe"
	"github.com/myshdb/clusteradm/internal/metadata"
	"github.com/myshdb/clusteradm/internal/mysqlsess"
)

func newSessionPair(t *testing.T) (*mysqlsess.Session, sqlmock.Sqlmock, *mysqlsess.Session, sqlmock.Sqlmock) {
	t.Helper()
	donorDB, donorMock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	joinerDB, joinerMock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { donorDB.Close(); joinerDB.Close() })
	return mysqlsess.NewSessionForTesting(donorDB), donorMock, mysqlsess.NewSessionForTesting(joinerDB), joinerMock
}

// donorOnlyGroup is a group whose single ONLINE member is the donor itself,
// so Choose compares the joiner against the donor session only.
func donorOnlyGroup() *grprobe.Snapshot {
	return &grprobe.Snapshot{Members: []grprobe.MemberView{
		{UUID: "donor-uuid", Host: "db1", Port: 3306, State: metadata.MemberOnline},
	}}
}

func TestChoose_ExplicitRequestHonored(t *testing.T) {
	donor, _, joiner, joinerMock := newSessionPair(t)
	joinerMock.ExpectQuery("SELECT PLUGIN_STATUS").
		WillReturnRows(sqlmock.NewRows([]string{"PLUGIN_STATUS"}).AddRow("ACTIVE"))
	d, err := Choose(context.Background(), nil, donor, joiner, ChooseOptions{Requested: metadata.RecoveryClone})
	if err != nil {
		t.Fatalf("Choose: %v", err)
	}
	if d.Method != metadata.RecoveryClone {
		t.Errorf("Method = %v, want CLONE", d.Method)
	}
}

func TestChoose_ExplicitCloneRejectedWhenDisabled(t *testing.T) {
	donor, _, joiner, _ := newSessionPair(t)
	_, err := Choose(context.Background(), nil, donor, joiner, ChooseOptions{Requested: metadata.RecoveryClone, CloneDisabled: true})
	if err == nil {
		t.Fatal("expected error requesting clone while disabled")
	}
}

func TestChoose_PrefersIncrementalWhenSubset(t *testing.T) {
	donor, donorMock, joiner, joinerMock := newSessionPair(t)

	donorMock.ExpectQuery("SELECT @@server_uuid").
		WillReturnRows(sqlmock.NewRows([]string{"uuid"}).AddRow("donor-uuid"))
	donorMock.ExpectQuery("SELECT @@GLOBAL.GTID_EXECUTED").
		WillReturnRows(sqlmock.NewRows([]string{"gtid"}).AddRow("aaaa:1-9"))
	donorMock.ExpectQuery("SELECT @@GLOBAL.GTID_PURGED").
		WillReturnRows(sqlmock.NewRows([]string{"gtid"}).AddRow(""))
	joinerMock.ExpectQuery("SELECT @@GLOBAL.GTID_EXECUTED").
		WillReturnRows(sqlmock.NewRows([]string{"gtid"}).AddRow("aaaa:1-5"))
	donorMock.ExpectQuery("SELECT GTID_SUBTRACT").
		WithArgs("aaaa:1-5", "aaaa:1-9").
		WillReturnRows(sqlmock.NewRows([]string{"gtid"}).AddRow(""))
	donorMock.ExpectQuery("SELECT GTID_SUBTRACT").
		WithArgs("aaaa:1-9", "aaaa:1-5").
		WillReturnRows(sqlmock.NewRows([]string{"gtid"}).AddRow("aaaa:6-9"))
	donorMock.ExpectQuery("SELECT GTID_SUBTRACT").
		WithArgs("aaaa:1-9", "").
		WillReturnRows(sqlmock.NewRows([]string{"gtid"}).AddRow("aaaa:1-9"))
	donorMock.ExpectQuery("SELECT GTID_SUBSET").
		WithArgs("aaaa:6-9", "aaaa:1-9").
		WillReturnRows(sqlmock.NewRows([]string{"subset"}).AddRow(1))

	d, err := Choose(context.Background(), donorOnlyGroup(), donor, joiner, ChooseOptions{})
	if err != nil {
		t.Fatalf("Choose: %v", err)
	}
	if d.Method != metadata.RecoveryIncremental {
		t.Errorf("Method = %v, want INCREMENTAL", d.Method)
	}
}

func TestChoose_FallsBackToCloneWhenIrrecoverableAndAvailable(t *testing.T) {
	donor, donorMock, joiner, joinerMock := newSessionPair(t)

	donorMock.ExpectQuery("SELECT @@server_uuid").
		WillReturnRows(sqlmock.NewRows([]string{"uuid"}).AddRow("donor-uuid"))
	donorMock.ExpectQuery("SELECT @@GLOBAL.GTID_EXECUTED").
		WillReturnRows(sqlmock.NewRows([]string{"gtid"}).AddRow("aaaa:1-9"))
	donorMock.ExpectQuery("SELECT @@GLOBAL.GTID_PURGED").
		WillReturnRows(sqlmock.NewRows([]string{"gtid"}).AddRow("aaaa:1-5"))
	joinerMock.ExpectQuery("SELECT @@GLOBAL.GTID_EXECUTED").
		WillReturnRows(sqlmock.NewRows([]string{"gtid"}).AddRow("aaaa:1-3"))
	donorMock.ExpectQuery("SELECT GTID_SUBTRACT").
		WithArgs("aaaa:1-3", "aaaa:1-9").
		WillReturnRows(sqlmock.NewRows([]string{"gtid"}).AddRow(""))
	donorMock.ExpectQuery("SELECT GTID_SUBTRACT").
		WithArgs("aaaa:1-9", "aaaa:1-3").
		WillReturnRows(sqlmock.NewRows([]string{"gtid"}).AddRow("aaaa:4-9"))
	donorMock.ExpectQuery("SELECT GTID_SUBTRACT").
		WithArgs("aaaa:1-9", "aaaa:1-5").
		WillReturnRows(sqlmock.NewRows([]string{"gtid"}).AddRow("aaaa:6-9"))
	donorMock.ExpectQuery("SELECT GTID_SUBSET").
		WithArgs("aaaa:4-9", "aaaa:6-9").
		WillReturnRows(sqlmock.NewRows([]string{"subset"}).AddRow(0))
	joinerMock.ExpectQuery("SELECT PLUGIN_STATUS").
		WillReturnRows(sqlmock.NewRows([]string{"PLUGIN_STATUS"}).AddRow("ACTIVE"))

	d, err := Choose(context.Background(), donorOnlyGroup(), donor, joiner, ChooseOptions{})
	if err != nil {
		t.Fatalf("Choose: %v", err)
	}
	if d.Method != metadata.RecoveryClone {
		t.Errorf("Method = %v, want CLONE", d.Method)
	}
}

func TestGenerateAccountName(t *testing.T) {
	if got := GenerateAccountName(1001); got != "mysql_innodb_cluster_1001" {
		t.Errorf("GenerateAccountName() = %q", got)
	}
}
