package clusterset

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/myshdb/clusteradm/internal/dbaerr"
	"github.com/myshdb/clusteradm/internal/metadata"
	"github.com/myshdb/clusteradm/internal/mysqlsess"
)

func TestForcePrimaryCluster_RequiresAcknowledgement(t *testing.T) {
	setID := int64(1)
	cs := &metadata.ClusterSet{ID: setID, Name: "global"}
	newPrimary := &metadata.Cluster{ID: 2, Name: "r1", ClusterSetID: &setID}
	c := &Coordinator{}

	err := c.ForcePrimaryCluster(context.Background(), cs, newPrimary, false)
	if err == nil {
		t.Fatal("expected error when acknowledgeDataLoss is false")
	}
	if code, ok := dbaerr.CodeOf(err); !ok || code != dbaerr.CodeInvalidArgument {
		t.Errorf("CodeOf(err) = (%v, %v), want (CodeInvalidArgument, true)", code, ok)
	}
	if newPrimary.IsPrimaryCluster {
		t.Error("IsPrimaryCluster should not have been set on a rejected call")
	}
}

func TestForcePrimaryCluster_AcknowledgedSwitchesPrimary(t *testing.T) {
	setID := int64(1)
	cs := &metadata.ClusterSet{ID: setID, Name: "global"}
	newPrimary := &metadata.Cluster{ID: 2, Name: "r1", ClusterSetID: &setID}
	c := &Coordinator{}

	if err := c.ForcePrimaryCluster(context.Background(), cs, newPrimary, true); err != nil {
		t.Fatalf("ForcePrimaryCluster: %v", err)
	}
	if !newPrimary.IsPrimaryCluster {
		t.Error("expected newPrimary.IsPrimaryCluster to be set")
	}
	if cs.PrimaryClusterID != newPrimary.ID {
		t.Errorf("cs.PrimaryClusterID = %d, want %d", cs.PrimaryClusterID, newPrimary.ID)
	}
}

func TestForcePrimaryCluster_RejectsNonMember(t *testing.T) {
	cs := &metadata.ClusterSet{ID: 1, Name: "global"}
	other := int64(99)
	newPrimary := &metadata.Cluster{ID: 2, Name: "r1", ClusterSetID: &other}
	c := &Coordinator{}

	if err := c.ForcePrimaryCluster(context.Background(), cs, newPrimary, true); err == nil {
		t.Fatal("expected error for a cluster that belongs to a different cluster set")
	}
}

func TestForcePrimaryCluster_DiffersFromSetPrimaryCluster(t *testing.T) {
	setID := int64(1)
	cs := &metadata.ClusterSet{ID: setID, Name: "global"}
	newPrimary := &metadata.Cluster{ID: 2, Name: "r1", ClusterSetID: &setID}
	c := &Coordinator{}

	safeErr := c.SetPrimaryCluster(context.Background(), cs, newPrimary)
	unsafeErr := c.ForcePrimaryCluster(context.Background(), cs, newPrimary, false)

	if safeErr == nil && unsafeErr == nil {
		t.Fatal("SetPrimaryCluster and unacknowledged ForcePrimaryCluster should not both succeed")
	}
	if unsafeErr == nil {
		t.Error("ForcePrimaryCluster without acknowledgement must fail even though SetPrimaryCluster succeeds")
	}
}

func TestRemoveCluster_RejectsNonMember(t *testing.T) {
	replica := &metadata.Cluster{Name: "standalone"}
	c := &Coordinator{}
	if err := c.RemoveCluster(context.Background(), replica, nil, false); err == nil {
		t.Fatal("expected error removing a cluster that isn't in any cluster set")
	}
}

func TestRemoveCluster_StopsManagedChannel(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	sess := mysqlsess.NewSessionForTesting(db)

	setID := int64(1)
	replica := &metadata.Cluster{Name: "r1", ClusterSetID: &setID}

	mock.ExpectExec("STOP REPLICA FOR CHANNEL 'clusterset_replication'").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("RESET REPLICA ALL FOR CHANNEL 'clusterset_replication'").WillReturnResult(sqlmock.NewResult(0, 1))

	c := &Coordinator{}
	if err := c.RemoveCluster(context.Background(), replica, sess, false); err != nil {
		t.Fatalf("RemoveCluster: %v", err)
	}
	if replica.ClusterSetID != nil {
		t.Error("expected ClusterSetID to be cleared")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestFenceAllTraffic(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	sess := mysqlsess.NewSessionForTesting(db)

	mock.ExpectExec("SET GLOBAL offline_mode = ON, GLOBAL super_read_only = ON").WillReturnResult(sqlmock.NewResult(0, 1))

	if err := FenceAllTraffic(context.Background(), map[string]*mysqlsess.Session{"ep1": sess}); err != nil {
		t.Fatalf("FenceAllTraffic: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestFenceWritesAndUnfenceWrites(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	sess := mysqlsess.NewSessionForTesting(db)

	mock.ExpectExec("SET GLOBAL super_read_only = ON").WillReturnResult(sqlmock.NewResult(0, 1))
	if err := FenceWrites(context.Background(), map[string]*mysqlsess.Session{"ep1": sess}); err != nil {
		t.Fatalf("FenceWrites: %v", err)
	}

	mock.ExpectExec("SET GLOBAL super_read_only = OFF").WillReturnResult(sqlmock.NewResult(0, 1))
	if err := UnfenceWrites(context.Background(), map[string]*mysqlsess.Session{"ep1": sess}); err != nil {
		t.Fatalf("UnfenceWrites: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
