package clusterset

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/myshdb/clusteradm/internal/metadata"
	"github.com/myshdb/clusteradm/internal/mysqlsess"
)

func TestAddReplicaCluster_RejectsAlreadyMember(t *testing.T) {
	existing := int64(9)
	replica := &metadata.Cluster{Name: "r1", ClusterSetID: &existing}
	c := &Coordinator{}
	err := c.AddReplicaCluster(context.Background(), &metadata.ClusterSet{ID: 1}, replica, nil, "", ChannelCredentials{})
	if err == nil {
		t.Fatal("expected error for replica already in a cluster set")
	}
}

func TestConfigureManagedChannel(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	sess := mysqlsess.NewSessionForTesting(db)

	mock.ExpectExec("CHANGE REPLICATION SOURCE TO").
		WithArgs("primary.example.com:3306", "csuser", "cspass").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("START REPLICA FOR CHANNEL 'clusterset_replication'").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = ConfigureManagedChannel(context.Background(), sess, "primary.example.com:3306", ChannelCredentials{User: "csuser", Password: "cspass"})
	if err != nil {
		t.Fatalf("ConfigureManagedChannel: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestStatus_UnreachablePrimary(t *testing.T) {
	cs := &metadata.ClusterSet{Name: "global"}
	status, err := Status(context.Background(), cs, map[string]*mysqlsess.Session{"r2": nil})
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Clusters["r2"].State != GlobalUnreachable {
		t.Errorf("State = %v, want UNREACHABLE", status.Clusters["r2"].State)
	}
}
