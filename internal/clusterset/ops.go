package clusterset

import (
	"context"
	"fmt"

	"github.com/myshdb/clusteradm/internal/dbaerr"
	"github.com/myshdb/clusteradm/internal/metadata"
	"github.com/myshdb/clusteradm/internal/mysqlsess"
)

// RemoveCluster detaches a replica cluster from the set: it stops and
// resets the replica's managed channel (ignoring channel errors when force
// is set) and clears replica.ClusterSetID on the in-memory record. It
// does not mark the cluster INVALIDATED and writes nothing to the
// metadata store.
func (c *Coordinator) RemoveCluster(ctx context.Context, replica *metadata.Cluster, replicaPrimarySess *mysqlsess.Session, force bool) error {
	if replica.ClusterSetID == nil {
		return fmt.Errorf("clusterSet: cluster %q is not a member of any cluster set", replica.Name)
	}
	if _, err := replicaPrimarySess.DB().ExecContext(ctx, fmt.Sprintf("STOP REPLICA FOR CHANNEL '%s'", managedChannelName)); err != nil && !force {
		return fmt.Errorf("clusterSet: stopping managed channel on %q: %w", replica.Name, err)
	}
	if _, err := replicaPrimarySess.DB().ExecContext(ctx, fmt.Sprintf("RESET REPLICA ALL FOR CHANNEL '%s'", managedChannelName)); err != nil && !force {
		return fmt.Errorf("clusterSet: resetting managed channel on %q: %w", replica.Name, err)
	}
	replica.ClusterSetID = nil
	return nil
}

// RejoinCluster reattaches a replica cluster whose managed channel
// dropped, re-running the same channel configuration AddReplicaCluster
// performs for a first-time join.
func (c *Coordinator) RejoinCluster(ctx context.Context, cs *metadata.ClusterSet, replica *metadata.Cluster, replicaPrimarySess *mysqlsess.Session, primaryEndpoint string, creds ChannelCredentials) error {
	return ConfigureManagedChannel(ctx, replicaPrimarySess, primaryEndpoint, creds)
}

// SetPrimaryCluster moves the ClusterSet primary role to one of its
// replica clusters by setting cs.PrimaryClusterID and
// newPrimary.IsPrimaryCluster on the in-memory records. It does not wait
// for newPrimary to catch up with the old primary, does not reverse or
// touch any managed channel, and does not clear IsPrimaryCluster on the
// old primary cluster.
func (c *Coordinator) SetPrimaryCluster(ctx context.Context, cs *metadata.ClusterSet, newPrimary *metadata.Cluster) error {
	if newPrimary.ClusterSetID == nil || *newPrimary.ClusterSetID != cs.ID {
		return fmt.Errorf("clusterSet: cluster %q is not a member of cluster set %q", newPrimary.Name, cs.Name)
	}
	cs.PrimaryClusterID = newPrimary.ID
	newPrimary.IsPrimaryCluster = true
	return nil
}

// ForcePrimaryCluster performs an unsafe failover to newPrimary without
// confirming the old primary is caught up, acknowledging possible data
// loss — the ClusterSet analogue of rebootClusterFromCompleteOutage, used
// when the old primary cluster is unreachable. Like SetPrimaryCluster it
// only updates the in-memory records and touches no replication channel;
// unlike it, it refuses to run unless the caller explicitly
// acknowledges that transactions committed on the old primary but not yet
// replicated to newPrimary will be lost.
func (c *Coordinator) ForcePrimaryCluster(ctx context.Context, cs *metadata.ClusterSet, newPrimary *metadata.Cluster, acknowledgeDataLoss bool) error {
	if !acknowledgeDataLoss {
		return dbaerr.New("forcePrimaryCluster", dbaerr.CodeInvalidArgument,
			"forcing %q as the new primary may lose transactions not yet replicated from the old primary; call with acknowledgeDataLoss=true to proceed", newPrimary.Name)
	}
	if newPrimary.ClusterSetID == nil || *newPrimary.ClusterSetID != cs.ID {
		return fmt.Errorf("clusterSet: cluster %q is not a member of cluster set %q", newPrimary.Name, cs.Name)
	}
	cs.PrimaryClusterID = newPrimary.ID
	newPrimary.IsPrimaryCluster = true
	return nil
}

// FenceAllTraffic blocks both reads and writes on every member of a
// cluster by enabling super_read_only and offline_mode, used to isolate a
// cluster whose ClusterSet role is ambiguous (e.g. mid-failover).
func FenceAllTraffic(ctx context.Context, members map[string]*mysqlsess.Session) error {
	for ep, sess := range members {
		if _, err := sess.DB().ExecContext(ctx, "SET GLOBAL offline_mode = ON, GLOBAL super_read_only = ON"); err != nil {
			return fmt.Errorf("clusterSet: fencing %s: %w", ep, err)
		}
	}
	return nil
}

// FenceWrites enables super_read_only on every member, blocking writes
// but still allowing reads — the non-primary ClusterSet members' steady
// state.
func FenceWrites(ctx context.Context, members map[string]*mysqlsess.Session) error {
	for ep, sess := range members {
		if _, err := sess.DB().ExecContext(ctx, "SET GLOBAL super_read_only = ON"); err != nil {
			return fmt.Errorf("clusterSet: fencing writes on %s: %w", ep, err)
		}
	}
	return nil
}

// UnfenceWrites clears super_read_only, re-enabling writes on the
// ClusterSet primary cluster's members.
func UnfenceWrites(ctx context.Context, members map[string]*mysqlsess.Session) error {
	for ep, sess := range members {
		if _, err := sess.DB().ExecContext(ctx, "SET GLOBAL super_read_only = OFF"); err != nil {
			return fmt.Errorf("clusterSet: unfencing writes on %s: %w", ep, err)
		}
	}
	return nil
}
