// Package clusterset implements the ClusterSet Coordinator: creating a
// ClusterSet from an existing cluster, adding replica clusters, tracking
// the managed async channel each replica uses to follow the primary
// cluster's primary, and cluster-global-status reporting — grounded on
// get_cluster_global_state/base_cluster_impl.cc's primary-resolution and
// global-status logic.
package clusterset

import (
	"context"
	"fmt"

	"github.com/myshdb/clusteradm/internal/grprobe"
	"github.com/myshdb/clusteradm/internal/metadata"
	"github.com/myshdb/clusteradm/internal/mysqlsess"
)

// GlobalState mirrors the cluster-global-status values base_cluster_impl
// reports for a cluster within a ClusterSet: is it reachable, is it OK, is
// replication from the primary lagging or broken.
type GlobalState string

const (
	GlobalOK              GlobalState = "OK"
	GlobalOKNotConsistent GlobalState = "OK_NOT_CONSISTENT"
	GlobalNotOK           GlobalState = "NOT_OK"
	GlobalUnreachable     GlobalState = "UNREACHABLE"
	GlobalInvalidated     GlobalState = "INVALIDATED"
)

const managedChannelName = "clusterset_replication"

// Coordinator manages ClusterSet membership and the managed replication
// channel between a primary cluster and its replica clusters.
type Coordinator struct {
	Store *metadata.Store
}

// New builds a Coordinator over the shared metadata store.
func New(store *metadata.Store) *Coordinator {
	return &Coordinator{Store: store}
}

// CreateClusterSet promotes an existing standalone cluster into the
// primary of a brand-new ClusterSet.
func (c *Coordinator) CreateClusterSet(ctx context.Context, primary *metadata.Cluster, name, domain string) (*metadata.ClusterSet, error) {
	if primary.ClusterSetID != nil {
		return nil, fmt.Errorf("clusterSet: cluster %q already belongs to a cluster set", primary.Name)
	}
	cs := &metadata.ClusterSet{Name: name, DomainName: domain, PrimaryClusterID: primary.ID}
	id, err := c.Store.CreateClusterSet(ctx, cs)
	if err != nil {
		return nil, fmt.Errorf("clusterSet: creating %q: %w", name, err)
	}
	cs.ID = id
	return cs, nil
}

// AddReplicaCluster attaches an existing standalone cluster to a
// ClusterSet as a replica, configuring the managed async channel that
// follows the ClusterSet primary's primary member.
func (c *Coordinator) AddReplicaCluster(ctx context.Context, cs *metadata.ClusterSet, replica *metadata.Cluster, replicaPrimarySess *mysqlsess.Session, primaryEndpoint string, creds ChannelCredentials) error {
	if replica.ClusterSetID != nil {
		return fmt.Errorf("clusterSet: cluster %q is already part of a cluster set", replica.Name)
	}

	if err := ConfigureManagedChannel(ctx, replicaPrimarySess, primaryEndpoint, creds); err != nil {
		return fmt.Errorf("clusterSet: configuring managed channel for %q: %w", replica.Name, err)
	}

	csID := cs.ID
	replica.ClusterSetID = &csID
	replica.IsPrimaryCluster = false
	return nil
}

// ChannelCredentials authenticates the managed replication channel a
// replica cluster's primary uses to follow the ClusterSet primary.
type ChannelCredentials struct {
	User     string
	Password string
}

// ConfigureManagedChannel points a replica cluster's primary at the
// ClusterSet primary cluster's primary member over a dedicated
// auto-positioned channel and starts that channel right away — mirroring
// Cluster_join::configure_cluster_set_member.
func ConfigureManagedChannel(ctx context.Context, sess *mysqlsess.Session, sourceEndpoint string, creds ChannelCredentials) error {
	if _, err := sess.DB().ExecContext(ctx,
		fmt.Sprintf(`CHANGE REPLICATION SOURCE TO
			SOURCE_HOST=?, SOURCE_USER=?, SOURCE_PASSWORD=?, SOURCE_AUTO_POSITION=1
			FOR CHANNEL '%s'`, managedChannelName),
		sourceEndpoint, creds.User, creds.Password); err != nil {
		return err
	}
	_, err := sess.DB().ExecContext(ctx, fmt.Sprintf("START REPLICA FOR CHANNEL '%s'", managedChannelName))
	return err
}

// GlobalStatus reports the ClusterSet-wide status of every cluster:
// reachability, replication health of the managed channel on replica
// clusters, and each cluster's own GR availability — the data behind
// "cluster set status".
type GlobalStatus struct {
	Primary  string
	Clusters map[string]ClusterGlobalStatus
}

// ClusterGlobalStatus is one cluster's row in GlobalStatus.
type ClusterGlobalStatus struct {
	State        GlobalState
	Availability grprobe.Availability
	ChannelError string // non-empty if the managed channel reports an error
}

// Status computes the ClusterSet's global status by probing the session
// given for each cluster in primaries. A cluster whose session is nil or
// cannot be probed is reported UNREACHABLE; no other member is tried.
func Status(ctx context.Context, cs *metadata.ClusterSet, primaries map[string]*mysqlsess.Session) (*GlobalStatus, error) {
	out := &GlobalStatus{Clusters: map[string]ClusterGlobalStatus{}}

	for name, sess := range primaries {
		if sess == nil {
			out.Clusters[name] = ClusterGlobalStatus{State: GlobalUnreachable}
			continue
		}
		snap, err := grprobe.Probe(ctx, sess, false)
		if err != nil || snap == nil {
			out.Clusters[name] = ClusterGlobalStatus{State: GlobalUnreachable}
			continue
		}

		channelErr := channelError(ctx, sess)
		state := GlobalOK
		switch {
		case channelErr != "":
			state = GlobalNotOK
		case snap.Availability != grprobe.AvailabilityOnline:
			state = GlobalOKNotConsistent
		}
		out.Clusters[name] = ClusterGlobalStatus{State: state, Availability: snap.Availability, ChannelError: channelErr}
	}

	return out, nil
}

func channelError(ctx context.Context, sess *mysqlsess.Session) string {
	var lastError string
	row := sess.DB().QueryRowContext(ctx, `
		SELECT LAST_ERROR_MESSAGE FROM performance_schema.replication_applier_status_by_worker
		WHERE CHANNEL_NAME = ? AND LAST_ERROR_MESSAGE != '' LIMIT 1`, managedChannelName)
	_ = row.Scan(&lastError)
	return lastError
}
