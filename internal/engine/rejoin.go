package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/myshdb/clusteradm/internal/grprobe"
	"github.com/myshdb/clusteradm/internal/metadata"
	"github.com/myshdb/clusteradm/internal/mysqlsess"
	"github.com/myshdb/clusteradm/internal/precondition"
)

// CheckRejoinable reports whether target can be rejoined to cluster: it
// must already be tracked as a member and must not be currently ONLINE in
// the group, mirroring Cluster_join::check_rejoinable.
func (j *Joiner) CheckRejoinable(ctx context.Context, target *mysqlsess.Session, cluster *metadata.Cluster) (bool, error) {
	members, err := j.Store.ListMembers(ctx, cluster.ID)
	if err != nil {
		return false, fmt.Errorf("rejoinInstance: listing members: %w", err)
	}
	uuid := instanceUUID(ctx, target)
	for _, m := range members {
		if m.UUID == uuid {
			return m.State != metadata.MemberOnline, nil
		}
	}
	return false, nil
}

// RejoinInstance restarts group replication on an instance that is
// already tracked as a cluster member but has fallen OFFLINE/ERROR,
// mirroring Cluster_join::prepare_rejoin + Cluster_join::rejoin. It skips
// the one-time account-creation and metadata-insertion steps join performs
// (the account and member row already exist) but still resets GR
// configuration before restarting it.
func (j *Joiner) RejoinInstance(ctx context.Context, primary, target *mysqlsess.Session, cluster *metadata.Cluster) (*Result, error) {
	run := NewRun("rejoinInstance", j.Verbose)
	result := &Result{Op: "rejoinInstance", Cluster: cluster.Name, Member: target.Endpoint()}

	rejoinable, err := j.CheckRejoinable(ctx, target, cluster)
	if err != nil {
		return nil, err
	}
	if !rejoinable {
		return nil, fmt.Errorf("rejoinInstance: %s is not a recognized offline member of cluster %q", target.Endpoint(), cluster.Name)
	}

	if err := run.Step(ctx, StateChecked, func(ctx context.Context) error {
		return j.Precheck.Check(ctx, target, precondition.CommandConditions{
			Command:             "rejoinInstance",
			InstanceConfigState: precondition.ConfigStateManagedInCluster,
		}, cluster.ID)
	}, nil); err != nil {
		return nil, err
	}

	groupSnap, err := grprobe.Probe(ctx, primary, j.Verbose)
	if err != nil {
		return nil, fmt.Errorf("rejoinInstance: probing group: %w", err)
	}
	if groupSnap == nil || !groupSnap.HasQuorum {
		return nil, fmt.Errorf("rejoinInstance: cluster %q has no quorum", cluster.Name)
	}

	members, err := j.Store.ListMembers(ctx, cluster.ID)
	if err != nil {
		return nil, err
	}
	uuid := instanceUUID(ctx, target)
	var accountUser string
	var memberID int64
	for _, m := range members {
		if m.UUID == uuid {
			accountUser = m.RecoveryAccountUser
			memberID = m.ID
		}
	}
	host := "%"
	if cluster.CommStack == metadata.CommStackMySQL {
		host = "localhost"
	}

	if err := run.Step(ctx, StateGRStarted, func(ctx context.Context) error {
		return startGroupReplication(ctx, target, groupSnap.GroupName, accountUser, host)
	}, func(ctx context.Context) error {
		_, err := target.DB().ExecContext(ctx, "STOP GROUP_REPLICATION")
		return err
	}); err != nil {
		run.Unwind(ctx)
		return nil, err
	}

	if err := run.Step(ctx, StateRecovering, func(ctx context.Context) error {
		return waitForOnline(ctx, target, 5*time.Minute)
	}, nil); err != nil {
		run.Unwind(ctx)
		return nil, err
	}

	if err := run.Step(ctx, StateMetadataWritten, func(ctx context.Context) error {
		return j.Store.UpdateMemberState(ctx, memberID, metadata.MemberOnline, metadata.RoleSecondary)
	}, nil); err != nil {
		run.Unwind(ctx)
		return nil, err
	}

	if err := run.Step(ctx, StatePeersUpdated, func(ctx context.Context) error {
		return j.updatePeers(ctx, target, cluster)
	}, nil); err != nil {
		run.Unwind(ctx)
		return nil, err
	}

	run.state = StateDone
	result.FinalState = StateDone
	return result, nil
}

// RemoveInstance drops a member from the group and metadata store,
// optionally forcing removal of an unreachable member (the metadata-only
// path used when the instance cannot be reached to run
// STOP GROUP_REPLICATION itself).
func (j *Joiner) RemoveInstance(ctx context.Context, primary *mysqlsess.Session, cluster *metadata.Cluster, target *mysqlsess.Session, targetEndpoint string, force bool) (*Result, error) {
	result := &Result{Op: "removeInstance", Cluster: cluster.Name}

	members, err := j.Store.ListMembers(ctx, cluster.ID)
	if err != nil {
		return nil, err
	}

	var memberID int64
	endpoint := targetEndpoint
	if target != nil {
		endpoint = target.Endpoint()
		uuid := instanceUUID(ctx, target)
		for _, m := range members {
			if m.UUID == uuid {
				memberID = m.ID
			}
		}
		if _, err := target.DB().ExecContext(ctx, "STOP GROUP_REPLICATION"); err != nil && !force {
			return nil, fmt.Errorf("removeInstance: stopping group replication on %s: %w", endpoint, err)
		}
	} else {
		for _, m := range members {
			if m.Endpoint == endpoint {
				memberID = m.ID
			}
		}
	}
	if memberID == 0 {
		return nil, fmt.Errorf("removeInstance: target is not a recognized member of cluster %q", cluster.Name)
	}

	if err := j.Store.RemoveMember(ctx, memberID); err != nil {
		return nil, fmt.Errorf("removeInstance: removing member from metadata: %w", err)
	}

	result.Member = endpoint
	result.FinalState = StateDone
	return result, nil
}
