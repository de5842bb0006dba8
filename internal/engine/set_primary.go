package engine

import (
	"context"
	"fmt"

	"github.com/myshdb/clusteradm/internal/grprobe"
	"github.com/myshdb/clusteradm/internal/metadata"
	"github.com/myshdb/clusteradm/internal/mysqlsess"
	"github.com/myshdb/clusteradm/internal/precondition"
)

// SetPrimaryInstance promotes candidate to primary of a single-primary
// group via the group_replication_set_as_primary UDF, mirroring
// Cluster_impl::set_primary_instance. The group handles the actual
// handover; this issues the call and then records candidate as PRIMARY
// and every other member as SECONDARY in metadata, without checking which
// primary the members themselves report.
func (j *Joiner) SetPrimaryInstance(ctx context.Context, primary *mysqlsess.Session, cluster *metadata.Cluster, candidate *mysqlsess.Session) (*Result, error) {
	result := &Result{Op: "setPrimaryInstance", Cluster: cluster.Name, Member: candidate.Endpoint()}

	if err := j.Precheck.Check(ctx, primary, precondition.CommandConditions{
		Command:             "setPrimaryInstance",
		InstanceConfigState:  precondition.ConfigStateManagedInCluster,
		PrimaryRequired:      true,
	}, cluster.ID); err != nil {
		return nil, err
	}

	snap, err := grprobe.Probe(ctx, primary, j.Verbose)
	if err != nil {
		return nil, fmt.Errorf("setPrimaryInstance: probing group: %w", err)
	}
	if snap == nil || !snap.HasQuorum {
		return nil, fmt.Errorf("setPrimaryInstance: cluster %q has no quorum (CLUSTER_PRIMARY_UNAVAILABLE)", cluster.Name)
	}
	if !snap.SinglePrimary {
		return nil, fmt.Errorf("setPrimaryInstance: cluster %q is in multi-primary mode, there is no single primary to change", cluster.Name)
	}

	candidateUUID := instanceUUID(ctx, candidate)

	run := NewRun("setPrimaryInstance", j.Verbose)
	if err := run.Step(ctx, StateGRStarted, func(ctx context.Context) error {
		_, err := primary.DB().ExecContext(ctx, "SELECT group_replication_set_as_primary(?)", candidateUUID)
		return err
	}, nil); err != nil {
		return nil, fmt.Errorf("setPrimaryInstance: %w (CLUSTER_PRIMARY_UNAVAILABLE)", err)
	}

	members, err := j.Store.ListMembers(ctx, cluster.ID)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		role := metadata.RoleSecondary
		if m.UUID == candidateUUID {
			role = metadata.RolePrimary
		}
		if err := j.Store.UpdateMemberState(ctx, m.ID, m.State, role); err != nil {
			return nil, fmt.Errorf("setPrimaryInstance: updating member roles in metadata: %w", err)
		}
	}

	run.state = StateDone
	result.FinalState = StateDone
	return result, nil
}
