package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/myshdb/clusteradm/internal/grprobe"
	"github.com/myshdb/clusteradm/internal/metadata"
	"github.com/myshdb/clusteradm/internal/mysqlsess"
)

// RebootOptions mirrors the options accepted by
// rebootClusterFromCompleteOutage. SwitchCommunicationStack is accepted
// only together with Force; beyond that check the reboot does not act on
// it, and there is no separate ClusterSet-invalidated reboot path.
type RebootOptions struct {
	Force                    bool
	SwitchCommunicationStack bool
	RejoinInstances          []string // endpoints to attempt to rejoin; empty means every candidate except the new seed (endpoints not among the candidates are skipped)
	Primary                  string   // user-specified endpoint to use as seed instead of the auto-picked one
	DryRun                   bool     // report the plan without issuing any SQL or metadata writes
}

// RebootClusterFromCompleteOutage reboots a cluster every one of whose
// members is currently OFFLINE, by picking the most advanced member as a
// new seed and rejoining the rest, mirroring
// Dba::reboot_cluster_from_complete_outage's top-level sequence:
// check_instance_type, retrieve_instances, pick_best_instance_gtid,
// reboot_seed, rejoin_instances.
func (j *Joiner) RebootClusterFromCompleteOutage(ctx context.Context, cluster *metadata.Cluster, candidates map[string]*mysqlsess.Session, opts RebootOptions) (*Result, error) {
	if opts.SwitchCommunicationStack && !opts.Force {
		return nil, fmt.Errorf("rebootClusterFromCompleteOutage: switchCommunicationStack requires force")
	}

	result := &Result{Op: "rebootClusterFromCompleteOutage", Cluster: cluster.Name}

	offlineNotes, err := ensureAllMembersOffline(ctx, candidates, opts.Force, opts.DryRun)
	result.Notes = append(result.Notes, offlineNotes...)
	if err != nil {
		return nil, err
	}

	seedEndpoint, seed, pickNotes, err := pickBestInstanceGTID(ctx, candidates, opts.Primary, opts.Force)
	result.Notes = append(result.Notes, pickNotes...)
	if err != nil {
		return nil, fmt.Errorf("rebootClusterFromCompleteOutage: %w", err)
	}
	result.Member = seedEndpoint

	if opts.DryRun {
		result.Notes = append(result.Notes, fmt.Sprintf("dry run: would bootstrap a new group on %s and rejoin the remaining candidates", seedEndpoint))
		result.FinalState = StateDone
		return result, nil
	}

	run := NewRun("rebootClusterFromCompleteOutage", j.Verbose)

	newGroupName, err := seed.GetSysvar(ctx, "group_replication_group_name", mysqlsess.ScopeGlobal)
	if err != nil {
		return nil, fmt.Errorf("rebootClusterFromCompleteOutage: reading group name on seed: %w", err)
	}

	if err := run.Step(ctx, StateGRStarted, func(ctx context.Context) error {
		return rebootSeed(ctx, seed, newGroupName)
	}, nil); err != nil {
		return nil, fmt.Errorf("rebootClusterFromCompleteOutage: rebooting seed %s: %w", seedEndpoint, err)
	}

	if err := run.Step(ctx, StateRecovering, func(ctx context.Context) error {
		return waitForOnline(ctx, seed, 5*time.Minute)
	}, nil); err != nil {
		return nil, err
	}

	rejoinTargets := opts.RejoinInstances
	if len(rejoinTargets) == 0 {
		for ep := range candidates {
			if ep != seedEndpoint {
				rejoinTargets = append(rejoinTargets, ep)
			}
		}
	}

	var failed []string
	for _, ep := range rejoinTargets {
		sess, ok := candidates[ep]
		if !ok {
			continue
		}

		state, err := grprobe.CheckReplicaGTIDState(ctx, seed, sess)
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: checking GTID state: %v", ep, err))
			continue
		}
		switch state {
		case grprobe.GTIDDiverged:
			result.Notes = append(result.Notes, fmt.Sprintf("%s skipped: has errant transactions relative to the new seed", ep))
			continue
		case grprobe.GTIDIrrecoverable:
			result.Notes = append(result.Notes, fmt.Sprintf("%s skipped: missing transactions have been purged on the new seed, rejoin it manually after reprovisioning", ep))
			continue
		case grprobe.GTIDNew:
			result.Notes = append(result.Notes, fmt.Sprintf("%s skipped: reports no executed transactions, rejoin it through addInstance instead", ep))
			continue
		}

		if _, err := j.RejoinInstance(ctx, seed, sess, cluster); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", ep, err))
			continue
		}
	}
	if len(failed) > 0 {
		result.Notes = append(result.Notes, fmt.Sprintf("%d member(s) could not be rejoined: %v", len(failed), failed))
	}

	run.state = StateDone
	result.FinalState = StateDone
	return result, nil
}

// ensureAllMembersOffline verifies the group is actually down before a
// reboot runs. A candidate in ERROR state is recoverable in place: GR
// leaves the plugin loaded but inactive once a member errors out, so
// issuing STOP GROUP_REPLICATION brings it cleanly OFFLINE rather than
// blocking the whole reboot. A candidate that still reports a live
// primary means the group never actually went down, and only force
// overrides that.
func ensureAllMembersOffline(ctx context.Context, candidates map[string]*mysqlsess.Session, force, dryRun bool) ([]string, error) {
	var notes []string
	for ep, sess := range candidates {
		snap, err := grprobe.Probe(ctx, sess, false)
		if err != nil || snap == nil {
			continue
		}

		ownState, err := grprobe.MemberState(ctx, sess)
		if err == nil && ownState == metadata.MemberError {
			if dryRun {
				notes = append(notes, fmt.Sprintf("dry run: would stop group replication on %s to clear its ERROR state", ep))
			} else {
				if _, err := sess.DB().ExecContext(ctx, "STOP GROUP_REPLICATION"); err != nil {
					return notes, fmt.Errorf("rebootClusterFromCompleteOutage: clearing ERROR state on %s: %w", ep, err)
				}
				notes = append(notes, fmt.Sprintf("%s was in ERROR state; stopped group replication on it", ep))
			}
			continue
		}

		if snap.Primary != nil && !force {
			return notes, fmt.Errorf("rebootClusterFromCompleteOutage: %s still reports an active group (not a complete outage)", ep)
		}
	}
	return notes, nil
}

// pickBestInstanceGTID selects the reachable candidate with the most
// advanced GTID_EXECUTED set to become the new seed, mirroring
// pick_best_instance_gtid. A caller-specified primary is honored as long
// as its GTID set isn't strictly behind another reachable candidate's;
// when it is, the mismatch requires force to proceed (and is recorded as
// a note), matching the "explicit choice overrides the automatic pick,
// but data loss must be acknowledged" rule the ClusterSet force operations
// follow.
func pickBestInstanceGTID(ctx context.Context, candidates map[string]*mysqlsess.Session, userPrimary string, force bool) (string, *mysqlsess.Session, []string, error) {
	if len(candidates) == 0 {
		return "", nil, nil, fmt.Errorf("no reachable candidate instances")
	}

	type scored struct {
		endpoint string
		sess     *mysqlsess.Session
		gtid     string
	}
	var all []scored
	for ep, sess := range candidates {
		var gtid string
		if err := sess.DB().QueryRowContext(ctx, "SELECT @@GLOBAL.GTID_EXECUTED").Scan(&gtid); err != nil {
			continue
		}
		all = append(all, scored{ep, sess, gtid})
	}
	if len(all) == 0 {
		return "", nil, nil, fmt.Errorf("no candidate instance could be queried for its GTID set")
	}

	best := all[0]
	for _, s := range all[1:] {
		if best.sess == nil {
			best = s
			continue
		}
		var isSubset int
		err := best.sess.DB().QueryRowContext(ctx, "SELECT GTID_SUBSET(?, ?)", best.gtid, s.gtid).Scan(&isSubset)
		if err == nil && isSubset == 1 && best.gtid != s.gtid {
			best = s
		}
	}

	if userPrimary == "" {
		return best.endpoint, best.sess, nil, nil
	}

	chosen, ok := candidates[userPrimary]
	if !ok {
		return "", nil, nil, fmt.Errorf("specified primary %q is not among the reachable candidate instances", userPrimary)
	}
	if userPrimary == best.endpoint {
		return userPrimary, chosen, nil, nil
	}

	var chosenGTID string
	if err := chosen.DB().QueryRowContext(ctx, "SELECT @@GLOBAL.GTID_EXECUTED").Scan(&chosenGTID); err != nil {
		return "", nil, nil, fmt.Errorf("reading GTID_EXECUTED on specified primary %q: %w", userPrimary, err)
	}
	var bestIsSubsetOfChosen int
	_ = best.sess.DB().QueryRowContext(ctx, "SELECT GTID_SUBSET(?, ?)", best.gtid, chosenGTID).Scan(&bestIsSubsetOfChosen)
	if bestIsSubsetOfChosen == 1 {
		// the specified primary's GTID set is a superset of (or equal to)
		// the automatically-picked best candidate's: no loss in choosing it.
		return userPrimary, chosen, nil, nil
	}
	if !force {
		return "", nil, nil, fmt.Errorf("specified primary %q has a less advanced GTID set than %s; pass force to proceed and accept the data loss", userPrimary, best.endpoint)
	}
	return userPrimary, chosen, []string{fmt.Sprintf("specified primary %q has a less advanced GTID set than %s; transactions only present on %s will be lost", userPrimary, best.endpoint, best.endpoint)}, nil
}

// rebootSeed bootstraps a fresh Group Replication group on the chosen
// seed instance, mirroring reboot_seed.
func rebootSeed(ctx context.Context, seed *mysqlsess.Session, groupName string) error {
	if _, err := seed.DB().ExecContext(ctx, "SET GLOBAL group_replication_bootstrap_group = ON"); err != nil {
		return err
	}
	defer seed.DB().ExecContext(ctx, "SET GLOBAL group_replication_bootstrap_group = OFF")

	if _, err := seed.DB().ExecContext(ctx, "START GROUP_REPLICATION"); err != nil {
		return fmt.Errorf("starting group replication on seed: %w", err)
	}
	return nil
}
