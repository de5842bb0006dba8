// Package recovery implements the Recovery-Method Chooser and the
// Recovery-Account Manager, grounded on Cluster_join::check_recovery_method
// and the recovery-account lifecycle in cluster_join.cc.
package recovery

import (
	"context"
	"fmt"

	"github.com/myshdb/clusteradm/internal/dbaerr"
	"github.com/myshdb/clusteradm/internal/grprobe"
	"github.com/myshdb/clusteradm/internal/metadata"
	"github.com/myshdb/clusteradm/internal/mysqlsess"
)

// ChooseOptions narrows the Recovery-Method Chooser's decision, mirroring
// the user-settable recoveryMethod/cloneDonor options on addInstance.
type ChooseOptions struct {
	Requested        metadata.RecoveryMethod // AUTO if unset
	CloneDisabled    bool
	Interactive      bool
	GTIDSetComplete  bool // cluster's gtid_set_complete flag
}

// Decision is the chooser's output: which method to use and why, modeled
// on the Input/Result-with-reasoning shape the DDL analyzer uses for its
// own recommendations, generalized to a recovery-method pick.
type Decision struct {
	Method RecoveryMethod
	Reason string
}

// RecoveryMethod mirrors metadata.RecoveryMethod without importing it back
// into command-facing code that only deals with concrete choices.
type RecoveryMethod = metadata.RecoveryMethod

// Choose picks INCREMENTAL or CLONE for a joining instance, following
// check_recovery_method's ordered decision rules:
//  1. clone requested but disabled on the cluster -> CLONE_DISABLED.
//  2. clone requested but the joiner lacks the clone plugin -> CLONE_NO_SUPPORT.
//  3. clone requested and available -> CLONE.
//  4. any ONLINE member reports the joiner DIVERGED (errant transactions)
//     -> DATA_ERRANT_TRANSACTIONS, regardless of preference.
//  5. at least one member reports IDENTICAL/RECOVERABLE and the caller
//     asked for incremental or auto -> INCREMENTAL.
//  6. every member reports IRRECOVERABLE/NEW and the cluster's GTID set
//     is complete -> INCREMENTAL (GR's distributed recovery can still
//     replay from a member with a complete history).
//  7. otherwise CLONE is the only safe option, provided the joiner
//     supports it, cloning isn't disabled, and some ONLINE member isn't
//     an IPv6 donor (clone cannot stream from an IPv6 source) -> CLONE,
//     else CLONE_NO_DONORS.
//  8. a non-auto request that contradicts the rules above fails instead
//     of silently upgrading to a different method.
func Choose(ctx context.Context, group *grprobe.Snapshot, donor *mysqlsess.Session, joiner *mysqlsess.Session, opts ChooseOptions) (Decision, error) {
	if opts.Requested == metadata.RecoveryClone {
		if opts.CloneDisabled {
			return Decision{}, dbaerr.New("recovery", dbaerr.CodeCloneDisabled, "clone was requested but is disabled on this cluster")
		}
		hasClone, err := clonePluginAvailable(ctx, joiner)
		if err != nil {
			return Decision{}, fmt.Errorf("recovery: checking clone plugin on joiner: %w", err)
		}
		if !hasClone {
			return Decision{}, dbaerr.New("recovery", dbaerr.CodeCloneNoSupport, "the joining instance does not support clone")
		}
		return Decision{Method: metadata.RecoveryClone, Reason: "explicitly requested by the caller"}, nil
	}

	onlineMembers := onlineMemberViews(group)
	if len(onlineMembers) == 0 {
		return Decision{}, fmt.Errorf("recovery: no ONLINE member available to compare GTID state against")
	}

	donorUUID := instanceUUID(ctx, donor)
	states := make(map[string]grprobe.GTIDState, len(onlineMembers))
	for _, mv := range onlineMembers {
		memberSess := donor
		if mv.UUID != donorUUID {
			opened, err := donor.WithEndpoint(ctx, mv.Host, mv.Port)
			if err != nil {
				// A member this engine can't reach right now can't be
				// classified; check_recovery_method only reasons about
				// members it can actually query.
				continue
			}
			defer opened.Close()
			memberSess = opened
		}
		state, err := grprobe.CheckReplicaGTIDState(ctx, memberSess, joiner)
		if err != nil {
			return Decision{}, fmt.Errorf("recovery: comparing GTID state against %s: %w", mv.Host, err)
		}
		states[mv.UUID] = state
	}
	if len(states) == 0 {
		return Decision{}, fmt.Errorf("recovery: could not reach any ONLINE member to compare GTID state against")
	}

	for uuid, st := range states {
		if st == grprobe.GTIDDiverged {
			return Decision{}, dbaerr.New("recovery", dbaerr.CodeDataErrantTransactions,
				"joiner has transactions not present on member %s: errant transactions must be resolved manually", uuid)
		}
	}

	if opts.Requested == metadata.RecoveryIncremental || opts.Requested == metadata.RecoveryAuto || opts.Requested == "" {
		for _, st := range states {
			if st == grprobe.GTIDIdentical || st == grprobe.GTIDRecoverable {
				return Decision{Method: metadata.RecoveryIncremental, Reason: "at least one member can recover the joiner incrementally"}, nil
			}
		}
	}

	allIrrecoverableOrNew := true
	for _, st := range states {
		if st != grprobe.GTIDIrrecoverable && st != grprobe.GTIDNew {
			allIrrecoverableOrNew = false
			break
		}
	}
	if allIrrecoverableOrNew && opts.GTIDSetComplete {
		return Decision{Method: metadata.RecoveryIncremental, Reason: "every member's missing transactions are still replayable and the cluster's GTID set is complete"}, nil
	}

	if opts.Requested == metadata.RecoveryIncremental && !opts.Interactive {
		return Decision{}, fmt.Errorf("recovery: incremental recovery was requested but no member can recover the joiner without clone")
	}

	if opts.CloneDisabled {
		return Decision{}, dbaerr.New("recovery", dbaerr.CodeCloneNoDonors, "clone is disabled and no member can recover the joiner incrementally")
	}
	hasClone, err := clonePluginAvailable(ctx, joiner)
	if err != nil {
		return Decision{}, fmt.Errorf("recovery: checking clone plugin on joiner: %w", err)
	}
	if !hasClone {
		return Decision{}, dbaerr.New("recovery", dbaerr.CodeCloneNoDonors, "no member can recover the joiner incrementally and the joiner does not support clone")
	}
	if !anyNonIPv6Donor(onlineMembers) {
		return Decision{}, dbaerr.New("recovery", dbaerr.CodeCloneNoDonors, "clone requires a non-IPv6 donor and none is ONLINE")
	}

	return Decision{Method: metadata.RecoveryClone, Reason: "no member can recover the joiner incrementally and clone is available"}, nil
}

func onlineMemberViews(group *grprobe.Snapshot) []grprobe.MemberView {
	if group == nil {
		return nil
	}
	var out []grprobe.MemberView
	for _, mv := range group.Members {
		if mv.State == metadata.MemberOnline {
			out = append(out, mv)
		}
	}
	return out
}

func anyNonIPv6Donor(members []grprobe.MemberView) bool {
	for _, mv := range members {
		if !isIPv6(mv.Host) {
			return true
		}
	}
	return false
}

func isIPv6(host string) bool {
	for i := 0; i < len(host); i++ {
		if host[i] == ':' {
			return true
		}
	}
	return false
}

func instanceUUID(ctx context.Context, sess *mysqlsess.Session) string {
	var uuid string
	_ = sess.DB().QueryRowContext(ctx, "SELECT @@server_uuid").Scan(&uuid)
	return uuid
}

func clonePluginAvailable(ctx context.Context, sess *mysqlsess.Session) (bool, error) {
	var pluginStatus string
	err := sess.DB().QueryRowContext(ctx, `
		SELECT PLUGIN_STATUS FROM information_schema.PLUGINS WHERE PLUGIN_NAME = 'clone'`).Scan(&pluginStatus)
	if err != nil {
		return false, nil
	}
	return pluginStatus == "ACTIVE", nil
}
