package engine

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/myshdb/clusteradm/internal/dbaerr"
	"github.com/myshdb/clusteradm/internal/grprobe"
	"github.com/myshdb/clusteradm/internal/metadata"
	"github.com/myshdb/clusteradm/internal/mysqlsess"
	"github.com/myshdb/clusteradm/internal/precondition"
	"github.com/myshdb/clusteradm/internal/recovery"
)

// maxGroupMembers is Group Replication's hard membership cap: a group holds
// at most 9 members, so a 10th always fails to join, regardless of quorum
// or version.
const maxGroupMembers = 9

// JoinOptions mirrors the Group_replication_options/Clone_options pair
// Cluster_join is constructed with, parsed from CLI flags by cmd/.
type JoinOptions struct {
	Label            string
	LocalAddress     string
	RecoveryMethod   metadata.RecoveryMethod
	CloneDisabled    bool
	Interactive      bool
	IPAllowlist      string
	OnlineTimeout    time.Duration // defaults to 5 minutes, mirrors GR's default recovery window
}

// Joiner drives addInstance/rejoinInstance through the Join/Rejoin/Reboot
// Engine's state machine.
type Joiner struct {
	Store     *metadata.Store
	Precheck  *precondition.Checker
	Accounts  *recovery.AccountManager
	Verbose   bool
}

// NewJoiner wires the engine's dependencies together.
func NewJoiner(store *metadata.Store, precheck *precondition.Checker, accounts *recovery.AccountManager, verbose bool) *Joiner {
	return &Joiner{Store: store, Precheck: precheck, Accounts: accounts, Verbose: verbose}
}

// Result is returned from every top-level engine operation (join/rejoin/
// reboot) for the output renderer.
type Result struct {
	Op       string
	Cluster  string
	Member   string
	Method   metadata.RecoveryMethod
	FinalState State
	Notes    []string
}

// AddInstance runs the full join sequence for a new instance: precondition
// check, recovery-account creation, GR start/join, distributed recovery,
// metadata write, peer update. Mirrors Cluster_join::prepare_join +
// Cluster_join::join.
func (j *Joiner) AddInstance(ctx context.Context, primary, target *mysqlsess.Session, cluster *metadata.Cluster, opts JoinOptions) (*Result, error) {
	run := NewRun("addInstance", j.Verbose)
	result := &Result{Op: "addInstance", Cluster: cluster.Name, Member: target.Endpoint()}

	if err := run.Step(ctx, StateChecked, func(ctx context.Context) error {
		if err := j.Precheck.Check(ctx, target, precondition.CommandConditions{
			Command:             "addInstance",
			InstanceConfigState: precondition.ConfigStateStandalone | precondition.ConfigStateStandaloneWithMetadata | precondition.ConfigStateStandaloneInMetadata,
		}, 0); err != nil {
			return err
		}
		return j.checkJoinable(ctx, target, cluster, opts)
	}, nil); err != nil {
		return nil, err
	}

	groupSnap, err := grprobe.Probe(ctx, primary, j.Verbose)
	if err != nil {
		return nil, fmt.Errorf("addInstance: probing group before join: %w", err)
	}
	if groupSnap == nil || !groupSnap.HasQuorum {
		run.Unwind(ctx)
		return nil, fmt.Errorf("addInstance: cluster %q has no quorum, cannot accept new members", cluster.Name)
	}

	serverID, err := target.GetVariableInt(ctx, "server_id")
	if err != nil {
		run.Unwind(ctx)
		return nil, fmt.Errorf("addInstance: reading target server_id: %w", err)
	}
	accountUser := recovery.GenerateAccountName(uint32(serverID))
	host := "%"
	if cluster.CommStack == metadata.CommStackMySQL {
		host = "localhost"
	}

	if err := run.Step(ctx, StateUserCreated, func(ctx context.Context) error {
		var createErr error
		if cluster.CommStack == metadata.CommStackMySQL {
			_, createErr = j.Accounts.CreateLocalReplicationUser(ctx, target, accountUser)
		} else {
			_, createErr = j.Accounts.CreateReplicationUser(ctx, primary, accountUser, host)
		}
		return createErr
	}, func(ctx context.Context) error {
		return j.Accounts.CleanReplicationUser(ctx, primary, accountUser, host)
	}); err != nil {
		run.Unwind(ctx)
		return nil, err
	}

	decision, err := recovery.Choose(ctx, groupSnap, primary, target, recovery.ChooseOptions{
		Requested:     opts.RecoveryMethod,
		CloneDisabled: opts.CloneDisabled,
		Interactive:   opts.Interactive,
	})
	if err != nil {
		run.Unwind(ctx)
		return nil, fmt.Errorf("addInstance: choosing recovery method: %w", err)
	}
	result.Method = decision.Method
	result.Notes = append(result.Notes, decision.Reason)

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
		timeout := opts.OnlineTimeout
		if timeout <= 0 {
			timeout = 5 * time.Minute
		}
		return waitForOnline(ctx, target, timeout)
	}, nil); err != nil {
		run.Unwind(ctx)
		return nil, err
	}

	var memberID int64
	if err := run.Step(ctx, StateMetadataWritten, func(ctx context.Context) error {
		id, err := j.Store.AddMember(ctx, &metadata.Member{
			ClusterID:           cluster.ID,
			UUID:                instanceUUID(ctx, target),
			Endpoint:            target.Endpoint(),
			Role:                metadata.RoleSecondary,
			State:               metadata.MemberOnline,
			Label:               opts.Label,
			RecoveryAccountUser: accountUser,
		})
		memberID = id
		return err
	}, func(ctx context.Context) error {
		return j.Store.RemoveMember(ctx, memberID)
	}); err != nil {
		run.Unwind(ctx)
		return nil, err
	}
	if _, err := j.Store.RecordRecoveryAccount(ctx, &metadata.RecoveryAccount{
		ClusterID: cluster.ID, MemberID: memberID, User: accountUser, Host: host,
		Local: cluster.CommStack == metadata.CommStackMySQL,
	}); err != nil {
		run.Unwind(ctx)
		return nil, fmt.Errorf("addInstance: recording recovery account: %w", err)
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

// checkJoinable enforces the joinability gates that must hold before any
// mutating step runs: Group Replication's hard membership cap, IPv6 local
// address support, and the group_replication plugin being installed and
// active. Mirrors the checks Cluster_join::prepare_join runs ahead of
// Cluster_join::join itself.
func (j *Joiner) checkJoinable(ctx context.Context, target *mysqlsess.Session, cluster *metadata.Cluster, opts JoinOptions) error {
	members, err := j.Store.ListMembers(ctx, cluster.ID)
	if err != nil {
		return fmt.Errorf("addInstance: listing current members: %w", err)
	}
	if len(members) >= maxGroupMembers {
		return dbaerr.New("addInstance", dbaerr.CodeGroupReplicationMembersLimit,
			"cluster %q already has %d members, which is Group Replication's maximum", cluster.Name, len(members))
	}

	version, err := target.GetServerVersion(ctx)
	if err != nil {
		return fmt.Errorf("addInstance: reading target server version: %w", err)
	}
	localAddr := opts.LocalAddress
	if localAddr == "" {
		localAddr = target.Endpoint()
	}
	if !grprobe.EndpointSupportedByGR(localAddr, version) {
		return dbaerr.New("addInstance", dbaerr.CodeInvalidArgument,
			"local address %q is an IPv6 literal, which requires MySQL 8.0.14 or newer (target runs %s)", localAddr, version)
	}

	installed, err := groupReplicationInstalled(ctx, target)
	if err != nil {
		return fmt.Errorf("addInstance: checking group_replication plugin: %w", err)
	}
	if !installed {
		if _, err := target.DB().ExecContext(ctx, "INSTALL PLUGIN group_replication SONAME 'group_replication.so'"); err != nil {
			return fmt.Errorf("addInstance: installing group_replication plugin: %w", err)
		}
	}

	return nil
}

func groupReplicationInstalled(ctx context.Context, sess *mysqlsess.Session) (bool, error) {
	var status string
	err := sess.DB().QueryRowContext(ctx,
		`SELECT PLUGIN_STATUS FROM information_schema.PLUGINS WHERE PLUGIN_NAME = 'group_replication'`).Scan(&status)
	if err != nil {
		return false, nil
	}
	return status == "ACTIVE", nil
}

func startGroupReplication(ctx context.Context, target *mysqlsess.Session, groupName, user, host string) error {
	if _, err := target.DB().ExecContext(ctx,
		"CHANGE REPLICATION SOURCE TO SOURCE_USER=?, SOURCE_PASSWORD=? FOR CHANNEL 'group_replication_recovery'",
		user, host); err != nil {
		return fmt.Errorf("configuring recovery channel: %w", err)
	}
	if _, err := target.DB().ExecContext(ctx, "START GROUP_REPLICATION"); err != nil {
		return fmt.Errorf("starting group replication: %w", err)
	}
	return nil
}

// waitForOnline polls target's own performance_schema view until it
// reports ONLINE, the context is cancelled, or timeout elapses, returning
// the last-observed state on failure rather than assuming success. A
// member can land in RECOVERING (still streaming), ERROR (distributed
// recovery failed) or simply never appear; none of those are "joined".
func waitForOnline(ctx context.Context, target *mysqlsess.Session, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	lastState := metadata.MemberState("UNKNOWN")
	for {
		state, err := grprobe.MemberState(ctx, target)
		if err == nil {
			lastState = state
			if state == metadata.MemberOnline {
				return nil
			}
			if state == metadata.MemberError {
				return fmt.Errorf("waiting for instance to come ONLINE: member entered ERROR state during distributed recovery")
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for instance to come ONLINE: %w (last observed state: %s)", ctx.Err(), lastState)
		case <-deadline.C:
			return fmt.Errorf("waiting for instance to come ONLINE: timed out after %s (last observed state: %s)", timeout, lastState)
		case <-ticker.C:
		}
	}
}

// updatePeers pushes group_replication_group_seeds to every surviving
// member once the joiner is ONLINE. GR does not propagate this variable on
// its own: it only affects which seeds a member tries on its *own* next
// restart or auto-rejoin, so every member's local copy must be kept
// current or a later restart can strand it unable to find the group.
// Recomputes auto_increment_increment/auto_increment_offset for
// multi-primary groups once membership passes 7, the point at which
// GR's default auto_increment_increment=7 stops guaranteeing collision-free
// primary keys across all members.
func (j *Joiner) updatePeers(ctx context.Context, target *mysqlsess.Session, cluster *metadata.Cluster) error {
	members, err := j.Store.ListMembers(ctx, cluster.ID)
	if err != nil {
		return fmt.Errorf("updating peers: listing members: %w", err)
	}

	seeds, err := collectLocalAddresses(ctx, target, members)
	if err != nil {
		return fmt.Errorf("updating peers: collecting local addresses: %w", err)
	}
	seedList := strings.Join(seeds, ",")

	multiPrimary := !cluster.SinglePrimary
	increment := 0
	if multiPrimary && len(members) > 7 {
		increment = len(members)
	}

	for i, m := range members {
		host, port, err := splitHostPort(m.Endpoint)
		if err != nil {
			continue
		}
		peer, err := target.WithEndpoint(ctx, host, port)
		if err != nil {
			// A peer that can't be reached right now will pick up the new
			// seed list the next time it's probed and updated; failing the
			// whole join over one unreachable peer would undo a join that
			// otherwise succeeded.
			continue
		}
		func() {
			defer peer.Close()
			_ = peer.SetSysvar(ctx, "group_replication_group_seeds", seedList, mysqlsess.PersistGlobal)
			if increment > 0 {
				_ = peer.SetSysvar(ctx, "auto_increment_increment", strconv.Itoa(increment), mysqlsess.PersistGlobal)
				_ = peer.SetSysvar(ctx, "auto_increment_offset", strconv.Itoa(i+1), mysqlsess.PersistGlobal)
			}
		}()
	}

	return nil
}

func collectLocalAddresses(ctx context.Context, target *mysqlsess.Session, members []*metadata.Member) ([]string, error) {
	targetLocal, err := target.GetSysvar(ctx, "group_replication_local_address", mysqlsess.ScopeGlobal)
	if err != nil {
		return nil, err
	}
	targetUUID := instanceUUID(ctx, target)

	var out []string
	seen := map[string]bool{}
	for _, m := range members {
		var addr string
		if m.UUID == targetUUID {
			addr = targetLocal
		} else {
			host, port, err := splitHostPort(m.Endpoint)
			if err != nil {
				continue
			}
			peer, err := target.WithEndpoint(ctx, host, port)
			if err != nil {
				continue
			}
			addr, err = peer.GetSysvar(ctx, "group_replication_local_address", mysqlsess.ScopeGlobal)
			peer.Close()
			if err != nil || addr == "" {
				continue
			}
		}
		if addr != "" && !seen[addr] {
			seen[addr] = true
			out = append(out, addr)
		}
	}
	if targetLocal != "" && !seen[targetLocal] {
		out = append(out, targetLocal)
	}
	return out, nil
}

func splitHostPort(endpoint string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}

func instanceUUID(ctx context.Context, sess *mysqlsess.Session) string {
	var uuid string
	_ = sess.DB().QueryRowContext(ctx, "SELECT @@server_uuid").Scan(&uuid)
	return uuid
}
