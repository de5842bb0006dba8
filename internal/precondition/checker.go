// Package precondition implements the Precondition Checker: the gate every
// admin command runs through before touching the cluster, grounded on
// mysql-shell's Precondition_checker / Command_conditions.
package precondition

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/myshdb/clusteradm/internal/dbaerr"
	"github.com/myshdb/clusteradm/internal/grprobe"
	"github.com/myshdb/clusteradm/internal/metadata"
	"github.com/myshdb/clusteradm/internal/mysqlsess"
)

// Version bounds a command's preconditions may require, mirroring the
// shell's min/max supported server version constants.
var (
	MinSupportedVersion = [3]int{8, 0, 0}
	// MaxSupportedMajorMinor's patch component is intentionally unbounded
	// (mysql-shell uses "<major>.<minor>.9999"): new patch releases of a
	// supported major.minor line are accepted without a new build.
	MaxSupportedMajorMinor = [2]int{8, 4}
	MinClusterSetVersion   = [3]int{8, 0, 27}
)

// InstanceConfigState bitmask, mirroring Instance_config_state. Every bit
// is mutually exclusive in practice (classifyConfigState only ever sets
// one), but CommandConditions.InstanceConfigState combines several into an
// "any of these is fine" acceptance mask.
type InstanceConfigState int

const ConfigStateNone InstanceConfigState = 0

const (
	ConfigStateStandalone InstanceConfigState = 1 << iota
	ConfigStateStandaloneWithMetadata
	ConfigStateStandaloneInMetadata
	ConfigStateGroupReplication
	ConfigStateAsyncReplication
	ConfigStateInnoDBCluster
	ConfigStateInnoDBClusterSet
	ConfigStateInnoDBClusterSetOffline
	ConfigStateAsyncReplicaSet
	ConfigStateUnknown

	// ConfigStateManagedInCluster is kept as an alias of
	// ConfigStateInnoDBCluster: earlier callers built before the full
	// state set existed only ever cared about "is this a managed
	// InnoDB cluster member".
	ConfigStateManagedInCluster = ConfigStateInnoDBCluster
)

// QuorumState bitmask, mirroring Quorum_state.
type QuorumState int

const QuorumStateAny QuorumState = 0

const (
	QuorumStateNormal QuorumState = 1 << iota
	QuorumStateAllOffline
	QuorumStateNoQuorum
)

// ClusterGlobalState bitmask: where the target cluster sits relative to a
// ClusterSet it may belong to.
type ClusterGlobalState int

const ClusterGlobalAny ClusterGlobalState = 0

const (
	ClusterGlobalStandalone ClusterGlobalState = 1 << iota
	ClusterGlobalPrimary
	ClusterGlobalReplica
	ClusterGlobalInvalidated
)

// MetadataStateAction is the effect a metadata_states rule applies once it
// matches the currently observed metadata.MetadataState.
type MetadataStateAction int

const (
	MetaActionNone MetadataStateAction = iota
	MetaActionNote
	MetaActionWarn
	MetaActionRaiseError
)

// MetadataStateRule is one entry of a command's metadata_states list:
// "if the metadata is in any of States, apply Action". Rules are evaluated
// in order; the first rule whose Action is MetaActionRaiseError aborts the
// whole check.
type MetadataStateRule struct {
	States []metadata.MetadataState
	Action MetadataStateAction
}

// CommandConditions is a single command's gating requirements, mirroring
// Command_conditions.
type CommandConditions struct {
	Command             string
	MinVersion          [3]int
	InstanceConfigState InstanceConfigState // bitmask of acceptable states; 0 means "any"
	QuorumState         QuorumState         // bitmask of acceptable states; 0 means "any"
	MetadataStates      []MetadataStateRule // evaluated in order against the live metadata state
	PrimaryRequired     bool
	ClusterGlobalState  ClusterGlobalState // bitmask; 0 means "any"
	AllowedOnFenced     bool
	RequireClusterSet   bool
}

// Checker runs CommandConditions against a live instance/group.
type Checker struct {
	Store *metadata.Store
}

// New builds a Checker bound to a metadata store.
func New(store *metadata.Store) *Checker {
	return &Checker{Store: store}
}

// Check runs the ordered precondition sequence from preconditions.cc:
// invalidate the cached metadata, the metadata-state rules, version check,
// instance-configuration check, quorum check, primary check, fencing
// check — failing fast on the first violated condition, matching
// Precondition_checker::check_preconditions. clusterID is the metadata row
// for the target cluster, used for the fencing check; pass 0 when the
// command runs before any cluster exists (e.g. bootstrap), which skips
// that check.
func (c *Checker) Check(ctx context.Context, sess *mysqlsess.Session, cond CommandConditions, clusterID int64) error {
	if c.Store != nil {
		c.Store.Invalidate()
	}

	if len(cond.MetadataStates) > 0 && c.Store != nil {
		if err := c.checkMetadataStates(ctx, cond); err != nil {
			return err
		}
	}

	version, err := sess.GetServerVersion(ctx)
	if err != nil {
		return dbaerr.Wrap(cond.Command, dbaerr.CodePreconditionFailed, err)
	}
	if err := checkVersion(version, cond); err != nil {
		return dbaerr.Wrap(cond.Command, dbaerr.CodeUnsupportedVersion, err)
	}

	snap, err := grprobe.Probe(ctx, sess, false)
	if err != nil {
		return dbaerr.Wrap(cond.Command, dbaerr.CodePreconditionFailed, err)
	}

	state, err := c.classifyConfigState(ctx, sess, snap)
	if err != nil {
		return dbaerr.Wrap(cond.Command, dbaerr.CodePreconditionFailed, err)
	}
	if cond.InstanceConfigState != ConfigStateNone && state&cond.InstanceConfigState == 0 {
		return configStateError(cond.Command, state)
	}

	if snap != nil {
		if cond.QuorumState != QuorumStateAny {
			qs := classifyQuorumState(snap)
			if qs&cond.QuorumState == 0 {
				return dbaerr.New(cond.Command, dbaerr.CodeGroupHasNoQuorum,
					"group availability is %s, which does not satisfy this command's quorum requirement", snap.Availability)
			}
		}
		if cond.PrimaryRequired && snap.Primary == nil {
			return dbaerr.New(cond.Command, dbaerr.CodeGroupHasNoQuorum,
				"no primary is currently available (group availability: %s)", snap.Availability)
		}
	}

	if !cond.AllowedOnFenced && clusterID != 0 && c.Store != nil {
		cl, err := c.Store.GetClusterByID(ctx, clusterID)
		if err == nil && cl.Fenced {
			return dbaerr.New(cond.Command, dbaerr.CodePreconditionFailed, "cluster %q is fenced from writes", cl.Name)
		}
	}

	return nil
}

// checkMetadataStates evaluates a command's metadata_states rules in order
// against the schema's actual state. Note/Warn actions are silently
// absorbed here (the shell surfaces them to the user; this gate only cares
// whether the command may proceed at all), and the first RaiseError match
// aborts with METADATA_INCOMPATIBLE.
func (c *Checker) checkMetadataStates(ctx context.Context, cond CommandConditions) error {
	current, err := c.currentMetadataState(ctx)
	if err != nil {
		return dbaerr.Wrap(cond.Command, dbaerr.CodePreconditionFailed, err)
	}
	for _, rule := range cond.MetadataStates {
		matched := false
		for _, s := range rule.States {
			if s == current {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		if rule.Action == MetaActionRaiseError {
			return dbaerr.New(cond.Command, dbaerr.CodeMetadataIncompatible,
				"metadata is in state %s, which this command does not support", current)
		}
	}
	return nil
}

// currentMetadataState reports the metadata schema's compatibility state.
// This module carries no schema-version migration machinery of its own, so
// once the schema exists it is always considered OK; only its absence
// (NO_SCHEMA) is distinguishable today. The richer states
// (UPGRADE_PENDING/UPGRADING/FAILED_UPGRADE) exist in the type for
// commands that need to name them in a metadata_states rule, and will
// become reachable once a schema migration path is added.
func (c *Checker) currentMetadataState(ctx context.Context) (metadata.MetadataState, error) {
	exists, err := c.Store.SchemaExists(ctx)
	if err != nil {
		return metadata.MetadataNoSchema, err
	}
	if !exists {
		return metadata.MetadataNoSchema, nil
	}
	return metadata.MetadataOK, nil
}

func checkVersion(v mysqlsess.ServerVersion, cond CommandConditions) error {
	min := cond.MinVersion
	if min == [3]int{} {
		min = MinSupportedVersion
	}
	if !v.AtLeast(min[0], min[1], min[2]) {
		return fmt.Errorf("server version %s is below the minimum supported version %d.%d.%d",
			v, min[0], min[1], min[2])
	}
	if v.Major > MaxSupportedMajorMinor[0] || (v.Major == MaxSupportedMajorMinor[0] && v.Minor > MaxSupportedMajorMinor[1]) {
		return fmt.Errorf("server version %s is newer than the highest supported release line %d.%d",
			v, MaxSupportedMajorMinor[0], MaxSupportedMajorMinor[1])
	}
	if cond.RequireClusterSet && !v.AtLeast(MinClusterSetVersion[0], MinClusterSetVersion[1], MinClusterSetVersion[2]) {
		return fmt.Errorf("server version %s does not support ClusterSet (requires >= %d.%d.%d)",
			v, MinClusterSetVersion[0], MinClusterSetVersion[1], MinClusterSetVersion[2])
	}
	return nil
}

// classifyConfigState computes the instance's actual configuration state
// by combining the live GR probe with what the metadata schema (if any)
// knows about this server, mirroring Precondition_checker's
// get_instance_config_state. AsyncReplicaSet is enumerated in the bitmask
// for command declarations to reference but is never produced here: this
// module does not implement the ReplicaSet (AR-managed) topology variant,
// only GR-backed InnoDB clusters and cluster sets.
func (c *Checker) classifyConfigState(ctx context.Context, sess *mysqlsess.Session, snap *grprobe.Snapshot) (InstanceConfigState, error) {
	if snap != nil {
		return c.classifyGRConfigState(ctx, snap)
	}
	return c.classifyNonGRConfigState(ctx, sess)
}

func (c *Checker) classifyGRConfigState(ctx context.Context, snap *grprobe.Snapshot) (InstanceConfigState, error) {
	if c.Store == nil {
		return ConfigStateGroupReplication, nil
	}
	cluster, err := c.Store.GetClusterByGroupName(ctx, snap.GroupName)
	if err != nil {
		// No metadata row for this group: GR is running, but nothing this
		// catalog created is managing it.
		return ConfigStateGroupReplication, nil
	}
	if cluster.ClusterSetID == nil {
		return ConfigStateInnoDBCluster, nil
	}
	if snap.Availability == grprobe.AvailabilityOffline || snap.Availability == grprobe.AvailabilityNoQuorum {
		return ConfigStateInnoDBClusterSetOffline, nil
	}
	return ConfigStateInnoDBClusterSet, nil
}

func (c *Checker) classifyNonGRConfigState(ctx context.Context, sess *mysqlsess.Session) (InstanceConfigState, error) {
	hasAsync, err := hasActiveAsyncReplication(ctx, sess)
	if err != nil {
		return ConfigStateUnknown, err
	}
	if hasAsync {
		return ConfigStateAsyncReplication, nil
	}

	if c.Store == nil {
		return ConfigStateStandalone, nil
	}

	var uuid string
	if err := sess.DB().QueryRowContext(ctx, "SELECT @@server_uuid").Scan(&uuid); err != nil {
		return ConfigStateUnknown, fmt.Errorf("reading server_uuid: %w", err)
	}
	member, err := c.Store.FindMemberByUUID(ctx, uuid)
	if err != nil {
		return ConfigStateUnknown, err
	}
	if member != nil {
		return ConfigStateStandaloneInMetadata, nil
	}

	exists, err := c.Store.SchemaExists(ctx)
	if err != nil {
		return ConfigStateUnknown, err
	}
	if exists {
		return ConfigStateStandaloneWithMetadata, nil
	}
	return ConfigStateStandalone, nil
}

// hasActiveAsyncReplication reports whether a regular (non-GR) replication
// channel is configured on this instance, using
// performance_schema.replication_connection_status rather than SHOW
// [SLAVE|REPLICA] STATUS so the query works unchanged across the
// SLAVE/REPLICA terminology split in 8.0.22. Group Replication's own
// internal channels are excluded; they aren't "async replication" in the
// sense this state cares about.
func hasActiveAsyncReplication(ctx context.Context, sess *mysqlsess.Session) (bool, error) {
	var count int
	err := sess.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM performance_schema.replication_connection_status WHERE CHANNEL_NAME NOT LIKE 'group_replication%'",
	).Scan(&count)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("checking async replication channels: %w", err)
	}
	return count > 0, nil
}

func classifyQuorumState(snap *grprobe.Snapshot) QuorumState {
	switch snap.Availability {
	case grprobe.AvailabilityOffline:
		return QuorumStateAllOffline
	case grprobe.AvailabilityNoQuorum:
		return QuorumStateNoQuorum
	default:
		return QuorumStateNormal
	}
}

func configStateError(op string, state InstanceConfigState) error {
	switch {
	case state&ConfigStateInnoDBCluster != 0:
		return dbaerr.New(op, dbaerr.CodeInstanceManagedInCluster, "the target instance is already part of a managed cluster")
	case state&(ConfigStateInnoDBClusterSet|ConfigStateInnoDBClusterSetOffline) != 0:
		return dbaerr.New(op, dbaerr.CodeInstanceNotInClusterSet, "the target instance belongs to a different cluster set")
	case state&ConfigStateAsyncReplicaSet != 0:
		return dbaerr.New(op, dbaerr.CodeInstanceManagedInReplSet, "the target instance belongs to a managed replica set")
	case state&ConfigStateGroupReplication != 0:
		return dbaerr.New(op, dbaerr.CodeInstanceManagedInCluster, "the target instance is already running Group Replication outside of any managed cluster")
	case state&ConfigStateAsyncReplication != 0:
		return dbaerr.New(op, dbaerr.CodeInstanceNotManaged, "the target instance already has asynchronous replication configured")
	case state&(ConfigStateStandaloneInMetadata|ConfigStateStandaloneWithMetadata) != 0:
		return dbaerr.New(op, dbaerr.CodeInstanceNotManaged, "the target instance is registered in metadata but is not an active member of any cluster")
	default:
		return dbaerr.New(op, dbaerr.CodeInstanceNotManaged, "the target instance is not managed by any cluster")
	}
}
