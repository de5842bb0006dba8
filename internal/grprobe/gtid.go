package grprobe

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strings"

	"github.com/myshdb/clusteradm/internal/metadata"
	"github.com/myshdb/clusteradm/internal/mysqlsess"
)

// GTIDState is check_replica_gtid_state's verdict on how a replica's
// GTID_EXECUTED set relates to a source's.
type GTIDState string

const (
	GTIDIdentical    GTIDState = "IDENTICAL"
	GTIDRecoverable  GTIDState = "RECOVERABLE"
	GTIDIrrecoverable GTIDState = "IRRECOVERABLE"
	GTIDDiverged     GTIDState = "DIVERGED"
	GTIDNew          GTIDState = "NEW"
)

// MemberState queries sess for its own row in
// performance_schema.replication_group_members, the same query
// waitForOnline polls, exposed standalone for callers (the Join/Reboot
// Engine, auto-rejoin checks) that only need a single member's state.
func MemberState(ctx context.Context, sess *mysqlsess.Session) (metadata.MemberState, error) {
	var state sql.NullString
	err := sess.DB().QueryRowContext(ctx, `
		SELECT MEMBER_STATE FROM performance_schema.replication_group_members
		WHERE MEMBER_ID = @@server_uuid`).Scan(&state)
	if err == sql.ErrNoRows {
		return metadata.MemberState("MISSING"), nil
	}
	if err != nil {
		return "", fmt.Errorf("grprobe: reading member state: %w", err)
	}
	return metadata.MemberState(state.String), nil
}

// InstalledSchemaVersion reports the server version a member is running,
// which gates compatibility the same way mysql-shell compares an
// instance's installed version against the cluster's lowest member
// version before allowing it to join or rejoin.
func InstalledSchemaVersion(ctx context.Context, sess *mysqlsess.Session) (mysqlsess.ServerVersion, error) {
	return sess.GetServerVersion(ctx)
}

// GTIDTotalSet returns the union of an instance's executed GTIDs across
// its known replication channels. Every channel GR cares about
// (group_replication_applier, group_replication_recovery, and any
// upstream async channel) replays into the same global GTID_EXECUTED, so
// a single read of @@GLOBAL.GTID_EXECUTED already reflects all of them;
// known_channels is accepted to mirror the operation's signature and to
// let callers assert the channels they expect are actually present.
func GTIDTotalSet(ctx context.Context, sess *mysqlsess.Session, knownChannels []string) (string, error) {
	var gtidSet string
	if err := sess.DB().QueryRowContext(ctx, "SELECT @@GLOBAL.GTID_EXECUTED").Scan(&gtidSet); err != nil {
		return "", fmt.Errorf("grprobe: reading GTID_EXECUTED: %w", err)
	}
	if len(knownChannels) > 0 {
		rows, err := sess.DB().QueryContext(ctx,
			"SELECT DISTINCT CHANNEL_NAME FROM performance_schema.replication_connection_status")
		if err == nil {
			defer rows.Close()
			seen := map[string]bool{}
			for rows.Next() {
				var ch string
				if rows.Scan(&ch) == nil {
					seen[ch] = true
				}
			}
			for _, ch := range knownChannels {
				if ch != "" && !seen[ch] {
					return gtidSet, fmt.Errorf("grprobe: expected channel %q not found on %s", ch, sess.Endpoint())
				}
			}
		}
	}
	return gtidSet, nil
}

// CheckReplicaGTIDState classifies replica's GTID_EXECUTED set relative
// to source's, mirroring check_replica_gtid_state:
//   - NEW: replica has executed no transactions at all.
//   - IDENTICAL: both sides have executed exactly the same set.
//   - DIVERGED: replica has executed at least one transaction source
//     never saw — an errant transaction, never safe to recover from.
//   - RECOVERABLE: source has transactions replica lacks, but every one
//     of them is still retained (not GTID_PURGED) on source, so
//     distributed recovery or a replay can catch the replica up.
//   - IRRECOVERABLE: source has transactions replica lacks and at least
//     one of them has already been purged from source's binary logs.
func CheckReplicaGTIDState(ctx context.Context, source, replica *mysqlsess.Session) (GTIDState, error) {
	var sourceGTID, sourcePurged, replicaGTID string
	if err := source.DB().QueryRowContext(ctx, "SELECT @@GLOBAL.GTID_EXECUTED").Scan(&sourceGTID); err != nil {
		return "", fmt.Errorf("grprobe: reading source GTID_EXECUTED: %w", err)
	}
	if err := source.DB().QueryRowContext(ctx, "SELECT @@GLOBAL.GTID_PURGED").Scan(&sourcePurged); err != nil {
		return "", fmt.Errorf("grprobe: reading source GTID_PURGED: %w", err)
	}
	if err := replica.DB().QueryRowContext(ctx, "SELECT @@GLOBAL.GTID_EXECUTED").Scan(&replicaGTID); err != nil {
		return "", fmt.Errorf("grprobe: reading replica GTID_EXECUTED: %w", err)
	}

	if strings.TrimSpace(replicaGTID) == "" {
		return GTIDNew, nil
	}
	if replicaGTID == sourceGTID {
		return GTIDIdentical, nil
	}

	missingOnSource, err := gtidSubtract(ctx, source, replicaGTID, sourceGTID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(missingOnSource) != "" {
		return GTIDDiverged, nil
	}

	missingOnReplica, err := gtidSubtract(ctx, source, sourceGTID, replicaGTID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(missingOnReplica) == "" {
		return GTIDIdentical, nil
	}

	retained, err := gtidSubtract(ctx, source, sourceGTID, sourcePurged)
	if err != nil {
		return "", err
	}
	subset, err := gtidSubset(ctx, source, missingOnReplica, retained)
	if err != nil {
		return "", err
	}
	if subset {
		return GTIDRecoverable, nil
	}
	return GTIDIrrecoverable, nil
}

func gtidSubtract(ctx context.Context, sess *mysqlsess.Session, a, b string) (string, error) {
	var result string
	err := sess.DB().QueryRowContext(ctx, "SELECT GTID_SUBTRACT(?, ?)", a, b).Scan(&result)
	return result, err
}

func gtidSubset(ctx context.Context, sess *mysqlsess.Session, a, b string) (bool, error) {
	var isSubset int
	err := sess.DB().QueryRowContext(ctx, "SELECT GTID_SUBSET(?, ?)", a, b).Scan(&isSubset)
	return isSubset == 1, err
}

// EndpointSupportedByGR reports whether addr is usable as a Group
// Replication local address on the given server version: IPv6 literals
// require 8.0.14+, matching the version gate documented for
// group_replication_local_address.
func EndpointSupportedByGR(addr string, version mysqlsess.ServerVersion) bool {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	if ip == nil || ip.To4() != nil {
		return true
	}
	return version.SupportsIPv6LocalAddress()
}

// IsRunningAutoRejoin reports whether sess currently has Group
// Replication's auto-rejoin procedure in flight, by checking for its
// dedicated performance_schema thread. A join/rejoin attempt must cancel
// this first: starting Group Replication while auto-rejoin is already
// retrying in the background races the new attempt against the old one.
func IsRunningAutoRejoin(ctx context.Context, sess *mysqlsess.Session) (bool, error) {
	var count int
	err := sess.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM performance_schema.threads WHERE NAME = 'thread/group_rpl/THD_autorejoin'`).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("grprobe: checking auto-rejoin thread: %w", err)
	}
	return count > 0, nil
}
