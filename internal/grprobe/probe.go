// Package grprobe implements the GR Probe: it queries a single instance's
// performance_schema Group Replication tables and derives the group's
// membership, quorum, and primary/secondary roles, generalizing the
// group-replication branch of the topology detector from "classify this
// one server" to "describe the whole group as seen from here".
package grprobe

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/myshdb/clusteradm/internal/metadata"
	"github.com/myshdb/clusteradm/internal/mysqlsess"
)

// MemberView is one row of performance_schema.replication_group_members as
// observed from a single instance.
type MemberView struct {
	UUID       string
	Host       string
	Port       int
	State      metadata.MemberState
	Role       metadata.MemberRole
	Version    string
}

// Availability summarizes the group's overall reachability, matching the
// Cluster_availability enum this is grounded on (ONLINE, ONLINE_NO_PRIMARY,
// OFFLINE, SOME_UNREACHABLE, NO_QUORUM, UNREACHABLE).
type Availability string

const (
	AvailabilityOnline         Availability = "ONLINE"
	AvailabilityOnlineNoPrimary Availability = "ONLINE_NO_PRIMARY"
	AvailabilityOffline        Availability = "OFFLINE"
	AvailabilitySomeUnreachable Availability = "SOME_UNREACHABLE"
	AvailabilityNoQuorum       Availability = "NO_QUORUM"
	AvailabilityUnreachable    Availability = "UNREACHABLE"
)

// Snapshot is the probe's full result: the group as seen from one member.
type Snapshot struct {
	GroupName     string
	ViewID        string
	SinglePrimary bool
	Members       []MemberView
	Primary       *MemberView // nil if ONLINE_NO_PRIMARY
	Availability  Availability
	HasQuorum     bool
}

// Probe queries sess for the Group Replication state it can see. It
// returns (nil, nil) if the instance does not have the group_replication
// plugin active, which the precondition checker treats as "not a GR
// member" rather than an error.
func Probe(ctx context.Context, sess *mysqlsess.Session, verbose bool) (*Snapshot, error) {
	groupName, err := sess.GetSysvar(ctx, "group_replication_group_name", mysqlsess.ScopeGlobal)
	if err != nil {
		return nil, fmt.Errorf("grprobe: reading group_replication_group_name: %w", err)
	}
	if groupName == "" {
		if verbose {
			log.Printf("[DEBUG] grprobe: group_replication_group_name empty, not a GR member")
		}
		return nil, nil
	}

	snap := &Snapshot{GroupName: groupName}

	singlePrimary, err := sess.GetSysvar(ctx, "group_replication_single_primary_mode", mysqlsess.ScopeGlobal)
	if err != nil {
		return nil, fmt.Errorf("grprobe: reading group_replication_single_primary_mode: %w", err)
	}
	snap.SinglePrimary = singlePrimary == "ON"

	viewID, err := sess.GetStatus(ctx, "group_replication_view_change_uuid")
	if err != nil {
		return nil, fmt.Errorf("grprobe: reading view change id: %w", err)
	}
	snap.ViewID = viewID

	rows, err := sess.DB().QueryContext(ctx, `
		SELECT MEMBER_ID, MEMBER_HOST, MEMBER_PORT, MEMBER_STATE, MEMBER_ROLE, MEMBER_VERSION
		FROM performance_schema.replication_group_members
		ORDER BY MEMBER_HOST, MEMBER_PORT`)
	if err != nil {
		return nil, fmt.Errorf("grprobe: querying replication_group_members: %w", err)
	}
	defer rows.Close()

	online := 0
	for rows.Next() {
		var mv MemberView
		var state, role, version sql.NullString
		if err := rows.Scan(&mv.UUID, &mv.Host, &mv.Port, &state, &role, &version); err != nil {
			return nil, fmt.Errorf("grprobe: scanning member row: %w", err)
		}
		mv.State = metadata.MemberState(state.String)
		mv.Role = metadata.MemberRole(role.String)
		mv.Version = version.String
		if mv.State == metadata.MemberOnline {
			online++
			if mv.Role == metadata.RolePrimary {
				v := mv
				snap.Primary = &v
			}
		}
		snap.Members = append(snap.Members, mv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	snap.Availability, snap.HasQuorum = classifyAvailability(snap, online)
	return snap, nil
}

// classifyAvailability derives the group's Cluster_availability-style
// classification from the member list the probing instance can see. It
// can only ever report what this one instance observes: from a minority
// partition, members on the other side simply look UNREACHABLE/OFFLINE.
func classifyAvailability(snap *Snapshot, online int) (Availability, bool) {
	total := len(snap.Members)
	if total == 0 {
		return AvailabilityUnreachable, false
	}

	unreachable := 0
	for _, m := range snap.Members {
		if m.State == metadata.MemberUnreachable {
			unreachable++
		}
	}

	hasQuorum := online*2 > total

	switch {
	case online == 0:
		return AvailabilityOffline, false
	case !hasQuorum:
		return AvailabilityNoQuorum, false
	case snap.SinglePrimary && snap.Primary == nil:
		return AvailabilityOnlineNoPrimary, true
	case unreachable > 0:
		return AvailabilitySomeUnreachable, true
	default:
		return AvailabilityOnline, true
	}
}
