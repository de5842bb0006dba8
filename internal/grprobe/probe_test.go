package grprobe

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/myshdb/clusteradm/internal/metadata"
	"github.com/myshdb/clusteradm/internal/mysqlsess"
)

func TestProbeNotAMember(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New(): %v", err)
	}
	defer db.Close()
	sess := mysqlsess.NewSessionForTesting(db)

	mock.ExpectQuery("SHOW GLOBAL VARIABLES LIKE").
		WillReturnRows(sqlmock.NewRows([]string{"Variable_name", "Value"}))

	snap, err := Probe(context.Background(), sess, false)
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if snap != nil {
		t.Errorf("expected nil snapshot for non-GR instance, got %+v", snap)
	}
}

func TestClassifyAvailability(t *testing.T) {
	tests := []struct {
		name          string
		members       []MemberView
		online        int
		singlePrimary bool
		primary       *MemberView
		wantAvail     Availability
		wantQuorum    bool
	}{
		{
			name:    "no members at all",
			members: nil,
			online:  0,
			wantAvail: AvailabilityUnreachable,
		},
		{
			name: "all offline",
			members: []MemberView{
				{State: metadata.MemberOffline}, {State: metadata.MemberOffline}, {State: metadata.MemberOffline},
			},
			online:    0,
			wantAvail: AvailabilityOffline,
		},
		{
			name: "minority partition loses quorum",
			members: []MemberView{
				{State: metadata.MemberOnline}, {State: metadata.MemberUnreachable}, {State: metadata.MemberUnreachable},
			},
			online:    1,
			wantAvail: AvailabilityNoQuorum,
		},
		{
			name: "majority online no primary visible",
			members: []MemberView{
				{State: metadata.MemberOnline}, {State: metadata.MemberOnline}, {State: metadata.MemberOffline},
			},
			online:        2,
			singlePrimary: true,
			wantAvail:     AvailabilityOnlineNoPrimary,
			wantQuorum:    true,
		},
		{
			name: "fully online with primary",
			members: []MemberView{
				{State: metadata.MemberOnline, Role: metadata.RolePrimary}, {State: metadata.MemberOnline},
			},
			online:        2,
			singlePrimary: true,
			primary:       &MemberView{State: metadata.MemberOnline, Role: metadata.RolePrimary},
			wantAvail:     AvailabilityOnline,
			wantQuorum:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := &Snapshot{Members: tt.members, SinglePrimary: tt.singlePrimary, Primary: tt.primary}
			avail, quorum := classifyAvailability(snap, tt.online)
			if avail != tt.wantAvail {
				t.Errorf("classifyAvailability() avail = %v, want %v", avail, tt.wantAvail)
			}
			if quorum != tt.wantQuorum {
				t.Errorf("classifyAvailability() quorum = %v, want %v", quorum, tt.wantQuorum)
			}
		})
	}
}
