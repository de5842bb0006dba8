// Package metadata implements the Metadata Store: the transactional
// catalog of clusters, members, recovery accounts, cluster sets and
// routers, backed by a real schema inside the managed server (grounded on
// the query/escaping conventions in the instance session layer).
package metadata

import "time"

// MemberState mirrors performance_schema.replication_group_members.MEMBER_STATE.
type MemberState string

const (
	MemberOnline      MemberState = "ONLINE"
	MemberRecovering  MemberState = "RECOVERING"
	MemberOffline     MemberState = "OFFLINE"
	MemberError       MemberState = "ERROR"
	MemberUnreachable MemberState = "UNREACHABLE"
)

// MemberRole mirrors MEMBER_ROLE.
type MemberRole string

const (
	RolePrimary   MemberRole = "PRIMARY"
	RoleSecondary MemberRole = "SECONDARY"
)

// RecoveryMethod is the chosen distributed-recovery strategy for a joining
// member.
type RecoveryMethod string

const (
	RecoveryIncremental RecoveryMethod = "INCREMENTAL"
	RecoveryClone       RecoveryMethod = "CLONE"
	RecoveryAuto        RecoveryMethod = "AUTO"
)

// CommStack is the group replication communication stack in use.
type CommStack string

const (
	CommStackXCom  CommStack = "XCOM"
	CommStackMySQL CommStack = "MYSQL"
)

// Cluster is the top-level entity: one InnoDB Cluster (Group Replication
// group) tracked by the metadata store.
type Cluster struct {
	ID                int64
	Name              string
	GroupName         string // group_replication_group_name UUID
	CommStack         CommStack
	SinglePrimary     bool   // group_replication_single_primary_mode at creation time
	ClusterSetID      *int64 // non-nil when this cluster belongs to a ClusterSet
	IsPrimaryCluster  bool   // within its ClusterSet, if any
	Fenced            bool
	CreatedAt         time.Time
}

// Member is one instance participating in a Cluster's Group Replication
// group.
type Member struct {
	ID            int64
	ClusterID     int64
	UUID          string // server_uuid
	Endpoint      string // host:port
	Role          MemberRole
	State         MemberState
	Label         string
	RecoveryAccountUser string
	JoinedAt      time.Time
}

// RecoveryAccount is a replication credential created for a member's
// distributed recovery channel.
type RecoveryAccount struct {
	ID        int64
	ClusterID int64
	MemberID  int64
	User      string
	Host      string // account host pattern, e.g. "%" or a specific IP
	Local     bool   // true for "MySQL" comm-stack local-only accounts
	CreatedAt time.Time
}

// ClusterSet groups multiple Clusters into a primary/replica federation.
type ClusterSet struct {
	ID               int64
	Name             string
	DomainName       string
	PrimaryClusterID int64
	CreatedAt        time.Time
}

// Router is a registered MySQL Router instance.
type Router struct {
	ID            int64
	ClusterSetID  *int64
	ClusterID     *int64
	Name          string
	Address       string
	LastCheckIn   time.Time
	Version       string
	// SupportedGuidelineVersion is the highest routing guideline schema
	// version this router build understands. SetRoutingOption refuses to
	// activate a guideline newer than the lowest value reported across
	// every registered router.
	SupportedGuidelineVersion int
}

// RoutingOptions holds per-router or global routing configuration (opaque
// guideline content lives in RoutingGuideline.Document).
type RoutingOptions struct {
	ID           int64
	ClusterSetID *int64
	RouterID     *int64 // nil means global/default for the ClusterSet
	Options      map[string]any
}

// RoutingGuideline is a named, versioned routing guideline document.
type RoutingGuideline struct {
	ID           int64
	ClusterSetID int64
	Name         string
	Document     string // opaque JSON guideline content
	Version      int    // guideline schema version, checked against routers' SupportedGuidelineVersion
	Active       bool
	CreatedAt    time.Time
}

// MetadataState orders the compatibility actions a command may take
// depending on how stale the local metadata schema is versus the server.
type MetadataState string

const (
	MetadataOK          MetadataState = "OK"
	MetadataUpgradePending MetadataState = "UPGRADE_PENDING"
	MetadataUpgrading   MetadataState = "UPGRADING"
	MetadataFailedUpgrade MetadataState = "FAILED_UPGRADE"
	MetadataNoSchema    MetadataState = "NO_SCHEMA"
)
