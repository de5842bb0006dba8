package metadata

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/myshdb/clusteradm/internal/mysqlsess"
	"github.com/myshdb/clusteradm/internal/sqlguard"
)

// SchemaName is the catalog's fixed schema name inside the managed server,
// mirroring mysql_innodb_cluster_metadata.
const SchemaName = "mysql_innodb_cluster_metadata"

// Store is the Metadata Store: a transactional catalog backed by the
// schema above, with an in-memory read cache that is explicitly
// invalidated after any write or topology-affecting probe, rather than
// re-read on every call.
type Store struct {
	sess *mysqlsess.Session

	mu      sync.RWMutex
	cache   map[int64]*Cluster
	members map[int64][]*Member
	valid   bool
}

// New wraps a session as a metadata store.
func New(sess *mysqlsess.Session) *Store {
	return &Store{sess: sess}
}

// Invalidate drops the read cache; the next Get* call repopulates it.
// Called after any mutating operation and whenever the GR Probe observes
// a topology change the store didn't itself cause (e.g. a member dropping
// out on its own).
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valid = false
	s.cache = nil
	s.members = nil
}

// EnsureSchema creates the metadata schema and tables if they do not yet
// exist. Idempotent: safe to call on every bootstrap/join/reboot.
func (s *Store) EnsureSchema(ctx context.Context) error {
	db := s.sess.DB()
	stmts := []string{
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", sqlguard.EscapeIdentifier(SchemaName)),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.clusters (
			cluster_id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			group_name VARCHAR(36) NOT NULL,
			comm_stack VARCHAR(16) NOT NULL DEFAULT 'XCOM',
			single_primary BOOLEAN NOT NULL DEFAULT TRUE,
			cluster_set_id BIGINT NULL,
			is_primary_cluster BOOLEAN NOT NULL DEFAULT TRUE,
			fenced BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		) ENGINE=InnoDB`, SchemaName),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.members (
			member_id BIGINT AUTO_INCREMENT PRIMARY KEY,
			cluster_id BIGINT NOT NULL,
			uuid VARCHAR(36) NOT NULL,
			endpoint VARCHAR(255) NOT NULL,
			role VARCHAR(16) NOT NULL DEFAULT 'SECONDARY',
			state VARCHAR(16) NOT NULL DEFAULT 'OFFLINE',
			label VARCHAR(255) NOT NULL DEFAULT '',
			recovery_account_user VARCHAR(255) NOT NULL DEFAULT '',
			joined_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uq_cluster_uuid (cluster_id, uuid)
		) ENGINE=InnoDB`, SchemaName),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.recovery_accounts (
			account_id BIGINT AUTO_INCREMENT PRIMARY KEY,
			cluster_id BIGINT NOT NULL,
			member_id BIGINT NOT NULL,
			user VARCHAR(32) NOT NULL,
			host VARCHAR(255) NOT NULL,
			local BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		) ENGINE=InnoDB`, SchemaName),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.cluster_sets (
			cluster_set_id BIGINT AUTO_INCREMENT PRIMARY KEY,
			name VARCHAR(255) NOT NULL UNIQUE,
			domain_name VARCHAR(255) NOT NULL,
			primary_cluster_id BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		) ENGINE=InnoDB`, SchemaName),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.routers (
			router_id BIGINT AUTO_INCREMENT PRIMARY KEY,
			cluster_set_id BIGINT NULL,
			cluster_id BIGINT NULL,
			name VARCHAR(255) NOT NULL,
			address VARCHAR(255) NOT NULL,
			last_check_in TIMESTAMP NULL,
			version VARCHAR(32) NOT NULL DEFAULT '',
			supported_guideline_version INT NOT NULL DEFAULT 1
		) ENGINE=InnoDB`, SchemaName),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.routing_guidelines (
			guideline_id BIGINT AUTO_INCREMENT PRIMARY KEY,
			cluster_set_id BIGINT NOT NULL,
			name VARCHAR(255) NOT NULL,
			document JSON NOT NULL,
			version INT NOT NULL DEFAULT 1,
			active BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uq_clusterset_name (cluster_set_id, name)
		) ENGINE=InnoDB`, SchemaName),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("metadata: ensuring schema: %w", err)
		}
	}
	return nil
}

// CreateCluster inserts a new cluster row and returns its ID.
func (s *Store) CreateCluster(ctx context.Context, c *Cluster) (int64, error) {
	res, err := s.sess.DB().ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s.clusters (name, group_name, comm_stack, single_primary, cluster_set_id, is_primary_cluster, fenced)
			VALUES (?, ?, ?, ?, ?, ?, ?)`, SchemaName),
		c.Name, c.GroupName, string(c.CommStack), c.SinglePrimary, c.ClusterSetID, c.IsPrimaryCluster, c.Fenced,
	)
	if err != nil {
		return 0, fmt.Errorf("metadata: creating cluster %q: %w", c.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.Invalidate()
	return id, nil
}

// GetClusterByName returns the cluster with the given name, using the
// read cache when valid.
func (s *Store) GetClusterByName(ctx context.Context, name string) (*Cluster, error) {
	s.mu.RLock()
	if s.valid {
		for _, c := range s.cache {
			if c.Name == name {
				defer s.mu.RUnlock()
				return c, nil
			}
		}
	}
	s.mu.RUnlock()

	row := s.sess.DB().QueryRowContext(ctx,
		fmt.Sprintf(`SELECT cluster_id, name, group_name, comm_stack, single_primary, cluster_set_id, is_primary_cluster, fenced, created_at
			FROM %s.clusters WHERE name = ?`, SchemaName), name)

	c := &Cluster{}
	var commStack string
	var clusterSetID sql.NullInt64
	if err := row.Scan(&c.ID, &c.Name, &c.GroupName, &commStack, &c.SinglePrimary, &clusterSetID, &c.IsPrimaryCluster, &c.Fenced, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("metadata: cluster %q not found", name)
		}
		return nil, fmt.Errorf("metadata: reading cluster %q: %w", name, err)
	}
	c.CommStack = CommStack(commStack)
	if clusterSetID.Valid {
		v := clusterSetID.Int64
		c.ClusterSetID = &v
	}

	s.mu.Lock()
	if s.cache == nil {
		s.cache = map[int64]*Cluster{}
	}
	s.cache[c.ID] = c
	s.valid = true
	s.mu.Unlock()

	return c, nil
}

// GetClusterByID returns the cluster with the given ID, using the read
// cache when valid.
func (s *Store) GetClusterByID(ctx context.Context, id int64) (*Cluster, error) {
	s.mu.RLock()
	if s.valid {
		if c, ok := s.cache[id]; ok {
			defer s.mu.RUnlock()
			return c, nil
		}
	}
	s.mu.RUnlock()

	row := s.sess.DB().QueryRowContext(ctx,
		fmt.Sprintf(`SELECT cluster_id, name, group_name, comm_stack, single_primary, cluster_set_id, is_primary_cluster, fenced, created_at
			FROM %s.clusters WHERE cluster_id = ?`, SchemaName), id)

	c := &Cluster{}
	var commStack string
	var clusterSetID sql.NullInt64
	if err := row.Scan(&c.ID, &c.Name, &c.GroupName, &commStack, &c.SinglePrimary, &clusterSetID, &c.IsPrimaryCluster, &c.Fenced, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("metadata: cluster id %d not found", id)
		}
		return nil, fmt.Errorf("metadata: reading cluster id %d: %w", id, err)
	}
	c.CommStack = CommStack(commStack)
	if clusterSetID.Valid {
		v := clusterSetID.Int64
		c.ClusterSetID = &v
	}

	s.mu.Lock()
	if s.cache == nil {
		s.cache = map[int64]*Cluster{}
	}
	s.cache[c.ID] = c
	s.valid = true
	s.mu.Unlock()

	return c, nil
}

// GetClusterByGroupName looks up the cluster whose Group Replication
// group_name matches a live instance's own group_replication_group_name,
// used by the precondition checker to tell a metadata-managed GR group
// apart from one Group Replication happens to be running unmanaged.
func (s *Store) GetClusterByGroupName(ctx context.Context, groupName string) (*Cluster, error) {
	row := s.sess.DB().QueryRowContext(ctx,
		fmt.Sprintf(`SELECT cluster_id, name, group_name, comm_stack, single_primary, cluster_set_id, is_primary_cluster, fenced, created_at
			FROM %s.clusters WHERE group_name = ?`, SchemaName), groupName)

	c := &Cluster{}
	var commStack string
	var clusterSetID sql.NullInt64
	if err := row.Scan(&c.ID, &c.Name, &c.GroupName, &commStack, &c.SinglePrimary, &clusterSetID, &c.IsPrimaryCluster, &c.Fenced, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("metadata: no cluster registered for group %q", groupName)
		}
		return nil, fmt.Errorf("metadata: reading cluster for group %q: %w", groupName, err)
	}
	c.CommStack = CommStack(commStack)
	if clusterSetID.Valid {
		v := clusterSetID.Int64
		c.ClusterSetID = &v
	}
	return c, nil
}

// FindMemberByUUID searches every cluster's member list for a server_uuid,
// used by the precondition checker to distinguish an instance whose GR
// group isn't currently running but that metadata still remembers as a
// cluster member (StandaloneInMetadata) from one metadata has never heard
// of (StandaloneWithMetadata).
func (s *Store) FindMemberByUUID(ctx context.Context, uuid string) (*Member, error) {
	row := s.sess.DB().QueryRowContext(ctx,
		fmt.Sprintf(`SELECT member_id, cluster_id, uuid, endpoint, role, state, label, recovery_account_user, joined_at
			FROM %s.members WHERE uuid = ? LIMIT 1`, SchemaName), uuid)

	m := &Member{}
	var role, state string
	if err := row.Scan(&m.ID, &m.ClusterID, &m.UUID, &m.Endpoint, &role, &state, &m.Label, &m.RecoveryAccountUser, &m.JoinedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("metadata: looking up member %q: %w", uuid, err)
	}
	m.Role = MemberRole(role)
	m.State = MemberState(state)
	return m, nil
}

// SchemaExists reports whether the metadata schema has been created on
// this server at all, distinguishing a bare standalone instance from one
// that has at least been bootstrapped as a metadata holder.
func (s *Store) SchemaExists(ctx context.Context) (bool, error) {
	var name string
	err := s.sess.DB().QueryRowContext(ctx,
		"SELECT SCHEMA_NAME FROM information_schema.SCHEMATA WHERE SCHEMA_NAME = ?", SchemaName).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("metadata: checking schema existence: %w", err)
	}
	return true, nil
}

// ListMembers returns every member row tracked for a cluster, ordered by
// join time (oldest first, matching join-order semantics the recovery
// chooser and reboot engine rely on for "pick the most advanced member").
func (s *Store) ListMembers(ctx context.Context, clusterID int64) ([]*Member, error) {
	s.mu.RLock()
	if s.valid {
		if m, ok := s.members[clusterID]; ok {
			defer s.mu.RUnlock()
			return m, nil
		}
	}
	s.mu.RUnlock()

	rows, err := s.sess.DB().QueryContext(ctx,
		fmt.Sprintf(`SELECT member_id, cluster_id, uuid, endpoint, role, state, label, recovery_account_user, joined_at
			FROM %s.members WHERE cluster_id = ? ORDER BY joined_at ASC`, SchemaName), clusterID)
	if err != nil {
		return nil, fmt.Errorf("metadata: listing members of cluster %d: %w", clusterID, err)
	}
	defer rows.Close()

	var out []*Member
	for rows.Next() {
		m := &Member{}
		var role, state string
		if err := rows.Scan(&m.ID, &m.ClusterID, &m.UUID, &m.Endpoint, &role, &state, &m.Label, &m.RecoveryAccountUser, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("metadata: scanning member row: %w", err)
		}
		m.Role = MemberRole(role)
		m.State = MemberState(state)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.members == nil {
		s.members = map[int64][]*Member{}
	}
	s.members[clusterID] = out
	s.valid = true
	s.mu.Unlock()

	return out, nil
}

// AddMember inserts a member row for a joining instance.
func (s *Store) AddMember(ctx context.Context, m *Member) (int64, error) {
	res, err := s.sess.DB().ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s.members (cluster_id, uuid, endpoint, role, state, label, recovery_account_user)
			VALUES (?, ?, ?, ?, ?, ?, ?)`, SchemaName),
		m.ClusterID, m.UUID, m.Endpoint, string(m.Role), string(m.State), m.Label, m.RecoveryAccountUser,
	)
	if err != nil {
		return 0, fmt.Errorf("metadata: adding member %s: %w", m.Endpoint, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.Invalidate()
	return id, nil
}

// UpdateMemberState updates the tracked state/role for a member, e.g.
// after a GR Probe observation.
func (s *Store) UpdateMemberState(ctx context.Context, memberID int64, state MemberState, role MemberRole) error {
	_, err := s.sess.DB().ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s.members SET state = ?, role = ? WHERE member_id = ?`, SchemaName),
		string(state), string(role), memberID,
	)
	if err != nil {
		return fmt.Errorf("metadata: updating member %d: %w", memberID, err)
	}
	s.Invalidate()
	return nil
}

// RemoveMember deletes a member row (removeInstance, or cleanup after a
// failed join).
func (s *Store) RemoveMember(ctx context.Context, memberID int64) error {
	_, err := s.sess.DB().ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s.members WHERE member_id = ?`, SchemaName), memberID)
	if err != nil {
		return fmt.Errorf("metadata: removing member %d: %w", memberID, err)
	}
	s.Invalidate()
	return nil
}

// RecordRecoveryAccount persists a recovery account created for a member.
func (s *Store) RecordRecoveryAccount(ctx context.Context, a *RecoveryAccount) (int64, error) {
	res, err := s.sess.DB().ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s.recovery_accounts (cluster_id, member_id, user, host, local) VALUES (?, ?, ?, ?, ?)`, SchemaName),
		a.ClusterID, a.MemberID, a.User, a.Host, a.Local,
	)
	if err != nil {
		return 0, fmt.Errorf("metadata: recording recovery account for member %d: %w", a.MemberID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.Invalidate()
	return id, nil
}

// CreateClusterSet registers a new ClusterSet rooted at an existing
// primary cluster.
func (s *Store) CreateClusterSet(ctx context.Context, cs *ClusterSet) (int64, error) {
	res, err := s.sess.DB().ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s.cluster_sets (name, domain_name, primary_cluster_id) VALUES (?, ?, ?)`, SchemaName),
		cs.Name, cs.DomainName, cs.PrimaryClusterID,
	)
	if err != nil {
		return 0, fmt.Errorf("metadata: creating cluster set %q: %w", cs.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if _, err := s.sess.DB().ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s.clusters SET cluster_set_id = ?, is_primary_cluster = TRUE WHERE cluster_id = ?`, SchemaName),
		id, cs.PrimaryClusterID); err != nil {
		return 0, fmt.Errorf("metadata: linking primary cluster to cluster set: %w", err)
	}
	s.Invalidate()
	return id, nil
}

// GetClusterSetByName returns the cluster set with the given name.
func (s *Store) GetClusterSetByName(ctx context.Context, name string) (*ClusterSet, error) {
	row := s.sess.DB().QueryRowContext(ctx,
		fmt.Sprintf(`SELECT cluster_set_id, name, domain_name, primary_cluster_id, created_at
			FROM %s.cluster_sets WHERE name = ?`, SchemaName), name)

	cs := &ClusterSet{}
	if err := row.Scan(&cs.ID, &cs.Name, &cs.DomainName, &cs.PrimaryClusterID, &cs.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("metadata: cluster set %q not found", name)
		}
		return nil, fmt.Errorf("metadata: reading cluster set %q: %w", name, err)
	}
	return cs, nil
}

// UpdateClusterSetPrimary persists a ClusterSet primary-role switchover:
// the new primary cluster's row is flagged is_primary_cluster, every other
// cluster in the set is flagged a replica, and the set's own
// primary_cluster_id pointer is updated to match.
func (s *Store) UpdateClusterSetPrimary(ctx context.Context, clusterSetID, newPrimaryClusterID int64) error {
	tx, err := s.sess.DB().BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s.clusters SET is_primary_cluster = FALSE WHERE cluster_set_id = ?`, SchemaName),
		clusterSetID); err != nil {
		return fmt.Errorf("metadata: clearing prior primary flag: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s.clusters SET is_primary_cluster = TRUE WHERE cluster_id = ?`, SchemaName),
		newPrimaryClusterID); err != nil {
		return fmt.Errorf("metadata: setting new primary flag: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s.cluster_sets SET primary_cluster_id = ? WHERE cluster_set_id = ?`, SchemaName),
		newPrimaryClusterID, clusterSetID); err != nil {
		return fmt.Errorf("metadata: updating cluster set primary pointer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// UpsertRoutingGuideline inserts or replaces a named routing guideline for
// a ClusterSet, deactivating prior active guidelines when active is set.
func (s *Store) UpsertRoutingGuideline(ctx context.Context, g *RoutingGuideline) (int64, error) {
	tx, err := s.sess.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if g.Active {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s.routing_guidelines SET active = FALSE WHERE cluster_set_id = ?`, SchemaName),
			g.ClusterSetID); err != nil {
			return 0, fmt.Errorf("metadata: deactivating prior guidelines: %w", err)
		}
	}

	if g.Version == 0 {
		g.Version = 1
	}
	res, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s.routing_guidelines (cluster_set_id, name, document, version, active)
			VALUES (?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE document = VALUES(document), version = VALUES(version), active = VALUES(active)`, SchemaName),
		g.ClusterSetID, g.Name, g.Document, g.Version, g.Active,
	)
	if err != nil {
		return 0, fmt.Errorf("metadata: upserting routing guideline %q: %w", g.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	id, _ := res.LastInsertId()
	s.Invalidate()
	return id, nil
}

// ListRoutingGuidelines returns every guideline registered for a
// ClusterSet.
func (s *Store) ListRoutingGuidelines(ctx context.Context, clusterSetID int64) ([]*RoutingGuideline, error) {
	rows, err := s.sess.DB().QueryContext(ctx,
		fmt.Sprintf(`SELECT guideline_id, cluster_set_id, name, document, version, active, created_at
			FROM %s.routing_guidelines WHERE cluster_set_id = ?`, SchemaName), clusterSetID)
	if err != nil {
		return nil, fmt.Errorf("metadata: listing routing guidelines: %w", err)
	}
	defer rows.Close()

	var out []*RoutingGuideline
	for rows.Next() {
		g := &RoutingGuideline{}
		if err := rows.Scan(&g.ID, &g.ClusterSetID, &g.Name, &g.Document, &g.Version, &g.Active, &g.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// ListRouters returns every router registered against a ClusterSet,
// mirroring ListRoutingGuidelines' read shape. Used by SetRoutingOption to
// check a routing_guideline's version against what every registered
// router actually supports before activating it.
func (s *Store) ListRouters(ctx context.Context, clusterSetID int64) ([]*Router, error) {
	rows, err := s.sess.DB().QueryContext(ctx,
		fmt.Sprintf(`SELECT router_id, cluster_set_id, cluster_id, name, address, last_check_in, version, supported_guideline_version
			FROM %s.routers WHERE cluster_set_id = ?`, SchemaName), clusterSetID)
	if err != nil {
		return nil, fmt.Errorf("metadata: listing routers: %w", err)
	}
	defer rows.Close()

	var out []*Router
	for rows.Next() {
		r := &Router{}
		var clusterSetIDVal, clusterID sql.NullInt64
		var lastCheckIn sql.NullTime
		if err := rows.Scan(&r.ID, &clusterSetIDVal, &clusterID, &r.Name, &r.Address, &lastCheckIn, &r.Version, &r.SupportedGuidelineVersion); err != nil {
			return nil, err
		}
		if clusterSetIDVal.Valid {
			v := clusterSetIDVal.Int64
			r.ClusterSetID = &v
		}
		if clusterID.Valid {
			v := clusterID.Int64
			r.ClusterID = &v
		}
		if lastCheckIn.Valid {
			r.LastCheckIn = lastCheckIn.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RegisterRouter inserts or refreshes a router's registration row, the
// write side ListRouters reads back from.
func (s *Store) RegisterRouter(ctx context.Context, r *Router) (int64, error) {
	if r.SupportedGuidelineVersion == 0 {
		r.SupportedGuidelineVersion = 1
	}
	res, err := s.sess.DB().ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s.routers (cluster_set_id, cluster_id, name, address, last_check_in, version, supported_guideline_version)
			VALUES (?, ?, ?, ?, NOW(), ?, ?)`, SchemaName),
		r.ClusterSetID, r.ClusterID, r.Name, r.Address, r.Version, r.SupportedGuidelineVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("metadata: registering router %q: %w", r.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.Invalidate()
	return id, nil
}
