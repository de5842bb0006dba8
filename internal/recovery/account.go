package recovery

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/myshdb/clusteradm/internal/metadata"
	"github.com/myshdb/clusteradm/internal/mysqlsess"
	"github.com/myshdb/clusteradm/internal/sqlguard"
)

// AccountManager creates, rotates and cleans up recovery (replication)
// accounts, grounded on create_replication_user /
// create_local_replication_user / clean_replication_user /
// restore_recovery_account_all_members in cluster_join.cc.
type AccountManager struct {
	Store *metadata.Store
}

// NewAccountManager binds an account manager to a metadata store.
func NewAccountManager(store *metadata.Store) *AccountManager {
	return &AccountManager{Store: store}
}

// Credentials is a generated recovery account's authentication material.
type Credentials struct {
	User     string
	Host     string
	Password string
}

// accountUserPrefix matches the shell's mysql_innodb_cluster_<server_id>
// naming convention for recovery accounts.
const accountUserPrefix = "mysql_innodb_cluster_"

// GenerateAccountName derives a recovery account name from a member's
// server_id, matching the naming scheme above.
func GenerateAccountName(serverID uint32) string {
	return fmt.Sprintf("%s%d", accountUserPrefix, serverID)
}

// CreateReplicationUser creates a cluster-wide recovery account on the
// donor (normally the primary), granted REPLICATION SLAVE plus the
// clone/backup privileges distributed recovery needs. host is typically
// "%" for the XCom stack (any member may need to replicate from any
// other) as per create_replication_user.
func (m *AccountManager) CreateReplicationUser(ctx context.Context, on *mysqlsess.Session, user, host string) (Credentials, error) {
	host, err := sqlguard.EscapeAccountHost(host)
	if err != nil {
		return Credentials{}, err
	}
	password, err := randomPassword()
	if err != nil {
		return Credentials{}, fmt.Errorf("recovery: generating password: %w", err)
	}

	createSQL := fmt.Sprintf("CREATE USER %s IDENTIFIED BY ?", accountAt(user, host))
	if err := sqlguard.MustBeStatementKind(fmt.Sprintf("CREATE USER %s IDENTIFIED BY 'x'", accountAt(user, host)), sqlguard.KindCreateUser); err != nil {
		return Credentials{}, err
	}
	if _, err := on.DB().ExecContext(ctx, createSQL, password); err != nil {
		return Credentials{}, fmt.Errorf("recovery: creating account %s: %w", user, err)
	}

	grantSQL := fmt.Sprintf("GRANT REPLICATION SLAVE, BACKUP_ADMIN, CLONE_ADMIN ON *.* TO %s", accountAt(user, host))
	if err := sqlguard.MustBeStatementKind(grantSQL, sqlguard.KindGrant); err != nil {
		return Credentials{}, err
	}
	if _, err := on.DB().ExecContext(ctx, grantSQL); err != nil {
		return Credentials{}, fmt.Errorf("recovery: granting privileges to %s: %w", user, err)
	}

	return Credentials{User: user, Host: host, Password: password}, nil
}

// CreateLocalReplicationUser creates a recovery account local to the
// target instance only, with binary logging disabled so the account
// creation doesn't become an errant transaction on the rest of the group.
// Required when the cluster uses the "MySQL" communication stack, per
// create_local_replication_user.
func (m *AccountManager) CreateLocalReplicationUser(ctx context.Context, target *mysqlsess.Session, user string) (Credentials, error) {
	if _, err := target.DB().ExecContext(ctx, "SET sql_log_bin = 0"); err != nil {
		return Credentials{}, fmt.Errorf("recovery: disabling binlog for local account creation: %w", err)
	}
	defer target.DB().ExecContext(ctx, "SET sql_log_bin = 1")

	return m.CreateReplicationUser(ctx, target, user, "localhost")
}

// CleanReplicationUser drops a recovery account, e.g. after a failed join
// or when restoring per-member accounts on the "MySQL" stack.
func (m *AccountManager) CleanReplicationUser(ctx context.Context, on *mysqlsess.Session, user, host string) error {
	dropSQL := fmt.Sprintf("DROP USER IF EXISTS %s", accountAt(user, host))
	if _, err := on.DB().ExecContext(ctx, dropSQL); err != nil {
		return fmt.Errorf("recovery: dropping account %s: %w", user, err)
	}
	return nil
}

// RestoreRecoveryAccountAllMembers recreates a distinct local recovery
// account on each active member of a "MySQL"-comm-stack cluster, so every
// member authenticates distributed recovery with its own credentials
// instead of one shared account created for whichever instance joined
// most recently — mirrors restore_recovery_account_all_members.
func (m *AccountManager) RestoreRecoveryAccountAllMembers(ctx context.Context, members map[string]*mysqlsess.Session, serverIDs map[string]uint32) (map[string]Credentials, error) {
	out := make(map[string]Credentials, len(members))
	for uuid, sess := range members {
		user := GenerateAccountName(serverIDs[uuid])
		creds, err := m.CreateLocalReplicationUser(ctx, sess, user)
		if err != nil {
			return nil, fmt.Errorf("recovery: restoring recovery account for member %s: %w", uuid, err)
		}
		out[uuid] = creds
	}
	return out, nil
}

// ChangeRecoveryCredentialsAllMembers pushes new recovery credentials to
// every member's replication channel configuration (CHANGE REPLICATION
// SOURCE TO ... FOR CHANNEL 'group_replication_recovery'), used after a
// credential rotation.
func ChangeRecoveryCredentialsAllMembers(ctx context.Context, members []*mysqlsess.Session, creds Credentials) error {
	stmt := fmt.Sprintf(
		"CHANGE REPLICATION SOURCE TO SOURCE_USER=?, SOURCE_PASSWORD=? FOR CHANNEL 'group_replication_recovery'",
	)
	if err := sqlguard.MustBeStatementKind("CHANGE REPLICATION SOURCE TO SOURCE_USER='x'", sqlguard.KindChangeSource); err != nil {
		return err
	}
	for _, sess := range members {
		if _, err := sess.DB().ExecContext(ctx, stmt, creds.User, creds.Password); err != nil {
			return fmt.Errorf("recovery: updating recovery credentials on %s: %w", sess.Endpoint(), err)
		}
	}
	return nil
}

func accountAt(user, host string) string {
	return fmt.Sprintf("'%s'@'%s'", user, host)
}

func randomPassword() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
