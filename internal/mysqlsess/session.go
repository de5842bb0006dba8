// Package mysqlsess provides the Instance Session: a thin, pooled
// database/sql wrapper used by every other component to talk to a managed
// MySQL server.
package mysqlsess

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"fmt"
	"os"
	"syscall"

	mysqldriver "github.com/go-sql-driver/mysql"
	"golang.org/x/term"
)

// ConnectionConfig holds MySQL connection parameters for a single member.
type ConnectionConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Socket   string
	TLSMode  string // "", "disabled", "preferred", "required", "skip-verify", "custom"
	TLSCA    string // path to CA certificate file (required when TLSMode == "custom")
}

// Endpoint returns the host:port (or socket path) this config targets, the
// same form used in the metadata store's Member.Endpoint.
func (c ConnectionConfig) Endpoint() string {
	if c.Socket != "" {
		return c.Socket
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Session is a connected instance, wrapping a pooled *sql.DB with the
// sysvar/status helpers the rest of the engine relies on.
type Session struct {
	db   *sql.DB
	cfg  ConnectionConfig
}

// Connect establishes a session against a single MySQL instance.
func Connect(ctx context.Context, cfg ConnectionConfig) (*Session, error) {
	if cfg.TLSMode == "custom" {
		if cfg.TLSCA == "" {
			return nil, fmt.Errorf("--tls-ca is required when --tls=custom")
		}
		if err := registerCustomTLS(cfg.TLSCA); err != nil {
			return nil, fmt.Errorf("TLS setup failed: %w", err)
		}
	}

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Endpoint(), err)
	}

	// Conservative pool: the admin engine holds at most a handful of
	// concurrent sessions (group server, joiner, optional donor).
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	return &Session{db: db, cfg: cfg}, nil
}

// DB exposes the underlying pool for callers that need raw database/sql
// access (metadata store, sqlguard-validated DDL/DML).
func (s *Session) DB() *sql.DB { return s.db }

// Endpoint returns the host:port (or socket) this session is connected to.
func (s *Session) Endpoint() string { return s.cfg.Endpoint() }

// Close releases the underlying pool.
func (s *Session) Close() error { return s.db.Close() }

// Reconnect re-opens the pool after a CR_SERVER_LOST / driver.ErrBadConn,
// mirroring the single-retry policy described for connection loss.
func (s *Session) Reconnect(ctx context.Context) error {
	s.db.Close()
	fresh, err := Connect(ctx, s.cfg)
	if err != nil {
		return err
	}
	*s = *fresh
	return nil
}

// WithEndpoint opens a short-lived session to a different host:port using
// this session's own credentials and TLS settings, the same connection
// parameters the caller already trusts for this cluster. Used wherever a
// component holds one authenticated session but needs to briefly probe
// other members of the same group (e.g. comparing GTID state against
// every ONLINE member instead of just one donor).
func (s *Session) WithEndpoint(ctx context.Context, host string, port int) (*Session, error) {
	cfg := s.cfg
	cfg.Host, cfg.Port, cfg.Socket = host, port, ""
	return Connect(ctx, cfg)
}

// Scope selects GLOBAL vs SESSION for GetSysvar/SetSysvar.
type Scope int

const (
	ScopeGlobal Scope = iota
	ScopeSession
)

// PersistMode selects how SetSysvar writes through to disk.
type PersistMode int

const (
	PersistNone PersistMode = iota
	PersistGlobal
	PersistOnly
)

// GetSysvar reads a single system variable, escaping it for a LIKE clause
// the same way the connection helpers this is grounded on do.
func (s *Session) GetSysvar(ctx context.Context, name string, scope Scope) (string, error) {
	escaped := escapeLike(name)
	kw := "GLOBAL"
	if scope == ScopeSession {
		kw = "SESSION"
	}
	var varName, value sql.NullString
	query := fmt.Sprintf("SHOW %s VARIABLES LIKE '%s'", kw, escaped)
	err := s.db.QueryRowContext(ctx, query).Scan(&varName, &value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	if !value.Valid {
		return "", nil
	}
	return value.String, nil
}

// GetStatus reads a single global status variable.
func (s *Session) GetStatus(ctx context.Context, name string) (string, error) {
	escaped := escapeLike(name)
	var varName, value string
	query := fmt.Sprintf("SHOW GLOBAL STATUS LIKE '%s'", escaped)
	err := s.db.QueryRowContext(ctx, query).Scan(&varName, &value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return value, nil
}

// SetSysvar applies a system variable. The name must pass isSafeIdentifier
// and the value is sent as a bound parameter, so persistence keywords
// can't be smuggled through name or value.
func (s *Session) SetSysvar(ctx context.Context, name, value string, persist PersistMode) error {
	if !isSafeIdentifier(name) {
		return fmt.Errorf("unsafe variable name %q", name)
	}
	kw := ""
	switch persist {
	case PersistGlobal:
		kw = "GLOBAL "
	case PersistOnly:
		kw = "PERSIST_ONLY "
	case PersistNone:
		kw = "PERSIST "
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("SET %s%s = ?", kw, name), value)
	return err
}

func isSafeIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

func escapeLike(name string) string {
	name = replaceAll(name, "_", "\\_")
	name = replaceAll(name, "%", "\\%")
	return name
}

func replaceAll(s, old, new string) string {
	out := ""
	for i := 0; i < len(s); {
		if i+len(old) <= len(s) && s[i:i+len(old)] == old {
			out += new
			i += len(old)
		} else {
			out += string(s[i])
			i++
		}
	}
	return out
}

func registerCustomTLS(caPath string) error {
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return fmt.Errorf("reading CA certificate %q: %w", caPath, err)
	}

	rootCAs := x509.NewCertPool()
	if !rootCAs.AppendCertsFromPEM(pem) {
		return fmt.Errorf("no valid certificates found in %q", caPath)
	}

	return mysqldriver.RegisterTLSConfig("dbactl-custom", &tls.Config{
		RootCAs: rootCAs,
	})
}

func buildDSN(cfg ConnectionConfig) (string, error) {
	switch cfg.TLSMode {
	case "", "disabled", "preferred", "required", "skip-verify", "custom":
	default:
		return "", fmt.Errorf("invalid TLS mode %q: valid values are disabled, preferred, required, skip-verify, custom", cfg.TLSMode)
	}

	var addr string
	if cfg.Socket != "" {
		addr = fmt.Sprintf("unix(%s)", cfg.Socket)
	} else {
		addr = fmt.Sprintf("tcp(%s:%d)", cfg.Host, cfg.Port)
	}

	db := cfg.Database
	if db == "" {
		db = "information_schema"
	}

	dsn := fmt.Sprintf("%s:%s@%s/%s?parseTime=true&interpolateParams=true&multiStatements=false",
		cfg.User, cfg.Password, addr, db)

	switch cfg.TLSMode {
	case "preferred":
		dsn += "&tls=preferred"
	case "required":
		dsn += "&tls=true"
	case "skip-verify":
		dsn += "&tls=skip-verify"
	case "custom":
		dsn += "&tls=dbactl-custom"
	}

	return dsn, nil
}

// PromptPassword reads a password from the terminal without echoing.
func PromptPassword() string {
	fmt.Print("Enter password: ")
	password, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return ""
	}
	return string(password)
}
