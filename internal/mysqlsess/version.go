package mysqlsess

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ServerVersion is a parsed MySQL server version, used throughout the
// precondition checker and GR probe for version-gated feature checks.
type ServerVersion struct {
	Raw    string
	Major  int
	Minor  int
	Patch  int
	Flavor string // "mysql", "percona", "mariadb"
}

func (v ServerVersion) String() string {
	return fmt.Sprintf("%d.%d.%d (%s)", v.Major, v.Minor, v.Patch, v.Flavor)
}

// AtLeast reports whether the version is >= major.minor.patch.
func (v ServerVersion) AtLeast(major, minor, patch int) bool {
	if v.Major != major {
		return v.Major > major
	}
	if v.Minor != minor {
		return v.Minor > minor
	}
	return v.Patch >= patch
}

// AtMost reports whether the version is <= major.minor.patch.
func (v ServerVersion) AtMost(major, minor, patch int) bool {
	if v.Major != major {
		return v.Major < major
	}
	if v.Minor != minor {
		return v.Minor < minor
	}
	return v.Patch <= patch
}

// SupportsIPv6LocalAddress reports whether this version's GR implementation
// allows IPv6 addresses in group_replication_local_address (8.0.14+).
func (v ServerVersion) SupportsIPv6LocalAddress() bool {
	return v.AtLeast(8, 0, 14)
}

// SupportsMySQLCommStack reports whether this version supports the "MySQL"
// (as opposed to "XCom") group replication communication stack (8.0.27+).
func (v ServerVersion) SupportsMySQLCommStack() bool {
	return v.AtLeast(8, 0, 27)
}

var versionRe = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)`)

// ParseVersion parses a `SELECT VERSION()`-style string.
func ParseVersion(raw string) (ServerVersion, error) {
	v := ServerVersion{Raw: raw}

	m := versionRe.FindStringSubmatch(raw)
	if len(m) < 4 {
		return v, fmt.Errorf("could not parse server version: %s", raw)
	}
	v.Major, _ = strconv.Atoi(m[1])
	v.Minor, _ = strconv.Atoi(m[2])
	v.Patch, _ = strconv.Atoi(m[3])

	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "percona"):
		v.Flavor = "percona"
	case strings.Contains(lower, "mariadb"):
		v.Flavor = "mariadb"
	default:
		v.Flavor = "mysql"
	}

	return v, nil
}

// GetServerVersion queries and parses this session's server version.
func (s *Session) GetServerVersion(ctx context.Context) (ServerVersion, error) {
	var raw string
	if err := s.db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&raw); err != nil {
		return ServerVersion{}, fmt.Errorf("querying version: %w", err)
	}
	return ParseVersion(raw)
}

// GetVariableInt reads a variable and parses it as int64.
func (s *Session) GetVariableInt(ctx context.Context, name string) (int64, error) {
	val, err := s.GetSysvar(ctx, name, ScopeGlobal)
	if err != nil || val == "" {
		return 0, err
	}
	return strconv.ParseInt(val, 10, 64)
}
