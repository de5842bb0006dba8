// Package sqlguard validates SQL statements the admin engine assembles by
// string interpolation (recovery account names, hostnames, channel names)
// before they are sent to a server, the same defense-in-depth idea as
// validateSafeForExplain in the connection layer, generalized from
// SELECT/UPDATE/DELETE to the admin statement set and backed by a real SQL
// parser instead of prefix matching.
package sqlguard

import (
	"fmt"
	"strings"

	"vitess.io/vitess/go/vt/sqlparser"
)

// Kind names the admin statement shape a generated SQL string is expected
// to be.
type Kind string

const (
	KindCreateUser    Kind = "CREATE_USER"
	KindGrant         Kind = "GRANT"
	KindDropUser      Kind = "DROP_USER"
	KindSetVariable   Kind = "SET"
	KindChangeSource  Kind = "CHANGE_REPLICATION_SOURCE"
	KindStartReplica  Kind = "START_REPLICA"
	KindStopReplica   Kind = "STOP_REPLICA"
	KindSelect        Kind = "SELECT"
)

var (
	parser    *sqlparser.Parser
	parserErr error
)

func getParser() (*sqlparser.Parser, error) {
	if parser == nil && parserErr == nil {
		parser, parserErr = sqlparser.New(sqlparser.Options{})
	}
	return parser, parserErr
}

// MustBeStatementKind parses sql and asserts it is exactly the expected
// Kind. CHANGE REPLICATION SOURCE / START REPLICA / STOP REPLICA and a few
// other GR/replication admin statements aren't modeled by vitess's parser,
// so for those kinds the guard falls back to a strict prefix-plus-no-
// semicolon check identical in spirit to validateSafeForExplain.
func MustBeStatementKind(sql string, kind Kind) error {
	if strings.Contains(sql, ";") {
		return fmt.Errorf("sqlguard: statement contains semicolon, chaining not allowed")
	}
	sql = strings.TrimSpace(sql)

	switch kind {
	case KindChangeSource, KindStartReplica, KindStopReplica:
		return requirePrefix(sql, replicationPrefixes[kind])
	}

	p, err := getParser()
	if err != nil {
		return fmt.Errorf("sqlguard: parser unavailable: %w", err)
	}
	stmt, err := p.Parse(sql)
	if err != nil {
		return fmt.Errorf("sqlguard: %q does not parse as SQL: %w", truncate(sql), err)
	}

	if !matchesKind(stmt, kind) {
		return fmt.Errorf("sqlguard: %q is not a %s statement", truncate(sql), kind)
	}
	return nil
}

var replicationPrefixes = map[Kind][]string{
	KindChangeSource: {"CHANGE REPLICATION SOURCE TO", "CHANGE MASTER TO"},
	KindStartReplica: {"START REPLICA", "START SLAVE", "START GROUP_REPLICATION"},
	KindStopReplica:  {"STOP REPLICA", "STOP SLAVE", "STOP GROUP_REPLICATION"},
}

func requirePrefix(sql string, prefixes []string) error {
	upper := strings.ToUpper(sql)
	for _, p := range prefixes {
		if strings.HasPrefix(upper, p) {
			return nil
		}
	}
	return fmt.Errorf("sqlguard: %q does not start with an allowed prefix for this kind", truncate(sql))
}

func matchesKind(stmt sqlparser.Statement, kind Kind) bool {
	switch kind {
	case KindCreateUser:
		_, ok := stmt.(*sqlparser.CreateUser)
		return ok
	case KindDropUser:
		_, ok := stmt.(*sqlparser.DropUser)
		return ok
	case KindGrant:
		_, ok := stmt.(*sqlparser.Grant)
		return ok
	case KindSetVariable:
		_, ok := stmt.(*sqlparser.Set)
		return ok
	case KindSelect:
		_, ok := stmt.(*sqlparser.Select)
		return ok
	default:
		return false
	}
}

// EscapeIdentifier backtick-escapes an identifier for interpolation into
// generated SQL, the same technique as the metadata layer's
// escapeIdentifier.
func EscapeIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// EscapeAccountHost validates an account host value (used in
// CREATE USER 'user'@'host') doesn't contain a quote that would break out
// of its literal.
func EscapeAccountHost(host string) (string, error) {
	if strings.ContainsAny(host, "'\\") {
		return "", fmt.Errorf("sqlguard: account host %q contains disallowed characters", host)
	}
	return host, nil
}

func truncate(s string) string {
	if len(s) > 80 {
		return s[:80] + "..."
	}
	return s
}
