package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
)

// Backend selects the SQL dialect and driver. There is no implicit default.
type Backend string

const (
	MySQL    Backend = "mysql"
	Postgres Backend = "postgres"
	SQLite   Backend = "sqlite"
)

func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case MySQL, Postgres, SQLite:
		return b, nil
	}
	return "", fmt.Errorf("unknown store backend %q (want mysql|postgres|sqlite)", s)
}

// driver is the database/sql driver name registered by the blank imports.
func (b Backend) driver() string {
	return string(b)
}

// bind rewrites ? placeholders for drivers that want $n.
func (b Backend) bind(q string) string {
	if b != Postgres {
		return q
	}
	var sb strings.Builder
	sb.Grow(len(q) + 16)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteByte(q[i])
	}
	return sb.String()
}

// upsert returns the conflict clause that overwrites cols on key collision.
func (b Backend) upsert(key string, cols []string, touch bool) string {
	set := make([]string, 0, len(cols)+1)
	switch b {
	case MySQL:
		for _, c := range cols {
			set = append(set, fmt.Sprintf("%s = VALUES(%s)", c, c))
		}
		return " ON DUPLICATE KEY UPDATE " + strings.Join(set, ", ")
	default:
		for _, c := range cols {
			set = append(set, fmt.Sprintf("%s = excluded.%s", c, c))
		}
		if touch {
			set = append(set, "updated_at = CURRENT_TIMESTAMP")
		}
		return fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", key, strings.Join(set, ", "))
	}
}

// date renders a DATE column as YYYY-MM-DD text.
func (b Backend) date(col string) string {
	switch b {
	case MySQL:
		return "DATE_FORMAT(" + col + ", '%Y-%m-%d')"
	case Postgres:
		return "to_char(" + col + ", 'YYYY-MM-DD')"
	default:
		return col
	}
}

// degradedSum counts rows flagged scoring_degraded.
func (b Backend) degradedSum() string {
	if b == Postgres {
		return "SUM(CASE WHEN r.scoring_degraded THEN 1 ELSE 0 END)"
	}
	return "SUM(CASE WHEN r.scoring_degraded <> 0 THEN 1 ELSE 0 END)"
}
