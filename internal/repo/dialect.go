package repo

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// sqliteTimeLayout is fixed width so text comparisons order like instants.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

type dialect struct {
	name    string
	rebind  func(query string) string
	timeArg func(t time.Time) any
	schema  []string
}

var postgresDialect = dialect{
	name:    "postgres",
	rebind:  dollarPlaceholders,
	timeArg: func(t time.Time) any { return t.UTC() },
	schema: []string{
		`CREATE TABLE IF NOT EXISTS reminders (
			id                 TEXT PRIMARY KEY,
			title              VARCHAR(128) NOT NULL,
			message            TEXT NOT NULL,
			phone_number       VARCHAR(32) NOT NULL,
			timezone           VARCHAR(64) NOT NULL,
			scheduled_time_utc TIMESTAMPTZ NOT NULL,
			status             VARCHAR(16) NOT NULL DEFAULT 'scheduled',
			created_at         TIMESTAMPTZ NOT NULL,
			updated_at         TIMESTAMPTZ NOT NULL,
			last_run_at        TIMESTAMPTZ,
			retry_count        INTEGER NOT NULL DEFAULT 0,
			call_sid           TEXT,
			failure_reason     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS ix_reminders_status_scheduled_time ON reminders (status, scheduled_time_utc)`,
	},
}

var sqliteDialect = dialect{
	name:    "sqlite",
	rebind:  func(q string) string { return q },
	timeArg: func(t time.Time) any { return t.UTC().Format(sqliteTimeLayout) },
	schema: []string{
		`CREATE TABLE IF NOT EXISTS reminders (
			id                 TEXT PRIMARY KEY,
			title              TEXT NOT NULL,
			message            TEXT NOT NULL,
			phone_number       TEXT NOT NULL,
			timezone           TEXT NOT NULL,
			scheduled_time_utc TEXT NOT NULL,
			status             TEXT NOT NULL DEFAULT 'scheduled',
			created_at         TEXT NOT NULL,
			updated_at         TEXT NOT NULL,
			last_run_at        TEXT,
			retry_count        INTEGER NOT NULL DEFAULT 0,
			call_sid           TEXT,
			failure_reason     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS ix_reminders_status_scheduled_time ON reminders (status, scheduled_time_utc)`,
	},
}

func dollarPlaceholders(q string) string {
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, c := range q {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// dbTime scans TIMESTAMPTZ values as well as the sqlite text encoding.
type dbTime struct {
	Time  time.Time
	Valid bool
}

func (d *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time, d.Valid = time.Time{}, false
		return nil
	case time.Time:
		d.Time, d.Valid = v.UTC(), true
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("unsupported time value %T", src)
	}
}

func (d *dbTime) parse(s string) error {
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time, d.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("parsing time %q", s)
}

func (d dbTime) ptr() *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}
