package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LeventeLantos/reminder-calls/internal/lifecycle"
	"github.com/LeventeLantos/reminder-calls/internal/model"
)

const reminderColumns = `id, title, message, phone_number, timezone, scheduled_time_utc, status,
	created_at, updated_at, last_run_at, retry_count, call_sid, failure_reason`

// SQLReminderRepo implements ReminderRepository on database/sql. The
// Postgres and SQLite flavours differ only in placeholders, time encoding
// and DDL.
type SQLReminderRepo struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

var _ ReminderRepository = (*SQLReminderRepo)(nil)

func NewPostgresReminderRepo(db *sql.DB) *SQLReminderRepo {
	return &SQLReminderRepo{db: db, dialect: postgresDialect, now: time.Now}
}

func NewSQLiteReminderRepo(db *sql.DB) *SQLReminderRepo {
	return &SQLReminderRepo{db: db, dialect: sqliteDialect, now: time.Now}
}

func (r *SQLReminderRepo) Driver() string { return r.dialect.name }

// EnsureSchema creates the reminders table and its due-scan index.
func (r *SQLReminderRepo) EnsureSchema(ctx context.Context) error {
	for _, stmt := range r.dialect.schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring schema: %w", err)
		}
	}
	return nil
}

func (r *SQLReminderRepo) QueryDue(ctx context.Context, now time.Time) ([]model.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(`
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE status = 'scheduled' AND scheduled_time_utc <= ?
		ORDER BY scheduled_time_utc ASC, id ASC
	`), r.dialect.timeArg(now))
	if err != nil {
		return nil, fmt.Errorf("querying due reminders: %w", err)
	}
	defer rows.Close()

	return scanReminders(rows)
}

// ApplyAttempt writes the attempt fields of u in one statement. The row must
// still be scheduled with the retry count u was computed from.
func (r *SQLReminderRepo) ApplyAttempt(ctx context.Context, id string, u lifecycle.Update) error {
	res, err := r.db.ExecContext(ctx, r.dialect.rebind(`
		UPDATE reminders
		SET status = ?,
		    retry_count = ?,
		    last_run_at = ?,
		    failure_reason = ?,
		    call_sid = COALESCE(?, call_sid),
		    updated_at = ?
		WHERE id = ? AND status = 'scheduled' AND retry_count = ?
	`),
		string(u.Status),
		u.RetryCount,
		r.dialect.timeArg(u.LastRunAt),
		nullString(u.FailureReason),
		nullString(u.CallSID),
		r.dialect.timeArg(u.LastRunAt),
		id,
		u.ExpectedRetryCount,
	)
	if err != nil {
		return fmt.Errorf("applying attempt for %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking attempt rows for %s: %w", id, err)
	}
	if n == 1 {
		return nil
	}
	return r.missingOr(ctx, id, ErrConflict)
}

func (r *SQLReminderRepo) Create(ctx context.Context, m model.Reminder) (model.Reminder, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := r.now().UTC()
	m.Status = model.Scheduled
	m.CreatedAt = now
	m.UpdatedAt = now
	m.ScheduledTimeUTC = m.ScheduledTimeUTC.UTC()
	m.RetryCount = 0
	m.LastRunAt, m.CallSID, m.FailureReason = nil, nil, nil

	_, err := r.db.ExecContext(ctx, r.dialect.rebind(`
		INSERT INTO reminders (`+reminderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, 0, NULL, NULL)
	`),
		m.ID, m.Title, m.Message, m.PhoneNumber, m.Timezone,
		r.dialect.timeArg(m.ScheduledTimeUTC),
		string(m.Status),
		r.dialect.timeArg(m.CreatedAt),
		r.dialect.timeArg(m.UpdatedAt),
	)
	if err != nil {
		return model.Reminder{}, fmt.Errorf("inserting reminder: %w", err)
	}
	return m, nil
}

func (r *SQLReminderRepo) Get(ctx context.Context, id string) (model.Reminder, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.rebind(`
		SELECT `+reminderColumns+` FROM reminders WHERE id = ?
	`), id)

	m, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Reminder{}, ErrNotFound
	}
	if err != nil {
		return model.Reminder{}, fmt.Errorf("getting reminder %s: %w", id, err)
	}
	return m, nil
}

func (r *SQLReminderRepo) List(ctx context.Context, f ListFilter) (ListPage, error) {
	f = f.normalized()

	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(message) LIKE ?)")
		args = append(args, like, like)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, r.dialect.rebind(`SELECT COUNT(*) FROM reminders`+clause), args...).Scan(&total); err != nil {
		return ListPage{}, fmt.Errorf("counting reminders: %w", err)
	}

	order := "DESC"
	if f.Sort == Ascending {
		order = "ASC"
	}
	pageArgs := append(append([]any{}, args...), f.PerPage, (f.Page-1)*f.PerPage)
	rows, err := r.db.QueryContext(ctx, r.dialect.rebind(`
		SELECT `+reminderColumns+`
		FROM reminders`+clause+`
		ORDER BY scheduled_time_utc `+order+`, id ASC
		LIMIT ? OFFSET ?
	`), pageArgs...)
	if err != nil {
		return ListPage{}, fmt.Errorf("listing reminders: %w", err)
	}
	defer rows.Close()

	items, err := scanReminders(rows)
	if err != nil {
		return ListPage{}, err
	}
	return ListPage{Page: f.Page, PerPage: f.PerPage, Total: total, Items: items}, nil
}

// UpdateEditable changes only the fields set in p and never touches the
// attempt fields owned by the scanner.
func (r *SQLReminderRepo) UpdateEditable(ctx context.Context, id string, p ReminderPatch) (model.Reminder, error) {
	if p.Empty() {
		m, err := r.Get(ctx, id)
		if err != nil {
			return model.Reminder{}, err
		}
		if !m.Status.Editable() {
			return model.Reminder{}, ErrNotEditable
		}
		return m, nil
	}

	var (
		sets []string
		args []any
	)
	if p.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *p.Title)
	}
	if p.Message != nil {
		sets = append(sets, "message = ?")
		args = append(args, *p.Message)
	}
	if p.PhoneNumber != nil {
		sets = append(sets, "phone_number = ?")
		args = append(args, *p.PhoneNumber)
	}
	if p.Timezone != nil {
		sets = append(sets, "timezone = ?")
		args = append(args, *p.Timezone)
	}
	if p.ScheduledTimeUTC != nil {
		sets = append(sets, "scheduled_time_utc = ?")
		args = append(args, r.dialect.timeArg(*p.ScheduledTimeUTC))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, r.dialect.timeArg(r.now()), id)

	res, err := r.db.ExecContext(ctx, r.dialect.rebind(`
		UPDATE reminders SET `+strings.Join(sets, ", ")+`
		WHERE id = ? AND status IN ('scheduled', 'failed')
	`), args...)
	if err != nil {
		return model.Reminder{}, fmt.Errorf("updating reminder %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Reminder{}, fmt.Errorf("checking update rows for %s: %w", id, err)
	}
	if n == 0 {
		return model.Reminder{}, r.missingOr(ctx, id, ErrNotEditable)
	}
	return r.Get(ctx, id)
}

func (r *SQLReminderRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.dialect.rebind(`DELETE FROM reminders WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting reminder %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLReminderRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM reminders`); err != nil {
		return fmt.Errorf("deleting all reminders: %w", err)
	}
	return nil
}

// missingOr returns ErrNotFound when id no longer exists and otherErr otherwise.
func (r *SQLReminderRepo) missingOr(ctx context.Context, id string, otherErr error) error {
	var count int
	if err := r.db.QueryRowContext(ctx, r.dialect.rebind(`SELECT COUNT(*) FROM reminders WHERE id = ?`), id).Scan(&count); err != nil {
		return fmt.Errorf("checking reminder %s: %w", id, err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return otherErr
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(s rowScanner) (model.Reminder, error) {
	var (
		m                      model.Reminder
		status                 string
		scheduled, created     dbTime
		updated, lastRun       dbTime
		callSID, failureReason sql.NullString
	)
	if err := s.Scan(
		&m.ID,
		&m.Title,
		&m.Message,
		&m.PhoneNumber,
		&m.Timezone,
		&scheduled,
		&status,
		&created,
		&updated,
		&lastRun,
		&m.RetryCount,
		&callSID,
		&failureReason,
	); err != nil {
		return model.Reminder{}, err
	}

	m.Status = model.Status(status)
	m.ScheduledTimeUTC = scheduled.Time
	m.CreatedAt = created.Time
	m.UpdatedAt = updated.Time
	m.LastRunAt = lastRun.ptr()
	if callSID.Valid {
		s := callSID.String
		m.CallSID = &s
	}
	if failureReason.Valid {
		s := failureReason.String
		m.FailureReason = &s
	}
	return m, nil
}

func scanReminders(rows *sql.Rows) ([]model.Reminder, error) {
	var out []model.Reminder
	for rows.Next() {
		m, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning reminder: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
