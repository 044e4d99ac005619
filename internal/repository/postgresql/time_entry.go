package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/timeentry"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type timeEntryRepositoryImpl struct {
	db *database.DB
}

func NewTimeEntryRepository(db *database.DB) timeentry.TimeEntryRepository {
	return &timeEntryRepositoryImpl{db: db}
}

const timeEntryUniqueIndex = "time_entries_employee_date_type_key"

const timeEntryColumns = `
	id, employee_id, entry_date, entry_type, hours, start_time, end_time, break_minutes, description,
	status, submitted_at, approved_by, approved_at, rejected_by, rejection_reason, payslip_id,
	created_at, updated_at`

func scanTimeEntry(row pgx.Row) (timeentry.TimeEntry, error) {
	var e timeentry.TimeEntry
	err := row.Scan(
		&e.ID, &e.EmployeeID, &e.EntryDate, &e.EntryType, &e.Hours, &e.StartTime, &e.EndTime, &e.BreakMinutes, &e.Description,
		&e.Status, &e.SubmittedAt, &e.ApprovedBy, &e.ApprovedAt, &e.RejectedBy, &e.RejectionReason, &e.PayslipID,
		&e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

func collectTimeEntries(rows pgx.Rows) ([]timeentry.TimeEntry, error) {
	defer rows.Close()

	var entries []timeentry.TimeEntry
	for rows.Next() {
		e, err := scanTimeEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan time entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Create implements timeentry.TimeEntryRepository.
func (r *timeEntryRepositoryImpl) Create(ctx context.Context, entry timeentry.TimeEntry) (timeentry.TimeEntry, error) {
	q := GetQuerier(ctx, r.db)

	id, err := uuid.NewV7()
	if err != nil {
		return timeentry.TimeEntry{}, fmt.Errorf("failed to generate time entry id: %w", err)
	}

	query := `
		INSERT INTO time_entries (
			id, employee_id, entry_date, entry_type, hours, start_time, end_time, break_minutes, description,
			status, submitted_at, approved_by, approved_at, rejected_by, rejection_reason, payslip_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING ` + timeEntryColumns

	created, err := scanTimeEntry(q.QueryRow(ctx, query,
		id.String(), entry.EmployeeID, entry.EntryDate, entry.EntryType, entry.Hours, entry.StartTime, entry.EndTime,
		entry.BreakMinutes, entry.Description, entry.Status, entry.SubmittedAt, entry.ApprovedBy, entry.ApprovedAt,
		entry.RejectedBy, entry.RejectionReason, entry.PayslipID,
	))
	if err != nil {
		if isUniqueViolation(err, timeEntryUniqueIndex) {
			return timeentry.TimeEntry{}, timeentry.ErrDuplicateEntry
		}
		return timeentry.TimeEntry{}, fmt.Errorf("failed to create time entry: %w", err)
	}
	return created, nil
}

// GetByID implements timeentry.TimeEntryRepository.
func (r *timeEntryRepositoryImpl) GetByID(ctx context.Context, id string) (timeentry.TimeEntry, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + timeEntryColumns + ` FROM time_entries WHERE id = $1`

	e, err := scanTimeEntry(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return timeentry.TimeEntry{}, timeentry.ErrTimeEntryNotFound
		}
		return timeentry.TimeEntry{}, fmt.Errorf("failed to get time entry with id %s: %w", id, err)
	}
	return e, nil
}

// Update implements timeentry.TimeEntryRepository.
func (r *timeEntryRepositoryImpl) Update(ctx context.Context, entry timeentry.TimeEntry) error {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE time_entries SET
			entry_date = $2, entry_type = $3, hours = $4, start_time = $5, end_time = $6,
			break_minutes = $7, description = $8, status = $9, submitted_at = $10,
			approved_by = $11, approved_at = $12, rejected_by = $13, rejection_reason = $14,
			payslip_id = $15, updated_at = $16
		WHERE id = $1
	`

	tag, err := q.Exec(ctx, query,
		entry.ID, entry.EntryDate, entry.EntryType, entry.Hours, entry.StartTime, entry.EndTime,
		entry.BreakMinutes, entry.Description, entry.Status, entry.SubmittedAt,
		entry.ApprovedBy, entry.ApprovedAt, entry.RejectedBy, entry.RejectionReason,
		entry.PayslipID, entry.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, timeEntryUniqueIndex) {
			return timeentry.ErrDuplicateEntry
		}
		return fmt.Errorf("failed to update time entry with id %s: %w", entry.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return timeentry.ErrTimeEntryNotFound
	}
	return nil
}

// Delete implements timeentry.TimeEntryRepository.
func (r *timeEntryRepositoryImpl) Delete(ctx context.Context, id string) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `DELETE FROM time_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete time entry with id %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return timeentry.ErrTimeEntryNotFound
	}
	return nil
}

// List implements timeentry.TimeEntryRepository.
func (r *timeEntryRepositoryImpl) List(ctx context.Context, filter timeentry.ListFilter) ([]timeentry.TimeEntry, error) {
	q := GetQuerier(ctx, r.db)

	var (
		conditions []string
		args       []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.EmployeeID != nil {
		conditions = append(conditions, "employee_id = "+arg(*filter.EmployeeID))
	}
	if filter.Period != nil {
		conditions = append(conditions, "entry_date BETWEEN "+arg(filter.Period.Start())+" AND "+arg(filter.Period.End()))
	}
	if filter.Status != nil {
		conditions = append(conditions, "status = "+arg(*filter.Status))
	}

	query := `SELECT ` + timeEntryColumns + ` FROM time_entries`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY entry_date, id"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list time entries: %w", err)
	}
	return collectTimeEntries(rows)
}

// ApprovedUnpaid implements timeentry.TimeEntryRepository.
func (r *timeEntryRepositoryImpl) ApprovedUnpaid(ctx context.Context, employeeID string, period timeentry.YearMonth) ([]timeentry.TimeEntry, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT ` + timeEntryColumns + `
		FROM time_entries
		WHERE employee_id = $1 AND status = $2 AND payslip_id IS NULL
			AND entry_date BETWEEN $3 AND $4
		ORDER BY entry_date, entry_type
	`

	rows, err := q.Query(ctx, query, employeeID, timeentry.StatusApproved, period.Start(), period.End())
	if err != nil {
		return nil, fmt.Errorf("failed to list approved entries for employee %s: %w", employeeID, err)
	}
	entries, err := collectTimeEntries(rows)
	if err != nil {
		return nil, err
	}
	timeentry.SortForPayroll(entries)
	return entries, nil
}

// ByPayslip implements timeentry.TimeEntryRepository.
func (r *timeEntryRepositoryImpl) ByPayslip(ctx context.Context, payslipID string) ([]timeentry.TimeEntry, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + timeEntryColumns + ` FROM time_entries WHERE payslip_id = $1 ORDER BY entry_date, entry_type`

	rows, err := q.Query(ctx, query, payslipID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries of payslip %s: %w", payslipID, err)
	}
	entries, err := collectTimeEntries(rows)
	if err != nil {
		return nil, err
	}
	timeentry.SortForPayroll(entries)
	return entries, nil
}

// RemoteHoursInWeek implements timeentry.TimeEntryRepository.
func (r *timeEntryRepositoryImpl) RemoteHoursInWeek(ctx context.Context, employeeID string, from, to time.Time, excludeID string) (decimal.Decimal, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT COALESCE(SUM(hours), 0)
		FROM time_entries
		WHERE employee_id = $1 AND entry_type = $2
			AND entry_date BETWEEN $3 AND $4
			AND status IN ($5, $6, $7)
			AND ($8 = '' OR id::text <> $8)
	`

	var total decimal.Decimal
	err := q.QueryRow(ctx, query,
		employeeID, timeentry.EntryTypeRemote, from, to,
		timeentry.StatusSubmitted, timeentry.StatusApproved, timeentry.StatusPaid,
		excludeID,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum remote hours: %w", err)
	}
	return total, nil
}

// MarkPaid implements timeentry.TimeEntryRepository.
func (r *timeEntryRepositoryImpl) MarkPaid(ctx context.Context, ids []string, payslipID string, at time.Time) (int, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE time_entries
		SET status = $3, payslip_id = $2, updated_at = $4
		WHERE id = ANY($1::uuid[]) AND status = $5
	`

	tag, err := q.Exec(ctx, query, ids, payslipID, timeentry.StatusPaid, at, timeentry.StatusApproved)
	if err != nil {
		return 0, fmt.Errorf("failed to mark entries paid for payslip %s: %w", payslipID, err)
	}
	return int(tag.RowsAffected()), nil
}

// ReleasePayslip implements timeentry.TimeEntryRepository.
func (r *timeEntryRepositoryImpl) ReleasePayslip(ctx context.Context, payslipID string, at time.Time) (int, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		UPDATE time_entries
		SET status = $2, payslip_id = NULL, updated_at = $3
		WHERE payslip_id = $1
	`

	tag, err := q.Exec(ctx, query, payslipID, timeentry.StatusApproved, at)
	if err != nil {
		return 0, fmt.Errorf("failed to release entries of payslip %s: %w", payslipID, err)
	}
	return int(tag.RowsAffected()), nil
}
