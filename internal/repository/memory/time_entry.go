package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/timeentry"
	"github.com/shopspring/decimal"
)

type timeEntryRepository struct {
	s *Store
}

func NewTimeEntryRepository(s *Store) timeentry.TimeEntryRepository {
	return &timeEntryRepository{s: s}
}

// conflicts reports whether another non-rejected entry holds the same
// employee, date and type. Callers hold the write lock.
func (r *timeEntryRepository) conflicts(entry timeentry.TimeEntry) bool {
	if entry.Status == timeentry.StatusRejected {
		return false
	}
	for id, e := range r.s.entries {
		if id != entry.ID && e.EmployeeID == entry.EmployeeID && e.EntryDate.Equal(entry.EntryDate) &&
			e.EntryType == entry.EntryType && e.Status != timeentry.StatusRejected {
			return true
		}
	}
	return false
}

func (r *timeEntryRepository) Create(ctx context.Context, entry timeentry.TimeEntry) (timeentry.TimeEntry, error) {
	err := r.s.write(ctx, "time_entry.create", func() error {
		entry.ID = ""
		if r.conflicts(entry) {
			return timeentry.ErrDuplicateEntry
		}
		now := time.Now()
		entry.ID = newID()
		entry.CreatedAt = now
		entry.UpdatedAt = now
		r.s.entries[entry.ID] = entry
		return nil
	})
	if err != nil {
		return timeentry.TimeEntry{}, err
	}
	return entry, nil
}

func (r *timeEntryRepository) GetByID(_ context.Context, id string) (timeentry.TimeEntry, error) {
	var (
		e  timeentry.TimeEntry
		ok bool
	)
	r.s.read(func() { e, ok = r.s.entries[id] })
	if !ok {
		return timeentry.TimeEntry{}, timeentry.ErrTimeEntryNotFound
	}
	return e, nil
}

func (r *timeEntryRepository) Update(ctx context.Context, entry timeentry.TimeEntry) error {
	return r.s.write(ctx, "time_entry.update", func() error {
		if _, ok := r.s.entries[entry.ID]; !ok {
			return timeentry.ErrTimeEntryNotFound
		}
		if r.conflicts(entry) {
			return timeentry.ErrDuplicateEntry
		}
		r.s.entries[entry.ID] = entry
		return nil
	})
}

func (r *timeEntryRepository) Delete(ctx context.Context, id string) error {
	return r.s.write(ctx, "time_entry.delete", func() error {
		if _, ok := r.s.entries[id]; !ok {
			return timeentry.ErrTimeEntryNotFound
		}
		delete(r.s.entries, id)
		return nil
	})
}

func (r *timeEntryRepository) List(_ context.Context, filter timeentry.ListFilter) ([]timeentry.TimeEntry, error) {
	var out []timeentry.TimeEntry
	r.s.read(func() {
		for _, e := range r.s.entries {
			if filter.EmployeeID != nil && e.EmployeeID != *filter.EmployeeID {
				continue
			}
			if filter.Period != nil && !filter.Period.Contains(e.EntryDate) {
				continue
			}
			if filter.Status != nil && e.Status != *filter.Status {
				continue
			}
			out = append(out, e)
		}
	})

	sort.Slice(out, func(i, j int) bool {
		if !out[i].EntryDate.Equal(out[j].EntryDate) {
			return out[i].EntryDate.Before(out[j].EntryDate)
		}
		return out[i].ID < out[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *timeEntryRepository) ApprovedUnpaid(_ context.Context, employeeID string, period timeentry.YearMonth) ([]timeentry.TimeEntry, error) {
	var out []timeentry.TimeEntry
	r.s.read(func() {
		for _, e := range r.s.entries {
			if e.EmployeeID == employeeID && e.Status == timeentry.StatusApproved &&
				e.PayslipID == nil && period.Contains(e.EntryDate) {
				out = append(out, e)
			}
		}
	})
	timeentry.SortForPayroll(out)
	return out, nil
}

func (r *timeEntryRepository) ByPayslip(_ context.Context, payslipID string) ([]timeentry.TimeEntry, error) {
	var out []timeentry.TimeEntry
	r.s.read(func() {
		for _, e := range r.s.entries {
			if e.PayslipID != nil && *e.PayslipID == payslipID {
				out = append(out, e)
			}
		}
	})
	timeentry.SortForPayroll(out)
	return out, nil
}

func (r *timeEntryRepository) RemoteHoursInWeek(_ context.Context, employeeID string, from, to time.Time, excludeID string) (decimal.Decimal, error) {
	total := decimal.Zero
	r.s.read(func() {
		for _, e := range r.s.entries {
			if e.ID == excludeID || e.EmployeeID != employeeID || e.EntryType != timeentry.EntryTypeRemote {
				continue
			}
			if e.EntryDate.Before(from) || e.EntryDate.After(to) {
				continue
			}
			switch e.Status {
			case timeentry.StatusSubmitted, timeentry.StatusApproved, timeentry.StatusPaid:
				total = total.Add(e.Hours)
			}
		}
	})
	return total, nil
}

func (r *timeEntryRepository) MarkPaid(ctx context.Context, ids []string, payslipID string, at time.Time) (int, error) {
	n := 0
	err := r.s.write(ctx, "time_entry.mark_paid", func() error {
		for id, e := range r.s.entries {
			if !slices.Contains(ids, id) || e.Status != timeentry.StatusApproved {
				continue
			}
			slip := payslipID
			e.Status = timeentry.StatusPaid
			e.PayslipID = &slip
			e.UpdatedAt = at
			r.s.entries[id] = e
			n++
		}
		return nil
	})
	return n, err
}

func (r *timeEntryRepository) ReleasePayslip(ctx context.Context, payslipID string, at time.Time) (int, error) {
	n := 0
	err := r.s.write(ctx, "time_entry.release", func() error {
		for id, e := range r.s.entries {
			if e.PayslipID == nil || *e.PayslipID != payslipID {
				continue
			}
			e.Status = timeentry.StatusApproved
			e.PayslipID = nil
			e.UpdatedAt = at
			r.s.entries[id] = e
			n++
		}
		return nil
	})
	return n, err
}
