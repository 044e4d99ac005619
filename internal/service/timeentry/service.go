package timeentry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/timeentry"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
)

type TimeEntryServiceImpl struct {
	timeEntryRepo timeentry.TimeEntryRepository
	employeeRepo  employee.EmployeeRepository
}

func NewTimeEntryService(timeEntryRepo timeentry.TimeEntryRepository, employeeRepo employee.EmployeeRepository) timeentry.TimeEntryService {
	return &TimeEntryServiceImpl{
		timeEntryRepo: timeEntryRepo,
		employeeRepo:  employeeRepo,
	}
}

func (s *TimeEntryServiceImpl) Create(ctx context.Context, actor user.Actor, req timeentry.CreateTimeEntryRequest) (timeentry.TimeEntryResponse, error) {
	if err := req.Validate(); err != nil {
		return timeentry.TimeEntryResponse{}, err
	}
	if err := authorize(actor, req.EmployeeID); err != nil {
		return timeentry.TimeEntryResponse{}, err
	}

	if _, err := s.employeeRepo.GetByID(ctx, req.EmployeeID); err != nil {
		return timeentry.TimeEntryResponse{}, fmt.Errorf("failed to get employee: %w", err)
	}

	entryDate, _ := time.Parse(time.DateOnly, req.EntryDate)
	entry := timeentry.TimeEntry{
		EmployeeID:   req.EmployeeID,
		EntryDate:    entryDate,
		EntryType:    timeentry.EntryType(req.EntryType),
		Hours:        req.Hours,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		BreakMinutes: req.BreakMinutes,
		Description:  req.Description,
		Status:       timeentry.StatusDraft,
	}

	created, err := s.timeEntryRepo.Create(ctx, entry)
	if err != nil {
		return timeentry.TimeEntryResponse{}, fmt.Errorf("failed to create time entry: %w", err)
	}

	return timeentry.ToResponse(created), nil
}

func (s *TimeEntryServiceImpl) GetByID(ctx context.Context, actor user.Actor, id string) (timeentry.TimeEntryResponse, error) {
	entry, err := s.timeEntryRepo.GetByID(ctx, id)
	if err != nil {
		return timeentry.TimeEntryResponse{}, err
	}
	if err := authorize(actor, entry.EmployeeID); err != nil {
		return timeentry.TimeEntryResponse{}, err
	}
	return timeentry.ToResponse(entry), nil
}

func (s *TimeEntryServiceImpl) List(ctx context.Context, actor user.Actor, filter timeentry.ListFilter) ([]timeentry.TimeEntryResponse, error) {
	// Employees only ever see their own entries, whatever they asked for.
	if !user.HasPermission(actor.Role, user.PermissionTimeEntryViewAll) {
		if actor.EmployeeID == nil {
			return nil, user.ErrNotOwnEmployeeRecord
		}
		filter.EmployeeID = actor.EmployeeID
	}

	entries, err := s.timeEntryRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list time entries: %w", err)
	}

	result := make([]timeentry.TimeEntryResponse, 0, len(entries))
	for _, e := range entries {
		result = append(result, timeentry.ToResponse(e))
	}
	return result, nil
}

func (s *TimeEntryServiceImpl) Update(ctx context.Context, actor user.Actor, id string, req timeentry.UpdateTimeEntryRequest) (timeentry.TimeEntryResponse, error) {
	if err := req.Validate(); err != nil {
		return timeentry.TimeEntryResponse{}, err
	}

	entry, err := s.editableEntry(ctx, actor, id)
	if err != nil {
		return timeentry.TimeEntryResponse{}, err
	}

	if req.EntryDate != nil {
		entry.EntryDate, _ = time.Parse(time.DateOnly, *req.EntryDate)
	}
	if req.EntryType != nil {
		entry.EntryType = timeentry.EntryType(*req.EntryType)
	}
	if req.Hours != nil {
		entry.Hours = *req.Hours
	}
	if req.StartTime != nil {
		entry.StartTime = req.StartTime
	}
	if req.EndTime != nil {
		entry.EndTime = req.EndTime
	}
	if req.BreakMinutes != nil {
		entry.BreakMinutes = *req.BreakMinutes
	}
	if req.Description != nil {
		entry.Description = req.Description
	}
	if err := timeentry.ValidateClock(entry.StartTime, entry.EndTime); err != nil {
		return timeentry.TimeEntryResponse{}, err
	}
	entry.UpdatedAt = time.Now()

	if err := s.timeEntryRepo.Update(ctx, entry); err != nil {
		return timeentry.TimeEntryResponse{}, fmt.Errorf("failed to update time entry: %w", err)
	}
	return timeentry.ToResponse(entry), nil
}

func (s *TimeEntryServiceImpl) Delete(ctx context.Context, actor user.Actor, id string) error {
	entry, err := s.editableEntry(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.timeEntryRepo.Delete(ctx, entry.ID); err != nil {
		return fmt.Errorf("failed to delete time entry: %w", err)
	}
	return nil
}

// Submit moves a draft to submitted. Remote entries above the weekly remote
// cap still go through and come back with a warning.
func (s *TimeEntryServiceImpl) Submit(ctx context.Context, actor user.Actor, id string) (timeentry.SubmitTimeEntryResponse, error) {
	entry, err := s.timeEntryRepo.GetByID(ctx, id)
	if err != nil {
		return timeentry.SubmitTimeEntryResponse{}, err
	}
	if err := authorize(actor, entry.EmployeeID); err != nil {
		return timeentry.SubmitTimeEntryResponse{}, err
	}

	if entry.Hours.IsNegative() {
		return timeentry.SubmitTimeEntryResponse{}, timeentry.ErrNegativeHours
	}
	if entry.BreakMinutes < 0 {
		return timeentry.SubmitTimeEntryResponse{}, timeentry.ErrNegativeBreak
	}
	if entry.Status != timeentry.StatusDraft {
		return timeentry.SubmitTimeEntryResponse{}, fmt.Errorf("%w: cannot submit %s entry", timeentry.ErrInvalidTransition, entry.Status)
	}

	warnings := []timeentry.Warning{}
	if entry.EntryType == timeentry.EntryTypeRemote {
		w, err := s.checkWeeklyRemoteCap(ctx, entry)
		if err != nil {
			return timeentry.SubmitTimeEntryResponse{}, err
		}
		if w != nil {
			warnings = append(warnings, *w)
		}
	}

	now := time.Now()
	entry.Status = timeentry.StatusSubmitted
	entry.SubmittedAt = &now
	entry.UpdatedAt = now
	if err := s.timeEntryRepo.Update(ctx, entry); err != nil {
		return timeentry.SubmitTimeEntryResponse{}, fmt.Errorf("failed to submit time entry: %w", err)
	}

	return timeentry.SubmitTimeEntryResponse{Entry: timeentry.ToResponse(entry), Warnings: warnings}, nil
}

func (s *TimeEntryServiceImpl) Approve(ctx context.Context, id string, approverID string) (timeentry.TimeEntryResponse, error) {
	entry, err := s.timeEntryRepo.GetByID(ctx, id)
	if err != nil {
		return timeentry.TimeEntryResponse{}, err
	}
	if entry.Status != timeentry.StatusSubmitted {
		return timeentry.TimeEntryResponse{}, fmt.Errorf("%w: cannot approve %s entry", timeentry.ErrInvalidTransition, entry.Status)
	}

	now := time.Now()
	entry.Status = timeentry.StatusApproved
	entry.ApprovedBy = &approverID
	entry.ApprovedAt = &now
	entry.UpdatedAt = now
	if err := s.timeEntryRepo.Update(ctx, entry); err != nil {
		return timeentry.TimeEntryResponse{}, fmt.Errorf("failed to approve time entry: %w", err)
	}

	slog.Info("time entry approved", "entry_id", entry.ID, "employee_id", entry.EmployeeID, "approved_by", approverID)
	return timeentry.ToResponse(entry), nil
}

func (s *TimeEntryServiceImpl) Reject(ctx context.Context, id string, approverID string, req timeentry.RejectTimeEntryRequest) (timeentry.TimeEntryResponse, error) {
	if err := req.Validate(); err != nil {
		return timeentry.TimeEntryResponse{}, err
	}

	entry, err := s.timeEntryRepo.GetByID(ctx, id)
	if err != nil {
		return timeentry.TimeEntryResponse{}, err
	}
	if entry.Status != timeentry.StatusSubmitted {
		return timeentry.TimeEntryResponse{}, fmt.Errorf("%w: cannot reject %s entry", timeentry.ErrInvalidTransition, entry.Status)
	}

	entry.Status = timeentry.StatusRejected
	entry.RejectedBy = &approverID
	entry.RejectionReason = &req.Reason
	entry.UpdatedAt = time.Now()
	if err := s.timeEntryRepo.Update(ctx, entry); err != nil {
		return timeentry.TimeEntryResponse{}, fmt.Errorf("failed to reject time entry: %w", err)
	}

	return timeentry.ToResponse(entry), nil
}

func (s *TimeEntryServiceImpl) editableEntry(ctx context.Context, actor user.Actor, id string) (timeentry.TimeEntry, error) {
	entry, err := s.timeEntryRepo.GetByID(ctx, id)
	if err != nil {
		return timeentry.TimeEntry{}, err
	}
	if err := authorize(actor, entry.EmployeeID); err != nil {
		return timeentry.TimeEntry{}, err
	}
	switch entry.Status {
	case timeentry.StatusDraft:
		return entry, nil
	case timeentry.StatusPaid:
		return timeentry.TimeEntry{}, timeentry.ErrEntryImmutable
	default:
		return timeentry.TimeEntry{}, fmt.Errorf("%w: %s entries cannot be edited", timeentry.ErrInvalidTransition, entry.Status)
	}
}

func (s *TimeEntryServiceImpl) checkWeeklyRemoteCap(ctx context.Context, entry timeentry.TimeEntry) (*timeentry.Warning, error) {
	emp, err := s.employeeRepo.GetByID(ctx, entry.EmployeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	weeklyCap, ok := emp.WeeklyRemoteCap()
	if !ok {
		return nil, nil
	}

	monday, sunday := entry.IsoWeek()
	booked, err := s.timeEntryRepo.RemoteHoursInWeek(ctx, entry.EmployeeID, monday, sunday, entry.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum remote hours: %w", err)
	}

	total := booked.Add(entry.Hours)
	if !total.GreaterThan(weeklyCap) {
		return nil, nil
	}
	return &timeentry.Warning{
		Code:    timeentry.WarningExceedsWeeklyCap,
		Message: fmt.Sprintf("%s remote hours in week of %s exceed cap of %s", total.String(), monday.Format(time.DateOnly), weeklyCap.String()),
	}, nil
}

// authorize lets managers act on any record and employees on their own.
func authorize(actor user.Actor, employeeID string) error {
	if actor.IsManager() || actor.OwnsEmployee(employeeID) {
		return nil
	}
	return user.ErrNotOwnEmployeeRecord
}
