package http

import (
	"net/http"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/timeentry"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
)

type TimeEntryHandler interface {
	Create(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Get(w http.ResponseWriter, r *http.Request)
	Update(w http.ResponseWriter, r *http.Request)
	Delete(w http.ResponseWriter, r *http.Request)

	Submit(w http.ResponseWriter, r *http.Request)
	Approve(w http.ResponseWriter, r *http.Request)
	Reject(w http.ResponseWriter, r *http.Request)
}

type timeEntryHandlerImpl struct {
	timeEntryService timeentry.TimeEntryService
}

func NewTimeEntryHandler(timeEntryService timeentry.TimeEntryService) TimeEntryHandler {
	return &timeEntryHandlerImpl{timeEntryService: timeEntryService}
}

// Create implements TimeEntryHandler.
func (h *timeEntryHandlerImpl) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req timeentry.CreateTimeEntryRequest
	if !decodeJSON(w, r, &req, "CreateTimeEntry") {
		return
	}

	entry, err := h.timeEntryService.Create(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Time entry created", entry)
}

// List implements TimeEntryHandler.
func (h *timeEntryHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	req := timeentry.ListTimeEntriesRequest{
		EmployeeID: q.Get("employee_id"),
		Year:       q.Get("year"),
		Month:      q.Get("month"),
		Status:     q.Get("status"),
	}

	filter, err := req.ToFilter()
	if err != nil {
		response.HandleError(w, err)
		return
	}

	entries, err := h.timeEntryService.List(r.Context(), actor, filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, entries)
}

// Get implements TimeEntryHandler.
func (h *timeEntryHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	entry, err := h.timeEntryService.GetByID(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, entry)
}

// Update implements TimeEntryHandler.
func (h *timeEntryHandlerImpl) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req timeentry.UpdateTimeEntryRequest
	if !decodeJSON(w, r, &req, "UpdateTimeEntry") {
		return
	}

	entry, err := h.timeEntryService.Update(r.Context(), actor, chi.URLParam(r, "id"), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Time entry updated", entry)
}

// Delete implements TimeEntryHandler.
func (h *timeEntryHandlerImpl) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	if err := h.timeEntryService.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Time entry deleted", nil)
}

// Submit implements TimeEntryHandler. A weekly remote cap overrun is
// reported as a warning in the response, not as an error.
func (h *timeEntryHandlerImpl) Submit(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	result, err := h.timeEntryService.Submit(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	message := "Time entry submitted"
	if len(result.Warnings) > 0 {
		message = "Time entry submitted with warnings"
	}
	response.SuccessWithMessage(w, message, result)
}

// Approve implements TimeEntryHandler.
func (h *timeEntryHandlerImpl) Approve(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	entry, err := h.timeEntryService.Approve(r.Context(), chi.URLParam(r, "id"), actor.UserID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Time entry approved", entry)
}

// Reject implements TimeEntryHandler.
func (h *timeEntryHandlerImpl) Reject(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req timeentry.RejectTimeEntryRequest
	if !decodeJSON(w, r, &req, "RejectTimeEntry") {
		return
	}

	entry, err := h.timeEntryService.Reject(r.Context(), chi.URLParam(r, "id"), actor.UserID, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Time entry rejected", entry)
}
