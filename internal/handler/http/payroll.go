package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/storage"
	"github.com/go-chi/chi/v5"
)

type PayrollHandler interface {
	// Runs
	CreateRun(w http.ResponseWriter, r *http.Request)
	ListRuns(w http.ResponseWriter, r *http.Request)
	GetRun(w http.ResponseWriter, r *http.Request)
	ListPayslips(w http.ResponseWriter, r *http.Request)

	// Calculation
	Calculate(w http.ResponseWriter, r *http.Request)
	CancelCalculation(w http.ResponseWriter, r *http.Request)
	RecalculateEmployee(w http.ResponseWriter, r *http.Request)

	// Lifecycle
	Approve(w http.ResponseWriter, r *http.Request)
	StartProcessing(w http.ResponseWriter, r *http.Request)
	MarkPaid(w http.ResponseWriter, r *http.Request)
	Close(w http.ResponseWriter, r *http.Request)

	// Exports
	Export(w http.ResponseWriter, r *http.Request)
	DownloadExport(w http.ResponseWriter, r *http.Request)

	// SSE
	Events(w http.ResponseWriter, r *http.Request)
}

// ExportService builds and serves the artifacts of a run.
type ExportService interface {
	payroll.Exporter
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type payrollHandlerImpl struct {
	payrollService payroll.PayrollService
	exportService  ExportService
	keepalive      time.Duration
}

func NewPayrollHandler(payrollService payroll.PayrollService, exportService ExportService) PayrollHandler {
	return &payrollHandlerImpl{
		payrollService: payrollService,
		exportService:  exportService,
		keepalive:      30 * time.Second,
	}
}

// ========== RUNS ==========

// CreateRun implements PayrollHandler.
func (h *payrollHandlerImpl) CreateRun(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req payroll.CreateRunRequest
	if !decodeJSON(w, r, &req, "CreateRun") {
		return
	}

	run, err := h.payrollService.CreateRun(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Payroll run created", run)
}

// ListRuns implements PayrollHandler.
func (h *payrollHandlerImpl) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := payroll.ListRunsRequest{
		Year:   q.Get("year"),
		Status: q.Get("status"),
		Limit:  q.Get("limit"),
		Offset: q.Get("offset"),
	}

	filter, err := req.ToFilter()
	if err != nil {
		response.HandleError(w, err)
		return
	}

	runs, err := h.payrollService.ListRuns(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, runs, &response.Meta{Limit: filter.Limit, Page: filter.Offset/filter.Limit + 1})
}

// GetRun implements PayrollHandler.
func (h *payrollHandlerImpl) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.payrollService.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, run)
}

// ListPayslips implements PayrollHandler.
func (h *payrollHandlerImpl) ListPayslips(w http.ResponseWriter, r *http.Request) {
	slips, err := h.payrollService.ListPayslips(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, slips)
}

// ========== CALCULATION ==========

// Calculate implements PayrollHandler. It answers once the run reached
// pending_review; progress is streamed on the events endpoint meanwhile.
func (h *payrollHandlerImpl) Calculate(w http.ResponseWriter, r *http.Request) {
	result, err := h.payrollService.StartCalculation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run calculated", result)
}

// CancelCalculation implements PayrollHandler.
func (h *payrollHandlerImpl) CancelCalculation(w http.ResponseWriter, r *http.Request) {
	if err := h.payrollService.CancelCalculation(r.Context(), chi.URLParam(r, "id")); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Calculation cancellation requested", nil)
}

// RecalculateEmployee implements PayrollHandler.
func (h *payrollHandlerImpl) RecalculateEmployee(w http.ResponseWriter, r *http.Request) {
	run, err := h.payrollService.RecalculateEmployee(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "employeeID"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Employee recalculated", run)
}

// ========== LIFECYCLE ==========

// Approve implements PayrollHandler.
func (h *payrollHandlerImpl) Approve(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	run, err := h.payrollService.Approve(r.Context(), chi.URLParam(r, "id"), actor.UserID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run approved", run)
}

// StartProcessing implements PayrollHandler.
func (h *payrollHandlerImpl) StartProcessing(w http.ResponseWriter, r *http.Request) {
	run, err := h.payrollService.StartProcessing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run processing", run)
}

// MarkPaid implements PayrollHandler.
func (h *payrollHandlerImpl) MarkPaid(w http.ResponseWriter, r *http.Request) {
	run, err := h.payrollService.MarkPaid(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run marked as paid", run)
}

// Close implements PayrollHandler.
func (h *payrollHandlerImpl) Close(w http.ResponseWriter, r *http.Request) {
	run, err := h.payrollService.Close(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run closed", run)
}

// ========== EXPORTS ==========

// Export implements PayrollHandler.
func (h *payrollHandlerImpl) Export(w http.ResponseWriter, r *http.Request) {
	result, err := h.exportService.Export(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payroll run exported", result)
}

var artifactContentTypes = map[string]string{
	"csv":   storage.ContentTypeCSV,
	"xlsx":  storage.ContentTypeXLSX,
	"pdf":   storage.ContentTypeZIP,
	"audit": storage.ContentTypeJSON,
}

// DownloadExport implements PayrollHandler. {artifact} is csv, xlsx, pdf
// (the zipped payslips) or audit.
func (h *payrollHandlerImpl) DownloadExport(w http.ResponseWriter, r *http.Request) {
	artifact := chi.URLParam(r, "artifact")
	contentType, known := artifactContentTypes[artifact]
	if !known {
		response.BadRequest(w, "Unknown export artifact", map[string]string{"artifact": "must be one of csv, xlsx, pdf, audit"})
		return
	}

	run, err := h.payrollService.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}
	if run.Exports == nil {
		response.HandleError(w, storage.ErrNotFound)
		return
	}

	key := map[string]string{
		"csv":   run.Exports.CSVKey,
		"xlsx":  run.Exports.XLSXKey,
		"pdf":   run.Exports.PDFArchiveKey,
		"audit": run.Exports.AuditLogKey,
	}[artifact]
	if key == "" {
		response.HandleError(w, storage.ErrNotFound)
		return
	}

	body, err := h.exportService.Open(r.Context(), key)
	if err != nil {
		response.HandleError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(key)))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}

// ========== SSE ==========

// Events streams status and progress events of a run.
func (h *payrollHandlerImpl) Events(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	run, err := h.payrollService.GetRun(r.Context(), runID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	// Check if streaming is supported
	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalServerError(w, "Streaming not supported")
		return
	}

	events, cleanup := h.payrollService.Subscribe(runID)
	defer cleanup()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	fmt.Fprintf(w, "event: connected\ndata: {\"run_id\":%q,\"status\":%q}\n\n", run.ID, run.Status)
	flusher.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
