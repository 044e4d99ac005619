package http

import (
	"net/http"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/ratetable"
	"github.com/cmlabs-hris/payroll-engine/internal/handler/http/response"
)

type RateTableHandler interface {
	Current(w http.ResponseWriter, r *http.Request)
	Reload(w http.ResponseWriter, r *http.Request)
	AppendRate(w http.ResponseWriter, r *http.Request)
}

type rateTableHandlerImpl struct {
	rateTableService ratetable.RateTableService
}

func NewRateTableHandler(rateTableService ratetable.RateTableService) RateTableHandler {
	return &rateTableHandlerImpl{rateTableService: rateTableService}
}

// Current implements RateTableHandler.
func (h *rateTableHandlerImpl) Current(w http.ResponseWriter, r *http.Request) {
	response.Success(w, h.rateTableService.Current())
}

// Reload implements RateTableHandler.
func (h *rateTableHandlerImpl) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.rateTableService.Reload(r.Context()); err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Rate tables reloaded", h.rateTableService.Current())
}

// AppendRate implements RateTableHandler.
func (h *rateTableHandlerImpl) AppendRate(w http.ResponseWriter, r *http.Request) {
	var req ratetable.AppendRateRequest
	if !decodeJSON(w, r, &req, "AppendRate") {
		return
	}

	if err := h.rateTableService.AppendRate(r.Context(), req); err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Rate row appended", h.rateTableService.Current())
}
