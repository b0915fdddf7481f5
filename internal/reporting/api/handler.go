package reporting_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/reporting"
	"ms-booking/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *reporting.Service
	Logger  *logger.Logger
}

func NewHandler(service *reporting.Service, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/reports/{year}/{month}", h.MonthReport)
}

func (h *Handler) MonthReport(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 2000 || year > 2200 {
		h.sendJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid year", chi.URLParam(r, "year")))
		return
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || month < 1 || month > 12 {
		h.sendJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid month", chi.URLParam(r, "month")))
		return
	}

	report, err := h.Service.MonthReport(r.Context(), year, time.Month(month))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("MonthReport: %v", err))
		h.sendJSON(w, http.StatusInternalServerError, utils.ErrorResponse("could not build the report", err.Error()))
		return
	}

	h.sendJSON(w, http.StatusOK, report)
}

func (h *Handler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}
