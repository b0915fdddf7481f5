package booking_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ms-booking/internal/auth"
	"ms-booking/internal/blackout"
	blackoutdb "ms-booking/internal/blackout/db"
	"ms-booking/internal/booking"
	bookingdb "ms-booking/internal/booking/db"
	"ms-booking/internal/giftcard"
	giftcarddb "ms-booking/internal/giftcard/db"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/popup"
	popupdb "ms-booking/internal/popup/db"
	"ms-booking/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Booking   *booking.Service
	Blackouts *blackout.Service
	GiftCards *giftcard.Service
	Popup     *popup.Service
	Logger    *logger.Logger
}

func NewHandler(bookingService *booking.Service, blackouts *blackout.Service, giftCards *giftcard.Service, popupService *popup.Service, log *logger.Logger) *Handler {
	return &Handler{
		Booking:   bookingService,
		Blackouts: blackouts,
		GiftCards: giftCards,
		Popup:     popupService,
		Logger:    log,
	}
}

func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	year, month, ok := h.yearMonth(w, r)
	if !ok {
		return
	}

	blocked, err := h.Booking.BlockedDays(r.Context(), year, time.Month(month))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Availability: %v", err))
		h.respond(w, http.StatusInternalServerError, utils.ErrorResponse("could not load availability", err.Error()))
		return
	}

	h.respondRaw(w, http.StatusOK, models.AvailabilityResponse{Year: year, Month: month, Blocked: blocked})
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req models.QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	quote, err := h.Booking.Quote(req)
	if err != nil {
		h.writeError(w, err, "could not price the request")
		return
	}
	h.respondRaw(w, http.StatusOK, quote)
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateBooking: %s to %s for %s", req.StartDate, req.EndDate, req.CustomerEmail))

	resp, err := h.Booking.CreateBooking(r.Context(), req, clientIP(r))
	if err != nil {
		h.writeError(w, err, "could not create the booking")
		return
	}
	h.respondRaw(w, http.StatusCreated, resp)
}

func (h *Handler) GiftCardCheckout(w http.ResponseWriter, r *http.Request) {
	var req models.GiftCardCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	resp, err := h.Booking.StartGiftCardCheckout(r.Context(), req, clientIP(r))
	if err != nil {
		h.writeError(w, err, "could not start the gift card checkout")
		return
	}
	h.respondRaw(w, http.StatusCreated, resp)
}

func (h *Handler) PopupCheckout(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	var req models.PopupCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	resp, err := h.Booking.StartPopupCheckout(r.Context(), eventID, req, clientIP(r))
	if err != nil {
		h.writeError(w, err, "could not start the checkout")
		return
	}
	h.respondRaw(w, http.StatusCreated, resp)
}

func (h *Handler) ListPopupEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Popup.List(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListPopupEvents: %v", err))
		h.respond(w, http.StatusInternalServerError, utils.ErrorResponse("could not list events", err.Error()))
		return
	}
	h.respondRaw(w, http.StatusOK, events)
}

func (h *Handler) ListReservations(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	year, month := now.Year(), int(now.Month())
	if v := r.URL.Query().Get("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			h.respond(w, http.StatusBadRequest, utils.ErrorResponse("invalid year", v))
			return
		}
		year = parsed
	}
	if v := r.URL.Query().Get("month"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 12 {
			h.respond(w, http.StatusBadRequest, utils.ErrorResponse("invalid month", v))
			return
		}
		month = parsed
	}

	reservations, err := h.Booking.ListReservations(r.Context(), year, time.Month(month))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListReservations: %v", err))
		h.respond(w, http.StatusInternalServerError, utils.ErrorResponse("could not list reservations", err.Error()))
		return
	}
	h.respondRaw(w, http.StatusOK, reservations)
}

func (h *Handler) CreateManualReservation(w http.ResponseWriter, r *http.Request) {
	var req models.ManualReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	reservation, err := h.Booking.CreateManualReservation(r.Context(), req, adminSubject(r))
	if err != nil {
		h.writeError(w, err, "could not create the reservation")
		return
	}
	h.respondRaw(w, http.StatusCreated, reservation)
}

func (h *Handler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "reservationId")

	if err := h.Booking.CancelReservation(r.Context(), id); err != nil {
		h.writeError(w, err, "could not cancel the reservation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListBlackouts(w http.ResponseWriter, r *http.Request) {
	year, month, ok := h.yearMonth(w, r)
	if !ok {
		return
	}

	ranges, err := h.Blackouts.ListForMonth(r.Context(), year, time.Month(month))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListBlackouts: %v", err))
		h.respond(w, http.StatusInternalServerError, utils.ErrorResponse("could not list blackouts", err.Error()))
		return
	}
	h.respondRaw(w, http.StatusOK, ranges)
}

func (h *Handler) AddBlackout(w http.ResponseWriter, r *http.Request) {
	var req models.BlackoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	start, err := utils.ParseDay(req.StartDate)
	if err != nil {
		h.respond(w, http.StatusBadRequest, utils.ErrorResponse("invalid start_date", req.StartDate))
		return
	}
	end := start.AddDate(0, 0, 1)
	if req.EndDate != "" {
		end, err = utils.ParseDay(req.EndDate)
		if err != nil || !end.After(start) {
			h.respond(w, http.StatusBadRequest, utils.ErrorResponse("invalid end_date", req.EndDate))
			return
		}
	}

	created, err := h.Blackouts.Add(r.Context(), start, end, req.Reason, adminSubject(r))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("AddBlackout: %v", err))
		h.respond(w, http.StatusInternalServerError, utils.ErrorResponse("could not save the blackout", err.Error()))
		return
	}
	h.respondRaw(w, http.StatusCreated, created)
}

func (h *Handler) BulkAddBlackouts(w http.ResponseWriter, r *http.Request) {
	var req models.BulkBlackoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	if len(req.Dates) == 0 {
		h.respond(w, http.StatusBadRequest, utils.ErrorResponse("dates cannot be empty", ""))
		return
	}

	dates := make([]time.Time, 0, len(req.Dates))
	for _, raw := range req.Dates {
		day, err := utils.ParseDay(raw)
		if err != nil {
			h.respond(w, http.StatusBadRequest, utils.ErrorResponse("invalid date", raw))
			return
		}
		dates = append(dates, day)
	}

	created, err := h.Blackouts.BulkAdd(r.Context(), dates, req.Reason, adminSubject(r))
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("BulkAddBlackouts: %v", err))
		h.respond(w, http.StatusInternalServerError, utils.ErrorResponse("could not save the blackouts", err.Error()))
		return
	}
	h.respondRaw(w, http.StatusCreated, created)
}

func (h *Handler) RemoveBlackout(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "date")
	start, err := utils.ParseDay(raw)
	if err != nil {
		h.respond(w, http.StatusBadRequest, utils.ErrorResponse("invalid date", raw))
		return
	}

	if err := h.Blackouts.Remove(r.Context(), start); err != nil {
		h.writeError(w, err, "could not remove the blackout")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListGiftCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.GiftCards.List(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListGiftCards: %v", err))
		h.respond(w, http.StatusInternalServerError, utils.ErrorResponse("could not list gift cards", err.Error()))
		return
	}
	h.respondRaw(w, http.StatusOK, cards)
}

func (h *Handler) RedeemGiftCard(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	card, err := h.GiftCards.Redeem(r.Context(), code)
	if err != nil {
		h.writeError(w, err, "could not redeem the gift card")
		return
	}
	h.respond(w, http.StatusOK, utils.SuccessResponse("gift card redeemed", card))
}

func (h *Handler) GiftCardQR(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	png, err := h.GiftCards.QRCode(r.Context(), code)
	if err != nil {
		h.writeError(w, err, "could not render the QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GiftCardQR: failed to write image: %v", err))
	}
}

func (h *Handler) CreatePopupEvent(w http.ResponseWriter, r *http.Request) {
	var req models.PopupCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	event, err := h.Popup.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, err, "could not create the event")
		return
	}
	h.respondRaw(w, http.StatusCreated, event)
}

func (h *Handler) AdjustPopupSeats(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	var req models.SeatAdjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	if req.Delta == 0 {
		h.respond(w, http.StatusBadRequest, utils.ErrorResponse("delta cannot be zero", ""))
		return
	}

	if err := h.Popup.AdjustSeats(r.Context(), eventID, req.Delta); err != nil {
		h.writeError(w, err, "could not adjust the seats")
		return
	}

	event, err := h.Popup.Get(r.Context(), eventID)
	if err != nil {
		h.writeError(w, err, "could not load the event")
		return
	}
	h.respondRaw(w, http.StatusOK, event)
}

// writeError maps service errors onto status codes. Anything unrecognized is
// a 500; the body keeps the message so operators can read it off the wire.
func (h *Handler) writeError(w http.ResponseWriter, err error, what string) {
	var verr *booking.ValidationError
	var cerr *booking.ConflictError

	switch {
	case errors.As(err, &verr):
		h.respond(w, http.StatusBadRequest, utils.ErrorResponse("validation failed", verr.Error()))
	case errors.As(err, &cerr):
		h.respond(w, http.StatusConflict, utils.ErrorResponse("not available", cerr.Error()))
	case errors.Is(err, popup.ErrInvalidEvent), errors.Is(err, popup.ErrInvalidQuantity):
		h.respond(w, http.StatusBadRequest, utils.ErrorResponse("validation failed", err.Error()))
	case errors.Is(err, bookingdb.ErrReservationNotFound),
		errors.Is(err, blackoutdb.ErrBlackoutNotFound),
		errors.Is(err, giftcarddb.ErrGiftCardNotFound),
		errors.Is(err, popupdb.ErrEventNotFound):
		h.respond(w, http.StatusNotFound, utils.ErrorResponse("not found", err.Error()))
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", what, err))
		h.respond(w, http.StatusInternalServerError, utils.ErrorResponse(what, err.Error()))
	}
}

func (h *Handler) respond(w http.ResponseWriter, status int, payload utils.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}

// respondRaw writes the payload as-is, without the APIResponse envelope.
// Lists and created resources read better unwrapped.
func (h *Handler) respondRaw(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.Logger.Error("API", fmt.Sprintf("failed to encode response: %v", err))
	}
}

func (h *Handler) yearMonth(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 2000 || year > 2200 {
		h.respond(w, http.StatusBadRequest, utils.ErrorResponse("invalid year", chi.URLParam(r, "year")))
		return 0, 0, false
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || month < 1 || month > 12 {
		h.respond(w, http.StatusBadRequest, utils.ErrorResponse("invalid month", chi.URLParam(r, "month")))
		return 0, 0, false
	}
	return year, month, true
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// adminSubject names the admin for created_by fields. A verified token
// subject wins; with auth disabled the unverified claim is still a better
// audit value than nothing.
func adminSubject(r *http.Request) string {
	if sub := auth.Subject(r.Context()); sub != "" {
		return sub
	}
	sub, err := auth.SubjectFromRequest(r)
	if err != nil {
		return "admin"
	}
	return sub
}
