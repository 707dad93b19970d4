package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/trimclip/booking-service/internal/apperr"
	"github.com/trimclip/booking-service/internal/availability"
	"github.com/trimclip/booking-service/internal/booking"
	"github.com/trimclip/booking-service/internal/model"
)

type BookingHandler struct {
	coord  *booking.Coordinator
	logger *slog.Logger
}

func NewBookingHandler(coord *booking.Coordinator, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{coord: coord, logger: logger}
}

// Register wires the handler's routes onto the mux.
func (h *BookingHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/availability", h.Availability)
	mux.HandleFunc("/api/v1/appointments", h.Appointments)
	mux.HandleFunc("/api/v1/appointments/update", h.Update)
	mux.HandleFunc("/api/v1/appointments/cancel", h.Cancel)
	mux.HandleFunc("/api/v1/appointments/confirm", h.Confirm)
	mux.HandleFunc("/api/v1/appointments/complete", h.Complete)
}

type createAppointmentRequest struct {
	BarberID   string   `json:"barber_id"`
	ServiceIDs []string `json:"service_ids"`
	StartTime  string   `json:"start_time"`
}

type updateAppointmentRequest struct {
	AppointmentID string   `json:"appointment_id"`
	BarberID      string   `json:"barber_id,omitempty"`
	ServiceIDs    []string `json:"service_ids,omitempty"`
	StartTime     string   `json:"start_time,omitempty"`
}

type appointmentIDRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type appointmentResponse struct {
	AppointmentID   string   `json:"appointment_id"`
	BarberID        string   `json:"barber_id"`
	BarberName      string   `json:"barber_name,omitempty"`
	ServiceIDs      []string `json:"service_ids"`
	StartTime       string   `json:"start_time"`
	EndTime         string   `json:"end_time"`
	DurationMinutes int      `json:"duration_minutes"`
	Status          string   `json:"status"`
	CancelledAt     string   `json:"cancelled_at,omitempty"`
	ConfirmedAt     string   `json:"confirmed_at,omitempty"`
	CompletedAt     string   `json:"completed_at,omitempty"`
}

type availabilityDay struct {
	Date  string   `json:"date"`
	Slots []string `json:"slots"`
}

func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	barberID := strings.TrimSpace(r.URL.Query().Get("barber_id"))
	startStr := strings.TrimSpace(r.URL.Query().Get("start_date"))
	endStr := strings.TrimSpace(r.URL.Query().Get("end_date"))
	if barberID == "" || startStr == "" || endStr == "" {
		http.Error(w, "barber_id, start_date, and end_date are required", http.StatusBadRequest)
		return
	}

	startDate, err := time.ParseInLocation(availability.DateFormat, startStr, time.UTC)
	if err != nil {
		http.Error(w, "invalid start_date", http.StatusBadRequest)
		return
	}
	endDate, err := time.ParseInLocation(availability.DateFormat, endStr, time.UTC)
	if err != nil {
		http.Error(w, "invalid end_date", http.StatusBadRequest)
		return
	}

	var serviceIDs []string
	if raw := strings.TrimSpace(r.URL.Query().Get("service_ids")); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				serviceIDs = append(serviceIDs, id)
			}
		}
	}

	days, err := h.coord.GetAvailability(r.Context(), barberID, startDate, endDate, serviceIDs)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// Days with no open slots are omitted entirely; an empty range is [].
	resp := make([]availabilityDay, 0, len(days))
	for _, d := range days {
		resp = append(resp, availabilityDay{Date: d.Date, Slots: d.Slots})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Appointments serves POST (create) and GET (list by barber) on the
// collection path.
func (h *BookingHandler) Appointments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.create(w, r)
	case http.MethodGet:
		h.list(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *BookingHandler) create(w http.ResponseWriter, r *http.Request) {
	tenantID, customerID, ok := h.identity(w, r, true)
	if !ok {
		return
	}

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.BarberID = strings.TrimSpace(req.BarberID)
	if req.BarberID == "" || len(req.ServiceIDs) == 0 {
		http.Error(w, "barber_id and service_ids are required", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	res, err := h.coord.Create(r.Context(), tenantID, customerID, booking.CreateInput{
		BarberID:   req.BarberID,
		ServiceIDs: req.ServiceIDs,
		StartTime:  start,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, appointmentToResponse(res.Appointment, res.Barber))
}

func (h *BookingHandler) list(w http.ResponseWriter, r *http.Request) {
	tenantID, _, ok := h.identity(w, r, false)
	if !ok {
		return
	}
	barberID := strings.TrimSpace(r.URL.Query().Get("barber_id"))
	if barberID == "" {
		http.Error(w, "barber_id required", http.StatusBadRequest)
		return
	}
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	appts, err := h.coord.List(r.Context(), tenantID, barberID, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items := make([]appointmentResponse, 0, len(appts))
	for i := range appts {
		items = append(items, appointmentToResponse(&appts[i], nil))
	}
	h.writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenantID, customerID, ok := h.identity(w, r, true)
	if !ok {
		return
	}

	var req updateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return
	}

	in := booking.EditInput{
		BarberID:   strings.TrimSpace(req.BarberID),
		ServiceIDs: req.ServiceIDs,
	}
	if raw := strings.TrimSpace(req.StartTime); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "invalid start_time", http.StatusBadRequest)
			return
		}
		in.StartTime = &start
	}

	res, err := h.coord.Edit(r.Context(), tenantID, customerID, req.AppointmentID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, appointmentToResponse(res.Appointment, res.Barber))
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenantID, _, ok := h.identity(w, r, false)
	if !ok {
		return
	}
	id, ok := h.decodeAppointmentID(w, r)
	if !ok {
		return
	}

	if err := h.coord.Cancel(r.Context(), tenantID, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"appointment_id": id,
		"status":         string(model.StatusCancelled),
	})
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	h.statusTransition(w, r, h.coord.Confirm)
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.statusTransition(w, r, h.coord.Complete)
}

func (h *BookingHandler) statusTransition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, tenantID, id string) (*model.Appointment, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	tenantID, _, ok := h.identity(w, r, false)
	if !ok {
		return
	}
	id, ok := h.decodeAppointmentID(w, r)
	if !ok {
		return
	}

	ap, err := apply(r.Context(), tenantID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, appointmentToResponse(ap, nil))
}

// identity pulls the caller's tenant (and optionally customer) from headers.
// Auth itself happens upstream; these are trusted forwarded claims.
func (h *BookingHandler) identity(w http.ResponseWriter, r *http.Request, needCustomer bool) (tenantID, customerID string, ok bool) {
	tenantID = strings.TrimSpace(r.Header.Get("X-Tenant-Id"))
	if tenantID == "" {
		http.Error(w, "X-Tenant-Id header required", http.StatusBadRequest)
		return "", "", false
	}
	customerID = strings.TrimSpace(r.Header.Get("X-Customer-Id"))
	if needCustomer && customerID == "" {
		http.Error(w, "X-Customer-Id header required", http.StatusBadRequest)
		return "", "", false
	}
	return tenantID, customerID, true
}

func (h *BookingHandler) decodeAppointmentID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req appointmentIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return "", false
	}
	id := strings.TrimSpace(req.AppointmentID)
	if id == "" {
		http.Error(w, "appointment_id required", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func (h *BookingHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if kind, ok := apperr.KindOf(err); ok {
		status := http.StatusInternalServerError
		switch kind {
		case apperr.KindNotFound:
			status = http.StatusNotFound
		case apperr.KindForbidden:
			status = http.StatusForbidden
		case apperr.KindValidation:
			status = http.StatusBadRequest
		case apperr.KindConflict:
			status = http.StatusConflict
		}
		http.Error(w, err.Error(), status)
		return
	}
	h.logger.Error("request failed", "path", r.URL.Path, "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func (h *BookingHandler) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func appointmentToResponse(ap *model.Appointment, barber *model.Barber) appointmentResponse {
	resp := appointmentResponse{
		AppointmentID:   ap.ID,
		BarberID:        ap.BarberID,
		ServiceIDs:      ap.ServiceIDs,
		StartTime:       ap.StartTime.UTC().Format(time.RFC3339),
		EndTime:         ap.EndTime.UTC().Format(time.RFC3339),
		DurationMinutes: ap.DurationMinutes,
		Status:          string(ap.Status),
	}
	if barber != nil {
		resp.BarberName = barber.Name
	}
	if ap.CancelledAt != nil {
		resp.CancelledAt = ap.CancelledAt.UTC().Format(time.RFC3339)
	}
	if ap.ConfirmedAt != nil {
		resp.ConfirmedAt = ap.ConfirmedAt.UTC().Format(time.RFC3339)
	}
	if ap.CompletedAt != nil {
		resp.CompletedAt = ap.CompletedAt.UTC().Format(time.RFC3339)
	}
	return resp
}
