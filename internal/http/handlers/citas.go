package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/despacho-web/internal/appointment"
	"github.com/wolfman30/despacho-web/internal/identity"
	"github.com/wolfman30/despacho-web/pkg/logging"
)

// AppointmentHandler serves the booking widget.
type AppointmentHandler struct {
	svc    *appointment.Service
	logger *logging.Logger
}

func NewAppointmentHandler(svc *appointment.Service, logger *logging.Logger) *AppointmentHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AppointmentHandler{svc: svc, logger: logger}
}

// HandleAvailableHours serves GET /api/citas/horarios/{fecha}. The body is
// always an hours view; the status tells the page what went wrong.
func (h *AppointmentHandler) HandleAvailableHours(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.LoadAvailableHours(r.Context(), chi.URLParam(r, "fecha"))
	status := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, appointment.ErrDateOutOfRange):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, appointment.ErrInvalidDate):
		status = http.StatusBadRequest
	default:
		status = http.StatusBadGateway
	}
	writeJSON(w, status, view)
}

// HandleSubmit serves POST /api/citas. The form may arrive as JSON or as
// url-encoded fields.
func (h *AppointmentHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var form appointment.Form
	if isJSON(r) {
		if err := decodeJSON(w, r, &form); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form")
			return
		}
		form = appointment.Form{
			Name:        r.PostForm.Get("nombre"),
			Email:       r.PostForm.Get("email"),
			Phone:       r.PostForm.Get("telefono"),
			Date:        r.PostForm.Get("fecha"),
			Time:        r.PostForm.Get("hora"),
			ServiceType: r.PostForm.Get("tipo_servicio"),
			Description: r.PostForm.Get("descripcion"),
		}
	}

	userID, _ := identity.FromContext(r.Context())
	view, err := h.svc.HandleCitaSubmit(r.Context(), userID, form)
	var verr *appointment.ValidationError
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, view)
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, view)
	default:
		writeJSON(w, http.StatusBadGateway, view)
	}
}

// HandleForm serves GET /api/citas/form, optionally prefilled from the chat.
func (h *AppointmentHandler) HandleForm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, h.svc.Prefill(q.Get("servicio"), q.Get("descripcion")))
}

// HandleList serves GET /admin/citas.
func (h *AppointmentHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	citas, err := h.svc.ListAppointments(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to load appointments")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"citas": citas, "total": len(citas)})
}
