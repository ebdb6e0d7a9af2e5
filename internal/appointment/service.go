package appointment

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/wolfman30/despacho-web/internal/legalapi"
	"github.com/wolfman30/despacho-web/internal/ui"
	"github.com/wolfman30/despacho-web/pkg/logging"
)

const widgetName = "appointment"

// Messages shown in the hour selector and alerts.
const (
	placeholderHour   = "Seleccione una hora"
	noHoursLabel      = "No hay horarios disponibles"
	hoursErrorLabel   = "Error cargando horarios"
	noHoursMessage    = "No hay horarios disponibles para esta fecha. Por favor seleccione otra fecha."
	hoursErrorMessage = "Error cargando horarios disponibles. Por favor intente nuevamente."
	bookErrorMessage  = "Error agendando la cita. Por favor intente nuevamente."
	networkMessage    = "No se puede conectar con el servidor. Por favor verifique su conexión a internet y que el servidor esté ejecutándose."
)

var (
	// ErrInvalidDate is returned for a date that is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("appointment: invalid date")
	// ErrDateOutOfRange is returned when a date falls outside the bookable window.
	ErrDateOutOfRange = errors.New("appointment: date outside bookable window")
)

// Upstream is the subset of the legal API the booking widget uses.
type Upstream interface {
	AvailableHours(ctx context.Context, date string) (*legalapi.AvailableHours, error)
	BookAppointment(ctx context.Context, req legalapi.AppointmentRequest) (*legalapi.AppointmentResponse, error)
	ListAppointments(ctx context.Context) ([]legalapi.Appointment, error)
}

// ChatNotifier echoes booking confirmations into the visitor's chat and
// closes any pending appointment request raised by the chat.
type ChatNotifier interface {
	ConfirmAppointment(ctx context.Context, userID, text string) error
}

// Metrics records validation rejections.
type Metrics interface {
	ObserveValidationRejected(widget string)
}

// Config wires a Service.
type Config struct {
	API      Upstream
	Notifier ChatNotifier
	Metrics  Metrics
	Logger   *logging.Logger
	// Location is the timezone dates are entered and displayed in.
	Location *time.Location
	Now      func() time.Time
}

// Service drives the booking widget.
type Service struct {
	api      Upstream
	notifier ChatNotifier
	metrics  Metrics
	logger   *logging.Logger
	loc      *time.Location
	now      func() time.Time
}

// NewService constructs the booking widget service.
func NewService(cfg Config) *Service {
	if cfg.API == nil {
		panic("appointment: upstream API required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		api:      cfg.API,
		notifier: cfg.Notifier,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		loc:      cfg.Location,
		now:      cfg.Now,
	}
}

// Location returns the display timezone.
func (s *Service) Location() *time.Location { return s.loc }

// HoursView is the state of the hour selector after a date change.
type HoursView struct {
	Date        string        `json:"fecha"`
	Options     []ui.Option   `json:"options"`
	OptionsHTML template.HTML `json:"options_html"`
	Disabled    bool          `json:"disabled"`
	Alert       *ui.Alert     `json:"alert,omitempty"`
}

func newHoursView(date string, disabled bool, alert *ui.Alert, opts ...ui.Option) *HoursView {
	return &HoursView{
		Date:        date,
		Options:     opts,
		OptionsHTML: ui.RenderOptions(opts),
		Disabled:    disabled,
		Alert:       alert,
	}
}

// LoadAvailableHours fetches the open slots for date and builds the hour
// selector. The returned view is always usable; the error classifies what
// went wrong for logging and status codes.
func (s *Service) LoadAvailableHours(ctx context.Context, date string) (*HoursView, error) {
	if date == "" {
		return newHoursView(date, false, nil, ui.Option{Label: placeholderHour}), nil
	}

	day, err := time.ParseInLocation(DateLayout, date, s.loc)
	if err != nil {
		return newHoursView(date, true, ui.NewAlert(ui.AlertError, "Formato de fecha inválido. Use: AAAA-MM-DD"),
			ui.Option{Label: placeholderHour}), fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	minDate, maxDate := DateBounds(s.now(), s.loc)
	if d := day.Format(DateLayout); d < minDate || d > maxDate {
		msg := fmt.Sprintf("Seleccione una fecha entre el %s y el %s.", FormatDateOnly(minDate, s.loc), FormatDateOnly(maxDate, s.loc))
		return newHoursView(date, true, ui.NewAlert(ui.AlertWarning, msg), ui.Option{Label: placeholderHour}), ErrDateOutOfRange
	}

	hours, err := s.api.AvailableHours(ctx, date)
	if err != nil {
		s.logger.Error("appointment: loading available hours failed", "fecha", date, "error", err)
		return newHoursView(date, true, ui.NewAlert(ui.AlertError, hoursErrorMessage),
			ui.Option{Label: hoursErrorLabel}), err
	}

	if len(hours.Available) == 0 {
		return newHoursView(date, false, ui.NewAlert(ui.AlertWarning, noHoursMessage),
			ui.Option{Label: noHoursLabel}), nil
	}

	opts := make([]ui.Option, 0, len(hours.Available)+1)
	opts = append(opts, ui.Option{Label: placeholderHour})
	for _, h := range hours.Available {
		opts = append(opts, ui.Option{Value: h, Label: FormatTime(h)})
	}
	return newHoursView(date, false, nil, opts...), nil
}

// SubmitView is the outcome of a booking submission.
type SubmitView struct {
	OK          bool                          `json:"ok"`
	Appointment *legalapi.AppointmentResponse `json:"cita,omitempty"`
	Errors      []string                      `json:"errors,omitempty"`
	Alert       *ui.Alert                     `json:"alert"`
	ResetForm   bool                          `json:"reset_form"`
	// HoursHTML replaces the hour selector after a successful booking.
	HoursHTML   template.HTML `json:"hours_html,omitempty"`
	ChatMessage string        `json:"chat_message,omitempty"`
}

// HandleCitaSubmit validates a booking form and submits it upstream. On
// success the confirmation is also appended to the visitor's chat.
func (s *Service) HandleCitaSubmit(ctx context.Context, userID string, form Form) (*SubmitView, error) {
	req := form.Request()
	if err := Validate(req, s.now(), s.loc); err != nil {
		var verr *ValidationError
		errors.As(err, &verr)
		if s.metrics != nil {
			s.metrics.ObserveValidationRejected(widgetName)
		}
		return &SubmitView{
			Errors: verr.Messages,
			Alert:  ui.NewAlert(ui.AlertError, verr.Error()),
		}, err
	}

	resp, err := s.api.BookAppointment(ctx, req)
	if err != nil {
		s.logger.Error("appointment: booking failed", "servicio", req.ServiceType, "error", err)
		return &SubmitView{Alert: ui.NewAlert(ui.AlertError, bookingErrorMessage(err))}, err
	}

	when := FormatDateTime(resp.Details.Date, s.loc)
	svc := ServiceName(resp.Details.Service)
	alert := fmt.Sprintf("¡Cita agendada exitosamente!\nID de cita: %s\nFecha: %s\nServicio: %s\n\nRecibirá un email de confirmación en breve.",
		resp.ID, when, svc)
	chatMsg := fmt.Sprintf("Perfecto! Tu cita ha sido agendada para el %s para %s. ID de cita: %s", when, svc, resp.ID)

	if s.notifier != nil && userID != "" {
		if err := s.notifier.ConfirmAppointment(ctx, userID, chatMsg); err != nil {
			s.logger.Warn("appointment: echo to chat failed", "user_id", userID, "error", err)
		}
	}

	s.logger.Info("appointment booked", "cita_id", resp.ID.String(), "servicio", resp.Details.Service)
	return &SubmitView{
		OK:          true,
		Appointment: resp,
		Alert:       ui.NewAlert(ui.AlertSuccess, alert),
		ResetForm:   true,
		HoursHTML:   ui.RenderOptions([]ui.Option{{Label: placeholderHour}}),
		ChatMessage: chatMsg,
	}, nil
}

func bookingErrorMessage(err error) string {
	if apiErr, ok := legalapi.AsAPIError(err); ok {
		if msg := apiErr.UserMessage(); msg != "" {
			return msg
		}
		return bookErrorMessage
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return bookErrorMessage
	}
	return networkMessage
}

// FormView carries what the page needs to draw the booking form.
type FormView struct {
	MinDate         string        `json:"min_fecha"`
	MaxDate         string        `json:"max_fecha"`
	ServiceOptions  []ui.Option   `json:"servicios"`
	ServicesHTML    template.HTML `json:"servicios_html"`
	Description     string        `json:"descripcion,omitempty"`
	SelectedService string        `json:"tipo_servicio,omitempty"`
}

// Prefill builds the booking form, optionally preselecting a service the
// visitor picked in the chat and carrying over a description.
func (s *Service) Prefill(serviceValue, description string) *FormView {
	minDate, maxDate := DateBounds(s.now(), s.loc)
	selected, _ := ResolveService(serviceValue)

	opts := make([]ui.Option, 0, len(services)+1)
	opts = append(opts, ui.Option{Label: "Seleccione un servicio"})
	for _, svc := range services {
		opts = append(opts, ui.Option{Value: svc.Code, Label: svc.Name, Selected: svc.Code == selected})
	}
	return &FormView{
		MinDate:         minDate,
		MaxDate:         maxDate,
		ServiceOptions:  opts,
		ServicesHTML:    ui.RenderOptions(opts),
		Description:     description,
		SelectedService: selected,
	}
}

// ListAppointments returns every booking known upstream (admin view).
func (s *Service) ListAppointments(ctx context.Context) ([]legalapi.Appointment, error) {
	citas, err := s.api.ListAppointments(ctx)
	if err != nil {
		s.logger.Error("appointment: listing failed", "error", err)
		return nil, err
	}
	return citas, nil
}

// FormatDateOnly renders "YYYY-MM-DD" as a long es-MX date.
func FormatDateOnly(date string, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return date
	}
	return fmt.Sprintf("%d de %s de %d", t.Day(), spanishMonths[t.Month()-1], t.Year())
}
