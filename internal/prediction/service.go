package prediction

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/despacho-web/internal/debounce"
	"github.com/wolfman30/despacho-web/internal/legalapi"
	"github.com/wolfman30/despacho-web/internal/ui"
	"github.com/wolfman30/despacho-web/pkg/logging"
)

const (
	widgetName = "prediction"

	// DefaultDebounce is the quiet window before a submission is sent.
	DefaultDebounce = 500 * time.Millisecond
	// DefaultHistoryLimit is how many past predictions the widget shows.
	DefaultHistoryLimit = 10

	// ResultSection is the page anchor of the result card.
	ResultSection = "resultSection"
	// AnimationDelay is the pause before the result card fades in.
	AnimationDelay = 100 * time.Millisecond

	msgPredictFailed = "Error al analizar el caso. Por favor, intenta nuevamente."
	msgUnreachable   = "No se puede conectar con el servidor de predicción. Asegúrate de que esté ejecutándose en el puerto 8003."
	msgNothingExport = "No hay resultados para exportar"
)

// ErrNothingToExport is returned when export is requested without a result.
var ErrNothingToExport = errors.New("prediction: no result to export")

// Upstream is the subset of the legal API the prediction widget uses.
type Upstream interface {
	Predict(ctx context.Context, intake legalapi.CaseIntake) (*legalapi.PredictionResult, error)
	CaseTypes(ctx context.Context) (*legalapi.CaseTypes, error)
	PredictionStats(ctx context.Context) (*legalapi.PredictionStats, error)
	PredictionHistory(ctx context.Context, limit int) (*legalapi.PredictionHistory, error)
	Health(ctx context.Context, svc legalapi.Service) (*legalapi.Health, error)
}

// Metrics records rejections and collapsed submissions.
type Metrics interface {
	ObserveValidationRejected(widget string)
	ObserveDebounceCollapsed(n int)
}

// Config wires a Service.
type Config struct {
	API      Upstream
	Metrics  Metrics
	Logger   *logging.Logger
	Debounce time.Duration
	Location *time.Location
	Now      func() time.Time
}

// Service drives the prediction widget.
type Service struct {
	api     Upstream
	metrics Metrics
	logger  *logging.Logger
	loc     *time.Location
	now     func() time.Time
	submits *debounce.Group[*SubmitView]
}

func NewService(cfg Config) *Service {
	if cfg.API == nil {
		panic("prediction: upstream API required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Service{
		api:     cfg.API,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
		loc:     cfg.Location,
		now:     cfg.Now,
		submits: debounce.New[*SubmitView](cfg.Debounce),
	}
	s.submits.OnRun = func(key string, callers int) {
		if callers > 1 {
			s.logger.Debug("prediction: collapsed submissions", "user_id", key, "callers", callers)
			if s.metrics != nil {
				s.metrics.ObserveDebounceCollapsed(callers - 1)
			}
		}
	}
	return s
}

// ResultView is the result card.
type ResultView struct {
	Percent             int           `json:"probabilidad"`
	Tier                Tier          `json:"nivel"`
	TierClass           string        `json:"css_class"`
	Outcome             string        `json:"tipo_sentencia"`
	EstimatedMonths     int           `json:"tiempo_estimado_meses"`
	ConfidencePercent   int           `json:"confianza"`
	RiskFactors         []string      `json:"factores_riesgo"`
	Recommendations     []string      `json:"recomendaciones"`
	RiskFactorsHTML     template.HTML `json:"factores_riesgo_html"`
	RecommendationsHTML template.HTML `json:"recomendaciones_html"`
	ScrollTo            string        `json:"scroll_to"`
	AnimationDelayMS    int64         `json:"animation_delay_ms"`
}

// NewResultView builds the result card from a model answer.
func NewResultView(res *legalapi.PredictionResult) *ResultView {
	percent := Percent(res.SuccessProbability)
	tier := TierFor(percent)
	risks := nonNil(res.RiskFactors)
	recs := nonNil(res.Recommendations)
	return &ResultView{
		Percent:             percent,
		Tier:                tier,
		TierClass:           tier.CSSClass(),
		Outcome:             res.ProbableOutcome,
		EstimatedMonths:     res.EstimatedMonths,
		ConfidencePercent:   Percent(res.Confidence),
		RiskFactors:         risks,
		Recommendations:     recs,
		RiskFactorsHTML:     ui.RenderList(risks, "risk-factor"),
		RecommendationsHTML: ui.RenderList(recs, "recommendation"),
		ScrollTo:            ResultSection,
		AnimationDelayMS:    AnimationDelay.Milliseconds(),
	}
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}

// SubmitView is the outcome of a submission: a result card or a toast.
type SubmitView struct {
	OK     bool        `json:"ok"`
	Result *ResultView `json:"result,omitempty"`
	Toast  *ui.Toast   `json:"toast,omitempty"`
}

// Submit debounces submissions per visitor. Submissions arriving within the
// quiet window collapse into one: the latest intake is validated and sent,
// and every collapsed caller receives the same view and error.
func (s *Service) Submit(ctx context.Context, userID string, intake legalapi.CaseIntake) (*SubmitView, error) {
	key := userID
	if key == "" {
		key = "anonymous"
	}
	return s.submits.Do(ctx, key, func(ctx context.Context) (*SubmitView, error) {
		return s.analyze(ctx, intake)
	})
}

func (s *Service) analyze(ctx context.Context, intake legalapi.CaseIntake) (*SubmitView, error) {
	intake = Normalize(intake)
	if err := Validate(intake); err != nil {
		if s.metrics != nil {
			s.metrics.ObserveValidationRejected(widgetName)
		}
		return &SubmitView{Toast: ui.NewErrorToast(err.Error())}, err
	}

	res, err := s.api.Predict(ctx, intake)
	if err != nil {
		s.logger.Error("prediction: predict failed", "tipo_caso", intake.CaseType, "error", err)
		return &SubmitView{Toast: ui.NewErrorToast(msgPredictFailed)}, err
	}

	view := NewResultView(res)
	s.logger.Info("prediction: case analysed", "tipo_caso", intake.CaseType, "probabilidad", view.Percent, "nivel", string(view.Tier))
	return &SubmitView{OK: true, Result: view}, nil
}

// CaseTypesView is the case type selector with the model's per-type details.
type CaseTypesView struct {
	Types        []CaseType                         `json:"tipos"`
	OptionsHTML  template.HTML                      `json:"options_html"`
	Details      map[string]legalapi.CaseTypeDetail `json:"detalles,omitempty"`
	Complexities []string                           `json:"complejidades"`
}

// CaseTypes loads the case types the model knows. The built-in list is
// returned alongside the error when the model cannot be reached.
func (s *Service) CaseTypes(ctx context.Context) (*CaseTypesView, error) {
	res, err := s.api.CaseTypes(ctx)
	if err != nil {
		s.logger.Warn("prediction: loading case types failed", "error", err)
		return newCaseTypesView(DefaultCaseTypes, nil), err
	}
	types := make([]CaseType, 0, len(res.Types))
	for _, code := range res.Types {
		types = append(types, CaseType{Code: code, Label: caseTypeLabel(code)})
	}
	if len(types) == 0 {
		types = DefaultCaseTypes
	}
	return newCaseTypesView(types, res.Details), nil
}

func newCaseTypesView(types []CaseType, details map[string]legalapi.CaseTypeDetail) *CaseTypesView {
	opts := make([]ui.Option, 0, len(types)+1)
	opts = append(opts, ui.Option{Label: "Seleccione el tipo de caso"})
	for _, t := range types {
		opts = append(opts, ui.Option{Value: t.Code, Label: t.Label})
	}
	return &CaseTypesView{
		Types:        types,
		OptionsHTML:  ui.RenderOptions(opts),
		Details:      details,
		Complexities: Complexities,
	}
}

func caseTypeLabel(code string) string {
	for _, t := range DefaultCaseTypes {
		if t.Code == code {
			return t.Label
		}
	}
	return code
}

// ConnectionView reports whether the prediction server is reachable.
type ConnectionView struct {
	Connected bool      `json:"connected"`
	Toast     *ui.Toast `json:"toast,omitempty"`
}

// CheckConnection probes the prediction server. An unreachable server
// produces a toast; a reachable but unhealthy one is only logged.
func (s *Service) CheckConnection(ctx context.Context) *ConnectionView {
	health, err := s.api.Health(ctx, legalapi.ServicePrediction)
	if err != nil {
		s.logger.Error("prediction: server unreachable", "error", err)
		return &ConnectionView{Toast: ui.NewErrorToast(msgUnreachable)}
	}
	if !health.Healthy() {
		s.logger.Warn("prediction: server not healthy", "status", health.Status)
		return &ConnectionView{}
	}
	return &ConnectionView{Connected: true}
}

// InitView is everything the widget needs on page load.
type InitView struct {
	CaseTypes  *CaseTypesView  `json:"case_types"`
	Connection *ConnectionView `json:"connection"`
}

// Init loads the case types and probes the server concurrently.
func (s *Service) Init(ctx context.Context) (*InitView, error) {
	view := &InitView{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Failures fall back to the built-in list.
		view.CaseTypes, _ = s.CaseTypes(gctx)
		return nil
	})
	g.Go(func() error {
		view.Connection = s.CheckConnection(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return view, nil
}

// Stats returns aggregate statistics with types ordered by volume.
func (s *Service) Stats(ctx context.Context) (*legalapi.PredictionStats, error) {
	stats, err := s.api.PredictionStats(ctx)
	if err != nil {
		s.logger.Error("prediction: loading stats failed", "error", err)
		return nil, err
	}
	sort.SliceStable(stats.ByType, func(i, j int) bool {
		return stats.ByType[i].Total > stats.ByType[j].Total
	})
	return stats, nil
}

// History returns the latest predictions. limit <= 0 uses the default.
func (s *Service) History(ctx context.Context, limit int) (*legalapi.PredictionHistory, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	history, err := s.api.PredictionHistory(ctx, limit)
	if err != nil {
		s.logger.Error("prediction: loading history failed", "limit", limit, "error", err)
		return nil, err
	}
	return history, nil
}

// ExportDocument is the downloadable summary of a result.
type ExportDocument struct {
	Date               string `json:"fecha"`
	SuccessProbability string `json:"probabilidad_exito"`
	Outcome            string `json:"tipo_sentencia"`
	EstimatedTime      string `json:"tiempo_estimado"`
	Confidence         string `json:"confianza"`
}

// ExportView carries the export document or, without a result, a toast.
type ExportView struct {
	Document *ExportDocument `json:"document,omitempty"`
	FileName string          `json:"file_name,omitempty"`
	Toast    *ui.Toast       `json:"toast,omitempty"`
}

// Export summarises a result for download. A nil result yields
// ErrNothingToExport.
func (s *Service) Export(result *ResultView) (*ExportView, error) {
	if result == nil {
		return &ExportView{Toast: ui.NewErrorToast(msgNothingExport)}, ErrNothingToExport
	}
	now := s.now().In(s.loc)
	return &ExportView{
		Document: &ExportDocument{
			Date:               now.Format("2/1/2006, 15:04:05"),
			SuccessProbability: fmt.Sprintf("%d%%", result.Percent),
			Outcome:            result.Outcome,
			EstimatedTime:      fmt.Sprintf("%d meses", result.EstimatedMonths),
			Confidence:         fmt.Sprintf("%d%%", result.ConfidencePercent),
		},
		FileName: fmt.Sprintf("prediccion_%d.json", now.UnixMilli()),
	}, nil
}
