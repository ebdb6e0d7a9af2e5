package legalapi

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// FlexibleID accepts identifiers the upstream encodes either as JSON numbers
// (SQLite row ids) or as strings.
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = FlexibleID(n.String())
	return nil
}

func (id FlexibleID) MarshalJSON() ([]byte, error) {
	// Only canonical integers go out bare; "007" or "+5" stay strings.
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id FlexibleID) String() string { return string(id) }

// AvailableHours is the response of GET /horarios_disponibles/{fecha}.
type AvailableHours struct {
	Date      string   `json:"fecha"`
	Available []string `json:"horarios_disponibles"`
	Taken     []string `json:"horarios_ocupados,omitempty"`
}

// AppointmentRequest is the body of POST /agendar_cita. Date carries the
// combined "YYYY-MM-DD HH:MM" string.
type AppointmentRequest struct {
	Name        string `json:"nombre"`
	Email       string `json:"email"`
	Phone       string `json:"telefono"`
	Date        string `json:"fecha"`
	ServiceType string `json:"tipo_servicio"`
	Description string `json:"descripcion"`
}

// AppointmentDetails echoes what was booked.
type AppointmentDetails struct {
	Date    string     `json:"fecha"`
	Service string     `json:"servicio"`
	ID      FlexibleID `json:"id,omitempty"`
}

// AppointmentResponse is the response of POST /agendar_cita.
type AppointmentResponse struct {
	Success bool               `json:"success"`
	ID      FlexibleID         `json:"cita_id"`
	Message string             `json:"mensaje,omitempty"`
	Details AppointmentDetails `json:"detalles"`
}

// Appointment is one row of GET /citas.
type Appointment struct {
	ID          FlexibleID `json:"id"`
	Name        string     `json:"nombre"`
	Email       string     `json:"email"`
	Phone       string     `json:"telefono"`
	Date        string     `json:"fecha"`
	ServiceType string     `json:"tipo_servicio"`
	Description string     `json:"descripcion"`
	Status      string     `json:"estado"`
	CreatedAt   string     `json:"created_at"`
}

type chatRequest struct {
	Message string `json:"mensaje"`
	UserID  string `json:"usuario_id"`
}

// ChatResponse is the response of POST /chat.
type ChatResponse struct {
	Reply               string   `json:"respuesta"`
	Suggestions         []string `json:"sugerencias,omitempty"`
	RequiresAppointment bool     `json:"requiere_cita,omitempty"`
}

// CaseIntake is the body of POST /predict.
type CaseIntake struct {
	CaseType       string   `json:"tipo_caso"`
	Description    string   `json:"descripcion"`
	DisputedAmount float64  `json:"monto_disputa"`
	Complexity     string   `json:"complejidad"`
	Evidence       []string `json:"evidencias"`
	PriorHistory   string   `json:"antecedentes"`
	Jurisdiction   string   `json:"jurisdiccion"`
}

// PredictionResult is the response of POST /predict.
type PredictionResult struct {
	SuccessProbability float64  `json:"probabilidad_exito"`
	ProbableOutcome    string   `json:"tipo_sentencia_probable"`
	EstimatedMonths    int      `json:"tiempo_estimado_meses"`
	Confidence         float64  `json:"confianza_prediccion"`
	RiskFactors        []string `json:"factores_riesgo"`
	Recommendations    []string `json:"recomendaciones"`
}

// CaseTypeDetail describes one case type known to the prediction model.
type CaseTypeDetail struct {
	BaseProbabilities map[string]float64 `json:"probabilidades_base"`
	AverageMonths     float64            `json:"tiempo_promedio"`
	SuccessFactors    []string           `json:"factores_exito"`
}

// CaseTypes is the response of GET /case_types.
type CaseTypes struct {
	Types   []string                  `json:"tipos_casos"`
	Details map[string]CaseTypeDetail `json:"detalles"`
}

// TypeStats aggregates predictions for one case type.
type TypeStats struct {
	CaseType           string  `json:"tipo_caso"`
	Total              int     `json:"total"`
	AverageProbability float64 `json:"probabilidad_promedio"`
	AverageMonths      float64 `json:"tiempo_promedio"`
}

// PredictionStats is the response of GET /predictions/stats.
type PredictionStats struct {
	Total  int         `json:"total_predictions"`
	ByType []TypeStats `json:"stats_by_type"`
}

// PredictionHistory is the response of GET /predictions/history. Rows are
// passed through untouched because their columns follow the upstream table.
type PredictionHistory struct {
	Predictions []map[string]any `json:"predictions"`
}

// Health is the response of GET /health on either service.
type Health struct {
	Status           string `json:"status"`
	Timestamp        string `json:"timestamp,omitempty"`
	ModelLoaded      *bool  `json:"model_loaded,omitempty"`
	VectorizerLoaded *bool  `json:"vectorizer_loaded,omitempty"`
}

// Healthy reports whether the service answered with status "healthy" or "ok".
func (h Health) Healthy() bool {
	return h.Status == "healthy" || h.Status == "ok"
}
