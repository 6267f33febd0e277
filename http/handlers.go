package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"heartpredict/db"
	"heartpredict/ml"
	"heartpredict/service"
)

// HistoryReader lists stored predictions. *db.PredictionStore implements it.
type HistoryReader interface {
	List(ctx context.Context, limit int) ([]db.PredictionRecord, error)
}

// Handlers holds everything the routes need. Feed and Gatherer are optional.
type Handlers struct {
	svc      *service.PredictionService
	history  HistoryReader
	feed     http.HandlerFunc
	gatherer prometheus.Gatherer
	page     *page
	log      *zap.Logger
}

type Dependencies struct {
	Service  *service.PredictionService
	History  HistoryReader
	Feed     http.HandlerFunc
	Gatherer prometheus.Gatherer
	UI       UIConfig
	Logger   *zap.Logger
}

func NewHandlers(deps Dependencies) (*Handlers, error) {
	if deps.Service == nil {
		return nil, errors.New("prediction service is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	pg, err := newPage(deps.UI, deps.Logger)
	if err != nil {
		return nil, err
	}
	return &Handlers{
		svc:      deps.Service,
		history:  deps.History,
		feed:     deps.Feed,
		gatherer: deps.Gatherer,
		page:     pg,
		log:      deps.Logger,
	}, nil
}

func RegisterHandlers(mux *http.ServeMux, h *Handlers) {
	mux.HandleFunc("GET /{$}", h.handleForm)
	mux.HandleFunc("POST /predict", h.handleFormPredict)
	mux.HandleFunc("GET /static/background", h.page.serveBackground)
	mux.HandleFunc("GET /static/logo", h.page.serveLogo)

	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/predict", h.handlePredict)
	mux.HandleFunc("GET /api/predictions", h.handlePredictions)
	mux.HandleFunc("GET /api/model", h.handleModel)

	if h.feed != nil {
		mux.HandleFunc("GET /api/ws/predictions", h.feed)
	}
	if h.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type predictResponse struct {
	Label        int          `json:"label"`
	Confidence   float64      `json:"confidence"`
	Text         string       `json:"text"`
	Tone         service.Tone `json:"tone"`
	RecordID     int64        `json:"record_id,omitempty"`
	PersistError string       `json:"persist_error,omitempty"`
}

// handlePredict accepts the 13 fields as JSON strings or numbers.
func (h *Handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()

	var body map[string]interface{}
	if err := decoder.Decode(&body); err != nil {
		h.fail(w, r, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	raw := make(map[string]string, len(body))
	for key, value := range body {
		switch v := value.(type) {
		case nil:
		case string:
			raw[key] = v
		case json.Number:
			raw[key] = v.String()
		default:
			raw[key] = fmt.Sprint(v)
		}
	}

	update := h.svc.OnPredictRequested(r.Context(), raw)
	if update.Outcome == nil {
		status := http.StatusInternalServerError
		if service.IsInputError(update.Err) {
			status = http.StatusBadRequest
		}
		h.fail(w, r, status, update.Err.Error())
		return
	}

	resp := predictResponse{
		Label:      update.Outcome.Prediction.Label,
		Confidence: update.Outcome.Prediction.Confidence,
		Text:       update.Text,
		Tone:       update.Tone,
		RecordID:   update.Outcome.Record.ID,
	}
	if update.Outcome.PersistErr != nil {
		resp.PersistError = update.Outcome.PersistErr.Error()
	}
	h.respond(w, r, http.StatusOK, resp)
}

type historyEntry struct {
	ID         int64              `json:"id"`
	Features   map[string]float64 `json:"features"`
	Label      int                `json:"label"`
	Confidence float64            `json:"confidence"`
	Timestamp  string             `json:"timestamp"`
}

func (h *Handlers) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.fail(w, r, http.StatusNotFound, "history is not available")
		return
	}

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			h.fail(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = l
	}

	records, err := h.history.List(r.Context(), limit)
	if err != nil {
		h.log.Warn("list predictions failed", zap.Error(err))
		h.fail(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	entries := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, historyEntry{
			ID:         rec.ID,
			Features:   rec.Features.Named(),
			Label:      rec.Label,
			Confidence: rec.Confidence,
			Timestamp:  rec.Timestamp.Format(db.TimestampLayout),
		})
	}
	h.respond(w, r, http.StatusOK, map[string]interface{}{
		"count":       len(entries),
		"predictions": entries,
	})
}

func (h *Handlers) handleModel(w http.ResponseWriter, r *http.Request) {
	model := h.svc.Model()
	mean, scale := model.Scaler.Params()
	h.respond(w, r, http.StatusOK, map[string]interface{}{
		"features":   ml.FeatureNames(),
		"evaluation": model.Evaluation,
		"training":   model.Summary,
		"scaler": map[string]interface{}{
			"mean":  mean,
			"scale": scale,
		},
	})
}

// writeJSON encodes payload before touching the response, so a payload that
// cannot be encoded becomes a 500 instead of a truncated success.
func writeJSON(w http.ResponseWriter, status int, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"could not encode response"}` + "\n"))
		return fmt.Errorf("encode response: %w", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(body, '\n')); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, message string) error {
	return writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, status int, payload interface{}) {
	if err := writeJSON(w, status, payload); err != nil {
		h.log.Error("failed to write response",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.respond(w, r, status, map[string]string{"error": message})
}
