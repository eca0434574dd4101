// Package query exposes a decoded run over HTTP.
package query

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kilianp07/harvestplan/core/eventlog"
	"github.com/kilianp07/harvestplan/core/logger"
	"github.com/kilianp07/harvestplan/core/model"
	corequery "github.com/kilianp07/harvestplan/core/query"
	"github.com/kilianp07/harvestplan/core/timeline"
)

// maxFrames caps the frames returned by one request.
const maxFrames = 10000

// Options configure the handler. Zero values disable the optional parts.
type Options struct {
	// Token, when set, must be sent as "Authorization: Bearer <token>".
	Token string
	// Events serves /events when set.
	Events eventlog.Store
	Logger logger.Logger
}

type api struct {
	engine *corequery.Engine
	opts   Options
}

// NewHandler returns the router serving engine under /api/v1.
func NewHandler(engine *corequery.Engine, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logger.NopLogger{}
	}
	a := &api{engine: engine, opts: opts}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.logRequests)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Group(func(pr chi.Router) {
			pr.Use(a.requireToken)
			pr.Get("/run", a.handleRun)
			pr.Get("/machines/{id}", a.handleMachine)
			pr.Get("/fields/{id}", a.handleField)
			pr.Get("/silos/{id}", a.handleSilo)
			pr.Get("/frames", a.handleFrames)
			pr.Get("/events", a.handleEvents)
		})
	})
	return r
}

func (a *api) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.opts.Logger.Debugw("http request", map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		})
	})
}

func (a *api) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.opts.Token != "" {
			got := r.Header.Get("Authorization")
			if subtle.ConstantTimeCompare([]byte(got), []byte("Bearer "+a.opts.Token)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type runResponse struct {
	RunID   string           `json:"run_id"`
	Source  string           `json:"source"`
	Decoded int              `json:"decoded"`
	End     float64          `json:"end"`
	Summary timeline.Summary `json:"summary"`
}

func (a *api) handleRun(w http.ResponseWriter, _ *http.Request) {
	res := a.engine.Result()
	writeJSON(w, http.StatusOK, runResponse{
		RunID:   res.RunID,
		Source:  res.Source,
		Decoded: res.Decoded,
		End:     res.End,
		Summary: timeline.Summarize(res),
	})
}

func (a *api) handleMachine(w http.ResponseWriter, r *http.Request) {
	id, t, ok := entityParams(w, r)
	if !ok {
		return
	}
	snap, _, err := a.engine.Machine(model.MachineID(id), t, corequery.Cursor{})
	a.respond(w, snap, err)
}

func (a *api) handleField(w http.ResponseWriter, r *http.Request) {
	id, t, ok := entityParams(w, r)
	if !ok {
		return
	}
	snap, _, err := a.engine.Field(model.FieldID(id), t, corequery.Cursor{})
	a.respond(w, snap, err)
}

func (a *api) handleSilo(w http.ResponseWriter, r *http.Request) {
	id, t, ok := entityParams(w, r)
	if !ok {
		return
	}
	snap, _, err := a.engine.Silo(model.SiloID(id), t, corequery.Cursor{})
	a.respond(w, snap, err)
}

func (a *api) handleFrames(w http.ResponseWriter, r *http.Request) {
	step, err := floatParam(r, "step", 60)
	if err != nil || step <= 0 {
		writeError(w, http.StatusBadRequest, "invalid step")
		return
	}
	if a.engine.Result().End/step > maxFrames {
		writeError(w, http.StatusBadRequest, "step too small")
		return
	}
	frames, err := a.engine.Frames(step)
	a.respond(w, frames, err)
}

func (a *api) handleEvents(w http.ResponseWriter, r *http.Request) {
	if a.opts.Events == nil {
		writeError(w, http.StatusNotFound, "event log disabled")
		return
	}
	q := eventlog.Query{
		RunID: r.URL.Query().Get("run_id"),
		Kind:  timeline.EventKind(r.URL.Query().Get("kind")),
	}
	if q.RunID == "" {
		q.RunID = a.engine.Result().RunID
	}
	if s := r.URL.Query().Get("machine"); s != "" {
		id, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid machine")
			return
		}
		q.Machine = model.MachineID(id)
	}
	recs, err := a.opts.Events.Query(r.Context(), q)
	if recs == nil {
		recs = []eventlog.Record{}
	}
	a.respond(w, recs, err)
}

func (a *api) respond(w http.ResponseWriter, body any, err error) {
	switch {
	case errors.Is(err, corequery.ErrNoTimeline):
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		a.opts.Logger.Errorf("query api: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		writeJSON(w, http.StatusOK, body)
	}
}

func entityParams(w http.ResponseWriter, r *http.Request) (int, float64, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, 0, false
	}
	t, err := floatParam(r, "t", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid t")
		return 0, 0, false
	}
	return id, t, true
}

func floatParam(r *http.Request, name string, def float64) (float64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}
	return strconv.ParseFloat(s, 64)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
