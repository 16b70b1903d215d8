package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/harrydbarnes/recordsteps/export"
	"github.com/harrydbarnes/recordsteps/step"
)

// API is the control-panel HTTP surface over a Service: login, status,
// start/stop, the step log, exports, and a websocket live stream of
// appended steps. The panel is the only intended client; engines never
// call in here.
type API struct {
	svc    *Service
	auth   *Authenticator
	logger *slog.Logger

	upgrader websocket.Upgrader
}

// NewAPI creates the HTTP surface.
func NewAPI(svc *Service, auth *Authenticator, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		svc:    svc,
		auth:   auth,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// Router builds the chi router for the API.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/api/login", a.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(a.auth.Middleware, RequireAuth)
		r.Get("/api/status", a.handleStatus)
		r.Post("/api/recording/start", a.handleStart)
		r.Post("/api/recording/stop", a.handleStop)
		r.Put("/api/recording/verbosity", a.handleVerbosity)
		r.Get("/api/sessions", a.handleSessions)
		r.Get("/api/sessions/{id}", a.handleSession)
		r.Get("/api/sessions/{id}/steps", a.handleSteps)
		r.Get("/api/sessions/{id}/export", a.handleExport)
		r.Delete("/api/sessions/{id}", a.handleClear)
	})

	// The websocket stream authenticates through a token query
	// parameter: browser WebSocket clients cannot set headers.
	r.Get("/api/stream", a.handleStream)
	return r
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token    string `json:"token"`
		Operator string `json:"operator"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	jwt, err := a.auth.Login(req.Token, req.Operator)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid control token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": jwt})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := a.svc.Status(r.Context())
	if err != nil {
		a.serverError(w, "status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) handleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL       string `json:"url"`
		Verbosity int    `json:"verbosity"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	sess, err := a.svc.Start(r.Context(), req.URL, step.Verbosity(req.Verbosity))
	if errors.Is(err, ErrAlreadyRecording) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		a.serverError(w, "start", err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (a *API) handleStop(w http.ResponseWriter, r *http.Request) {
	sess, err := a.svc.Stop(r.Context())
	if errors.Is(err, ErrNotRecording) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		a.serverError(w, "stop", err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (a *API) handleVerbosity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Verbosity int `json:"verbosity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := a.svc.SetVerbosity(r.Context(), step.Verbosity(req.Verbosity)); err != nil {
		a.serverError(w, "verbosity", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"verbosity": int(step.Verbosity(req.Verbosity).Clamp())})
}

func (a *API) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := a.svc.Sessions(r.Context())
	if err != nil {
		a.serverError(w, "sessions", err)
		return
	}
	if sessions == nil {
		sessions = []*Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := a.svc.Session(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		a.serverError(w, "session", err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (a *API) handleSteps(w http.ResponseWriter, r *http.Request) {
	recs, err := a.svc.Steps(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.serverError(w, "steps", err)
		return
	}
	if recs == nil {
		recs = []step.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := a.svc.Session(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		a.serverError(w, "export", err)
		return
	}
	recs, err := a.svc.Steps(r.Context(), id)
	if err != nil {
		a.serverError(w, "export", err)
		return
	}

	name := "recordsteps " + sess.ID
	switch r.URL.Query().Get("format") {
	case "", "json":
		data, err := export.JSON(recs)
		if err != nil {
			a.serverError(w, "export", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	case "playwright":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write(export.Playwright(name, recs))
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(export.HTMLReport(name, recs))
	default:
		writeError(w, http.StatusBadRequest, "unknown format: want json, playwright or html")
	}
}

func (a *API) handleClear(w http.ResponseWriter, r *http.Request) {
	err := a.svc.Clear(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if errors.Is(err, ErrAlreadyRecording) {
		writeError(w, http.StatusConflict, "session is recording, stop first")
		return
	}
	if err != nil {
		a.serverError(w, "clear", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStream upgrades to a websocket and forwards every appended
// step until the client disconnects.
func (a *API) handleStream(w http.ResponseWriter, r *http.Request) {
	if _, err := a.auth.Validate(r.URL.Query().Get("token")); err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Warn("session: websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	recs, cancel := a.svc.Subscribe()
	defer cancel()

	// Reader goroutine: drains control frames and signals disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case rec, ok := <-recs:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(rec); err != nil {
				a.logger.Debug("session: websocket write failed", "error", err)
				return
			}
		}
	}
}

func (a *API) serverError(w http.ResponseWriter, op string, err error) {
	a.logger.Error("session: api "+op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
