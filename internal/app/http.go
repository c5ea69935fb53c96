package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"contentcal/api/internal/auth"
	"contentcal/api/internal/content"
	"contentcal/api/internal/export"
	"contentcal/api/internal/localstore"
	"contentcal/api/internal/logger"
	"contentcal/api/internal/metrics"
	"contentcal/api/internal/reconcile"
)

const (
	headerWebsiteID = "X-Website-ID"
	headerSessionID = "X-Session-ID"
	headerLockToken = "X-Lock-Token"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	jwtSecret  []byte
	metrics    *metrics.Metrics
	log        logger.Logger
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{
		service:    service,
		corsOrigin: corsOrigin,
		jwtSecret:  []byte(service.cfg.JWTSecret),
		metrics:    service.metrics,
		log:        service.log.With(logger.String("component", "http")),
	}
}

func (s *HTTPServer) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.withMiddleware)
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			setCORSHeaders(w.Header(), s.corsOrigin)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})

	router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	router.HandleFunc("/api/ready", s.handleReady).Methods(http.MethodGet, http.MethodHead)
	if s.metrics != nil {
		router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.withCaller)
	api.HandleFunc("/plan/generate", s.handleGenerate).Methods(http.MethodPost)
	api.HandleFunc("/plan", s.handlePlan).Methods(http.MethodGet)
	api.HandleFunc("/plan/status", s.handlePlanStatus).Methods(http.MethodGet)
	api.HandleFunc("/plan/approve", s.handleApprove).Methods(http.MethodPost)
	api.HandleFunc("/plan/export", s.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/plan/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/plan/history/{hash}/restore", s.handleRestore).Methods(http.MethodPost)
	api.HandleFunc("/plan/items", s.handleAddItem).Methods(http.MethodPost)
	api.HandleFunc("/plan/items/{id}", s.handleUpdateItem).Methods(http.MethodPut)
	api.HandleFunc("/plan/items/{id}", s.handleDeleteItem).Methods(http.MethodDelete)
	api.HandleFunc("/plan/items/{id}/toggle", s.handleToggleItem).Methods(http.MethodPost)
	api.HandleFunc("/plan/items/{id}/lock", s.handleLockStatus).Methods(http.MethodGet)
	api.HandleFunc("/plan/items/{id}/lock", s.handleAcquireLock).Methods(http.MethodPost)
	api.HandleFunc("/plan/items/{id}/lock", s.handleReleaseLock).Methods(http.MethodDelete)
	api.HandleFunc("/plan/items/{id}/lock/renew", s.handleRenewLock).Methods(http.MethodPost)
	api.HandleFunc("/settings", s.handleSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handleSaveSettings).Methods(http.MethodPut)
	api.HandleFunc("/websites", s.handleWebsites).Methods(http.MethodGet)
	api.HandleFunc("/websites", s.handleCreateWebsite).Methods(http.MethodPost)
	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)

	return router
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"storage": map[string]any{"status": "ok"},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["storage"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body GenerateInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	plan, err := s.service.Generate(r.Context(), body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": plan, "count": len(plan)})
}

func (s *HTTPServer) handlePlan(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.Plan(r.Context(), callerFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handlePlanStatus(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.service.Status(r.Context(), callerFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *HTTPServer) handleApprove(w http.ResponseWriter, r *http.Request) {
	var body ApproveInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	outcome, err := s.service.Approve(r.Context(), callerFrom(r.Context()), body)
	if errors.Is(err, reconcile.ErrDecisionRequired) {
		writeError(w, http.StatusConflict, "DECISION_REQUIRED", err.Error(), outcome)
		return
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *HTTPServer) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var item content.Item
	if err := decodeBody(r, &item); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	stored, err := s.service.AddItem(r.Context(), callerFrom(r.Context()), item)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

func (s *HTTPServer) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var item content.Item
	if err := decodeBody(r, &item); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	item.ID = mux.Vars(r)["id"]
	token := strings.TrimSpace(r.Header.Get(headerLockToken))
	updated, err := s.service.UpdateItem(r.Context(), callerFrom(r.Context()), item, token)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *HTTPServer) handleToggleItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Completed *bool `json:"completed"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	item, err := s.service.ToggleItem(r.Context(), callerFrom(r.Context()), mux.Vars(r)["id"], body.Completed)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *HTTPServer) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteItem(r.Context(), callerFrom(r.Context()), mux.Vars(r)["id"]); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleLockStatus(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.LockStatus(r.Context(), callerFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *HTTPServer) handleAcquireLock(w http.ResponseWriter, r *http.Request) {
	l, err := s.service.AcquireLock(r.Context(), callerFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *HTTPServer) handleReleaseLock(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ReleaseLock(r.Context(), callerFrom(r.Context()), mux.Vars(r)["id"]); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleRenewLock(w http.ResponseWriter, r *http.Request) {
	renewed, err := s.service.RenewLock(r.Context(), callerFrom(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"renewed": renewed})
}

func (s *HTTPServer) handleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.service.Settings(r.Context(), callerFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *HTTPServer) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	body := localstore.Settings{NotifyDays: localstore.DefaultNotifyDays}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	settings, err := s.service.SaveSettings(r.Context(), callerFrom(r.Context()), body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *HTTPServer) handleWebsites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.service.Websites(r.Context(), callerFrom(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"websites": sites})
}

func (s *HTTPServer) handleCreateWebsite(w http.ResponseWriter, r *http.Request) {
	var body CreateWebsiteInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	site, err := s.service.CreateWebsite(r.Context(), callerFrom(r.Context()), body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, site)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	input := SearchInput{
		Text:        query.Get("q"),
		ContentType: query.Get("type"),
		Limit:       queryInt(query.Get("limit"), 20),
		Offset:      queryInt(query.Get("offset"), 0),
	}
	response, err := s.service.Search(r.Context(), callerFrom(r.Context()), input)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	commits, err := s.service.History(r.Context(), callerFrom(r.Context()), queryInt(r.URL.Query().Get("limit"), 50))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commits": commits})
}

func (s *HTTPServer) handleRestore(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.RestoreHistory(r.Context(), callerFrom(r.Context()), mux.Vars(r)["hash"])
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	format, err := export.ParseFormat(strings.ToLower(query.Get("format")))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	layout, err := export.ParseLayout(query.Get("paper"), query.Get("orientation"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	result, err := s.service.Export(r.Context(), callerFrom(r.Context()), format, layout)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", logger.Error(err),
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path))
	}
	writeError(w, status, code, message, details)
}

// withCaller resolves the caller from the bearer token and tenant headers.
// Requests without a token stay anonymous; a bad token is rejected.
func (s *HTTPServer) withCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := Caller{
			WebsiteID: strings.TrimSpace(r.Header.Get(headerWebsiteID)),
			SessionID: strings.TrimSpace(r.Header.Get(headerSessionID)),
		}
		if header := r.Header.Get("Authorization"); strings.TrimSpace(header) != "" {
			claims, err := auth.FromHeader(s.jwtSecret, header)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
				return
			}
			caller.UserID = claims.UserID()
		}
		next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), caller)))
	})
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		took := time.Since(started)
		if s.metrics != nil {
			s.metrics.ObserveHTTP(r.Method, route, writer.status, took)
		}
		s.log.Info("Request",
			logger.String("request_id", requestID),
			logger.String("method", r.Method),
			logger.String("route", route),
			logger.Int("status", writer.status),
			logger.Duration("duration", took),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Website-ID, X-Session-ID, X-Lock-Token")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) || errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func queryInt(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
