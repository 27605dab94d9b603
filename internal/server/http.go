// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/AccelByte/extend-dayend-engine/pkg/dayclock"
	"github.com/AccelByte/extend-dayend-engine/pkg/dayend"
	"github.com/AccelByte/extend-dayend-engine/pkg/ledger"
)

// Gateway-injected identity headers. The API gateway authenticates the
// caller and forwards the verified identity; this server only enforces
// that callers operate on their own data unless elevated.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserRoles = "X-User-Roles"

	roleAdmin = "admin"
)

type contextKey string

const (
	ctxKeyUserID contextKey = "auth.userID"
	ctxKeyAdmin  contextKey = "auth.admin"
)

// HTTPServer exposes the day-end engine operations over HTTP.
type HTTPServer struct {
	server    *http.Server
	port      int
	processor *dayend.Processor
	clock     *dayclock.Clock
}

// NewHTTPServer creates a new API server instance.
func NewHTTPServer(port int, processor *dayend.Processor, clock *dayclock.Clock) *HTTPServer {
	s := &HTTPServer{
		port:      port,
		processor: processor,
		clock:     clock,
	}
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.buildRouter(),
	}
	return s
}

// Handler exposes the configured router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/v1/dayend", func(api chi.Router) {
		api.Use(s.authenticate)
		api.Post("/finalize", s.handleFinalize)
		api.Post("/run", s.handleRun)
		api.Post("/recalculate", s.handleRecalculate)
		api.Post("/backfill", s.handleBackfill)
	})

	return r
}

// authenticate extracts the gateway-verified identity from the request
// headers. Requests without an identity are rejected before any handler
// runs.
func (s *HTTPServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing authenticated user")
			return
		}

		admin := false
		for _, role := range strings.Split(r.Header.Get(HeaderUserRoles), ",") {
			if strings.EqualFold(strings.TrimSpace(role), roleAdmin) {
				admin = true
				break
			}
		}

		ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
		ctx = context.WithValue(ctx, ctxKeyAdmin, admin)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolveTarget returns the user the request operates on. A request may
// name another user only when the caller carries the admin role.
func resolveTarget(r *http.Request, requested string) (string, int, string) {
	authUser, _ := r.Context().Value(ctxKeyUserID).(string)
	admin, _ := r.Context().Value(ctxKeyAdmin).(bool)

	target := strings.TrimSpace(requested)
	if target == "" {
		target = authUser
	}
	if target != authUser && !admin {
		return "", http.StatusForbidden, "cannot operate on another user's data"
	}
	return target, 0, ""
}

type finalizeRequest struct {
	UserID    string `json:"userId"`
	Date      string `json:"date"`
	Overwrite bool   `json:"overwrite"`
}

func (s *HTTPServer) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	target, status, msg := resolveTarget(r, req.UserID)
	if status != 0 {
		writeError(w, status, msg)
		return
	}

	if req.Date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	day, err := s.clock.ParseDateKey(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q: expected YYYY-MM-DD", req.Date))
		return
	}

	opts := ledger.Options{Overwrite: req.Overwrite}
	if err := s.processor.Persister().PersistDay(r.Context(), target, day, opts); err != nil {
		logrus.WithError(err).Errorf("finalize failed for user %s day %s", target, req.Date)
		writeError(w, http.StatusInternalServerError, "day finalization failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId": target,
		"date":   s.clock.DateKey(day),
		"status": "finalized",
	})
}

type runRequest struct {
	UserID string `json:"userId"`
	Date   string `json:"date"`
}

// handleRun executes the full per-user day transition (maintenance then
// persistence). Without a userId an admin caller triggers the all-users
// sweep.
func (s *HTTPServer) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	admin, _ := r.Context().Value(ctxKeyAdmin).(bool)
	if strings.TrimSpace(req.UserID) == "" && admin {
		summary, err := s.processor.ProcessAllUsers(r.Context())
		if err != nil {
			logrus.WithError(err).Error("all-users day-end run failed")
			writeError(w, http.StatusInternalServerError, "day-end run failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"usersTotal":     summary.UsersTotal,
			"usersProcessed": summary.UsersProcessed,
			"userErrors":     summary.UserErrors,
			"durationMs":     summary.Duration.Milliseconds(),
		})
		return
	}

	target, status, msg := resolveTarget(r, req.UserID)
	if status != 0 {
		writeError(w, status, msg)
		return
	}

	day := s.clock.YesterdayStart()
	if req.Date != "" {
		parsed, err := s.clock.ParseDateKey(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid date %q: expected YYYY-MM-DD", req.Date))
			return
		}
		day = parsed
	}

	opts := ledger.Options{SetLastProcessed: true}
	if err := s.processor.ProcessUserDay(r.Context(), target, day, opts); err != nil {
		logrus.WithError(err).Errorf("day-end run failed for user %s", target)
		writeError(w, http.StatusInternalServerError, "day-end run failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId": target,
		"date":   s.clock.DateKey(day),
		"status": "processed",
	})
}

type recalculateRequest struct {
	UserID   string `json:"userId"`
	FromDate string `json:"fromDate"`
	ToDate   string `json:"toDate"`
}

func (s *HTTPServer) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	var req recalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	target, status, msg := resolveTarget(r, req.UserID)
	if status != 0 {
		writeError(w, status, msg)
		return
	}

	if req.FromDate == "" || req.ToDate == "" {
		writeError(w, http.StatusBadRequest, "fromDate and toDate are required")
		return
	}
	from, err := s.clock.ParseDateKey(req.FromDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid fromDate %q: expected YYYY-MM-DD", req.FromDate))
		return
	}
	to, err := s.clock.ParseDateKey(req.ToDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid toDate %q: expected YYYY-MM-DD", req.ToDate))
		return
	}

	opts := ledger.Options{Overwrite: true}
	if err := s.processor.Persister().PersistRange(r.Context(), target, from, to, opts); err != nil {
		if errors.Is(err, ledger.ErrInvalidRange) {
			writeError(w, http.StatusBadRequest, "fromDate is after toDate")
			return
		}
		logrus.WithError(err).Errorf("recalculation failed for user %s", target)
		writeError(w, http.StatusInternalServerError, "recalculation failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId":   target,
		"fromDate": s.clock.DateKey(from),
		"toDate":   s.clock.DateKey(to),
		"status":   "recalculated",
	})
}

type backfillRequest struct {
	UserID string `json:"userId"`
	Days   int    `json:"days"`
}

func (s *HTTPServer) handleBackfill(w http.ResponseWriter, r *http.Request) {
	var req backfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	target, status, msg := resolveTarget(r, req.UserID)
	if status != 0 {
		writeError(w, status, msg)
		return
	}

	if req.Days < 0 {
		writeError(w, http.StatusBadRequest, "days must be non-negative")
		return
	}

	opts := ledger.Options{Overwrite: true}
	if err := s.processor.Persister().BackfillRecent(r.Context(), target, req.Days, opts); err != nil {
		logrus.WithError(err).Errorf("backfill failed for user %s", target)
		writeError(w, http.StatusInternalServerError, "backfill failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"userId": target,
		"status": "backfilled",
	})
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.WithError(err).Warn("failed to encode response body")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// Start begins serving the API on the configured port.
func (s *HTTPServer) Start(ctx context.Context) error {
	go func() {
		logrus.Infof("http server listening on port %d", s.port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("http server failed: %v", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the API server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	logrus.Info("shutting down http server...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logrus.Info("http server stopped")
	return nil
}
