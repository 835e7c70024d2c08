/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/pool"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// CallerHeader carries the authenticated caller identity. The gateway in
// front of the server sets it; the pool trusts it as the caller.
const CallerHeader = "X-Caller-Id"

// Server exposes the pool over JSON/HTTP
type Server struct {
	pool    *pool.Service
	metrics http.Handler
}

func NewServer(p *pool.Service, metricsHandler http.Handler) *Server {
	return &Server{
		pool:    p,
		metrics: metricsHandler,
	}
}

// Router builds the route table
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.healthCheck)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/deposits", s.deposit)
		r.Get("/deposits/{depositId}", s.getDeposit)
		r.Post("/deposits/{depositId}/withdrawals", s.scheduleWithdrawal)

		r.Get("/queue", s.listQueue)
		r.Get("/queue/summary", s.queueSummary)
		r.Get("/queue/next", s.nextReadyItem)
		r.Get("/queue/failed", s.failedItems)
		r.Get("/queue/{itemId}", s.getQueueItem)
		r.Post("/queue/{itemId}/process", s.processItem)
		r.Post("/queue/{itemId}/resolve", s.resolveTransfer)
		r.Post("/transfers/{transferRef}/settle", s.settleTransfer)

		r.Get("/pool", s.poolState)
		r.Get("/pool/performance", s.performance)
		r.Get("/pool/solvency", s.solvency)
		r.Get("/history", s.history)
		r.Get("/history/length", s.historyLength)

		r.Get("/parameters", s.parameters)
		r.Put("/parameters", s.updateParameters)
		r.Put("/parameters/fee-rate", s.setFeeRate)
		r.Get("/admin", s.admin)
		r.Put("/admin", s.setAdmin)
		r.Get("/blacklist", s.blacklist)
		r.Get("/blacklist/{account}", s.blacklistStatus)
		r.Put("/blacklist/{account}", s.addToBlacklist)
		r.Delete("/blacklist/{account}", s.removeFromBlacklist)
		r.Get("/oracle", s.oracle)
		r.Put("/oracle", s.setOracle)
		r.Post("/emergency-withdrawals", s.emergencyWithdraw)
		r.Get("/emergency-withdrawals/pending", s.pendingEmergencyWithdrawals)
		r.Post("/emergency-withdrawals/{transferRef}/resolve", s.resolveEmergencyWithdrawal)
	})
	return r
}

// HealthCheck verifies the store answers
func (s *Server) HealthCheck(ctx context.Context) error {
	if _, err := s.pool.PoolState(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.HealthCheck(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func caller(r *http.Request) string {
	return r.Header.Get(CallerHeader)
}

var kindStatus = map[string]int{
	"Unauthorized":            http.StatusForbidden,
	"CallerBlacklisted":       http.StatusForbidden,
	"DepositNotFound":         http.StatusNotFound,
	"ItemNotFound":            http.StatusNotFound,
	"DepositAlreadyScheduled": http.StatusConflict,
	"DepositExpired":          http.StatusConflict,
	"QueueFull":               http.StatusConflict,
	"InsufficientBalance":     http.StatusConflict,
	"NotReady":                http.StatusConflict,
	"ItemNotActive":           http.StatusConflict,
	"TransferNotPending":      http.StatusConflict,
	"TransferFailed":          http.StatusBadGateway,
}

// statusFor maps a pool error to an HTTP status. Validation kinds without an
// entry are bad requests.
func statusFor(err error) int {
	kind := pool.ErrorKind(err)
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	if kind == pool.KindInternal {
		return http.StatusInternalServerError
	}
	return http.StatusBadRequest
}

func writePoolError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("Request failed", zap.Error(err))
		// Storage details stay in the log
		writeJSON(w, status, models.ErrorResponse{Kind: pool.KindInternal, Error: "internal error"})
		return
	}
	writeJSON(w, status, models.ErrorResponse{Kind: pool.ErrorKind(err), Error: err.Error()})
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, models.ErrorResponse{Kind: "BadRequest", Error: err.Error()})
}

func uintParam(r *http.Request, name string) (uint64, error) {
	value := chi.URLParam(r, name)
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, value)
	}
	return id, nil
}

func intQuery(r *http.Request, name string, defaultValue int) (int, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, value)
	}
	return n, nil
}
