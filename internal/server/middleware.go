// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Magic Matching Contributors

package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// recoverJSON converts a panic in any handler into a 500 response carrying
// the standard {"error": ...} body.
func recoverJSON(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic while serving request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("panic", fmt.Sprint(rec)),
					slog.String("stack", string(debug.Stack())),
				)
				writeJSONError(w, http.StatusInternalServerError, "internal server error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// preflight answers every OPTIONS request with an empty 200 before it reaches
// a route. Requests carrying Access-Control-Request-Method are already
// answered by the CORS handler.
func preflight(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	allowHeaders := strings.Join(corsHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			if h.Get("Access-Control-Allow-Origin") == "" {
				origin := r.Header.Get("Origin")
				switch {
				case slices.Contains(origins, "*"):
					h.Set("Access-Control-Allow-Origin", "*")
				case origin != "" && slices.Contains(origins, origin):
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			if h.Get("Access-Control-Allow-Headers") == "" {
				h.Set("Access-Control-Allow-Headers", allowHeaders)
			}
			w.WriteHeader(http.StatusOK)
		})
	}
}

// requestLogger logs one line per request with its status and duration.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// writeJSONError writes the {"error": msg} body outside of huma.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorBody{Error: msg}); err != nil {
		slog.Warn("failed to write error response", "error", err)
	}
}
