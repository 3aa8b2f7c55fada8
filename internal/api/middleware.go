package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/org/jitaccess/internal/audit"
	"github.com/org/jitaccess/internal/subject"
	"github.com/org/jitaccess/pkg/models"
)

// iapEmailHeader is the header an IAP-style reverse proxy sets after
// verifying the caller's identity. Verifying the proxy's own signature is
// out of scope here; authMiddleware trusts whatever sits in front of it to
// have already done that and to strip this header from untrusted traffic.
const iapEmailHeader = "X-Goog-Authenticated-User-Email"

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		ctx := withRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authMiddleware resolves the authenticated caller named by iapEmailHeader
// into a full Subject and attaches it to the request context. A missing
// header is rejected outright; resolution failure is a transport problem,
// not an auth decision, so it surfaces as 502 rather than 401/403.
func authMiddleware(resolver *subject.Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email := r.Header.Get(iapEmailHeader)
			if email == "" {
				writeErrorMessage(w, "missing "+iapEmailHeader+" header", http.StatusUnauthorized)
				return
			}
			s, err := resolver.Resolve(r.Context(), email)
			if err != nil {
				writeErrorMessage(w, err.Error(), http.StatusBadGateway)
				return
			}
			if userID, ok := r.Context().Value(ctxKeyAuditUser).(*string); ok {
				*userID = s.User.Value
			}
			next.ServeHTTP(w, r.WithContext(withSubject(r.Context(), s)))
		})
	}
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rr *responseRecorder) WriteHeader(code int) {
	rr.statusCode = code
	rr.ResponseWriter.WriteHeader(code)
}

// auditMiddleware records every request's outcome through sink, tagged
// with the request ID, resolved subject, and route target when available.
func auditMiddleware(sink audit.Sink) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rr := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			var userID string
			r = r.WithContext(context.WithValue(r.Context(), ctxKeyAuditUser, &userID))
			next.ServeHTTP(rr, r)

			entry := &models.AuditEntry{
				Timestamp:      start.UTC(),
				RequestID:      requestIDFromCtx(r.Context()),
				Operation:      r.Method,
				Path:           r.URL.Path,
				Status:         auditStatus(rr.statusCode),
				ResponseCode:   rr.statusCode,
				ResponseTimeMs: time.Since(start).Milliseconds(),
				ClientIP:       r.RemoteAddr,
				UserID:         userID,
			}
			entry.Environment = chi.URLParam(r, "env")
			if sys := chi.URLParam(r, "sys"); sys != "" {
				entry.GroupID = sys + "/" + chi.URLParam(r, "name")
			}
			sink.LogRequest(r.Context(), entry)
		})
	}
}

func auditStatus(code int) string {
	if code >= 200 && code < 400 {
		return "success"
	}
	return "error"
}
