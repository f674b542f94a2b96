package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/binarjoin/syncengine/internal/utils"
)

// withAuth enforces bearer-token authentication. On success the user id is
// stored in the request context under utils.UserIDCtxKey.
func (h *Handler) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			h.log.Warn().Str("uri", r.RequestURI).Err(ErrEmptyAuthorizationHeader).Send()
			http.Error(w, ErrEmptyAuthorizationHeader.Error(), http.StatusUnauthorized)
			return
		}

		tokenString, err := utils.ParseBearerToken(authHeader)
		if err != nil {
			h.log.Warn().Str("uri", r.RequestURI).Err(err).Send()
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		userID, err := h.auth.ParseToken(tokenString)
		if err != nil {
			h.log.Warn().Str("uri", r.RequestURI).Err(err).Msg("error occurred during parsing token")
			message := http.StatusText(http.StatusUnauthorized)
			if errors.Is(err, ErrTokenIsExpired) {
				// an expired token is worth naming: the client holds a real
				// session and only needs to refresh it
				message = ErrTokenIsExpired.Error()
			}
			http.Error(w, message, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), utils.UserIDCtxKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// responseWriter captures status and size for the request log.
type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *responseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

func (h *Handler) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		uri := r.RequestURI
		method := r.Method

		lw := &responseWriter{ResponseWriter: w}

		next.ServeHTTP(lw, r)

		h.log.Info().
			Str("uri", uri).
			Str("method", method).
			Int("status", lw.status).
			Dur("duration", time.Since(start)).
			Int("size", lw.size).
			Send()
	})
}
