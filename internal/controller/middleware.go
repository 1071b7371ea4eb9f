package controller

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/readyornot/sync-server/pkg/ctxlogger"
)

func (c *controller) generateTimeBasedId() string {
	return strconv.FormatInt(time.Now().UnixNano(), 36)
}

func (c *controller) requestIdMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = ctxlogger.AppendCtx(ctx, slog.String("request_id", c.generateTimeBasedId()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (c *controller) requestLoggingMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"url", r.URL.String(),
			"remote_addr", r.RemoteAddr,
		)
		next.ServeHTTP(w, r)
	})
}
