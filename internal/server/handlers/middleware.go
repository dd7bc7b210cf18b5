package handlers

import (
	"MedsetuPortal/internal/session"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

const (
	RequestIDHeader = "X-Request-ID"

	requestIDKey = "request_id"
	sessionKey   = "session"
	storeKey     = "session_store"
)

// RequestID reuses an incoming X-Request-ID or generates one.
func RequestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		rid := ctx.GetHeader(RequestIDHeader)
		if rid == "" {
			rid = uuid.New().String()
		}
		ctx.Set(requestIDKey, rid)
		ctx.Header(RequestIDHeader, rid)
		ctx.Next()
	}
}

func Logger(logger *slog.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		status := ctx.Writer.Status()
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}

		logger.LogAttrs(ctx.Request.Context(), level, "request",
			slog.String("request_id", ctx.GetString(requestIDKey)),
			slog.String("method", ctx.Request.Method),
			slog.String("path", ctx.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
			slog.String("remote_ip", ctx.ClientIP()),
		)
	}
}

// Session attaches the caller's live session, if any. Handlers that keep
// state create one through currentSession.
func Session(store *session.Store) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set(storeKey, store)

		if id, err := ctx.Cookie(session.CookieName); err == nil {
			if s, ok := store.Lookup(id); ok {
				ctx.Set(sessionKey, s)
			}
		}

		ctx.Next()
	}
}

func existingSession(ctx *gin.Context) (*session.Session, bool) {
	v, ok := ctx.Get(sessionKey)
	if !ok {
		return nil, false
	}
	return v.(*session.Session), true
}

// currentSession returns the caller's session, creating it and issuing the
// cookie on first use. It must run before the response body is written.
func currentSession(ctx *gin.Context) *session.Session {
	if s, ok := existingSession(ctx); ok {
		return s
	}

	s := ctx.MustGet(storeKey).(*session.Store).New()
	ctx.SetSameSite(http.SameSiteLaxMode)
	ctx.SetCookie(session.CookieName, s.ID, 0, "/", "", false, true)
	ctx.Set(sessionKey, s)
	return s
}
