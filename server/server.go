package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aep/mintdb/api"
	"github.com/aep/mintdb/db"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type server struct {
	h   *db.Handle
	log *slog.Logger
}

func newServer(h *db.Handle) *server {
	return &server{
		h:   h,
		log: slog.Default().With("partition", h.Name()),
	}
}

// NewEcho builds the HTTP gateway over h.
func NewEcho(h *db.Handle) *echo.Echo {
	s := newServer(h)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Binder = &Binder{
		defaultBinder: &echo.DefaultBinder{},
	}

	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(TracingMiddleware)
	e.Use(PrometheusMiddleware)
	e.Use(middleware.Recover())

	e.GET("/v1/kv/:key", s.handleGet)
	e.PUT("/v1/kv/:key", s.handlePut)
	e.DELETE("/v1/kv/:key", s.handleDelete)
	e.GET("/v1/scan", s.handleScan)
	e.POST("/v1/batch", s.handleBatch)

	return e
}

// keyMarker leads every key in a path so the empty key still has a
// non-empty path segment.
const keyMarker = "_"

// decodeKey reads a path key: keyMarker followed by unpadded URL-safe base64.
func decodeKey(s string) ([]byte, error) {
	rest, ok := strings.CutPrefix(s, keyMarker)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("key must start with %q", keyMarker))
	}
	return decodeBase64(rest)
}

func decodeBase64(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("key is not url-safe base64: %v", err))
	}
	return b, nil
}

// EncodeKey is the inverse of decodeKey, for building request paths.
func EncodeKey(key []byte) string {
	return keyMarker + base64.RawURLEncoding.EncodeToString(key)
}

// statusFor maps a db error to an HTTP status.
func statusFor(err error) int {
	switch {
	case db.IsExistenceViolation(err):
		return http.StatusConflict
	case errors.Is(err, db.ErrCodecMismatch):
		return http.StatusInternalServerError
	case errors.Is(err, db.ErrClosed),
		errors.Is(err, db.ErrTransactionFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) fail(c echo.Context, err error) error {
	code := statusFor(err)
	if code >= 500 {
		s.log.Error("request failed",
			"method", c.Request().Method,
			"path", c.Path(),
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"err", err)
	}
	return echo.NewHTTPError(code, err.Error())
}

func toViolations(vs []db.ExistenceViolation) []api.Violation {
	if len(vs) == 0 {
		return nil
	}
	out := make([]api.Violation, len(vs))
	for i, v := range vs {
		out[i] = api.Violation{
			Index: v.Index,
			Kind:  v.Kind.String(),
			Key:   v.Key,
		}
	}
	return out
}
