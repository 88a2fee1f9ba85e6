// Package httpapi exposes the safetynet service over HTTP with echo.
package httpapi

import (
	"expvar"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"safetynet/docs/schema/openapi"
	"safetynet/internal/core"
)

// ServiceName tags health replies and server spans.
const ServiceName = "safetynet"

// Handler binds the coordinating service to HTTP routes.
type Handler struct {
	svc      *core.Service
	logger   *zap.SugaredLogger
	gatherer prometheus.Gatherer
	storage  string
}

// Option customises a Handler.
type Option func(*Handler)

// WithGatherer serves /metrics from g. Without it /metrics is not registered.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *Handler) { h.gatherer = g }
}

// WithStorageName reports the storage backend on /health.
func WithStorageName(name string) Option {
	return func(h *Handler) { h.storage = name }
}

// NewHandler builds a handler. A nil logger discards output.
func NewHandler(svc *core.Service, logger *zap.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{svc: svc, logger: logger.Sugar()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewServer returns an echo instance with middleware and every route registered.
func NewServer(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(core.WithRequestID(req.Context(), id)))
		},
	}))
	e.Use(otelecho.Middleware(ServiceName))
	e.Use(h.requestLogger())
	h.RegisterRoutes(e)
	return e
}

func (h *Handler) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				h.logger.Errorw("request", append(fields, "error", v.Error)...)
				return nil
			}
			h.logger.Infow("request", fields...)
			return nil
		},
	})
}

// RegisterRoutes attaches every endpoint to e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.health)
	if h.gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}
	e.GET("/debug/vars", echo.WrapHandler(expvar.Handler()))
	e.GET("/openapi.yaml", func(c echo.Context) error {
		return c.Blob(http.StatusOK, "application/yaml", openapi.Spec())
	})

	e.GET("/firestation", h.coverage)
	e.GET("/childAlert", h.childAlert)
	e.GET("/phoneAlert", h.phoneAlert)
	e.GET("/fire", h.fire)
	e.GET("/flood/stations", h.flood)
	e.GET("/personInfo", h.personInfo)
	e.GET("/communityEmail", h.communityEmail)

	e.GET("/person", h.listResidents)
	e.POST("/person", h.createResident)
	e.PUT("/person", h.updateResident)
	e.DELETE("/person", h.deleteResident)

	e.GET("/firestation/assignments", h.listStations)
	e.POST("/firestation", h.createStation)
	e.POST("/firestation/assignments", h.createStation)
	e.PUT("/firestation", h.updateStation)
	e.DELETE("/firestation", h.deleteStation)

	e.GET("/medicalRecord", h.listRecords)
	e.POST("/medicalRecord", h.createRecord)
	e.PUT("/medicalRecord", h.updateRecord)
	e.DELETE("/medicalRecord", h.deleteRecord)
}

func (h *Handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Service: ServiceName, Storage: h.storage})
}

func requestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

// requiredParam returns the query parameter as sent or writes a 400 when it
// is blank. Keys are matched exactly, so the value is not trimmed.
func requiredParam(c echo.Context, name string) (string, bool, error) {
	v := c.QueryParam(name)
	if strings.TrimSpace(v) == "" {
		return "", false, badRequest(c, "missing_parameter", "query parameter "+name+" is required")
	}
	return v, true, nil
}

func intParam(c echo.Context, name string) (int, bool, error) {
	raw, ok, err := requiredParam(c, name)
	if !ok {
		return 0, false, err
	}
	n, convErr := strconv.Atoi(strings.TrimSpace(raw))
	if convErr != nil {
		return 0, false, badRequest(c, "invalid_parameter", "query parameter "+name+" must be an integer")
	}
	return n, true, nil
}

// intListParam accepts "1,2" as well as repeated parameters.
func intListParam(c echo.Context, name string) ([]int, bool, error) {
	var out []int
	for _, raw := range c.QueryParams()[name] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, false, badRequest(c, "invalid_parameter", "query parameter "+name+" must list integers")
			}
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return nil, false, badRequest(c, "missing_parameter", "query parameter "+name+" is required")
	}
	return out, true, nil
}

func personKeyParams(c echo.Context) (core.PersonKey, bool, error) {
	first, ok, err := requiredParam(c, "firstName")
	if !ok {
		return core.PersonKey{}, false, err
	}
	last, ok, err := requiredParam(c, "lastName")
	if !ok {
		return core.PersonKey{}, false, err
	}
	return core.PersonKey{FirstName: first, LastName: last}, true, nil
}
