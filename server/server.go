// Package server exposes the trained model over HTTP.
//
// Routes:
//
//	GET /pred            single-record prediction, parameters optional
//	GET /info            service metadata and model summary
//	GET /confusion       in-sample confusion matrix as a PNG heatmap
//	GET /confusion.json  the same matrix with derived metrics
//	GET /metrics         Prometheus metrics
package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/YuminosukeSato/diabetes-risk/dataset"
	"github.com/YuminosukeSato/diabetes-risk/metrics"
	"github.com/YuminosukeSato/diabetes-risk/pkg/errors"
	"github.com/YuminosukeSato/diabetes-risk/pkg/log"
	"github.com/YuminosukeSato/diabetes-risk/plotting"
	"github.com/YuminosukeSato/diabetes-risk/risk"
)

// Info is the static metadata returned by /info.
type Info struct {
	Author     string `json:"author"`
	ProjectURL string `json:"project_url"`
}

// Server routes requests to the prediction and evaluation services. It holds
// only read-only state after New returns.
type Server struct {
	echo      *echo.Echo
	artifact  *risk.Artifact
	predictor *risk.PredictionService
	evaluator *risk.EvaluationService
	info      Info
	logger    log.Logger
	registry  *prometheus.Registry
	metrics   *httpMetrics
	render    heatmapRenderer
}

type heatmapRenderer func(w io.Writer, cm *metrics.ConfusionMatrix, names []string, opts ...plotting.HeatmapOption) error

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithInfo sets the /info metadata.
func WithInfo(info Info) Option {
	return func(s *Server) { s.info = info }
}

// New builds the HTTP handler around a trained artifact.
func New(a *risk.Artifact, opts ...Option) *Server {
	s := &Server{
		artifact:  a,
		predictor: risk.NewPredictionService(a),
		evaluator: risk.NewEvaluationService(a),
		logger:    log.GetLogger(),
		registry:  prometheus.NewRegistry(),
		render:    plotting.ConfusionHeatmap,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(log.ComponentKey, "server")
	s.metrics = newHTTPMetrics(s.registry)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError
	e.Use(s.observe)
	e.Use(middleware.Recover())

	e.GET("/pred", s.handlePredict)
	e.GET("/info", s.handleInfo)
	e.GET("/confusion", s.handleConfusionPNG)
	e.GET("/confusion.json", s.handleConfusionJSON)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	s.echo = e
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start listens on addr until Shutdown is called. It returns
// http.ErrServerClosed after a clean shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("Listening", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// observe logs every request and records its metrics. Errors are handed to
// the error handler here so that the final status code is known.
func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		if err := next(c); err != nil {
			c.Error(err)
		}
		elapsed := time.Since(start)

		req, res := c.Request(), c.Response()
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.requests.WithLabelValues(route, req.Method, strconv.Itoa(res.Status)).Inc()
		s.metrics.latency.WithLabelValues(route).Observe(elapsed.Seconds())

		s.logger.Debug("Request served",
			log.HTTPMethodKey, req.Method,
			log.HTTPPathKey, req.URL.Path,
			log.HTTPStatusKey, res.Status,
			log.HTTPRemoteKey, c.RealIP(),
			log.DurationMsKey, elapsed.Milliseconds(),
		)
		return nil
	}
}

func (s *Server) handlePredict(c echo.Context) error {
	rec, err := parsePredictQuery(c.QueryParams())
	if err != nil {
		return err
	}
	result, err := s.predictor.PredictOne(rec)
	if err != nil {
		return err
	}
	s.metrics.predictions.WithLabelValues(result.Prediction.String()).Inc()
	return c.JSON(http.StatusOK, result)
}

type infoResponse struct {
	Info
	Model risk.ModelSummary `json:"model"`
}

func (s *Server) handleInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, infoResponse{Info: s.info, Model: s.artifact.Summary()})
}

func (s *Server) handleConfusionPNG(c echo.Context) error {
	cm, err := s.evaluator.ConfusionMatrix()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	names := []string{dataset.NoDiabetes.String(), dataset.Diabetes.String()}
	err = errors.SafeExecute("render confusion heatmap", func() error {
		return s.render(&buf, cm, names, plotting.WithTitle("In-sample confusion matrix"))
	})
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "image/png", buf.Bytes())
}

func (s *Server) handleConfusionJSON(c echo.Context) error {
	eval, err := s.evaluator.Evaluate()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, eval)
}

type errorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

// classify maps an error onto an HTTP status and a type name for the response.
func classify(err error) (int, string) {
	var (
		unknown   *errors.UnknownCategoryError
		malformed *errors.MalformedInputError
		invalid   *errors.ValidationError
		missing   *errors.FeatureMissingError
		notFitted *errors.NotFittedError
		httpErr   *echo.HTTPError
	)
	switch {
	case errors.As(err, &unknown):
		return http.StatusBadRequest, "UnknownCategoryError"
	case errors.As(err, &malformed):
		return http.StatusBadRequest, "MalformedInputError"
	case errors.As(err, &invalid):
		return http.StatusBadRequest, "ValidationError"
	case errors.As(err, &missing):
		return http.StatusInternalServerError, "FeatureMissingError"
	case errors.As(err, &notFitted):
		return http.StatusInternalServerError, "NotFittedError"
	case errors.As(err, &httpErr):
		return httpErr.Code, "HTTPError"
	default:
		return http.StatusInternalServerError, "InternalError"
	}
}

func (s *Server) handleError(err error, c echo.Context) {
	status, kind := classify(err)

	msg := err.Error()
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg = http.StatusText(httpErr.Code)
	} else if kind == "InternalError" {
		msg = http.StatusText(http.StatusInternalServerError)
	}

	fields := []any{
		err,
		log.HTTPMethodKey, c.Request().Method,
		log.HTTPPathKey, c.Request().URL.Path,
		log.HTTPStatusKey, status,
		log.ErrorTypeKey, kind,
	}
	switch {
	case status >= http.StatusInternalServerError:
		s.logger.Error("Request failed", fields...)
	case c.Path() == "/pred":
		s.metrics.rejected.WithLabelValues(kind).Inc()
		s.logger.Info("Prediction rejected", fields...)
	}

	if c.Response().Committed {
		return
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, errorResponse{Error: msg, Type: kind})
	}
	if err != nil {
		s.logger.Error("Writing error response failed", err)
	}
}
