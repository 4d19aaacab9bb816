// Package server - HTTP API for object detection.
package server

import (
	"context"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-yolo/images"
	"github.com/nvr-ai/go-yolo/logger"
	"github.com/nvr-ai/go-yolo/models/postprocess"
)

// Detector finds objects in an image.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]postprocess.Detection, error)
}

// Options configures the server.
type Options struct {
	// Labels names class indices in responses. Nil leaves labels empty.
	Labels func(int) string
	// Gatherer is served at /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// MaxBodyBytes bounds uploaded images. Zero means 32 MiB.
	MaxBodyBytes int64
	// MaxPixels bounds the decoded size of uploaded images. Zero means 40 megapixels.
	MaxPixels int64
}

// Detection is a detection in a response.
type Detection struct {
	X          float32 `json:"x"`
	Y          float32 `json:"y"`
	Width      float32 `json:"width"`
	Height     float32 `json:"height"`
	Confidence float32 `json:"confidence"`
	Class      int     `json:"class"`
	Label      string  `json:"label,omitempty"`
}

// DetectResponse is the body of a successful /v1/detect call.
type DetectResponse struct {
	ID         string      `json:"id"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Detections []Detection `json:"detections"`
}

// Server serves the detection API.
type Server struct {
	detector Detector
	opts     Options
	engine   *gin.Engine
}

// New creates a server and its routes.
func New(detector Detector, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 32 << 20
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = 40_000_000
	}

	s := &Server{detector: detector, opts: opts}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/v1/detect", s.detect)
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	s.engine = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Log().Info("server listening", zap.String("address", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "server shutdown")
		}
		logger.Log().Info("server stopped")
		return nil
	}
}

func (s *Server) detect(c *gin.Context) {
	id := uuid.New().String()
	c.Header("X-Request-ID", id)

	data, err := s.readImage(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"id": id, "error": err.Error()})
		return
	}

	img, meta, err := images.DecodeLimited(data, s.opts.MaxPixels)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"id": id, "error": err.Error()})
		return
	}

	detections, err := s.detector.Detect(c.Request.Context(), img)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}
		logger.Log().Error("detect failed", zap.String("id", id), zap.Error(err))
		c.JSON(status, gin.H{"id": id, "error": err.Error()})
		return
	}

	resp := DetectResponse{
		ID:         id,
		Width:      meta.Width,
		Height:     meta.Height,
		Detections: make([]Detection, 0, len(detections)),
	}
	for _, d := range detections {
		out := Detection{
			X:          d.Box.X,
			Y:          d.Box.Y,
			Width:      d.Box.Width,
			Height:     d.Box.Height,
			Confidence: d.Confidence,
			Class:      d.Class,
		}
		if s.opts.Labels != nil {
			out.Label = s.opts.Labels(d.Class)
		}
		resp.Detections = append(resp.Detections, out)
	}

	logger.Log().Info("request served",
		zap.String("id", id),
		zap.String("format", string(meta.Format)),
		zap.Int("detections", len(resp.Detections)),
	)
	c.JSON(http.StatusOK, resp)
}

// readImage takes the "image" multipart field, or the raw body for any other
// content type.
func (s *Server) readImage(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxBodyBytes)

	if c.ContentType() == "multipart/form-data" {
		fh, err := c.FormFile("image")
		if err != nil {
			return nil, errors.Wrap(err, "reading multipart field \"image\"")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, errors.Wrap(err, "opening upload")
		}
		defer f.Close()
		return io.ReadAll(f)
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading body")
	}
	return data, nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Log().Debug("http",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
