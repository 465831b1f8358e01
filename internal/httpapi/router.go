// Package httpapi serves the read-only HTTP API: attendance listing, the
// latest scan snapshot, health and metrics.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/attendance"
	"rollcall/internal/scanfeed"
)

// RecordLister lists attendance records.
type RecordLister interface {
	ListRecords(ctx context.Context) ([]attendance.Record, error)
}

// LatestScanReader returns the most recent scan.
type LatestScanReader interface {
	Latest(ctx context.Context) (scanfeed.Record, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Deps are the collaborators the router serves from.
type Deps struct {
	Records         RecordLister
	Scans           LatestScanReader
	Checks          map[string]HealthCheck
	Gatherer        prometheus.Gatherer
	RateLimitPerMin int
	Logger          *slog.Logger
}

type handler struct {
	records RecordLister
	scans   LatestScanReader
	checks  map[string]HealthCheck
	logger  *slog.Logger
}

// NewRouter builds the gin engine.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	h := &handler{records: d.Records, scans: d.Scans, checks: d.Checks, logger: d.Logger}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		MaxAge:          24 * time.Hour,
	}))
	r.Use(securityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	r.GET("/healthz", h.health)

	api := r.Group("/api", newClientLimiter(d.RateLimitPerMin).middleware())
	api.GET("/attendance", h.listAttendance)
	api.GET("/absensi", h.listAttendance)
	api.GET("/latest-rfid-scan", h.latestScan)
	return r
}

func (h *handler) listAttendance(c *gin.Context) {
	recs, err := h.records.ListRecords(c.Request.Context())
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "list attendance failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to fetch attendance records"})
		return
	}
	if recs == nil {
		recs = []attendance.Record{}
	}
	c.JSON(http.StatusOK, recs)
}

func (h *handler) latestScan(c *gin.Context) {
	rec, err := h.scans.Latest(c.Request.Context())
	if errors.Is(err, scanfeed.ErrNoScans) {
		c.JSON(http.StatusNotFound, gin.H{"message": "no RFID scan recorded yet"})
		return
	}
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "latest scan failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "failed to fetch latest RFID scan"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{}
	for name, check := range h.checks {
		ok := check(ctx)
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
		}
	}
	if status == http.StatusOK {
		body["status"] = "ok"
	} else {
		body["status"] = "degraded"
	}
	c.JSON(status, body)
}

// securityHeaders sets conservative response headers.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
