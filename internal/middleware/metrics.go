package middleware

import (
	"strings"
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
)

var (
	promMu      sync.Mutex
	promService = map[string]*fiberprometheus.FiberPrometheus{}
)

// InitMetrics returns the HTTP Prometheus collector for the given service.
// Collectors live in the default registry, so each service name is built once.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promMu.Lock()
	defer promMu.Unlock()

	if p, ok := promService[serviceName]; ok {
		return p
	}
	p := fiberprometheus.New(serviceName)
	promService[serviceName] = p
	return p
}

// MetricsMiddleware records request metrics, skipping the scrape endpoint
// and static media so they do not dominate the histograms.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if path == "/metrics" || strings.HasPrefix(path, "/media/") {
			return c.Next()
		}
		return prom.Middleware(c)
	}
}
