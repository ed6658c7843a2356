package client

import (
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/metrics"
)

// NewHTTPClient returns a pooled client shared by the outbound API clients.
func NewHTTPClient(timeout time.Duration) *http.Client {
	c := cleanhttp.DefaultPooledClient()
	c.Timeout = timeout
	return c
}

// observe records one upstream call. m may be nil.
func observe(m *metrics.Metrics, upstream, endpoint string, statusCode int, err error, start time.Time) {
	if m == nil {
		return
	}
	status := "error"
	if err == nil {
		status = fmt.Sprintf("%d", statusCode)
	}
	m.UpstreamRequests.WithLabelValues(upstream, endpoint, status).Inc()
	m.UpstreamLatency.WithLabelValues(upstream, endpoint, status).Observe(time.Since(start).Seconds())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
