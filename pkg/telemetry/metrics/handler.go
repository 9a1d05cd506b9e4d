package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns an HTTP handler exposing gatherer in the Prometheus
// exposition format, with OpenMetrics negotiation enabled.
//
// Collection errors are reported in the response but do not fail the
// scrape, so one broken collector does not hide the rest.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(
		gatherer,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		},
	)
}
