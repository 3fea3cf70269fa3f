// Package metrics provides Prometheus metrics for lightkbdd.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ActivityEvents counts observed user activity events.
var ActivityEvents = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "lightkbdd",
	Name:      "activity_events_total",
	Help:      "Total user activity events observed.",
})

// FadesStarted counts fades by direction ("in" or "out").
var FadesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "lightkbdd",
	Name:      "fades_started_total",
	Help:      "Total brightness fades started.",
}, []string{"direction"})

// SinkWriteErrors counts failed hardware brightness writes.
var SinkWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "lightkbdd",
	Name:      "sink_write_errors_total",
	Help:      "Total failed brightness writes.",
})

// Brightness tracks the current brightness level as last written.
var Brightness = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "lightkbdd",
	Name:      "brightness_level",
	Help:      "Current brightness level.",
})

// MachineState tracks the dimmer state as a small integer
// (0 active, 1 fading out, 2 idle, 3 fading in).
var MachineState = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "lightkbdd",
	Name:      "machine_state",
	Help:      "Dimmer state machine state.",
})

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
