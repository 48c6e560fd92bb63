package dashboard

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus gauges sampled from State once per
// second, grounded on Generativebots-ocx-backend-go-svc's
// internal/escrow/metrics.go promauto-constructed metric set.
//
// packets_from_client/server are monotonic counters maintained by
// relay.Stats, not by this package, so they are exposed as plain
// gauges Set from the periodic sample rather than Inc() calls — this package
// never owns the increment, only the periodic read of its current
// value.
type Metrics struct {
	registry          *prometheus.Registry
	packetsFromClient prometheus.Gauge
	packetsFromServer prometheus.Gauge
	activeCreatures   prometheus.Gauge
	playerHP          prometheus.Gauge
}

func newMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		packetsFromClient: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "otmitm_packets_from_client_total",
			Help: "Frames observed on the client->server leg.",
		}),
		packetsFromServer: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "otmitm_packets_from_server_total",
			Help: "Frames observed on the server->client leg.",
		}),
		activeCreatures: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "otmitm_active_creatures",
			Help: "Creatures currently tracked in the world model.",
		}),
		playerHP: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "otmitm_player_hp",
			Help: "Current player HP.",
		}),
	}
	return m
}

func (m *Metrics) sample(st State) {
	m.packetsFromClient.Set(float64(st.PacketsFromClient))
	m.packetsFromServer.Set(float64(st.PacketsFromServer))
	m.activeCreatures.Set(float64(len(st.Creatures)))
	m.playerHP.Set(float64(st.Player.HP))
}

// Handler returns the promhttp handler serving this Metrics' registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
