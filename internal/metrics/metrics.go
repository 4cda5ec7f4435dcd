package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	StoreQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mahalla", Name: "store_queries_total", Help: "Store queries by table and operation",
	}, []string{"table", "op"})
	StoreErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mahalla", Name: "store_errors_total", Help: "Store errors by table and operation",
	}, []string{"table", "op"})
	SMSLogged = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mahalla", Name: "sms_logged_total", Help: "SMS log rows by status",
	}, []string{"status"})
	PointsAwarded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mahalla", Name: "points_awards_total", Help: "Ledger entries recorded",
	})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mahalla", Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(StoreQueries, StoreErrors, SMSLogged, PointsAwarded, DBPing)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }
