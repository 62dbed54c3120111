// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 取り込みワーカーとパークサービスから利用する。
type MetricsCollector interface {
	RecordIngest(result string, duration time.Duration)
	RecordSourceStatus(statusCode int)
	RecordCatalogSize(perks int)
	RecordSessionOpened(kind string)
	RecordSessionClosed(kind, outcome string)
	RecordSubmitRejected(reason string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	ingestRuns      *prometheus.CounterVec
	ingestLatency   prometheus.Histogram
	sourceStatus    *prometheus.CounterVec
	catalogSize     prometheus.Gauge
	sessionsOpened  *prometheus.CounterVec
	sessionsClosed  *prometheus.CounterVec
	submitsRejected *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ingestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perkbot_ingest_runs_total",
			Help: "カタログ取り込みの実行回数（結果別）",
		}, []string{"result"}),
		ingestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "perkbot_ingest_duration_seconds",
			Help:    "カタログ取り込みの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sourceStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perkbot_source_http_status_total",
			Help: "パーク定義ソースのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		catalogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "perkbot_catalog_perks",
			Help: "直近の取り込みで保存されたパーク数",
		}),
		sessionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perkbot_sessions_opened_total",
			Help: "開始されたセッション数（種別ごと）",
		}, []string{"kind"}),
		sessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perkbot_sessions_closed_total",
			Help: "終了したセッション数（種別・結果ごと）",
		}, []string{"kind", "outcome"}),
		submitsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perkbot_submits_rejected_total",
			Help: "検証で拒否された送信数（理由別）",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		c.ingestRuns,
		c.ingestLatency,
		c.sourceStatus,
		c.catalogSize,
		c.sessionsOpened,
		c.sessionsClosed,
		c.submitsRejected,
	)

	return c
}

// RecordIngest は取り込み1回分の結果と所要時間を記録する。
func (c *Collector) RecordIngest(result string, duration time.Duration) {
	c.ingestRuns.WithLabelValues(result).Inc()
	c.ingestLatency.Observe(duration.Seconds())
}

// RecordSourceStatus はソース取得時のHTTPステータスコードを記録する。
func (c *Collector) RecordSourceStatus(statusCode int) {
	c.sourceStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordCatalogSize は保存されたカタログのパーク数を記録する。
func (c *Collector) RecordCatalogSize(perks int) {
	c.catalogSize.Set(float64(perks))
}

// RecordSessionOpened はセッション開始を記録する。
func (c *Collector) RecordSessionOpened(kind string) {
	c.sessionsOpened.WithLabelValues(kind).Inc()
}

// RecordSessionClosed はセッション終了を記録する。
func (c *Collector) RecordSessionClosed(kind, outcome string) {
	c.sessionsClosed.WithLabelValues(kind, outcome).Inc()
}

// RecordSubmitRejected は送信の検証エラーを記録する。
func (c *Collector) RecordSubmitRejected(reason string) {
	c.submitsRejected.WithLabelValues(reason).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
