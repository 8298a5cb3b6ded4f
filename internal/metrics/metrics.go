// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ディスパッチャと更新処理から利用する。
type MetricsCollector interface {
	RecordStoryUpdated()
	RecordStoryUpdateFailure()
	RecordStorySkipped()
	RecordProfileUpdated()
	RecordFetchFailure(kind string)
	RecordWordcountLatency(duration time.Duration)
	RecordRefreshCycle(failures int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	storyUpdated     prometheus.Counter
	storyUpdateFail  prometheus.Counter
	storySkipped     prometheus.Counter
	profileUpdated   prometheus.Counter
	fetchFail        *prometheus.CounterVec
	wordcountLatency prometheus.Histogram
	refreshCycles    prometheus.Counter
	refreshFailures  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		storyUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storybot_story_updated_total",
			Help: "ストーリースレッド更新成功の合計数",
		}),
		storyUpdateFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storybot_story_update_fail_total",
			Help: "ストーリースレッド更新失敗の合計数",
		}),
		storySkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storybot_story_skipped_total",
			Help: "対象ソースなしでスキップしたストーリースレッドの合計数",
		}),
		profileUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storybot_profile_updated_total",
			Help: "プロフィールスレッド更新の合計数",
		}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storybot_fetch_fail_total",
			Help: "ソース種別ごとの文書取得失敗数",
		}, []string{"kind"}),
		wordcountLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storybot_wordcount_latency_seconds",
			Help:    "取得から語数カウント完了までのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		refreshCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storybot_refresh_cycles_total",
			Help: "一括リフレッシュ実行回数",
		}),
		refreshFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storybot_refresh_failures_total",
			Help: "一括リフレッシュ中の個別スレッド失敗数",
		}),
	}

	reg.MustRegister(
		c.storyUpdated,
		c.storyUpdateFail,
		c.storySkipped,
		c.profileUpdated,
		c.fetchFail,
		c.wordcountLatency,
		c.refreshCycles,
		c.refreshFailures,
	)

	return c
}

// RecordStoryUpdated はストーリースレッドの更新成功を記録する。
func (c *Collector) RecordStoryUpdated() {
	c.storyUpdated.Inc()
}

// RecordStoryUpdateFailure はストーリースレッドの更新失敗を記録する。
func (c *Collector) RecordStoryUpdateFailure() {
	c.storyUpdateFail.Inc()
}

// RecordStorySkipped は対象ソースなしのスキップを記録する。
func (c *Collector) RecordStorySkipped() {
	c.storySkipped.Inc()
}

// RecordProfileUpdated はプロフィールスレッドの更新を記録する。
func (c *Collector) RecordProfileUpdated() {
	c.profileUpdated.Inc()
}

// RecordFetchFailure はソース種別ごとの取得失敗を記録する。
func (c *Collector) RecordFetchFailure(kind string) {
	c.fetchFail.WithLabelValues(kind).Inc()
}

// RecordWordcountLatency は語数カウントのレイテンシを記録する。
func (c *Collector) RecordWordcountLatency(duration time.Duration) {
	c.wordcountLatency.Observe(duration.Seconds())
}

// RecordRefreshCycle は一括リフレッシュの実行と個別失敗数を記録する。
func (c *Collector) RecordRefreshCycle(failures int) {
	c.refreshCycles.Inc()
	c.refreshFailures.Add(float64(failures))
}

// NopCollector は何も記録しないMetricsCollector実装。テストで使用する。
type NopCollector struct{}

func (NopCollector) RecordStoryUpdated()                  {}
func (NopCollector) RecordStoryUpdateFailure()            {}
func (NopCollector) RecordStorySkipped()                  {}
func (NopCollector) RecordProfileUpdated()                {}
func (NopCollector) RecordFetchFailure(string)            {}
func (NopCollector) RecordWordcountLatency(time.Duration) {}
func (NopCollector) RecordRefreshCycle(int)               {}
