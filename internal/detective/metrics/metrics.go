// Package metrics 提供对话代理的 Prometheus 业务指标。
//
// 所有记录方法对 nil 接收者是安全的，未启用指标时直接传 nil。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kart-io/eurodetective/pkg/infra/pool"
)

const namespace = "eurodetective"

// 回合结果。
const (
	OutcomeAnswered       = "answered"
	OutcomeRetrieved      = "retrieved"
	OutcomeMissingContext = "missing_context"
	OutcomeFailed         = "failed"
	OutcomeCanceled       = "canceled"
)

// 模型调用阶段。
const (
	StageDecide  = "decide"
	StageAnswer  = "answer"
	StageRewrite = "rewrite"
)

// Metrics 代理指标集合，持有独立的 Registry。
type Metrics struct {
	registry *prometheus.Registry

	turns             *prometheus.CounterVec
	toolCalls         *prometheus.CounterVec
	retrievalDuration prometheus.Histogram
	retrievedChunks   prometheus.Histogram
	chunkMisses       prometheus.Counter
	llmDuration       *prometheus.HistogramVec
	trimmerOverflows  prometheus.Counter
	chunksIndexed     prometheus.Counter
}

// New 创建指标集合，并注册 Go 运行时与进程指标。
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns by outcome.",
		}, []string{"outcome"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations requested by the model.",
		}, []string{"tool", "status"}),
		retrievalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Duration of news retrieval including embedding, vector search and chunk fetch.",
			Buckets:   prometheus.DefBuckets,
		}),
		retrievedChunks: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieved_chunks",
			Help:      "Number of chunks returned by the vector search.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		chunkMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_store_misses_total",
			Help:      "Matches whose text could not be loaded from the chunk store.",
		}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "Duration of generation calls by stage.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"stage", "status"}),
		trimmerOverflows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trimmer_overflows_total",
			Help:      "Turns rejected because the latest user message exceeds the token budget.",
		}),
		chunksIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_indexed_total",
			Help:      "Chunks written by the ingestion pipeline.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.turns, m.toolCalls, m.retrievalDuration, m.retrievedChunks,
		m.chunkMisses, m.llmDuration, m.trimmerOverflows, m.chunksIndexed,
	)
	return m
}

// Registry 返回指标 Registry。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 /metrics 处理器。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordTurn 记录一次回合结果。
func (m *Metrics) RecordTurn(outcome string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
}

// RecordToolCall 记录一次工具调用。
func (m *Metrics) RecordToolCall(tool string, ok bool) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, status(ok)).Inc()
}

// ObserveRetrieval 记录一次检索的耗时与命中数。
func (m *Metrics) ObserveRetrieval(d time.Duration, chunks int) {
	if m == nil {
		return
	}
	m.retrievalDuration.Observe(d.Seconds())
	m.retrievedChunks.Observe(float64(chunks))
}

// RecordChunkMiss 记录分块存储未命中。
func (m *Metrics) RecordChunkMiss() {
	if m == nil {
		return
	}
	m.chunkMisses.Inc()
}

// ObserveLLMCall 记录一次模型调用。
func (m *Metrics) ObserveLLMCall(stage string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.llmDuration.WithLabelValues(stage, status(err == nil)).Observe(d.Seconds())
}

// RecordTrimmerOverflow 记录一次裁剪溢出。
func (m *Metrics) RecordTrimmerOverflow() {
	if m == nil {
		return
	}
	m.trimmerOverflows.Inc()
}

// AddChunksIndexed 累加入库分块数。
func (m *Metrics) AddChunksIndexed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.chunksIndexed.Add(float64(n))
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// PoolSource worker 池的只读视图，*pool.Pool 满足该接口。
type PoolSource interface {
	Name() string
	Cap() int
	Running() int
	Stats() pool.Stats
}

// RegisterPool 以 pool 标签导出 worker 池的容量、运行数与任务计数。
func (m *Metrics) RegisterPool(p PoolSource) error {
	if m == nil || p == nil {
		return nil
	}
	return m.registry.Register(newPoolCollector(p))
}

type poolCollector struct {
	src       PoolSource
	capacity  *prometheus.Desc
	running   *prometheus.Desc
	submitted *prometheus.Desc
	completed *prometheus.Desc
	rejected  *prometheus.Desc
	panics    *prometheus.Desc
}

func newPoolCollector(p PoolSource) *poolCollector {
	labels := prometheus.Labels{"pool": p.Name()}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", name), help, nil, labels)
	}
	return &poolCollector{
		src:       p,
		capacity:  desc("capacity", "Maximum number of workers."),
		running:   desc("running_workers", "Workers currently running a task."),
		submitted: desc("submitted_tasks_total", "Tasks submitted to the pool."),
		completed: desc("completed_tasks_total", "Tasks finished by the pool."),
		rejected:  desc("rejected_tasks_total", "Tasks the pool refused."),
		panics:    desc("recovered_panics_total", "Task panics recovered by the pool."),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.capacity
	ch <- c.running
	ch <- c.submitted
	ch <- c.completed
	ch <- c.rejected
	ch <- c.panics
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(c.src.Cap()))
	ch <- prometheus.MustNewConstMetric(c.running, prometheus.GaugeValue, float64(c.src.Running()))
	ch <- prometheus.MustNewConstMetric(c.submitted, prometheus.CounterValue, float64(s.SubmittedTasks))
	ch <- prometheus.MustNewConstMetric(c.completed, prometheus.CounterValue, float64(s.CompletedTasks))
	ch <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(s.RejectedTasks))
	ch <- prometheus.MustNewConstMetric(c.panics, prometheus.CounterValue, float64(s.PanicRecovered))
}
