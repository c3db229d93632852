package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 结果标签
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

var (
	pipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "auticare",
			Name:      "pipeline_runs_total",
			Help:      "Per-user pipeline runs, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	batchDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "auticare",
			Name:      "batch_seconds",
			Help:      "Duration of one scheduled batch run in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	batchSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "auticare",
			Name:      "batch_skipped_total",
			Help:      "Scheduler firings skipped because a run was still in progress.",
		},
	)

	inferenceSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "auticare",
			Name:      "inference_seconds",
			Help:      "Model inference latency in seconds.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "auticare",
			Name:      "ws_connections",
			Help:      "Currently registered live connections.",
		},
	)
)

// Register 注册采集器（重复注册视为成功）
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		pipelineRunsTotal,
		batchDurationSeconds,
		batchSkippedTotal,
		inferenceSeconds,
		wsConnections,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObservePipelineRun 记录一次用户管道运行
func ObservePipelineRun(outcome string) {
	pipelineRunsTotal.WithLabelValues(outcome).Inc()
}

// ObserveBatch 记录一次批量运行耗时
func ObserveBatch(duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	batchDurationSeconds.Observe(duration.Seconds())
}

// ObserveBatchSkipped 记录一次被跳过的触发
func ObserveBatchSkipped() {
	batchSkippedTotal.Inc()
}

// ObserveInference 记录模型推理耗时
func ObserveInference(duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	inferenceSeconds.Observe(duration.Seconds())
}

// SetWSConnections 更新活跃连接数
func SetWSConnections(n int) {
	wsConnections.Set(float64(n))
}
