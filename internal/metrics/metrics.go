// Package metrics 汇总Prometheus指标，经 /metrics 端点暴露。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineStageTotal 各流水线阶段的执行次数
	PipelineStageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tailor_pipeline_stage_total",
			Help: "Total number of pipeline stage executions",
		},
		[]string{"stage", "status"},
	)

	// PipelineStageDuration 各流水线阶段耗时
	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tailor_pipeline_stage_duration_seconds",
			Help:    "Duration of pipeline stage executions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// RAGOperationsTotal RAG操作（摄入、检索、生成、反馈）次数
	RAGOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tailor_rag_operations_total",
			Help: "Total number of RAG operations",
		},
		[]string{"operation", "status"},
	)

	// ChunksCreatedTotal 摄入产生的分块总数
	ChunksCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tailor_chunks_created_total",
			Help: "Total number of context chunks created by ingestion",
		},
	)

	// TasksActive 正在处理的异步任务数
	TasksActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tailor_tasks_active",
			Help: "Number of async tailor tasks currently running",
		},
	)

	// TasksTotal 异步任务终态计数
	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tailor_tasks_total",
			Help: "Total number of async tailor tasks by final status",
		},
		[]string{"status"},
	)
)
