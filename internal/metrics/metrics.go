package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 自定义业务指标
type AppMetrics struct {
	BytesReceived  prometheus.Counter
	FramesTotal    *prometheus.CounterVec // labels: kind, result
	ReadingsMerged prometheus.Counter     // 合并进快照的字段数
	SnapshotFields *prometheus.GaugeVec   // labels: device
	CommandsTotal  *prometheus.CounterVec // labels: command, result
	PollTotal      prometheus.Counter
	SinkTotal      *prometheus.CounterVec // labels: sink, result
	LastFrameTime  *prometheus.GaugeVec   // labels: device，unix 秒
	StreamDropped  prometheus.Counter     // 串口重新同步丢弃的字节数
	LinkConnects   *prometheus.CounterVec // labels: link (serial/bridge)，链路建立次数
	LinkRejected   prometheus.Counter     // 超过连接上限被拒绝的桥接连接
	WebhookTotal   *prometheus.CounterVec // labels: event, result (ok/duplicate/dropped/http_4xx/error)
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg prometheus.Registerer) *AppMetrics {
	m := &AppMetrics{
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daly_bytes_received_total",
			Help: "Total notification bytes received from the BMS link.",
		}),
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "daly_frames_total",
			Help: "Notifications processed by frame kind and result.",
		}, []string{"kind", "result"}),
		ReadingsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daly_reading_fields_merged_total",
			Help: "Decoded fields merged into the snapshot.",
		}),
		SnapshotFields: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "daly_snapshot_fields",
			Help: "Number of fields currently present in the snapshot.",
		}, []string{"device"}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "daly_commands_total",
			Help: "Outbound commands by name and result.",
		}, []string{"command", "result"}),
		PollTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daly_poll_total",
			Help: "Status polls issued.",
		}),
		SinkTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "daly_sink_publish_total",
			Help: "Reading deliveries to downstream sinks.",
		}, []string{"sink", "result"}),
		LastFrameTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "daly_last_frame_timestamp_seconds",
			Help: "Unix time of the last valid notification.",
		}, []string{"device"}),
		StreamDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daly_stream_dropped_bytes_total",
			Help: "Bytes discarded while resynchronising a serial stream.",
		}),
		LinkConnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "daly_link_connects_total",
			Help: "Link establishments by link type.",
		}, []string{"link"}),
		LinkRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daly_bridge_rejected_total",
			Help: "Bridge connections rejected because a bridge is already attached.",
		}),
		WebhookTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "daly_webhook_events_total",
			Help: "Alarm webhook events by result.",
		}, []string{"event", "result"}),
	}
	reg.MustRegister(m.BytesReceived, m.FramesTotal, m.ReadingsMerged, m.SnapshotFields,
		m.CommandsTotal, m.PollTotal, m.SinkTotal, m.LastFrameTime, m.StreamDropped,
		m.LinkConnects, m.LinkRejected, m.WebhookTotal)
	return m
}
