package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "visitord",
		Name:      "frames_ingested_total",
		Help:      "Total number of frames extracted and queued for processing",
	}, []string{"stream_id"})

	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "visitord",
		Name:      "frames_processed_total",
		Help:      "Total number of frames processed",
	}, []string{"stream_id"})

	FacesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "visitord",
		Name:      "faces_detected_total",
		Help:      "Total number of faces detected",
	}, []string{"stream_id"})

	VisitEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "visitord",
		Name:      "visit_entries_total",
		Help:      "Total number of visit entry events emitted",
	}, []string{"stream_id"})

	VisitExits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "visitord",
		Name:      "visit_exits_total",
		Help:      "Total number of visit exit events emitted",
	}, []string{"stream_id"})

	ActiveTracks = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "visitord",
		Name:      "active_tracks",
		Help:      "Track bindings currently mapped to a visitor",
	}, []string{"stream_id"})

	PendingExits = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "visitord",
		Name:      "pending_exits",
		Help:      "Visitors in the exit debounce buffer",
	}, []string{"stream_id"})

	VisitorsRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "visitord",
		Name:      "visitors_registered_total",
		Help:      "New visitor identities registered from unmatched faces",
	})

	VisitorsRecognized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "visitord",
		Name:      "visitors_recognized_total",
		Help:      "Faces matched to an existing visitor identity",
	})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "visitord",
		Name:      "inference_duration_seconds",
		Help:      "Duration of ML inference stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "visitord",
		Name:      "queue_depth",
		Help:      "Number of pending frame tasks in queue",
	})

	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "visitord",
		Name:      "active_streams",
		Help:      "Number of currently active video streams",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "visitord",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "visitord",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
