// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Gallery metrics
	IncGalleryCacheHit()
	IncGalleryCacheMiss()

	// Transformation metrics
	IncTransformationApplied(kind string)
	IncTransformationFailed(kind string)
	ObserveRenderDuration(duration time.Duration)

	// Image management metrics
	IncImageSaved()
	IncImageUpdated()
	IncImageDeleted()

	// Ledger metrics
	AddCreditsDebited(n int)
	AddCreditsGranted(n int)

	// Webhook metrics
	IncWebhookProcessed(source, status string) // status: "success", "failed", "rejected"

	// Outbound notification metrics
	IncWebhookDelivery(status, endpointID string) // status: "success", "failed", "exhausted"
	IncWebhookRetry(endpointID string, attempt int)
	ObserveWebhookDeliveryDuration(endpointID string, duration time.Duration)
	SetWebhookQueueDepth(depth int64)

	// Usage event pipeline metrics
	IncUsageEventPublished(status string) // status: "success", "dropped"
	IncUsageEventProcessed(status string) // status: "success", "failed", "dead_lettered"
	ObserveUsageBatchSize(size int)
	ObserveUsageBatchDuration(duration time.Duration)
	ObserveUsageIngestLag(lag time.Duration)
	SetUsageQueueDepth(depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
