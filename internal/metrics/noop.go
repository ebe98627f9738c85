package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncGalleryCacheHit is a no-op.
func (n *NoopRecorder) IncGalleryCacheHit() {}

// IncGalleryCacheMiss is a no-op.
func (n *NoopRecorder) IncGalleryCacheMiss() {}

// IncTransformationApplied is a no-op.
func (n *NoopRecorder) IncTransformationApplied(kind string) {}

// IncTransformationFailed is a no-op.
func (n *NoopRecorder) IncTransformationFailed(kind string) {}

// ObserveRenderDuration is a no-op.
func (n *NoopRecorder) ObserveRenderDuration(duration time.Duration) {}

// IncImageSaved is a no-op.
func (n *NoopRecorder) IncImageSaved() {}

// IncImageUpdated is a no-op.
func (n *NoopRecorder) IncImageUpdated() {}

// IncImageDeleted is a no-op.
func (n *NoopRecorder) IncImageDeleted() {}

// AddCreditsDebited is a no-op.
func (n *NoopRecorder) AddCreditsDebited(count int) {}

// AddCreditsGranted is a no-op.
func (n *NoopRecorder) AddCreditsGranted(count int) {}

// IncWebhookProcessed is a no-op.
func (n *NoopRecorder) IncWebhookProcessed(source, status string) {}

// IncWebhookDelivery is a no-op.
func (n *NoopRecorder) IncWebhookDelivery(status, endpointID string) {}

// IncWebhookRetry is a no-op.
func (n *NoopRecorder) IncWebhookRetry(endpointID string, attempt int) {}

// ObserveWebhookDeliveryDuration is a no-op.
func (n *NoopRecorder) ObserveWebhookDeliveryDuration(endpointID string, duration time.Duration) {}

// SetWebhookQueueDepth is a no-op.
func (n *NoopRecorder) SetWebhookQueueDepth(depth int64) {}

// IncUsageEventPublished is a no-op.
func (n *NoopRecorder) IncUsageEventPublished(status string) {}

// IncUsageEventProcessed is a no-op.
func (n *NoopRecorder) IncUsageEventProcessed(status string) {}

// ObserveUsageBatchSize is a no-op.
func (n *NoopRecorder) ObserveUsageBatchSize(size int) {}

// ObserveUsageBatchDuration is a no-op.
func (n *NoopRecorder) ObserveUsageBatchDuration(duration time.Duration) {}

// ObserveUsageIngestLag is a no-op.
func (n *NoopRecorder) ObserveUsageIngestLag(lag time.Duration) {}

// SetUsageQueueDepth is a no-op.
func (n *NoopRecorder) SetUsageQueueDepth(depth int64) {}
