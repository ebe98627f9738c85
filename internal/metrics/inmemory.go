package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	GalleryCacheHits       uint64
	GalleryCacheMisses     uint64
	TransformationsApplied map[string]uint64
	TransformationsFailed  map[string]uint64
	RenderDurationCount    uint64
	RenderDurationTotalNs  int64
	ImagesSaved            uint64
	ImagesUpdated          uint64
	ImagesDeleted          uint64
	CreditsDebited         int64
	CreditsGranted         int64
	WebhooksProcessed      map[string]uint64 // keyed "source/status"
	UsageEventsPublished   map[string]uint64 // keyed by status
	UsageEventsProcessed   map[string]uint64 // keyed by status
	UsageBatchCount        uint64
	UsageBatchEventsTotal  uint64
	UsageQueueDepth        int64
	WebhookDeliveries      map[string]uint64 // keyed by status
	WebhookRetries         uint64
	WebhookQueueDepth      int64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	galleryCacheHits      uint64
	galleryCacheMisses    uint64
	renderDurationCount   uint64
	renderDurationTotalNs int64
	imagesSaved           uint64
	imagesUpdated         uint64
	imagesDeleted         uint64
	creditsDebited        int64
	creditsGranted        int64

	usageBatchCount       uint64
	usageBatchEventsTotal uint64
	usageQueueDepth       int64
	webhookRetries        uint64
	webhookQueueDepth     int64

	mu                     sync.Mutex
	transformationsApplied map[string]uint64
	transformationsFailed  map[string]uint64
	webhooksProcessed      map[string]uint64
	usageEventsPublished   map[string]uint64
	usageEventsProcessed   map[string]uint64
	webhookDeliveries      map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		transformationsApplied: make(map[string]uint64),
		transformationsFailed:  make(map[string]uint64),
		webhooksProcessed:      make(map[string]uint64),
		usageEventsPublished:   make(map[string]uint64),
		usageEventsProcessed:   make(map[string]uint64),
		webhookDeliveries:      make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	applied := make(map[string]uint64, len(m.transformationsApplied))
	for k, v := range m.transformationsApplied {
		applied[k] = v
	}
	failed := make(map[string]uint64, len(m.transformationsFailed))
	for k, v := range m.transformationsFailed {
		failed[k] = v
	}
	webhooks := make(map[string]uint64, len(m.webhooksProcessed))
	for k, v := range m.webhooksProcessed {
		webhooks[k] = v
	}
	published := make(map[string]uint64, len(m.usageEventsPublished))
	for k, v := range m.usageEventsPublished {
		published[k] = v
	}
	processed := make(map[string]uint64, len(m.usageEventsProcessed))
	for k, v := range m.usageEventsProcessed {
		processed[k] = v
	}
	deliveries := make(map[string]uint64, len(m.webhookDeliveries))
	for k, v := range m.webhookDeliveries {
		deliveries[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		GalleryCacheHits:       atomic.LoadUint64(&m.galleryCacheHits),
		GalleryCacheMisses:     atomic.LoadUint64(&m.galleryCacheMisses),
		TransformationsApplied: applied,
		TransformationsFailed:  failed,
		RenderDurationCount:    atomic.LoadUint64(&m.renderDurationCount),
		RenderDurationTotalNs:  atomic.LoadInt64(&m.renderDurationTotalNs),
		ImagesSaved:            atomic.LoadUint64(&m.imagesSaved),
		ImagesUpdated:          atomic.LoadUint64(&m.imagesUpdated),
		ImagesDeleted:          atomic.LoadUint64(&m.imagesDeleted),
		CreditsDebited:         atomic.LoadInt64(&m.creditsDebited),
		CreditsGranted:         atomic.LoadInt64(&m.creditsGranted),
		WebhooksProcessed:      webhooks,
		UsageEventsPublished:   published,
		UsageEventsProcessed:   processed,
		UsageBatchCount:        atomic.LoadUint64(&m.usageBatchCount),
		UsageBatchEventsTotal:  atomic.LoadUint64(&m.usageBatchEventsTotal),
		UsageQueueDepth:        atomic.LoadInt64(&m.usageQueueDepth),
		WebhookDeliveries:      deliveries,
		WebhookRetries:         atomic.LoadUint64(&m.webhookRetries),
		WebhookQueueDepth:      atomic.LoadInt64(&m.webhookQueueDepth),
	}
}

// IncGalleryCacheHit increments cache hit counter.
func (m *InMemoryRecorder) IncGalleryCacheHit() {
	atomic.AddUint64(&m.galleryCacheHits, 1)
}

// IncGalleryCacheMiss increments cache miss counter.
func (m *InMemoryRecorder) IncGalleryCacheMiss() {
	atomic.AddUint64(&m.galleryCacheMisses, 1)
}

// IncTransformationApplied increments the applied counter for a kind.
func (m *InMemoryRecorder) IncTransformationApplied(kind string) {
	m.mu.Lock()
	m.transformationsApplied[kind]++
	m.mu.Unlock()
}

// IncTransformationFailed increments the failed counter for a kind.
func (m *InMemoryRecorder) IncTransformationFailed(kind string) {
	m.mu.Lock()
	m.transformationsFailed[kind]++
	m.mu.Unlock()
}

// ObserveRenderDuration records render duration.
func (m *InMemoryRecorder) ObserveRenderDuration(duration time.Duration) {
	atomic.AddUint64(&m.renderDurationCount, 1)
	atomic.AddInt64(&m.renderDurationTotalNs, duration.Nanoseconds())
}

// IncImageSaved increments the image saved counter.
func (m *InMemoryRecorder) IncImageSaved() {
	atomic.AddUint64(&m.imagesSaved, 1)
}

// IncImageUpdated increments the image updated counter.
func (m *InMemoryRecorder) IncImageUpdated() {
	atomic.AddUint64(&m.imagesUpdated, 1)
}

// IncImageDeleted increments the image deleted counter.
func (m *InMemoryRecorder) IncImageDeleted() {
	atomic.AddUint64(&m.imagesDeleted, 1)
}

// AddCreditsDebited adds to the debited credits total.
func (m *InMemoryRecorder) AddCreditsDebited(count int) {
	atomic.AddInt64(&m.creditsDebited, int64(count))
}

// AddCreditsGranted adds to the granted credits total.
func (m *InMemoryRecorder) AddCreditsGranted(count int) {
	atomic.AddInt64(&m.creditsGranted, int64(count))
}

// IncWebhookProcessed increments the webhook counter for a source/status.
func (m *InMemoryRecorder) IncWebhookProcessed(source, status string) {
	m.mu.Lock()
	m.webhooksProcessed[source+"/"+status]++
	m.mu.Unlock()
}

// IncUsageEventPublished increments the published counter for a status.
func (m *InMemoryRecorder) IncUsageEventPublished(status string) {
	m.mu.Lock()
	m.usageEventsPublished[status]++
	m.mu.Unlock()
}

// IncUsageEventProcessed increments the processed counter for a status.
func (m *InMemoryRecorder) IncUsageEventProcessed(status string) {
	m.mu.Lock()
	m.usageEventsProcessed[status]++
	m.mu.Unlock()
}

// ObserveUsageBatchSize records a processed batch size.
func (m *InMemoryRecorder) ObserveUsageBatchSize(size int) {
	atomic.AddUint64(&m.usageBatchCount, 1)
	atomic.AddUint64(&m.usageBatchEventsTotal, uint64(size))
}

// ObserveUsageBatchDuration records batch processing duration.
func (m *InMemoryRecorder) ObserveUsageBatchDuration(duration time.Duration) {}

// ObserveUsageIngestLag records publish-to-persist lag.
func (m *InMemoryRecorder) ObserveUsageIngestLag(lag time.Duration) {}

// SetUsageQueueDepth sets the current stream backlog depth.
func (m *InMemoryRecorder) SetUsageQueueDepth(depth int64) {
	atomic.StoreInt64(&m.usageQueueDepth, depth)
}

// IncWebhookDelivery increments the delivery counter for a status.
// Per-endpoint cardinality is dropped in the in-memory recorder.
func (m *InMemoryRecorder) IncWebhookDelivery(status, endpointID string) {
	m.mu.Lock()
	m.webhookDeliveries[status]++
	m.mu.Unlock()
}

// IncWebhookRetry increments the retry counter.
func (m *InMemoryRecorder) IncWebhookRetry(endpointID string, attempt int) {
	atomic.AddUint64(&m.webhookRetries, 1)
}

// ObserveWebhookDeliveryDuration records delivery duration.
func (m *InMemoryRecorder) ObserveWebhookDeliveryDuration(endpointID string, duration time.Duration) {}

// SetWebhookQueueDepth sets the pending delivery backlog depth.
func (m *InMemoryRecorder) SetWebhookQueueDepth(depth int64) {
	atomic.StoreInt64(&m.webhookQueueDepth, depth)
}
