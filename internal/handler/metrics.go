package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/pixelift/pixelift/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeMetric(w, "pixelift_gallery_cache_hits_total %d\n", snap.GalleryCacheHits)
	writeMetric(w, "pixelift_gallery_cache_misses_total %d\n", snap.GalleryCacheMisses)

	writeLabeledMetric(w, "pixelift_transformations_applied_total", "kind", snap.TransformationsApplied)
	writeLabeledMetric(w, "pixelift_transformations_failed_total", "kind", snap.TransformationsFailed)
	writeMetric(w, "pixelift_render_duration_seconds_count %d\n", snap.RenderDurationCount)
	writeMetric(w, "pixelift_render_duration_seconds_sum %.6f\n", float64(snap.RenderDurationTotalNs)/1e9)

	writeMetric(w, "pixelift_images_saved_total %d\n", snap.ImagesSaved)
	writeMetric(w, "pixelift_images_updated_total %d\n", snap.ImagesUpdated)
	writeMetric(w, "pixelift_images_deleted_total %d\n", snap.ImagesDeleted)

	writeMetric(w, "pixelift_credits_debited_total %d\n", snap.CreditsDebited)
	writeMetric(w, "pixelift_credits_granted_total %d\n", snap.CreditsGranted)

	writeWebhookMetric(w, snap.WebhooksProcessed)

	writeLabeledMetric(w, "pixelift_notification_deliveries_total", "status", snap.WebhookDeliveries)
	writeMetric(w, "pixelift_notification_retries_total %d\n", snap.WebhookRetries)
	writeMetric(w, "pixelift_notification_queue_depth %d\n", snap.WebhookQueueDepth)

	writeLabeledMetric(w, "pixelift_usage_events_published_total", "status", snap.UsageEventsPublished)
	writeLabeledMetric(w, "pixelift_usage_events_processed_total", "status", snap.UsageEventsProcessed)
	writeMetric(w, "pixelift_usage_batches_total %d\n", snap.UsageBatchCount)
	writeMetric(w, "pixelift_usage_batch_events_total %d\n", snap.UsageBatchEventsTotal)
	writeMetric(w, "pixelift_usage_queue_depth %d\n", snap.UsageQueueDepth)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

// writeLabeledMetric emits one line per label value, sorted for stable output.
func writeLabeledMetric(w http.ResponseWriter, name, label string, values map[string]uint64) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeMetric(w, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

// writeWebhookMetric splits the "source/status" counter keys into labels.
func writeWebhookMetric(w http.ResponseWriter, values map[string]uint64) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		source, status := k, ""
		for i := 0; i < len(k); i++ {
			if k[i] == '/' {
				source, status = k[:i], k[i+1:]
				break
			}
		}
		writeMetric(w, "pixelift_webhooks_processed_total{source=%q,status=%q} %d\n", source, status, values[k])
	}
}
