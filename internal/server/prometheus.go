// prometheus.go - Prometheus text exposition of the in-process metrics
package server

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// PrometheusExporter renders a Metrics snapshot in Prometheus text format.
type PrometheusExporter struct {
	metrics *Metrics
	build   BuildInfo
}

func NewPrometheusExporter(m *Metrics, build BuildInfo) *PrometheusExporter {
	return &PrometheusExporter{metrics: m, build: build}
}

func writeMetric(b *strings.Builder, name, kind, help string, value any) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(b, "%s %v\n\n", name, value)
}

// Handler returns an HTTP handler for the /metrics endpoint
func (p *PrometheusExporter) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := p.metrics.Snapshot()

		var out strings.Builder

		out.WriteString("# HELP zd_info Application version info\n")
		out.WriteString("# TYPE zd_info gauge\n")
		fmt.Fprintf(&out, "zd_info{version=\"%s\",commit=\"%s\"} 1\n\n",
			prometheusLabel(p.build.Version), prometheusLabel(p.build.Commit))

		writeMetric(&out, "zd_requests_total", "counter", "Total number of HTTP requests", snapshot.RequestsTotal)
		out.WriteString("# HELP zd_request_errors_total HTTP requests that ended in an error status\n")
		out.WriteString("# TYPE zd_request_errors_total counter\n")
		fmt.Fprintf(&out, "zd_request_errors_total{class=\"4xx\"} %d\n", snapshot.RequestErrors4xx)
		fmt.Fprintf(&out, "zd_request_errors_total{class=\"5xx\"} %d\n\n", snapshot.RequestErrors5xx)

		writeMetric(&out, "zd_uploads_total", "counter", "Total number of stored uploads", snapshot.UploadsTotal)
		writeMetric(&out, "zd_upload_bytes_total", "counter", "Total bytes stored by uploads", snapshot.UploadBytesTotal)
		writeMetric(&out, "zd_upload_errors_total", "counter", "Rejected or failed uploads", snapshot.UploadErrorsTotal)

		writeMetric(&out, "zd_extractions_total", "counter", "Archives extracted successfully", snapshot.ExtractionsTotal)
		writeMetric(&out, "zd_extraction_failures_total", "counter", "Archives that failed to extract", snapshot.ExtractionFailuresTotal)
		writeMetric(&out, "zd_entries_extracted_total", "counter", "Files written by archive extraction", snapshot.EntriesExtractedTotal)
		writeMetric(&out, "zd_extracted_bytes_total", "counter", "Bytes written by archive extraction", snapshot.ExtractedBytesTotal)

		writeMetric(&out, "zd_downloads_total", "counter", "Files served from /files", snapshot.DownloadsTotal)
		writeMetric(&out, "zd_download_bytes_total", "counter", "Bytes of files served from /files", snapshot.DownloadBytesTotal)

		out.WriteString("# HELP zd_deletes_total Entries deleted through the directory service\n")
		out.WriteString("# TYPE zd_deletes_total counter\n")
		fmt.Fprintf(&out, "zd_deletes_total{kind=\"file\"} %d\n", snapshot.FilesDeletedTotal)
		fmt.Fprintf(&out, "zd_deletes_total{kind=\"folder\"} %d\n\n", snapshot.FoldersDeletedTotal)

		writeMetric(&out, "zd_access_denied_total", "counter", "Requests rejected by the access gate", snapshot.AccessDeniedTotal)

		out.WriteString("# HELP zd_request_duration_ms Request duration percentiles per endpoint\n")
		out.WriteString("# TYPE zd_request_duration_ms summary\n")
		for _, endpoint := range durationEndpoints() {
			p50, p95, p99 := GetRequestDurationPercentiles(endpoint)
			label := prometheusLabel(endpoint)
			fmt.Fprintf(&out, "zd_request_duration_ms{endpoint=\"%s\",quantile=\"0.5\"} %.3f\n", label, p50)
			fmt.Fprintf(&out, "zd_request_duration_ms{endpoint=\"%s\",quantile=\"0.95\"} %.3f\n", label, p95)
			fmt.Fprintf(&out, "zd_request_duration_ms{endpoint=\"%s\",quantile=\"0.99\"} %.3f\n", label, p99)
		}
		out.WriteString("\n")

		writeMetric(&out, "zd_uptime_seconds", "counter", "Application uptime in seconds",
			fmt.Sprintf("%.0f", time.Since(serverStartTime).Seconds()))

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(out.String()))
	}
}

// prometheusLabel escapes a label value.
func prometheusLabel(value string) string {
	value = strings.ReplaceAll(value, "\\", "\\\\")
	value = strings.ReplaceAll(value, "\"", "\\\"")
	value = strings.ReplaceAll(value, "\n", "\\n")
	return value
}

// durationSamples keeps the most recent request durations per endpoint.
type durationSamples struct {
	mu        sync.RWMutex
	durations map[string][]float64 // endpoint -> durations in ms
}

const maxDurationSamples = 1000

var (
	requestDurations = &durationSamples{durations: make(map[string][]float64)}
	serverStartTime  = time.Now()
)

// RecordRequestDuration records the duration of a request for summary metrics
func RecordRequestDuration(endpoint string, durationMs float64) {
	requestDurations.mu.Lock()
	defer requestDurations.mu.Unlock()

	durations := append(requestDurations.durations[endpoint], durationMs)
	if len(durations) > maxDurationSamples {
		durations = durations[len(durations)-maxDurationSamples:]
	}
	requestDurations.durations[endpoint] = durations
}

func durationEndpoints() []string {
	requestDurations.mu.RLock()
	defer requestDurations.mu.RUnlock()

	out := make([]string, 0, len(requestDurations.durations))
	for k := range requestDurations.durations {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// GetRequestDurationPercentiles returns percentile data for request durations
func GetRequestDurationPercentiles(endpoint string) (p50, p95, p99 float64) {
	requestDurations.mu.RLock()
	durations := requestDurations.durations[endpoint]
	sorted := make([]float64, len(durations))
	copy(sorted, durations)
	requestDurations.mu.RUnlock()

	if len(sorted) == 0 {
		return 0, 0, 0
	}
	sort.Float64s(sorted)

	p50 = sorted[len(sorted)*50/100]
	p95 = sorted[len(sorted)*95/100]
	p99 = sorted[len(sorted)*99/100]
	return
}
