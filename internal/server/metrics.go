package server

import (
	"sync"
	"time"
)

// Metrics holds in-process counters exported at /metrics.
type Metrics struct {
	mu sync.RWMutex

	// Upload metrics
	uploadsTotal        int64
	uploadBytesTotal    int64
	uploadErrorsTotal   int64
	uploadDurationTotal time.Duration

	// Extraction metrics
	extractionsTotal        int64
	extractionFailuresTotal int64
	entriesExtractedTotal   int64
	extractedBytesTotal     int64
	extractionDurationTotal time.Duration

	// Static file metrics
	downloadsTotal      int64
	downloadBytesTotal  int64
	downloadErrorsTotal int64

	// Directory service metrics
	filesDeletedTotal   int64
	foldersDeletedTotal int64

	accessDeniedTotal int64

	// System metrics
	requestsTotal    int64
	requestErrors5xx int64
	requestErrors4xx int64
}

var globalMetrics = &Metrics{}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordUpload records a successfully stored upload
func (m *Metrics) RecordUpload(bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadsTotal++
	m.uploadBytesTotal += bytes
	m.uploadDurationTotal += duration
}

// RecordUploadError records a rejected or failed upload
func (m *Metrics) RecordUploadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadErrorsTotal++
}

// RecordExtraction records a completed archive extraction
func (m *Metrics) RecordExtraction(entries int, bytes int64, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extractionsTotal++
	m.entriesExtractedTotal += int64(entries)
	m.extractedBytesTotal += bytes
	m.extractionDurationTotal += duration
}

func (m *Metrics) RecordExtractionFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extractionFailuresTotal++
}

// RecordDownload records a file served from /files
func (m *Metrics) RecordDownload(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadsTotal++
	m.downloadBytesTotal += bytes
}

func (m *Metrics) RecordDownloadError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloadErrorsTotal++
}

// RecordDelete records a deleted entry
func (m *Metrics) RecordDelete(dir bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dir {
		m.foldersDeletedTotal++
	} else {
		m.filesDeletedTotal++
	}
}

func (m *Metrics) RecordAccessDenied() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessDeniedTotal++
}

// RecordRequest records an HTTP request
func (m *Metrics) RecordRequest(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestsTotal++

	if statusCode >= 500 {
		m.requestErrors5xx++
	} else if statusCode >= 400 {
		m.requestErrors4xx++
	}
}

// Snapshot returns a snapshot of current metrics
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		UploadsTotal:            m.uploadsTotal,
		UploadBytesTotal:        m.uploadBytesTotal,
		UploadErrorsTotal:       m.uploadErrorsTotal,
		UploadAvgDurationMs:     avgDuration(m.uploadDurationTotal, m.uploadsTotal),
		ExtractionsTotal:        m.extractionsTotal,
		ExtractionFailuresTotal: m.extractionFailuresTotal,
		EntriesExtractedTotal:   m.entriesExtractedTotal,
		ExtractedBytesTotal:     m.extractedBytesTotal,
		ExtractionAvgDurationMs: avgDuration(m.extractionDurationTotal, m.extractionsTotal),
		DownloadsTotal:          m.downloadsTotal,
		DownloadBytesTotal:      m.downloadBytesTotal,
		DownloadErrorsTotal:     m.downloadErrorsTotal,
		FilesDeletedTotal:       m.filesDeletedTotal,
		FoldersDeletedTotal:     m.foldersDeletedTotal,
		AccessDeniedTotal:       m.accessDeniedTotal,
		RequestsTotal:           m.requestsTotal,
		RequestErrors5xx:        m.requestErrors5xx,
		RequestErrors4xx:        m.requestErrors4xx,
	}
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	UploadsTotal        int64   `json:"uploads_total"`
	UploadBytesTotal    int64   `json:"upload_bytes_total"`
	UploadErrorsTotal   int64   `json:"upload_errors_total"`
	UploadAvgDurationMs float64 `json:"upload_avg_duration_ms"`

	ExtractionsTotal        int64   `json:"extractions_total"`
	ExtractionFailuresTotal int64   `json:"extraction_failures_total"`
	EntriesExtractedTotal   int64   `json:"entries_extracted_total"`
	ExtractedBytesTotal     int64   `json:"extracted_bytes_total"`
	ExtractionAvgDurationMs float64 `json:"extraction_avg_duration_ms"`

	DownloadsTotal      int64 `json:"downloads_total"`
	DownloadBytesTotal  int64 `json:"download_bytes_total"`
	DownloadErrorsTotal int64 `json:"download_errors_total"`

	FilesDeletedTotal   int64 `json:"files_deleted_total"`
	FoldersDeletedTotal int64 `json:"folders_deleted_total"`

	AccessDeniedTotal int64 `json:"access_denied_total"`

	RequestsTotal    int64 `json:"requests_total"`
	RequestErrors5xx int64 `json:"request_errors_5xx"`
	RequestErrors4xx int64 `json:"request_errors_4xx"`
}

func avgDuration(total time.Duration, count int64) float64 {
	if count == 0 {
		return 0
	}
	return float64(total.Milliseconds()) / float64(count)
}
