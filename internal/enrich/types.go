// Package enrich defines core types shared across the enrichment subsystem.
package enrich

import "time"

// JobKind identifies the enrichment work a job performs.
type JobKind string

// Job kind values persisted in the job store.
const (
	KindArchive   JobKind = "archive"
	KindThumbnail JobKind = "thumbnail"
	KindCheckURL  JobKind = "check_url"
)

// Valid reports whether k is a known job kind.
func (k JobKind) Valid() bool {
	switch k {
	case KindArchive, KindThumbnail, KindCheckURL:
		return true
	}
	return false
}

// JobStatus represents the lifecycle state of a job.
type JobStatus string

// Job status values persisted in the job store.
const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job is a unit of deferred enrichment work against one subject.
type Job struct {
	ID        int64     `json:"id"`
	SubjectID int64     `json:"subject_id"`
	Kind      JobKind   `json:"kind"`
	Payload   string    `json:"payload"`
	Status    JobStatus `json:"status"`
	Result    string    `json:"result,omitempty"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Terminal reports whether the job can never be leased again.
func (j Job) Terminal(maxAttempts int) bool {
	if j.Status == StatusCompleted {
		return true
	}
	return j.Status == StatusFailed && j.Attempts >= maxAttempts
}

// Subject is the bookmark record a job enriches. Ownership of the full
// entity lies with the surrounding application; this subsystem only ever
// writes the four enrichment fields.
type Subject struct {
	ID             int64      `json:"id"`
	URL            string     `json:"url"`
	Title          string     `json:"title,omitempty"`
	ScreenshotPath string     `json:"screenshot_path,omitempty"`
	ArchiveURL     string     `json:"archive_url,omitempty"`
	Broken         bool       `json:"broken"`
	LastCheckedAt  *time.Time `json:"last_checked_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// StatusSummary aggregates job counts for one kind.
type StatusSummary struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// CheckRecord is a resolved check_url job joined with its subject, for the
// status surface.
type CheckRecord struct {
	JobID        int64     `json:"job_id"`
	SubjectID    int64     `json:"subject_id"`
	SubjectURL   string    `json:"subject_url"`
	SubjectTitle string    `json:"subject_title,omitempty"`
	Status       JobStatus `json:"status"`
	Result       string    `json:"result,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AcquiredImage is the outcome of the thumbnail acquisition pipeline.
type AcquiredImage struct {
	StoragePath string `json:"storage_path"`
	Method      string `json:"method"`
}

// Acquisition method names recorded in job results and metrics.
const (
	MethodTypeIcon      = "type_icon"
	MethodLocalRender   = "local_render"
	MethodScreenshotAPI = "screenshot_api"
	MethodOpenGraph     = "og_image"
	MethodContentImage  = "content_image"
	MethodFavicon       = "favicon"
	MethodPlaceholder   = "placeholder"
)
