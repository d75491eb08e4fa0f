package enrich

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a job or subject does not exist.
var ErrNotFound = errors.New("not found")

// Queue persists jobs and hands them out for processing. Leasing is the
// sole double-processing guard: LeaseNextBatch must move pending jobs to
// processing atomically so overlapping runner invocations cannot lease the
// same job twice.
type Queue interface {
	Enqueue(ctx context.Context, subjectID int64, kind JobKind, payload string) (Job, error)
	LeaseNextBatch(ctx context.Context, limit, maxAttempts int) ([]Job, error)
	Resolve(ctx context.Context, jobID int64, success bool, result string, maxAttempts int) error
	Fail(ctx context.Context, jobID int64, result string) error
	StatusSummary(ctx context.Context, kind JobKind) (StatusSummary, error)
	BrokenCount(ctx context.Context) (int, error)
	HasLiveCheck(ctx context.Context, subjectID int64) (bool, error)
	RecentChecks(ctx context.Context, limit int) ([]CheckRecord, error)
}

// SubjectStore reads subjects and writes back their enrichment fields.
type SubjectStore interface {
	CreateSubject(ctx context.Context, url, title string) (Subject, error)
	GetSubject(ctx context.Context, id int64) (Subject, error)
	ListSubjects(ctx context.Context) ([]Subject, error)
	SetScreenshotPath(ctx context.Context, subjectID int64, path string) error
	SetArchiveURL(ctx context.Context, subjectID int64, archiveURL string) error
	SetLinkStatus(ctx context.Context, subjectID int64, broken bool, checkedAt time.Time) error
}

// Store combines the queue and subject surfaces one backing database
// provides.
type Store interface {
	Queue
	SubjectStore
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Hasher computes digests used to key stored thumbnails.
type Hasher interface {
	Hash(data []byte) (string, error)
	ShortHash(data []byte) (string, error)
}
