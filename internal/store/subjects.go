package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dlnorman/linkhoard/internal/enrich"
)

const subjectColumns = "id, url, title, screenshot_path, archive_url, broken, last_checked_at, updated_at"

// CreateSubject inserts a bookmark subject.
func (s *Store) CreateSubject(ctx context.Context, url, title string) (enrich.Subject, error) {
	row := s.db.QueryRow(ctx,
		`INSERT INTO subjects (url, title) VALUES ($1, $2)
		 RETURNING `+subjectColumns,
		url, title,
	)
	return scanSubject(row)
}

// GetSubject looks a subject up by id.
func (s *Store) GetSubject(ctx context.Context, id int64) (enrich.Subject, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+subjectColumns+` FROM subjects WHERE id = $1`, id)
	return scanSubject(row)
}

// ListSubjects returns all subjects ordered by id.
func (s *Store) ListSubjects(ctx context.Context) ([]enrich.Subject, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+subjectColumns+` FROM subjects ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []enrich.Subject
	for rows.Next() {
		subj, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		subjects = append(subjects, subj)
	}
	return subjects, rows.Err()
}

// SetScreenshotPath stores the thumbnail path written by the pipeline.
func (s *Store) SetScreenshotPath(ctx context.Context, subjectID int64, path string) error {
	return s.updateSubject(ctx, subjectID,
		`UPDATE subjects SET screenshot_path = $2, updated_at = now() WHERE id = $1`,
		subjectID, path)
}

// SetArchiveURL stores the archive permalink for a subject.
func (s *Store) SetArchiveURL(ctx context.Context, subjectID int64, archiveURL string) error {
	return s.updateSubject(ctx, subjectID,
		`UPDATE subjects SET archive_url = $2, updated_at = now() WHERE id = $1`,
		subjectID, archiveURL)
}

// SetLinkStatus records a link check verdict and its timestamp.
func (s *Store) SetLinkStatus(ctx context.Context, subjectID int64, broken bool, checkedAt time.Time) error {
	return s.updateSubject(ctx, subjectID,
		`UPDATE subjects SET broken = $2, last_checked_at = $3, updated_at = now() WHERE id = $1`,
		subjectID, broken, checkedAt)
}

func (s *Store) updateSubject(ctx context.Context, subjectID int64, sql string, args ...any) error {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update subject %d: %w", subjectID, err)
	}
	if tag.RowsAffected() == 0 {
		return enrich.ErrNotFound
	}
	return nil
}

func scanSubject(row scanner) (enrich.Subject, error) {
	var subj enrich.Subject
	err := row.Scan(&subj.ID, &subj.URL, &subj.Title, &subj.ScreenshotPath, &subj.ArchiveURL, &subj.Broken, &subj.LastCheckedAt, &subj.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return enrich.Subject{}, enrich.ErrNotFound
	}
	if err != nil {
		return enrich.Subject{}, fmt.Errorf("scan subject: %w", err)
	}
	return subj, nil
}
