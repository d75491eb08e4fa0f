package thumb

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dlnorman/linkhoard/internal/enrich"
	"github.com/dlnorman/linkhoard/internal/image"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeDomain maps a URL host to a filesystem-safe namespace:
// lowercased, www-stripped, runs of non-alphanumerics collapsed to "_".
func NormalizeDomain(rawURL string) string {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	host = nonAlnum.ReplaceAllString(host, "_")
	host = strings.Trim(host, "_")
	if host == "" {
		host = "unknown"
	}
	return host
}

// Saver writes acquired thumbnails under a domain-namespaced relative path.
// Filenames are keyed by hash(url + timestamp), so regenerating the same
// subject never collides with a prior file; the caller deletes the old file
// when replacing.
type Saver struct {
	root   string
	hasher enrich.Hasher
	clock  enrich.Clock
}

// NewSaver builds a Saver rooted at dir.
func NewSaver(dir string, hasher enrich.Hasher, clock enrich.Clock) *Saver {
	return &Saver{root: dir, hasher: hasher, clock: clock}
}

// Root returns the storage root directory.
func (s *Saver) Root() string { return s.root }

// Save writes data and returns the relative storage path
// `<domain>/<unix-ts>_<hash>.<ext>`.
func (s *Saver) Save(subjectURL string, data []byte) (string, error) {
	ts := s.clock.Now().Unix()
	key, err := s.hasher.ShortHash([]byte(fmt.Sprintf("%s%d", subjectURL, ts)))
	if err != nil {
		return "", fmt.Errorf("key thumbnail: %w", err)
	}

	rel := filepath.Join(NormalizeDomain(subjectURL), fmt.Sprintf("%d_%s.%s", ts, key, extFor(data)))
	abs := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("create thumbnail dir: %w", err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return "", fmt.Errorf("write thumbnail: %w", err)
	}
	return rel, nil
}

// Remove deletes a previously saved thumbnail by its relative path.
// Missing files are not an error.
func (s *Saver) Remove(relPath string) error {
	if relPath == "" {
		return nil
	}
	abs := filepath.Join(s.root, filepath.Clean(relPath))
	if !strings.HasPrefix(abs, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return fmt.Errorf("path %q escapes storage root", relPath)
	}
	if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// displayDomain returns the human-readable host (dots intact) for
// placeholder rendering, falling back to the normalized form.
func displayDomain(rawURL, fallback string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	}
	return fallback
}

func extFor(data []byte) string {
	info, err := image.Decode(data)
	if err != nil {
		return "png"
	}
	switch info.Format {
	case "jpeg":
		return "jpg"
	default:
		return info.Format
	}
}
