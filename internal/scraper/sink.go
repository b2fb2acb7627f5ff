package scraper

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
)

var invalidFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SnapshotSink archives the rendered HTML of each fetched results page,
// one HTML file plus one metadata JSON per page, grouped by run. Snapshots
// are what make selector-drift incidents debuggable after the fact.
type SnapshotSink struct {
	root     string
	maxBytes int64
	logger   *zap.Logger
}

// SnapshotMeta is persisted next to each HTML snapshot.
type SnapshotMeta struct {
	RunID     string    `json:"run_id"`
	URL       string    `json:"url"`
	Site      string    `json:"site"`
	FetchedAt time.Time `json:"fetched_at"`
	Bytes     int       `json:"bytes"`
}

// NewSnapshotSink returns a sink rooted at dir.
func NewSnapshotSink(root string, maxBytes int64, logger *zap.Logger) (*SnapshotSink, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create snapshot dir %s: %w", root, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotSink{root: root, maxBytes: maxBytes, logger: logger}, nil
}

// Save writes the snapshot and its metadata, returning the HTML path.
// Oversized pages are rejected rather than truncated.
func (s *SnapshotSink) Save(meta SnapshotMeta, html string) (string, error) {
	if html == "" {
		return "", fmt.Errorf("empty page body")
	}
	if s.maxBytes > 0 && int64(len(html)) > s.maxBytes {
		return "", fmt.Errorf("page size %d exceeds max %d", len(html), s.maxBytes)
	}

	dir := filepath.Join(s.root, invalidFilenameChars.ReplaceAllString(meta.RunID, "_"))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create run dir %s: %w", dir, err)
	}

	base := safeBasename(meta.URL)
	htmlPath := filepath.Join(dir, base+".html")
	if err := os.WriteFile(htmlPath, []byte(html), 0o600); err != nil {
		return "", fmt.Errorf("write snapshot %s: %w", htmlPath, err)
	}

	meta.Bytes = len(html)
	payload, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot meta: %w", err)
	}
	metaPath := filepath.Join(dir, base+".json")
	if err := os.WriteFile(metaPath, payload, 0o600); err != nil {
		return "", fmt.Errorf("write snapshot meta %s: %w", metaPath, err)
	}

	s.logger.Debug("snapshot saved", zap.String("url", meta.URL), zap.String("path", htmlPath))
	return htmlPath, nil
}

func safeBasename(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return hashURL(raw)
	}
	host := invalidFilenameChars.ReplaceAllString(u.Hostname(), "_")
	p := strings.Trim(u.EscapedPath(), "/")
	if p == "" {
		p = "root"
	}
	p = invalidFilenameChars.ReplaceAllString(p, "_")
	return fmt.Sprintf("%s_%s_%s", host, p, hashURL(raw)[:16])
}

func hashURL(raw string) string {
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}
