package scraper

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSnapshotSinkSave(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	sink, err := NewSnapshotSink(root, 1<<20, zap.NewNop())
	require.NoError(t, err)

	meta := SnapshotMeta{
		RunID:     "run-1",
		URL:       "https://www.jobsearcher.com/jobs?q=engineer&l=Austin&start=0",
		Site:      "generic-search",
		FetchedAt: time.Now().UTC(),
	}
	htmlPath, err := sink.Save(meta, "<html><body>snapshot</body></html>")
	require.NoError(t, err)

	body, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	require.Contains(t, string(body), "snapshot")

	metaPath := strings.TrimSuffix(htmlPath, ".html") + ".json"
	raw, err := os.ReadFile(metaPath)
	require.NoError(t, err)

	var saved SnapshotMeta
	require.NoError(t, json.Unmarshal(raw, &saved))
	require.Equal(t, "run-1", saved.RunID)
	require.Equal(t, len("<html><body>snapshot</body></html>"), saved.Bytes)
}

func TestSnapshotSinkRejectsOversizedPage(t *testing.T) {
	t.Parallel()
	sink, err := NewSnapshotSink(t.TempDir(), 8, zap.NewNop())
	require.NoError(t, err)

	_, err = sink.Save(SnapshotMeta{RunID: "r", URL: "https://x.test"}, "this is longer than eight bytes")
	require.Error(t, err)
}

func TestSnapshotSinkRejectsEmptyPage(t *testing.T) {
	t.Parallel()
	sink, err := NewSnapshotSink(t.TempDir(), 0, zap.NewNop())
	require.NoError(t, err)

	_, err = sink.Save(SnapshotMeta{RunID: "r", URL: "https://x.test"}, "")
	require.Error(t, err)
}
