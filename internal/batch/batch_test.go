package batch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/moodtales/storyteller/internal/providers"
	"github.com/moodtales/storyteller/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	mu       sync.Mutex
	inFlight int32
	maxSeen  int32
	calls    []source.Kind
}

func (s *stubGenerator) Generate(_ context.Context, p source.Payload) (providers.GenerationResult, error) {
	n := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)

	s.mu.Lock()
	if n > s.maxSeen {
		s.maxSeen = n
	}
	s.calls = append(s.calls, p.Kind())
	s.mu.Unlock()

	if t, ok := p.(source.PlainText); ok && strings.Contains(t.Text, "fail") {
		return providers.GenerationResult{}, errors.New("provider down")
	}
	return providers.GenerationResult{Analysis: "calm", Story: "Once upon a tide."}, nil
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func TestRun(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.txt":          "a quiet morning",
		"b.png":          "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR",
		"nested/c.txt":   "please fail",
		"broken.docx":    "not a zip",
		".hidden":        "skip me",
		".git/config":    "skip me too",
		"nested/d.jsonl": `{"x":1}`,
	})

	gen := &stubGenerator{}
	records, err := Run(context.Background(), Options{Dir: dir, Concurrency: 2}, gen)
	require.NoError(t, err)

	var files []string
	for _, r := range records {
		files = append(files, r.File)
	}
	assert.Equal(t, []string{"a.txt", "b.png", "broken.docx", "nested/c.txt", "nested/d.jsonl"}, files)

	assert.Equal(t, "text", records[0].Kind)
	assert.Equal(t, "Once upon a tide.", records[0].Story)
	assert.Equal(t, "image", records[1].Kind)
	assert.Contains(t, records[2].Error, "broken.docx")
	assert.Empty(t, records[2].Kind)
	assert.Contains(t, records[3].Error, "provider down")
	assert.Empty(t, records[4].Error)

	assert.LessOrEqual(t, gen.maxSeen, int32(2))

	s := Summarize(records)
	assert.Equal(t, Summary{Total: 5, Succeeded: 3, Failed: 2, AverageDuration: s.AverageDuration}, s)

	var out bytes.Buffer
	PrintSummary(&out, s)
	assert.Contains(t, out.String(), "Stories Generated:  3")
}

func TestRunSkipsCompleted(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.txt": "one", "b.txt": "two"})
	gen := &stubGenerator{}

	records, err := Run(context.Background(), Options{Dir: dir, Skip: map[string]bool{"a.txt": true}}, gen)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b.txt", records[0].File)
}

func TestRunExcludesOutputFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.txt":         "one",
		"stories.yaml":  "results:\n  - file: a.txt\n",
		"nested/b.txt":  "two",
		"stories.jsonl": `{"file":"a.txt"}`,
	})
	gen := &stubGenerator{}

	records, err := Run(context.Background(), Options{
		Dir: dir,
		Exclude: []string{
			filepath.Join(dir, "stories.yaml"),
			filepath.Join(dir, "nested", "..", "stories.jsonl"),
		},
	}, gen)
	require.NoError(t, err)

	var files []string
	for _, r := range records {
		files = append(files, r.File)
	}
	assert.Equal(t, []string{"a.txt", "nested/b.txt"}, files)
	assert.Len(t, gen.calls, 2)
}

func TestRunCancelled(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.txt": "one"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records, err := Run(ctx, Options{Dir: dir, Concurrency: 1}, &stubGenerator{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotEmpty(t, records[0].Error)
}

func TestRunMissingDir(t *testing.T) {
	_, err := Run(context.Background(), Options{Dir: filepath.Join(t.TempDir(), "nope")}, &stubGenerator{})
	assert.Error(t, err)
}

func TestSaveAndLoad(t *testing.T) {
	records := []Record{
		{File: "a.txt", Kind: "text", Analysis: "calm", Story: "Once.", DurationMS: 12},
		{File: "b.docx", Error: "failed to decode b.docx: zip: not a valid zip file", DurationMS: 1},
	}
	cfg := RunConfig{Provider: "gemini", Model: "gemini-2.5-flash", Dir: "in", Concurrency: 2, Timestamp: "2026-01-02_03-04-05"}

	for _, ext := range []string{".yaml", ".jsonl", ".parquet"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out", "results"+ext)
			require.NoError(t, Save(path, cfg, records))

			got, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, records, got)
		})
	}

	t.Run("yaml header", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "results.yml")
		require.NoError(t, Save(path, cfg, records))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "provider: gemini")
		assert.Contains(t, string(data), "duration_ms: 12")
	})

	t.Run("unsupported", func(t *testing.T) {
		assert.Error(t, Save(filepath.Join(t.TempDir(), "results.csv"), cfg, records))
	})

	t.Run("missing file", func(t *testing.T) {
		got, err := Load(filepath.Join(t.TempDir(), "none.jsonl"))
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestCompletedAndMerge(t *testing.T) {
	previous := []Record{
		{File: "a.txt", Story: "Once."},
		{File: "b.txt", Error: "provider down"},
	}
	assert.Equal(t, map[string]bool{"a.txt": true}, Completed(previous))

	merged := Merge(previous, []Record{{File: "b.txt", Story: "Twice."}, {File: "c.txt", Story: "Thrice."}})
	assert.Equal(t, []Record{
		{File: "a.txt", Story: "Once."},
		{File: "b.txt", Story: "Twice."},
		{File: "c.txt", Story: "Thrice."},
	}, merged)
}
