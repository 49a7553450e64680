package batch

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/moodtales/storyteller/internal/providers"
	"github.com/moodtales/storyteller/internal/source"
)

// Record is the outcome of generating a story for one file.
type Record struct {
	File       string `json:"file" yaml:"file" parquet:"file"`
	Kind       string `json:"kind" yaml:"kind" parquet:"kind"`
	Analysis   string `json:"analysis,omitempty" yaml:"analysis,omitempty" parquet:"analysis"`
	Story      string `json:"story,omitempty" yaml:"story,omitempty" parquet:"story"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty" parquet:"error"`
	DurationMS int64  `json:"duration_ms" yaml:"duration_ms" parquet:"duration_ms"`
}

// Options controls a batch run.
type Options struct {
	Dir         string
	Concurrency int
	// Skip lists files (relative to Dir) that already have a story.
	Skip map[string]bool
	// Exclude lists paths never treated as sources, such as the run's own
	// output file when it sits inside Dir.
	Exclude []string
}

// Summary counts the outcome of a run.
type Summary struct {
	Total           int
	Succeeded       int
	Failed          int
	AverageDuration time.Duration
}

// Run generates a story for every regular file under opts.Dir. Results are
// sorted by file path. Per-file failures are recorded, not returned.
func Run(ctx context.Context, opts Options, gen providers.Generator) ([]Record, error) {
	files, err := listFiles(opts.Dir, opts.Exclude)
	if err != nil {
		return nil, err
	}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var todo []string
	for _, f := range files {
		if !opts.Skip[f] {
			todo = append(todo, f)
		}
	}
	slog.Info("Processing files", "dir", opts.Dir, "files", len(todo), "skipped", len(files)-len(todo), "concurrency", concurrency)

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrency)
	resultsChan := make(chan Record, len(todo))

	for i, rel := range todo {
		wg.Add(1)
		go func(idx int, rel string) {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				resultsChan <- Record{File: rel, Error: err.Error()}
				return
			}
			select {
			case semaphore <- struct{}{}: // Acquire
			case <-ctx.Done():
				resultsChan <- Record{File: rel, Error: ctx.Err().Error()}
				return
			}
			defer func() { <-semaphore }() // Release

			slog.Info("Processing file", "file", rel, "progress", fmt.Sprintf("%d/%d", idx+1, len(todo)))
			resultsChan <- processFile(ctx, opts.Dir, rel, gen)
		}(i, rel)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	records := make([]Record, 0, len(todo))
	for r := range resultsChan {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].File < records[j].File })
	return records, nil
}

func processFile(ctx context.Context, dir, rel string, gen providers.Generator) Record {
	record := Record{File: rel}
	start := time.Now()

	data, err := os.ReadFile(filepath.Join(dir, rel))
	if err != nil {
		record.Error = fmt.Sprintf("failed to read file: %v", err)
		return finish(record, start)
	}

	payload, err := source.Decode(data, filepath.Base(rel), "")
	if err != nil {
		record.Error = err.Error()
		return finish(record, start)
	}
	record.Kind = string(payload.Kind())

	result, err := gen.Generate(ctx, payload)
	if err != nil {
		slog.Warn("Generation failed", "file", rel, "err", err)
		record.Error = fmt.Sprintf("failed to generate story: %v", err)
		return finish(record, start)
	}

	record.Analysis = result.Analysis
	record.Story = result.Story
	return finish(record, start)
}

func finish(r Record, start time.Time) Record {
	r.DurationMS = time.Since(start).Milliseconds()
	return r
}

// listFiles returns regular, non-hidden files under dir relative to it,
// leaving out the excluded paths.
func listFiles(dir string, exclude []string) ([]string, error) {
	excluded := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		abs, err := filepath.Abs(e)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", e, err)
		}
		excluded[abs] = true
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if path != dir && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if abs, err := filepath.Abs(path); err == nil && excluded[abs] {
			slog.Debug("Skipping excluded file", "file", path)
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	return files, nil
}

// Summarize counts successes and failures.
func Summarize(records []Record) Summary {
	s := Summary{Total: len(records)}
	var total int64
	for _, r := range records {
		if r.Error != "" {
			s.Failed++
			continue
		}
		s.Succeeded++
		total += r.DurationMS
	}
	if s.Succeeded > 0 {
		s.AverageDuration = time.Duration(total/int64(s.Succeeded)) * time.Millisecond
	}
	return s
}

// PrintSummary writes a human readable summary.
func PrintSummary(w io.Writer, s Summary) {
	fmt.Fprintln(w, "\n========================================")
	fmt.Fprintln(w, "Batch Summary")
	fmt.Fprintln(w, "========================================")
	fmt.Fprintf(w, "Total Files:        %d\n", s.Total)
	fmt.Fprintf(w, "Stories Generated:  %d\n", s.Succeeded)
	fmt.Fprintf(w, "Failed:             %d\n", s.Failed)
	fmt.Fprintf(w, "Average Duration:   %s\n", s.AverageDuration)
	fmt.Fprintln(w, "========================================")
}
