package batch

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

// RunConfig is the header of a YAML results file.
type RunConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	Dir         string `yaml:"dir"`
	Concurrency int    `yaml:"concurrency"`
	Timestamp   string `yaml:"timestamp"`
}

// Report is the YAML results document.
type Report struct {
	Config  RunConfig `yaml:"config"`
	Results []Record  `yaml:"results"`
}

// Save writes records to path. The format follows the extension: .yaml or
// .yml, .jsonl or .json, or .parquet.
func Save(path string, cfg RunConfig, records []Record) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = saveYAML(path, Report{Config: cfg, Results: records})
	case ".jsonl", ".json":
		err = saveJSONL(path, records)
	case ".parquet":
		err = parquet.WriteFile(path, records)
	default:
		return fmt.Errorf("unsupported output format: %s (supported: .yaml, .jsonl, .parquet)", ext)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	slog.Info("Results saved", "path", path, "records", len(records))
	return nil
}

// Load reads records written by Save. A missing file yields no records.
func Load(path string) ([]Record, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		var report Report
		if err := yaml.Unmarshal(data, &report); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		return report.Results, nil
	case ".jsonl", ".json":
		return loadJSONL(path)
	case ".parquet":
		records, err := parquet.ReadFile[Record](path)
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet: %w", err)
		}
		return records, nil
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

// Completed returns the files that already have a story.
func Completed(records []Record) map[string]bool {
	done := make(map[string]bool, len(records))
	for _, r := range records {
		if r.Error == "" && r.Story != "" {
			done[r.File] = true
		}
	}
	return done
}

// Merge replaces earlier records with newer ones for the same file.
func Merge(previous, latest []Record) []Record {
	byFile := make(map[string]int, len(previous)+len(latest))
	var out []Record
	for _, group := range [][]Record{previous, latest} {
		for _, r := range group {
			if i, ok := byFile[r.File]; ok {
				out[i] = r
				continue
			}
			byFile[r.File] = len(out)
			out = append(out, r)
		}
	}
	return out
}

func saveYAML(path string, report Report) error {
	data, err := yaml.Marshal(&report)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func saveJSONL(path string, records []Record) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return w.Flush()
}

func loadJSONL(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var r Record
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return nil, fmt.Errorf("failed to parse line %d: %w", lineNum, err)
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return records, nil
}
