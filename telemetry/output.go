// Package telemetry exports run summaries as CSV and tracks ingestion timing.
package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/tumorsnap/config"
)

// csvFile is one output table. The header is written with the first batch.
type csvFile struct {
	name          string
	f             *os.File
	headerWritten bool
}

func writeRecords[T any](cf *csvFile, records []T) error {
	if len(records) == 0 {
		return nil
	}
	if !cf.headerWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, cf.f); err != nil {
			return fmt.Errorf("writing %s: %w", cf.name, err)
		}
		cf.headerWritten = true
		return nil
	}
	// Subsequent writes skip headers
	if err := gocsv.MarshalWithoutHeaders(records, cf.f); err != nil {
		return fmt.Errorf("writing %s: %w", cf.name, err)
	}
	return nil
}

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir         string
	snapshots   *csvFile
	profiles    *csvFile
	environment *csvFile
	ingest      *csvFile
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	for _, t := range []struct {
		dst  **csvFile
		name string
	}{
		{&om.snapshots, "snapshots.csv"},
		{&om.profiles, "profiles.csv"},
		{&om.environment, "environment.csv"},
		{&om.ingest, "ingest.csv"},
	} {
		f, err := os.Create(filepath.Join(dir, t.name))
		if err != nil {
			om.Close()
			return nil, fmt.Errorf("creating %s: %w", t.name, err)
		}
		*t.dst = &csvFile{name: t.name, f: f}
	}
	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteSnapshot writes a snapshot summary to snapshots.csv.
func (om *OutputManager) WriteSnapshot(s SnapshotStats) error {
	if om == nil {
		return nil
	}
	return writeRecords(om.snapshots, []SnapshotStats{s})
}

// WriteProfiles writes radial profile rows to profiles.csv.
func (om *OutputManager) WriteProfiles(rows []ProfileRow) error {
	if om == nil {
		return nil
	}
	return writeRecords(om.profiles, rows)
}

// WriteEnvironment writes species totals to environment.csv.
func (om *OutputManager) WriteEnvironment(rows []EnvironmentRow) error {
	if om == nil {
		return nil
	}
	return writeRecords(om.environment, rows)
}

// WriteIngest writes the run summary to ingest.csv.
func (om *OutputManager) WriteIngest(s IngestSummary) error {
	if om == nil {
		return nil
	}
	return writeRecords(om.ingest, []IngestSummary{s})
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, cf := range []*csvFile{om.snapshots, om.profiles, om.environment, om.ingest} {
		if cf == nil {
			continue
		}
		if err := cf.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
