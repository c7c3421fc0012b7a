package history

// This file contains shared history utilities for loading build reports
// from the builds directory.

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hwci/hwci/model"
	"github.com/hwci/hwci/persist"
	"github.com/rs/zerolog"
)

// ReportFile is the file which marks a finished build folder.
const ReportFile = "report.json"

type Entry struct {
	Report   model.BuildReport
	FullPath string
}

// TestReport loads the test report referenced by the entry, if any.
func (e Entry) TestReport() (model.TestReport, bool, error) {
	if e.Report.TestReportRef == "" {
		return model.TestReport{}, false, nil
	}
	var report model.TestReport
	found, err := persist.ReadJSON(filepath.Join(e.FullPath, filepath.FromSlash(e.Report.TestReportRef)), &report)
	return report, found, err
}

// LoadEntries loads every build report below buildsDir, newest first. A
// missing directory yields no entries.
func LoadEntries(logger zerolog.Logger, buildsDir string) ([]Entry, error) {
	var entries []Entry

	if _, err := os.Stat(buildsDir); os.IsNotExist(err) {
		return nil, nil
	}

	err := filepath.WalkDir(buildsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		// clones are not build folders
		if d.Name() == "source" && path != buildsDir {
			return filepath.SkipDir
		}

		reportPath := filepath.Join(path, ReportFile)
		var report model.BuildReport
		found, err := persist.ReadJSON(reportPath, &report)
		if err != nil {
			logger.Warn().Err(err).Str("path", reportPath).Msg("Failed to parse report.json")
			return nil
		}
		if found {
			entries = append(entries, Entry{Report: report, FullPath: path})
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk builds directory: %w", err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Report.Start.After(entries[j].Report.Start)
	})
	return entries, nil
}

// Find returns the entry whose request ID starts with prefix.
func Find(entries []Entry, prefix string) (Entry, error) {
	var matches []Entry
	for _, e := range entries {
		if strings.HasPrefix(e.Report.RequestID.String(), prefix) {
			matches = append(matches, e)
		}
	}
	switch len(matches) {
	case 0:
		return Entry{}, fmt.Errorf("no build found with ID prefix: %s", prefix)
	case 1:
		return matches[0], nil
	default:
		return Entry{}, fmt.Errorf("ambiguous ID prefix %s matches %d builds", prefix, len(matches))
	}
}
