package build

// This file contains the build folder layout and the functions that store
// bitstreams and reports inside it.

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hwci/hwci/model"
	"github.com/hwci/hwci/persist"
)

const (
	// ReportFile is the build report inside a build folder.
	ReportFile = "report.json"
	// TestReportFile is the test report, relative to the build folder.
	TestReportFile = "test/report.json"

	sourceDir    = "source"
	folderLayout = "2006_01_02__15_04_05"
)

// ErrBitfileNotFound is returned when the clone contains no bitstream
// matching the configured pattern.
var ErrBitfileNotFound = errors.New("bitfile not found")

// createFolder creates a fresh build folder named after the repository and
// start time.
func createFolder(buildsDir, repoName string, start time.Time) (string, error) {
	base := filepath.Join(buildsDir, fmt.Sprintf("%s__%s", repoName, start.Format(folderLayout)))
	folder := base
	for i := 2; ; i++ {
		err := os.Mkdir(folder, 0755)
		if err == nil {
			return folder, nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			if err := os.MkdirAll(buildsDir, 0755); err != nil {
				return "", fmt.Errorf("failed to create builds directory: %w", err)
			}
			continue
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("failed to create build folder: %w", err)
		}
		folder = fmt.Sprintf("%s_%d", base, i)
	}
}

// findBitfile returns the first file below root matching pattern.
func findBitfile(root, pattern string) (string, error) {
	matches, err := doublestar.Glob(os.DirFS(root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return "", fmt.Errorf("invalid bitfile pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: no file matches %q", ErrBitfileNotFound, pattern)
	}
	sort.Strings(matches)
	return filepath.Join(root, filepath.FromSlash(matches[0])), nil
}

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	// Copy file permissions
	sourceInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.Chmod(dst, sourceInfo.Mode())
}

func writeTestReport(folder string, report model.TestReport) error {
	return persist.WriteJSON(filepath.Join(folder, filepath.FromSlash(TestReportFile)), report)
}

func writeBuildReport(folder string, report model.BuildReport) error {
	return persist.WriteJSON(filepath.Join(folder, ReportFile), report)
}
