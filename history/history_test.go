package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hwci/hwci/model"
	"github.com/hwci/hwci/persist"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBuild(t *testing.T, dir string, report model.BuildReport) {
	t.Helper()
	require.NoError(t, persist.WriteJSON(filepath.Join(dir, ReportFile), report))
}

func TestLoadEntries(t *testing.T) {
	buildsDir := t.TempDir()
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	older := model.BuildReport{RequestID: uuid.New(), Start: start, Status: model.BuildStatusFailure}
	newer := model.BuildReport{
		RequestID:     uuid.New(),
		Start:         start.Add(time.Hour),
		Status:        model.BuildStatusSuccess,
		TestReportRef: "test/report.json",
	}
	olderDir := filepath.Join(buildsDir, "fpga__2026_05_01__10_00_00")
	newerDir := filepath.Join(buildsDir, "fpga__2026_05_01__11_00_00")
	writeBuild(t, olderDir, older)
	writeBuild(t, newerDir, newer)
	require.NoError(t, persist.WriteJSON(filepath.Join(newerDir, "test", "report.json"), model.TestReport{Name: "smoke", TestCount: 3}))

	// a clone with its own report.json is not a build
	writeBuild(t, filepath.Join(olderDir, "source"), model.BuildReport{RequestID: uuid.New()})

	broken := filepath.Join(buildsDir, "broken")
	require.NoError(t, os.MkdirAll(broken, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(broken, ReportFile), []byte("{"), 0o644))

	entries, err := LoadEntries(zerolog.Nop(), buildsDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, newer.RequestID, entries[0].Report.RequestID)
	assert.Equal(t, newerDir, entries[0].FullPath)
	assert.Equal(t, older.RequestID, entries[1].Report.RequestID)

	testReport, found, err := entries[0].TestReport()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 3, testReport.TestCount)

	_, found, err = entries[1].TestReport()
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLoadEntries_MissingDir(t *testing.T) {
	entries, err := LoadEntries(zerolog.Nop(), filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFind(t *testing.T) {
	a := uuid.MustParse("3f2a0000-0000-4000-8000-000000000001")
	b := uuid.MustParse("3f2b0000-0000-4000-8000-000000000002")
	entries := []Entry{{Report: model.BuildReport{RequestID: a}}, {Report: model.BuildReport{RequestID: b}}}

	got, err := Find(entries, "3f2b")
	require.NoError(t, err)
	assert.Equal(t, b, got.Report.RequestID)

	_, err = Find(entries, "3f2")
	require.ErrorContains(t, err, "ambiguous")

	_, err = Find(entries, "ffff")
	require.Error(t, err)
}
