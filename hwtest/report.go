package hwtest

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/hwci/hwci/model"
)

// ErrIncomplete is returned when a report is requested for an unfinished run.
var ErrIncomplete = errors.New("test run has not completed")

// NewReport turns a completed run into its report value.
func NewReport(tc *Context) (model.TestReport, error) {
	if !tc.Completed() {
		return model.TestReport{}, fmt.Errorf("failed to build report for %s: %w", tc.Name, ErrIncomplete)
	}

	report := model.TestReport{
		Name:            tc.Name,
		Start:           tc.Start,
		End:             tc.End,
		Platform:        runtime.GOOS + "/" + runtime.GOARCH,
		Camera:          tc.Camera,
		TestCount:       tc.TestCount(),
		SuccessfulCount: tc.SuccessfulCount(),
		ErrorCount:      tc.TestCount() - tc.SuccessfulCount(),
		SuccessRatio:    tc.SuccessRatio(),
	}
	if tc.SetupError != nil {
		report.SetupError = tc.SetupError.Error()
	}
	for _, e := range tc.Results.Entries() {
		report.Results = append(report.Results, model.TestOutcome{
			Name:        e.Name,
			Description: tc.Descriptions[e.Name],
			ExitCode:    e.Result.ExitCode(),
			Passing:     Passing(e.Result),
			Text:        e.Result.Render(FormatText),
			Markdown:    e.Result.Render(FormatMarkdown),
			HTML:        e.Result.Render(FormatHTML),
		})
	}
	return report, nil
}
