package model

import "time"

// TestReport is the value handed to report rendering after a test run.
type TestReport struct {
	Name     string    `json:"name"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Platform string    `json:"platform"`
	// Session class the run used
	Camera string `json:"camera"`
	// Set-up error of the hardware session, if any
	SetupError string `json:"setup_error,omitempty"`
	// Results in the order the tests were requested
	Results         []TestOutcome `json:"results"`
	TestCount       int           `json:"test_count"`
	SuccessfulCount int           `json:"successful_count"`
	ErrorCount      int           `json:"error_count"`
	SuccessRatio    float64       `json:"success_ratio"`
}

// TestOutcome is the rendered result of one test case.
type TestOutcome struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	ExitCode    int    `json:"exit_code"`
	Passing     bool   `json:"passing"`
	Text        string `json:"text"`
	Markdown    string `json:"markdown"`
	HTML        string `json:"html"`
}

// Duration returns the wall time of the run.
func (r *TestReport) Duration() time.Duration {
	return r.End.Sub(r.Start)
}
