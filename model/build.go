package model

import (
	"time"

	"github.com/google/uuid"
)

// BuildStatus is the outcome of one build attempt.
type BuildStatus string

const (
	BuildStatusSuccess     BuildStatus = "success"
	BuildStatusFailure     BuildStatus = "failure"
	BuildStatusInterrupted BuildStatus = "interrupted"
)

// HeadCommit asks the cloner for the head of the requested branch.
const HeadCommit = "FETCH_HEAD"

// PushEvent is what the webhook listener hands over after normalizing a
// push notification.
type PushEvent struct {
	Repository string `json:"repository"`
	Branch     string `json:"branch"`
	Commit     string `json:"commit"`
}

// BuildRequest asks the worker to build one commit and test it. It is never
// modified after it has been enqueued.
type BuildRequest struct {
	// Unique ID of the request
	ID uuid.UUID `json:"id"`
	// Time the request entered the queue
	EnqueuedAt time.Time `json:"enqueued_at"`
	// Clone URL of the source repository
	RepositoryURL string `json:"repository_url"`
	// Branch to clone
	Branch string `json:"branch"`
	// Commit to check out; empty or FETCH_HEAD means the branch head
	CommitRef string `json:"commit_ref,omitempty"`
	// Suite (or single test) to run once the bitstream is flashed
	TestSuite string `json:"test_suite"`
}

// NewBuildRequest creates a request with a fresh ID.
func NewBuildRequest(repositoryURL, branch, commitRef, testSuite string) BuildRequest {
	return BuildRequest{
		ID:            uuid.New(),
		EnqueuedAt:    time.Now(),
		RepositoryURL: repositoryURL,
		Branch:        branch,
		CommitRef:     commitRef,
		TestSuite:     testSuite,
	}
}

// FromPush converts a push event into a build request for testSuite.
func FromPush(event PushEvent, testSuite string) BuildRequest {
	return NewBuildRequest(event.Repository, event.Branch, event.Commit, testSuite)
}

// BuildReport is written once a build attempt has terminated.
type BuildReport struct {
	// ID of the build request this report belongs to
	RequestID uuid.UUID `json:"request_id"`
	Status    BuildStatus `json:"status"`
	// Error message when Status is not success
	Error string    `json:"error,omitempty"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	// Clone URL of the repository
	Repository string `json:"repository"`
	// Repository name derived from the URL
	RepositoryName string `json:"repository_name"`
	// Resolved commit hash, or the requested ref when the clone failed
	Commit    string `json:"commit"`
	Branch    string `json:"branch"`
	TestSuite string `json:"test_suite"`
	// Bitstream copied into the build folder
	BitfilePath string `json:"bitfile_path,omitempty"`
	// Path of the test report, relative to the build folder
	TestReportRef string `json:"test_report_ref,omitempty"`
	// Build folder, absolute
	Folder string `json:"folder"`
	// Summary of the test report, if one was produced
	TestCount    int     `json:"test_count"`
	SuccessRatio float64 `json:"success_ratio"`
}

// Duration returns the wall time of the build.
func (r *BuildReport) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Succeeded reports whether the build completed without error.
func (r *BuildReport) Succeeded() bool {
	return r.Status == BuildStatusSuccess
}
