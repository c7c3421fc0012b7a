package hwtest

import (
	"time"
)

// Entry is one named result.
type Entry struct {
	Name   string
	Result Result
}

// Results keeps test results in the order they were first stored. Storing
// a name a second time replaces the result but keeps its original position.
type Results struct {
	order  []string
	values map[string]Result
}

func newResults() *Results {
	return &Results{values: make(map[string]Result)}
}

// Set stores r under name and reports whether an earlier result was replaced.
func (r *Results) Set(name string, result Result) bool {
	_, replaced := r.values[name]
	if !replaced {
		r.order = append(r.order, name)
	}
	r.values[name] = result
	return replaced
}

// Get returns the result stored under name.
func (r *Results) Get(name string) (Result, bool) {
	result, ok := r.values[name]
	return result, ok
}

// Len returns the number of stored results.
func (r *Results) Len() int {
	return len(r.order)
}

// Names returns the result names in order.
func (r *Results) Names() []string {
	return append([]string(nil), r.order...)
}

// Entries returns the results in order.
func (r *Results) Entries() []Entry {
	entries := make([]Entry, 0, len(r.order))
	for _, name := range r.order {
		entries = append(entries, Entry{Name: name, Result: r.values[name]})
	}
	return entries
}

// Context is the record of one test run. The pipeline owns it until End is
// set.
type Context struct {
	Name         string
	Start        time.Time
	End          time.Time
	Results      *Results
	Descriptions map[string]string
	// Camera is the session class used for the run
	Camera string
	// SetupError is set when the hardware session failed to set up
	SetupError error
	Dir        string
}

// NewContext creates an empty context for a run called name.
func NewContext(name, dir string) *Context {
	return &Context{
		Name:         name,
		Results:      newResults(),
		Descriptions: make(map[string]string),
		Dir:          dir,
	}
}

// Completed reports whether the run has finished.
func (c *Context) Completed() bool {
	return !c.Start.IsZero() && !c.End.IsZero()
}

// TestCount returns the number of results.
func (c *Context) TestCount() int {
	return c.Results.Len()
}

// SuccessfulCount returns the number of passing results.
func (c *Context) SuccessfulCount() int {
	n := 0
	for _, e := range c.Results.Entries() {
		if Passing(e.Result) {
			n++
		}
	}
	return n
}

// SuccessRatio returns SuccessfulCount/TestCount, or 0 for an empty run.
func (c *Context) SuccessRatio() float64 {
	count := c.TestCount()
	if count == 0 {
		return 0
	}
	return float64(c.SuccessfulCount()) / float64(count)
}
