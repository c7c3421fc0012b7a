package hwtest

// This file contains the test result variants. Every result carries an exit
// code (0 means pass) and renders itself for the report formats.

import (
	"fmt"
	"html"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
)

// Format selects a rendering of a result.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// Result is the outcome of one test case.
type Result interface {
	ExitCode() int
	Render(format Format) string
}

// Passing reports whether r has exit code 0.
func Passing(r Result) bool {
	return r.ExitCode() == 0
}

// MessageResult is a plain message.
type MessageResult struct {
	Code    int
	Message string
}

func NewMessageResult(code int, message string) *MessageResult {
	return &MessageResult{Code: code, Message: message}
}

func (r *MessageResult) ExitCode() int { return r.Code }

func (r *MessageResult) Render(format Format) string {
	if format == FormatHTML {
		return fmt.Sprintf(`<div class="message-test-result">%s</div>`, html.EscapeString(r.Message))
	}
	return r.Message
}

// DictResult is a set of key/value measurements.
type DictResult struct {
	Code    int
	Data    map[string]any
	Message string
}

func NewDictResult(code int, data map[string]any, message string) *DictResult {
	return &DictResult{Code: code, Data: data, Message: message}
}

func (r *DictResult) ExitCode() int { return r.Code }

func (r *DictResult) keys() []string {
	keys := make([]string, 0, len(r.Data))
	for k := range r.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *DictResult) Render(format Format) string {
	var b strings.Builder
	if r.Message != "" {
		switch format {
		case FormatHTML:
			fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(r.Message))
		default:
			fmt.Fprintf(&b, "%s\n\n", r.Message)
		}
	}
	switch format {
	case FormatMarkdown:
		for _, k := range r.keys() {
			fmt.Fprintf(&b, "- *%s*: %v\n", k, r.Data[k])
		}
	case FormatHTML:
		b.WriteString(`<div class="dict-test-result">` + "\n")
		for _, k := range r.keys() {
			fmt.Fprintf(&b, `<div class="row"><div class="key">%s</div><div class="value">%s</div></div>`+"\n",
				html.EscapeString(k), html.EscapeString(fmt.Sprint(r.Data[k])))
		}
		b.WriteString("</div>")
	default:
		for _, k := range r.keys() {
			fmt.Fprintf(&b, "%20s%20v\n", k, r.Data[k])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// ImageResult points at an image stored next to the report.
type ImageResult struct {
	Code        int
	Path        string
	Description string
	// URLBase is prepended to the file name in HTML output
	URLBase string
}

func NewImageResult(code int, path, description, urlBase string) *ImageResult {
	return &ImageResult{Code: code, Path: path, Description: description, URLBase: urlBase}
}

func (r *ImageResult) ExitCode() int { return r.Code }

func (r *ImageResult) Render(format Format) string {
	name := filepath.Base(r.Path)
	switch format {
	case FormatMarkdown:
		return fmt.Sprintf("[%s](%s)\n\n%s", name, r.Path, r.Description)
	case FormatHTML:
		url := strings.TrimRight(r.URLBase, "/") + "/" + name
		return fmt.Sprintf(`<div class="image-test-result"><img src="%s" alt="%s"><p>%s</p></div>`,
			html.EscapeString(url), html.EscapeString(name), html.EscapeString(r.Description))
	default:
		return fmt.Sprintf("Image %q (%s): %s", name, r.Path, r.Description)
	}
}

// Assertion is one checked condition.
type Assertion struct {
	OK      bool
	Message string
}

// AssertionResult collects assertions; it passes iff every assertion held.
type AssertionResult struct {
	Assertions []Assertion
	Detailed   bool
}

func NewAssertionResult(detailed bool) *AssertionResult {
	return &AssertionResult{Detailed: detailed}
}

// AssertEqual records whether expected and actual are deeply equal.
func (r *AssertionResult) AssertEqual(expected, actual any) bool {
	ok := reflect.DeepEqual(expected, actual)
	if ok {
		r.record(true, fmt.Sprintf("(+) EQUAL %q == %q", fmt.Sprint(expected), fmt.Sprint(actual)))
	} else {
		r.record(false, fmt.Sprintf("(-) NOT EQUAL %q != %q", fmt.Sprint(expected), fmt.Sprint(actual)))
	}
	return ok
}

// AssertTrue records cond with message.
func (r *AssertionResult) AssertTrue(cond bool, message string) bool {
	if cond {
		r.record(true, "(+) "+message)
	} else {
		r.record(false, "(-) "+message)
	}
	return cond
}

func (r *AssertionResult) record(ok bool, message string) {
	r.Assertions = append(r.Assertions, Assertion{OK: ok, Message: message})
}

// ErrorCount returns the number of failed assertions.
func (r *AssertionResult) ErrorCount() int {
	n := 0
	for _, a := range r.Assertions {
		if !a.OK {
			n++
		}
	}
	return n
}

func (r *AssertionResult) ExitCode() int {
	if r.ErrorCount() > 0 {
		return 1
	}
	return 0
}

func (r *AssertionResult) Render(format Format) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("%d assertions, %d failed", len(r.Assertions), r.ErrorCount()))
	for _, a := range r.Assertions {
		if a.OK && !r.Detailed {
			continue
		}
		switch format {
		case FormatMarkdown:
			lines = append(lines, "- "+a.Message)
		case FormatHTML:
			lines = append(lines, "<li>"+html.EscapeString(a.Message)+"</li>")
		default:
			lines = append(lines, a.Message)
		}
	}
	if format == FormatHTML {
		return `<div class="assertion-test-result"><p>` + lines[0] + "</p><ul>" + strings.Join(lines[1:], "") + "</ul></div>"
	}
	return strings.Join(lines, "\n")
}

// CombinedResult aggregates child results; it fails if any child fails.
type CombinedResult struct {
	Results []Result
}

func NewCombinedResult(results ...Result) *CombinedResult {
	return &CombinedResult{Results: results}
}

func (r *CombinedResult) ExitCode() int {
	for _, child := range r.Results {
		if child.ExitCode() != 0 {
			return 1
		}
	}
	return 0
}

func (r *CombinedResult) Render(format Format) string {
	parts := make([]string, 0, len(r.Results))
	for _, child := range r.Results {
		parts = append(parts, child.Render(format))
	}
	return strings.Join(parts, "\n\n")
}
