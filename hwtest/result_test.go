package hwtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultExitCodes(t *testing.T) {
	failedAssertion := NewAssertionResult(false)
	failedAssertion.AssertEqual(1, 2)
	heldAssertion := NewAssertionResult(false)
	heldAssertion.AssertTrue(true, "fpga configured")

	tests := []struct {
		name   string
		result Result
		want   int
	}{
		{name: "message", result: NewMessageResult(3, "x"), want: 3},
		{name: "dict", result: NewDictResult(0, map[string]any{"fps": 60}, ""), want: 0},
		{name: "image", result: NewImageResult(0, "/tmp/frame.png", "frame", ""), want: 0},
		{name: "assertion failed", result: failedAssertion, want: 1},
		{name: "assertion held", result: heldAssertion, want: 0},
		{name: "combined all pass", result: NewCombinedResult(heldAssertion, NewMessageResult(0, "")), want: 0},
		{name: "combined one fails", result: NewCombinedResult(heldAssertion, NewMessageResult(4, "")), want: 1},
		{name: "combined empty", result: NewCombinedResult(), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.ExitCode())
		})
	}
}

func TestResultRender(t *testing.T) {
	dict := NewDictResult(0, map[string]any{"b": 2, "a": 1}, "")
	assert.Equal(t, "- *a*: 1\n- *b*: 2", dict.Render(FormatMarkdown))

	msg := NewMessageResult(0, "<ok>")
	assert.Equal(t, "<ok>", msg.Render(FormatText))
	assert.Equal(t, `<div class="message-test-result">&lt;ok&gt;</div>`, msg.Render(FormatHTML))

	img := NewImageResult(0, "/data/run/frame.png", "first frame", "/static/")
	assert.Equal(t, "[frame.png](/data/run/frame.png)\n\nfirst frame", img.Render(FormatMarkdown))
	assert.Contains(t, img.Render(FormatHTML), `src="/static/frame.png"`)

	a := NewAssertionResult(false)
	a.AssertTrue(true, "powered")
	a.AssertEqual("on", "off")
	assert.Equal(t, "2 assertions, 1 failed\n(-) NOT EQUAL \"on\" != \"off\"", a.Render(FormatText))
}
