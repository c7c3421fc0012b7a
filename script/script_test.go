package script

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestLocal_InvokeCapturesOutput(t *testing.T) {
	path := writeScript(t, t.TempDir(), "echo.sh", `echo "out $@"; echo err >&2; exit 3`)
	s := NewLocal(zerolog.Nop(), "echo", Definition{Path: path, Args: []string{"fixed"}})

	inv, err := s.Invoke(context.Background(), []string{"extra arg"}, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, inv.ExitCode)
	assert.Equal(t, "out fixed extra arg\n", inv.Stdout)
	assert.Equal(t, "err\n", inv.Stderr)
}

func TestLocal_Timeout(t *testing.T) {
	path := writeScript(t, t.TempDir(), "slow.sh", `exec sleep 5`)
	s := NewLocal(zerolog.Nop(), "slow", Definition{Path: path})

	_, err := s.Invoke(context.Background(), nil, 50*time.Millisecond)
	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "slow", timeoutErr.Script)
}

func TestLocal_MissingBinaryIsFailure(t *testing.T) {
	s := NewLocal(zerolog.Nop(), "missing", Definition{Path: filepath.Join(t.TempDir(), "nope")})

	_, err := s.Invoke(context.Background(), nil, time.Second)
	var failure *FailureError
	require.ErrorAs(t, err, &failure)
}

func TestLocal_Describe(t *testing.T) {
	s := NewLocal(zerolog.Nop(), "status", Definition{
		Path:        "/opt/scripts/status.sh",
		Args:        []string{"--all", "two words"},
		Description: "Reads out the status",
	})

	meta := s.Describe()
	assert.Equal(t, ClassLocal, meta.Class)
	assert.Equal(t, "/opt/scripts/status.sh --all 'two words'", meta.Command)
	assert.False(t, meta.Fallback)
}

func TestRepo_ResolvesInsideWorkspaceOrFallsBack(t *testing.T) {
	fallbackDir := t.TempDir()
	fallback := writeScript(t, fallbackDir, "fallback.sh", `echo fallback`)

	ws := &Workspace{}
	s := NewRepo(zerolog.Nop(), "reset", Definition{Path: "scripts/reset.sh", Fallback: fallback}, ws)

	inv, err := s.Invoke(context.Background(), nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "fallback\n", inv.Stdout)
	assert.True(t, s.Describe().Fallback)

	clone := t.TempDir()
	writeScript(t, clone, "scripts/reset.sh", `pwd -P`)
	ws.Bind(clone)

	inv, err = s.Invoke(context.Background(), nil, time.Second)
	require.NoError(t, err)
	resolved, err := filepath.EvalSymlinks(clone)
	require.NoError(t, err)
	assert.Equal(t, resolved+"\n", inv.Stdout)
	assert.False(t, s.Describe().Fallback)

	ws.Unbind()
	assert.True(t, s.Describe().Fallback)
}

func TestRepo_NoFallback(t *testing.T) {
	s := NewRepo(zerolog.Nop(), "reset", Definition{Path: "reset.sh"}, &Workspace{})

	_, err := s.Invoke(context.Background(), nil, time.Second)
	require.ErrorIs(t, err, ErrScriptMissing)
}

func TestRemote_QuotesCommand(t *testing.T) {
	// Stand-in for ssh which prints the argv it receives.
	fakeSSH := writeScript(t, t.TempDir(), "ssh", `for a in "$@"; do echo "$a"; done`)
	s := NewRemote(zerolog.Nop(), "frame", Definition{Host: "rig@camera", Path: "/opt/frame.sh"}, WithSSHBinary(fakeSSH))

	inv, err := s.Invoke(context.Background(), []string{"a b"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "-o\nBatchMode=yes\nrig@camera\n/opt/frame.sh 'a b'\n", inv.Stdout)

	s = NewRemote(zerolog.Nop(), "frame", Definition{Host: "rig@camera", Path: "/opt/frame.sh"},
		WithSSHBinary(fakeSSH), WithExtraOptions("ConnectTimeout=5"))
	inv, err = s.Invoke(context.Background(), nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "-o\nBatchMode=yes\n-o\nConnectTimeout=5\nrig@camera\n/opt/frame.sh\n", inv.Stdout)
}

func TestNewRegistry(t *testing.T) {
	defs := map[string]Definition{
		"status": {Path: "/bin/true"},
		"flash":  {Class: ClassRepo, Path: "tools/flash.sh"},
		"frame":  {Class: ClassRemote, Host: "rig", Path: "/opt/frame.sh"},
	}
	r, err := NewRegistry(zerolog.Nop(), defs, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"flash", "frame", "status"}, r.Names())
	assert.True(t, r.Has("flash"))

	s, err := r.Get("status")
	require.NoError(t, err)
	assert.Equal(t, ClassLocal, s.Describe().Class)

	_, err = r.Get("nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNewRegistry_Errors(t *testing.T) {
	tests := []struct {
		name string
		defs map[string]Definition
		want func(error) bool
	}{
		{
			name: "unknown class",
			defs: map[string]Definition{"x": {Class: "eval", Path: "x"}},
			want: func(err error) bool {
				var e *UnknownClassError
				return errors.As(err, &e) && e.Class == "eval"
			},
		},
		{
			name: "absolute repo path",
			defs: map[string]Definition{"x": {Class: ClassRepo, Path: "/abs/x.sh"}},
			want: func(err error) bool { return err != nil },
		},
		{
			name: "remote without host",
			defs: map[string]Definition{"x": {Class: ClassRemote, Path: "x.sh"}},
			want: func(err error) bool { return err != nil },
		},
		{
			name: "local without path",
			defs: map[string]Definition{"x": {}},
			want: func(err error) bool { return err != nil },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(zerolog.Nop(), tt.defs, nil)
			if !tt.want(err) {
				t.Errorf("NewRegistry() error = %v", err)
			}
		})
	}
}
