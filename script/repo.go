package script

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Workspace points at the repository clone of the build currently running.
// The build orchestrator binds it after cloning and unbinds it on cleanup.
type Workspace struct {
	mu  sync.RWMutex
	dir string
}

// Bind sets the clone directory.
func (w *Workspace) Bind(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dir = dir
}

// Unbind clears the clone directory.
func (w *Workspace) Unbind() {
	w.Bind("")
}

// Dir returns the bound clone directory or "".
func (w *Workspace) Dir() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dir
}

// Repo runs a script shipped inside the cloned repository at a relative path.
// When no clone is bound, or the clone does not contain the file, the
// definition's fallback executable is used instead.
type Repo struct {
	logger    zerolog.Logger
	name      string
	def       Definition
	workspace *Workspace
}

// NewRepo creates a repository script resolved through workspace.
func NewRepo(logger zerolog.Logger, name string, def Definition, workspace *Workspace) *Repo {
	def.Class = ClassRepo
	return &Repo{logger: logger, name: name, def: def, workspace: workspace}
}

func (s *Repo) Name() string {
	return s.name
}

// resolve returns the executable path, the working directory and whether
// the fallback is in use.
func (s *Repo) resolve() (path, dir string, fallback bool) {
	if root := s.workspace.Dir(); root != "" {
		candidate := filepath.Join(root, s.def.Path)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, root, false
		}
	}
	return s.def.Fallback, "", true
}

func (s *Repo) Invoke(ctx context.Context, args []string, timeout time.Duration) (Invocation, error) {
	path, dir, fallback := s.resolve()
	if path == "" {
		return Invocation{ExitCode: -1}, &FailureError{Script: s.name, Err: ErrScriptMissing}
	}
	if fallback {
		s.logger.Warn().
			Str("script", s.name).
			Str("fallback", path).
			Msg("Repository script unavailable, using fallback")
	}
	argv := make([]string, 0, len(s.def.Args)+len(args))
	argv = append(argv, s.def.Args...)
	argv = append(argv, args...)
	return execute(ctx, s.logger, s.name, dir, path, argv, timeout)
}

func (s *Repo) Describe() Metadata {
	path, _, fallback := s.resolve()
	return Metadata{
		Name:        s.name,
		Class:       ClassRepo,
		Path:        s.def.Path,
		Args:        s.def.Args,
		Description: s.def.Description,
		Author:      s.def.Author,
		Command:     quoteCommand(path, s.def.Args),
		Fallback:    fallback,
	}
}
