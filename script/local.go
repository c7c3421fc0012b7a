package script

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Local runs an executable at a fixed path with fixed leading arguments.
type Local struct {
	logger zerolog.Logger
	name   string
	def    Definition
}

// NewLocal creates a local script.
func NewLocal(logger zerolog.Logger, name string, def Definition) *Local {
	def.Class = ClassLocal
	return &Local{logger: logger, name: name, def: def}
}

func (s *Local) Name() string {
	return s.name
}

func (s *Local) Invoke(ctx context.Context, args []string, timeout time.Duration) (Invocation, error) {
	return execute(ctx, s.logger, s.name, "", s.def.Path, s.argv(args), timeout)
}

func (s *Local) argv(args []string) []string {
	argv := make([]string, 0, len(s.def.Args)+len(args))
	argv = append(argv, s.def.Args...)
	return append(argv, args...)
}

func (s *Local) Describe() Metadata {
	return Metadata{
		Name:        s.name,
		Class:       ClassLocal,
		Path:        s.def.Path,
		Args:        s.def.Args,
		Description: s.def.Description,
		Author:      s.def.Author,
		Command:     quoteCommand(s.def.Path, s.def.Args),
	}
}
