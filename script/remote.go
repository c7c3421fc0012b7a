package script

// This file contains the remote script class, which runs a command on the
// host wired to the hardware over ssh.

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Remote runs a command on another host over ssh.
type Remote struct {
	logger       zerolog.Logger
	name         string
	def          Definition
	sshBinary    string
	extraOptions []string
}

// RemoteOption configures a Remote script.
type RemoteOption func(*Remote)

// WithSSHBinary replaces the ssh executable, mainly for tests.
func WithSSHBinary(path string) RemoteOption {
	return func(r *Remote) {
		r.sshBinary = path
	}
}

// WithExtraOptions adds extra "-o" options to the ssh invocation.
func WithExtraOptions(options ...string) RemoteOption {
	return func(r *Remote) {
		r.extraOptions = append(r.extraOptions, options...)
	}
}

// NewRemote creates a remote script.
func NewRemote(logger zerolog.Logger, name string, def Definition, opts ...RemoteOption) *Remote {
	def.Class = ClassRemote
	r := &Remote{
		logger:    logger,
		name:      name,
		def:       def,
		sshBinary: "ssh",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (s *Remote) Name() string {
	return s.name
}

// remoteCommand quotes the command so the remote shell sees the same argv.
func (s *Remote) remoteCommand(args []string) string {
	argv := make([]string, 0, len(s.def.Args)+len(args))
	argv = append(argv, s.def.Args...)
	argv = append(argv, args...)
	return quoteCommand(s.def.Path, argv)
}

func (s *Remote) buildSSHArgs(command string) []string {
	args := []string{"-o", "BatchMode=yes"}
	for _, opt := range s.extraOptions {
		args = append(args, "-o", opt)
	}
	return append(args, s.def.Host, command)
}

func (s *Remote) Invoke(ctx context.Context, args []string, timeout time.Duration) (Invocation, error) {
	command := s.remoteCommand(args)
	s.logger.Debug().
		Str("host", s.def.Host).
		Str("command", command).
		Msg("Running remote script")
	return execute(ctx, s.logger, s.name, "", s.sshBinary, s.buildSSHArgs(command), timeout)
}

func (s *Remote) Describe() Metadata {
	return Metadata{
		Name:        s.name,
		Class:       ClassRemote,
		Path:        s.def.Path,
		Args:        s.def.Args,
		Host:        s.def.Host,
		Description: s.def.Description,
		Author:      s.def.Author,
		Command:     fmt.Sprintf("%s %s %s", s.sshBinary, s.def.Host, s.remoteCommand(nil)),
	}
}
