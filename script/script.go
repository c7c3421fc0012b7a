// Package script wraps external hardware commands behind one capability set
// so the test and build pipelines never depend on how a command is located
// or executed.
package script

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Script classes known to the registry.
const (
	ClassLocal  = "local"
	ClassRepo   = "repo"
	ClassRemote = "remote"
)

var (
	// ErrNotFound is returned when a script name is not registered.
	ErrNotFound = errors.New("script not found")
	// ErrScriptMissing is returned when a repository script cannot be
	// located and no fallback is configured.
	ErrScriptMissing = errors.New("script file missing")
)

// Invocation is the outcome of one script run. A nonzero ExitCode is not an
// error of the invoker; callers decide what it means.
type Invocation struct {
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	Duration time.Duration `json:"duration"`
}

// Metadata describes a script for listings and reports.
type Metadata struct {
	Name        string   `json:"name"`
	Class       string   `json:"class"`
	Path        string   `json:"path"`
	Args        []string `json:"args,omitempty"`
	Host        string   `json:"host,omitempty"`
	Description string   `json:"description,omitempty"`
	Author      string   `json:"author,omitempty"`
	// Command is the shell-quoted command line that Invoke would run.
	Command string `json:"command"`
	// Fallback is true when a repository script currently resolves to its
	// fallback path instead of a file inside the clone.
	Fallback bool `json:"fallback"`
}

// Script is a named external command.
type Script interface {
	Name() string
	Invoke(ctx context.Context, args []string, timeout time.Duration) (Invocation, error)
	Describe() Metadata
}

// Definition is the configuration of one script.
type Definition struct {
	Class       string   `yaml:"class"`
	Path        string   `yaml:"path"`
	Args        []string `yaml:"args"`
	Host        string   `yaml:"host"`
	SSHOptions  []string `yaml:"ssh_options"`
	Fallback    string   `yaml:"fallback"`
	Description string   `yaml:"description"`
	Author      string   `yaml:"author"`
}

// TimeoutError reports a script which did not finish within its timeout.
type TimeoutError struct {
	Script  string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("script %s timed out after %s", e.Script, e.Timeout)
}

// FailureError reports a script which could not be run at all.
type FailureError struct {
	Script string
	Err    error
}

func (e *FailureError) Error() string {
	return fmt.Sprintf("script %s failed: %v", e.Script, e.Err)
}

func (e *FailureError) Unwrap() error {
	return e.Err
}

// UnknownClassError is returned for a definition naming an unregistered class.
type UnknownClassError struct {
	Script string
	Class  string
}

func (e *UnknownClassError) Error() string {
	return fmt.Sprintf("script %s: unknown class %q", e.Script, e.Class)
}
