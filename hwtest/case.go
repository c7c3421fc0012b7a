package hwtest

import (
	"context"
	"fmt"
	"sort"

	"github.com/hwci/hwci/camera"
	"github.com/hwci/hwci/script"
	"github.com/rs/zerolog"
)

// Env is what a test case gets to work with during one run.
type Env struct {
	Session camera.Session
	Scripts *script.Registry
	Logger  zerolog.Logger
	// Dir is the run folder where cases may store artifacts
	Dir string
}

// Case is one named hardware test.
type Case interface {
	Name() string
	Description() string
	Run(ctx context.Context, env *Env) (Result, error)
}

// RunFunc is the body of a case built with NewCase.
type RunFunc func(ctx context.Context, env *Env) (Result, error)

type funcCase struct {
	name        string
	description string
	run         RunFunc
}

// NewCase builds a Case from a function.
func NewCase(name, description string, run RunFunc) Case {
	return &funcCase{name: name, description: description, run: run}
}

func (c *funcCase) Name() string        { return c.name }
func (c *funcCase) Description() string { return c.description }

func (c *funcCase) Run(ctx context.Context, env *Env) (Result, error) {
	return c.run(ctx, env)
}

// NotFoundError is returned for a test name without a case.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("test not found: %s", e.Name)
}

// Catalog maps test names to cases. It is assembled at startup and passed
// through the load_tests filter once.
type Catalog struct {
	cases map[string]Case
}

// NewCatalog creates a catalog holding cases.
func NewCatalog(cases ...Case) *Catalog {
	c := &Catalog{cases: make(map[string]Case, len(cases))}
	for _, tc := range cases {
		c.Register(tc)
	}
	return c
}

// Register adds tc, replacing any case with the same name.
func (c *Catalog) Register(tc Case) {
	c.cases[tc.Name()] = tc
}

// Lookup returns the case called name.
func (c *Catalog) Lookup(name string) (Case, error) {
	tc, ok := c.cases[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return tc, nil
}

// Names returns the registered test names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.cases))
	for name := range c.cases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered cases.
func (c *Catalog) Len() int {
	return len(c.cases)
}

// Suites maps suite names to ordered test names.
type Suites map[string][]string

// Resolve returns the tests of the suite called name. A name which is not a
// suite is taken as a single test name.
func (s Suites) Resolve(name string) []string {
	if tests, ok := s[name]; ok {
		return append([]string(nil), tests...)
	}
	return []string{name}
}
