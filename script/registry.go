package script

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
)

// constructor builds one script from its definition.
type constructor func(logger zerolog.Logger, name string, def Definition, workspace *Workspace) (Script, error)

var classes = map[string]constructor{
	ClassLocal: func(logger zerolog.Logger, name string, def Definition, _ *Workspace) (Script, error) {
		if def.Path == "" {
			return nil, fmt.Errorf("script %s: path is required", name)
		}
		return NewLocal(logger, name, def), nil
	},
	ClassRepo: func(logger zerolog.Logger, name string, def Definition, workspace *Workspace) (Script, error) {
		if def.Path == "" {
			return nil, fmt.Errorf("script %s: path is required", name)
		}
		if filepath.IsAbs(def.Path) {
			return nil, fmt.Errorf("script %s: repository path must be relative, got %s", name, def.Path)
		}
		return NewRepo(logger, name, def, workspace), nil
	},
	ClassRemote: func(logger zerolog.Logger, name string, def Definition, _ *Workspace) (Script, error) {
		if def.Host == "" || def.Path == "" {
			return nil, fmt.Errorf("script %s: host and path are required", name)
		}
		return NewRemote(logger, name, def, WithExtraOptions(def.SSHOptions...)), nil
	},
}

// Classes returns the registered class names, sorted.
func Classes() []string {
	names := make([]string, 0, len(classes))
	for name := range classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry holds every configured script by name.
type Registry struct {
	logger    zerolog.Logger
	workspace *Workspace
	scripts   map[string]Script
}

// NewRegistry builds the scripts described by defs. A definition without a
// class is a local script.
func NewRegistry(logger zerolog.Logger, defs map[string]Definition, workspace *Workspace) (*Registry, error) {
	if workspace == nil {
		workspace = &Workspace{}
	}
	r := &Registry{
		logger:    logger,
		workspace: workspace,
		scripts:   make(map[string]Script, len(defs)),
	}
	for name, def := range defs {
		class := def.Class
		if class == "" {
			class = ClassLocal
		}
		build, ok := classes[class]
		if !ok {
			return nil, &UnknownClassError{Script: name, Class: class}
		}
		s, err := build(logger, name, def, workspace)
		if err != nil {
			return nil, err
		}
		r.scripts[name] = s
	}
	logger.Debug().Int("count", len(r.scripts)).Msg("Loaded scripts")
	return r, nil
}

// Add registers s, replacing any script with the same name.
func (r *Registry) Add(s Script) {
	r.scripts[s.Name()] = s
}

// Get returns the script called name.
func (r *Registry) Get(name string) (Script, error) {
	s, ok := r.scripts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return s, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.scripts[name]
	return ok
}

// Names returns the registered script names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scripts))
	for name := range r.scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Workspace returns the workspace repository scripts resolve against.
func (r *Registry) Workspace() *Workspace {
	return r.workspace
}
