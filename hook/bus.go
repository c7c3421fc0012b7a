// Package hook provides the ordered action/filter callback bus which lets
// plugins observe or rewrite data at fixed points of the build and test
// pipelines.
package hook

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultPriority is used by callers which have no ordering preference.
const DefaultPriority = 10

// Dispatch points fired by the pipelines.
const (
	PreBuild    = "pre_build"
	PostBuild   = "post_build"
	PreTestRun  = "pre_test_run"
	PostTestRun = "post_test_run"
	PreTest     = "pre_test"
	PostTest    = "post_test"

	LoadTests   = "load_tests"
	CameraClass = "camera_class"
	BuildReport = "build_report"
)

// ErrFilterType is returned when a filter callback replaces the subject with
// a value of a different type.
var ErrFilterType = errors.New("filter returned a value of the wrong type")

// Args is the keyword argument bag handed to every callback.
type Args map[string]any

// ActionFunc is invoked for side effects only.
type ActionFunc func(ctx context.Context, args Args) error

// FilterFunc receives the current subject and returns its replacement.
type FilterFunc func(ctx context.Context, subject any, args Args) (any, error)

type callback struct {
	priority int
	action   ActionFunc
	filter   FilterFunc
}

// Bus holds the registered callbacks. Registration happens at process start;
// dispatch afterwards only reads.
type Bus struct {
	logger zerolog.Logger

	mu      sync.RWMutex
	actions map[string][]callback
	filters map[string][]callback
}

// NewBus creates an empty bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		logger:  logger,
		actions: make(map[string][]callback),
		filters: make(map[string][]callback),
	}
}

// PreTestFor returns the dynamically named hook fired before one specific test.
func PreTestFor(testName string) string {
	return fmt.Sprintf("%s_%s", PreTest, testName)
}

// RegisterAction appends an action callback for name. Callbacks run in
// ascending priority, ties in registration order.
func (b *Bus) RegisterAction(name string, fn ActionFunc, priority int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.actions[name] = insert(b.actions[name], callback{priority: priority, action: fn})
	b.logger.Debug().Str("hook", name).Int("priority", priority).Msg("Registered action")
}

// RegisterFilter appends a filter callback for name.
func (b *Bus) RegisterFilter(name string, fn FilterFunc, priority int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filters[name] = insert(b.filters[name], callback{priority: priority, filter: fn})
	b.logger.Debug().Str("hook", name).Int("priority", priority).Msg("Registered filter")
}

func insert(list []callback, cb callback) []callback {
	list = append(list, cb)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].priority < list[j].priority
	})
	return list
}

// DoAction runs every action registered for name. The first callback error
// stops dispatch and is returned to the caller unchanged.
func (b *Bus) DoAction(ctx context.Context, name string, args Args) error {
	b.mu.RLock()
	callbacks := b.actions[name]
	b.mu.RUnlock()

	for _, cb := range callbacks {
		if err := cb.action(ctx, args); err != nil {
			return err
		}
	}
	return nil
}

// ApplyFilter folds subject through every filter registered for name and
// returns the final value. With no filters registered, subject comes back
// unchanged.
func (b *Bus) ApplyFilter(ctx context.Context, name string, subject any, args Args) (any, error) {
	b.mu.RLock()
	callbacks := b.filters[name]
	b.mu.RUnlock()

	value := subject
	for _, cb := range callbacks {
		next, err := cb.filter(ctx, value, args)
		if err != nil {
			return nil, err
		}
		value = next
	}
	return value, nil
}

// Filter is the typed form of ApplyFilter.
func Filter[T any](ctx context.Context, b *Bus, name string, subject T, args Args) (T, error) {
	value, err := b.ApplyFilter(ctx, name, subject, args)
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := value.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: hook %s returned %T", ErrFilterType, name, value)
	}
	return typed, nil
}

// Len reports how many callbacks of either kind are registered for name.
func (b *Bus) Len(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.actions[name]) + len(b.filters[name])
}

// Names returns every hook name which has at least one callback, sorted.
func (b *Bus) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	seen := make(map[string]struct{}, len(b.actions)+len(b.filters))
	for name := range b.actions {
		seen[name] = struct{}{}
	}
	for name := range b.filters {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
