package hook

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus() *Bus {
	return NewBus(zerolog.Nop())
}

func TestApplyFilter_NoCallbacksReturnsSubject(t *testing.T) {
	bus := newTestBus()
	ctx := context.Background()

	for _, subject := range []any{nil, 0, "value", []string{"a", "b"}, map[string]int{"x": 1}} {
		got, err := bus.ApplyFilter(ctx, "unregistered", subject, nil)
		require.NoError(t, err)
		assert.Equal(t, subject, got)
	}
}

func TestApplyFilter_AscendingPriority(t *testing.T) {
	bus := newTestBus()
	ctx := context.Background()

	bus.RegisterFilter("value", func(_ context.Context, subject any, _ Args) (any, error) {
		return subject.(string) + "f", nil
	}, 10)
	bus.RegisterFilter("value", func(_ context.Context, subject any, _ Args) (any, error) {
		return subject.(string) + "g", nil
	}, 5)

	got, err := bus.ApplyFilter(ctx, "value", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "gf", got)
}

func TestDoAction_TiesKeepRegistrationOrder(t *testing.T) {
	bus := newTestBus()
	var calls []string

	record := func(name string) ActionFunc {
		return func(context.Context, Args) error {
			calls = append(calls, name)
			return nil
		}
	}
	bus.RegisterAction("event", record("first"), DefaultPriority)
	bus.RegisterAction("event", record("early"), 1)
	bus.RegisterAction("event", record("second"), DefaultPriority)
	bus.RegisterAction("event", record("third"), DefaultPriority)

	require.NoError(t, bus.DoAction(context.Background(), "event", nil))
	assert.Equal(t, []string{"early", "first", "second", "third"}, calls)
}

func TestDoAction_DuplicateRegistrationRunsTwice(t *testing.T) {
	bus := newTestBus()
	count := 0
	fn := func(context.Context, Args) error {
		count++
		return nil
	}
	bus.RegisterAction("event", fn, DefaultPriority)
	bus.RegisterAction("event", fn, DefaultPriority)

	require.NoError(t, bus.DoAction(context.Background(), "event", nil))
	assert.Equal(t, 2, count)
}

func TestDoAction_ErrorPropagatesAndStops(t *testing.T) {
	bus := newTestBus()
	boom := errors.New("boom")
	reached := false

	bus.RegisterAction("event", func(context.Context, Args) error { return boom }, 1)
	bus.RegisterAction("event", func(context.Context, Args) error {
		reached = true
		return nil
	}, 2)

	err := bus.DoAction(context.Background(), "event", nil)
	require.ErrorIs(t, err, boom)
	assert.False(t, reached)
}

func TestDoAction_PassesArgs(t *testing.T) {
	bus := newTestBus()
	var got Args
	bus.RegisterAction(PreTest, func(_ context.Context, args Args) error {
		got = args
		return nil
	}, DefaultPriority)

	require.NoError(t, bus.DoAction(context.Background(), PreTest, Args{"name": "mock"}))
	assert.Equal(t, "mock", got["name"])
}

func TestFilter_Typed(t *testing.T) {
	bus := newTestBus()
	ctx := context.Background()

	bus.RegisterFilter("count", func(_ context.Context, subject any, args Args) (any, error) {
		return subject.(int) + args["step"].(int), nil
	}, DefaultPriority)

	got, err := Filter(ctx, bus, "count", 1, Args{"step": 2})
	require.NoError(t, err)
	assert.Equal(t, 3, got)

	bus.RegisterFilter("count", func(context.Context, any, Args) (any, error) {
		return "not an int", nil
	}, DefaultPriority)

	_, err = Filter(ctx, bus, "count", 1, Args{"step": 2})
	require.ErrorIs(t, err, ErrFilterType)
}

func TestNamesAndLen(t *testing.T) {
	bus := newTestBus()
	bus.RegisterAction(PostBuild, func(context.Context, Args) error { return nil }, DefaultPriority)
	bus.RegisterFilter(LoadTests, func(_ context.Context, s any, _ Args) (any, error) { return s, nil }, DefaultPriority)
	bus.RegisterFilter(LoadTests, func(_ context.Context, s any, _ Args) (any, error) { return s, nil }, DefaultPriority)

	assert.Equal(t, []string{LoadTests, PostBuild}, bus.Names())
	assert.Equal(t, 2, bus.Len(LoadTests))
	assert.Equal(t, 0, bus.Len(PreBuild))
	assert.Equal(t, "pre_test_mock", PreTestFor("mock"))
}
