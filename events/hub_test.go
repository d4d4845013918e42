package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmit_NoListeners(t *testing.T) {
	h := NewHub()
	out, err := h.Emit(context.Background(), "noop", 42)
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}

func TestRegister_SingleListener(t *testing.T) {
	h := NewHub()
	called := false
	h.Register(ProfileLevelUp, 0, "l1", func(ctx context.Context, event string, data interface{}) (interface{}, error) {
		called = true
		assert.Equal(t, ProfileLevelUp, event)
		return data, nil
	})
	_, err := h.Emit(context.Background(), ProfileLevelUp, LevelUp{ProfileID: 1, Level: 2})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestEmit_DataPassThrough(t *testing.T) {
	h := NewHub()
	h.Register("ev", 0, "double", func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		return data.(int) * 2, nil
	})
	h.Register("ev", 1, "addTen", func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		return data.(int) + 10, nil
	})
	out, err := h.Emit(context.Background(), "ev", 5)
	require.NoError(t, err)
	assert.Equal(t, 20, out) // (5*2)+10
}

func TestEmit_PriorityOrder(t *testing.T) {
	h := NewHub()
	var order []int
	h.Register("ev", 10, "high", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		order = append(order, 10)
		return d, nil
	})
	h.Register("ev", 1, "low", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		order = append(order, 1)
		return d, nil
	})
	h.Register("ev", 5, "mid", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		order = append(order, 5)
		return d, nil
	})
	h.Emit(context.Background(), "ev", nil)
	assert.Equal(t, []int{1, 5, 10}, order)
}

func TestEmit_ErrInterrupt(t *testing.T) {
	h := NewHub()
	var secondCalled bool
	h.Register("ev", 0, "stopper", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		return d, ErrInterrupt
	})
	h.Register("ev", 1, "should_not_run", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		secondCalled = true
		return d, nil
	})
	_, err := h.Emit(context.Background(), "ev", nil)
	assert.True(t, errors.Is(err, ErrInterrupt))
	assert.False(t, secondCalled)
}

func TestUnregister_ByName(t *testing.T) {
	h := NewHub()
	var called bool
	h.Register("ev", 0, "l1", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		called = true
		return d, nil
	})
	h.Unregister("ev", "l1")
	h.Emit(context.Background(), "ev", nil)
	assert.False(t, called)
}

func TestUnregister_OnlyNamed(t *testing.T) {
	h := NewHub()
	var c1, c2 bool
	h.Register("ev", 0, "l1", func(_ context.Context, _ string, d interface{}) (interface{}, error) { c1 = true; return d, nil })
	h.Register("ev", 1, "l2", func(_ context.Context, _ string, d interface{}) (interface{}, error) { c2 = true; return d, nil })
	h.Unregister("ev", "l1")
	h.Emit(context.Background(), "ev", nil)
	assert.False(t, c1)
	assert.True(t, c2)
}

func TestUnregisterAll(t *testing.T) {
	h := NewHub()
	var c1, c2 bool
	h.Register(GuildCreated, 0, "broadcaster", func(_ context.Context, _ string, d interface{}) (interface{}, error) { c1 = true; return d, nil })
	h.Register(GuildLeft, 0, "broadcaster", func(_ context.Context, _ string, d interface{}) (interface{}, error) { c2 = true; return d, nil })
	h.UnregisterAll("broadcaster")
	h.Emit(context.Background(), GuildCreated, nil)
	h.Emit(context.Background(), GuildLeft, nil)
	assert.False(t, c1)
	assert.False(t, c2)
}

func TestEmit_NonInterruptError_Continues(t *testing.T) {
	h := NewHub()
	var secondCalled bool
	h.Register("ev", 0, "err", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		return d, errors.New("some error")
	})
	h.Register("ev", 1, "second", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		secondCalled = true
		return d, nil
	})
	_, err := h.Emit(context.Background(), "ev", nil)
	assert.NoError(t, err) // last listener returned nil
	assert.True(t, secondCalled)
}
