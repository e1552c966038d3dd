package state

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnv(size int) (*Env, *State, chan func(*State) error) {
	ctx, cancel := context.WithCancelCause(context.Background())
	dispatchChan := make(chan func(*State) error, size)
	env := &Env{
		DispatchChannel: dispatchChan,
		Context:         ctx,
		Cancel:          cancel,
	}
	return env, &State{Env: env}, dispatchChan
}

func TestDispatch(t *testing.T) {
	env, s, dispatchChan := testEnv(10)
	defer env.Cancel(nil)

	var called bool
	env.Dispatch(func(s *State) error {
		called = true
		return nil
	})

	select {
	case f := <-dispatchChan:
		require.NoError(t, f(s))
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timed out waiting for dispatched function")
	}
	assert.True(t, called)
}

func TestDispatch_AfterCancel(t *testing.T) {
	env, _, dispatchChan := testEnv(1)
	env.Cancel(errors.New("stopped"))
	env.Dispatch(func(s *State) error { return nil })
	assert.Len(t, dispatchChan, 0)
}

func TestTryDispatch(t *testing.T) {
	env, _, dispatchChan := testEnv(1)
	assert.True(t, env.TryDispatch(func(s *State) error { return nil }))
	assert.False(t, env.TryDispatch(func(s *State) error { return nil }))
	assert.Len(t, dispatchChan, 1)

	env.Cancel(errors.New("stopped"))
	<-dispatchChan
	assert.False(t, env.TryDispatch(func(s *State) error { return nil }))
}

func TestDispatchWait(t *testing.T) {
	env, s, dispatchChan := testEnv(1)
	defer env.Cancel(nil)
	go func() {
		f := <-dispatchChan
		_ = f(s)
	}()
	res, err := env.DispatchWait(func(s *State) (any, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, res)
}

func TestScheduleTask(t *testing.T) {
	env, s, dispatchChan := testEnv(10)
	defer env.Cancel(nil)

	var taskCalled bool
	env.ScheduleTask(func(s *State) error {
		taskCalled = true
		return nil
	}, 50*time.Millisecond)

	select {
	case f := <-dispatchChan:
		require.NoError(t, f(s))
	case <-time.After(500 * time.Millisecond):
		t.Fatal("No task was scheduled")
	}
	assert.True(t, taskCalled)
}

func TestScheduleTask_Stop(t *testing.T) {
	env, _, dispatchChan := testEnv(10)
	defer env.Cancel(nil)

	timer := env.ScheduleTask(func(s *State) error { return nil }, 50*time.Millisecond)
	assert.True(t, timer.Stop())
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, dispatchChan, 0)
}

func TestRepeatTask(t *testing.T) {
	env, s, dispatchChan := testEnv(10)

	var wg sync.WaitGroup
	wg.Add(3)
	var count int

	env.RepeatTask(func(s *State) error {
		count++
		wg.Done()
		if count >= 3 {
			env.Cancel(nil)
		}
		return nil
	}, 20*time.Millisecond)

loop:
	for {
		select {
		case f := <-dispatchChan:
			require.NoError(t, f(s))
		case <-env.Context.Done():
			break loop
		case <-time.After(500 * time.Millisecond):
			t.Fatal("Timed out waiting for RepeatTask to execute")
		}
	}
	wg.Wait()
	assert.Equal(t, 3, count)
}
