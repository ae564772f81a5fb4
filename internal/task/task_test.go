package task

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	taskerrors "github.com/maxkimambo/geotask/internal/errors"
	"github.com/maxkimambo/geotask/internal/logger"
	"github.com/maxkimambo/geotask/internal/progress"
)

func init() {
	logger.Setup(false, false, true)
}

func runTask(t *testing.T, body BodyFunc) *Task {
	t.Helper()
	tk := New("test-task", nil, body)
	require.True(t, tk.MarkRunning())
	tk.Execute()
	return tk
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state    State
		want     string
		terminal bool
	}{
		{StateIdle, "idle", false},
		{StateRunning, "running", false},
		{StateSucceeded, "succeeded", true},
		{StateCancelled, "cancelled", true},
		{StateFailed, "failed", true},
		{State(42), "unknown", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
		assert.Equal(t, tt.terminal, tt.state.IsTerminal())
	}
}

func TestNewTaskIsIdle(t *testing.T) {
	tk := New("sleep", map[string]int{"seconds": 1}, BodyFunc(func(context.Context, Control) error { return nil }))

	assert.Equal(t, StateIdle, tk.State())
	assert.NotEmpty(t, tk.ID())
	assert.Equal(t, "sleep", tk.Name())
	assert.Equal(t, map[string]int{"seconds": 1}, tk.Params())
	assert.False(t, tk.IsCancellationRequested())
	assert.Nil(t, tk.StartTime())
}

func TestTaskIDsAreUnique(t *testing.T) {
	a := New("a", nil, nil)
	b := New("a", nil, nil)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestMarkRunningOnlyOnce(t *testing.T) {
	tk := New("x", nil, BodyFunc(func(context.Context, Control) error { return nil }))
	require.True(t, tk.MarkRunning())
	assert.False(t, tk.MarkRunning())
	assert.NotNil(t, tk.StartTime())

	tk.RevertToIdle()
	assert.Equal(t, StateIdle, tk.State())
	assert.Nil(t, tk.StartTime())
}

func TestOutcomes(t *testing.T) {
	boom := stderrors.New("boom")

	tests := []struct {
		name    string
		body    BodyFunc
		cancel  bool
		want    State
		wantErr bool
	}{
		{
			name: "nil is success",
			body: func(context.Context, Control) error { return nil },
			want: StateSucceeded,
		},
		{
			name: "ErrCancelled is cancellation",
			body: func(context.Context, Control) error { return ErrCancelled },
			want: StateCancelled,
		},
		{
			name: "wrapped ErrCancelled is cancellation",
			body: func(context.Context, Control) error { return fmt.Errorf("row 3: %w", ErrCancelled) },
			want: StateCancelled,
		},
		{
			name: "context canceled without request is failure",
			body: func(context.Context, Control) error { return context.Canceled },
			want: StateFailed, wantErr: true,
		},
		{
			name:    "other error is failure",
			body:    func(context.Context, Control) error { return boom },
			want:    StateFailed,
			wantErr: true,
		},
		{
			name:    "panic is failure",
			body:    func(context.Context, Control) error { panic("bad row") },
			want:    StateFailed,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := runTask(t, tt.body)
			assert.Equal(t, tt.want, tk.State())
			if tt.wantErr {
				te, ok := taskerrors.AsTaskError(tk.Err())
				require.True(t, ok)
				assert.Equal(t, taskerrors.ErrorCategoryTask, te.Category)
			} else {
				assert.NoError(t, tk.Err())
			}
			assert.NotNil(t, tk.EndTime())
		})
	}
}

func TestFailureKeepsOriginalError(t *testing.T) {
	tk := runTask(t, func(context.Context, Control) error { return io.ErrUnexpectedEOF })
	assert.ErrorIs(t, tk.Err(), io.ErrUnexpectedEOF)
	assert.ErrorIs(t, tk.Err(), taskerrors.ErrTaskFailure)
}

func TestPanicBecomesTaskFailure(t *testing.T) {
	tk := runTask(t, func(context.Context, Control) error { panic("bad row") })

	te, ok := taskerrors.AsTaskError(tk.Err())
	require.True(t, ok)
	assert.Equal(t, taskerrors.ErrorCategoryTask, te.Category)
	assert.Equal(t, taskerrors.CodeTaskPanic, te.Code)
	assert.Equal(t, "bad row", te.Context["panic"])
}

func TestCancellationBeforeRunSkipsBody(t *testing.T) {
	called := false
	tk := New("x", nil, BodyFunc(func(context.Context, Control) error {
		called = true
		return nil
	}))

	assert.True(t, tk.RequestCancellation())
	require.True(t, tk.MarkRunning())
	assert.Equal(t, StateCancelled, tk.Execute())

	assert.False(t, called)
	assert.Equal(t, progress.Reset().Title, tk.Progress().Latest().Title)
}

func TestCancellationDuringRunViaContext(t *testing.T) {
	started := make(chan struct{})
	tk := New("x", nil, BodyFunc(func(ctx context.Context, ctl Control) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}))
	require.True(t, tk.MarkRunning())

	done := make(chan State)
	go func() { done <- tk.Execute() }()

	<-started
	tk.RequestCancellation()
	assert.Equal(t, StateCancelled, <-done)
	assert.NoError(t, tk.Err())
}

func TestCancellationObservedViaControl(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	tk := New("x", nil, BodyFunc(func(_ context.Context, ctl Control) error {
		ctl.SetProgress(0.5)
		close(started)
		<-release
		if ctl.IsCancellationRequested() {
			ctl.Println("stopped")
			assert.True(t, ctl.ClearProgress())
			return ErrCancelled
		}
		return nil
	}))
	require.True(t, tk.MarkRunning())

	done := make(chan State)
	go func() { done <- tk.Execute() }()

	<-started
	tk.RequestCancellation()
	close(release)

	assert.Equal(t, StateCancelled, <-done)
	latest := tk.Progress().Latest()
	assert.Equal(t, 0.0, latest.Fraction)
	assert.Equal(t, "0%", latest.Title)
	assert.Equal(t, []string{"stopped"}, tk.Console())
}

func TestRequestCancellationIsIdempotent(t *testing.T) {
	tk := New("x", nil, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	firsts := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tk.RequestCancellation() {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, firsts)
	assert.True(t, tk.IsCancellationRequested())
}

func TestRequestCancellationAfterTerminalIsNoop(t *testing.T) {
	tk := runTask(t, func(context.Context, Control) error { return nil })

	assert.False(t, tk.RequestCancellation())
	assert.False(t, tk.IsCancellationRequested())
	assert.Equal(t, StateSucceeded, tk.State())
}

func TestLateCancellationDoesNotChangeSuccess(t *testing.T) {
	tk := runTask(t, func(context.Context, Control) error { return nil })
	tk.RequestCancellation()
	assert.Equal(t, StateSucceeded, tk.State())
}

func TestProgressIsMonotonicWhileRunning(t *testing.T) {
	tk := runTask(t, func(_ context.Context, ctl Control) error {
		ctl.SetProgress(0.3)
		ctl.SetProgress(0.2)
		ctl.Publish(0.1, "going back", "10%")
		ctl.Publish(progress.Indeterminate, "unknown", "")
		ctl.SetProgress(0.8)
		return nil
	})

	latest := tk.Progress().Latest()
	assert.Equal(t, 0.8, latest.Fraction)
	assert.Equal(t, "80%", latest.Title)
	assert.Equal(t, uint64(5), latest.Seq)
}

func TestProgressClampedSnapshotsObserved(t *testing.T) {
	var fractions []float64
	tk := New("x", nil, BodyFunc(func(_ context.Context, ctl Control) error {
		ctl.SetProgress(0.3)
		ctl.SetProgress(0.2)
		ctl.Publish(0.1, "m", "")
		return nil
	}))
	tk.Progress().Subscribe(func(s progress.Snapshot) { fractions = append(fractions, s.Fraction) }, syncPoster{})
	require.True(t, tk.MarkRunning())
	tk.Execute()

	assert.Equal(t, []float64{0.3, 0.3, 0.3}, fractions)
}

func TestFailureResetsProgress(t *testing.T) {
	tk := runTask(t, func(_ context.Context, ctl Control) error {
		ctl.SetProgress(0.7)
		return stderrors.New("broken input")
	})

	assert.Equal(t, StateFailed, tk.State())
	assert.Equal(t, 0.0, tk.Progress().Latest().Fraction)
	assert.Equal(t, "0%", tk.Progress().Latest().Title)
}

func TestSuccessKeepsLastProgress(t *testing.T) {
	tk := runTask(t, func(_ context.Context, ctl Control) error {
		ctl.SetProgress(1)
		return nil
	})
	assert.Equal(t, "100%", tk.Progress().Latest().Title)
}

func TestPrintlnKeepsProgressAndTranscript(t *testing.T) {
	tk := runTask(t, func(_ context.Context, ctl Control) error {
		ctl.SetProgress(0.1)
		ctl.Println("Reading input file")
		ctl.Println("Computing")
		return nil
	})

	latest := tk.Progress().Latest()
	assert.Equal(t, "Computing", latest.Message)
	assert.Equal(t, 0.1, latest.Fraction)
	assert.Equal(t, "10%", latest.Title)
	assert.Equal(t, []string{"Reading input file", "Computing"}, tk.Console())
}

func TestClearProgressIgnoredWithoutCancellation(t *testing.T) {
	tk := runTask(t, func(_ context.Context, ctl Control) error {
		ctl.SetProgress(0.4)
		assert.False(t, ctl.ClearProgress())
		return nil
	})
	assert.Equal(t, 0.4, tk.Progress().Latest().Fraction)
}

func TestExecuteRequiresRunning(t *testing.T) {
	called := false
	tk := New("x", nil, BodyFunc(func(context.Context, Control) error {
		called = true
		return nil
	}))

	assert.Equal(t, StateIdle, tk.Execute())
	assert.False(t, called)
}

// syncPoster runs deliveries inline
type syncPoster struct{}

func (syncPoster) Post(fn func()) bool {
	fn()
	return true
}
