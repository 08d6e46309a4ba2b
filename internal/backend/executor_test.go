package backend

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, []byte, error) {
	a := m.Called(ctx, name, args, stdin)
	stdout, _ := a.Get(0).([]byte)
	stderr, _ := a.Get(1).([]byte)
	return stdout, stderr, a.Error(2)
}

func (m *MockRunner) Start(ctx context.Context, name string, args []string, stdin io.Reader) (io.ReadCloser, io.ReadCloser, func() error, error) {
	a := m.Called(ctx, name, args, stdin)
	if a.Error(3) != nil {
		return nil, nil, nil, a.Error(3)
	}
	return a.Get(0).(io.ReadCloser), a.Get(1).(io.ReadCloser), a.Get(2).(func() error), nil
}

func collect(t *testing.T, ch <-chan StreamChunk) (lines []string, last StreamChunk) {
	t.Helper()
	for chunk := range ch {
		if chunk.Done {
			last = chunk
			continue
		}
		lines = append(lines, string(chunk.Data))
	}
	return lines, last
}

func TestExecutor_Execute(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Run", mock.Anything, "/usr/bin/python3", []string{"-c", "print(1)"}, nil).
		Return([]byte("1\n"), []byte(nil), nil)

	e := NewExecutorWithRunner("/usr/bin/python3", time.Second, runner)
	stdout, stderr, err := e.Execute(context.Background(), []string{"-c", "print(1)"}, nil)

	require.NoError(t, err)
	assert.Equal(t, "1\n", string(stdout))
	assert.Empty(t, stderr)
	runner.AssertExpectations(t)
}

func TestExecutor_ExecuteAppliesTimeout(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Run", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= time.Minute
	}), "tool", []string(nil), nil).Return([]byte(nil), []byte(nil), nil)

	e := NewExecutorWithRunner("tool", time.Minute, runner)
	_, _, err := e.Execute(context.Background(), nil, nil)

	require.NoError(t, err)
	runner.AssertExpectations(t)
}

func TestExecutor_Stream(t *testing.T) {
	runner := new(MockRunner)
	wait := func() error { return nil }
	runner.On("Start", mock.Anything, "tool", []string{"go"}, nil).Return(
		io.NopCloser(strings.NewReader("first\nsecond\n")),
		io.NopCloser(strings.NewReader("")),
		wait,
		nil,
	)

	e := NewExecutorWithRunner("tool", time.Second, runner)
	ch, err := e.Stream(context.Background(), []string{"go"}, nil)
	require.NoError(t, err)

	lines, last := collect(t, ch)
	assert.Equal(t, []string{"first\n", "second\n"}, lines)
	assert.True(t, last.Done)
	assert.NoError(t, last.Error)
}

func TestExecutor_StreamReportsStderrOnFailure(t *testing.T) {
	runner := new(MockRunner)
	wait := func() error { return errors.New("exit status 1") }
	runner.On("Start", mock.Anything, "tool", []string(nil), nil).Return(
		io.NopCloser(strings.NewReader("")),
		io.NopCloser(strings.NewReader("FileNotFoundError: yolov8n.pt")),
		wait,
		nil,
	)

	e := NewExecutorWithRunner("tool", time.Second, runner)
	ch, err := e.Stream(context.Background(), nil, nil)
	require.NoError(t, err)

	lines, last := collect(t, ch)
	assert.Empty(t, lines)
	require.Error(t, last.Error)
	assert.Contains(t, last.Error.Error(), "exit status 1")
	assert.Contains(t, last.Error.Error(), "FileNotFoundError")
}

func TestExecutor_StreamReapsProcessOnReadError(t *testing.T) {
	runner := new(MockRunner)

	var (
		startCtx context.Context
		waited   bool
		killed   bool
	)
	wait := func() error {
		waited = true
		killed = startCtx.Err() != nil
		return errors.New("signal: killed")
	}
	// One line longer than the scanner accepts.
	runner.On("Start", mock.Anything, "tool", []string(nil), nil).Run(func(args mock.Arguments) {
		startCtx = args.Get(0).(context.Context)
	}).Return(
		io.NopCloser(strings.NewReader(strings.Repeat("x", bufio.MaxScanTokenSize+1))),
		io.NopCloser(strings.NewReader("RuntimeError: CUDA out of memory")),
		wait,
		nil,
	)

	e := NewExecutorWithRunner("tool", time.Second, runner)
	ch, err := e.Stream(context.Background(), nil, nil)
	require.NoError(t, err)

	_, last := collect(t, ch)
	assert.True(t, waited)
	assert.True(t, killed)
	require.ErrorIs(t, last.Error, bufio.ErrTooLong)
	assert.Contains(t, last.Error.Error(), "CUDA out of memory")
}

func TestExecutor_StreamStartFailure(t *testing.T) {
	runner := new(MockRunner)
	runner.On("Start", mock.Anything, "tool", []string(nil), nil).Return(nil, nil, nil, errors.New("no such file"))

	e := NewExecutorWithRunner("tool", time.Second, runner)
	_, err := e.Stream(context.Background(), nil, nil)
	assert.ErrorContains(t, err, "no such file")
}

func TestNewExecutor_MissingBinary(t *testing.T) {
	_, err := NewExecutor("scanbill-definitely-missing-binary", time.Second)
	assert.ErrorIs(t, err, ErrToolNotFound)
}
