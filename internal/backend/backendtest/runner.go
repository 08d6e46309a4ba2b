// Package backendtest provides a scripted CommandRunner for tests.
package backendtest

import (
	"context"
	"io"
	"strings"

	"github.com/stretchr/testify/mock"
)

// Runner is a testify mock implementing backend.CommandRunner.
type Runner struct {
	mock.Mock
}

// Run records the call and returns the scripted stdout, stderr and error.
func (m *Runner) Run(ctx context.Context, name string, args []string, stdin io.Reader) ([]byte, []byte, error) {
	a := m.Called(ctx, name, args, stdin)
	stdout, _ := a.Get(0).([]byte)
	stderr, _ := a.Get(1).([]byte)
	return stdout, stderr, a.Error(2)
}

// Start records the call and returns the scripted pipes and wait function.
func (m *Runner) Start(ctx context.Context, name string, args []string, stdin io.Reader) (io.ReadCloser, io.ReadCloser, func() error, error) {
	a := m.Called(ctx, name, args, stdin)
	if err := a.Error(3); err != nil {
		return nil, nil, nil, err
	}
	return a.Get(0).(io.ReadCloser), a.Get(1).(io.ReadCloser), a.Get(2).(func() error), nil
}

// Pipe wraps a string as a process output pipe.
func Pipe(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

// Exit returns a wait function that reports err.
func Exit(err error) func() error {
	return func() error { return err }
}
