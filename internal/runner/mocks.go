package runner

import (
	"github.com/stretchr/testify/mock"
)

// MockCommandRunner is a mock implementation of CommandRunner for testing.
type MockCommandRunner struct {
	mock.Mock
}

func (m *MockCommandRunner) Run(name string, args ...string) error {
	callArgs := make([]interface{}, 0, len(args)+1)
	callArgs = append(callArgs, name)
	for _, a := range args {
		callArgs = append(callArgs, a)
	}
	result := m.Called(callArgs...)
	return result.Error(0)
}

func (m *MockCommandRunner) Output(name string, args ...string) ([]byte, error) {
	callArgs := make([]interface{}, 0, len(args)+1)
	callArgs = append(callArgs, name)
	for _, a := range args {
		callArgs = append(callArgs, a)
	}
	result := m.Called(callArgs...)
	if result.Get(0) == nil {
		return nil, result.Error(1)
	}
	return result.Get(0).([]byte), result.Error(1)
}

func (m *MockCommandRunner) RunInput(input string, name string, args ...string) error {
	callArgs := make([]interface{}, 0, len(args)+2)
	callArgs = append(callArgs, input, name)
	for _, a := range args {
		callArgs = append(callArgs, a)
	}
	result := m.Called(callArgs...)
	return result.Error(0)
}

// RecordingRunner captures every executed Cmd without touching the system.
// Unlike MockCommandRunner it needs no expectations, which keeps plan
// round-trip tests readable.
type RecordingRunner struct {
	Cmds    []Cmd
	Outputs map[string][]byte
	Err     error
}

func (r *RecordingRunner) Run(name string, args ...string) error {
	r.Cmds = append(r.Cmds, Cmd{Name: name, Args: args})
	return r.Err
}

func (r *RecordingRunner) RunInput(input string, name string, args ...string) error {
	r.Cmds = append(r.Cmds, Cmd{Name: name, Args: args, Input: input})
	return r.Err
}

func (r *RecordingRunner) Output(name string, args ...string) ([]byte, error) {
	r.Cmds = append(r.Cmds, Cmd{Name: name, Args: args})
	if r.Outputs != nil {
		key := name
		if len(args) > 0 {
			key += " " + args[0]
		}
		if out, ok := r.Outputs[key]; ok {
			return out, r.Err
		}
	}
	return nil, r.Err
}
