// Package runner abstracts execution of the external firewall tools
// (ipset, iptables, ip6tables, firewall-cmd, ufw). Everything that would
// mutate system state is expressed as a Cmd value first, so callers can
// print the exact invocation in dry-run mode and execute the identical
// invocation in live mode.
package runner

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrUnavailable indicates the external tool could not be invoked at all,
// e.g. the binary is not installed or not on PATH. Callers decide whether
// to re-invoke; nothing in this package retries.
var ErrUnavailable = errors.New("backend tool unavailable")

// Cmd is one external command, possibly with stdin input (ipset restore).
type Cmd struct {
	Name  string
	Args  []string
	Input string
}

// String renders the command the way a shell user would type it.
// Stdin payloads are summarized, not inlined.
func (c Cmd) String() string {
	s := c.Name
	if len(c.Args) > 0 {
		s += " " + strings.Join(c.Args, " ")
	}
	if c.Input != "" {
		s += fmt.Sprintf(" <<< (%d bytes)", len(c.Input))
	}
	return s
}

// Exec runs the command through r.
func (c Cmd) Exec(r CommandRunner) error {
	if c.Input != "" {
		return r.RunInput(c.Input, c.Name, c.Args...)
	}
	return r.Run(c.Name, c.Args...)
}

// CommandRunner abstracts shell command execution.
type CommandRunner interface {
	Run(name string, args ...string) error
	RunInput(input string, name string, args ...string) error
	Output(name string, args ...string) ([]byte, error)
}

// RealCommandRunner executes actual shell commands.
type RealCommandRunner struct{}

// DefaultCommandRunner is the default command runner.
var DefaultCommandRunner CommandRunner = &RealCommandRunner{}

// Run executes a command without capturing output.
func (r *RealCommandRunner) Run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return wrapExecErr(name, err, out)
	}
	return nil
}

// Output executes a command and returns its stdout.
func (r *RealCommandRunner) Output(name string, args ...string) ([]byte, error) {
	out, err := exec.Command(name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, fmt.Errorf("command %s failed: %w: %s", name, err, string(exitErr.Stderr))
		}
		return out, wrapExecErr(name, err, nil)
	}
	return out, nil
}

// RunInput executes a command with input via stdin.
func (r *RealCommandRunner) RunInput(input string, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = strings.NewReader(input)
	if out, err := cmd.CombinedOutput(); err != nil {
		return wrapExecErr(name, err, out)
	}
	return nil
}

func wrapExecErr(name string, err error, out []byte) error {
	if errors.Is(err, exec.ErrNotFound) {
		return fmt.Errorf("%w: %s not found in PATH", ErrUnavailable, name)
	}
	return fmt.Errorf("command %s failed: %w: %s", name, err, strings.TrimSpace(string(out)))
}

// LookPath reports whether the named binary is available.
func LookPath(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
