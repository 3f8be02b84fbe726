// Package testutil holds helpers for tests that touch real system tools.
package testutil

import (
	"os"
	"os/exec"
	"testing"
)

// RequireTool skips the test when the named binary is not installed.
func RequireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

// RequireRoot skips the test when not running as root.
func RequireRoot(t *testing.T) {
	t.Helper()
	if os.Geteuid() != 0 {
		t.Skip("requires root")
	}
}
