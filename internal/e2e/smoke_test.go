package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)

	_, stderr, err := runIGA(t, binaryPath, home, "account", "add", "alice", "p1")
	require.NoError(t, err, "stderr: %s", stderr)

	_, stderr, err = runIGA(t, binaryPath, home, "account", "add", "bob", "p2")
	require.NoError(t, err, "stderr: %s", stderr)

	stdout, stderr, err := runIGA(t, binaryPath, home, "rotate", "--force")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "staying on alice")

	stdout, stderr, err = runIGA(t, binaryPath, home, "status")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "accounts: 2")
	assert.Contains(t, stdout, "alice")
	assert.Contains(t, stdout, "bob")
	assert.Contains(t, stdout, "(current)")
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "iga-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/iga")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build iga binary: %s", string(output))
	return binaryPath
}

func runIGA(t *testing.T, binaryPath, home string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+home)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}
