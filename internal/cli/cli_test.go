package cli

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

// useTestConfig writes an aether.yaml for the local network into a temp
// directory, points --config at it and returns the directory.
func useTestConfig(t *testing.T, extra string) string {
	t.Helper()

	dir := t.TempDir()
	content := fmt.Sprintf(`database:
  path: %s
ledger:
  network: local
listener:
  poll_interval: 100ms
logging:
  level: error
%s`, filepath.Join(dir, "aether.db"), extra)

	path := filepath.Join(dir, "aether.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	old := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = old })

	return dir
}

// testCommand returns a command with a background context whose output is
// captured in the returned buffer.
func testCommand() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetContext(context.Background())
	return cmd, &out
}

func freePort(t *testing.T) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
