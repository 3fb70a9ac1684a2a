package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Praises003/aether/internal/registry"
)

func setFunctionFlags(t *testing.T, typ, endpoint, price, payee string) {
	t.Helper()

	oldType, oldEndpoint, oldPrice, oldPayee := fnType, fnEndpoint, fnPrice, fnPayee
	oldMethod, oldName := fnMethod, fnName
	t.Cleanup(func() {
		fnType, fnEndpoint, fnPrice, fnPayee = oldType, oldEndpoint, oldPrice, oldPayee
		fnMethod, fnName = oldMethod, oldName
	})

	fnType, fnEndpoint, fnPrice, fnPayee = typ, endpoint, price, payee
	fnMethod = "POST"
	fnName = "Test function"
}

func TestFunctionsAddAndList(t *testing.T) {
	useTestConfig(t, "")
	setFunctionFlags(t, "API", "https://example.com/weather", "0.5", "0.0.1001")

	cmd, out := testCommand()
	if err := runAddFunction(cmd, []string{" weather_v1 "}); err != nil {
		t.Fatalf("runAddFunction() error = %v", err)
	}
	if !strings.Contains(out.String(), "Registered WEATHER_V1 (REMOTE, 0.5 hbar)") {
		t.Errorf("unexpected add output: %q", out.String())
	}

	cmd, out = testCommand()
	if err := runListFunctions(cmd, nil); err != nil {
		t.Fatalf("runListFunctions() error = %v", err)
	}
	listing := out.String()
	for _, want := range []string{"IDENTIFIER", "WEATHER_V1", "REMOTE", "0.0.1001"} {
		if !strings.Contains(listing, want) {
			t.Errorf("listing missing %q:\n%s", want, listing)
		}
	}
}

func TestFunctionsAddInvalid(t *testing.T) {
	useTestConfig(t, "")

	tests := []struct {
		name     string
		typ      string
		endpoint string
		price    string
		payee    string
	}{
		{name: "remote without endpoint", typ: "REMOTE", price: "1", payee: "0.0.1001"},
		{name: "unknown type", typ: "WASM", price: "1", payee: "0.0.1001"},
		{name: "missing payee", typ: "LOCAL", price: "1"},
		{name: "negative price", typ: "LOCAL", price: "-1", payee: "0.0.1001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setFunctionFlags(t, tt.typ, tt.endpoint, tt.price, tt.payee)

			cmd, _ := testCommand()
			if err := runAddFunction(cmd, []string{"BROKEN_V1"}); err == nil {
				t.Error("runAddFunction() expected error, got nil")
			}
		})
	}
}

func TestFunctionsListEmpty(t *testing.T) {
	useTestConfig(t, "")

	cmd, out := testCommand()
	if err := runListFunctions(cmd, nil); err != nil {
		t.Fatalf("runListFunctions() error = %v", err)
	}
	if !strings.Contains(out.String(), "No functions registered.") {
		t.Errorf("unexpected output: %q", out.String())
	}
}

func TestFunctionsImport(t *testing.T) {
	dir := useTestConfig(t, "")

	seedDir := filepath.Join(dir, "functions")
	if err := os.MkdirAll(seedDir, 0o755); err != nil {
		t.Fatal(err)
	}
	seedFile := filepath.Join(seedDir, "builtin.yaml")
	if err := os.WriteFile(seedFile, []byte(builtinFunctionsYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{seedFile, seedDir} {
		cmd, out := testCommand()
		if err := runImportFunctions(cmd, []string{path}); err != nil {
			t.Fatalf("runImportFunctions(%s) error = %v", path, err)
		}
		if !strings.Contains(out.String(), "Imported 3 functions") {
			t.Errorf("unexpected import output: %q", out.String())
		}
	}

	cmd, out := testCommand()
	if err := runListFunctions(cmd, nil); err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(out.String(), "LOCAL"); got != 3 {
		t.Errorf("listed %d LOCAL functions, want 3:\n%s", got, out.String())
	}
}

func TestPrintFunctionsTruncatesDescription(t *testing.T) {
	d := registry.NewDescriptor()
	d.Identifier = "LONG_V1"
	d.Description = strings.Repeat("x", descriptionMaxLen+10)

	var buf bytes.Buffer
	if err := printFunctions(&buf, []*registry.Descriptor{d}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), d.Description) {
		t.Error("description was not truncated")
	}
	if !strings.Contains(buf.String(), "...") {
		t.Error("truncated description missing ellipsis")
	}
}
