package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Praises003/aether/internal/config"
	"github.com/Praises003/aether/internal/dispatch/builtin"
	"github.com/Praises003/aether/internal/registry"
)

func TestValidateTemplate(t *testing.T) {
	tests := []struct {
		name        string
		templateStr string
		wantErr     bool
	}{
		{
			name:        "local template",
			templateStr: "local",
			wantErr:     false,
		},
		{
			name:        "testnet template",
			templateStr: "testnet",
			wantErr:     false,
		},
		{
			name:        "unknown template",
			templateStr: "mainnet",
			wantErr:     true,
		},
		{
			name:        "empty template",
			templateStr: "",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := validateTemplate(tt.templateStr)
			if tt.wantErr {
				if err == nil {
					t.Errorf("validateTemplate() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("validateTemplate() unexpected error: %v", err)
				return
			}
			if tmpl.Name != tt.templateStr {
				t.Errorf("validateTemplate() template name = %v, want %v", tmpl.Name, tt.templateStr)
			}
		})
	}
}

func TestPrepareProjectDir(t *testing.T) {
	tests := []struct {
		name       string
		setupFiles []string
		projectDir string
		force      bool
		wantErr    bool
	}{
		{
			name:       "new directory",
			projectDir: "newproject",
		},
		{
			name:       "current directory empty",
			projectDir: ".",
		},
		{
			name:       "existing aether.yaml without force",
			projectDir: ".",
			setupFiles: []string{"aether.yaml"},
			wantErr:    true,
		},
		{
			name:       "existing seed file without force",
			projectDir: ".",
			setupFiles: []string{"functions/builtin.yaml"},
			wantErr:    true,
		},
		{
			name:       "existing files with force",
			projectDir: ".",
			setupFiles: []string{"aether.yaml", "functions/builtin.yaml"},
			force:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())

			for _, file := range tt.setupFiles {
				if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
					t.Fatal(err)
				}
				if err := os.WriteFile(file, []byte("test"), 0o600); err != nil {
					t.Fatal(err)
				}
			}

			err := prepareProjectDir(tt.projectDir, tt.force)
			if tt.wantErr {
				if err == nil {
					t.Errorf("prepareProjectDir() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("prepareProjectDir() unexpected error: %v", err)
			}
		})
	}
}

func TestCreateProjectStructure(t *testing.T) {
	projectDir := filepath.Join(t.TempDir(), "testproject")

	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := createProjectStructure(projectDir); err != nil {
		t.Fatalf("createProjectStructure() failed: %v", err)
	}

	for _, dir := range []string{"data", "functions"} {
		info, err := os.Stat(filepath.Join(projectDir, dir))
		if err != nil {
			t.Errorf("directory %s not created: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
}

func TestWriteTemplateFiles(t *testing.T) {
	tmpDir := t.TempDir()

	tmpl := &Template{
		Name: "test",
		Files: map[string]string{
			"aether.yaml":          "server: {}",
			"functions/extra.yaml": "functions: []",
		},
	}

	if err := writeTemplateFiles(tmpDir, tmpl); err != nil {
		t.Fatalf("writeTemplateFiles() failed: %v", err)
	}

	for filename, expectedContent := range tmpl.Files {
		content, err := os.ReadFile(filepath.Join(tmpDir, filename))
		if err != nil {
			t.Errorf("file %s not created: %v", filename, err)
			continue
		}
		if string(content) != expectedContent {
			t.Errorf("file %s content = %q, want %q", filename, string(content), expectedContent)
		}
	}
}

func TestWriteGitignore(t *testing.T) {
	tmpDir := t.TempDir()

	if err := writeGitignore(tmpDir); err != nil {
		t.Fatalf("writeGitignore() failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, ".gitignore"))
	if err != nil {
		t.Fatalf("failed to read .gitignore: %v", err)
	}

	for _, pattern := range []string{"data/", "*.db", ".env"} {
		if !strings.Contains(string(content), pattern) {
			t.Errorf(".gitignore missing pattern: %s", pattern)
		}
	}
}

func TestCheckExistingFiles(t *testing.T) {
	tmpDir := t.TempDir()

	if existing := checkExistingFiles(tmpDir); len(existing) != 0 {
		t.Errorf("checkExistingFiles() on empty dir = %v, want []", existing)
	}

	if err := os.WriteFile(filepath.Join(tmpDir, "aether.yaml"), []byte("test"), 0o600); err != nil {
		t.Fatal(err)
	}

	existing := checkExistingFiles(tmpDir)
	if len(existing) != 1 || existing[0] != "aether.yaml" {
		t.Errorf("checkExistingFiles() = %v, want [aether.yaml]", existing)
	}
}

func TestTemplateConfigsLoad(t *testing.T) {
	t.Setenv("HEDERA_OPERATOR_ID", "0.0.1234")
	t.Setenv("HEDERA_OPERATOR_KEY", "302e020100300506032b6570042204200000")

	for name, tmpl := range getTemplates() {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			if err := writeTemplateFiles(dir, tmpl); err != nil {
				t.Fatal(err)
			}

			cfg, err := config.Load(config.LoadOptions{
				ConfigFile: filepath.Join(dir, "aether.yaml"),
				EnvFiles:   []string{filepath.Join(dir, ".env")},
			})
			if err != nil {
				t.Fatalf("template config does not load: %v", err)
			}
			if cfg.Ledger.Network != name {
				t.Errorf("network = %q, want %q", cfg.Ledger.Network, name)
			}
		})
	}
}

func TestBuiltinSeedCoversHandlers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "builtin.yaml")
	if err := os.WriteFile(path, []byte(builtinFunctionsYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	descs, err := registry.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	seeded := make(map[string]bool)
	for _, d := range descs {
		if err := registry.Prepare(d); err != nil {
			t.Errorf("%s: %v", d.Identifier, err)
		}
		if d.ExecutionType != registry.ExecutionLocal {
			t.Errorf("%s: execution type = %s, want LOCAL", d.Identifier, d.ExecutionType)
		}
		seeded[d.Identifier] = true
	}

	for id := range builtin.Handlers() {
		if !seeded[id] {
			t.Errorf("no seed descriptor for built-in handler %s", id)
		}
	}
}
