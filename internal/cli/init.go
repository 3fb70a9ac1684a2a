package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	initTemplate string
	initForce    bool
)

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a new Aether project",
	Long: `Initialize a new Aether project with a starter template.

Creates the project directory structure with:
  - aether.yaml             Configuration file
  - functions/builtin.yaml  Descriptors for the built-in functions
  - .env.example            Operator credentials template
  - data/                   Database directory

Templates:
  local    Local ledger in SQLite, no Hedera account needed (default)
  testnet  Hedera testnet with an operator account from .env`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVarP(&initTemplate, "template", "t", "local", "Project template (local, testnet)")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing files")

	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	projectDir := "."
	if len(args) > 0 {
		projectDir = args[0]
	}

	tmpl, err := validateTemplate(initTemplate)
	if err != nil {
		return err
	}

	if err := prepareProjectDir(projectDir, initForce); err != nil {
		return err
	}

	if err := createProjectStructure(projectDir); err != nil {
		return err
	}

	if err := writeTemplateFiles(projectDir, tmpl); err != nil {
		return err
	}

	if err := writeGitignore(projectDir); err != nil {
		return err
	}

	printSuccessMessage(cmd.OutOrStdout(), projectDir, tmpl)
	return nil
}

func validateTemplate(name string) (*Template, error) {
	templates := getTemplates()
	tmpl, ok := templates[name]
	if !ok {
		names := make([]string, 0, len(templates))
		for n := range templates {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown template: %s (available: %s)", name, strings.Join(names, ", "))
	}
	return tmpl, nil
}

func prepareProjectDir(projectDir string, force bool) error {
	if projectDir != "." {
		if err := os.MkdirAll(projectDir, 0o755); err != nil {
			return fmt.Errorf("creating project directory: %w", err)
		}
		log.Info().Str("directory", projectDir).Msg("Created project directory")
	}

	if !force {
		existingFiles := checkExistingFiles(projectDir)
		if len(existingFiles) > 0 {
			return fmt.Errorf("files already exist: %s (use --force to overwrite)", strings.Join(existingFiles, ", "))
		}
	}
	return nil
}

func createProjectStructure(projectDir string) error {
	dirs := []string{"data", "functions"}
	for _, dir := range dirs {
		dirPath := filepath.Join(projectDir, dir)
		if err := os.MkdirAll(dirPath, 0o755); err != nil {
			return fmt.Errorf("creating %s directory: %w", dir, err)
		}
	}
	return nil
}

func writeTemplateFiles(projectDir string, tmpl *Template) error {
	for filename, content := range tmpl.Files {
		if err := writeTemplateFile(projectDir, filename, content); err != nil {
			return err
		}
		log.Info().Str("file", filename).Msg("Created")
	}
	return nil
}

func writeTemplateFile(projectDir, filename, content string) error {
	filePath := filepath.Join(projectDir, filename)

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", filename, err)
	}

	return os.WriteFile(filePath, []byte(content), 0o600)
}

func writeGitignore(projectDir string) error {
	content := `# Aether data
data/
*.db
*.db-wal
*.db-shm

# Environment
.env
.env.local

# IDE
.idea/
.vscode/
*.swp
*.swo
`
	if err := os.WriteFile(filepath.Join(projectDir, ".gitignore"), []byte(content), 0o600); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	log.Info().Str("file", ".gitignore").Msg("Created")
	return nil
}

func printSuccessMessage(w io.Writer, projectDir string, tmpl *Template) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "✓ Project initialized with %q template\n", tmpl.Name)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Next steps:")
	if projectDir != "." {
		fmt.Fprintf(w, "  cd %s\n", projectDir)
	}
	for _, step := range tmpl.NextSteps {
		fmt.Fprintf(w, "  %s\n", step)
	}
	fmt.Fprintln(w)
}

func checkExistingFiles(dir string) []string {
	filesToCheck := []string{"aether.yaml", "aether.yml", filepath.Join("functions", "builtin.yaml")}
	var existing []string
	for _, f := range filesToCheck {
		if _, err := os.Stat(filepath.Join(dir, f)); err == nil {
			existing = append(existing, f)
		}
	}
	return existing
}

// Template represents a project template.
type Template struct {
	Name        string
	Description string
	Files       map[string]string
	NextSteps   []string
}

func getTemplates() map[string]*Template {
	return map[string]*Template{
		"local": {
			Name:        "local",
			Description: "Local ledger in SQLite",
			Files: map[string]string{
				"aether.yaml":            localConfigYAML,
				"functions/builtin.yaml": builtinFunctionsYAML,
			},
			NextSteps: []string{
				"aether topic create   # Allocate the job and receipt topics",
				"aether serve          # Start the broker",
			},
		},
		"testnet": {
			Name:        "testnet",
			Description: "Hedera testnet",
			Files: map[string]string{
				"aether.yaml":            testnetConfigYAML,
				"functions/builtin.yaml": builtinFunctionsYAML,
				".env.example":           envExample,
			},
			NextSteps: []string{
				"cp .env.example .env  # Fill in your operator account",
				"aether topic create   # Create the job and receipt topics",
				"aether serve          # Start the broker",
			},
		},
	}
}

const localConfigYAML = `# =============================================================================
# Aether Configuration
# =============================================================================
# Environment variables override any key: AETHER_<SECTION>_<KEY>,
# e.g. AETHER_LEDGER_JOB_TOPIC_ID. Values of the form ${VAR} are expanded.
# =============================================================================

server:
  host: localhost
  port: 5000
  cors:
    enabled: true
    allowed_origins: ["http://localhost:3000", "http://localhost:5173"]
  # Per client address token bucket on POST /api/jobs
  submit_rate_limit:
    max: 30
    window: 1m

database:
  path: ./data/aether.db
  wal_mode: true

registry:
  driver: sqlite
  seed_dir: ./functions
  watch: true

# The local network keeps topics in the database. Payment verification
# still asks the mirror at mirror_url (e.g. a Hedera local node).
ledger:
  network: local
  mirror_url: http://localhost:5551
  # Filled in by "aether topic create"
  job_topic_id: ""
  receipt_topic_id: ""

listener:
  enabled: true
  workers: 4
  poll_interval: 500ms

dispatch:
  timeout: 15s

results:
  backend: memory
  ttl: 24h

logging:
  level: debug
  format: console
`

const testnetConfigYAML = `# =============================================================================
# Aether Configuration
# =============================================================================
# Environment variables override any key: AETHER_<SECTION>_<KEY>,
# e.g. AETHER_LEDGER_JOB_TOPIC_ID. Values of the form ${VAR} are expanded.
# =============================================================================

server:
  host: 0.0.0.0
  port: 5000
  cors:
    enabled: true
    allowed_origins: ["http://localhost:5173"]
  submit_rate_limit:
    max: 30
    window: 1m

database:
  path: ./data/aether.db
  wal_mode: true

registry:
  driver: sqlite
  # driver: postgres
  # dsn: ${DATABASE_URL}
  seed_dir: ./functions

ledger:
  network: testnet
  operator_id: ${HEDERA_OPERATOR_ID}
  operator_key: ${HEDERA_OPERATOR_KEY}
  mirror_url: https://testnet.mirrornode.hedera.com
  # Set here or with AETHER_LEDGER_JOB_TOPIC_ID / AETHER_LEDGER_RECEIPT_TOPIC_ID
  job_topic_id: ""
  receipt_topic_id: ""

listener:
  enabled: true
  # sdk subscribes over gRPC; mirror polls the REST API
  source: sdk
  workers: 4

dispatch:
  timeout: 15s

results:
  backend: memory
  ttl: 24h
  # backend: redis
  # redis:
  #   addr: localhost:6379

logging:
  level: info
  format: json
`

const builtinFunctionsYAML = `# Descriptors for the functions built into the broker. Replace payee_account
# with the account that should receive payments.
functions:
  - identifier: TEXT_SUMMARIZER_V1
    name: Text summarizer
    description: Returns the first words of the input text.
    execution_type: LOCAL
    price_hbar: 0.1
    payee_account: 0.0.1001

  - identifier: REVERSE_TEXT_V1
    name: Reverse text
    description: Reverses the input text.
    execution_type: LOCAL
    price_hbar: 0.05
    payee_account: 0.0.1001

  - identifier: RANDOM_FACT_V1
    name: Random fact
    description: Returns a fact about Hedera.
    execution_type: LOCAL
    price_hbar: 0
    payee_account: 0.0.1001
`

const envExample = `# Hedera operator account that signs topic submissions
HEDERA_OPERATOR_ID=0.0.0000
HEDERA_OPERATOR_KEY=302e020100300506032b657004220420...

# Filled in after "aether topic create"
AETHER_LEDGER_JOB_TOPIC_ID=
AETHER_LEDGER_RECEIPT_TOPIC_ID=
`
