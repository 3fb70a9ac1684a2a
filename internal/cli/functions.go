package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Praises003/aether/internal/database"
	"github.com/Praises003/aether/internal/registry"
)

const descriptionMaxLen = 40

var (
	fnName        string
	fnDescription string
	fnType        string
	fnEndpoint    string
	fnMethod      string
	fnDocsURL     string
	fnPrice       string
	fnPayee       string
	fnInactive    bool
)

var functionsCmd = &cobra.Command{
	Use:     "functions",
	Aliases: []string{"fn"},
	Short:   "Manage the function registry",
	Long: `Manage the function registry configured in aether.yaml.

These commands open the registry directly and do not need a running broker.`,
}

var listFunctionsCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered functions",
	Args:  cobra.NoArgs,
	RunE:  runListFunctions,
}

var addFunctionCmd = &cobra.Command{
	Use:   "add <function-id>",
	Short: "Register or update a function",
	Long: `Register or update a function descriptor.

Examples:
  aether functions add REVERSE_TEXT_V1 --type LOCAL --price 0.1 --payee 0.0.1234
  aether functions add WEATHER_V1 --type REMOTE --endpoint https://example.com/weather \
    --method GET --price 0.5 --payee 0.0.1234`,
	Args: cobra.ExactArgs(1),
	RunE: runAddFunction,
}

var importFunctionsCmd = &cobra.Command{
	Use:   "import <file-or-directory>",
	Short: "Import descriptors from YAML files",
	Args:  cobra.ExactArgs(1),
	RunE:  runImportFunctions,
}

func init() {
	addFunctionCmd.Flags().StringVar(&fnName, "name", "", "Display name")
	addFunctionCmd.Flags().StringVar(&fnDescription, "description", "", "Description")
	addFunctionCmd.Flags().StringVar(&fnType, "type", string(registry.ExecutionRemote), "Execution type (LOCAL, REMOTE)")
	addFunctionCmd.Flags().StringVar(&fnEndpoint, "endpoint", "", "Endpoint URL for remote functions")
	addFunctionCmd.Flags().StringVar(&fnMethod, "method", "POST", "HTTP method for remote functions (GET, POST)")
	addFunctionCmd.Flags().StringVar(&fnDocsURL, "docs", "", "Documentation URL")
	addFunctionCmd.Flags().StringVar(&fnPrice, "price", "0", "Price in hbar")
	addFunctionCmd.Flags().StringVar(&fnPayee, "payee", "", "Account credited with payments")
	addFunctionCmd.Flags().BoolVar(&fnInactive, "inactive", false, "Register the function as inactive")

	functionsCmd.AddCommand(listFunctionsCmd)
	functionsCmd.AddCommand(addFunctionCmd)
	functionsCmd.AddCommand(importFunctionsCmd)

	rootCmd.AddCommand(functionsCmd)
}

// withRegistry opens the configured registry for the duration of fn.
func withRegistry(ctx context.Context, fn func(registry.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var db *database.DB
	if cfg.Registry.Driver != "postgres" {
		db, err = database.Open(&cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
	}

	store, closeStore, err := openRegistry(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(store)
}

func runListFunctions(cmd *cobra.Command, args []string) error {
	return withRegistry(cmd.Context(), func(store registry.Store) error {
		descs, err := store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing functions: %w", err)
		}
		return printFunctions(cmd.OutOrStdout(), descs)
	})
}

func runAddFunction(cmd *cobra.Command, args []string) error {
	d := registry.NewDescriptor()
	d.Identifier = args[0]
	d.Name = fnName
	d.Description = fnDescription
	d.Endpoint = fnEndpoint
	d.HTTPMethod = fnMethod
	d.DocsURL = fnDocsURL
	d.PriceHbar = json.Number(fnPrice)
	d.PayeeAccount = fnPayee
	d.Active = !fnInactive

	if err := d.ExecutionType.UnmarshalText([]byte(fnType)); err != nil {
		return err
	}
	if err := registry.Prepare(d); err != nil {
		return err
	}

	return withRegistry(cmd.Context(), func(store registry.Store) error {
		if err := store.Upsert(cmd.Context(), d); err != nil {
			return fmt.Errorf("saving %s: %w", d.Identifier, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s, %s hbar)\n", d.Identifier, d.ExecutionType, d.PriceHbar)
		return nil
	})
}

func runImportFunctions(cmd *cobra.Command, args []string) error {
	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	return withRegistry(cmd.Context(), func(store registry.Store) error {
		if info.IsDir() {
			n, err := registry.Seed(cmd.Context(), store, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d functions from %s\n", n, path)
			return nil
		}

		descs, err := registry.LoadFile(path)
		if err != nil {
			return err
		}
		for _, d := range descs {
			if err := store.Upsert(cmd.Context(), d); err != nil {
				return fmt.Errorf("%s: %w", d.Identifier, err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d functions from %s\n", len(descs), path)
		return nil
	})
}

func printFunctions(w io.Writer, descs []*registry.Descriptor) error {
	if len(descs) == 0 {
		fmt.Fprintln(w, "No functions registered.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Register one with:")
		fmt.Fprintln(w, "  aether functions add <function-id> --payee <account> --price <hbar>")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "IDENTIFIER\tTYPE\tPRICE (HBAR)\tPAYEE\tACTIVE\tDESCRIPTION")
	for _, d := range descs {
		desc := d.Description
		if len(desc) > descriptionMaxLen {
			desc = desc[:descriptionMaxLen-3] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n",
			d.Identifier, d.ExecutionType, d.PriceHbar, d.PayeeAccount, d.Active, strings.TrimSpace(desc))
	}
	return tw.Flush()
}
