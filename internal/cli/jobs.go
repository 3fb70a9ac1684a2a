package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Praises003/aether/internal/jobs"
)

var (
	serverURL string

	submitInput     string
	submitInputFile string
	submitPayer     string
	submitTransfer  string
	submitPrice     string
	submitPayee     string
	submitWait      bool

	resultWait    bool
	resultTimeout time.Duration
)

const resultPollInterval = time.Second

var submitCmd = &cobra.Command{
	Use:   "submit <function-id>",
	Short: "Submit a job to a running broker",
	Long: `Submit a job to a running broker through its HTTP API.

The input is JSON. A value that is not valid JSON is sent as a string.

Examples:
  aether submit REVERSE_TEXT_V1 --input '"hello"' \
    --payer 0.0.1001 --transfer 0.0.1001@1700000000.000000001 --price 0.5
  aether submit TEXT_SUMMARIZER_V1 --input-file article.json --wait ...

Environment Variables:
  AETHER_SERVER_URL  Default server URL`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

var resultCmd = &cobra.Command{
	Use:   "result <job-id>",
	Short: "Show the result of a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runResult,
}

func init() {
	for _, cmd := range []*cobra.Command{submitCmd, resultCmd} {
		cmd.Flags().StringVar(&serverURL, "server", "", "Broker URL (or AETHER_SERVER_URL, default "+defaultServerURL+")")
	}

	submitCmd.Flags().StringVar(&submitInput, "input", "", "Job input as JSON")
	submitCmd.Flags().StringVar(&submitInputFile, "input-file", "", "Read the job input from a file (- for stdin)")
	submitCmd.Flags().StringVar(&submitPayer, "payer", "", "Payer account id")
	submitCmd.Flags().StringVar(&submitTransfer, "transfer", "", "Payment transaction id")
	submitCmd.Flags().StringVar(&submitPrice, "price", "", "Price paid in hbar")
	submitCmd.Flags().StringVar(&submitPayee, "payee", "", "Payee account id hint")
	submitCmd.Flags().BoolVar(&submitWait, "wait", false, "Wait for the result")

	resultCmd.Flags().BoolVar(&resultWait, "wait", false, "Poll until the job completes")
	resultCmd.Flags().DurationVar(&resultTimeout, "timeout", 2*time.Minute, "How long --wait polls")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(resultCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	input, err := readInput(cmd.InOrStdin())
	if err != nil {
		return err
	}

	req := jobs.SubmitRequest{
		FunctionIdentifier: args[0],
		Input:              input,
		PayerAccount:       submitPayer,
		TransferReference:  submitTransfer,
		ClaimedPriceUnits:  submitPrice,
		PayeeAccount:       submitPayee,
	}
	if err := req.Validate(); err != nil {
		return err
	}

	client := newAPIClient(serverURL)
	resp, err := client.SubmitJob(cmd.Context(), req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job submitted: %s\n", resp.JobID)
	if !submitWait {
		fmt.Fprintf(out, "Check the result with:\n  aether result %s\n", resp.JobID)
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), resultTimeout)
	defer cancel()

	res, err := client.WaitResult(ctx, resp.JobID, resultPollInterval)
	if err != nil {
		return err
	}
	return printResult(out, res)
}

func runResult(cmd *cobra.Command, args []string) error {
	client := newAPIClient(serverURL)

	var (
		res *jobs.Result
		err error
	)
	if resultWait {
		ctx, cancel := context.WithTimeout(cmd.Context(), resultTimeout)
		defer cancel()
		res, err = client.WaitResult(ctx, args[0], resultPollInterval)
	} else {
		res, err = client.Result(cmd.Context(), args[0])
	}

	if errors.Is(err, errStillProcessing) {
		fmt.Fprintf(cmd.OutOrStdout(), "Job %s is still processing\n", args[0])
		return nil
	}
	if err != nil {
		return err
	}
	return printResult(cmd.OutOrStdout(), res)
}

// readInput returns the --input or --input-file contents as JSON. Text that
// does not parse as JSON is encoded as a JSON string.
func readInput(stdin io.Reader) (json.RawMessage, error) {
	raw := []byte(submitInput)

	switch submitInputFile {
	case "":
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		raw = data
	default:
		data, err := os.ReadFile(submitInputFile)
		if err != nil {
			return nil, fmt.Errorf("reading input file: %w", err)
		}
		raw = data
	}

	if len(raw) == 0 {
		return nil, nil
	}
	if json.Valid(raw) {
		return raw, nil
	}
	return json.Marshal(string(raw))
}

func printResult(w io.Writer, res *jobs.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
