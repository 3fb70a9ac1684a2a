package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Praises003/aether/internal/config"
	"github.com/Praises003/aether/internal/database"
	"github.com/Praises003/aether/internal/ledger"
	"github.com/Praises003/aether/internal/ledger/local"
	"github.com/Praises003/aether/internal/ledger/mirror"
)

const (
	jobTopicMemo     = "Aether - Job Submission Topic"
	receiptTopicMemo = "Aether - Job Receipt Topic"
)

var (
	topicMemo  string
	topicLimit int
)

var topicCmd = &cobra.Command{
	Use:   "topic",
	Short: "Manage ledger topics",
}

var createTopicCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the job and receipt topics",
	Long: `Create topics on the configured ledger network.

Without --memo both the job topic and the receipt topic are created and the
matching configuration is printed. The operator account pays for creation on
Hedera networks; the local network allocates ids in the database.`,
	Args: cobra.NoArgs,
	RunE: runCreateTopic,
}

var topicMessagesCmd = &cobra.Command{
	Use:   "messages <topic-id>",
	Short: "Print the messages of a topic",
	Args:  cobra.ExactArgs(1),
	RunE:  runTopicMessages,
}

func init() {
	createTopicCmd.Flags().StringVar(&topicMemo, "memo", "", "Create a single topic with this memo")
	topicMessagesCmd.Flags().IntVar(&topicLimit, "limit", 25, "Maximum number of messages")

	topicCmd.AddCommand(createTopicCmd)
	topicCmd.AddCommand(topicMessagesCmd)

	rootCmd.AddCommand(topicCmd)
}

func runCreateTopic(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var db *database.DB
	if cfg.Ledger.Network == "local" {
		db, err = database.Open(&cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()
	}

	backend, err := openLedger(cfg, db)
	if err != nil {
		return err
	}
	defer backend.Close()

	out := cmd.OutOrStdout()
	if topicMemo != "" {
		id, err := backend.Topics.CreateTopic(cmd.Context(), topicMemo)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Created topic %s (%s)\n", id, topicMemo)
		return nil
	}

	jobTopic, err := backend.Topics.CreateTopic(cmd.Context(), jobTopicMemo)
	if err != nil {
		return fmt.Errorf("creating job topic: %w", err)
	}
	receiptTopic, err := backend.Topics.CreateTopic(cmd.Context(), receiptTopicMemo)
	if err != nil {
		return fmt.Errorf("creating receipt topic: %w", err)
	}

	printTopicConfig(out, cfg.Ledger.Network, jobTopic, receiptTopic)
	return nil
}

func printTopicConfig(w io.Writer, network, jobTopic, receiptTopic string) {
	fmt.Fprintf(w, "Created topics on %s:\n", network)
	fmt.Fprintf(w, "  job:     %s\n", jobTopic)
	fmt.Fprintf(w, "  receipt: %s\n", receiptTopic)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Add to aether.yaml:")
	fmt.Fprintln(w, "  ledger:")
	fmt.Fprintf(w, "    job_topic_id: %q\n", jobTopic)
	fmt.Fprintf(w, "    receipt_topic_id: %q\n", receiptTopic)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Or set as environment variables:")
	fmt.Fprintf(w, "  export AETHER_LEDGER_JOB_TOPIC_ID=%s\n", jobTopic)
	fmt.Fprintf(w, "  export AETHER_LEDGER_RECEIPT_TOPIC_ID=%s\n", receiptTopic)
}

func runTopicMessages(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	msgs, err := topicMessages(cmd, cfg, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(msgs) == 0 {
		fmt.Fprintf(out, "Topic %s has no messages.\n", args[0])
		return nil
	}
	for _, m := range msgs {
		fmt.Fprintf(out, "#%d %s %s\n", m.Sequence, ledger.FormatTimestamp(m.ConsensusAt), m.Contents)
	}
	return nil
}

// topicMessages reads from the local log on the local network and from the
// mirror everywhere else.
func topicMessages(cmd *cobra.Command, cfg *config.Config, topic string) ([]ledger.Message, error) {
	ctx := cmd.Context()

	if cfg.Ledger.Network == "local" {
		db, err := database.Open(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		defer db.Close()

		msgs, err := local.New(db, cfg.Listener.PollInterval).Messages(ctx, topic)
		if err != nil {
			return nil, err
		}
		if topicLimit > 0 && len(msgs) > topicLimit {
			msgs = msgs[:topicLimit]
		}
		return msgs, nil
	}

	client := mirror.NewClient(cfg.Ledger.MirrorURL, cfg.Ledger.MirrorTimeout)
	page, err := client.TopicMessages(ctx, topic, "", topicLimit)
	if err != nil {
		return nil, err
	}

	msgs := make([]ledger.Message, 0, len(page))
	for _, tm := range page {
		contents, err := tm.Contents()
		if err != nil {
			return nil, fmt.Errorf("decoding message %d: %w", tm.SequenceNumber, err)
		}
		at, _ := ledger.ParseTimestamp(tm.ConsensusTimestamp)
		msgs = append(msgs, ledger.Message{
			Topic:       tm.TopicID,
			Sequence:    tm.SequenceNumber,
			ConsensusAt: at,
			Contents:    contents,
		})
	}
	return msgs, nil
}
