package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/spacesedan/emotiflow/internal/bootstrap"
	"github.com/spacesedan/emotiflow/internal/clients"
	"github.com/spacesedan/emotiflow/internal/evaluation"
	"github.com/spacesedan/emotiflow/internal/logging"
	"github.com/spacesedan/emotiflow/internal/utils"
)

type flags struct {
	input      string
	limit      int
	blockSize  int
	apiKey     string
	fullBlocks bool
	single     bool
	pretty     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score the emotion classifier against a labelled JSON lines dataset",
		Long: `Reads {"text": ..., "label": ...} lines, where label is an emotion name or
its 0-based class id, classifies them in blocks (or one by one with --single)
and prints an accuracy summary.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, f)
		},
	}

	cmd.Flags().StringVarP(&f.input, "input", "i", "-", "dataset file, - for stdin")
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 50, "maximum number of samples, 0 for all")
	cmd.Flags().IntVarP(&f.blockSize, "block-size", "b", utils.DEFAULT_BATCH_SIZE, "sentences per model call")
	cmd.Flags().StringVar(&f.apiKey, "api-key", "", "model credential, defaults to the configured key")
	cmd.Flags().BoolVar(&f.fullBlocks, "full-blocks", false, "drop trailing samples that do not fill a block")
	cmd.Flags().BoolVar(&f.single, "single", false, "classify one sentence per model call instead of blocks")
	cmd.Flags().BoolVar(&f.pretty, "pretty", true, "indent the JSON summary")

	return cmd
}

func run(cmd *cobra.Command, f *flags) error {
	cfg, err := bootstrap.LoadConfig(os.Getenv("APP_ENV"))
	if err != nil {
		return err
	}
	logging.InitLoggerTo(cmd.ErrOrStderr(), cfg.LogLevel)

	credential := strings.TrimSpace(f.apiKey)
	if credential == "" {
		credential = cfg.DefaultCredential()
	}
	if credential == "" {
		return fmt.Errorf("missing model API key: pass --api-key or set MODEL_API_KEY/GEMINI_API_KEY")
	}

	in, closeIn, err := openInput(cmd, f.input)
	if err != nil {
		return err
	}
	defer closeIn()

	samples, err := evaluation.ReadSamples(in, f.limit)
	if err != nil {
		return err
	}

	stack, err := bootstrap.NewStack(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := evaluation.Evaluate(ctx, stack.Classifier, samples, evaluation.Options{
		Model:          clients.ModelName(cfg.Provider, cfg.Model),
		BlockSize:      f.blockSize,
		Credential:     credential,
		FullBlocksOnly: f.fullBlocks,
		Single:         f.single,
	})
	if err != nil {
		return err
	}

	slog.Info("[Evaluate] Done",
		slog.Int("total", summary.Total),
		slog.Int("correct", summary.Correct),
		slog.Float64("accuracy", summary.Accuracy))

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	if f.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(summary)
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open dataset: %w", err)
	}
	return file, func() { _ = file.Close() }, nil
}
