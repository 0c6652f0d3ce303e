package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Yates-Labs/partimento/internal/chain"
	"github.com/Yates-Labs/partimento/internal/composer"
	"github.com/Yates-Labs/partimento/internal/config"
	"github.com/Yates-Labs/partimento/internal/llm"
	"github.com/Yates-Labs/partimento/internal/notation"
	"github.com/Yates-Labs/partimento/internal/orchestrator"
	"github.com/Yates-Labs/partimento/internal/prompt"
)

var (
	cfgFile string
	cfg     config.Config
	logger  = slog.New(slog.NewTextHandler(os.Stderr, nil))
)

var rootCmd = &cobra.Command{
	Use:   "partimento",
	Short: "Partimento - LLM-driven figured-bass composition chains",
	Long: `Partimento generates figured-bass exercises with a language model, has the
model review and patch them, realizes them in four parts and exports the
results as MusicXML, MIDI and audio.

Every run writes versioned JSON artifacts into a chain directory together
with a metadata.json manifest describing what was produced.

Required environment variables (one, depending on --provider):
  OPENAI_API_KEY     - OpenAI API key
  ANTHROPIC_API_KEY  - Anthropic API key

Optional:
  GITHUB_TOKEN       - token for push-chain and list-realizations`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command
func Execute() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		stop()
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: ./partimento.yaml or ~/.config/partimento/partimento.yaml)")
	pf.String("provider", "", "LLM provider: openai or anthropic")
	pf.String("model", "", "LLM model identifier")
	pf.Float64("temperature", 0, "Sampling temperature (0-2)")
	pf.String("output-root", "", "Root directory for generated output")
	pf.String("style", "", "Style card used for generation")
	pf.String("log-level", "", "Log level: debug, info, warn or error")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	v := viper.New()
	if err := config.BindFlags(v, cmd.Root().PersistentFlags()); err != nil {
		return err
	}
	c, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	cfg = c
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	if cfg.File != "" {
		logger.Debug("config loaded", "file", cfg.File)
	}
	return nil
}

// newOrchestrator wires the configured model, style card and exporters.
func newOrchestrator() (*orchestrator.Orchestrator, error) {
	model, err := llm.New(cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	cards, err := prompt.LoadStyleCards(cfg.StyleCards)
	if err != nil {
		return nil, err
	}
	card, err := cards.Lookup(cfg.Style)
	if err != nil {
		return nil, err
	}
	comp := composer.New(model, composer.WithStyle(card), composer.WithLogger(logger))
	return orchestrator.New(comp, orchestratorOptions()...), nil
}

// newOfflineOrchestrator serves commands that never call the model.
func newOfflineOrchestrator() *orchestrator.Orchestrator {
	return orchestrator.New(nil, orchestratorOptions()...)
}

func orchestratorOptions() []orchestrator.Option {
	return []orchestrator.Option{
		orchestrator.WithResolver(chain.NewResolver(cfg.OutputRoot)),
		orchestrator.WithExporter(notation.NewExporter(logger)),
		orchestrator.WithAudio(notation.NewAudioConverter(cfg.AudioTool)),
		orchestrator.WithLogger(logger),
	}
}
