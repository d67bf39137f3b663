// Package cli implements the drata command line tool.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sternrassler/drata-client/pkg/logging"
)

// app carries state shared by the commands of one root command.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *Config
	logger  zerolog.Logger
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "drata",
		Short: "Drata compliance API client",
		Long: `drata runs Drata resource operations and polls Drata for compliance
events such as expiring evidence, overdue training or pending policy
acknowledgments.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: drata.yaml in ., ./config or $HOME/.drata)")
	flags.String("api-key", "", "Drata API key (env DRATA_API_KEY)")
	flags.String("base-url", "", "Drata API base URL (env DRATA_BASE_URL)")
	flags.String("redis-url", "", "Redis URL for trigger watermarks (env DRATA_REDIS_URL)")
	flags.String("workflow-id", "", "workflow id used in watermark keys (env DRATA_WORKFLOW_ID)")
	flags.String("log-level", "", "log level: debug, info, warn, error (env DRATA_LOG_LEVEL)")
	flags.Bool("log-pretty", false, "human readable log output")

	for key, flag := range map[string]string{
		"api_key":     "api-key",
		"base_url":    "base-url",
		"redis_url":   "redis-url",
		"workflow_id": "workflow-id",
		"log_level":   "log-level",
		"log_pretty":  "log-pretty",
	} {
		if err := a.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", flag, err))
		}
	}

	rootCmd.AddCommand(newCallCommand(a))
	rootCmd.AddCommand(newPollCommand(a))
	rootCmd.AddCommand(newWatchCommand(a))
	rootCmd.AddCommand(newTestCredentialsCommand(a))
	rootCmd.AddCommand(newOperationsCommand())
	rootCmd.AddCommand(newEventsCommand())

	return rootCmd
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func (a *app) load() error {
	cfg, err := LoadConfig(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	logging.Setup(cfg.LoggingConfig())
	a.cfg = cfg
	a.logger = logging.NewLogger("cli")
	return nil
}

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
