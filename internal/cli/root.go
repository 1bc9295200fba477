package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"media-catalog/internal/logging"
	"media-catalog/internal/memory"
	"media-catalog/internal/startup"
)

// Output formats accepted by --format.
const (
	formatText = "text"
	formatJSON = "json"
)

type options struct {
	configFile string
	format     string
}

// NewRootCmd builds the media-catalog command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "media-catalog",
		Short:         "Index media trees, detect faces and group them by identity",
		Version:       startup.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.format != formatText && opts.format != formatJSON {
				return fmt.Errorf("unknown output format %q (want text or json)", opts.format)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "YAML config file (default: $CONFIG_FILE)")
	root.PersistentFlags().StringVarP(&opts.format, "format", "f", formatText, "Output format: text or json")

	root.AddCommand(
		newScanCmd(opts),
		newReprocessCmd(opts),
		newClusterCmd(opts),
		newGroupsCmd(opts),
		newFacesCmd(opts),
		newSessionsCmd(opts),
		newServeCmd(opts),
		newVersionCmd(opts),
	)
	return root
}

// Execute runs the CLI and returns the process exit code. SIGINT and
// SIGTERM cancel the command context; serve installs its own handler.
func Execute() int {
	memory.ConfigureLimit()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig loads configuration without the startup banner. One-shot
// commands log at warn unless LOG_LEVEL or DEBUG asks for more.
func loadConfig(opts *options) (*startup.Config, error) {
	cfg, err := startup.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	switch {
	case os.Getenv("DEBUG") != "":
	case os.Getenv("LOG_LEVEL") != "":
		if level, ok := logging.ParseLevel(cfg.LogLevel); ok {
			logging.SetLevel(level)
		}
	default:
		logging.SetLevel(logging.LevelWarn)
	}
	return cfg, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
