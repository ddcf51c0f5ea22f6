package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/five82/mbdeck/internal/api"
	"github.com/five82/mbdeck/internal/app"
	"github.com/five82/mbdeck/internal/config"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(viper.New()).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "mbdeck: %v\n", err)
		return 1
	}
	return 0
}

// newRootCmd builds the command tree. Flags can also be set through
// MBDECK_* environment variables, e.g. MBDECK_API=10.0.0.5:8080.
func newRootCmd(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:           "mbdeck",
		Short:         "Terminal console for a Modbus slave simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), app.Options{
				ConfigPath: v.GetString("config"),
				PrefsPath:  v.GetString("prefs"),
				PollEvery:  v.GetInt("poll"),
				APIBind:    v.GetString("api"),
				Direct:     v.GetString("direct"),
			})
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path (default ~/.config/mbdeck/config.toml)")
	flags.String("api", "", "simulator API address, overrides api_bind")
	root.Flags().Int("poll", 0, "safety poll interval in seconds (default 2)")
	root.Flags().String("prefs", "", "preferences file path (default ~/.config/mbdeck/prefs.toml)")
	root.Flags().String("direct", "", "talk Modbus TCP to this address instead of the HTTP API")

	v.SetEnvPrefix("MBDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(flags)
	_ = v.BindPFlags(root.Flags())

	root.AddCommand(newVersionCmd(), newHistoryCmd(v))
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mbdeck version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mbdeck %s\n", version)
		},
	}
}

func newHistoryCmd(v *viper.Viper) *cobra.Command {
	history := &cobra.Command{
		Use:   "history",
		Short: "Work with the simulator's change history",
	}

	export := &cobra.Command{
		Use:   "export",
		Short: "Export the change history to a file, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, _ := cmd.Flags().GetString("format")
			limit, _ := cmd.Flags().GetInt("limit")
			out, _ := cmd.Flags().GetString("out")

			cfg, err := config.Load(v.GetString("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if bind := strings.TrimSpace(v.GetString("api")); bind != "" {
				cfg.APIBind = bind
			}
			client, err := api.NewClient(cfg.APIBind)
			if err != nil {
				return fmt.Errorf("init api client: %w", err)
			}
			return exportHistory(cmd.Context(), client, cmd.OutOrStdout(), format, limit, out)
		},
	}
	export.Flags().String("format", api.FormatJSON, "output format: json or yaml")
	export.Flags().Int("limit", 1000, "maximum number of records to fetch")
	export.Flags().String("out", "", "output file (default mbdeck_history_<millis>.<format>, - for stdout)")

	history.AddCommand(export)
	return history
}

type historyFetcher interface {
	FetchHistory(ctx context.Context, limit int) ([]api.HistoryRecord, error)
}

func exportHistory(ctx context.Context, svc historyFetcher, stdout io.Writer, format string, limit int, out string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", api.FormatJSON:
		format = api.FormatJSON
	case api.FormatYAML, "yml":
		format = api.FormatYAML
	default:
		return fmt.Errorf("unsupported format %q (want json or yaml)", format)
	}

	records, err := svc.FetchHistory(ctx, limit)
	if err != nil {
		return fmt.Errorf("fetch history: %w", err)
	}
	api.SortHistoryNewestFirst(records)

	if out == "-" {
		return api.ExportHistory(stdout, records, format)
	}
	if out == "" {
		out = api.ExportFileName(format, time.Now())
	}
	if dir := filepath.Dir(out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := api.ExportHistory(f, records, format); err != nil {
		_ = f.Close()
		return fmt.Errorf("write export: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(stdout, "exported %d records to %s\n", len(records), out)
	return nil
}
