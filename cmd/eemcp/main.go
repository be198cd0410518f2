package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Dhenenjay/earth-engine-mcp/internal/artifacts"
	"github.com/Dhenenjay/earth-engine-mcp/internal/config"
	"github.com/Dhenenjay/earth-engine-mcp/internal/degrade"
	"github.com/Dhenenjay/earth-engine-mcp/internal/ee"
	"github.com/Dhenenjay/earth-engine-mcp/internal/geometry"
	"github.com/Dhenenjay/earth-engine-mcp/internal/logging"
	"github.com/Dhenenjay/earth-engine-mcp/internal/router"
	"github.com/Dhenenjay/earth-engine-mcp/internal/server"
	"github.com/Dhenenjay/earth-engine-mcp/internal/tasks"
)

var (
	// Global flags
	configPath string
	verbose    bool

	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "eemcp",
	Short: "eemcp - Earth Engine façade server",
	Long: `eemcp exposes Earth Engine workflows as a small set of named operations
over line-delimited JSON on stdin/stdout.

Four tool groups are served:
  earth_engine_data     catalog search, collection filtering, geometry lookup
  earth_engine_process  composites, spectral indices, masking, models
  earth_engine_export   Drive exports, task status, thumbnails, tiles
  earth_engine_system   auth status, capabilities, help

Run "eemcp serve" to start the request loop.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		if err := logging.Initialize(level, cfg.Logging.Format); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	SilenceUsage: true,
}

// serveCmd runs the stdio request loop until EOF or a signal.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve operations over stdin/stdout",
	RunE:  runServe,
}

// callCmd executes one operation from the command line, for scripting and
// smoke tests without a driving client.
var callCmd = &cobra.Command{
	Use:   "call [tool] [operation]",
	Short: "Execute a single operation and print the JSON response",
	Long: `Executes one operation outside the serve loop.

Example:
  eemcp call earth_engine_data search_catalog --args '{"query":"sentinel"}'`,
	Args: cobra.ExactArgs(2),
	RunE: runCall,
}

// resolveCmd resolves a place name to a boundary, bypassing the router.
var resolveCmd = &cobra.Command{
	Use:   "resolve [place]",
	Short: "Resolve a place name to an administrative boundary",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("eemcp %s\n", cfg.Version)
	},
}

var callArgs string

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	callCmd.Flags().StringVar(&callArgs, "args", "{}", "operation arguments as JSON")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// buildRouter wires the full stack: REST client, artifact store, resolver,
// degradation controller and the export journal.
func buildRouter(ctx context.Context) (*router.Router, *tasks.Journal, ee.Client, error) {
	httpTimeout, err := cfg.HTTPTimeout()
	if err != nil {
		return nil, nil, nil, err
	}

	client, err := ee.NewRESTClient(ctx, ee.RESTOptions{
		KeyFile:     cfg.Auth.KeyFile,
		Project:     cfg.Auth.Project,
		BaseURL:     cfg.Backend.BaseURL,
		HTTPTimeout: httpTimeout,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build backend client: %w", err)
	}

	var opts []artifacts.Option
	if cfg.Store.MaxEntries > 0 {
		opts = append(opts, artifacts.WithMaxEntries(cfg.Store.MaxEntries))
	}
	store := artifacts.NewStore(opts...)

	resolver := geometry.NewResolver(client, nil)

	ladder, err := ladderFromConfig(cfg.Degrade.Rungs)
	if err != nil {
		return nil, nil, nil, err
	}
	degrader, err := degrade.NewController(client, ladder)
	if err != nil {
		return nil, nil, nil, err
	}

	journal, err := tasks.OpenJournal(cfg.Export.JournalPath)
	if err != nil {
		// The journal is a convenience; exports still work without it.
		logging.Warnf(logging.CategoryBoot, "export journal unavailable: %v", err)
		journal = nil
	}

	return router.New(client, store, resolver, degrader, journal, cfg), journal, client, nil
}

// ladderFromConfig turns config rungs into a validated ladder. Empty config
// means the built-in default ladder.
func ladderFromConfig(rungs []config.RungConfig) ([]degrade.Rung, error) {
	if len(rungs) == 0 {
		return nil, nil
	}
	out := make([]degrade.Rung, 0, len(rungs))
	for i, rc := range rungs {
		budget, err := time.ParseDuration(rc.Budget)
		if err != nil {
			return nil, fmt.Errorf("invalid degrade.rungs[%d].budget: %w", i, err)
		}
		form := degrade.RegionForm(rc.RegionForm)
		if form != degrade.RegionExact && form != degrade.RegionBoundingBox {
			return nil, fmt.Errorf("invalid degrade.rungs[%d].region_form: %q", i, rc.RegionForm)
		}
		out = append(out, degrade.Rung{
			MaxDimensions: rc.MaxDimensions,
			RegionForm:    form,
			Budget:        budget,
		})
	}
	return out, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, journal, client, err := buildRouter(ctx)
	if err != nil {
		return err
	}
	if journal != nil {
		defer journal.Close()

		interval, err := cfg.PollInterval()
		if err != nil {
			return err
		}
		go tasks.NewPoller(client, journal, interval).Run(ctx)
	}

	logging.Infof(logging.CategoryBoot, "eemcp %s serving on stdio (project=%s)", cfg.Version, cfg.Auth.Project)
	return server.New(r, os.Stdout).Run(ctx, os.Stdin)
}

func runCall(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, journal, _, err := buildRouter(ctx)
	if err != nil {
		return err
	}
	if journal != nil {
		defer journal.Close()
	}

	var opArgs map[string]any
	if err := json.Unmarshal([]byte(callArgs), &opArgs); err != nil {
		return fmt.Errorf("invalid --args: %w", err)
	}
	if opArgs == nil {
		opArgs = map[string]any{}
	}
	opArgs["operation"] = args[1]

	resp := r.Handle(ctx, args[0], opArgs)
	return printJSON(resp)
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpTimeout, err := cfg.HTTPTimeout()
	if err != nil {
		return err
	}
	client, err := ee.NewRESTClient(ctx, ee.RESTOptions{
		KeyFile:     cfg.Auth.KeyFile,
		Project:     cfg.Auth.Project,
		BaseURL:     cfg.Backend.BaseURL,
		HTTPTimeout: httpTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to build backend client: %w", err)
	}

	resolver := geometry.NewResolver(client, nil)
	resolved, err := resolver.Resolve(ctx, geometry.Query{
		PlaceName:      args[0],
		AdminLevelHint: -1,
	})
	if err != nil {
		return err
	}

	return printJSON(map[string]any{
		"place_name":     resolved.PlaceName,
		"area_km2":       resolved.AreaKm2,
		"admin_level":    resolved.AdminLevel,
		"source_dataset": resolved.SourceDataset,
		"bbox": []float64{
			resolved.Bound.Min[0], resolved.Bound.Min[1],
			resolved.Bound.Max[0], resolved.Bound.Max[1],
		},
	})
}

func printJSON(v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}
