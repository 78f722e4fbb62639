package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"marketplace/categorizer/internal/config"
	"marketplace/categorizer/internal/container"
	"marketplace/categorizer/internal/domain"
	"marketplace/categorizer/internal/service"
	"marketplace/categorizer/internal/taxonomy"

	json "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "categorizer",
		Short:         "Assign products to marketplace leaf categories",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.yaml)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(categorizeCmd())
	rootCmd.AddCommand(shortlistCmd())
	rootCmd.AddCommand(buildTaxonomyCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Errorf("❌ %v", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.ConfigureLogging()
	log.Info("Configuration loaded successfully")
	return cfg, nil
}

// newApp builds the container. Offline commands never touch Redis or Postgres.
func newApp(ctx context.Context, offline bool) (*container.Container, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if offline {
		cfg.Redis.Enabled = false
		cfg.Database.Enabled = false
	}
	return container.New(ctx, cfg)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func serveCmd() *cobra.Command {
	var withWorkers bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			log.Info("Starting category resolver API...")
			app, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.Serve(ctx, withWorkers)
		},
	}

	cmd.Flags().BoolVar(&withWorkers, "workers", false, "also process queued jobs (requires redis)")
	return cmd
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Process queued categorization jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			app, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer app.Close()

			return app.RunWorkers(ctx)
		},
	}
}

func categorizeCmd() *cobra.Command {
	var (
		productFile       string
		product           domain.Product
		marketplace       string
		includeConfidence bool
	)

	cmd := &cobra.Command{
		Use:   "categorize",
		Short: "Categorize one product and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if productFile != "" {
				data, err := os.ReadFile(productFile)
				if err != nil {
					return fmt.Errorf("failed to read product: %w", err)
				}
				if err := json.Unmarshal(data, &product); err != nil {
					return fmt.Errorf("failed to decode product: %w", err)
				}
			}

			ctx, cancel := signalContext()
			defer cancel()

			app, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer app.Close()

			resp, err := app.Resolver.Resolve(ctx, product, service.Options{
				Marketplace:       marketplace,
				IncludeConfidence: includeConfidence,
			})
			if err != nil {
				return err
			}
			return printJSON(resp)
		},
	}

	cmd.Flags().StringVarP(&productFile, "file", "f", "", "product JSON file")
	cmd.Flags().StringVar(&product.SKU, "sku", "", "product sku")
	cmd.Flags().StringVar(&product.Name, "name", "", "product name")
	cmd.Flags().StringVar(&product.Brand, "brand", "", "product brand")
	cmd.Flags().StringVar(&product.Description, "description", "", "product description")
	cmd.Flags().StringVarP(&marketplace, "marketplace", "m", "", "only this marketplace")
	cmd.Flags().BoolVar(&includeConfidence, "include-confidence", false, "ask the oracle for a confidence")
	return cmd
}

func shortlistCmd() *cobra.Command {
	var k int

	cmd := &cobra.Command{
		Use:   "shortlist [marketplace] [query]",
		Short: "Fuzzy-match a query against one marketplace taxonomy",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			app, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer app.Close()

			catalog := app.Resolver.Catalog()
			mp, ok := catalog.Find(args[0])
			if !ok {
				return fmt.Errorf("%w: %s", service.ErrUnknownMarketplace, args[0])
			}

			candidates, err := catalog.Shortlist(mp, strings.Join(args[1:], " "), k)
			if err != nil {
				return err
			}
			for _, c := range candidates {
				fmt.Printf("%3d  %-12s %s\n", c.Match, c.ID, c.Path)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "k", "k", 20, "number of candidates")
	return cmd
}

func buildTaxonomyCmd() *cobra.Command {
	var (
		input     string
		output    string
		rootLabel string
		strict    bool
	)

	cmd := &cobra.Command{
		Use:   "build-taxonomy",
		Short: "Nest a flat code/parent_code export into a taxonomy tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := taxonomy.BuildFile(input, output, rootLabel, strict)
			return err
		},
	}

	cmd.Flags().StringVarP(&input, "in", "i", "", "flat export (JSON or YAML)")
	cmd.Flags().StringVarP(&output, "out", "o", "", "output tree JSON")
	cmd.Flags().StringVar(&rootLabel, "root-label", "Root", "label of the synthetic root")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on records whose parent is missing")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
