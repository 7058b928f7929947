package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ragagent/config"
	"ragagent/loader/internal"
	"ragagent/loader/service"
	"ragagent/model"
	"ragagent/store"
)

var (
	corpusDir string
	force     bool
	batchSize int
)

var rootCmd = &cobra.Command{
	Use:   "loader",
	Short: "Build and inspect the documentation index",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file, using process environment")
		}
		return nil
	},
}

func init() {
	build := &cobra.Command{
		Use:   "build",
		Short: "Chunk, embed and persist the corpus",
		RunE:  runBuild,
	}
	build.Flags().StringVarP(&corpusDir, "corpus", "c", "./data/raw", "Directory with .md/.txt files and an optional corpus.yaml")
	build.Flags().BoolVar(&force, "force", false, "Replace the existing index")
	build.Flags().IntVar(&batchSize, "batch-size", service.DefaultBatchSize, "Chunks per embedding request")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show parent and child counts",
		RunE:  runStats,
	}

	rootCmd.AddCommand(build, stats)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func setup(ctx context.Context) (*config.Config, *store.Backends, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))

	backends, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, backends, nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, backends, err := setup(ctx)
	if err != nil {
		return err
	}
	defer backends.Close()

	embedder, err := model.NewEmbedder(ctx, cfg)
	if err != nil {
		return err
	}

	docs, err := internal.LoadCorpus(corpusDir)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no .md or .txt files in %s", corpusDir)
	}

	report, err := service.New(backends.Index, embedder, service.WithBatchSize(batchSize)).Build(ctx, docs, force)
	if err != nil {
		return err
	}
	return printJSON(report)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	_, backends, err := setup(ctx)
	if err != nil {
		return err
	}
	defer backends.Close()

	stats, err := backends.Index.Stats(ctx)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"exists":       stats.Exists(),
		"parent_count": stats.Parents,
		"child_count":  stats.Children,
	})
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
