// Package main provides the prism CLI: pipeline runs, tree rendering, and
// the explorer server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/prism/internal/checkpoint"
	"github.com/thebtf/prism/internal/cluster"
	"github.com/thebtf/prism/internal/config"
	"github.com/thebtf/prism/internal/explorer"
	"github.com/thebtf/prism/internal/genai"
	"github.com/thebtf/prism/internal/kmeans"
	"github.com/thebtf/prism/internal/metacluster"
	"github.com/thebtf/prism/internal/pipeline"
	"github.com/thebtf/prism/internal/projection"
	"github.com/thebtf/prism/internal/summarizer"
	"github.com/thebtf/prism/pkg/models"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		runCmd(os.Args[2:])
	case "tree":
		treeCmd(os.Args[2:])
	case "serve":
		serveCmd(os.Args[2:])
	case "version":
		fmt.Println(Version)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: prism <command> [flags]

Commands:
  run     Run the clustering pipeline over a conversation dump
  tree    Render the cluster hierarchy from checkpoints
  serve   Serve the explorer UI over checkpoints
  version Print the version`)
}

func setupLogging(debug bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true})
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("Received shutdown signal")
		cancel()
	}()
	return ctx, cancel
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	return cfg
}

func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "prism.yaml", "Config file path")
	input := fs.String("input", "", "Conversation dump path (required)")
	format := fs.String("format", "claude", "Dump format: claude or chatgpt")
	override := fs.Bool("override", false, "Clear existing checkpoints before running")
	debug := fs.Bool("debug", false, "Enable debug logging")
	_ = fs.Parse(args)
	setupLogging(*debug)

	if *input == "" {
		log.Fatal().Msg("--input is required")
	}
	cfg := loadConfig(*configPath)

	var conversations []models.Conversation
	var err error
	switch *format {
	case "claude":
		conversations, err = models.LoadClaudeDump(*input)
	case "chatgpt":
		conversations, err = models.LoadChatGPTDump(*input)
	default:
		log.Fatal().Str("format", *format).Msg("Unknown dump format")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load conversations")
	}
	log.Info().Int("conversations", len(conversations)).Msg("Loaded conversation dump")

	apiKey, err := config.APIKey()
	if err != nil {
		log.Fatal().Err(err).Msg("Missing API credentials")
	}

	store := checkpoint.Disabled()
	if !cfg.Checkpoints.Disabled {
		store, err = checkpoint.Open(cfg.Checkpoints.Dir, *override || cfg.Checkpoints.Override)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open checkpoint store")
		}
	}

	var cache genai.EmbeddingCache
	if cfg.Cache.RedisAddr != "" {
		redisCache := genai.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.TTL.Std())
		defer redisCache.Close()
		cache = redisCache
	}

	client := genai.NewClient(apiKey, cfg.Models.Summary)
	embedder := genai.NewEmbeddingClient(apiKey, cfg.Models.Embedding, cache)

	generator, err := genai.NewSummaryGenerator(client)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build summary generator")
	}
	summarize := summarizer.NewModel(generator, summarizer.WithMaxConcurrent(cfg.Clustering.MaxConcurrent))

	method := kmeans.New()
	method.ClustersPerGroup = cfg.Clustering.ClustersPerGroup
	method.Seed = cfg.Clustering.Seed
	clusterer := cluster.NewModel(embedder, genai.NewLabeler(client), method, cluster.Config{
		MaxConcurrent:       cfg.Clustering.MaxConcurrent,
		ContrastiveExamples: cfg.Clustering.ContrastiveExamples,
		Seed:                cfg.Clustering.Seed,
	})

	reducer := metacluster.NewReducer(metacluster.NewGenerativeModel(embedder, genai.NewMetaLabeler(client), metacluster.Options{
		MaxClusters:   cfg.Clustering.MaxClusters,
		MaxConcurrent: cfg.Clustering.MaxConcurrent,
		Seed:          cfg.Clustering.Seed,
	}))
	projector := projection.NewModel(embedder, cfg.Clustering.MaxConcurrent)

	ctx, cancel := signalContext()
	defer cancel()

	p := pipeline.New(store, summarize, clusterer, reducer, projector)
	projected, err := p.Run(ctx, conversations)
	if err != nil {
		log.Fatal().Err(err).Msg("Pipeline failed")
	}

	clusters := make([]models.Cluster, len(projected))
	for i, pc := range projected {
		clusters[i] = pc.Cluster
	}
	rendered, err := pipeline.RenderTree(clusters)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to render cluster tree")
	}
	fmt.Print(rendered)
}

func treeCmd(args []string) {
	fs := flag.NewFlagSet("tree", flag.ExitOnError)
	configPath := fs.String("config", "prism.yaml", "Config file path")
	debug := fs.Bool("debug", false, "Enable debug logging")
	_ = fs.Parse(args)
	setupLogging(*debug)

	cfg := loadConfig(*configPath)
	store, err := checkpoint.Open(cfg.Checkpoints.Dir, false)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open checkpoint store")
	}

	clusters, err := checkpoint.Load[models.Cluster](store, checkpoint.MetaClustersFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load clusters")
	}
	if len(clusters) == 0 {
		clusters, err = checkpoint.Load[models.Cluster](store, checkpoint.ClustersFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load clusters")
		}
	}
	if len(clusters) == 0 {
		log.Fatal().Str("dir", cfg.Checkpoints.Dir).Msg("No cluster checkpoints found; run the pipeline first")
	}

	rendered, err := pipeline.RenderTree(clusters)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to render cluster tree")
	}
	fmt.Print(rendered)
}

func serveCmd(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "prism.yaml", "Config file path")
	addr := fs.String("addr", "", "Listen address (overrides config)")
	debug := fs.Bool("debug", false, "Enable debug logging")
	_ = fs.Parse(args)
	setupLogging(*debug)

	cfg := loadConfig(*configPath)
	listenAddr := cfg.Explorer.ListenAddr
	if *addr != "" {
		listenAddr = *addr
	}

	store, err := explorer.NewStore(explorer.StoreConfig{Path: cfg.Explorer.DBPath})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open explorer database")
	}
	defer store.Close()

	if err := explorer.LoadCheckpoints(store, cfg.Checkpoints.Dir); err != nil {
		log.Fatal().Err(err).Msg("Failed to load checkpoints")
	}

	watcher, err := explorer.NewWatcher(cfg.Checkpoints.Dir, func() {
		if err := explorer.LoadCheckpoints(store, cfg.Checkpoints.Dir); err != nil {
			log.Error().Err(err).Msg("Checkpoint reload failed")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create checkpoint watcher")
	}
	if err := watcher.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start checkpoint watcher")
	}
	defer watcher.Stop()

	ctx, cancel := signalContext()
	defer cancel()

	server := explorer.NewServer(store)
	if err := server.ListenAndServe(ctx, listenAddr); err != nil {
		log.Fatal().Err(err).Msg("Explorer server failed")
	}
}
