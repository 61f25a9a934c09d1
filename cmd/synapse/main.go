package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nidhogg/synapse/internal/api"
	"github.com/nidhogg/synapse/internal/config"
	"github.com/nidhogg/synapse/internal/discovery"
	"github.com/nidhogg/synapse/internal/engine"
	"github.com/nidhogg/synapse/internal/hebbian"
	"github.com/nidhogg/synapse/internal/knowledge"
	"github.com/nidhogg/synapse/internal/neurogenesis"
	"github.com/nidhogg/synapse/internal/research"
	"github.com/nidhogg/synapse/internal/scoring"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting Synapse...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/synapse.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Knowledge graph: Neo4j with an in-memory fallback so the engine can
	// run (without persistence) when the store is unreachable.
	var graph knowledge.Graph
	var neoStore *knowledge.Store
	neoStore, err = knowledge.NewStore(cfg.Database.Neo4j.URI, cfg.Database.Neo4j.User, cfg.Database.Neo4j.Password, logger)
	if err == nil {
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err = neoStore.Ping(pingCtx)
		pingCancel()
	}
	if err != nil {
		logger.Warn("Neo4j unavailable, running on in-memory graph", zap.Error(err))
		neoStore = nil
		graph = knowledge.NewMemGraph()
	} else {
		if cerr := neoStore.EnsureConstraints(ctx); cerr != nil {
			logger.Fatal("schema constraints failed", zap.Error(cerr))
		}
		graph = neoStore
	}

	// Concept lease for neurogenesis coordination.
	leaseTTL := time.Duration(cfg.Neurogenesis.LeaseTTLSec) * time.Second
	var lease neurogenesis.ConceptLease
	var redisLease *neurogenesis.RedisLease
	if cfg.Database.Redis.URL != "" {
		redisLease, err = neurogenesis.NewRedisLease(cfg.Database.Redis.URL, leaseTTL, logger)
		if err != nil {
			logger.Warn("Redis unavailable, using in-process leases", zap.Error(err))
		}
	}
	if redisLease != nil {
		lease = redisLease
	} else {
		lease = neurogenesis.NewMemLease(leaseTTL)
	}

	// Discovery
	disc := discovery.NewEngine(graph, discovery.Options{
		Weights: scoring.Weights{
			Capability:   cfg.Scoring.Capability,
			Domain:       cfg.Scoring.Domain,
			Learned:      cfg.Scoring.Learned,
			Performance:  cfg.Scoring.Performance,
			Availability: cfg.Scoring.Availability,
		},
		MinConfidence: cfg.Discovery.MinConfidence,
		MaxResults:    cfg.Discovery.MaxResults,
		StoreTimeout:  time.Duration(cfg.Discovery.StoreTimeoutMs) * time.Millisecond,
	}, logger)

	// Hebbian adaptation
	adapter := hebbian.NewAdapter(graph, hebbian.Config{
		Reward:        cfg.Hebbian.Reward,
		Penalty:       cfg.Hebbian.Penalty,
		DecayRate:     cfg.Hebbian.DecayRate,
		SweepInterval: time.Duration(cfg.Hebbian.SweepIntervalSec) * time.Second,
	}, logger)
	sweeper := hebbian.NewSweeper(adapter, logger)
	go sweeper.Run(ctx)

	// Neurogenesis
	researcher := research.NewClient(time.Duration(cfg.Neurogenesis.PerSourceTimeoutSec)*time.Second, logger)
	provisioner := neurogenesis.NewHTTPProvisioner(cfg.Neurogenesis.ProvisionerURL,
		time.Duration(cfg.Neurogenesis.ProvisionTimeoutSec)*time.Second, logger)
	pipeline := neurogenesis.NewPipeline(graph, researcher, provisioner, lease, neurogenesis.Options{
		MaxSources:       cfg.Neurogenesis.MaxSources,
		ParallelResearch: cfg.Neurogenesis.ParallelResearch,
		ResearchTimeout:  time.Duration(cfg.Neurogenesis.ResearchTimeoutSec) * time.Second,
		PerSourceTimeout: time.Duration(cfg.Neurogenesis.PerSourceTimeoutSec) * time.Second,
		MinFragmentConf:  cfg.Neurogenesis.MinFragmentConf,
		ProvisionTimeout: time.Duration(cfg.Neurogenesis.ProvisionTimeoutSec) * time.Second,
	}, logger)

	// Coordinator
	coordinator := engine.NewCoordinator(graph, disc, pipeline, adapter, 256, logger)
	go coordinator.Run(ctx)

	// Bootstrap static agents from config.
	static := make([]engine.StaticAgent, len(cfg.Agents))
	for i, a := range cfg.Agents {
		static[i] = engine.StaticAgent{
			Name:         a.Name,
			Endpoint:     a.Endpoint,
			Capabilities: a.Capabilities,
			Region:       a.Region,
			Concepts:     a.Concepts,
		}
	}
	if err := coordinator.Bootstrap(ctx, static); err != nil {
		logger.Fatal("bootstrap failed", zap.Error(err))
	}

	// Build HTTP handler
	handler := api.NewHandler(coordinator, graph, adapter, logger)

	// Start server
	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Synapse listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Synapse...")
	cancel()
	shutdownCtx := context.Background()
	srv.Shutdown(shutdownCtx)
	if neoStore != nil {
		neoStore.Close(shutdownCtx)
	}
	if redisLease != nil {
		redisLease.Close()
	}
}
