// Command server wires every adapter and application service into the
// HTTP API process: load config, build infrastructure clients, construct
// the application layer, register every command/query handler on the
// mediator, and serve. Grounded on backend's cmd/api/main.go (config load
// -> container init -> router -> ListenAndServe -> signal-driven graceful
// shutdown), generalized from that DI-container pattern to explicit
// wiring since this module has no google/wire generation step.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/groundgraph/engine/application/commands"
	"github.com/groundgraph/engine/application/mediator"
	"github.com/groundgraph/engine/application/ports"
	"github.com/groundgraph/engine/application/queries"
	"github.com/groundgraph/engine/application/services"
	engineconfig "github.com/groundgraph/engine/infrastructure/config"
	"github.com/groundgraph/engine/domain/core/entities"
	"github.com/groundgraph/engine/domain/core/valueobjects"
	domainsvc "github.com/groundgraph/engine/domain/services"
	"github.com/groundgraph/engine/infrastructure/observability"
	"github.com/groundgraph/engine/infrastructure/persistence/dynamodb"
	"github.com/groundgraph/engine/infrastructure/persistence/postgres"
	"github.com/groundgraph/engine/infrastructure/providers/anthropic"
	"github.com/groundgraph/engine/infrastructure/providers/embedding"
	"github.com/groundgraph/engine/infrastructure/queue/redis"
	"github.com/groundgraph/engine/infrastructure/scheduler"
	"github.com/groundgraph/engine/infrastructure/secrets"
	engineHTTP "github.com/groundgraph/engine/interfaces/http"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := engineconfig.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	pgPool, err := postgres.NewPool(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConnections, cfg.Postgres.ConnectTimeout)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pgPool.Close()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.DynamoDB.Region))
	if err != nil {
		logger.Fatal("failed to load AWS config", zap.Error(err))
	}
	dynamoClient := awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.DynamoDB.Endpoint != "" {
			o.BaseEndpoint = &cfg.DynamoDB.Endpoint
		}
	})
	graph := dynamodb.NewStore(dynamoClient, cfg.DynamoDB.TableName, cfg.DynamoDB.IndexName)
	ontologies := dynamodb.NewOntologyStore(graph)

	redisClient, err := redis.NewClient(ctx, redis.Config{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	cache := redis.NewCache(redisClient)
	eventBus := redis.NewEventBus(redisClient)
	graph.WithHotViewCache(cache)

	configStore := postgres.NewConfigStore(pgPool)
	jobQueue := postgres.NewJobQueue(pgPool, eventBus)
	advisoryLocker := postgres.NewAdvisoryLocker(pgPool)
	scheduledTasks := postgres.NewScheduledTaskStore(pgPool)
	annealingProposals := postgres.NewAnnealingProposalStore(pgPool)
	sourceEmbeddings := postgres.NewSourceEmbeddingStore(pgPool)
	vocabRegistry := postgres.NewVocabRegistry(pgPool)
	skippedRelationships := postgres.NewSkippedRelationshipStore(pgPool)

	secretboxKey, err := loadSecretboxKey(cfg)
	if err != nil {
		logger.Fatal("failed to load secretbox key", zap.Error(err))
	}
	vault := secrets.NewVault(configStore, secretboxKey, cfg.DevelopmentMode, "GROUNDGRAPH_SECRET_")

	embeddingAPIKey, err := vault.Get(ctx, cfg.Embedding.Provider)
	if err != nil {
		logger.Fatal("failed to resolve embedding provider credential", zap.Error(err))
	}
	embeddingProvider, err := embedding.NewProvider(embedding.Config{
		APIKey: string(embeddingAPIKey),
		Model:  cfg.Embedding.Model,
	}, cfg.Embedding.Dimension)
	if err != nil {
		logger.Fatal("failed to build embedding provider", zap.Error(err))
	}

	aiAPIKey, err := vault.Get(ctx, cfg.AI.Provider)
	if err != nil {
		logger.Fatal("failed to resolve reasoning provider credential", zap.Error(err))
	}
	reasoningProvider := anthropic.NewProvider(anthropic.Config{
		APIKey: string(aiAPIKey),
		Model:  cfg.AI.Model,
	})

	embeddingService := services.NewEmbeddingService(embeddingProvider, configStore, graph, vocabRegistry, logger).
		WithSourceEmbeddingStore(sourceEmbeddings)

	if _, err := embeddingService.InitializeBuiltinVocabulary(ctx); err != nil {
		logger.Fatal("failed to seed builtin vocabulary", zap.Error(err))
	}
	seeds, err := buildClassifierSeeds(ctx, vocabRegistry)
	if err != nil {
		logger.Fatal("failed to load vocabulary seeds", zap.Error(err))
	}

	eventCounters := services.NewEventCounters()

	vocabEngine := services.NewVocabularyEngine(vocabRegistry, graph, reasoningProvider, seeds, logger).
		WithEventCounters(eventCounters)
	groundingEngine := services.NewGroundingEngine(graph, vocabRegistry, cache, logger)
	polarityService := services.NewPolarityQueryService(graph, vocabRegistry, groundingEngine)

	ingestionPipeline := services.NewIngestionPipeline(
		graph, vocabRegistry, embeddingService, sourceEmbeddings, reasoningProvider, jobQueue,
		services.IngestionConfig{
			TargetWords:         cfg.Ingest.TargetWords,
			OverlapWords:        cfg.Ingest.OverlapWords,
			AutoApprove:         cfg.Ingest.AutoApprove,
			CostThresholdChunks: cfg.Ingest.CostThresholdChunks,
			MergeSimilarity:     cfg.Merge.SimilarityThreshold,
		},
		logger,
	).WithSkippedRelationshipStore(skippedRelationships).WithEventCounters(eventCounters)

	annealingManager := services.NewAnnealingManager(
		ontologies, annealingProposals, reasoningProvider, graph,
		services.AnnealingConfig{
			IntervalEpochs: cfg.Annealing.IntervalEpochs,
			Automation:     services.AutomationLevel(cfg.Annealing.Automation),
			MaxProposals:   cfg.Annealing.MaxProposals,
		},
		logger,
	)

	schedulerService := services.NewSchedulerService(scheduledTasks, jobQueue, advisoryLocker, cfg.Scheduler.AdvisoryLockKey, logger)
	registerLaunchers(schedulerService, eventCounters, vocabRegistry,
		cfg.Vocab.ConsolidateHysteresisHigh, cfg.Vocab.ConsolidateHysteresisLow,
		cfg.Annealing.IntervalEpochs, cfg.Vocab.ChangeEventThreshold)

	if err := seedScheduledTasks(ctx, scheduledTasks); err != nil {
		logger.Fatal("failed to seed scheduled tasks", zap.Error(err))
	}

	workerPool := services.NewJobWorkerPool(jobQueue, cfg.Ingest.Workers, 2*time.Second, logger)
	registerJobRunners(workerPool, jobQueue, graph, sourceEmbeddings, ingestionPipeline,
		embeddingService, vocabEngine, groundingEngine, annealingManager, cfg, logger)

	commandBus, queryBus := buildBuses()

	upsertHandler := commands.NewUpsertConceptHandler(graph, embeddingService, cfg.Merge.SimilarityThreshold, logger)
	addEdgeHandler := commands.NewAddEdgeHandler(graph, vocabRegistry, logger)
	ingestHandler := commands.NewIngestDocumentHandler(jobQueue, ingestionPipeline, logger)
	consolidateHandler := commands.NewConsolidateVocabularyHandler(vocabEngine, logger)
	annealingHandler := commands.NewRunAnnealingHandler(annealingManager, logger)
	activateEmbeddingHandler := commands.NewActivateEmbeddingConfigHandler(embeddingService, configStore, jobQueue, logger)
	jobLifecycleHandler := commands.NewJobLifecycleHandler(jobQueue, logger)

	commandBus.Register(commands.UpsertConceptCommand{}, upsertHandler.Handle)
	commandBus.Register(commands.AddEdgeCommand{}, addEdgeHandler.Handle)
	commandBus.Register(commands.IngestDocumentCommand{}, ingestHandler.Handle)
	commandBus.Register(commands.ConsolidateVocabularyCommand{}, consolidateHandler.Handle)
	commandBus.Register(commands.RunAnnealingCommand{}, annealingHandler.Handle)
	commandBus.Register(commands.ActivateEmbeddingConfigCommand{}, activateEmbeddingHandler.Handle)
	commandBus.Register(commands.ApproveJobCommand{}, jobLifecycleHandler.HandleApprove)
	commandBus.Register(commands.CancelJobCommand{}, jobLifecycleHandler.HandleCancel)

	searchConceptsHandler := queries.NewSearchConceptsHandler(graph, embeddingService)
	getConceptDetailsHandler := queries.NewGetConceptDetailsHandler(graph, vocabRegistry, groundingEngine)
	findRelatedHandler := queries.NewFindRelatedHandler(graph)
	findPathHandler := queries.NewFindPathHandler(graph, embeddingService)
	searchSourcesHandler := queries.NewSearchSourcesHandler(graph)
	analyzePolarityHandler := queries.NewAnalyzePolarityAxisHandler(polarityService)
	verifyEmbeddingsHandler := queries.NewVerifyEmbeddingsHandler(embeddingService)
	regenerateEmbeddingsHandler := queries.NewRegenerateEmbeddingsHandler(jobQueue)

	queryBus.Register(queries.SearchConceptsQuery{}, searchConceptsHandler.Handle)
	queryBus.Register(queries.GetConceptDetailsQuery{}, getConceptDetailsHandler.Handle)
	queryBus.Register(queries.FindRelatedQuery{}, findRelatedHandler.Handle)
	queryBus.Register(queries.FindPathQuery{}, findPathHandler.Handle)
	queryBus.Register(queries.FindPathBySearchQuery{}, findPathHandler.HandleBySearch)
	queryBus.Register(queries.SearchSourcesQuery{}, searchSourcesHandler.Handle)
	queryBus.Register(queries.AnalyzePolarityAxisQuery{}, analyzePolarityHandler.Handle)
	queryBus.Register(queries.VerifyEmbeddingsQuery{}, verifyEmbeddingsHandler.Handle)
	queryBus.Register(queries.RegenerateEmbeddingsQuery{}, regenerateEmbeddingsHandler.Handle)

	med := mediator.NewMediator(commandBus, queryBus, logger)
	med.AddBehavior(mediator.NewLoggingBehavior(logger))
	med.AddBehavior(mediator.NewValidationBehavior(logger))

	errorHandler := engineHTTP.NewErrorHandler(logger)
	handlers := engineHTTP.Handlers{
		Concepts: engineHTTP.NewConceptsHandler(med, upsertHandler, errorHandler),
		Sources:  engineHTTP.NewSourcesHandler(med, ingestHandler, errorHandler),
		Polarity: engineHTTP.NewPolarityHandler(med, errorHandler),
		Admin:    engineHTTP.NewAdminHandler(med, consolidateHandler, annealingHandler, errorHandler),
	}
	router := engineHTTP.NewRouter(handlers, logger)

	var handler http.Handler = router
	var tracerProvider *observability.TracerProvider
	if cfg.Tracing.Enabled {
		tracerProvider, err = observability.NewTracerProvider("groundgraph-engine", string(cfg.Environment), cfg.Tracing.SampleRatio)
		if err != nil {
			logger.Fatal("failed to build tracer provider", zap.Error(err))
		}
		handler = tracerProvider.Middleware(handler)
	}

	var collector *observability.Collector
	if cfg.Metrics.Enabled {
		collector = observability.NewCollector(cfg.Metrics.Namespace)
		handler = collector.Middleware(handler)

		metricsSrv := &http.Server{Addr: cfg.Server.Host + ":" + strconv.Itoa(cfg.Metrics.Port), Handler: collector.Handler()}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	schedulerRunner := scheduler.NewRunner(schedulerService, logger)
	if err := schedulerRunner.Start(ctx); err != nil {
		logger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer schedulerRunner.Stop()

	workerPool.Start(ctx)

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("environment", string(cfg.Environment)))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	cancel()
	workerPool.Wait()
	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("tracer provider shutdown error", zap.Error(err))
		}
	}
	log.Println("server stopped")
}

func buildLogger(cfg engineconfig.Config) (*zap.Logger, error) {
	if cfg.Environment == engineconfig.Production {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// loadSecretboxKey reads the 32-byte key named by Security.SecretboxKeyEnv.
// A missing or malformed key is returned as an error, which main treats as
// fatal in every mode, development included: there is no silent fallback
// for credential-at-rest encryption (spec.md §6.4).
func loadSecretboxKey(cfg engineconfig.Config) ([32]byte, error) {
	raw := os.Getenv(cfg.Security.SecretboxKeyEnv)
	return secrets.KeyFromBytes([]byte(raw))
}

func buildBuses() (*mediator.CommandBus, *mediator.QueryBus) {
	return mediator.NewCommandBus(), mediator.NewQueryBus()
}

// buildClassifierSeeds loads every active VocabType with an embedding into
// the seed set the category classifier compares newly discovered types
// against (spec.md §4.3a). Types without a category (not yet classified)
// are skipped — they cannot themselves anchor a category.
func buildClassifierSeeds(ctx context.Context, registry ports.VocabRegistry) ([]domainsvc.SeedType, error) {
	active, err := registry.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	seeds := make([]domainsvc.SeedType, 0, len(active))
	for _, vt := range active {
		if vt.Category == entities.VocabCategory("") {
			continue
		}
		seeds = append(seeds, domainsvc.SeedType{
			Name:      vt.Name,
			Category:  vt.Category,
			Embedding: vt.Embedding,
		})
	}
	return seeds, nil
}

// registerLaunchers binds the scheduled-task launchers of spec.md §4.7:
// the annealing cycle on an epoch-delta condition (>= annealing.interval
// epochs of completed ingestion since the last fire) and vocabulary
// consolidation on the custom-type inactive ratio crossing its hysteresis
// band. Each launcher's cheap condition decides enqueue-or-skip; the
// concrete job type is picked up by a worker off the durable queue.
func registerLaunchers(
	s *services.SchedulerService,
	counters *services.EventCounters,
	vocabRegistry ports.VocabRegistry,
	hysteresisHigh, hysteresisLow float64,
	intervalEpochs, changeThreshold int,
) {
	if intervalEpochs <= 0 {
		intervalEpochs = 5
	}
	if changeThreshold <= 0 {
		changeThreshold = 10
	}
	s.RegisterLauncher(services.Launcher{
		Name: "annealing_cycle",
		Condition: func(ctx context.Context) (bool, error) {
			return counters.DrainIfAtLeast("ingestion_epoch", intervalEpochs), nil
		},
		JobType: "annealing_cycle",
	})

	consolidateGate := services.NewHysteresisGate(hysteresisHigh, hysteresisLow)
	s.RegisterLauncher(services.Launcher{
		Name: "vocab_consolidation",
		Condition: func(ctx context.Context) (bool, error) {
			ratio, err := vocabRegistry.InactiveRatio(ctx)
			if err != nil {
				return false, err
			}
			return consolidateGate.Evaluate(ratio), nil
		},
		JobType: "vocab_consolidation",
	})

	s.RegisterLauncher(services.Launcher{
		Name: "vocab_role_remeasure",
		Condition: func(ctx context.Context) (bool, error) {
			return counters.DrainIfAtLeast("vocabulary_changed", changeThreshold), nil
		},
		JobType: "vocab_role_remeasure",
	})
}

// seedScheduledTasks creates the task row for each registered launcher if
// it does not exist yet. Existing rows keep their run history and
// enabled/disabled state across restarts.
func seedScheduledTasks(ctx context.Context, store ports.ScheduledTaskStore) error {
	existing, err := store.ListAll(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, t := range existing {
		known[t.Name] = true
	}
	for _, name := range []string{"annealing_cycle", "vocab_consolidation", "vocab_role_remeasure"} {
		if known[name] {
			continue
		}
		task := &entities.ScheduledTask{
			Name: name, CronExpression: "* * * * *", LauncherRef: name,
			Enabled: true, NextRun: time.Now(), MaxRetries: 3,
		}
		if err := store.Save(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

// registerJobRunners binds each durable job type to the service call a
// worker dispatches it to (spec.md §4.7 queue contract). Cancellation is
// cooperative: the ingestion runner polls the job's status snapshot
// between chunks (spec.md §5).
func registerJobRunners(
	pool *services.JobWorkerPool,
	jobQueue ports.JobQueue,
	graph ports.GraphStore,
	sourceEmbeddings ports.SourceEmbeddingStore,
	ingestionPipeline *services.IngestionPipeline,
	embeddingService *services.EmbeddingService,
	vocabEngine *services.VocabularyEngine,
	groundingEngine *services.GroundingEngine,
	annealingManager *services.AnnealingManager,
	cfg engineconfig.Config,
	logger *zap.Logger,
) {
	cancelCheck := func(ctx context.Context, jobID string) (bool, error) {
		snap, err := jobQueue.Get(ctx, valueobjects.JobID(jobID))
		if err != nil {
			return false, err
		}
		return snap.Status == string(entities.JobCancelled), nil
	}

	pool.Register("ingest_document", func(ctx context.Context, job *entities.Job) error {
		req := services.IngestDocumentRequest{
			Ontology:   stringField(job.JobData, "ontology"),
			Document:   stringField(job.JobData, "document"),
			FullText:   stringField(job.JobData, "full_text"),
			Force:      boolField(job.JobData, "force"),
			IsMarkdown: boolField(job.JobData, "is_markdown"),
		}
		result, err := ingestionPipeline.Run(ctx, job, req, cancelCheck)
		if err != nil {
			return err
		}
		if result.Duplicate {
			logger.Info("ingestion skipped duplicate content", zap.String("job_id", job.ID))
		}
		return nil
	})

	pool.Register("regenerate_embeddings", func(ctx context.Context, job *entities.Job) error {
		scope := stringField(job.JobData, "scope")
		if scope == "" {
			scope = "all"
		}
		if scope == "concept" || scope == "all" {
			concepts, err := graph.ListConcepts(ctx)
			if err != nil {
				return err
			}
			if _, err := embeddingService.RegenerateAll(ctx, concepts); err != nil {
				return err
			}
			_ = jobQueue.UpdateProgress(ctx, valueobjects.JobID(job.ID), 0.4)
		}
		if scope == "vocab" || scope == "all" {
			if _, err := embeddingService.RegenerateVocabulary(ctx); err != nil {
				return err
			}
			if err := groundingEngine.InvalidateAxis(ctx); err != nil {
				logger.Warn("axis cache invalidation failed after vocab regeneration", zap.Error(err))
			}
			_ = jobQueue.UpdateProgress(ctx, valueobjects.JobID(job.ID), 0.6)
		}
		if scope == "source" || scope == "all" {
			sources, err := graph.ListSources(ctx, stringField(job.JobData, "ontology"))
			if err != nil {
				return err
			}
			for i, src := range sources {
				if _, err := embeddingService.ReembedSource(ctx, sourceEmbeddings, src, entities.ChunkParagraph); err != nil {
					return err
				}
				_ = jobQueue.UpdateProgress(ctx, valueobjects.JobID(job.ID), 0.6+0.4*float64(i+1)/float64(len(sources)))
			}
		}
		return nil
	})

	pool.Register("annealing_cycle", func(ctx context.Context, job *entities.Job) error {
		_, err := annealingManager.RunCycle(ctx)
		return err
	})

	pool.Register("vocab_consolidation", func(ctx context.Context, job *entities.Job) error {
		_, err := vocabEngine.ConsolidateSynonyms(ctx, true, cfg.Vocab.ConsolidateTarget)
		return err
	})

	pool.Register("vocab_role_remeasure", func(ctx context.Context, job *entities.Job) error {
		axis, err := groundingEngine.DefaultAxis(ctx)
		if err != nil {
			return err
		}
		if !axis.IsValid() {
			logger.Warn("no polarity axis available, skipping role remeasurement")
			return nil
		}
		measured, err := vocabEngine.RemeasureRoles(ctx, axis, cfg.Vocab.RoleSampleSize)
		if err != nil {
			return err
		}
		logger.Info("semantic roles remeasured", zap.Int("types", measured))
		return nil
	})
}

func stringField(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

func boolField(data map[string]interface{}, key string) bool {
	if v, ok := data[key].(bool); ok {
		return v
	}
	return false
}
