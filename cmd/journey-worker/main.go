package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/driftline/journey/pkg/cmd"
	"github.com/driftline/journey/pkg/conditions"
	"github.com/driftline/journey/pkg/execution"
	"github.com/driftline/journey/pkg/log"
	"github.com/driftline/journey/pkg/otelhelper"
	"github.com/driftline/journey/pkg/providers/crm"
	"github.com/driftline/journey/pkg/providers/delivery"
	"github.com/driftline/journey/pkg/wait"
)

func main() {
	command := &cli.Command{
		Name:                  "journey-worker",
		EnableShellCompletion: true,
		Usage:                 "Start workers that advance workflow executions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:     "redis-url",
				Usage:    "Redis connection URL for the job store",
				Required: true,
				Sources:  cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "plugins-path",
				Usage:   "Path to the directory containing executor plugins",
				Value:   "",
				Sources: cli.EnvVars("PLUGINS_PATH"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OpenTelemetry traces",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"), command.String("log-format"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("journey-worker").With("worker_id", workerID)
			logger.InfoContext(ctx, "Initializing journey worker")

			eventBus, publisher, err := cmd.NewEventBus(command.String("event-bus"), "journey-worker", logger)
			if err != nil {
				return err
			}

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			jobs, err := cmd.NewJobStore(ctx, command.String("redis-url"))
			if err != nil {
				return err
			}

			registry, err := cmd.NewRegistry(logger, command.String("plugins-path"), cmd.Services{
				Email: delivery.NewEmailPublisher(logger, publisher),
				SMS:   delivery.NewSMSPublisher(logger, publisher),
				CRM:   crm.NewService(logger, store.ContactRepository()),
			})
			if err != nil {
				return err
			}

			engineCfg := execution.Config{
				WorkerID:    workerID,
				Logger:      logger,
				Persistence: store,
				Registry:    registry,
				Conditions:  conditions.NewEngine(registry, logger),
				Waits: wait.NewScheduler(logger, store.WaitRepository(),
					store.ListenerRepository(), jobs),
				Jobs:     jobs,
				EventBus: eventBus,
			}

			if command.Bool("tracing") {
				tracer, err := otelhelper.NewTracer(ctx, "journey-worker")
				if err != nil {
					return err
				}

				engineCfg.Tracer = tracer
			}

			worker := NewWorkerManager(workerID, logger, eventBus, execution.NewEngine(engineCfg))

			return worker.Start(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
