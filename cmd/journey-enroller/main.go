package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/driftline/journey/pkg/cmd"
	"github.com/driftline/journey/pkg/enrollment"
	"github.com/driftline/journey/pkg/events"
	"github.com/driftline/journey/pkg/log"
	"github.com/driftline/journey/pkg/triggerfilter"
)

func main() {
	command := &cli.Command{
		Name:                  "journey-enroller",
		EnableShellCompletion: true,
		Usage:                 "Start the enroller that matches domain events to workflows and listeners",
		Flags: []cli.Flag{
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
			logger := log.WithModule("journey-enroller")
			logger.InfoContext(ctx, "Initializing journey enroller")

			eventBus, _, err := cmd.NewEventBus(command.String("event-bus"), "journey-enroller", logger)
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

			service := enrollment.NewService(logger, store,
				triggerfilter.NewEngine(logger), eventBus)

			if err := eventBus.Handle(events.DomainEventReceivedType, service.HandleDomainEvent); err != nil {
				return err
			}

			if err := eventBus.Subscribe(ctx); err != nil {
				return err
			}

			logger.InfoContext(ctx, "Enroller started successfully")

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			select {
			case <-sigChan:
			case <-ctx.Done():
			}

			logger.InfoContext(ctx, "Shutting down enroller...")

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
