package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/siherrmann/grimoire"
	"github.com/siherrmann/grimoire/api"
	"github.com/spf13/cobra"
)

var (
	servePort            int
	serveRebuildSchedule string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API",
	Long:  `Starts the HTTP API. With --rebuild-schedule the corpus is re-indexed on a cron schedule.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveRebuildSchedule, "rebuild-schedule", "", `Cron expression for index rebuilds, e.g. "@daily"`)
}

func runServe(cmd *cobra.Command, args []string) error {
	g, err := openService()
	if err != nil {
		return err
	}
	defer g.Close()

	config := g.Config()
	if servePort > 0 {
		config.Server.Port = servePort
	}
	schedule := config.Corpus.RebuildSchedule
	if serveRebuildSchedule != "" {
		schedule = serveRebuildSchedule
	}

	logger := g.Logger()

	var scheduler *grimoire.Scheduler
	if schedule != "" {
		scheduler, err = g.ScheduleRebuilds(schedule)
		if err != nil {
			return err
		}
	}

	server := api.New(g, config.Server, config.RAG.TopK, logger)

	errs := make(chan error, 1)
	go func() {
		errs <- server.Start()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err = <-errs:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if scheduler != nil {
		if stopErr := scheduler.Stop(shutdownCtx); stopErr != nil {
			logger.Warn("Scheduler did not stop in time", slog.Any("error", stopErr))
		}
	}
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
		err = shutdownErr
	}

	return err
}
