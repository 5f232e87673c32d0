package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seedline/crawld/internal/app"
	"github.com/seedline/crawld/internal/config"
	"github.com/seedline/crawld/internal/scheduler"
)

func newCrawlCmd() *cobra.Command {
	var priority int

	cmd := &cobra.Command{
		Use:   "crawl [urls...]",
		Short: "Runs one crawl job to completion",
		Long: `Starts a job with the given URLs, waits for every task to resolve,
and prints the final counts. Politeness, retries, and storage follow the
configuration file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("priority") {
				priority = cfg.Frontier.DefaultPriority
			}
			return runCrawl(cmd.Context(), cfg, args, priority)
		},
	}

	cmd.Flags().IntVar(&priority, "priority", 0, "priority for every submitted URL (lower runs first)")
	return cmd
}

func runCrawl(ctx context.Context, cfg config.Config, urls []string, priority int) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize services: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cerr := a.Close(closeCtx); cerr != nil {
			a.Logger.Warn("shutdown incomplete", zap.Error(cerr))
		}
	}()

	jobID, err := a.Scheduler.StartJob(urls, priority)
	if err != nil {
		return fmt.Errorf("start job: %w", err)
	}
	a.Logger.Info("job submitted", zap.String("job_id", jobID), zap.Int("urls", len(urls)))

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			if err := a.Scheduler.CancelJob(jobID); err != nil && !errors.Is(err, scheduler.ErrJobNotFound) {
				a.Logger.Warn("cancel on interrupt failed", zap.Error(err))
			}
			return ctx.Err()
		case <-ticker.C:
		}

		job, err := a.Scheduler.GetJobStatus(jobID)
		if err != nil {
			return fmt.Errorf("poll job: %w", err)
		}
		if !job.Status.Terminal() {
			continue
		}
		a.Logger.Info("job finished",
			zap.String("job_id", jobID),
			zap.String("status", string(job.Status)),
			zap.Int("completed", job.CompletedCount),
			zap.Int("failed", job.FailedCount))
		if job.FailedCount > 0 {
			return fmt.Errorf("job %s finished %s: %d of %d tasks failed",
				jobID, job.Status, job.FailedCount, len(job.Tasks))
		}
		return nil
	}
}
