package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/FranksOps/tendril/internal/metrics"
	"github.com/FranksOps/tendril/internal/report"
	"github.com/FranksOps/tendril/internal/scraper"
	"github.com/FranksOps/tendril/internal/storage"
	"github.com/FranksOps/tendril/pkg/ratelimit"
	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func (a *app) runScrape(cmd *cobra.Command, baseURL string) error {
	ctx := cmd.Context()
	cfg := a.cfg

	fetcher, err := a.newFetcher()
	if err != nil {
		return err
	}

	backend, err := a.openStore(ctx, cfg.Depth)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			a.logger.Error("failed to close store", "error", err)
		}
	}()

	var onVisit func(scraper.Target)
	if cfg.Progress && isatty.IsTerminal(os.Stderr.Fd()) {
		spin := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		spin.Start()
		defer spin.Stop()

		onVisit = func(t scraper.Target) {
			spin.Lock()
			spin.Suffix = fmt.Sprintf(" [depth %d] %s", t.Depth, t.URL)
			spin.Unlock()
		}
	}

	sc := scraper.New(scraper.Config{
		MaxDepth: cfg.Depth,
		MaxPages: cfg.MaxPages,
		Backend:  backend,
		Pacer:    ratelimit.NewPacer(cfg.Delay, cfg.Jitter),
		OnVisit:  onVisit,
	}, fetcher, a.logger)

	g, gCtx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gCtx)
	defer stop()

	if cfg.MetricsPort > 0 {
		srv := metrics.New(cfg.MetricsPort)
		a.logger.Info("serving metrics", "port", cfg.MetricsPort)
		g.Go(func() error {
			return srv.Run(runCtx)
		})
	}

	var sess *scraper.Session
	g.Go(func() error {
		// Ending the scrape also stops the metrics server.
		defer stop()
		var err error
		sess, err = sc.Run(runCtx, baseURL)
		return err
	})

	err = g.Wait()
	if sess != nil {
		st := sess.Stats()
		a.logger.Info("scrape finished",
			"run_id", sess.RunID(),
			"visited", st.Visited,
			"saved", st.Saved,
			"failed", st.Failed,
			"skipped", st.Skipped,
		)
	}
	if err != nil || cfg.Summary == "" {
		return err
	}

	// The json store ignores run ids; its depth files hold only this run.
	extractions, err := backend.Query(ctx, storage.Filter{RunID: sess.RunID()})
	if err != nil {
		return fmt.Errorf("summarize run: %w", err)
	}
	summary := report.GenerateSummary(extractions).WithFailures(sess.Stats().Failed)
	return report.Write(a.stdout(cmd), cfg.Summary, summary)
}
