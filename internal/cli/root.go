// Package cli wires configuration, logging, storage and the scraper into the
// tendril command tree.
package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/FranksOps/tendril/internal/config"
	"github.com/FranksOps/tendril/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type app struct {
	v          *viper.Viper
	configFile string
	cfg        *config.Config
	logger     *slog.Logger
}

// Execute runs the command tree with args taken from os.Args.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd builds the tendril command tree. The root command scrapes; the
// subcommands run a single extraction or summarize a store.
func NewRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:   "tendril <url>",
		Short: "Recursively scrape links, images and metadata up to a bounded depth",
		Long: `tendril fetches a page, extracts its links, images and meta tags, stores
the result and follows each absolute link until the depth limit is reached.
The start page is at depth 1.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScrape(cmd, args[0])
		},
	}

	a.persistentFlags(root)
	a.scrapeFlags(root)

	root.AddCommand(
		a.newLinksCmd(),
		a.newImagesCmd(),
		a.newMetaCmd(),
		a.newTextCmd(),
		a.newTableCmd(),
		a.newReportCmd(),
	)
	return root
}

func (a *app) persistentFlags(cmd *cobra.Command) {
	v := a.v
	f := cmd.PersistentFlags()

	f.StringVar(&a.configFile, "config", "", "config file (yaml, toml or json)")
	f.String(config.KeyLogLevel, v.GetString(config.KeyLogLevel), "log level: debug, info, warn, error")
	f.String(config.KeyLogFormat, v.GetString(config.KeyLogFormat), "log format: text or json")

	f.Duration(config.KeyTimeout, v.GetDuration(config.KeyTimeout), "per-request timeout")
	f.Int(config.KeyMaxRedirects, v.GetInt(config.KeyMaxRedirects), "redirects to follow (negative disables)")
	f.Bool(config.KeyCookieJar, v.GetBool(config.KeyCookieJar), "keep cookies across requests")
	f.String(config.KeyProfile, v.GetString(config.KeyProfile), "TLS fingerprint: go, chrome, firefox, safari, random")
	f.String(config.KeyProxyFile, v.GetString(config.KeyProxyFile), "file with one proxy URL per line")
	f.StringArray(config.KeyUserAgent, nil, "user agent to rotate (repeatable; default browser pool)")

	f.String(config.KeyOut, v.GetString(config.KeyOut), "output directory for file stores")
	f.String(config.KeyLayout, v.GetString(config.KeyLayout), "json layout: overwrite, depth, url")
	f.StringSlice(config.KeyStore, v.GetStringSlice(config.KeyStore), "stores to write: json, csv, sqlite, postgres, redis")
	f.String(config.KeyCSVPath, "", "csv store path (default <out>/scraped_data.csv)")
	f.String(config.KeySQLitePath, "", "sqlite store path (default <out>/tendril.db)")
	f.String(config.KeyPostgresDSN, "", "postgres connection string")
	f.String(config.KeyRedisAddr, "", "redis host:port or redis:// URL")
	f.String(config.KeyRedisPrefix, v.GetString(config.KeyRedisPrefix), "redis key prefix")
}

func (a *app) scrapeFlags(cmd *cobra.Command) {
	v := a.v
	f := cmd.Flags()

	f.Int(config.KeyDepth, v.GetInt(config.KeyDepth), "maximum depth, the start page being depth 1")
	f.Duration(config.KeyDelay, v.GetDuration(config.KeyDelay), "courtesy pause after each page")
	f.Float64(config.KeyJitter, v.GetFloat64(config.KeyJitter), "extra random pause as a fraction of delay (0-1)")
	f.Int(config.KeyMaxPages, v.GetInt(config.KeyMaxPages), "stop after this many pages (0 = unlimited)")
	f.Int(config.KeyMetricsPort, v.GetInt(config.KeyMetricsPort), "serve Prometheus metrics on this port (0 = off)")
	f.Bool(config.KeyProgress, v.GetBool(config.KeyProgress), "show a spinner when stderr is a terminal")
	f.String(config.KeySummary, v.GetString(config.KeySummary), "print a run summary when done: text, json, html")
}

// load resolves configuration for the executing command and installs the
// logger.
func (a *app) load(cmd *cobra.Command) error {
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	cfg, err := config.Load(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	l, err := logger.Init(cmd.ErrOrStderr(), logger.Format(cfg.LogFormat), level)
	if err != nil {
		return err
	}
	a.logger = l
	return nil
}

func (a *app) stdout(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}
