package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/avoiney/oppy/internal/audit"
	"github.com/avoiney/oppy/internal/session"
	"github.com/avoiney/oppy/internal/shell"
	"github.com/avoiney/oppy/internal/tql"
	"github.com/avoiney/oppy/internal/vault"
	"github.com/avoiney/oppy/pkg/config"
	apperrors "github.com/avoiney/oppy/pkg/errors"
	"github.com/avoiney/oppy/pkg/health"
	"github.com/avoiney/oppy/pkg/kafka"
	"github.com/avoiney/oppy/pkg/metrics"
	"github.com/avoiney/oppy/pkg/postgres"
	pkgredis "github.com/avoiney/oppy/pkg/redis"
)

func newSearchCmd(opts *options) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "search <profile> <tql>",
		Short: "Run one query and print the matching listing entries as JSON",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts, args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			if refresh {
				if _, err := a.catalog.Refresh(cmd.Context()); err != nil {
					return err
				}
			}
			matches, err := a.catalog.Query(cmd.Context(), strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			printer := shell.NewPrinter(a.cfg.Output.Color, a.cfg.Output.Style)
			return printer.JSON(cmd.OutOrStdout(), matches.Records())
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "fetch the listing from op before querying")
	return cmd
}

func newCheckCmd() *cobra.Command {
	var lenient bool
	cmd := &cobra.Command{
		Use:   "check <tql>",
		Short: "Parse a query and print how it is grouped and matched",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := tql.Parse(strings.Join(args, " "), tql.WithLenient(lenient))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), shell.Explain(q))
			return err
		},
	}
	cmd.Flags().BoolVar(&lenient, "lenient", false, "skip illegal characters instead of failing")
	return cmd
}

func newDoctorCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor <profile>",
		Short: "Check op, the stored session and the configured backends",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			profile, err := cfg.Profile(args[0], opts.overrides())
			if err != nil {
				return err
			}
			return doctor(cmd.Context(), cfg, profile, cmd.OutOrStdout())
		},
	}
}

// doctor runs every check and prints the report. A component that is down
// fails the command.
func doctor(ctx context.Context, cfg *config.Config, profile config.ProfileConfig, w io.Writer) error {
	checker := health.NewChecker(5 * time.Second)
	registerChecks(checker, cfg, profile)
	report := checker.Run(ctx)
	if err := report.WriteText(w); err != nil {
		return err
	}
	if report.Status == health.StatusDown {
		return apperrors.New(apperrors.ErrUnavailable, apperrors.ExitUnavailable, "some checks failed")
	}
	return nil
}

func registerChecks(checker *health.Checker, cfg *config.Config, profile config.ProfileConfig) {
	client := vault.NewClient(vault.ExecRunner{Binary: cfg.Vault.Binary}, cfg.Vault, metrics.New(nil))
	checker.Register("op", func(ctx context.Context) health.ComponentHealth {
		v, err := client.Version(ctx)
		if err != nil {
			return health.Down(err)
		}
		return health.Up(strings.TrimSpace(v))
	})

	checker.Register("session", func(ctx context.Context) health.ComponentHealth {
		var kv session.KV
		if cfg.Session.Backend == "redis" {
			c, err := pkgredis.NewClient(ctx, cfg.Redis)
			if err != nil {
				return health.Down(err)
			}
			defer c.Close()
			kv = c
		}
		store, err := session.Open(cfg.Session, kv)
		if err != nil {
			return health.Down(err)
		}
		if _, err := store.Get(ctx, profile.Domain); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.Up(fmt.Sprintf("%s session for %s", cfg.Session.Backend, profile.Domain))
	})

	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if !needsRedis(cfg) {
			return health.Skipped("no redis backend configured")
		}
		c, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return health.Down(err)
		}
		defer c.Close()
		if err := c.Ping(ctx); err != nil {
			return health.Down(err)
		}
		return health.Up(cfg.Redis.Addr)
	})

	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if !cfg.Audit.Postgres {
			return health.Skipped("audit store disabled")
		}
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return health.Down(err)
		}
		defer db.Close()
		if err := db.Ping(ctx); err != nil {
			return health.Down(err)
		}
		return health.Up(cfg.Postgres.Database)
	})

	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		if !cfg.Audit.Kafka {
			return health.Skipped("audit stream disabled")
		}
		if err := kafka.Ping(ctx, cfg.Kafka); err != nil {
			return health.Down(err)
		}
		return health.Up(cfg.Kafka.AuditTopic)
	})
}

func newAuditCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the query audit trail",
	}

	var fromStart bool
	var profile string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Stream audit events from Kafka",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			return audit.Tail(cmd.Context(), cfg.Kafka, fromStart, profile, cmd.OutOrStdout())
		},
	}
	tail.Flags().BoolVar(&fromStart, "from-start", false, "replay the topic from the oldest event")
	tail.Flags().StringVar(&profile, "profile", "", "only show events of this profile")
	cmd.AddCommand(tail)
	return cmd
}
