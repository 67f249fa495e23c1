// Command alerts is the Mesa alert dispatch CLI.
//
// Usage:
//
//	mesa-alerts migrate
//	mesa-alerts dispatch
//	mesa-alerts dispatch --at 2026-10-16T23:30:00+02:00
//	mesa-alerts prune --retention 720h
//	mesa-alerts alert create --title "Kitchen closing" --content "Last orders" --scheduled --days fri,sat --start 22:00 --end 02:00 --repeat 30
//	mesa-alerts alert next --id 7
//	mesa-alerts vapid-keys
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/mesa-alerts/internal/alert"
	"github.com/albapepper/mesa-alerts/internal/config"
	"github.com/albapepper/mesa-alerts/internal/db"
	"github.com/albapepper/mesa-alerts/internal/maintenance"
	"github.com/albapepper/mesa-alerts/internal/notifications"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:           "mesa-alerts",
		Short:         "Mesa alert dispatch CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(dispatchCmd())
	root.AddCommand(pruneCmd())
	root.AddCommand(alertCmd())
	root.AddCommand(vapidKeysCmd())

	if err := root.Execute(); err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// migrate command
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			// Plain connection: the pool prepares statements against tables
			// this command may be about to create.
			conn, err := db.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer conn.Close(context.Background())

			start := time.Now()
			if err := db.Migrate(ctx, conn); err != nil {
				return err
			}
			logger.Info("Schema applied", "duration", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

// --------------------------------------------------------------------------
// dispatch command
// --------------------------------------------------------------------------

func dispatchCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Run one dispatch pass and print its summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := parseAt(at)
			if err != nil {
				return err
			}
			return withStore(func(ctx context.Context, cfg *config.Config, store *notifications.Store) error {
				d, err := newDispatcher(cfg, store)
				if err != nil {
					return err
				}
				summary, err := d.Run(ctx, now)
				if err != nil {
					return err
				}
				return printJSON(cmd, summary)
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Evaluate at this RFC 3339 instant instead of now")
	return cmd
}

// newDispatcher builds a dispatcher from config. Push must be configured.
func newDispatcher(cfg *config.Config, store *notifications.Store) (*notifications.Dispatcher, error) {
	sender := notifications.NewWebPushSender(notifications.VAPIDConfig{
		PublicKey:  cfg.VAPIDPublicKey,
		PrivateKey: cfg.VAPIDPrivateKey,
		Subject:    cfg.VAPIDSubject,
	}, cfg.PushTTL, cfg.PushTimeout, nil)
	if sender == nil {
		return nil, fmt.Errorf("VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY are required")
	}
	policy, err := notifications.ParseTagPolicy(cfg.TagPolicy)
	if err != nil {
		return nil, err
	}
	return notifications.NewDispatcher(store, store, store, sender, nil, notifications.DispatchConfig{
		Location:    cfg.Location,
		Concurrency: cfg.DispatchConcurrency,
		PushTimeout: cfg.PushTimeout,
		TagPolicy:   policy,
		ClickURL:    cfg.AlertClickURL,
	}, logger), nil
}

// --------------------------------------------------------------------------
// prune command
// --------------------------------------------------------------------------

func pruneCmd() *cobra.Command {
	var retention time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete send log rows older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(ctx context.Context, cfg *config.Config, store *notifications.Store) error {
				if !cmd.Flags().Changed("retention") {
					retention = cfg.SendRetention
				}
				n, err := maintenance.PruneSendLog(ctx, store, time.Now(), retention, logger)
				if err != nil {
					return err
				}
				logger.Info("Prune finished", "deleted", n, "retention", retention)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", 0, "Keep rows newer than this (default SEND_RETENTION)")
	return cmd
}

// --------------------------------------------------------------------------
// alert command
// --------------------------------------------------------------------------

func alertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alert",
		Short: "Create and inspect alerts",
	}
	cmd.AddCommand(alertCreateCmd())
	cmd.AddCommand(alertNextCmd())
	return cmd
}

func alertCreateCmd() *cobra.Command {
	var (
		draft        alert.Draft
		repeat       int
		translations string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an alert",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("repeat") {
				draft.RepeatEvery = &repeat
			}
			if translations != "" {
				if err := json.Unmarshal([]byte(translations), &draft.Translations); err != nil {
					return fmt.Errorf("--translations: %w", err)
				}
			}
			return withStore(func(ctx context.Context, cfg *config.Config, store *notifications.Store) error {
				a, err := draft.Build(time.Now(), cfg.Location)
				if err != nil {
					return err
				}
				if err := store.CreateAlert(ctx, a); err != nil {
					return err
				}
				logger.Info("Alert created", "id", a.ID, "next_run_at", a.NextRunAt)
				return printJSON(cmd, describe(a, time.Now(), cfg.Location))
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&draft.Title, "title", "", "Alert title")
	f.StringVar(&draft.Content, "content", "", "Alert body")
	f.BoolVar(&draft.IsScheduled, "scheduled", false, "Restrict the alert to a weekly window")
	f.StringSliceVar(&draft.Days, "days", nil, "Weekdays of the window (empty = every day)")
	f.StringVar(&draft.StartTime, "start", "", "Window start, HH:MM in the operating time zone")
	f.StringVar(&draft.EndTime, "end", "", "Window end, HH:MM (earlier than start crosses midnight)")
	f.IntVar(&repeat, "repeat", 0, "Re-fire every N minutes while visible (min 10)")
	f.StringVar(&translations, "translations", "", `JSON object, e.g. {"es":{"title":"...","content":"..."}}`)
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("content")
	return cmd
}

func alertNextCmd() *cobra.Command {
	var (
		id int64
		at string
	)
	cmd := &cobra.Command{
		Use:   "next",
		Short: "Show whether an alert is visible and when its window next opens",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == 0 {
				return fmt.Errorf("--id is required")
			}
			now, err := parseAt(at)
			if err != nil {
				return err
			}
			return withStore(func(ctx context.Context, cfg *config.Config, store *notifications.Store) error {
				a, err := store.AlertByID(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd, describe(a, now, cfg.Location))
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "Alert ID")
	cmd.Flags().StringVar(&at, "at", "", "Evaluate at this RFC 3339 instant instead of now")
	return cmd
}

// alertReport is the JSON printed by the alert subcommands.
type alertReport struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Active          bool       `json:"active"`
	Scheduled       bool       `json:"scheduled"`
	Days            []string   `json:"days,omitempty"`
	Start           string     `json:"start,omitempty"`
	End             string     `json:"end,omitempty"`
	RepeatEvery     *int       `json:"repeat_every_minutes,omitempty"`
	At              time.Time  `json:"at"`
	Visible         bool       `json:"visible"`
	Bucket          *time.Time `json:"bucket,omitempty"`
	NextWindowStart *time.Time `json:"next_window_start"`
	NextRunAt       *time.Time `json:"next_run_at"`
	LastSentAt      *time.Time `json:"last_sent_at"`
}

func describe(a *alert.Alert, now time.Time, loc *time.Location) alertReport {
	r := alertReport{
		ID:              a.ID,
		Title:           a.Title,
		Active:          a.IsActive,
		Scheduled:       a.IsScheduled,
		Days:            a.Days.Names(),
		RepeatEvery:     a.RepeatEvery,
		At:              now.In(loc),
		Visible:         a.IsVisible(now, loc),
		NextWindowStart: a.NextWindowStart(now, loc),
		NextRunAt:       a.NextRunAt,
		LastSentAt:      a.LastSentAt,
	}
	if a.Start != nil {
		r.Start = a.Start.String()
	}
	if a.End != nil {
		r.End = a.End.String()
	}
	if r.Visible {
		b := a.Bucket(now, loc)
		r.Bucket = &b
	}
	return r
}

// --------------------------------------------------------------------------
// vapid-keys command
// --------------------------------------------------------------------------

func vapidKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vapid-keys",
		Short: "Generate a VAPID key pair for VAPID_PUBLIC_KEY / VAPID_PRIVATE_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			private, public, err := webpush.GenerateVAPIDKeys()
			if err != nil {
				return fmt.Errorf("generate keys: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "VAPID_PUBLIC_KEY=%s\nVAPID_PRIVATE_KEY=%s\n", public, private)
			return nil
		},
	}
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// withStore handles config loading, DB connection, and context cancellation.
func withStore(fn func(ctx context.Context, cfg *config.Config, store *notifications.Store) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, notifications.NewStore(pool.Pool))
}

func parseAt(at string) (time.Time, error) {
	if at == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.RFC3339, at)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at: %w", err)
	}
	return t, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
