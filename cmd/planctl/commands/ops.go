package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"contentcal/api/internal/auth"
	"contentcal/api/internal/config"
	"contentcal/api/internal/localstore"
	"contentcal/api/internal/lock"
	"contentcal/api/internal/notify"
	"contentcal/api/internal/search"
	"contentcal/api/internal/store"
)

func newSweepLocksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-locks",
		Short: "Delete expired edit locks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			manager := lock.NewManager(store.NewLockStore(e.db), lock.WithTTL(e.cfg.LockTTL), lock.WithLogger(e.log))
			removed, err := manager.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired lock(s)\n", removed)
			return nil
		},
	}
}

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the Meilisearch index from Postgres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			if strings.TrimSpace(e.cfg.MeiliURL) == "" {
				return fmt.Errorf("MEILI_URL is not set")
			}
			meili := search.NewMeili(e.cfg.MeiliURL, e.cfg.MeiliMasterKey, e.log)
			svc := search.NewService(meili, search.NewPgFTS(e.db), e.log)
			defer svc.Close()

			if !meili.Healthy() {
				return fmt.Errorf("meilisearch at %s is not healthy", e.cfg.MeiliURL)
			}
			svc.ReindexAllFromPG(cmd.Context())
			return nil
		},
	}
}

func newNotifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Run a notification sweep once",
	}
	run := func(kind string) *cobra.Command {
		return &cobra.Command{
			Use:   kind,
			Short: "Send " + kind + " now",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := openEnv(cmd.Context())
				if err != nil {
					return err
				}
				defer e.Close()

				kv, err := localstore.NewRedisKV(e.cfg.RedisURL)
				if err != nil {
					return err
				}
				defer kv.Close()

				notifier := notify.NewNotifier(localstore.NewSubscriptions(kv), store.NewPlanItemStore(e.db, e.log), kv,
					dispatcherFor(e), e.log, notify.Options{SummaryWeekday: e.cfg.SummaryWeekday})
				var sent int
				if kind == "reminders" {
					sent, err = notifier.SendReminders(cmd.Context())
				} else {
					sent, err = notifier.SendSummaries(cmd.Context())
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sent %d %s\n", sent, kind)
				return err
			},
		}
	}
	cmd.AddCommand(run("reminders"), run("summaries"))
	return cmd
}

func dispatcherFor(e *env) notify.Dispatcher {
	cfg := e.cfg
	smtpConfig := notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}
	if smtpConfig.IsConfigured() {
		return notify.NewSMTPDispatcher(smtpConfig)
	}
	return notify.NewLogDispatcher(e.log)
}

func newTokenCmd() *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token signed with CONTENTCAL_JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			token, err := auth.IssueToken([]byte(cfg.JWTSecret), userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id to put in the subject claim (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
