package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"launchkit/api/internal/audit"
	"launchkit/api/internal/logging"
	"launchkit/api/internal/search"
	"launchkit/api/internal/store"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, db, err := openDB(cmd.Context())
				if err != nil {
					return err
				}
				defer db.Close()
				if err := store.ApplyMigrations(cmd.Context(), db, cfg.MigrationsDir); err != nil {
					return err
				}
				logger := newLogger()
				logger.Info().Str("dir", cfg.MigrationsDir).Msg("migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, db, err := openDB(cmd.Context())
				if err != nil {
					return err
				}
				defer db.Close()
				version, err := store.RollbackLast(cmd.Context(), db, cfg.MigrationsDir)
				if err != nil {
					return err
				}
				if version == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "nothing to roll back")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), "rolled back", version)
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, db, err := openDB(cmd.Context())
				if err != nil {
					return err
				}
				defer db.Close()
				statuses, err := store.Migrations(cmd.Context(), db, cfg.MigrationsDir)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tAPPLIED")
				for _, s := range statuses {
					fmt.Fprintf(tw, "%s\t%v\n", s.Version, s.Applied)
				}
				return tw.Flush()
			},
		},
	)
	return cmd
}

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Platform administration",
	}
	grant := &cobra.Command{
		Use:   "grant-role EMAIL ROLE",
		Short: "Set a user's platform role (user, admin or developer)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := strings.ToLower(strings.TrimSpace(args[0]))
			role := strings.TrimSpace(args[1])
			switch role {
			case "user", "admin", "developer":
			default:
				return fmt.Errorf("unknown role %q", role)
			}

			_, db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			ps := store.NewPostgresStore(db)

			user, err := ps.GetUserByEmail(cmd.Context(), email)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("no user with email %s", email)
			}
			if err != nil {
				return err
			}
			if err := ps.SetUserAppRole(cmd.Context(), user.ID, role); err != nil {
				return err
			}

			logger := newLogger()
			audit.NewRecorder(ps, logging.Component(logger, "audit")).Record(cmd.Context(), audit.Entry{
				Action:     audit.UserAppRoleUpdate,
				TargetID:   user.ID,
				TargetType: "user",
				Metadata: map[string]any{
					"from": user.AppRole,
					"to":   role,
					"via":  "cli",
				},
			})
			logger.Info().Str("user_id", user.ID).Str("from", user.AppRole).Str("to", role).Msg("app role updated")
			fmt.Fprintln(cmd.OutOrStdout(), "Existing sessions keep the old role until the user signs in again.")
			return nil
		},
	}
	cmd.AddCommand(grant)
	return cmd
}

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search index maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reindex",
		Short: "Push every site and campaign into Meilisearch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			if strings.TrimSpace(cfg.MeiliURL) == "" {
				return fmt.Errorf("meili_url is not configured")
			}

			logger := newLogger()
			meili := search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logging.Component(logger, "meili"))
			defer meili.Close()
			svc := search.NewService(meili, search.NewPgFTS(store.NewPostgresStore(db)), logging.Component(logger, "search"))

			sites, campaigns, err := svc.ReindexAll(cmd.Context())
			if err != nil {
				return err
			}
			logger.Info().Int("sites", sites).Int("campaigns", campaigns).Msg("reindex complete")
			return nil
		},
	})
	return cmd
}
