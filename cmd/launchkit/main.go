// Command launchkit is the operator CLI: schema migrations, platform role
// grants, search reindexing and a few API-driven helpers.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"launchkit/api/internal/client"
	"launchkit/api/internal/config"
	"launchkit/api/internal/logging"
	"launchkit/api/internal/store"
)

// cliState is persisted between invocations by `launchkit login`.
type cliState struct {
	BaseURL string `json:"base_url"`
	Token   string `json:"token"`
	Locale  string `json:"locale"`
}

var (
	flagBaseURL string
	flagToken   string
	flagLocale  string
	flagTimeout time.Duration
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           "launchkit",
	Short:         "Launchkit operator CLI",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "api", "", "API base URL (defaults to the saved login or the configured app URL)")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "session token (defaults to the saved login)")
	rootCmd.PersistentFlags().StringVar(&flagLocale, "locale", "", "locale for action messages (es or en)")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 15*time.Second, "HTTP timeout for API calls")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(loginCmd(), migrateCmd(), adminCmd(), auditCmd(), searchCmd(), sitesCmd(), subdomainCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	level := "info"
	if flagVerbose {
		level = "debug"
	}
	return logging.New(logging.Options{Level: level, Format: "console", Writer: os.Stderr})
}

// openDB loads the server config and connects to its database. Commands that
// touch the schema or grant roles work without a running API.
func openDB(ctx context.Context) (config.Config, *sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, db, nil
}

func statePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".launchkit")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "cli.json"), nil
}

func loadState() (cliState, error) {
	path, err := statePath()
	if err != nil {
		return cliState{}, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cliState{}, nil
	}
	if err != nil {
		return cliState{}, err
	}
	var state cliState
	if err := json.Unmarshal(data, &state); err != nil {
		return cliState{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return state, nil
}

func saveState(state cliState) error {
	path, err := statePath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// apiClient builds a client from flags, falling back to the saved login.
func apiClient(requireToken bool) (*client.Client, error) {
	state, err := loadState()
	if err != nil {
		return nil, err
	}
	baseURL := firstSet(flagBaseURL, state.BaseURL)
	if baseURL == "" {
		if cfg, err := config.Load(); err == nil {
			baseURL = cfg.AppURL
		}
	}
	token := firstSet(flagToken, state.Token)
	if requireToken && token == "" {
		return nil, fmt.Errorf("not logged in; run `launchkit login` first")
	}
	opts := []client.Option{client.WithHTTPClient(&http.Client{Timeout: flagTimeout})}
	if locale := firstSet(flagLocale, state.Locale); locale != "" {
		opts = append(opts, client.WithLocale(locale))
	}
	return client.New(baseURL, token, opts...), nil
}

func firstSet(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the session token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password are required")
			}
			c, err := apiClient(false)
			if err != nil {
				return err
			}
			token, err := c.SignIn(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			state, err := loadState()
			if err != nil {
				return err
			}
			state.Token = token
			if flagBaseURL != "" {
				state.BaseURL = flagBaseURL
			}
			if flagLocale != "" {
				state.Locale = flagLocale
			}
			if err := saveState(state); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged in as", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}
