package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// openDatabase opens and migrates the relational database.
func openDatabase() (*gorm.DB, error) {
	db, err := OpenDB(cfg.Database.DSN, cfg.Database.Debug)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// openStore builds the quest store for backend. The relational store shares
// db; the sheets store only needs the service-account settings.
func openStore(ctx context.Context, backend string, db *gorm.DB) (QuestStore, error) {
	switch backend {
	case BackendSQL:
		return NewSQLStore(db), nil
	case BackendSheets:
		if cfg.Sheets.SpreadsheetID == "" {
			return nil, fmt.Errorf("sheets.spreadsheet_id is not configured")
		}
		api, err := NewGoogleValues(ctx, cfg.Sheets.Credentials())
		if err != nil {
			return nil, err
		}
		return NewSheetStore(api, cfg.Sheets.SpreadsheetID, cfg.Sheets.Range), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}

// --- serve ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		db, err := openDatabase()
		if err != nil {
			return err
		}
		store, err := openStore(ctx, cfg.Store.Backend, db)
		if err != nil {
			return err
		}

		if cfg.Store.SeedFile != "" {
			if _, err := os.Stat(cfg.Store.SeedFile); err == nil {
				if _, err := SeedStore(ctx, store, cfg.Store.SeedFile); err != nil {
					return err
				}
			} else {
				slog.Info("No seed file; running with current data",
					slog.String("path", cfg.Store.SeedFile))
			}
		}

		auth, err := NewAuth(db, cfg.Auth, cfg.Server.SecureCookies)
		if err != nil {
			return err
		}
		google := NewGoogleOAuth(cfg.Auth, db, auth)

		router := newRouter(cfg.Server, store, auth, google)
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext: func(_ net.Listener) context.Context {
				return ctx
			},
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("Listening",
				slog.String("addr", srv.Addr),
				slog.String("backend", cfg.Store.Backend),
				slog.Bool("secure_cookies", cfg.Server.SecureCookies),
				slog.Bool("google_oauth", google != nil))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case <-ctx.Done():
			slog.Info("Shutting down")
		case err := <-errCh:
			if err != nil {
				return err
			}
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

// --- migrate ---

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := openDatabase(); err != nil {
			return err
		}
		slog.Info("Migration completed", slog.String("dsn", redactDSN(cfg.Database.DSN)))
		return nil
	},
}

// --- seed ---

var seedCmd = &cobra.Command{
	Use:   "seed [file]",
	Short: "Load quests from a JSON or YAML file into an empty store",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Store.SeedFile
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("no seed file given")
		}
		db, err := openDatabase()
		if err != nil {
			return err
		}
		store, err := openStore(cmd.Context(), cfg.Store.Backend, db)
		if err != nil {
			return err
		}
		n, err := SeedStore(cmd.Context(), store, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d quests\n", n)
		return nil
	},
}

// --- sync ---

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy quests and categories between the sql and sheets stores",
	Long: `Copy quests and categories between the sql and sheets stores.

Examples:
  quest-draw sync --from sheets --to sql
  quest-draw sync --from sql --to sheets`,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		if from == to {
			return fmt.Errorf("--from and --to must differ")
		}
		db, err := openDatabase()
		if err != nil {
			return err
		}
		src, err := openStore(cmd.Context(), from, db)
		if err != nil {
			return err
		}
		dst, err := openStore(cmd.Context(), to, db)
		if err != nil {
			return err
		}
		report, err := SyncStores(cmd.Context(), src, dst)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "quests: %d created, %d skipped; categories: %d created, %d skipped\n",
			report.QuestsCreated, report.QuestsSkipped, report.CategoriesCreated, report.CategoriesSkipped)
		return nil
	},
}

// --- user ---

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a credentials user or reset an existing user's password",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		admin, _ := cmd.Flags().GetBool("admin")
		if password == "" {
			password = os.Getenv("QUESTDRAW_USER_PASSWORD")
		}

		db, err := openDatabase()
		if err != nil {
			return err
		}
		auth, err := NewAuth(db, cfg.Auth, cfg.Server.SecureCookies)
		if err != nil {
			return err
		}
		u, err := auth.CreateUser(cmd.Context(), email, password, admin)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user %s (%s) role=%s\n", u.Email, u.ID, u.Role)
		return nil
	},
}

var sessionsPurgeCmd = &cobra.Command{
	Use:   "purge-sessions",
	Short: "Delete expired sessions and OAuth state tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		auth, err := NewAuth(db, cfg.Auth, cfg.Server.SecureCookies)
		if err != nil {
			return err
		}
		n, err := auth.PurgeExpired(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged %d rows\n", n)
		return nil
	},
}

func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}

func init() {
	syncCmd.Flags().String("from", BackendSheets, "source backend (sql|sheets)")
	syncCmd.Flags().String("to", BackendSQL, "target backend (sql|sheets)")

	userAddCmd.Flags().String("email", "", "user email")
	userAddCmd.Flags().String("password", "", "password (or QUESTDRAW_USER_PASSWORD)")
	userAddCmd.Flags().Bool("admin", false, "grant the admin role")
	_ = userAddCmd.MarkFlagRequired("email")
	userCmd.AddCommand(userAddCmd, sessionsPurgeCmd)

	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, syncCmd, userCmd)
}
