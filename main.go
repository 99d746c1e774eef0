package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	cfg       Config
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:           "quest-draw",
	Short:         "Quest catalogue with a random-draw API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		_, logCloser = SetupLogger(cfg.Log)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.toml)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("Command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// allowOrigin accepts the configured origins and any http://localhost:PORT
// during development.
func allowOrigin(allowed []string) func(string) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = true
	}
	return func(origin string) bool {
		return set[origin] || strings.HasPrefix(origin, "http://localhost:")
	}
}

// newRouter wires every route. google may be nil when OAuth is not configured.
func newRouter(server ServerConfig, store QuestStore, auth *Auth, google *GoogleOAuth) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOriginFunc:  allowOrigin(server.AllowedOrigins),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "If-Match"},
		ExposeHeaders:    []string{"ETag"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.Use(RequestLogger())
	r.Use(LoadUser(auth))

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	api := r.Group("/api/v1")
	{
		// Public
		api.GET("/draw", Draw(store))
		api.GET("/categories", ListCategories(store))

		// Auth
		api.POST("/auth/login", Login(auth))
		api.POST("/auth/logout", Logout(auth))
		if google != nil {
			api.GET("/auth/google", google.Start())
			api.GET("/auth/google/callback", google.Callback())
		}
		api.GET("/me", RequireUser(), GetMe())

		// Admin
		admin := api.Group("/admin", RequireAdmin())
		{
			admin.GET("/quests", ListQuests(store))
			admin.POST("/quests", CreateQuests(store))
			admin.GET("/quests/:id", GetQuest(store))
			admin.PUT("/quests/:id", UpdateQuest(store))
			admin.DELETE("/quests/:id", DeleteQuest(store))

			admin.GET("/categories", ListAdminCategories(store))
			admin.POST("/categories", CreateCategory(store))
			admin.GET("/categories/:id", GetCategory(store))
			admin.PUT("/categories/:id", UpdateCategory(store))
			admin.DELETE("/categories/:id", DeleteCategory(store))

			admin.GET("/stats", Stats(store))
		}
	}
	return r
}
