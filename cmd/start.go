package cmd

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"bim-reconciler/core/config"
	"bim-reconciler/core/database"
	"bim-reconciler/core/loader"
	"bim-reconciler/core/logger"
	"bim-reconciler/core/middleware/auth"
	"bim-reconciler/core/middleware/rayid"
	"bim-reconciler/core/rowstore"
	"bim-reconciler/core/storage"

	"bim-reconciler/feature/report"
	"bim-reconciler/feature/rows"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the reconciliation server",
	Long:  `Starts the HTTP server and initializes all enabled features.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Connect to the durable store (optional). Failure degrades the
		// row store to runtime-only; it never blocks startup.
		var db *gorm.DB
		if conn, err := database.Connect(cfg.Database); err != nil {
			logg.Warn("Durable store unavailable, running runtime-only", zap.Error(err))
		} else {
			db = conn
			logg.Info("Connected to durable row store")
		}

		// 4. Initialize object storage for workbook archiving (optional).
		var archive storage.Client
		if client, err := storage.NewClient(cfg.Storage); err != nil {
			logg.Warn("Workbook archive storage unavailable", zap.Error(err))
		} else {
			archive = client
		}

		// 5. Build the hybrid row store (injected, bounded, memory-only).
		store := rowstore.New(cfg.RowStore, rowstore.NewGormDurable(db), logg)
		defer store.Shutdown()

		// 6. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true, // We will log our own startup message
		})

		// 7. Initialize Feature Loader
		mgr := loader.NewManager()
		mgr.Register(rows.NewFeature(store, archive, cfg.Storage.Bucket, logg))
		mgr.Register(report.NewFeature(store, db, logg, cfg.Match))

		// Middleware Registration
		// RayID must be first to trace everything.
		app.Use(rayid.New())

		// Request logging with Zap + RayID.
		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// Auth (protect every request).
		app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey}))

		// Load Features
		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		// Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", cfg.Server.Port))
			if err := app.Listen(":" + cfg.Server.Port); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		_ = app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
