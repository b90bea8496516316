package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mertgercek/AffiliateSystemForClinichub/Captcha"
	"github.com/mertgercek/AffiliateSystemForClinichub/Config"
	"github.com/mertgercek/AffiliateSystemForClinichub/Controllers"
	"github.com/mertgercek/AffiliateSystemForClinichub/CronJobs"
	"github.com/mertgercek/AffiliateSystemForClinichub/Email"
	"github.com/mertgercek/AffiliateSystemForClinichub/FirebaseMessaging"
	"github.com/mertgercek/AffiliateSystemForClinichub/GeoIP"
	"github.com/mertgercek/AffiliateSystemForClinichub/Importer"
	"github.com/mertgercek/AffiliateSystemForClinichub/Logging"
	"github.com/mertgercek/AffiliateSystemForClinichub/Middleware"
	"github.com/mertgercek/AffiliateSystemForClinichub/Models"
	"github.com/mertgercek/AffiliateSystemForClinichub/Routes"
	"github.com/mertgercek/AffiliateSystemForClinichub/Utils/Token"
	"github.com/mertgercek/AffiliateSystemForClinichub/Webhooks"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinichub",
		Short: "ClinicHub affiliate referral platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(importCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration, the logger and the database shared by every command.
func setup() (*Config.Config, error) {
	cfg := Config.Load()
	if err := Logging.InitLogger(cfg.IsRelease(), cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if err := Models.ConnectDataBase(cfg); err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server, webhook workers and cron jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer Logging.Sync()

	if err := Models.SeedAdmin(Models.DB, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		Logging.Logger.Error("Failed to seed admin user", zap.Error(err))
	}

	Token.Setup(cfg.APISecret, cfg.TokenHourLifespan)
	Controllers.Configure(cfg)
	Email.Setup(cfg)
	GeoIP.Setup(cfg)
	Captcha.Setup(cfg)
	if err := FirebaseMessaging.Setup(cfg); err != nil {
		Logging.Logger.Warn("Push notifications disabled", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := Webhooks.Setup(ctx, cfg)
	defer dispatcher.Stop()

	maintenance := CronJobs.NewMaintenance(Models.DB, cfg.ReconcileInterval)
	scheduler, err := maintenance.StartCron()
	if err != nil {
		return fmt.Errorf("start cron: %w", err)
	}
	defer scheduler.Stop()

	if cfg.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(Middleware.RequestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", Middleware.APIKeyHeader},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           time.Hour,
	}))
	Routes.ConfigRoutes(router, Middleware.NewRateLimiter(cfg.APIRateLimit, cfg.APIRateWindow))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	go func() {
		Logging.Logger.Info("Server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logging.Logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	Logging.Logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the admin account and the sample treatment catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			defer Logging.Sync()

			if err := Models.SeedAdmin(Models.DB, cfg.AdminEmail, cfg.AdminPassword); err != nil {
				return err
			}
			created, err := Models.SeedCatalogue(Models.DB)
			if err != nil {
				return err
			}
			fmt.Printf("Created %d treatment groups\n", created)
			return nil
		},
	}
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute every affiliate's earnings from completed referrals",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}
			defer Logging.Sync()

			drifted, err := CronJobs.NewMaintenance(Models.DB, cfg.ReconcileInterval).ReconcileEarnings()
			if err != nil {
				return err
			}
			fmt.Printf("Corrected %d affiliates: %v\n", len(drifted), drifted)
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [groups|treatments|mappings] [file]",
		Short: "Bulk import a CSV or XLSX file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := setup(); err != nil {
				return err
			}
			defer Logging.Sync()

			file, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer file.Close()

			result, err := Importer.ImportFile(Models.DB, args[0], args[1], file)
			if err != nil {
				return err
			}
			fmt.Printf("%s: %d created, %d updated, %d skipped\n", result.Kind, result.Created, result.Updated, result.Skipped)
			for _, rowErr := range result.Errors {
				fmt.Printf("  line %d: %s\n", rowErr.Line, rowErr.Message)
			}
			return nil
		},
	}
}
