package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"vpnproxy/internal/config"
	"vpnproxy/internal/database"
	"vpnproxy/internal/logger"
	"vpnproxy/pkg/checker"
	"vpnproxy/pkg/display"
	"vpnproxy/pkg/manager"
	"vpnproxy/pkg/scraper"
)

var (
	configPath = flag.StringP("config", "c", "", "Path to config file")
	genConfig  = flag.Bool("gen-config", false, "Generate default config file")
	version    = flag.BoolP("version", "v", false, "Show version")
	limit      = flag.IntP("limit", "n", 0, "Check at most this many scraped proxies (0 checks all)")
)

const Version = "1.0.0"

var runLog = logger.New("proxycheck")

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("proxycheck v%s\n", Version)
		return
	}

	if *genConfig {
		if err := config.SaveConfigTemplate("config.yaml"); err != nil {
			log.Fatalf("Failed to generate config: %v", err)
		}
		fmt.Println("Default config generated: config.yaml")
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	config.PrintConfig(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		stop()
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	printer := display.NewPrinter(os.Stdout)

	scraperConfig := scraper.ScraperConfig{
		Timeout:      cfg.Scraper.Timeout,
		UserAgent:    cfg.Scraper.UserAgent,
		Sources:      cfg.Scraper.Sources,
		PageURL:      cfg.Scraper.PageURL,
		Limit:        cfg.Scraper.Limit,
		RequireHTTPS: cfg.Scraper.RequireHTTPS,
	}

	checkerConfig := checker.CheckerConfig{
		TestURL:    cfg.Checker.TestURL,
		Timeout:    cfg.Checker.Timeout,
		MaxWorkers: cfg.Checker.MaxWorkers,
		UserAgent:  cfg.Checker.UserAgent,
		RateLimit:  cfg.Checker.RateLimit,
	}

	var proxyChecker manager.ProxyChecker = checker.NewCheckerWithConfig(checkerConfig)
	var dbChecker *checker.DBChecker

	if cfg.Database.Enabled {
		db, err := database.NewDB(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer db.Close()

		dbChecker = checker.NewDBChecker(checker.NewCheckerWithConfig(checkerConfig), database.NewService(db), cfg.Checker.CheckInterval)
		if removed, err := dbChecker.CleanupOldProxies(ctx, cfg.Database.MaxAge); err != nil {
			runLog.WarnBg("Failed to clean up old proxies: %v", err)
		} else if removed > 0 {
			runLog.InfoBg("Removed %d proxies not healthy within %v", removed, cfg.Database.MaxAge)
		}
		proxyChecker = dbChecker
	}

	mgr := manager.NewManager(scraper.NewMultiScraperWithConfig(scraperConfig), proxyChecker, *limit)
	report, err := mgr.Run(ctx)
	if err != nil {
		return err
	}

	printer.CheckResults(report.Results)
	printer.Stats(report.Stats)
	if report.Stats.TotalProxies > 0 && report.Stats.HealthyCount == 0 {
		printer.Warning("No healthy proxies found")
	}

	if dbChecker != nil {
		stats, err := dbChecker.GetStats(ctx)
		if err != nil {
			return fmt.Errorf("failed to read database stats: %w", err)
		}
		printer.Notice("Database: %d proxies tracked, %d healthy", stats.Total, stats.Healthy)
	}

	return nil
}
