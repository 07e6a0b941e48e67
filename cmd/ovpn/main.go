package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	flag "github.com/spf13/pflag"

	"vpnproxy/internal/config"
	"vpnproxy/internal/logger"
	"vpnproxy/pkg/display"
	"vpnproxy/pkg/output"
	"vpnproxy/pkg/prompt"
	"vpnproxy/pkg/selector"
	"vpnproxy/pkg/vpngate"
)

var (
	configPath = flag.StringP("config", "c", "", "Path to config file")
	genConfig  = flag.Bool("gen-config", false, "Generate default config file")
	version    = flag.BoolP("version", "v", false, "Show version")
	country    = flag.String("country", "", "Save the profile for this country without prompting")
	listOnly   = flag.BoolP("list", "l", false, "List the best server per country and exit")
	exportPath = flag.String("export", "", "Write the server catalog as CSV to this path")
)

const (
	Version = "1.0.0"
	Banner  = `
             __/\__
            '==/\=='
  ____________/__\____________
 /___________ ovpn ___________\
/_____________________________\
   __||__||__/.--.\__||__||__
  /__|___|___( >< )___|___|__\
            _/'--'\_
           (/------\)

VPN Gate profile picker v%s
`
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("ovpn v%s\n", Version)
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
		if errors.Is(err, prompt.ErrAborted) || errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		stop()
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	printer := display.NewPrinter(os.Stdout)
	printer.Banner(fmt.Sprintf(Banner, Version))

	client := vpngate.NewClientWithConfig(vpngate.ClientConfig{
		APIURL:     cfg.VPN.APIURL,
		Timeout:    cfg.VPN.Timeout,
		UserAgent:  cfg.VPN.UserAgent,
		Retries:    cfg.VPN.Retries,
		RetryDelay: cfg.VPN.RetryDelay,
	})

	records, err := client.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch server list: %w", err)
	}

	catalog := selector.SelectBestWith(records, selector.Options{ExactMatch: cfg.VPN.ExactCountryMatch})
	order := catalog.Countries()
	if len(order) == 0 {
		return errors.New("no server in the list offers an OpenVPN profile")
	}

	fs := afero.NewOsFs()
	if *exportPath != "" {
		if err := output.ExportCatalog(fs, *exportPath, catalog, order); err != nil {
			return err
		}
		printer.Notice("Catalog written to %s", *exportPath)
	}

	if *country == "" || *listOnly {
		printer.Catalog(catalog, order)
	}
	if *listOnly {
		return nil
	}

	name, record, err := pick(ctx, catalog, order, cfg.VPN.MaxAttempts)
	if err != nil {
		return err
	}

	writer := output.NewProfileWriter(fs, cfg.VPN.OutputDir, cfg.VPN.Extension, cfg.VPN.Overwrite)
	path, err := writer.Path(name)
	if err != nil {
		return err
	}
	printer.Notice("\nSaving as %s", path)

	_, err = writer.Save(name, record)
	return err
}

func pick(ctx context.Context, catalog selector.Catalog, order []string, maxAttempts int) (string, vpngate.ServerRecord, error) {
	if *country != "" {
		name, record, ok := catalog.Lookup(*country)
		if !ok {
			return "", vpngate.ServerRecord{}, fmt.Errorf("no OpenVPN server for country %q", *country)
		}
		return name, record, nil
	}
	return prompt.New(os.Stdin, os.Stdout, maxAttempts).Choose(ctx, catalog, order)
}
