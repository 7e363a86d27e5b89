package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jptrhost/pelican-dns/internal/client"
	"github.com/jptrhost/pelican-dns/internal/config"
	"github.com/jptrhost/pelican-dns/internal/logging"
	"github.com/jptrhost/pelican-dns/internal/repository"
	"github.com/jptrhost/pelican-dns/internal/service"
	"github.com/jptrhost/pelican-dns/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "pelican-dns",
	Short: "Creates Cloudflare SRV records for new Pelican servers",
	Long: `pelican-dns receives Pelican "server created" webhooks and gives each
allocation a friendly <name>-<suffix>.<domain> address backed by an SRV record.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, provisionCmd, versionCmd)
}

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the wired components shared by serve and provision.
type app struct {
	cfg       *config.Config
	log       logr.Logger
	store     repository.RecordStore
	provision *service.ProvisionService
	cleanup   func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log, syncLog, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	if cfg.Cloudflare.APIToken == "" {
		log.Info("CLOUDFLARE_API_TOKEN is not set; every provisioning run will fail with MissingCredential")
	}

	var store repository.RecordStore
	var ledger service.RecordLedger
	if cfg.Database.URL != "" {
		openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		store, err = repository.Open(openCtx, cfg.Database.URL)
		if err != nil {
			syncLog()
			return nil, err
		}
		ledger = store
		log.Info("provisioning ledger enabled")
	} else {
		log.Info("DATABASE_URL is not set; redelivered webhooks will create duplicate records")
	}

	cf := client.NewCloudflareClient(cfg.Cloudflare.BaseURL, cfg.Cloudflare.APIToken, cfg.Cloudflare.Timeout, log.WithName("cloudflare"))

	provision := service.NewProvisionService(
		service.NewNameGenerator(cfg.DNS.ParentDomain, cfg.DNS.SuffixLength),
		service.NewZoneResolver(cf, cfg.DNS.ParentDomain, cfg.DNS.ZoneCacheTTL, log.WithName("zones")),
		service.NewRecordProvisioner(cf, service.SRVSettings{
			Prefix:   cfg.DNS.SRVPrefix(),
			Priority: uint16(cfg.DNS.Priority),
			Weight:   uint16(cfg.DNS.Weight),
			TTL:      time.Duration(cfg.DNS.TTL) * time.Second,
		}, log.WithName("records")),
		ledger,
		cfg.DNS.TargetHost,
		cfg.Webhook.Timeout,
		log.WithName("pipeline"),
	)

	return &app{
		cfg:       cfg,
		log:       log,
		store:     store,
		provision: provision,
		cleanup: func() {
			if store != nil {
				store.Close()
			}
			syncLog()
		},
	}, nil
}
