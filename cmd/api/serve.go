package main

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/melih/lighthouse-panel/internal/adapters/auth"
	"github.com/melih/lighthouse-panel/internal/adapters/builder"
	"github.com/melih/lighthouse-panel/internal/adapters/dns"
	"github.com/melih/lighthouse-panel/internal/adapters/docker"
	"github.com/melih/lighthouse-panel/internal/adapters/hoststats"
	httpadapter "github.com/melih/lighthouse-panel/internal/adapters/http"
	"github.com/melih/lighthouse-panel/internal/adapters/mailserver"
	"github.com/melih/lighthouse-panel/internal/adapters/realtime"
	"github.com/melih/lighthouse-panel/internal/adapters/shell"
	"github.com/melih/lighthouse-panel/internal/config"
	"github.com/melih/lighthouse-panel/internal/core/services"
	"github.com/melih/lighthouse-panel/internal/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and the realtime event hub",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log.Info("starting lighthouse", append(cfg.LogConfig(), zap.String("version", version))...)

	// 1. Initialize Adapters (Infrastructure)
	store, closeStore, err := openStore(cfg, log, true)
	if err != nil {
		return err
	}
	defer closeStore()

	dockerAdapter, err := docker.NewAdapter()
	if err != nil {
		return fmt.Errorf("failed to initialize Docker adapter: %w", err)
	}
	builderAdapter, err := builder.NewBuilderAdapter()
	if err != nil {
		return fmt.Errorf("failed to initialize builder: %w", err)
	}

	runner := shell.NewRunner(log.Named("shell"), shell.DefaultPrograms)
	broker := realtime.NewBroker()
	defer broker.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.NewHTTPMetrics("lighthouse", reg)

	// 2. Initialize the use cases
	common := services.Common{Logger: log, Events: broker}
	authSvc, err := newAuthService(cfg, common, store)
	if err != nil {
		return err
	}
	svc := httpadapter.Services{
		Auth:    authSvc,
		Catalog: services.NewCatalogService(common, store),
		Apps: services.NewAppService(services.AppServiceDeps{
			Common:    common,
			Catalog:   store,
			Instances: store,
			Domains:   store,
			Runtime:   dockerAdapter,
			Builder:   builderAdapter,
			Recorder:  httpMetrics,
		}),
		Domains: services.NewDomainService(services.DomainServiceDeps{
			Common:       common,
			Domains:      store,
			Resolver:     dns.NewResolver(cfg.System.DNSServer, 5*time.Second),
			VerifyPrefix: cfg.System.VerifyPrefix,
		}),
		Mail: services.NewMailService(services.MailServiceDeps{
			Common:   common,
			Accounts: store,
			Domains:  store,
			Hasher:   auth.BcryptHasher{},
			Provisioner: mailserver.NewProvisioner(mailserver.Config{
				VhostsPath:       cfg.Mail.VhostsPath,
				VmailboxPath:     cfg.Mail.VmailboxPath,
				DovecotUsersPath: cfg.Mail.DovecotUsersPath,
				MailRoot:         cfg.Mail.MailRoot,
			}, runner, log.Named("mail")),
		}),
		System: services.NewSystemService(services.SystemServiceDeps{
			Common:  common,
			Runner:  runner,
			Stats:   hoststats.New(),
			Domains: store,
			Updater: builder.GitUpdater{},
			Config:  systemConfig(cfg),
		}),
		Containers: services.NewContainerService(common, dockerAdapter),
	}

	// 3. Scheduled certificate renewal
	if spec := cfg.System.SSLRenewSchedule; spec != "" {
		c := cron.New()
		_, err := c.AddFunc(spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			if _, err := svc.System.RenewAllCertificates(ctx, services.SystemSubject); err != nil {
				log.Error("scheduled certificate renewal failed", zap.Error(err))
				return
			}
			log.Info("certificates renewed")
		})
		if err != nil {
			return fmt.Errorf("invalid SSL_RENEW_SCHEDULE %q: %w", spec, err)
		}
		c.Start()
		defer c.Stop()
	}

	// 4. Setup Framework (Fiber) and the websocket hub
	app := httpadapter.NewRouter(svc, httpadapter.RouterConfig{
		Logger:             log.Named("http"),
		BaseDomain:         cfg.Server.BaseDomain,
		AllowedOrigins:     strings.Join(cfg.Server.AllowedOrigins, ","),
		TokenTTL:           cfg.TokenTTL(),
		SecureCookies:      cfg.Server.SecureCookies,
		LoginRatePerMinute: cfg.Security.LoginRatePerMinute,
		Metrics:            httpMetrics.Middleware(),
		MetricsHTTP:        httpMetrics.Handler(),
	})

	hub := realtime.NewHub(broker, log.Named("realtime"), realtime.HubConfig{
		Authorize: func(r *nethttp.Request) error {
			token := r.URL.Query().Get("token")
			if token == "" {
				cookie := ""
				if c, err := r.Cookie(httpadapter.TokenCookie); err == nil {
					cookie = c.Value
				}
				token = httpadapter.TokenFromRequest(r.Header.Get("Authorization"), cookie)
			}
			_, err := authSvc.Authenticate(r.Context(), token)
			return err
		},
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	mux := nethttp.NewServeMux()
	mux.Handle("/ws", hub)
	realtimeServer := &nethttp.Server{
		Addr:              cfg.Server.RealtimeAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 5. Start Servers
	errCh := make(chan error, 2)
	go func() {
		log.Info("API server starting", zap.String("addr", cfg.Server.Addr))
		errCh <- app.Listen(cfg.Server.Addr)
	}()
	go func() {
		log.Info("realtime hub starting", zap.String("addr", cfg.Server.RealtimeAddr))
		if err := realtimeServer.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case runErr = <-errCh:
		log.Error("server failed", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := realtimeServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("realtime hub shutdown", zap.Error(err))
	}
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Warn("API server shutdown", zap.Error(err))
	}
	return runErr
}

func systemConfig(cfg *config.Config) services.SystemConfig {
	sc := services.SystemConfig{
		Version:          version,
		LetsEncryptEmail: cfg.System.LetsEncryptEmail,
		WebrootPath:      cfg.System.WebrootPath,
		BackupDir:        cfg.System.BackupDir,
		PanelService:     cfg.System.PanelService,
		PanelRepoPath:    cfg.System.PanelRepoPath,
		PanelRepoRemote:  cfg.System.PanelRepoRemote,
	}
	if cfg.Storage.Driver == "postgres" {
		sc.DatabaseDSN = cfg.DB.URL()
	}
	return sc
}
