package http

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/melih/lighthouse-panel/internal/core/services"
	"github.com/melih/lighthouse-panel/internal/logger"
)

// Services bundles the use cases the API exposes.
type Services struct {
	Auth       *services.AuthService
	Catalog    *services.CatalogService
	Apps       *services.AppService
	Domains    *services.DomainService
	Mail       *services.MailService
	System     *services.SystemService
	Containers *services.ContainerService
}

type RouterConfig struct {
	Logger             *zap.Logger
	BaseDomain         string
	// AllowedOrigins is a comma separated CORS allow-list; empty disables CORS.
	AllowedOrigins     string
	TokenTTL           time.Duration
	SecureCookies      bool
	LoginRatePerMinute int
	// Metrics, when set, is exposed on /metrics and wraps every request.
	Metrics            fiber.Handler
	MetricsHTTP        http.Handler
}

// NewRouter builds the fiber application with every route registered.
func NewRouter(svc Services, cfg RouterConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "lighthouse",
		ErrorHandler: ErrorHandler,
	})

	if cfg.Metrics != nil {
		app.Use(cfg.Metrics)
	}
	app.Use(logger.Middleware(cfg.Logger))
	app.Use(recover.New())

	// Subdomain requests go to installed apps before any API route.
	proxy := NewProxyHandler(svc.Apps, cfg.BaseDomain)
	app.Use(proxy.ProxyRequest)

	if cfg.AllowedOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowCredentials: true,
		}))
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if cfg.MetricsHTTP != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.MetricsHTTP))
	}

	authed := RequireAuth(svc.Auth)
	admin := RequireAdmin()

	api := app.Group("/api")

	// Auth
	authHandler := NewAuthHandler(svc.Auth, cfg.TokenTTL, cfg.SecureCookies)
	auth := api.Group("/auth")
	auth.Post("/login", RateLimit(cfg.LoginRatePerMinute), authHandler.Login)
	auth.Post("/logout", authHandler.Logout)
	auth.Get("/me", authed, authHandler.Me)
	auth.Put("/password", authed, authHandler.ChangePassword)
	auth.Put("/profile", authed, authHandler.UpdateProfile)
	auth.Get("/users", authed, admin, authHandler.ListUsers)
	auth.Post("/users", authed, admin, authHandler.CreateUser)
	auth.Delete("/users/:id", authed, admin, authHandler.DeleteUser)

	// Apps
	appHandler := NewAppHandler(svc.Catalog, svc.Apps)
	apps := api.Group("/apps", authed)
	apps.Post("/:id/install", admin, appHandler.Install)
	apps.Get("/catalog", appHandler.ListCatalog)
	apps.Get("/catalog/:id", appHandler.GetCatalogEntry)
	apps.Post("/catalog", admin, appHandler.CreateCatalogEntry)
	apps.Put("/catalog/:id", admin, appHandler.UpdateCatalogEntry)
	apps.Delete("/catalog/:id", admin, appHandler.DeleteCatalogEntry)
	apps.Post("/seed", admin, appHandler.SeedCatalog)
	apps.Get("/installed", appHandler.ListInstalled)
	apps.Get("/installed/:id", appHandler.GetInstalled)
	apps.Post("/installed/:id/start", admin, appHandler.Start)
	apps.Post("/installed/:id/stop", admin, appHandler.Stop)
	apps.Post("/installed/:id/restart", admin, appHandler.Restart)
	apps.Delete("/installed/:id", admin, appHandler.Uninstall)
	apps.Get("/installed/:id/logs", appHandler.Logs)

	// Domains
	domainHandler := NewDomainHandler(svc.Domains, svc.System)
	domains := api.Group("/domains", authed)
	domains.Get("/", domainHandler.List)
	domains.Post("/", domainHandler.Create)
	domains.Get("/:id", domainHandler.Get)
	domains.Put("/:id", domainHandler.Update)
	domains.Delete("/:id", domainHandler.Delete)
	domains.Post("/:id/records", domainHandler.AddRecord)
	domains.Put("/:id/records/:recordId", domainHandler.UpdateRecord)
	domains.Delete("/:id/records/:recordId", domainHandler.DeleteRecord)
	domains.Post("/:id/verify", domainHandler.Verify)
	domains.Post("/:id/ssl", domainHandler.IssueSSL)
	domains.Post("/:id/ssl/renew", domainHandler.RenewSSL)

	// Mail
	mailHandler := NewMailHandler(svc.Mail)
	mail := api.Group("/mail", authed)
	mail.Get("/accounts", mailHandler.List)
	mail.Post("/accounts", mailHandler.Create)
	mail.Get("/accounts/:id", mailHandler.Get)
	mail.Put("/accounts/:id", mailHandler.Update)
	mail.Delete("/accounts/:id", mailHandler.Delete)
	mail.Put("/accounts/:id/password", mailHandler.ChangePassword)
	mail.Get("/accounts/:id/stats", mailHandler.Stats)
	mail.Get("/domains/:domainId/accounts", mailHandler.ListByDomain)
	mail.Post("/domains/:domainId/enable", mailHandler.EnableDomain)

	// System
	systemHandler := NewSystemHandler(svc.System)
	system := api.Group("/system", authed, admin)
	system.Get("/info", systemHandler.Info)
	system.Get("/stats", systemHandler.Stats)
	system.Get("/services", systemHandler.Services)
	system.Post("/services/:name/:action", systemHandler.ControlService)
	system.Get("/firewall", systemHandler.Firewall)
	system.Post("/firewall", systemHandler.AddFirewallRule)
	system.Delete("/firewall/:number", systemHandler.DeleteFirewallRule)
	system.Post("/ssl/renew-all", systemHandler.RenewAllCertificates)
	system.Post("/nginx/reload", systemHandler.ReloadNginx)
	system.Get("/backups", systemHandler.ListBackups)
	system.Post("/backups", systemHandler.CreateBackup)
	system.Get("/logs/:type", systemHandler.Logs)
	system.Get("/check-update", systemHandler.CheckUpdates)
	system.Post("/update", systemHandler.UpdatePackages)
	system.Post("/self-update", systemHandler.SelfUpdate)
	system.Post("/restart", systemHandler.RestartPanel)
	system.Post("/reboot", systemHandler.Reboot)

	// Docker
	containerHandler := NewContainerHandler(svc.Containers)
	docker := api.Group("/docker", authed, admin)
	docker.Get("/status", containerHandler.Status)
	docker.Get("/images", containerHandler.ListImages)
	docker.Post("/images/pull", containerHandler.PullImage)
	docker.Delete("/images/:id", containerHandler.RemoveImage)
	docker.Get("/networks", containerHandler.ListNetworks)
	docker.Post("/networks", containerHandler.CreateNetwork)
	docker.Get("/volumes", containerHandler.ListVolumes)
	docker.Post("/volumes", containerHandler.CreateVolume)

	containers := docker.Group("/containers")
	containers.Get("/", containerHandler.ListContainers)
	containers.Post("/", containerHandler.CreateContainer)
	containers.Post("/pull", containerHandler.PullImage)
	containers.Get("/:id", containerHandler.InspectContainer)
	containers.Post("/:id/start", containerHandler.StartContainer)
	containers.Post("/:id/stop", containerHandler.StopContainer)
	containers.Post("/:id/restart", containerHandler.RestartContainer)
	containers.Post("/:id/exec", containerHandler.ExecContainer)
	containers.Delete("/:id", containerHandler.RemoveContainer)
	containers.Get("/:id/logs", containerHandler.GetContainerLogs)

	return app
}
