package services

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/melih/lighthouse-panel/internal/core/domain"
	"github.com/melih/lighthouse-panel/internal/core/ports"
)

// SystemSubject is the identity scheduled jobs run as.
var SystemSubject = domain.Subject{ID: "system", Email: "system", Role: domain.RoleAdmin}

var (
	controllableServices = map[string]bool{"nginx": true, "postfix": true, "dovecot": true, "docker": true}
	serviceActions       = map[domain.ServiceAction]bool{
		domain.ActionStart: true, domain.ActionStop: true,
		domain.ActionRestart: true, domain.ActionReload: true,
	}
	firewallActions   = map[string]bool{"allow": true, "deny": true}
	firewallProtocols = map[string]bool{"tcp": true, "udp": true}
)

const (
	rebootDelay  = 2 * time.Second
	restartDelay = time.Second
	maxLogLines  = 5000
)

type SystemConfig struct {
	Version          string
	LetsEncryptEmail string
	WebrootPath      string
	CertRoot         string
	BackupDir        string
	BackupPaths      []string
	DatabaseDSN      string
	PanelService     string
	PanelRepoPath    string
	PanelRepoRemote  string
	// LogFiles maps an allow-listed log type to its file.
	LogFiles map[string]string
}

func (c *SystemConfig) defaults() {
	if c.WebrootPath == "" {
		c.WebrootPath = "/var/www/html"
	}
	if c.CertRoot == "" {
		c.CertRoot = "/etc/letsencrypt/live"
	}
	if c.BackupDir == "" {
		c.BackupDir = "/var/backups/lighthouse"
	}
	if c.BackupPaths == nil {
		c.BackupPaths = []string{"/etc/postfix", "/etc/dovecot", "/etc/nginx/sites-available", "/var/mail"}
	}
	if c.PanelService == "" {
		c.PanelService = "lighthouse"
	}
	if c.PanelRepoRemote == "" {
		c.PanelRepoRemote = "origin"
	}
	if c.LogFiles == nil {
		c.LogFiles = map[string]string{
			"system": "/var/log/syslog",
			"nginx":  "/var/log/nginx/error.log",
			"mail":   "/var/log/mail.log",
			"panel":  "/var/log/lighthouse/panel.log",
		}
	}
}

type SystemServiceDeps struct {
	Common
	Runner  ports.HostCommandRunner
	Stats   ports.HostStats
	Domains ports.DomainStore
	Updater ports.SourceUpdater
	Config  SystemConfig
	// After runs fn once d has elapsed. Defaults to time.AfterFunc.
	After func(d time.Duration, fn func())
}

// SystemService is the host operations gateway. Every call runs to
// completion or failure; nothing is queued or retried.
type SystemService struct {
	base
	runner  ports.HostCommandRunner
	stats   ports.HostStats
	domains ports.DomainStore
	updater ports.SourceUpdater
	cfg     SystemConfig
	after   func(time.Duration, func())
}

func NewSystemService(deps SystemServiceDeps) *SystemService {
	deps.Config.defaults()
	after := deps.After
	if after == nil {
		after = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	return &SystemService{
		base:    deps.Common.base(),
		runner:  deps.Runner,
		stats:   deps.Stats,
		domains: deps.Domains,
		updater: deps.Updater,
		cfg:     deps.Config,
		after:   after,
	}
}

// run executes a command and converts launch failures and non-zero exits
// into upstream errors carrying the captured output.
func (s *SystemService) run(ctx context.Context, what string, name string, args ...string) (string, error) {
	res, err := s.runner.Run(ctx, ports.Command{Name: name, Args: args})
	if err != nil {
		return "", domain.Upstream(what+" failed", err, "")
	}
	if res.ExitCode != 0 {
		details := strings.TrimSpace(res.Stderr)
		if details == "" {
			details = strings.TrimSpace(res.Output)
		}
		s.log.Error("host command failed",
			zap.String("command", name),
			zap.Strings("args", args),
			zap.Int("exit_code", res.ExitCode),
			zap.String("stderr", details))
		return res.Output, domain.Upstream(what+" failed", nil, details)
	}
	return res.Output, nil
}

func (s *SystemService) ControlService(ctx context.Context, sub domain.Subject, service string, action domain.ServiceAction) error {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return err
	}
	if !controllableServices[service] {
		return domain.Validationf("invalid service %q", service)
	}
	if !serviceActions[action] {
		return domain.Validationf("invalid action %q", action)
	}
	if _, err := s.run(ctx, fmt.Sprintf("service %s %s", service, action), "systemctl", string(action), service); err != nil {
		return err
	}
	s.log.Info("service controlled",
		zap.String("service", service),
		zap.String("action", string(action)),
		zap.String("by", sub.Email))
	return nil
}

// ServiceStatuses reports running/stopped for the monitored services.
func (s *SystemService) ServiceStatuses(ctx context.Context, sub domain.Subject) (map[string]string, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return nil, err
	}
	names := []string{"nginx", "postfix", "dovecot", "docker", "postgresql", s.cfg.PanelService}
	statuses := make(map[string]string, len(names))
	for _, name := range names {
		res, err := s.runner.Run(ctx, ports.Command{Name: "systemctl", Args: []string{"is-active", name}})
		if err == nil && strings.TrimSpace(res.Output) == "active" {
			statuses[name] = "running"
		} else {
			statuses[name] = "stopped"
		}
	}
	return statuses, nil
}

func (s *SystemService) FirewallStatus(ctx context.Context, sub domain.Subject) (string, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return "", err
	}
	return s.run(ctx, "firewall status", "ufw", "status", "numbered")
}

type FirewallRule struct {
	Port     string
	Protocol string
	Action   string
}

func (s *SystemService) AddFirewallRule(ctx context.Context, sub domain.Subject, rule FirewallRule) error {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return err
	}
	port, err := strconv.Atoi(strings.TrimSpace(rule.Port))
	if err != nil || port < 1 || port > 65535 {
		return domain.Validationf("a valid port number is required")
	}
	if rule.Protocol == "" {
		rule.Protocol = "tcp"
	}
	if rule.Action == "" {
		rule.Action = "allow"
	}
	if !firewallProtocols[rule.Protocol] {
		return domain.Validationf("invalid protocol %q", rule.Protocol)
	}
	if !firewallActions[rule.Action] {
		return domain.Validationf("invalid firewall action %q", rule.Action)
	}

	spec := fmt.Sprintf("%d/%s", port, rule.Protocol)
	if _, err := s.run(ctx, "firewall rule", "ufw", rule.Action, spec); err != nil {
		return err
	}
	s.log.Info("firewall rule added", zap.String("rule", rule.Action+" "+spec), zap.String("by", sub.Email))
	return nil
}

func (s *SystemService) DeleteFirewallRule(ctx context.Context, sub domain.Subject, number string) error {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return err
	}
	n, err := strconv.Atoi(number)
	if err != nil || n < 1 {
		return domain.Validationf("invalid rule number %q", number)
	}
	if _, err := s.run(ctx, "firewall rule removal", "ufw", "--force", "delete", strconv.Itoa(n)); err != nil {
		return err
	}
	s.log.Info("firewall rule removed", zap.Int("rule", n), zap.String("by", sub.Email))
	return nil
}

func (s *SystemService) loadDomain(ctx context.Context, sub domain.Subject, id string) (*domain.Domain, error) {
	d, err := s.domains.GetDomain(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(sub, d, ActionWrite); err != nil {
		return nil, err
	}
	return d, nil
}

// IssueCertificate requests a certificate for a verified domain. The domain
// is only updated when the certificate tool exits with status zero.
func (s *SystemService) IssueCertificate(ctx context.Context, sub domain.Subject, domainID string) (*domain.Domain, error) {
	d, err := s.loadDomain(ctx, sub, domainID)
	if err != nil {
		return nil, err
	}
	if !d.Verified {
		return nil, domain.Validationf("domain %s must be verified first", d.Name)
	}
	if s.cfg.LetsEncryptEmail == "" {
		return nil, domain.Validationf("no certificate contact email is configured")
	}

	_, err = s.run(ctx, "certificate issuance", "certbot", "certonly",
		"--webroot", "-w", s.cfg.WebrootPath,
		"-d", d.Name, "-d", "www."+d.Name,
		"--non-interactive", "--agree-tos",
		"-m", s.cfg.LetsEncryptEmail)
	if err != nil {
		return nil, err
	}

	expires := s.clock().Add(domain.SSLValidity)
	d.SSL = domain.SSLState{
		Enabled:   true,
		CertPath:  path.Join(s.cfg.CertRoot, d.Name, "fullchain.pem"),
		KeyPath:   path.Join(s.cfg.CertRoot, d.Name, "privkey.pem"),
		ExpiresAt: &expires,
	}
	d.UpdatedAt = s.clock()
	if err := s.domains.UpdateDomain(ctx, d); err != nil {
		return nil, err
	}
	s.log.Info("certificate issued", zap.String("domain", d.Name), zap.String("by", sub.Email))
	return d, nil
}

func (s *SystemService) RenewCertificate(ctx context.Context, sub domain.Subject, domainID string) (*domain.Domain, error) {
	d, err := s.loadDomain(ctx, sub, domainID)
	if err != nil {
		return nil, err
	}
	if !d.SSL.Enabled {
		return nil, domain.Validationf("SSL is not enabled for %s", d.Name)
	}
	if _, err := s.run(ctx, "certificate renewal", "certbot", "renew", "--cert-name", d.Name); err != nil {
		return nil, err
	}

	expires := s.clock().Add(domain.SSLValidity)
	d.SSL.ExpiresAt = &expires
	d.UpdatedAt = s.clock()
	if err := s.domains.UpdateDomain(ctx, d); err != nil {
		return nil, err
	}
	s.log.Info("certificate renewed", zap.String("domain", d.Name), zap.String("by", sub.Email))
	return d, nil
}

func (s *SystemService) RenewAllCertificates(ctx context.Context, sub domain.Subject) (string, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return "", err
	}
	out, err := s.run(ctx, "certificate renewal", "certbot", "renew")
	if err != nil {
		return out, err
	}
	s.log.Info("certificates renewed", zap.String("by", sub.Email))
	return out, nil
}

func (s *SystemService) ReloadNginx(ctx context.Context, sub domain.Subject) error {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return err
	}
	if _, err := s.run(ctx, "nginx configuration test", "nginx", "-t"); err != nil {
		return err
	}
	if _, err := s.run(ctx, "nginx reload", "systemctl", "reload", "nginx"); err != nil {
		return err
	}
	s.log.Info("nginx reloaded", zap.String("by", sub.Email))
	return nil
}

// CreateBackup dumps the registry database and archives it together with
// the mail and web server configuration.
func (s *SystemService) CreateBackup(ctx context.Context, sub domain.Subject) (*domain.Backup, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return nil, err
	}
	now := s.clock()
	stamp := now.Format("20060102-150405")
	archive := path.Join(s.cfg.BackupDir, "backup-"+stamp+".tar.gz")

	if _, err := s.run(ctx, "backup directory", "mkdir", "-p", s.cfg.BackupDir); err != nil {
		return nil, err
	}

	sources := append([]string(nil), s.cfg.BackupPaths...)
	if s.cfg.DatabaseDSN != "" {
		dump := path.Join(s.cfg.BackupDir, "db-"+stamp+".sql")
		if _, err := s.run(ctx, "database dump", "pg_dump", "--dbname="+s.cfg.DatabaseDSN, "--file="+dump); err != nil {
			return nil, err
		}
		defer func() {
			if _, err := s.run(context.WithoutCancel(ctx), "dump cleanup", "rm", "-f", dump); err != nil {
				s.log.Warn("failed to remove database dump", zap.String("file", dump), zap.Error(err))
			}
		}()
		sources = append([]string{dump}, sources...)
	}

	args := append([]string{"-czf", archive}, sources...)
	if _, err := s.run(ctx, "backup archive", "tar", args...); err != nil {
		return nil, err
	}

	s.log.Info("backup created", zap.String("file", archive), zap.String("by", sub.Email))
	return &domain.Backup{Name: path.Base(archive), Path: archive, CreatedAt: now}, nil
}

func (s *SystemService) ListBackups(ctx context.Context, sub domain.Subject) ([]domain.Backup, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return nil, err
	}
	res, err := s.runner.Run(ctx, ports.Command{
		Name: "find",
		Args: []string{s.cfg.BackupDir, "-maxdepth", "1", "-name", "*.tar.gz", "-printf", `%f\t%s\t%T@\n`},
	})
	if err != nil {
		return nil, domain.Upstream("backup listing failed", err, "")
	}
	// A missing backup directory simply means there are no backups yet.
	if res.ExitCode != 0 {
		return []domain.Backup{}, nil
	}
	return parseBackupListing(s.cfg.BackupDir, res.Output), nil
}

func parseBackupListing(dir, out string) []domain.Backup {
	backups := []domain.Backup{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			continue
		}
		size, _ := strconv.ParseInt(fields[1], 10, 64)
		secs, _ := strconv.ParseFloat(fields[2], 64)
		backups = append(backups, domain.Backup{
			Name:      fields[0],
			Path:      path.Join(dir, fields[0]),
			Size:      size,
			CreatedAt: time.Unix(int64(secs), 0).UTC(),
		})
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].CreatedAt.After(backups[j].CreatedAt) })
	return backups
}

func (s *SystemService) ReadLogs(ctx context.Context, sub domain.Subject, kind string, lines int) (string, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return "", err
	}
	file, ok := s.cfg.LogFiles[kind]
	if !ok {
		return "", domain.Validationf("invalid log type %q", kind)
	}
	if lines <= 0 {
		lines = DefaultLogTail
	}
	if lines > maxLogLines {
		lines = maxLogLines
	}
	return s.run(ctx, "log read", "tail", "-n", strconv.Itoa(lines), file)
}

// CheckUpdates lists the host packages apt would upgrade. It reads the local
// package index and does not refresh it.
func (s *SystemService) CheckUpdates(ctx context.Context, sub domain.Subject) (*domain.UpdateCheck, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return nil, err
	}
	out, err := s.run(ctx, "update check", "apt", "list", "--upgradable")
	if err != nil {
		return nil, err
	}
	pkgs := parseUpgradable(out)
	return &domain.UpdateCheck{
		Version:         s.cfg.Version,
		UpdateAvailable: len(pkgs) > 0,
		Packages:        pkgs,
	}, nil
}

// parseUpgradable reads lines of the form
// "nginx/jammy-updates 1.18.0-6ubuntu14.4 amd64 [upgradable from: 1.18.0-6ubuntu14.3]".
func parseUpgradable(out string) []domain.PackageUpdate {
	pkgs := []domain.PackageUpdate{}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || !strings.Contains(fields[0], "/") {
			continue
		}
		p := domain.PackageUpdate{
			Name:       fields[0][:strings.Index(fields[0], "/")],
			NewVersion: fields[1],
		}
		if i := strings.Index(line, "upgradable from: "); i >= 0 {
			p.CurrentVersion = strings.TrimSuffix(strings.TrimSpace(line[i+len("upgradable from: "):]), "]")
		}
		pkgs = append(pkgs, p)
	}
	return pkgs
}

// UpdatePackages upgrades the host's packages, publishing progress on the
// system topic.
func (s *SystemService) UpdatePackages(ctx context.Context, sub domain.Subject) (string, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return "", err
	}
	s.publish(domain.TopicSystem, domain.EventSystemUpdateStart, map[string]any{"target": "packages"})

	var out strings.Builder
	for _, args := range [][]string{{"update"}, {"upgrade", "-y"}} {
		o, err := s.run(ctx, "package "+args[0], "apt-get", args...)
		out.WriteString(o)
		if err != nil {
			s.publish(domain.TopicSystem, domain.EventSystemUpdateError, map[string]any{"target": "packages", "error": err.Error()})
			return out.String(), err
		}
	}

	s.publish(domain.TopicSystem, domain.EventSystemUpdateComplete, map[string]any{"target": "packages"})
	s.log.Info("system packages updated", zap.String("by", sub.Email))
	return out.String(), nil
}

// SelfUpdate pulls the panel's own checkout and schedules a service restart.
func (s *SystemService) SelfUpdate(ctx context.Context, sub domain.Subject) (string, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return "", err
	}
	if s.updater == nil || s.cfg.PanelRepoPath == "" {
		return "", domain.Validationf("self update is not configured")
	}
	s.publish(domain.TopicSystem, domain.EventSystemUpdateStart, map[string]any{"target": "panel"})

	head, err := s.updater.Pull(ctx, s.cfg.PanelRepoPath, s.cfg.PanelRepoRemote)
	if err != nil {
		s.publish(domain.TopicSystem, domain.EventSystemUpdateError, map[string]any{"target": "panel", "error": err.Error()})
		return "", domain.Upstream("panel update failed", err, "")
	}

	s.publish(domain.TopicSystem, domain.EventSystemUpdateComplete, map[string]any{"target": "panel", "revision": head})
	s.log.Info("panel updated", zap.String("revision", head), zap.String("by", sub.Email))
	s.schedule(restartDelay, "panel restart", "systemctl", "restart", s.cfg.PanelService)
	return head, nil
}

func (s *SystemService) RestartPanel(ctx context.Context, sub domain.Subject) error {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return err
	}
	s.log.Info("panel restart scheduled", zap.String("by", sub.Email))
	s.schedule(restartDelay, "panel restart", "systemctl", "restart", s.cfg.PanelService)
	return nil
}

func (s *SystemService) Reboot(ctx context.Context, sub domain.Subject) error {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return err
	}
	s.log.Warn("host reboot scheduled", zap.String("by", sub.Email))
	s.schedule(rebootDelay, "reboot", "systemctl", "reboot")
	return nil
}

// schedule runs a command after the HTTP response has been written.
func (s *SystemService) schedule(d time.Duration, what, name string, args ...string) {
	s.after(d, func() {
		if _, err := s.run(context.Background(), what, name, args...); err != nil {
			s.log.Error("scheduled command failed", zap.String("what", what), zap.Error(err))
		}
	})
}

func (s *SystemService) Info(ctx context.Context, sub domain.Subject) (*domain.HostInfo, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return nil, err
	}
	info, err := s.stats.Info(ctx)
	if err != nil {
		return nil, domain.Upstream("system information unavailable", err, "")
	}
	info.Version = s.cfg.Version
	return &info, nil
}

func (s *SystemService) Stats(ctx context.Context, sub domain.Subject) (*domain.HostStats, error) {
	if err := Authorize(sub, nil, ActionManage); err != nil {
		return nil, err
	}
	st, err := s.stats.Stats(ctx)
	if err != nil {
		return nil, domain.Upstream("system statistics unavailable", err, "")
	}
	return &st, nil
}
