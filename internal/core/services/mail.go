package services

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/melih/lighthouse-panel/internal/core/domain"
	"github.com/melih/lighthouse-panel/internal/core/ports"
)

var mailUserRE = regexp.MustCompile(`^[a-z0-9]([a-z0-9._+-]*[a-z0-9])?$`)

const minPasswordLength = 8

type MailServiceDeps struct {
	Common
	Accounts    ports.MailStore
	Domains     ports.DomainStore
	Hasher      ports.PasswordHasher
	Provisioner ports.MailProvisioner
}

type MailService struct {
	base
	accounts    ports.MailStore
	domains     ports.DomainStore
	hasher      ports.PasswordHasher
	provisioner ports.MailProvisioner
}

func NewMailService(deps MailServiceDeps) *MailService {
	return &MailService{
		base:        deps.Common.base(),
		accounts:    deps.Accounts,
		domains:     deps.Domains,
		hasher:      deps.Hasher,
		provisioner: deps.Provisioner,
	}
}

func (s *MailService) List(ctx context.Context, sub domain.Subject) ([]domain.MailAccount, error) {
	if err := Authorize(sub, nil, ActionRead); err != nil {
		return nil, err
	}
	return s.accounts.ListMailAccounts(ctx, ownerScope(sub))
}

func (s *MailService) ListByDomain(ctx context.Context, sub domain.Subject, domainID string) ([]domain.MailAccount, error) {
	d, err := s.domains.GetDomain(ctx, domainID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(sub, d, ActionRead); err != nil {
		return nil, err
	}
	return s.accounts.ListMailAccountsByDomain(ctx, d.ID)
}

func (s *MailService) load(ctx context.Context, sub domain.Subject, id string, action Action) (*domain.MailAccount, error) {
	m, err := s.accounts.GetMailAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(sub, m, action); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *MailService) Get(ctx context.Context, sub domain.Subject, id string) (*domain.MailAccount, error) {
	return s.load(ctx, sub, id, ActionRead)
}

type NewMailAccount struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DomainID    string `json:"domain_id"`
	DisplayName string `json:"display_name"`
	Quota       int64  `json:"quota"`
}

// Create adds username@domain to a mail-enabled domain the subject owns.
func (s *MailService) Create(ctx context.Context, sub domain.Subject, req NewMailAccount) (*domain.MailAccount, error) {
	d, err := s.domains.GetDomain(ctx, req.DomainID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(sub, d, ActionWrite); err != nil {
		return nil, err
	}
	if !d.MailEnabled {
		return nil, domain.Validationf("mail is not enabled for %s", d.Name)
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	if !mailUserRE.MatchString(username) {
		return nil, domain.Validationf("invalid username %q", req.Username)
	}
	if len(req.Password) < minPasswordLength {
		return nil, domain.Validationf("password must be at least %d characters", minPasswordLength)
	}
	if req.Quota < 0 {
		return nil, domain.Validationf("quota must not be negative")
	}

	email := domain.MailAddress(username, d.Name)
	if _, err := s.accounts.GetMailAccountByEmail(ctx, email); err == nil {
		return nil, domain.Conflict("email address is already registered")
	} else if !domain.IsNotFound(err) {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	m := &domain.MailAccount{
		ID:           s.newID(),
		Email:        email,
		PasswordHash: hash,
		DomainID:     d.ID,
		OwnerID:      sub.ID,
		DisplayName:  req.DisplayName,
		Active:       true,
		Quota:        req.Quota,
		Aliases:      []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if m.DisplayName == "" {
		m.DisplayName = username
	}
	if m.Quota == 0 {
		m.Quota = domain.DefaultQuota
	}

	if err := s.accounts.CreateMailAccount(ctx, m); err != nil {
		return nil, err
	}
	if err := s.provisioner.UpsertMailbox(ctx, email, hash); err != nil {
		// Drop the record so a retry is not rejected as a duplicate.
		if derr := s.accounts.DeleteMailAccount(ctx, m.ID); derr != nil {
			s.log.Error("mail account rollback failed", zap.String("email", email), zap.Error(derr))
		}
		return nil, domain.Upstream("mail server configuration could not be updated", err, "")
	}

	s.log.Info("mail account created", zap.String("email", email), zap.String("by", sub.Email))
	return m, nil
}

type MailAccountUpdate struct {
	DisplayName       *string   `json:"display_name"`
	Active            *bool     `json:"active"`
	Quota             *int64    `json:"quota"`
	ForwardingEnabled *bool     `json:"forwarding_enabled"`
	ForwardingAddress *string   `json:"forwarding_address"`
	AutoReplyEnabled  *bool     `json:"auto_reply_enabled"`
	AutoReplySubject  *string   `json:"auto_reply_subject"`
	AutoReplyMessage  *string   `json:"auto_reply_message"`
	Aliases           *[]string `json:"aliases"`
}

func (s *MailService) Update(ctx context.Context, sub domain.Subject, id string, u MailAccountUpdate) (*domain.MailAccount, error) {
	m, err := s.load(ctx, sub, id, ActionWrite)
	if err != nil {
		return nil, err
	}
	if u.Quota != nil && *u.Quota <= 0 {
		return nil, domain.Validationf("quota must be positive")
	}
	set(&m.DisplayName, u.DisplayName)
	set(&m.Active, u.Active)
	set(&m.Quota, u.Quota)
	set(&m.ForwardingEnabled, u.ForwardingEnabled)
	set(&m.ForwardingAddress, u.ForwardingAddress)
	set(&m.AutoReplyEnabled, u.AutoReplyEnabled)
	set(&m.AutoReplySubject, u.AutoReplySubject)
	set(&m.AutoReplyMessage, u.AutoReplyMessage)
	if u.Aliases != nil {
		aliases := make([]string, 0, len(*u.Aliases))
		for _, a := range *u.Aliases {
			aliases = append(aliases, strings.ToLower(strings.TrimSpace(a)))
		}
		m.Aliases = aliases
	}
	if m.ForwardingEnabled && m.ForwardingAddress == "" {
		return nil, domain.Validationf("forwarding address is required when forwarding is enabled")
	}

	m.UpdatedAt = s.clock()
	if err := s.accounts.UpdateMailAccount(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *MailService) ChangePassword(ctx context.Context, sub domain.Subject, id, password string) error {
	m, err := s.load(ctx, sub, id, ActionWrite)
	if err != nil {
		return err
	}
	if len(password) < minPasswordLength {
		return domain.Validationf("password must be at least %d characters", minPasswordLength)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	m.PasswordHash = hash
	m.UpdatedAt = s.clock()
	if err := s.accounts.UpdateMailAccount(ctx, m); err != nil {
		return err
	}
	if err := s.provisioner.UpsertMailbox(ctx, m.Email, hash); err != nil {
		return domain.Upstream("mail server configuration could not be updated", err, "")
	}
	s.log.Info("mail password changed", zap.String("email", m.Email))
	return nil
}

func (s *MailService) Delete(ctx context.Context, sub domain.Subject, id string) error {
	m, err := s.load(ctx, sub, id, ActionWrite)
	if err != nil {
		return err
	}
	if err := s.accounts.DeleteMailAccount(ctx, m.ID); err != nil {
		return err
	}
	if err := s.provisioner.RemoveMailbox(ctx, m.Email); err != nil {
		s.log.Error("failed to remove mailbox from mail server", zap.String("email", m.Email), zap.Error(err))
	}
	s.log.Info("mail account deleted", zap.String("email", m.Email), zap.String("by", sub.Email))
	return nil
}

type MailStats struct {
	Email       string     `json:"email"`
	Quota       int64      `json:"quota"`
	UsedQuota   int64      `json:"used_quota"`
	UsedPercent int        `json:"used_percent"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
}

func (s *MailService) Stats(ctx context.Context, sub domain.Subject, id string) (*MailStats, error) {
	m, err := s.load(ctx, sub, id, ActionRead)
	if err != nil {
		return nil, err
	}
	used, err := s.provisioner.MailboxUsage(ctx, m.Email)
	if err != nil {
		s.log.Debug("mailbox usage unavailable", zap.String("email", m.Email), zap.Error(err))
		used = 0
	}
	stats := &MailStats{Email: m.Email, Quota: m.Quota, UsedQuota: used, LastLogin: m.LastLogin}
	if m.Quota > 0 {
		stats.UsedPercent = int(used * 100 / m.Quota)
	}
	return stats, nil
}

// EnableResult carries the records the operator must publish in DNS.
type EnableResult struct {
	Domain     *domain.Domain     `json:"domain"`
	DNSRecords []domain.DNSRecord `json:"dns_records"`
}

// EnableForDomain turns on mail for a domain: sets the SPF policy, adds an
// MX record when none exists and registers the domain with the mail server.
func (s *MailService) EnableForDomain(ctx context.Context, sub domain.Subject, domainID string) (*EnableResult, error) {
	d, err := s.domains.GetDomain(ctx, domainID)
	if err != nil {
		return nil, err
	}
	if err := Authorize(sub, d, ActionWrite); err != nil {
		return nil, err
	}

	d.MailEnabled = true
	d.Settings.SPFRecord = domain.SPFRecord
	if !d.HasRecordType("MX") {
		d.DNSRecords = append(d.DNSRecords, domain.DNSRecord{
			ID: s.newID(), Type: "MX", Name: "@", Value: "mail." + d.Name,
			TTL: domain.DefaultTTL, Priority: domain.DefaultPriority,
		})
	}
	d.UpdatedAt = s.clock()
	if err := s.domains.UpdateDomain(ctx, d); err != nil {
		return nil, err
	}
	if err := s.provisioner.AddDomain(ctx, d.Name); err != nil {
		s.log.Error("failed to register mail domain", zap.String("domain", d.Name), zap.Error(err))
	}

	s.log.Info("mail enabled", zap.String("domain", d.Name), zap.String("by", sub.Email))
	return &EnableResult{
		Domain: d,
		DNSRecords: []domain.DNSRecord{
			{Type: "MX", Name: "@", Value: "mail." + d.Name, Priority: domain.DefaultPriority},
			{Type: "TXT", Name: "@", Value: domain.SPFRecord},
			{Type: "A", Name: "mail", Value: "SERVER_IP"},
		},
	}, nil
}
