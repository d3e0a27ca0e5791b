package services

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"github.com/melih/lighthouse-panel/internal/core/domain"
	"github.com/melih/lighthouse-panel/internal/core/ports"
)

var domainNameRE = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,}$`)

type DomainServiceDeps struct {
	Common
	Domains  ports.DomainStore
	Resolver ports.TXTResolver
	// VerifyPrefix is the label prepended to the domain for the TXT lookup.
	VerifyPrefix string
}

type DomainService struct {
	base
	store        ports.DomainStore
	resolver     ports.TXTResolver
	verifyPrefix string
}

func NewDomainService(deps DomainServiceDeps) *DomainService {
	prefix := deps.VerifyPrefix
	if prefix == "" {
		prefix = "_lighthouse-verify"
	}
	return &DomainService{
		base:         deps.Common.base(),
		store:        deps.Domains,
		resolver:     deps.Resolver,
		verifyPrefix: prefix,
	}
}

func (s *DomainService) List(ctx context.Context, sub domain.Subject) ([]domain.Domain, error) {
	if err := Authorize(sub, nil, ActionRead); err != nil {
		return nil, err
	}
	return s.store.ListDomains(ctx, ownerScope(sub))
}

// load fetches a domain and checks the subject may perform action on it.
func (s *DomainService) load(ctx context.Context, sub domain.Subject, id string, action Action) (*domain.Domain, error) {
	d, err := s.store.GetDomain(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := Authorize(sub, d, action); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DomainService) Get(ctx context.Context, sub domain.Subject, id string) (*domain.Domain, error) {
	return s.load(ctx, sub, id, ActionRead)
}

func (s *DomainService) Create(ctx context.Context, sub domain.Subject, name string) (*domain.Domain, error) {
	if err := Authorize(sub, nil, ActionWrite); err != nil {
		return nil, err
	}
	name = domain.NormalizeDomainName(name)
	if !domainNameRE.MatchString(name) {
		return nil, domain.Validationf("invalid domain name %q", name)
	}
	if _, err := s.store.GetDomainByName(ctx, name); err == nil {
		return nil, domain.Conflict("domain is already registered")
	} else if !domain.IsNotFound(err) {
		return nil, err
	}

	now := s.clock()
	d := &domain.Domain{
		ID:                s.newID(),
		Name:              name,
		OwnerID:           sub.ID,
		Active:            true,
		VerificationToken: s.newID(),
		DNSRecords: []domain.DNSRecord{
			{ID: s.newID(), Type: "A", Name: "@", Value: "127.0.0.1", TTL: domain.DefaultTTL, Priority: domain.DefaultPriority},
			{ID: s.newID(), Type: "MX", Name: "@", Value: "mail." + name, TTL: domain.DefaultTTL, Priority: domain.DefaultPriority},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateDomain(ctx, d); err != nil {
		return nil, err
	}
	s.log.Info("domain created", zap.String("domain", name), zap.String("by", sub.Email))
	return d, nil
}

// DomainUpdate lists the fields an owner may change.
type DomainUpdate struct {
	Active      *bool                  `json:"active"`
	MailEnabled *bool                  `json:"mail_enabled"`
	Settings    *domain.DomainSettings `json:"settings"`
}

func (s *DomainService) Update(ctx context.Context, sub domain.Subject, id string, u DomainUpdate) (*domain.Domain, error) {
	d, err := s.load(ctx, sub, id, ActionWrite)
	if err != nil {
		return nil, err
	}
	set(&d.Active, u.Active)
	set(&d.MailEnabled, u.MailEnabled)
	set(&d.Settings, u.Settings)
	d.UpdatedAt = s.clock()
	if err := s.store.UpdateDomain(ctx, d); err != nil {
		return nil, err
	}
	s.log.Info("domain updated", zap.String("domain", d.Name), zap.String("by", sub.Email))
	return d, nil
}

func (s *DomainService) Delete(ctx context.Context, sub domain.Subject, id string) error {
	d, err := s.load(ctx, sub, id, ActionWrite)
	if err != nil {
		return err
	}
	if err := s.store.DeleteDomain(ctx, d.ID); err != nil {
		return err
	}
	s.log.Info("domain deleted", zap.String("domain", d.Name), zap.String("by", sub.Email))
	return nil
}

func normalizeRecord(r *domain.DNSRecord) error {
	if !r.Type.Valid() {
		return domain.Validationf("invalid record type %q", r.Type)
	}
	if r.Name == "" || r.Value == "" {
		return domain.Validationf("record name and value are required")
	}
	if r.TTL <= 0 {
		r.TTL = domain.DefaultTTL
	}
	if r.Priority <= 0 {
		r.Priority = domain.DefaultPriority
	}
	return nil
}

func (s *DomainService) AddRecord(ctx context.Context, sub domain.Subject, id string, r domain.DNSRecord) (*domain.Domain, error) {
	d, err := s.load(ctx, sub, id, ActionWrite)
	if err != nil {
		return nil, err
	}
	if err := normalizeRecord(&r); err != nil {
		return nil, err
	}
	r.ID = s.newID()
	d.DNSRecords = append(d.DNSRecords, r)
	d.UpdatedAt = s.clock()
	if err := s.store.UpdateDomain(ctx, d); err != nil {
		return nil, err
	}
	s.log.Info("dns record added",
		zap.String("domain", d.Name),
		zap.String("type", string(r.Type)),
		zap.String("name", r.Name))
	return d, nil
}

// UpdateRecord overwrites the non-zero fields of patch onto the record.
func (s *DomainService) UpdateRecord(ctx context.Context, sub domain.Subject, id, recordID string, patch domain.DNSRecord) (*domain.Domain, error) {
	d, err := s.load(ctx, sub, id, ActionWrite)
	if err != nil {
		return nil, err
	}
	i, ok := d.FindRecord(recordID)
	if !ok {
		return nil, domain.NotFound("dns record")
	}
	r := d.DNSRecords[i]
	if patch.Type != "" {
		r.Type = patch.Type
	}
	if patch.Name != "" {
		r.Name = patch.Name
	}
	if patch.Value != "" {
		r.Value = patch.Value
	}
	if patch.TTL > 0 {
		r.TTL = patch.TTL
	}
	if patch.Priority > 0 {
		r.Priority = patch.Priority
	}
	if err := normalizeRecord(&r); err != nil {
		return nil, err
	}
	d.DNSRecords[i] = r
	d.UpdatedAt = s.clock()
	if err := s.store.UpdateDomain(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DomainService) DeleteRecord(ctx context.Context, sub domain.Subject, id, recordID string) (*domain.Domain, error) {
	d, err := s.load(ctx, sub, id, ActionWrite)
	if err != nil {
		return nil, err
	}
	i, ok := d.FindRecord(recordID)
	if !ok {
		return nil, domain.NotFound("dns record")
	}
	d.DNSRecords = append(d.DNSRecords[:i], d.DNSRecords[i+1:]...)
	d.UpdatedAt = s.clock()
	if err := s.store.UpdateDomain(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// VerificationName is the TXT record name checked by Verify.
func (s *DomainService) VerificationName(d *domain.Domain) string {
	return s.verifyPrefix + "." + d.Name
}

// Verify marks the domain verified when any TXT value of the verification
// name equals the stored token exactly.
func (s *DomainService) Verify(ctx context.Context, sub domain.Subject, id string) (*domain.Domain, error) {
	d, err := s.load(ctx, sub, id, ActionWrite)
	if err != nil {
		return nil, err
	}

	name := s.VerificationName(d)
	values, err := s.resolver.LookupTXT(ctx, name)
	if err != nil {
		s.log.Debug("txt lookup failed", zap.String("name", name), zap.Error(err))
	}
	if !containsExact(values, d.VerificationToken) {
		return nil, &domain.Error{
			Kind:    domain.KindValidation,
			Message: "domain could not be verified",
			Details: "TXT record " + name + " was not found or does not match the verification token",
		}
	}

	d.Verified = true
	d.UpdatedAt = s.clock()
	if err := s.store.UpdateDomain(ctx, d); err != nil {
		return nil, err
	}
	s.log.Info("domain verified", zap.String("domain", d.Name))
	return d, nil
}

func containsExact(values []string, token string) bool {
	if token == "" {
		return false
	}
	for _, v := range values {
		if v == token {
			return true
		}
	}
	return false
}
