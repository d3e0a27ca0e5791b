// Package memory is an in-process registry used by tests and by
// STORAGE_DRIVER=memory development runs. It enforces the same uniqueness
// rules as the postgres schema.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/melih/lighthouse-panel/internal/core/domain"
	"github.com/melih/lighthouse-panel/internal/core/ports"
)

var _ ports.Store = (*Store)(nil)

type Store struct {
	mu        sync.RWMutex
	catalog   map[string]domain.CatalogEntry
	instances map[string]domain.Instance
	domains   map[string]domain.Domain
	mail      map[string]domain.MailAccount
	users     map[string]domain.User
}

func New() *Store {
	return &Store{
		catalog:   map[string]domain.CatalogEntry{},
		instances: map[string]domain.Instance{},
		domains:   map[string]domain.Domain{},
		mail:      map[string]domain.MailAccount{},
		users:     map[string]domain.User{},
	}
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyCatalog(e domain.CatalogEntry) domain.CatalogEntry {
	e.Ports = cloneSlice(e.Ports)
	e.Volumes = cloneSlice(e.Volumes)
	e.Environment = cloneSlice(e.Environment)
	return e
}

func copyInstance(i domain.Instance) domain.Instance {
	i.Ports = cloneSlice(i.Ports)
	i.Volumes = cloneSlice(i.Volumes)
	i.Environment = cloneSlice(i.Environment)
	i.Logs = cloneSlice(i.Logs)
	return i
}

func copyDomain(d domain.Domain) domain.Domain {
	d.DNSRecords = cloneSlice(d.DNSRecords)
	d.SSL.ExpiresAt = clonePtr(d.SSL.ExpiresAt)
	return d
}

func copyMail(m domain.MailAccount) domain.MailAccount {
	m.Aliases = cloneSlice(m.Aliases)
	m.LastLogin = clonePtr(m.LastLogin)
	return m
}

func copyUser(u domain.User) domain.User {
	u.LastLogin = clonePtr(u.LastLogin)
	return u
}

// Catalog

func (s *Store) ListCatalog(_ context.Context, filter ports.CatalogFilter) ([]domain.CatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := []domain.CatalogEntry{}
	for _, e := range s.catalog {
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(e.Name), search) &&
			!strings.Contains(strings.ToLower(e.Description), search) {
			continue
		}
		out = append(out, copyCatalog(e))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Popular != out[j].Popular {
			return out[i].Popular
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) GetCatalogEntry(_ context.Context, id string) (*domain.CatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.catalog[id]
	if !ok {
		return nil, domain.NotFound("application")
	}
	e = copyCatalog(e)
	return &e, nil
}

func (s *Store) GetCatalogEntryBySlug(_ context.Context, slug string) (*domain.CatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.catalog {
		if e.Slug == slug {
			e = copyCatalog(e)
			return &e, nil
		}
	}
	return nil, domain.NotFound("application")
}

func (s *Store) CreateCatalogEntry(_ context.Context, e *domain.CatalogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.catalog {
		if other.Slug == e.Slug {
			return domain.Conflict("slug is already in use")
		}
	}
	s.catalog[e.ID] = copyCatalog(*e)
	return nil
}

func (s *Store) UpdateCatalogEntry(_ context.Context, e *domain.CatalogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.catalog[e.ID]; !ok {
		return domain.NotFound("application")
	}
	for id, other := range s.catalog {
		if id != e.ID && other.Slug == e.Slug {
			return domain.Conflict("slug is already in use")
		}
	}
	s.catalog[e.ID] = copyCatalog(*e)
	return nil
}

func (s *Store) DeleteCatalogEntry(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.catalog[id]; !ok {
		return domain.NotFound("application")
	}
	delete(s.catalog, id)
	return nil
}

// Instances

func (s *Store) ListInstances(_ context.Context, ownerID string) ([]domain.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Instance{}
	for _, i := range s.instances {
		if ownerID == "" || i.OwnerID == ownerID {
			out = append(out, copyInstance(i))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func (s *Store) GetInstance(_ context.Context, id string) (*domain.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.instances[id]
	if !ok {
		return nil, domain.NotFound("instance")
	}
	i = copyInstance(i)
	return &i, nil
}

func (s *Store) findInstance(match func(domain.Instance) bool) (*domain.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, i := range s.instances {
		if match(i) {
			i = copyInstance(i)
			return &i, nil
		}
	}
	return nil, domain.NotFound("instance")
}

func (s *Store) GetInstanceByContainerName(_ context.Context, name string) (*domain.Instance, error) {
	return s.findInstance(func(i domain.Instance) bool { return i.ContainerName == name })
}

func (s *Store) GetInstanceBySubdomain(_ context.Context, subdomain string) (*domain.Instance, error) {
	if subdomain == "" {
		return nil, domain.NotFound("instance")
	}
	return s.findInstance(func(i domain.Instance) bool { return i.Subdomain == subdomain })
}

func (s *Store) CreateInstance(_ context.Context, inst *domain.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.instances {
		if other.ContainerName == inst.ContainerName {
			return domain.Conflict("container name is already in use")
		}
	}
	s.instances[inst.ID] = copyInstance(*inst)
	return nil
}

func (s *Store) UpdateInstance(_ context.Context, inst *domain.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[inst.ID]; !ok {
		return domain.NotFound("instance")
	}
	for id, other := range s.instances {
		if id != inst.ID && other.ContainerName == inst.ContainerName {
			return domain.Conflict("container name is already in use")
		}
	}
	s.instances[inst.ID] = copyInstance(*inst)
	return nil
}

func (s *Store) DeleteInstance(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[id]; !ok {
		return domain.NotFound("instance")
	}
	delete(s.instances, id)
	return nil
}

// Domains

func (s *Store) ListDomains(_ context.Context, ownerID string) ([]domain.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Domain{}
	for _, d := range s.domains {
		if ownerID == "" || d.OwnerID == ownerID {
			out = append(out, copyDomain(d))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func (s *Store) GetDomain(_ context.Context, id string) (*domain.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.domains[id]
	if !ok {
		return nil, domain.NotFound("domain")
	}
	d = copyDomain(d)
	return &d, nil
}

func (s *Store) GetDomainByName(_ context.Context, name string) (*domain.Domain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.domains {
		if d.Name == name {
			d = copyDomain(d)
			return &d, nil
		}
	}
	return nil, domain.NotFound("domain")
}

func (s *Store) CreateDomain(_ context.Context, d *domain.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.domains {
		if other.Name == d.Name {
			return domain.Conflict("domain already exists")
		}
	}
	s.domains[d.ID] = copyDomain(*d)
	return nil
}

func (s *Store) UpdateDomain(_ context.Context, d *domain.Domain) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.domains[d.ID]; !ok {
		return domain.NotFound("domain")
	}
	s.domains[d.ID] = copyDomain(*d)
	return nil
}

func (s *Store) DeleteDomain(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.domains[id]; !ok {
		return domain.NotFound("domain")
	}
	delete(s.domains, id)
	return nil
}

// Mail accounts

func (s *Store) listMail(match func(domain.MailAccount) bool) []domain.MailAccount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.MailAccount{}
	for _, m := range s.mail {
		if match(m) {
			out = append(out, copyMail(m))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Email < out[b].Email })
	return out
}

func (s *Store) ListMailAccounts(_ context.Context, ownerID string) ([]domain.MailAccount, error) {
	return s.listMail(func(m domain.MailAccount) bool { return ownerID == "" || m.OwnerID == ownerID }), nil
}

func (s *Store) ListMailAccountsByDomain(_ context.Context, domainID string) ([]domain.MailAccount, error) {
	return s.listMail(func(m domain.MailAccount) bool { return m.DomainID == domainID }), nil
}

func (s *Store) GetMailAccount(_ context.Context, id string) (*domain.MailAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mail[id]
	if !ok {
		return nil, domain.NotFound("mail account")
	}
	m = copyMail(m)
	return &m, nil
}

func (s *Store) GetMailAccountByEmail(_ context.Context, email string) (*domain.MailAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.mail {
		if m.Email == email {
			m = copyMail(m)
			return &m, nil
		}
	}
	return nil, domain.NotFound("mail account")
}

func (s *Store) CreateMailAccount(_ context.Context, m *domain.MailAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.mail {
		if other.Email == m.Email {
			return domain.Conflict("email address already exists")
		}
	}
	s.mail[m.ID] = copyMail(*m)
	return nil
}

func (s *Store) UpdateMailAccount(_ context.Context, m *domain.MailAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mail[m.ID]; !ok {
		return domain.NotFound("mail account")
	}
	s.mail[m.ID] = copyMail(*m)
	return nil
}

func (s *Store) DeleteMailAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mail[id]; !ok {
		return domain.NotFound("mail account")
	}
	delete(s.mail, id)
	return nil
}

// Users

func (s *Store) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.User{}
	for _, u := range s.users {
		out = append(out, copyUser(u))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Email < out[b].Email })
	return out, nil
}

func (s *Store) GetUser(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.NotFound("user")
	}
	u = copyUser(u)
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			u = copyUser(u)
			return &u, nil
		}
	}
	return nil, domain.NotFound("user")
}

func (s *Store) CreateUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.users {
		if other.Email == u.Email {
			return domain.Conflict("email is already registered")
		}
	}
	s.users[u.ID] = copyUser(*u)
	return nil
}

func (s *Store) UpdateUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return domain.NotFound("user")
	}
	s.users[u.ID] = copyUser(*u)
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return domain.NotFound("user")
	}
	delete(s.users, id)
	return nil
}
