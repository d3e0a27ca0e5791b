package ports

import (
	"context"

	"github.com/melih/lighthouse-panel/internal/core/domain"
)

// Stores return domain.NotFound errors for missing records and
// domain.Conflict errors when a uniqueness constraint is violated.

type CatalogFilter struct {
	Category domain.Category
	Search   string
}

type CatalogStore interface {
	ListCatalog(ctx context.Context, filter CatalogFilter) ([]domain.CatalogEntry, error)
	GetCatalogEntry(ctx context.Context, id string) (*domain.CatalogEntry, error)
	GetCatalogEntryBySlug(ctx context.Context, slug string) (*domain.CatalogEntry, error)
	CreateCatalogEntry(ctx context.Context, e *domain.CatalogEntry) error
	UpdateCatalogEntry(ctx context.Context, e *domain.CatalogEntry) error
	DeleteCatalogEntry(ctx context.Context, id string) error
}

type InstanceStore interface {
	// ListInstances returns instances owned by ownerID, or all when ownerID is empty.
	ListInstances(ctx context.Context, ownerID string) ([]domain.Instance, error)
	GetInstance(ctx context.Context, id string) (*domain.Instance, error)
	GetInstanceByContainerName(ctx context.Context, name string) (*domain.Instance, error)
	GetInstanceBySubdomain(ctx context.Context, subdomain string) (*domain.Instance, error)
	CreateInstance(ctx context.Context, inst *domain.Instance) error
	UpdateInstance(ctx context.Context, inst *domain.Instance) error
	DeleteInstance(ctx context.Context, id string) error
}

type DomainStore interface {
	ListDomains(ctx context.Context, ownerID string) ([]domain.Domain, error)
	GetDomain(ctx context.Context, id string) (*domain.Domain, error)
	GetDomainByName(ctx context.Context, name string) (*domain.Domain, error)
	CreateDomain(ctx context.Context, d *domain.Domain) error
	UpdateDomain(ctx context.Context, d *domain.Domain) error
	DeleteDomain(ctx context.Context, id string) error
}

type MailStore interface {
	ListMailAccounts(ctx context.Context, ownerID string) ([]domain.MailAccount, error)
	ListMailAccountsByDomain(ctx context.Context, domainID string) ([]domain.MailAccount, error)
	GetMailAccount(ctx context.Context, id string) (*domain.MailAccount, error)
	GetMailAccountByEmail(ctx context.Context, email string) (*domain.MailAccount, error)
	CreateMailAccount(ctx context.Context, m *domain.MailAccount) error
	UpdateMailAccount(ctx context.Context, m *domain.MailAccount) error
	DeleteMailAccount(ctx context.Context, id string) error
}

type UserStore interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	CreateUser(ctx context.Context, u *domain.User) error
	UpdateUser(ctx context.Context, u *domain.User) error
	DeleteUser(ctx context.Context, id string) error
}

// Store is the full registry.
type Store interface {
	CatalogStore
	InstanceStore
	DomainStore
	MailStore
	UserStore
}
