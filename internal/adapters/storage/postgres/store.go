// Package postgres implements the registry on PostgreSQL through gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/melih/lighthouse-panel/internal/core/domain"
	"github.com/melih/lighthouse-panel/internal/core/ports"
)

var _ ports.Store = (*Store)(nil)

// Config holds the database connection settings.
type Config struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        gormlogger.LogLevel
}

// Open connects to the database and configures the connection pool.
func Open(cfg Config) (*gorm.DB, error) {
	level := cfg.LogLevel
	if level == 0 {
		level = gormlogger.Warn
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

// Migrate creates or updates the registry tables and their unique indexes.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&catalogModel{},
		&instanceModel{},
		&domainModel{},
		&mailAccountModel{},
		&userModel{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

var conflictMessages = map[string]string{
	"application":  "slug is already in use",
	"instance":     "container name is already in use",
	"domain":       "domain already exists",
	"mail account": "email address already exists",
	"user":         "email is already registered",
}

// translate maps gorm errors to the domain error taxonomy.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.NotFound(what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return domain.Conflict(conflictMessages[what])
	}
	return fmt.Errorf("failed to access %s: %w", what, err)
}

func (s *Store) first(ctx context.Context, dst any, what string, query string, args ...any) error {
	return translate(s.db.WithContext(ctx).Where(query, args...).First(dst).Error, what)
}

func (s *Store) create(ctx context.Context, model any, what string) error {
	return translate(s.db.WithContext(ctx).Create(model).Error, what)
}

// update writes every column of model, reporting a missing row as not found.
func (s *Store) update(ctx context.Context, model any, what string) error {
	res := s.db.WithContext(ctx).Model(model).Select("*").Updates(model)
	if res.Error != nil {
		return translate(res.Error, what)
	}
	if res.RowsAffected == 0 {
		return domain.NotFound(what)
	}
	return nil
}

func (s *Store) delete(ctx context.Context, model any, what string, id string) error {
	res := s.db.WithContext(ctx).Delete(model, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error, what)
	}
	if res.RowsAffected == 0 {
		return domain.NotFound(what)
	}
	return nil
}

// Catalog

func (s *Store) ListCatalog(ctx context.Context, filter ports.CatalogFilter) ([]domain.CatalogEntry, error) {
	q := s.db.WithContext(ctx).Model(&catalogModel{})
	if filter.Category != "" {
		q = q.Where("category = ?", string(filter.Category))
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	var rows []catalogModel
	if err := q.Order("popular DESC").Order("name ASC").Find(&rows).Error; err != nil {
		return nil, translate(err, "application")
	}
	out := make([]domain.CatalogEntry, 0, len(rows))
	for _, r := range rows {
		e, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) getCatalog(ctx context.Context, query string, arg any) (*domain.CatalogEntry, error) {
	var m catalogModel
	if err := s.first(ctx, &m, "application", query, arg); err != nil {
		return nil, err
	}
	e, err := m.toDomain()
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) GetCatalogEntry(ctx context.Context, id string) (*domain.CatalogEntry, error) {
	return s.getCatalog(ctx, "id = ?", id)
}

func (s *Store) GetCatalogEntryBySlug(ctx context.Context, slug string) (*domain.CatalogEntry, error) {
	return s.getCatalog(ctx, "slug = ?", slug)
}

func (s *Store) CreateCatalogEntry(ctx context.Context, e *domain.CatalogEntry) error {
	m := newCatalogModel(e)
	return s.create(ctx, &m, "application")
}

func (s *Store) UpdateCatalogEntry(ctx context.Context, e *domain.CatalogEntry) error {
	m := newCatalogModel(e)
	return s.update(ctx, &m, "application")
}

func (s *Store) DeleteCatalogEntry(ctx context.Context, id string) error {
	return s.delete(ctx, &catalogModel{}, "application", id)
}

// Instances

func (s *Store) ListInstances(ctx context.Context, ownerID string) ([]domain.Instance, error) {
	q := s.db.WithContext(ctx).Model(&instanceModel{})
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	var rows []instanceModel
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, translate(err, "instance")
	}
	out := make([]domain.Instance, 0, len(rows))
	for _, r := range rows {
		i, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, nil
}

func (s *Store) getInstance(ctx context.Context, query string, arg any) (*domain.Instance, error) {
	var m instanceModel
	if err := s.first(ctx, &m, "instance", query, arg); err != nil {
		return nil, err
	}
	i, err := m.toDomain()
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (s *Store) GetInstance(ctx context.Context, id string) (*domain.Instance, error) {
	return s.getInstance(ctx, "id = ?", id)
}

func (s *Store) GetInstanceByContainerName(ctx context.Context, name string) (*domain.Instance, error) {
	return s.getInstance(ctx, "container_name = ?", name)
}

func (s *Store) GetInstanceBySubdomain(ctx context.Context, subdomain string) (*domain.Instance, error) {
	if subdomain == "" {
		return nil, domain.NotFound("instance")
	}
	return s.getInstance(ctx, "subdomain = ?", subdomain)
}

func (s *Store) CreateInstance(ctx context.Context, inst *domain.Instance) error {
	m := newInstanceModel(inst)
	return s.create(ctx, &m, "instance")
}

func (s *Store) UpdateInstance(ctx context.Context, inst *domain.Instance) error {
	m := newInstanceModel(inst)
	return s.update(ctx, &m, "instance")
}

func (s *Store) DeleteInstance(ctx context.Context, id string) error {
	return s.delete(ctx, &instanceModel{}, "instance", id)
}

// Domains

func (s *Store) ListDomains(ctx context.Context, ownerID string) ([]domain.Domain, error) {
	q := s.db.WithContext(ctx).Model(&domainModel{})
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	var rows []domainModel
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, translate(err, "domain")
	}
	out := make([]domain.Domain, 0, len(rows))
	for _, r := range rows {
		d, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *Store) getDomain(ctx context.Context, query string, arg any) (*domain.Domain, error) {
	var m domainModel
	if err := s.first(ctx, &m, "domain", query, arg); err != nil {
		return nil, err
	}
	d, err := m.toDomain()
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) GetDomain(ctx context.Context, id string) (*domain.Domain, error) {
	return s.getDomain(ctx, "id = ?", id)
}

func (s *Store) GetDomainByName(ctx context.Context, name string) (*domain.Domain, error) {
	return s.getDomain(ctx, "name = ?", name)
}

func (s *Store) CreateDomain(ctx context.Context, d *domain.Domain) error {
	m := newDomainModel(d)
	return s.create(ctx, &m, "domain")
}

func (s *Store) UpdateDomain(ctx context.Context, d *domain.Domain) error {
	m := newDomainModel(d)
	return s.update(ctx, &m, "domain")
}

func (s *Store) DeleteDomain(ctx context.Context, id string) error {
	return s.delete(ctx, &domainModel{}, "domain", id)
}

// Mail accounts

func (s *Store) listMail(ctx context.Context, column, value string) ([]domain.MailAccount, error) {
	q := s.db.WithContext(ctx).Model(&mailAccountModel{})
	if value != "" {
		q = q.Where(column+" = ?", value)
	}
	var rows []mailAccountModel
	if err := q.Order("email ASC").Find(&rows).Error; err != nil {
		return nil, translate(err, "mail account")
	}
	out := make([]domain.MailAccount, 0, len(rows))
	for _, r := range rows {
		a, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) ListMailAccounts(ctx context.Context, ownerID string) ([]domain.MailAccount, error) {
	return s.listMail(ctx, "owner_id", ownerID)
}

func (s *Store) ListMailAccountsByDomain(ctx context.Context, domainID string) ([]domain.MailAccount, error) {
	if domainID == "" {
		return []domain.MailAccount{}, nil
	}
	return s.listMail(ctx, "domain_id", domainID)
}

func (s *Store) getMail(ctx context.Context, query string, arg any) (*domain.MailAccount, error) {
	var m mailAccountModel
	if err := s.first(ctx, &m, "mail account", query, arg); err != nil {
		return nil, err
	}
	a, err := m.toDomain()
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) GetMailAccount(ctx context.Context, id string) (*domain.MailAccount, error) {
	return s.getMail(ctx, "id = ?", id)
}

func (s *Store) GetMailAccountByEmail(ctx context.Context, email string) (*domain.MailAccount, error) {
	return s.getMail(ctx, "email = ?", email)
}

func (s *Store) CreateMailAccount(ctx context.Context, a *domain.MailAccount) error {
	m := newMailAccountModel(a)
	return s.create(ctx, &m, "mail account")
}

func (s *Store) UpdateMailAccount(ctx context.Context, a *domain.MailAccount) error {
	m := newMailAccountModel(a)
	return s.update(ctx, &m, "mail account")
}

func (s *Store) DeleteMailAccount(ctx context.Context, id string) error {
	return s.delete(ctx, &mailAccountModel{}, "mail account", id)
}

// Users

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	var rows []userModel
	if err := s.db.WithContext(ctx).Order("email ASC").Find(&rows).Error; err != nil {
		return nil, translate(err, "user")
	}
	out := make([]domain.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var m userModel
	if err := s.first(ctx, &m, "user", "id = ?", id); err != nil {
		return nil, err
	}
	u := m.toDomain()
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var m userModel
	if err := s.first(ctx, &m, "user", "email = ?", email); err != nil {
		return nil, err
	}
	u := m.toDomain()
	return &u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	m := newUserModel(u)
	return s.create(ctx, &m, "user")
}

func (s *Store) UpdateUser(ctx context.Context, u *domain.User) error {
	m := newUserModel(u)
	return s.update(ctx, &m, "user")
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.delete(ctx, &userModel{}, "user", id)
}
