package postgres

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/melih/lighthouse-panel/internal/core/domain"
)

// Nested collections are stored as jsonb columns.

func toJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}

func fromJSON(data datatypes.JSON, dst any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode column: %w", err)
	}
	return nil
}

type catalogModel struct {
	ID            string         `gorm:"primaryKey;type:varchar(64)"`
	Name          string         `gorm:"type:varchar(100);not null"`
	Slug          string         `gorm:"type:varchar(100);uniqueIndex;not null"`
	Description   string         `gorm:"type:text"`
	Icon          string         `gorm:"type:varchar(255)"`
	Category      string         `gorm:"type:varchar(32);index"`
	Image         string         `gorm:"type:varchar(255);not null"`
	Tag           string         `gorm:"type:varchar(128)"`
	SourceRepo    string         `gorm:"type:varchar(512)"`
	Ports         datatypes.JSON `gorm:"type:jsonb"`
	Volumes       datatypes.JSON `gorm:"type:jsonb"`
	Environment   datatypes.JSON `gorm:"type:jsonb"`
	MinMemoryMB   int64
	MinCPU        float64
	Website       string `gorm:"type:varchar(255)"`
	Documentation string `gorm:"type:varchar(255)"`
	Popular       bool   `gorm:"index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (catalogModel) TableName() string { return "catalog_entries" }

func newCatalogModel(e *domain.CatalogEntry) catalogModel {
	return catalogModel{
		ID:            e.ID,
		Name:          e.Name,
		Slug:          e.Slug,
		Description:   e.Description,
		Icon:          e.Icon,
		Category:      string(e.Category),
		Image:         e.Image,
		Tag:           e.Tag,
		SourceRepo:    e.SourceRepo,
		Ports:         toJSON(e.Ports),
		Volumes:       toJSON(e.Volumes),
		Environment:   toJSON(e.Environment),
		MinMemoryMB:   e.MinMemoryMB,
		MinCPU:        e.MinCPU,
		Website:       e.Website,
		Documentation: e.Documentation,
		Popular:       e.Popular,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func (m catalogModel) toDomain() (domain.CatalogEntry, error) {
	e := domain.CatalogEntry{
		ID:            m.ID,
		Name:          m.Name,
		Slug:          m.Slug,
		Description:   m.Description,
		Icon:          m.Icon,
		Category:      domain.Category(m.Category),
		Image:         m.Image,
		Tag:           m.Tag,
		SourceRepo:    m.SourceRepo,
		MinMemoryMB:   m.MinMemoryMB,
		MinCPU:        m.MinCPU,
		Website:       m.Website,
		Documentation: m.Documentation,
		Popular:       m.Popular,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	for _, col := range []struct {
		data datatypes.JSON
		dst  any
	}{{m.Ports, &e.Ports}, {m.Volumes, &e.Volumes}, {m.Environment, &e.Environment}} {
		if err := fromJSON(col.data, col.dst); err != nil {
			return e, err
		}
	}
	return e, nil
}

type instanceModel struct {
	ID            string         `gorm:"primaryKey;type:varchar(64)"`
	CatalogID     string         `gorm:"type:varchar(64);index"`
	OwnerID       string         `gorm:"type:varchar(64);index"`
	DomainID      string         `gorm:"type:varchar(64);index"`
	Subdomain     string         `gorm:"type:varchar(100);index"`
	ContainerName string         `gorm:"type:varchar(128);uniqueIndex;not null"`
	ContainerID   string         `gorm:"type:varchar(128)"`
	Status        string         `gorm:"type:varchar(32)"`
	Ports         datatypes.JSON `gorm:"type:jsonb"`
	Volumes       datatypes.JSON `gorm:"type:jsonb"`
	Environment   datatypes.JSON `gorm:"type:jsonb"`
	MemoryMB      int64
	CPU           float64
	AutoStart     bool
	Logs          datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (instanceModel) TableName() string { return "instances" }

func newInstanceModel(i *domain.Instance) instanceModel {
	return instanceModel{
		ID:            i.ID,
		CatalogID:     i.CatalogID,
		OwnerID:       i.OwnerID,
		DomainID:      i.DomainID,
		Subdomain:     i.Subdomain,
		ContainerName: i.ContainerName,
		ContainerID:   i.ContainerID,
		Status:        string(i.Status),
		Ports:         toJSON(i.Ports),
		Volumes:       toJSON(i.Volumes),
		Environment:   toJSON(i.Environment),
		MemoryMB:      i.MemoryMB,
		CPU:           i.CPU,
		AutoStart:     i.AutoStart,
		Logs:          toJSON(i.Logs),
		CreatedAt:     i.CreatedAt,
		UpdatedAt:     i.UpdatedAt,
	}
}

func (m instanceModel) toDomain() (domain.Instance, error) {
	i := domain.Instance{
		ID:            m.ID,
		CatalogID:     m.CatalogID,
		OwnerID:       m.OwnerID,
		DomainID:      m.DomainID,
		Subdomain:     m.Subdomain,
		ContainerName: m.ContainerName,
		ContainerID:   m.ContainerID,
		Status:        domain.InstanceStatus(m.Status),
		MemoryMB:      m.MemoryMB,
		CPU:           m.CPU,
		AutoStart:     m.AutoStart,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	for _, col := range []struct {
		data datatypes.JSON
		dst  any
	}{{m.Ports, &i.Ports}, {m.Volumes, &i.Volumes}, {m.Environment, &i.Environment}, {m.Logs, &i.Logs}} {
		if err := fromJSON(col.data, col.dst); err != nil {
			return i, err
		}
	}
	return i, nil
}

type domainModel struct {
	ID                string `gorm:"primaryKey;type:varchar(64)"`
	Name              string `gorm:"type:varchar(253);uniqueIndex;not null"`
	OwnerID           string `gorm:"type:varchar(64);index"`
	Active            bool
	Verified          bool
	VerificationToken string         `gorm:"type:varchar(64)"`
	DNSRecords        datatypes.JSON `gorm:"type:jsonb"`
	SSLEnabled        bool
	SSLCertPath       string `gorm:"type:varchar(512)"`
	SSLKeyPath        string `gorm:"type:varchar(512)"`
	SSLExpiresAt      *time.Time
	MailEnabled       bool
	Settings          datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (domainModel) TableName() string { return "domains" }

func newDomainModel(d *domain.Domain) domainModel {
	return domainModel{
		ID:                d.ID,
		Name:              d.Name,
		OwnerID:           d.OwnerID,
		Active:            d.Active,
		Verified:          d.Verified,
		VerificationToken: d.VerificationToken,
		DNSRecords:        toJSON(d.DNSRecords),
		SSLEnabled:        d.SSL.Enabled,
		SSLCertPath:       d.SSL.CertPath,
		SSLKeyPath:        d.SSL.KeyPath,
		SSLExpiresAt:      d.SSL.ExpiresAt,
		MailEnabled:       d.MailEnabled,
		Settings:          toJSON(d.Settings),
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

func (m domainModel) toDomain() (domain.Domain, error) {
	d := domain.Domain{
		ID:                m.ID,
		Name:              m.Name,
		OwnerID:           m.OwnerID,
		Active:            m.Active,
		Verified:          m.Verified,
		VerificationToken: m.VerificationToken,
		SSL: domain.SSLState{
			Enabled:   m.SSLEnabled,
			CertPath:  m.SSLCertPath,
			KeyPath:   m.SSLKeyPath,
			ExpiresAt: m.SSLExpiresAt,
		},
		MailEnabled: m.MailEnabled,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if err := fromJSON(m.DNSRecords, &d.DNSRecords); err != nil {
		return d, err
	}
	return d, fromJSON(m.Settings, &d.Settings)
}

type mailAccountModel struct {
	ID                string `gorm:"primaryKey;type:varchar(64)"`
	Email             string `gorm:"type:varchar(320);uniqueIndex;not null"`
	PasswordHash      string `gorm:"type:varchar(255)"`
	DomainID          string `gorm:"type:varchar(64);index"`
	OwnerID           string `gorm:"type:varchar(64);index"`
	DisplayName       string `gorm:"type:varchar(255)"`
	Active            bool
	Quota             int64
	UsedQuota         int64
	ForwardingEnabled bool
	ForwardingAddress string `gorm:"type:varchar(320)"`
	AutoReplyEnabled  bool
	AutoReplySubject  string `gorm:"type:varchar(255)"`
	AutoReplyMessage  string `gorm:"type:text"`
	Aliases           datatypes.JSON `gorm:"type:jsonb"`
	LastLogin         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (mailAccountModel) TableName() string { return "mail_accounts" }

func newMailAccountModel(a *domain.MailAccount) mailAccountModel {
	return mailAccountModel{
		ID:                a.ID,
		Email:             a.Email,
		PasswordHash:      a.PasswordHash,
		DomainID:          a.DomainID,
		OwnerID:           a.OwnerID,
		DisplayName:       a.DisplayName,
		Active:            a.Active,
		Quota:             a.Quota,
		UsedQuota:         a.UsedQuota,
		ForwardingEnabled: a.ForwardingEnabled,
		ForwardingAddress: a.ForwardingAddress,
		AutoReplyEnabled:  a.AutoReplyEnabled,
		AutoReplySubject:  a.AutoReplySubject,
		AutoReplyMessage:  a.AutoReplyMessage,
		Aliases:           toJSON(a.Aliases),
		LastLogin:         a.LastLogin,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

func (m mailAccountModel) toDomain() (domain.MailAccount, error) {
	a := domain.MailAccount{
		ID:                m.ID,
		Email:             m.Email,
		PasswordHash:      m.PasswordHash,
		DomainID:          m.DomainID,
		OwnerID:           m.OwnerID,
		DisplayName:       m.DisplayName,
		Active:            m.Active,
		Quota:             m.Quota,
		UsedQuota:         m.UsedQuota,
		ForwardingEnabled: m.ForwardingEnabled,
		ForwardingAddress: m.ForwardingAddress,
		AutoReplyEnabled:  m.AutoReplyEnabled,
		AutoReplySubject:  m.AutoReplySubject,
		AutoReplyMessage:  m.AutoReplyMessage,
		LastLogin:         m.LastLogin,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
	return a, fromJSON(m.Aliases, &a.Aliases)
}

type userModel struct {
	ID           string `gorm:"primaryKey;type:varchar(64)"`
	Email        string `gorm:"type:varchar(100);uniqueIndex;not null"`
	Name         string `gorm:"type:varchar(255)"`
	PasswordHash string `gorm:"type:varchar(255)"`
	Role         string `gorm:"type:varchar(16)"`
	Active       bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userModel) TableName() string { return "users" }

func newUserModel(u *domain.User) userModel {
	return userModel{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Active:       u.Active,
		LastLogin:    u.LastLogin,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (m userModel) toDomain() domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		Name:         m.Name,
		PasswordHash: m.PasswordHash,
		Role:         domain.Role(m.Role),
		Active:       m.Active,
		LastLogin:    m.LastLogin,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
