package domain

import (
	"strings"
	"time"
)

type DNSRecordType string

var dnsRecordTypes = map[DNSRecordType]bool{
	"A": true, "AAAA": true, "CNAME": true, "MX": true,
	"TXT": true, "NS": true, "SRV": true, "CAA": true,
}

func (t DNSRecordType) Valid() bool { return dnsRecordTypes[t] }

const (
	DefaultTTL      = 3600
	DefaultPriority = 10
	SSLValidity     = 90 * 24 * time.Hour
	SPFRecord       = "v=spf1 mx a ~all"
)

type DNSRecord struct {
	ID       string        `json:"id"`
	Type     DNSRecordType `json:"type"`
	Name     string        `json:"name"`
	Value    string        `json:"value"`
	TTL      int           `json:"ttl"`
	Priority int           `json:"priority"`
}

type SSLState struct {
	Enabled   bool       `json:"enabled"`
	CertPath  string     `json:"cert_path,omitempty"`
	KeyPath   string     `json:"key_path,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type DomainSettings struct {
	CatchAll        bool   `json:"catch_all"`
	CatchAllAddress string `json:"catch_all_address,omitempty"`
	SPFRecord       string `json:"spf_record,omitempty"`
	DKIMEnabled     bool   `json:"dkim_enabled"`
	DMARCRecord     string `json:"dmarc_record,omitempty"`
}

// Domain is a hosted domain. Name is globally unique and lower-cased.
type Domain struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	OwnerID           string         `json:"owner_id"`
	Active            bool           `json:"active"`
	Verified          bool           `json:"verified"`
	VerificationToken string         `json:"verification_token,omitempty"`
	DNSRecords        []DNSRecord    `json:"dns_records"`
	SSL               SSLState       `json:"ssl"`
	MailEnabled       bool           `json:"mail_enabled"`
	Settings          DomainSettings `json:"settings"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func (d *Domain) Owner() string { return d.OwnerID }

func NormalizeDomainName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (d *Domain) HasRecordType(t DNSRecordType) bool {
	for _, r := range d.DNSRecords {
		if r.Type == t {
			return true
		}
	}
	return false
}

func (d *Domain) FindRecord(id string) (int, bool) {
	for i, r := range d.DNSRecords {
		if r.ID == id {
			return i, true
		}
	}
	return -1, false
}
