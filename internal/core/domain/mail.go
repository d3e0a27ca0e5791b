package domain

import (
	"strings"
	"time"
)

// DefaultQuota is 1 GiB.
const DefaultQuota int64 = 1 << 30

type MailAccount struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	DomainID          string     `json:"domain_id"`
	OwnerID           string     `json:"owner_id"`
	DisplayName       string     `json:"display_name"`
	Active            bool       `json:"active"`
	Quota             int64      `json:"quota"`
	UsedQuota         int64      `json:"used_quota"`
	ForwardingEnabled bool       `json:"forwarding_enabled"`
	ForwardingAddress string     `json:"forwarding_address,omitempty"`
	AutoReplyEnabled  bool       `json:"auto_reply_enabled"`
	AutoReplySubject  string     `json:"auto_reply_subject,omitempty"`
	AutoReplyMessage  string     `json:"auto_reply_message,omitempty"`
	Aliases           []string   `json:"aliases"`
	LastLogin         *time.Time `json:"last_login,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (m *MailAccount) Owner() string { return m.OwnerID }

// MailAddress derives the account address from a username and domain name.
func MailAddress(username, domainName string) string {
	return strings.ToLower(strings.TrimSpace(username)) + "@" + domainName
}

// SplitAddress returns the local part and the domain of an address.
func SplitAddress(email string) (string, string) {
	local, dom, _ := strings.Cut(email, "@")
	return local, dom
}
