package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/melih/lighthouse-panel/internal/adapters/storage/memory"
	"github.com/melih/lighthouse-panel/internal/core/domain"
)

type mailFixture struct {
	store *memory.Store
	prov  *fakeProvisioner
	svc   *MailService
}

func newMailFixture(t *testing.T, mailEnabled bool) *mailFixture {
	t.Helper()
	f := &mailFixture{store: memory.New(), prov: newFakeProvisioner()}
	require.NoError(t, f.store.CreateDomain(context.Background(), &domain.Domain{
		ID: "d1", Name: "example.com", OwnerID: alice.ID, MailEnabled: mailEnabled,
		DNSRecords: []domain.DNSRecord{{ID: "r1", Type: "A", Name: "@", Value: "127.0.0.1"}},
	}))
	f.svc = NewMailService(MailServiceDeps{
		Common:      testCommon(nil),
		Accounts:    f.store,
		Domains:     f.store,
		Hasher:      plainHasher{},
		Provisioner: f.prov,
	})
	return f
}

func TestCreateMailAccountRequiresMailEnabled(t *testing.T) {
	f := newMailFixture(t, false)
	_, err := f.svc.Create(context.Background(), alice, NewMailAccount{Username: "info", Password: "secret-pass", DomainID: "d1"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
	assert.Empty(t, f.prov.mailboxes)
}

func TestCreateMailAccount(t *testing.T) {
	f := newMailFixture(t, true)
	ctx := context.Background()

	m, err := f.svc.Create(ctx, alice, NewMailAccount{Username: " Info ", Password: "secret-pass", DomainID: "d1"})
	require.NoError(t, err)
	assert.Equal(t, "info@example.com", m.Email)
	assert.Equal(t, "info", m.DisplayName)
	assert.Equal(t, domain.DefaultQuota, m.Quota)
	assert.Equal(t, alice.ID, m.OwnerID)
	assert.Equal(t, "hashed:secret-pass", f.prov.mailboxes["info@example.com"])

	_, err = f.svc.Create(ctx, alice, NewMailAccount{Username: "info", Password: "another-pass", DomainID: "d1"})
	assert.True(t, domain.IsConflict(err))

	_, err = f.svc.Create(ctx, alice, NewMailAccount{Username: "bad user", Password: "secret-pass", DomainID: "d1"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = f.svc.Create(ctx, alice, NewMailAccount{Username: "short", Password: "x", DomainID: "d1"})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	_, err = f.svc.Create(ctx, bob, NewMailAccount{Username: "bob", Password: "secret-pass", DomainID: "d1"})
	assert.Equal(t, domain.KindForbidden, domain.KindOf(err))
}

func TestCreateMailAccountProvisionerFailure(t *testing.T) {
	f := newMailFixture(t, true)
	f.prov.err = errors.New("permission denied")

	ctx := context.Background()
	req := NewMailAccount{Username: "info", Password: "secret-pass", DomainID: "d1"}

	_, err := f.svc.Create(ctx, alice, req)
	assert.Equal(t, domain.KindUpstream, domain.KindOf(err))

	_, err = f.store.GetMailAccountByEmail(ctx, "info@example.com")
	assert.True(t, domain.IsNotFound(err))

	f.prov.err = nil
	m, err := f.svc.Create(ctx, alice, req)
	require.NoError(t, err)
	assert.Equal(t, "info@example.com", m.Email)
	assert.Contains(t, f.prov.mailboxes, "info@example.com")
}

func TestMailAccountLifecycle(t *testing.T) {
	f := newMailFixture(t, true)
	ctx := context.Background()
	m, err := f.svc.Create(ctx, alice, NewMailAccount{Username: "info", Password: "secret-pass", DomainID: "d1"})
	require.NoError(t, err)

	forward := true
	_, err = f.svc.Update(ctx, alice, m.ID, MailAccountUpdate{ForwardingEnabled: &forward})
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))

	aliases := []string{" Sales ", "support"}
	addr := "ops@example.org"
	updated, err := f.svc.Update(ctx, alice, m.ID, MailAccountUpdate{
		ForwardingEnabled: &forward, ForwardingAddress: &addr, Aliases: &aliases,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"sales", "support"}, updated.Aliases)

	require.NoError(t, f.svc.ChangePassword(ctx, alice, m.ID, "rotated-pass"))
	assert.Equal(t, "hashed:rotated-pass", f.prov.mailboxes["info@example.com"])
	assert.Equal(t, domain.KindValidation, domain.KindOf(f.svc.ChangePassword(ctx, alice, m.ID, "short")))

	byDomain, err := f.svc.ListByDomain(ctx, alice, "d1")
	require.NoError(t, err)
	assert.Len(t, byDomain, 1)

	require.NoError(t, f.svc.Delete(ctx, alice, m.ID))
	assert.NotContains(t, f.prov.mailboxes, "info@example.com")
	_, err = f.svc.Get(ctx, alice, m.ID)
	assert.True(t, domain.IsNotFound(err))
}

func TestMailStats(t *testing.T) {
	f := newMailFixture(t, true)
	ctx := context.Background()
	m, err := f.svc.Create(ctx, alice, NewMailAccount{Username: "info", Password: "secret-pass", DomainID: "d1", Quota: 1000})
	require.NoError(t, err)
	f.prov.usage = 250

	stats, err := f.svc.Stats(ctx, alice, m.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(250), stats.UsedQuota)
	assert.Equal(t, 25, stats.UsedPercent)
}

func TestEnableMailForDomain(t *testing.T) {
	f := newMailFixture(t, false)
	ctx := context.Background()

	res, err := f.svc.EnableForDomain(ctx, alice, "d1")
	require.NoError(t, err)
	assert.True(t, res.Domain.MailEnabled)
	assert.Equal(t, domain.SPFRecord, res.Domain.Settings.SPFRecord)
	assert.Len(t, res.DNSRecords, 3)
	assert.Equal(t, []string{"example.com"}, f.prov.domains)

	_, err = f.svc.EnableForDomain(ctx, alice, "d1")
	require.NoError(t, err)

	stored, err := f.store.GetDomain(ctx, "d1")
	require.NoError(t, err)
	mx := 0
	for _, r := range stored.DNSRecords {
		if r.Type == "MX" {
			mx++
		}
	}
	assert.Equal(t, 1, mx, "enabling twice keeps a single MX record")
}
