// Package dns resolves domain verification records.
package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/melih/lighthouse-panel/internal/core/ports"
)

var _ ports.TXTResolver = (*Resolver)(nil)

type Resolver struct {
	r       *net.Resolver
	timeout time.Duration
}

// NewResolver uses the system resolver, or server ("host:port") when given.
func NewResolver(server string, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	r := &net.Resolver{}
	if server != "" {
		r.PreferGo = true
		r.Dial = func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := net.Dialer{Timeout: timeout}
			return d.DialContext(ctx, network, server)
		}
	}
	return &Resolver{r: r, timeout: timeout}
}

// LookupTXT returns the TXT values of name. A name without records is an
// empty result, not an error.
func (r *Resolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	records, err := r.r.LookupTXT(ctx, name)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve TXT %s: %w", name, err)
	}
	return records, nil
}
