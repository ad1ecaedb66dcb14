// Package rdns answers "who is there" for addresses in the table: cached,
// best-effort PTR lookups used only by the query server's resolved view.
// The capture path never touches it.
package rdns

import (
	"context"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/rs/zerolog"

	"github.com/whoisthere/whoisthere/internal/datastruct"
)

const (
	queryTimeout = 2 * time.Second
	// positiveTTL caps how long a name sticks; PTR records rarely churn.
	positiveTTL = 10 * time.Minute
	// negativeTTL keeps failed lookups from hammering the upstream on
	// every query.
	negativeTTL = time.Minute
)

type Resolver struct {
	logger zerolog.Logger

	upstream string
	client   *dns.Client
	cache    *datastruct.TTLCache[netip.Addr, string]
}

func NewResolver(logger zerolog.Logger, server net.IP, port uint16) *Resolver {
	return &Resolver{
		logger:   logger,
		upstream: net.JoinHostPort(server.String(), strconv.Itoa(int(port))),
		client:   &dns.Client{Timeout: queryTimeout},
		cache:    datastruct.NewTTLCache[netip.Addr, string](),
	}
}

// StartJanitor begins periodic cache sweeps; stop closes it down.
func (r *Resolver) StartJanitor(stop <-chan struct{}) {
	r.cache.StartJanitor(time.Minute, stop)
}

// Reverse returns the PTR name for addr, or "" when the address has no
// name or the lookup fails. Failures are cached too, so a cold or
// unreachable upstream degrades the resolved view instead of stalling it.
func (r *Resolver) Reverse(ctx context.Context, addr netip.Addr) string {
	if name, ok := r.cache.Get(addr); ok {
		return name
	}

	name := r.lookup(ctx, addr)
	ttl := positiveTTL
	if name == "" {
		ttl = negativeTTL
	}
	r.cache.Set(addr, name, ttl)

	return name
}

func (r *Resolver) lookup(ctx context.Context, addr netip.Addr) string {
	arpa, err := dns.ReverseAddr(addr.String())
	if err != nil {
		r.logger.Debug().Err(err).Stringer("addr", addr).Msg("reverse name construction failed")
		return ""
	}

	msg := new(dns.Msg)
	msg.SetQuestion(arpa, dns.TypePTR)

	resp, _, err := r.client.ExchangeContext(ctx, msg, r.upstream)
	if err != nil {
		r.logger.Debug().Err(err).Stringer("addr", addr).Msg("ptr query failed")
		return ""
	}
	if resp.Rcode != dns.RcodeSuccess {
		return ""
	}

	for _, rr := range resp.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, ".")
		}
	}
	return ""
}
