package probe

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
	"github.com/rs/zerolog"
)

// DefaultResolvConf is read when no DNS server is configured.
const DefaultResolvConf = "/etc/resolv.conf"

// DNSConfig holds configuration for the DNS probe.
type DNSConfig struct {
	// Host is the name to resolve (required).
	Host string

	// Server is the resolver address (host:port). If empty, the first
	// nameserver of ResolvConf is used.
	Server string

	// ResolvConf is the resolver configuration file. Default: /etc/resolv.conf
	ResolvConf string

	// Timeout bounds a single query. Default: 5 seconds
	Timeout time.Duration

	Logger zerolog.Logger
}

// DNS checks that a name resolves to at least one address.
type DNS struct {
	host       string
	server     string
	resolvConf string
	client     *dns.Client
	logger     zerolog.Logger
}

// NewDNS creates a DNS probe.
func NewDNS(cfg DNSConfig) *DNS {
	if cfg.ResolvConf == "" {
		cfg.ResolvConf = DefaultResolvConf
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}

	return &DNS{
		host:       cfg.Host,
		server:     cfg.Server,
		resolvConf: cfg.ResolvConf,
		client:     &dns.Client{Net: "udp", Timeout: cfg.Timeout},
		logger:     cfg.Logger,
	}
}

// Resolve reports whether the configured name resolves. Every failure,
// including an unreadable resolver configuration, counts as unresolved.
func (p *DNS) Resolve(ctx context.Context) bool {
	ok, err := p.lookup(ctx)
	if err != nil {
		p.logger.Debug().Err(err).Str("host", p.host).Msg("dns probe failed")
	}
	return ok
}

func (p *DNS) lookup(ctx context.Context) (bool, error) {
	server, err := p.resolver()
	if err != nil {
		return false, err
	}

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(p.host), dns.TypeA)
	msg.RecursionDesired = true

	resp, _, err := p.client.ExchangeContext(ctx, msg, server)
	if err != nil {
		return false, fmt.Errorf("querying %s: %w", server, err)
	}

	if resp.Truncated {
		tcp := &dns.Client{Net: "tcp", Timeout: p.client.Timeout}
		resp, _, err = tcp.ExchangeContext(ctx, msg, server)
		if err != nil {
			return false, fmt.Errorf("querying %s over tcp: %w", server, err)
		}
	}

	if resp.Rcode != dns.RcodeSuccess {
		return false, fmt.Errorf("resolving %s: %s", p.host, dns.RcodeToString[resp.Rcode])
	}

	for _, rr := range resp.Answer {
		if a, ok := rr.(*dns.A); ok && a.A != nil {
			return true, nil
		}
	}
	return false, fmt.Errorf("resolving %s: no A records", p.host)
}

func (p *DNS) resolver() (string, error) {
	if p.server != "" {
		if _, _, err := net.SplitHostPort(p.server); err != nil {
			return net.JoinHostPort(p.server, "53"), nil
		}
		return p.server, nil
	}

	conf, err := dns.ClientConfigFromFile(p.resolvConf)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", p.resolvConf, err)
	}
	if len(conf.Servers) == 0 {
		return "", fmt.Errorf("no nameservers in %s", p.resolvConf)
	}
	return net.JoinHostPort(conf.Servers[0], conf.Port), nil
}
