package scan

import (
	"context"
	"time"

	"github.com/miekg/dns"
)

// Transport sends a single message to one server. server is host:port.
type Transport interface {
	Exchange(ctx context.Context, m *dns.Msg, server string, timeout time.Duration) (*dns.Msg, time.Duration, error)
}

type udpTransport struct{}

// NewTransport returns the miekg/dns backed transport: UDP first, TCP when
// the answer comes back truncated.
func NewTransport() Transport {
	return &udpTransport{}
}

func (t *udpTransport) Exchange(ctx context.Context, m *dns.Msg, server string, timeout time.Duration) (*dns.Msg, time.Duration, error) {
	c := &dns.Client{Net: "udp", Timeout: timeout}

	in, rtt, err := c.ExchangeContext(ctx, m, server)
	if err != nil {
		return nil, rtt, err
	}

	if in.Truncated {
		log.Debugf("Truncated answer from %s, retrying over tcp", server)

		c.Net = "tcp"

		return c.ExchangeContext(ctx, m, server)
	}

	return in, rtt, nil
}
