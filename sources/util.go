package sources

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"reflect"

	"dsddns/log"
)

type transportDialer func(ctx context.Context, network, addr string) (net.Conn, error)

// forceTCP4 pins outgoing connections to the IPv4 stack so that an echo
// endpoint on a dual-stack host answers with the v4 address.
func forceTCP4(upstream transportDialer) transportDialer {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return upstream(ctx, network+"4", addr)
	}
}

func wrapClientDialer(ctx context.Context, client *http.Client, wrapperBuilder func(upstream transportDialer) transportDialer) (*http.Client, error) {
	if client == nil {
		client = http.DefaultClient
	}

	transport := http.DefaultTransport.(*http.Transport)
	if client.Transport != nil {
		t, ok := client.Transport.(*http.Transport)
		if !ok {
			log.S(ctx).Errorw("found unknown custom http.Client.Transport",
				"transport_type", reflect.TypeOf(client.Transport).String())
			return nil, fmt.Errorf("unknown custom http.Client.Transport")
		}

		transport = t
	}

	transport = transport.Clone()

	// A nil DialContext means net/http's internal dialer; materialize one
	// so the wrapper has an upstream to call.
	if transport.DialContext == nil {
		transport.DialContext = (&net.Dialer{}).DialContext
	}
	transport.DialContext = wrapperBuilder(transport.DialContext)

	if transport.DialTLSContext != nil {
		transport.DialTLSContext = wrapperBuilder(transport.DialTLSContext)
	}

	clientCopy := *client
	clientCopy.Transport = transport
	return &clientCopy, nil
}

// parseIPv4 strictly validates raw as an IPv4 address. Octets out of range
// and IPv6 answers are rejected; a v4-mapped v6 answer is unmapped.
func parseIPv4(raw string) (netip.Addr, error) {
	nip, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("not a valid IP: %w", err)
	}

	if nip.Zone() != "" {
		return netip.Addr{}, fmt.Errorf("unsupported: zone in IP %q", raw)
	}

	if !nip.Is4() && !nip.Is4In6() {
		return netip.Addr{}, fmt.Errorf("not an IPv4 address: %s", raw)
	}

	return nip.Unmap(), nil
}

// checkUsable rejects addresses that cannot serve as a published A record
// target: loopback, link-local and, unless allowed, private ranges.
func checkUsable(ip netip.Addr, allowPrivate bool) error {
	if !ip.IsGlobalUnicast() {
		return fmt.Errorf("not a global unicast address: %s", ip)
	}

	if !allowPrivate && ip.IsPrivate() {
		return fmt.Errorf("private address: %s", ip)
	}

	return nil
}
