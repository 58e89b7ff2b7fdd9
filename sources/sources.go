package sources

import (
	"context"
	"net/netip"

	"dsddns/config"
)

// Interface is one way of discovering the machine's current IPv4 address.
// Lookup either returns a valid IPv4 address or an error; implementations
// never return IPv6.
type Interface interface {
	Lookup(ctx context.Context) (netip.Addr, error)
	Typename() string
}

var Sources = map[string]func(ctx context.Context, source config.IPSource) (Interface, error){
	"simple":    newSimple,
	"trace":     newTrace,
	"local":     newLocal,
	"interface": newInterface,
}
