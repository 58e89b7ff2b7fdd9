package dsddns

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"dsddns/config"
	"dsddns/log"
	"dsddns/sources"

	"go.uber.org/zap"
)

// ErrAllSourcesFailed is returned by Resolve when no configured source
// produced a usable IPv4 address.
var ErrAllSourcesFailed = errors.New("all sources failed")

// Resolver tries IP sources in configured order and returns the first
// address that passes validation.
type Resolver struct {
	sources []sources.Interface
}

func NewResolver(ctx context.Context, c []config.IPSource) (*Resolver, error) {
	r := &Resolver{}

	for _, s := range c {
		ctx := log.SWith(ctx, log.Stage("init:source"), "type", s.Type, "source", s.Source)

		create, ok := sources.Sources[s.Type]
		if !ok {
			log.S(ctx).Errorw("unknown source type")
			return nil, fmt.Errorf("unknown source type: %s", s.Type)
		}

		source, err := create(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("failed creating source: %w", err)
		}

		r.sources = append(r.sources, source)
	}

	if len(r.sources) == 0 {
		return nil, fmt.Errorf("no sources configured")
	}

	return r, nil
}

func (r *Resolver) Resolve(ctx context.Context) (netip.Addr, error) {
	ctx = log.SWith(ctx, log.Stage("resolve"))

	for _, source := range r.sources {
		ip, err := source.Lookup(ctx)
		if err != nil {
			log.S(ctx).Warnw("source failed, trying next", "source_type", source.Typename(), zap.Error(err))
			continue
		}

		log.S(ctx).Infow("resolved ip", log.IP(ip), "source_type", source.Typename())
		return ip, nil
	}

	log.S(ctx).Errorw("all sources failed, unable to get ip", "sources", len(r.sources))
	return netip.Addr{}, fmt.Errorf("%w: tried %d source(s)", ErrAllSourcesFailed, len(r.sources))
}
