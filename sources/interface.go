package sources

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"dsddns/common"
	"dsddns/config"
	"dsddns/log"

	"go.uber.org/zap"
)

type networkInterface struct {
	config.IPSourceInterfaceConfig `mapstructure:",squash"`

	iface string
}

func (s *networkInterface) Typename() string {
	return "interface"
}

func (s *networkInterface) Lookup(ctx context.Context) (result netip.Addr, err error) {
	ctx = log.SWith(ctx,
		"interface", s.iface,
		"select", s.Select,
		zap.Stringers("exclude", s.Exclude),
		zap.Stringers("include", s.Include),
	)

	defer func() {
		if err == nil {
			log.S(ctx).Debugw("got ip", log.IP(result))
		}
	}()

	iface, err := net.InterfaceByName(s.iface)
	if err != nil {
		log.S(ctx).Warnw("find interface failed", zap.Error(err))
		return netip.Addr{}, fmt.Errorf(`find interface failed: %w`, err)
	}

	addrs, err := iface.Addrs()
	if err != nil {
		log.S(ctx).Warnw("get address failed", zap.Error(err))
		return netip.Addr{}, fmt.Errorf(`get address failed: %w`, err)
	}

	var candidate []netip.Addr

Next:
	for _, addr := range addrs {
		var ip net.IP

		switch addr := addr.(type) {
		case *net.IPAddr:
			ip = addr.IP
		case *net.IPNet:
			ip = addr.IP
		default:
			continue
		}

		nip, ok := netip.AddrFromSlice(ip)
		if !ok {
			continue
		}
		nip = nip.Unmap()

		ctx := log.SWith(ctx, log.IP(nip))

		if !nip.Is4() {
			log.S(ctx).Debugw("discard IP", "reason", "not IPv4")
			continue
		}

		if err := checkUsable(nip, s.AllowPrivate); err != nil {
			log.S(ctx).Debugw("discard IP", "reason", err.Error())
			continue
		}

		for _, ex := range s.Exclude {
			if ex.Contains(ip) {
				log.S(ctx).Debugw("discard IP", "reason", "in exclude CIDR", "cidr", ex)
				continue Next
			}
		}

		if s.Include != nil {
			matched := false
			for _, ic := range s.Include {
				if ic.Contains(ip) {
					matched = true
					break
				}
			}

			if !matched {
				log.S(ctx).Debugw("discard IP", "reason", "not in any include CIDR")
				continue
			}
		}

		log.S(ctx).Debugw("add IP to candidate")
		candidate = append(candidate, nip)
	}

	if len(candidate) == 0 {
		log.S(ctx).Warnw("no eligible IP found")
		return netip.Addr{}, fmt.Errorf(`no eligible IP found`)
	}

	switch s.Select {
	case common.SelectFirst:
		return candidate[0], nil
	case common.SelectLast:
		return candidate[len(candidate)-1], nil
	default:
		log.S(ctx).Errorw("unexpected select mode", log.Internal)
		return netip.Addr{}, fmt.Errorf(`internal error: unexpected select mode`)
	}
}

func newInterface(ctx context.Context, config config.IPSource) (Interface, error) {
	ctx = log.SWith(ctx, "type", "interface")

	s := &networkInterface{iface: config.Source}
	if err := common.WeakDecodeMap(config.Config, s); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err), "config", config.Config)
		return nil, fmt.Errorf(`bad config: %w`, err)
	}

	if s.iface == "" {
		log.S(ctx).Errorw("interface name required")
		return nil, fmt.Errorf("interface name required")
	}

	return s, nil
}
