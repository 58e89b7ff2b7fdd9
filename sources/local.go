package sources

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"time"

	"dsddns/common"
	"dsddns/config"
	"dsddns/log"

	"go.uber.org/zap"
)

const defaultProbeAddr = "8.8.8.8:80"

// local discovers the IPv4 address the default route would use, by opening
// a connected UDP socket towards a probe address and reading the chosen
// source address. No packet is sent.
type local struct {
	config.IPSourceLocalConfig `mapstructure:",squash"`
}

func (s *local) Typename() string {
	return "local"
}

func (s *local) Lookup(ctx context.Context) (result netip.Addr, err error) {
	ctx = log.SWith(ctx, "probe", s.Probe)

	defer func() {
		if err == nil {
			log.S(ctx).Debugw("got ip", log.IP(result))
		}
	}()

	d := net.Dialer{Timeout: time.Duration(s.Timeout)}
	conn, err := d.DialContext(ctx, "udp4", s.Probe)
	if err != nil {
		log.S(ctx).Warnw("probe dial failed", zap.Error(err))
		return netip.Addr{}, fmt.Errorf(`probe dial failed: %w`, err)
	}

	defer func() {
		if err := conn.Close(); err != nil {
			log.S(ctx).Warnw("close probe socket failed", zap.Error(err))
		}
	}()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		log.S(ctx).Errorw("unexpected local address type", "addr", conn.LocalAddr(), log.Internal)
		return netip.Addr{}, fmt.Errorf(`internal error: unexpected local address type`)
	}

	nip, ok := netip.AddrFromSlice(localAddr.IP)
	if !ok {
		log.S(ctx).Errorw("bad local address", "addr", localAddr, log.Internal)
		return netip.Addr{}, fmt.Errorf(`internal error: bad local address`)
	}
	nip = nip.Unmap()

	if !nip.Is4() {
		log.S(ctx).Warnw("local address is not IPv4", log.IP(nip))
		return netip.Addr{}, fmt.Errorf("local address is not IPv4: %s", nip)
	}

	if err := checkUsable(nip, s.AllowPrivate); err != nil {
		log.S(ctx).Warnw("discard local address", log.IP(nip), zap.Error(err))
		return netip.Addr{}, err
	}

	return nip, nil
}

func newLocal(ctx context.Context, config config.IPSource) (Interface, error) {
	ctx = log.SWith(ctx, "type", "local")

	s := &local{}
	if err := common.WeakDecodeMap(config.Config, s); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err), "config", config.Config)
		return nil, fmt.Errorf(`bad config: %w`, err)
	}

	if s.Probe == "" {
		s.Probe = config.Source
	}
	if s.Probe == "" {
		s.Probe = defaultProbeAddr
	}

	return s, nil
}
