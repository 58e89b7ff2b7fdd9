package sources

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"dsddns/common"
	"dsddns/config"
	"dsddns/log"

	"go.uber.org/zap"
)

const maxReadTrace = 1024
const defaultTraceDomain = "www.cloudflare.com"

// trace queries a key=value trace endpoint (the /cdn-cgi/trace format) and
// extracts the ip= line. When the configured source is a bare IP, the
// connection is pinned to that address while keeping the default domain for
// TLS, unless ip_host is set.
type trace struct {
	config.IPSourceTraceConfig `mapstructure:",squash"`

	host string
}

func (s *trace) Typename() string {
	return "trace"
}

func (s *trace) wrapDialer(upstream transportDialer) transportDialer {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if s.ForceAddress != "" {
			_, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			addr = net.JoinHostPort(s.ForceAddress, port)
		}

		return upstream(ctx, network+"4", addr)
	}
}

func (s *trace) Lookup(ctx context.Context) (result netip.Addr, err error) {
	client := http.DefaultClient
	timeout := time.Duration(s.Timeout)

	if ctxClient := ctx.Value(common.HttpClientKey); ctxClient != nil {
		client = ctxClient.(*http.Client)
	}

	client, err = wrapClientDialer(ctx, client, s.wrapDialer)
	if err != nil {
		return netip.Addr{}, err
	}

	ctx = log.SWith(ctx, "host", s.host, "force_addr", s.ForceAddress, "timeout", timeout)

	defer func() {
		if err == nil {
			log.S(ctx).Debugw("got ip", log.IP(result))
		}
	}()

	tCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ctx = tCtx

	url := fmt.Sprintf("https://%s/cdn-cgi/trace", s.host)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		log.S(ctx).Errorw("new request failed", zap.Error(err))
		return netip.Addr{}, fmt.Errorf("new request failed: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		log.S(ctx).Warnw("connection failed", zap.Error(err))
		return netip.Addr{}, fmt.Errorf(`connection failed: %w`, err)
	}

	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			log.S(ctx).Warnw("close body failed", zap.Error(err))
		}
	}(resp.Body)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReadTrace))
	if err != nil {
		log.S(ctx).Warnw("receiving response failed", zap.Error(err))
		return netip.Addr{}, fmt.Errorf(`failed receiving response: %w`, err)
	}

	ipString := parseTraceIP(data)
	if ipString == "" {
		log.S(ctx).Warnw("no IP found in response", log.ByteField("body", data))
		return netip.Addr{}, fmt.Errorf("no IP found in response")
	}

	nip, err := parseIPv4(ipString)
	if err != nil {
		log.S(ctx).Warnw("no usable IPv4 in response", "ip", ipString, zap.Error(err))
		return netip.Addr{}, err
	}

	return nip, nil
}

func parseTraceIP(data []byte) string {
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "ip=") {
			return strings.TrimSpace(strings.TrimPrefix(line, "ip="))
		}
	}

	return ""
}

func newTrace(ctx context.Context, config config.IPSource) (Interface, error) {
	ctx = log.SWith(ctx, "type", "trace")

	host, isIP := common.DetectNormalizeAddr(config.Source)
	s := &trace{host: host}

	if err := common.WeakDecodeMap(config.Config, s); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err), "config", config.Config)
		return nil, fmt.Errorf(`bad config: %w`, err)
	}

	if s.host == "" {
		s.host = defaultTraceDomain
	}

	if !s.IPHost && isIP {
		s.ForceAddress = s.host
		s.host = defaultTraceDomain
	}

	if strings.Contains(s.host, ":") {
		s.host = fmt.Sprintf("[%s]", s.host)
	}

	if s.Timeout == 0 {
		s.Timeout = common.Duration(defaultLookupTimeout)
	}

	return s, nil
}
