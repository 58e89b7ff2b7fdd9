package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"dsddns/common"
	"dsddns/config"
	"dsddns/log"

	"go.uber.org/zap"
)

const maxReadSimple = 4 * 1024
const defaultLookupTimeout = 10 * time.Second

// simple queries a plain-text echo endpoint that answers with the caller's
// address and nothing else, like https://api.ipify.org.
type simple struct {
	config.IPSourceSimpleConfig `mapstructure:",squash"`

	url string
}

func (s *simple) Typename() string {
	return "simple"
}

func (s *simple) Lookup(ctx context.Context) (result netip.Addr, err error) {
	client := http.DefaultClient
	timeout := time.Duration(s.Timeout)

	if ctxClient := ctx.Value(common.HttpClientKey); ctxClient != nil {
		client = ctxClient.(*http.Client)
	}

	client, err = wrapClientDialer(ctx, client, forceTCP4)
	if err != nil {
		return netip.Addr{}, err
	}

	ctx = log.SWith(ctx, "url", s.url, "timeout", timeout)

	defer func() {
		if err == nil {
			log.S(ctx).Debugw("got ip", log.IP(result))
		}
	}()

	tCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ctx = tCtx

	req, err := http.NewRequestWithContext(ctx, "GET", s.url, nil)
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

	if resp.StatusCode != http.StatusOK {
		log.S(ctx).Warnw("unexpected status", "status", resp.StatusCode)
		return netip.Addr{}, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxReadSimple))
	if err != nil {
		log.S(ctx).Warnw("receiving response failed", zap.Error(err))
		return netip.Addr{}, fmt.Errorf(`failed receiving response: %w`, err)
	}

	nip, err := parseIPv4(strings.TrimSpace(string(data)))
	if err != nil {
		log.S(ctx).Warnw("no usable IPv4 in response", zap.Error(err), log.ByteField("body", data))
		return netip.Addr{}, err
	}

	return nip, nil
}

func newSimple(ctx context.Context, config config.IPSource) (Interface, error) {
	ctx = log.SWith(ctx, "type", "simple")

	s := &simple{url: config.Source}
	if err := common.WeakDecodeMap(config.Config, s); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err), "config", config.Config)
		return nil, fmt.Errorf(`bad config: %w`, err)
	}

	if s.url == "" {
		log.S(ctx).Errorw("endpoint URL required")
		return nil, fmt.Errorf("endpoint URL required")
	}

	if s.Timeout == 0 {
		s.Timeout = common.Duration(defaultLookupTimeout)
	}

	return s, nil
}
