package ddns

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"dsddns/common"
	"dsddns/config"
	"dsddns/log"

	"github.com/dnsimple/dnsimple-go/dnsimple"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const productionBaseURL = "https://api.dnsimple.com"
const sandboxBaseURL = "https://api.sandbox.dnsimple.com"
const userAgent = "dsddns"

type dnsimpleProvider struct {
	api       *dnsimple.Client
	accountID string
}

func newDNSimple(ctx context.Context, provider config.ProviderConfig) (Interface, error) {
	ctx = log.SWith(ctx, "type", "dnsimple", "environment", provider.Environment)

	if ctxClient := ctx.Value(common.HttpClientKey); ctxClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, ctxClient.(*http.Client))
	}

	api := dnsimple.NewClient(dnsimple.StaticTokenHTTPClient(ctx, provider.Token))
	api.SetUserAgent(userAgent)

	if provider.Environment == common.Sandbox {
		api.BaseURL = sandboxBaseURL
	} else {
		api.BaseURL = productionBaseURL
	}

	d := &dnsimpleProvider{api: api, accountID: provider.AccountID}

	if d.accountID == "" {
		id, err := d.whoami(ctx)
		if err != nil {
			return nil, err
		}

		d.accountID = id
		log.S(ctx).Infow("using account from whoami", "account_id", d.accountID)
	}

	return d, nil
}

func (d *dnsimpleProvider) whoami(ctx context.Context) (string, error) {
	resp, err := d.api.Identity.Whoami(ctx)
	if err != nil {
		log.S(ctx).Errorw("whoami failed", zap.Error(err))
		return "", &OpError{Op: "whoami", Err: err}
	}

	if resp.Data == nil || resp.Data.Account == nil {
		log.S(ctx).Errorw("token has no account, configure account_id explicitly")
		return "", &OpError{Op: "whoami", Err: fmt.Errorf("token has no account, configure account_id")}
	}

	return strconv.FormatInt(resp.Data.Account.ID, 10), nil
}

func (d *dnsimpleProvider) AccountID() string {
	return d.accountID
}

func (d *dnsimpleProvider) ListRecords(ctx context.Context, zone string) (records []Record, err error) {
	ctx = log.SWith(ctx, "action", "list", "zone", zone)

	options := &dnsimple.ZoneRecordListOptions{}
	page := 1

	for {
		options.Page = dnsimple.Int(page)

		resp, err := d.api.Zones.ListRecords(ctx, d.accountID, zone, options)
		if err != nil {
			log.S(ctx).Errorw("failed list records", "page", page, zap.Error(err))
			return nil, &OpError{Op: "list", Zone: zone, Err: err}
		}

		for _, record := range resp.Data {
			records = append(records, fromZoneRecord(record))
		}

		if resp.Pagination == nil || page >= resp.Pagination.TotalPages {
			break
		}

		page++
	}

	log.S(ctx).Debugw("listed records", "count", len(records))

	return records, nil
}

func (d *dnsimpleProvider) GetRecord(ctx context.Context, zone string, id int64) (Record, error) {
	ctx = log.SWith(ctx, "action", "get", "zone", zone, "record_id", id)

	resp, err := d.api.Zones.GetRecord(ctx, d.accountID, zone, id)
	if err != nil {
		log.S(ctx).Errorw("failed get record", zap.Error(err))
		return Record{}, &OpError{Op: "get", Zone: zone, Err: err}
	}

	if resp.Data == nil {
		log.S(ctx).Errorw("get returned no record", log.Internal)
		return Record{}, &OpError{Op: "get", Zone: zone, Err: fmt.Errorf("empty response")}
	}

	record := fromZoneRecord(*resp.Data)
	log.S(ctx).Debugw("got record", "record", record)

	return record, nil
}

func (d *dnsimpleProvider) CreateRecord(ctx context.Context, zone string, r Record) (Record, error) {
	ctx = log.SWith(ctx, "action", "create", "zone", zone, "name", r.Name, "content", r.Content)

	attrs := dnsimple.ZoneRecordAttributes{
		Name:    dnsimple.String(r.Name),
		Type:    r.Type,
		Content: r.Content,
		TTL:     r.TTL,
	}

	resp, err := d.api.Zones.CreateRecord(ctx, d.accountID, zone, attrs)
	if err != nil {
		log.S(ctx).Warnw("failed create record", zap.Error(err))
		return Record{}, &OpError{Op: "create", Zone: zone, Err: err}
	}

	if code := resp.HTTPResponse.StatusCode; code != http.StatusCreated {
		log.S(ctx).Warnw("unexpected create status", "status", code)
		return Record{}, &OpError{Op: "create", Zone: zone, Err: fmt.Errorf("unexpected status %d", code)}
	}

	if resp.Data == nil {
		log.S(ctx).Errorw("create returned no record", log.Internal)
		return Record{}, &OpError{Op: "create", Zone: zone, Err: fmt.Errorf("empty response")}
	}

	record := fromZoneRecord(*resp.Data)
	log.S(ctx).Debugw("record created", "record", record)

	return record, nil
}

func (d *dnsimpleProvider) UpdateRecord(ctx context.Context, zone string, id int64, content string, ttl int) (Record, error) {
	ctx = log.SWith(ctx, "action", "update", "zone", zone, "record_id", id, "content", content)

	attrs := dnsimple.ZoneRecordAttributes{
		Content: content,
		TTL:     ttl,
	}

	resp, err := d.api.Zones.UpdateRecord(ctx, d.accountID, zone, id, attrs)
	if err != nil {
		log.S(ctx).Warnw("failed update record", zap.Error(err))
		return Record{}, &OpError{Op: "update", Zone: zone, Err: err}
	}

	if code := resp.HTTPResponse.StatusCode; code != http.StatusOK {
		log.S(ctx).Warnw("unexpected update status", "status", code)
		return Record{}, &OpError{Op: "update", Zone: zone, Err: fmt.Errorf("unexpected status %d", code)}
	}

	if resp.Data == nil {
		log.S(ctx).Errorw("update returned no record", log.Internal)
		return Record{}, &OpError{Op: "update", Zone: zone, Err: fmt.Errorf("empty response")}
	}

	record := fromZoneRecord(*resp.Data)
	log.S(ctx).Debugw("record updated", "record", record)

	return record, nil
}

func fromZoneRecord(r dnsimple.ZoneRecord) Record {
	return Record{
		ID:      r.ID,
		ZoneID:  r.ZoneID,
		Name:    r.Name,
		Type:    r.Type,
		Content: r.Content,
		TTL:     r.TTL,
	}
}
