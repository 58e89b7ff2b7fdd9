package dsddns

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"dsddns/config"
	"dsddns/ddns"
	"dsddns/log"

	"go.uber.org/zap"
)

// ErrAmbiguousRecords is returned when a zone holds more than one A record
// with the reconciled name. The record_id override is the way out.
var ErrAmbiguousRecords = errors.New("multiple matching records")

// Reconciler drives hostnames towards one address, creating or updating a
// single A record per hostname and leaving converged records untouched.
type Reconciler struct {
	provider ddns.Interface
	ttl      int
	recordID int64
	dryRun   bool
}

func NewReconciler(ctx context.Context, c *config.Config, dryRun bool) (*Reconciler, error) {
	ctx = log.SWith(ctx, log.Stage("init:reconciler"))

	provider, err := ddns.Providers["dnsimple"](ctx, c.Provider)
	if err != nil {
		log.S(ctx).Errorw("failed loading provider", "provider", "dnsimple", zap.Error(err))
		return nil, fmt.Errorf("failed loading provider: %w", err)
	}

	return &Reconciler{
		provider: provider,
		ttl:      c.Provider.TTL,
		recordID: c.Provider.RecordID,
		dryRun:   dryRun,
	}, nil
}

// Run reconciles every hostname against ip. A hostname's failure is
// captured in its Result and never stops the remaining hostnames.
func (r *Reconciler) Run(ctx context.Context, hostnames []string, ip netip.Addr) []Result {
	ctx = log.SWith(ctx, log.Stage("reconcile"), log.IP(ip))
	elapsed := log.Elapsed("elapsed")

	results := make([]Result, 0, len(hostnames))
	succeeded := 0

	for _, hostname := range hostnames {
		result := r.reconcileOne(ctx, hostname, ip)
		results = append(results, result)

		if result.Ok() {
			succeeded++
		}
	}

	log.S(ctx).Infow("reconciliation finished", "succeeded", succeeded, "total", len(hostnames), elapsed)

	return results
}

func (r *Reconciler) reconcileOne(ctx context.Context, hostname string, ip netip.Addr) Result {
	ctx = log.SWith(ctx, "hostname", hostname)

	result := Result{Hostname: hostname, NewIP: ip}

	zone, recordName, err := PartitionHostname(hostname)
	if err != nil {
		log.S(ctx).Errorw("invalid hostname", zap.Error(err))
		return fail(result, err)
	}

	result.Zone = zone
	result.RecordName = recordName
	ctx = log.SWith(ctx, "zone", zone, "record_name", recordName)

	if strings.HasPrefix(recordName, "*") {
		log.S(ctx).Infow("reconciling wildcard record")
	}

	var record ddns.Record
	var found bool

	if r.recordID != 0 {
		record, err = r.provider.GetRecord(ctx, zone, r.recordID)
		if err != nil {
			return fail(result, err)
		}

		if record.Type != "A" {
			err := fmt.Errorf("record %d is not an A record: %s", r.recordID, record.Type)
			log.S(ctx).Errorw("record id override mismatch", zap.Error(err))
			return fail(result, err)
		}

		if record.Name != recordName {
			err := fmt.Errorf("record %d is named %q, hostname wants %q", r.recordID, record.Name, recordName)
			log.S(ctx).Errorw("record id override mismatch", zap.Error(err))
			return fail(result, err)
		}

		found = true
	} else {
		records, err := r.provider.ListRecords(ctx, zone)
		if err != nil {
			return fail(result, err)
		}

		var matched []ddns.Record
		for _, rec := range records {
			if rec.Type == "A" && rec.Name == recordName {
				matched = append(matched, rec)
			}
		}

		switch {
		case len(matched) > 1:
			log.S(ctx).Errorw("inconsistent state: found multiple records", "count", len(matched))
			return fail(result, fmt.Errorf("%w: %d A records named %q in zone %s, set record_id to disambiguate",
				ErrAmbiguousRecords, len(matched), recordName, zone))
		case len(matched) == 1:
			record = matched[0]
			found = true
		}
	}

	if found {
		if prev, err := netip.ParseAddr(record.Content); err == nil {
			result.PreviousIP = prev
		}

		if record.Content == ip.String() {
			log.S(ctx).Infow("record is current, skip update", "record_id", record.ID)
			result.Action = ActionUnchanged
			return result
		}

		result.Action = ActionUpdated

		if r.dryRun {
			log.S(ctx).Infow("would update record", "record_id", record.ID, "old_content", record.Content)
			return result
		}

		if _, err := r.provider.UpdateRecord(ctx, zone, record.ID, ip.String(), r.ttl); err != nil {
			return fail(result, err)
		}

		log.S(ctx).Infow("record updated", "record_id", record.ID, "old_content", record.Content)
		return result
	}

	result.Action = ActionCreated

	if r.dryRun {
		log.S(ctx).Infow("would create record")
		return result
	}

	created, err := r.provider.CreateRecord(ctx, zone, ddns.Record{
		Name:    recordName,
		Type:    "A",
		Content: ip.String(),
		TTL:     r.ttl,
	})
	if err != nil {
		return fail(result, err)
	}

	log.S(ctx).Infow("record created", "record_id", created.ID)
	return result
}

func fail(result Result, err error) Result {
	result.Action = ActionFailed
	result.Err = err
	return result
}
