package ddns

import (
	"context"
	"fmt"

	"dsddns/config"
)

// Record is a provider-neutral view of a zone record.
type Record struct {
	ID      int64
	ZoneID  string
	Name    string
	Type    string
	Content string
	TTL     int
}

// Interface is the provider surface the reconciler needs: list a zone's
// records, fetch one by id, create, and update. Create and update report
// an error unless the provider confirms the write.
type Interface interface {
	AccountID() string
	ListRecords(ctx context.Context, zone string) ([]Record, error)
	GetRecord(ctx context.Context, zone string, id int64) (Record, error)
	CreateRecord(ctx context.Context, zone string, r Record) (Record, error)
	UpdateRecord(ctx context.Context, zone string, id int64, content string, ttl int) (Record, error)
}

// OpError describes a failed provider operation.
type OpError struct {
	Op   string
	Zone string
	Err  error
}

func (e *OpError) Error() string {
	if e.Zone == "" {
		return fmt.Sprintf("provider %s failed: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("provider %s failed for zone %s: %v", e.Op, e.Zone, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

var Providers = map[string]func(ctx context.Context, provider config.ProviderConfig) (Interface, error){
	"dnsimple": newDNSimple,
}
