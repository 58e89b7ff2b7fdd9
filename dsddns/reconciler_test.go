package dsddns

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"testing"

	"dsddns/ddns"
)

// fakeProvider is an in-memory ddns.Interface that records every call so
// tests can assert on the exact write traffic.
type fakeProvider struct {
	records map[string][]ddns.Record
	nextID  int64
	ops     []string
	listErr map[string]error
}

func newFakeProvider(zones ...string) *fakeProvider {
	f := &fakeProvider{
		records: map[string][]ddns.Record{},
		listErr: map[string]error{},
	}

	for _, z := range zones {
		f.records[z] = []ddns.Record{}
	}

	return f
}

func (f *fakeProvider) AccountID() string {
	return "1010"
}

func (f *fakeProvider) ListRecords(_ context.Context, zone string) ([]ddns.Record, error) {
	f.ops = append(f.ops, "list "+zone)

	if err := f.listErr[zone]; err != nil {
		return nil, err
	}

	records, ok := f.records[zone]
	if !ok {
		return nil, &ddns.OpError{Op: "list", Zone: zone, Err: errors.New("zone not found")}
	}

	return append([]ddns.Record(nil), records...), nil
}

func (f *fakeProvider) GetRecord(_ context.Context, zone string, id int64) (ddns.Record, error) {
	f.ops = append(f.ops, fmt.Sprintf("get %s %d", zone, id))

	for _, r := range f.records[zone] {
		if r.ID == id {
			return r, nil
		}
	}

	return ddns.Record{}, &ddns.OpError{Op: "get", Zone: zone, Err: errors.New("record not found")}
}

func (f *fakeProvider) CreateRecord(_ context.Context, zone string, r ddns.Record) (ddns.Record, error) {
	f.ops = append(f.ops, fmt.Sprintf("create %s %q %s", zone, r.Name, r.Content))

	if _, ok := f.records[zone]; !ok {
		return ddns.Record{}, &ddns.OpError{Op: "create", Zone: zone, Err: errors.New("zone not found")}
	}

	f.nextID++
	r.ID = f.nextID
	r.ZoneID = zone
	f.records[zone] = append(f.records[zone], r)

	return r, nil
}

func (f *fakeProvider) UpdateRecord(_ context.Context, zone string, id int64, content string, ttl int) (ddns.Record, error) {
	f.ops = append(f.ops, fmt.Sprintf("update %s %d %s", zone, id, content))

	for i, r := range f.records[zone] {
		if r.ID == id {
			f.records[zone][i].Content = content
			f.records[zone][i].TTL = ttl
			return f.records[zone][i], nil
		}
	}

	return ddns.Record{}, &ddns.OpError{Op: "update", Zone: zone, Err: errors.New("record not found")}
}

func (f *fakeProvider) writes() []string {
	var w []string
	for _, op := range f.ops {
		if strings.HasPrefix(op, "create") || strings.HasPrefix(op, "update") {
			w = append(w, op)
		}
	}

	return w
}

var testIP = netip.MustParseAddr("203.0.113.7")

func TestReconcileCreate(t *testing.T) {
	fake := newFakeProvider("example.com")
	r := &Reconciler{provider: fake, ttl: 300}

	results := r.Run(context.Background(), []string{"api.example.com"}, testIP)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	res := results[0]
	if res.Action != ActionCreated {
		t.Fatalf("expected created, got %s (err: %v)", res.Action, res.Err)
	}

	if res.Zone != "example.com" || res.RecordName != "api" {
		t.Errorf("unexpected partition: zone %q, record %q", res.Zone, res.RecordName)
	}

	records := fake.records["example.com"]
	if len(records) != 1 {
		t.Fatalf("expected 1 record in zone, got %d", len(records))
	}

	rec := records[0]
	if rec.Name != "api" || rec.Type != "A" || rec.Content != testIP.String() || rec.TTL != 300 {
		t.Errorf("unexpected record: %+v", rec)
	}

	if writes := fake.writes(); len(writes) != 1 {
		t.Errorf("expected exactly 1 write, got %v", writes)
	}
}

func TestReconcileCreateApex(t *testing.T) {
	fake := newFakeProvider("example.com")
	r := &Reconciler{provider: fake, ttl: 300}

	results := r.Run(context.Background(), []string{"example.com"}, testIP)
	if results[0].Action != ActionCreated {
		t.Fatalf("expected created, got %s (err: %v)", results[0].Action, results[0].Err)
	}

	if rec := fake.records["example.com"][0]; rec.Name != "" {
		t.Errorf("apex record name should be empty, got %q", rec.Name)
	}
}

func TestReconcileCreateWildcard(t *testing.T) {
	cases := []struct {
		hostname string
		name     string
	}{
		{"*.example.com", "*"},
		{"*.sub.example.com", "*.sub"},
	}

	for _, c := range cases {
		t.Run(c.hostname, func(t *testing.T) {
			fake := newFakeProvider("example.com")
			r := &Reconciler{provider: fake, ttl: 300}

			results := r.Run(context.Background(), []string{c.hostname}, testIP)
			if results[0].Action != ActionCreated {
				t.Fatalf("expected created, got %s (err: %v)", results[0].Action, results[0].Err)
			}

			if rec := fake.records["example.com"][0]; rec.Name != c.name {
				t.Errorf("wildcard record name should be %q, got %q", c.name, rec.Name)
			}
		})
	}
}

func TestReconcileUpdate(t *testing.T) {
	fake := newFakeProvider("example.com")
	fake.records["example.com"] = []ddns.Record{
		{ID: 7, Name: "api", Type: "A", Content: "192.0.2.1", TTL: 300},
	}
	r := &Reconciler{provider: fake, ttl: 300}

	results := r.Run(context.Background(), []string{"api.example.com"}, testIP)

	res := results[0]
	if res.Action != ActionUpdated {
		t.Fatalf("expected updated, got %s (err: %v)", res.Action, res.Err)
	}

	if res.PreviousIP != netip.MustParseAddr("192.0.2.1") {
		t.Errorf("expected previous IP 192.0.2.1, got %s", res.PreviousIP)
	}

	if got := fake.records["example.com"][0].Content; got != testIP.String() {
		t.Errorf("record content: got %q, want %q", got, testIP.String())
	}

	writes := fake.writes()
	if len(writes) != 1 || writes[0] != fmt.Sprintf("update example.com 7 %s", testIP) {
		t.Errorf("unexpected writes: %v", writes)
	}
}

func TestReconcileUnchanged(t *testing.T) {
	fake := newFakeProvider("example.com")
	fake.records["example.com"] = []ddns.Record{
		{ID: 7, Name: "api", Type: "A", Content: testIP.String(), TTL: 300},
	}
	r := &Reconciler{provider: fake, ttl: 300}

	results := r.Run(context.Background(), []string{"api.example.com"}, testIP)
	if results[0].Action != ActionUnchanged {
		t.Fatalf("expected unchanged, got %s (err: %v)", results[0].Action, results[0].Err)
	}

	if writes := fake.writes(); len(writes) != 0 {
		t.Errorf("expected no writes, got %v", writes)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	fake := newFakeProvider("example.com")
	r := &Reconciler{provider: fake, ttl: 300}

	first := r.Run(context.Background(), []string{"api.example.com"}, testIP)
	if first[0].Action != ActionCreated {
		t.Fatalf("first run: expected created, got %s", first[0].Action)
	}

	second := r.Run(context.Background(), []string{"api.example.com"}, testIP)
	if second[0].Action != ActionUnchanged {
		t.Fatalf("second run: expected unchanged, got %s", second[0].Action)
	}

	if writes := fake.writes(); len(writes) != 1 {
		t.Errorf("expected exactly 1 write across both runs, got %v", writes)
	}
}

func TestReconcileIsolation(t *testing.T) {
	fake := newFakeProvider("fail.com", "ok.com")
	fake.listErr["fail.com"] = &ddns.OpError{Op: "list", Zone: "fail.com", Err: errors.New("boom")}
	r := &Reconciler{provider: fake, ttl: 300}

	results := r.Run(context.Background(), []string{"a.fail.com", "b.ok.com"}, testIP)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	if results[0].Action != ActionFailed || results[0].Err == nil {
		t.Errorf("first hostname should have failed, got %s", results[0].Action)
	}

	if results[1].Action != ActionCreated {
		t.Errorf("second hostname should have been created, got %s (err: %v)",
			results[1].Action, results[1].Err)
	}
}

func TestReconcileInvalidHostname(t *testing.T) {
	fake := newFakeProvider("example.com")
	r := &Reconciler{provider: fake, ttl: 300}

	results := r.Run(context.Background(), []string{"badhost"}, testIP)

	res := results[0]
	if res.Action != ActionFailed {
		t.Fatalf("expected failed, got %s", res.Action)
	}

	var hErr *HostnameError
	if !errors.As(res.Err, &hErr) {
		t.Errorf("expected *HostnameError, got %v", res.Err)
	}

	if len(fake.ops) != 0 {
		t.Errorf("no provider calls expected for invalid hostname, got %v", fake.ops)
	}
}

func TestReconcileAmbiguous(t *testing.T) {
	fake := newFakeProvider("example.com")
	fake.records["example.com"] = []ddns.Record{
		{ID: 1, Name: "api", Type: "A", Content: "192.0.2.1", TTL: 300},
		{ID: 2, Name: "api", Type: "A", Content: "192.0.2.2", TTL: 300},
	}
	r := &Reconciler{provider: fake, ttl: 300}

	results := r.Run(context.Background(), []string{"api.example.com"}, testIP)

	res := results[0]
	if res.Action != ActionFailed {
		t.Fatalf("expected failed, got %s", res.Action)
	}

	if !errors.Is(res.Err, ErrAmbiguousRecords) {
		t.Errorf("expected ErrAmbiguousRecords, got %v", res.Err)
	}

	if writes := fake.writes(); len(writes) != 0 {
		t.Errorf("ambiguity must not write, got %v", writes)
	}
}

func TestReconcileIgnoresOtherRecords(t *testing.T) {
	fake := newFakeProvider("example.com")
	fake.records["example.com"] = []ddns.Record{
		{ID: 1, Name: "api", Type: "TXT", Content: "hello", TTL: 300},
		{ID: 2, Name: "www", Type: "A", Content: "192.0.2.1", TTL: 300},
	}
	r := &Reconciler{provider: fake, ttl: 300}

	results := r.Run(context.Background(), []string{"api.example.com"}, testIP)
	if results[0].Action != ActionCreated {
		t.Fatalf("expected created, got %s (err: %v)", results[0].Action, results[0].Err)
	}

	if rec := fake.records["example.com"][1]; rec.Content != "192.0.2.1" {
		t.Errorf("unrelated record touched: %+v", rec)
	}
}

func TestReconcileRecordIDOverride(t *testing.T) {
	fake := newFakeProvider("example.com")
	fake.records["example.com"] = []ddns.Record{
		{ID: 7, Name: "api", Type: "A", Content: "192.0.2.1", TTL: 300},
	}
	r := &Reconciler{provider: fake, ttl: 300, recordID: 7}

	results := r.Run(context.Background(), []string{"api.example.com"}, testIP)
	if results[0].Action != ActionUpdated {
		t.Fatalf("expected updated, got %s (err: %v)", results[0].Action, results[0].Err)
	}

	for _, op := range fake.ops {
		if strings.HasPrefix(op, "list") {
			t.Errorf("record id override must not list the zone, got %v", fake.ops)
		}
	}
}

func TestReconcileRecordIDMismatch(t *testing.T) {
	cases := []struct {
		name   string
		record ddns.Record
	}{
		{"wrong type", ddns.Record{ID: 7, Name: "api", Type: "TXT", Content: "x", TTL: 300}},
		{"wrong name", ddns.Record{ID: 7, Name: "www", Type: "A", Content: "192.0.2.1", TTL: 300}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			fake := newFakeProvider("example.com")
			fake.records["example.com"] = []ddns.Record{c.record}
			r := &Reconciler{provider: fake, ttl: 300, recordID: 7}

			results := r.Run(context.Background(), []string{"api.example.com"}, testIP)
			if results[0].Action != ActionFailed {
				t.Fatalf("expected failed, got %s", results[0].Action)
			}

			if writes := fake.writes(); len(writes) != 0 {
				t.Errorf("mismatch must not write, got %v", writes)
			}
		})
	}
}

func TestReconcileDryRun(t *testing.T) {
	fake := newFakeProvider("example.com", "other.com")
	fake.records["example.com"] = []ddns.Record{
		{ID: 7, Name: "api", Type: "A", Content: "192.0.2.1", TTL: 300},
	}
	r := &Reconciler{provider: fake, ttl: 300, dryRun: true}

	results := r.Run(context.Background(), []string{"api.example.com", "new.other.com"}, testIP)

	if results[0].Action != ActionUpdated {
		t.Errorf("expected would-update, got %s", results[0].Action)
	}

	if results[1].Action != ActionCreated {
		t.Errorf("expected would-create, got %s", results[1].Action)
	}

	if writes := fake.writes(); len(writes) != 0 {
		t.Errorf("dry run must not write, got %v", writes)
	}

	if got := fake.records["example.com"][0].Content; got != "192.0.2.1" {
		t.Errorf("dry run modified a record: %q", got)
	}
}
