package transfer

import (
	"errors"
	"testing"
	"time"
)

var hour0 = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

func hourPeriod(offset int) Period {
	start := hour0.Add(time.Duration(offset) * time.Hour)
	return Period{Start: start, End: start.Add(time.Hour)}
}

func cert(stream string, certType CertificateType, quantity int64, period Period) GranularCertificate {
	return GranularCertificate{
		FederatedID: FederatedStreamID{Registry: "Narnia", StreamID: stream},
		Quantity:    quantity,
		Period:      period,
		GridArea:    "DK1",
		Type:        certType,
	}
}

func TestAllocateFirstFit_PartialSecondCertificate(t *testing.T) {
	certs := []GranularCertificate{
		cert("a", CertificateTypeProduction, 300, hourPeriod(0)),
		cert("b", CertificateTypeProduction, 500, hourPeriod(0)),
		cert("c", CertificateTypeProduction, 900, hourPeriod(0)),
	}

	got := AllocateFirstFit(certs, 700)
	if len(got) != 2 {
		t.Fatalf("expected 2 allocations, got %d", len(got))
	}
	if got[0].Certificate.FederatedID.StreamID != "a" || got[0].Quantity != 300 {
		t.Fatalf("first allocation mismatch: %+v", got[0])
	}
	if got[1].Certificate.FederatedID.StreamID != "b" || got[1].Quantity != 400 {
		t.Fatalf("second allocation mismatch: %+v", got[1])
	}
}

func TestAllocateFirstFit_Conservation(t *testing.T) {
	cases := []struct {
		name       string
		quantities []int64
		demand     int64
	}{
		{name: "supply exceeds demand", quantities: []int64{1000}, demand: 600},
		{name: "demand exceeds supply", quantities: []int64{100, 200}, demand: 1000},
		{name: "exact", quantities: []int64{250, 250, 500}, demand: 1000},
		{name: "zero demand", quantities: []int64{10}, demand: 0},
		{name: "no supply", quantities: nil, demand: 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var certs []GranularCertificate
			var supply int64
			for i, q := range tc.quantities {
				certs = append(certs, cert(string(rune('a'+i)), CertificateTypeProduction, q, hourPeriod(0)))
				supply += q
			}
			var total int64
			for _, alloc := range AllocateFirstFit(certs, tc.demand) {
				if alloc.Quantity <= 0 {
					t.Fatalf("zero allocation returned: %+v", alloc)
				}
				if alloc.Quantity > alloc.Certificate.Quantity {
					t.Fatalf("allocation exceeds certificate quantity: %+v", alloc)
				}
				total += alloc.Quantity
			}
			if want := min(tc.demand, supply); total != want {
				t.Fatalf("allocated %d, want %d", total, want)
			}
		})
	}
}

func TestAllocateFirstFit_KeepsFetchOrder(t *testing.T) {
	certs := []GranularCertificate{
		cert("small", CertificateTypeProduction, 10, hourPeriod(0)),
		cert("large", CertificateTypeProduction, 1000, hourPeriod(0)),
	}
	got := AllocateFirstFit(certs, 500)
	if len(got) != 2 || got[0].Certificate.FederatedID.StreamID != "small" {
		t.Fatalf("expected fetch order to be kept, got %+v", got)
	}
}

func TestUnmatchedConsumption(t *testing.T) {
	certs := []GranularCertificate{
		cert("c1", CertificateTypeConsumption, 600, hourPeriod(0)),
		cert("c2", CertificateTypeConsumption, 100, hourPeriod(1)),
		cert("p2", CertificateTypeProduction, 150, hourPeriod(1)),
		cert("c3", CertificateTypeConsumption, 400, hourPeriod(2)),
		cert("p3", CertificateTypeProduction, 100, hourPeriod(2)),
		cert("c1b", CertificateTypeConsumption, 50, hourPeriod(0)),
	}

	demands, err := UnmatchedConsumption(certs)
	if err != nil {
		t.Fatalf("unmatched consumption: %v", err)
	}
	if len(demands) != 2 {
		t.Fatalf("expected 2 demand periods, got %d", len(demands))
	}
	if demands[0].Period.Key() != hourPeriod(0).Key() || demands[0].Quantity != 650 {
		t.Fatalf("first demand mismatch: %+v", demands[0])
	}
	if demands[1].Period.Key() != hourPeriod(2).Key() || demands[1].Quantity != 300 {
		t.Fatalf("second demand mismatch: %+v", demands[1])
	}
}

func TestUnmatchedConsumption_UnknownType(t *testing.T) {
	certs := []GranularCertificate{cert("x", CertificateType("storage"), 1, hourPeriod(0))}
	if _, err := UnmatchedConsumption(certs); !errors.Is(err, ErrUnknownCertificateType) {
		t.Fatalf("expected ErrUnknownCertificateType, got %v", err)
	}
}

func TestGroupByPeriod_ExactBoundsOnly(t *testing.T) {
	quarter := Period{Start: hour0, End: hour0.Add(15 * time.Minute)}
	certs := []GranularCertificate{
		cert("h", CertificateTypeProduction, 1, hourPeriod(0)),
		cert("q", CertificateTypeProduction, 1, quarter),
		cert("h-local", CertificateTypeProduction, 1, Period{
			Start: hour0.In(time.FixedZone("CET", 3600)),
			End:   hour0.Add(time.Hour).In(time.FixedZone("CET", 3600)),
		}),
	}
	groups := GroupByPeriod(certs)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if len(groups[0].Certificates) != 2 {
		t.Fatalf("expected same instant in another zone to group together, got %d", len(groups[0].Certificates))
	}
	if len(groups[1].Certificates) != 1 || groups[1].Certificates[0].FederatedID.StreamID != "q" {
		t.Fatalf("overlapping period must not merge: %+v", groups[1])
	}
}
