package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	Init(nil, nil)

	SetAgreementsOnLastRun(3)
	if got := testutil.ToFloat64(agreementsOnLastRun); got != 3 {
		t.Fatalf("agreements gauge mismatch: %v", got)
	}
	SetAgreementsOnLastRun(-1)
	if got := testutil.ToFloat64(agreementsOnLastRun); got != 0 {
		t.Fatalf("negative count should clamp to 0, got %v", got)
	}

	before := testutil.ToFloat64(transferQuantity.WithLabelValues("transfer_all"))
	AddTransferQuantity("transfer_all", 600)
	AddTransferQuantity("transfer_all", 0)
	if got := testutil.ToFloat64(transferQuantity.WithLabelValues("transfer_all")) - before; got != 600 {
		t.Fatalf("quantity delta mismatch: %v", got)
	}

	before = testutil.ToFloat64(transferSkips.WithLabelValues("unknown"))
	IncTransferSkip("")
	if got := testutil.ToFloat64(transferSkips.WithLabelValues("unknown")) - before; got != 1 {
		t.Fatalf("unknown skip delta mismatch: %v", got)
	}

	before = testutil.ToFloat64(transferRunTotal.WithLabelValues(ResultError))
	ObserveTransferRun(ResultError, 15*time.Millisecond)
	if got := testutil.ToFloat64(transferRunTotal.WithLabelValues(ResultError)) - before; got != 1 {
		t.Fatalf("run total delta mismatch: %v", got)
	}
}
