package observability

import (
	"testing"
	"time"

	"github.com/danmuck/vrc20/internal/protocol/codec"
	"github.com/danmuck/vrc20/internal/testutil/testlog"
	"github.com/danmuck/vrc20/internal/vrc20"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("GET", "/health", 200, 12*time.Millisecond)
	RecordDispatch("tcp", vrc20.OpName, 0, time.Microsecond)
}

func TestDispatchObserverLabels(t *testing.T) {
	testlog.Start(t)
	obs := DispatchObserver("test")
	before := testutil.ToFloat64(dispatchTotal.WithLabelValues("test", "unknown", "wrong_call"))
	obs.ObserveDispatch(vrc20.OperationID(200), vrc20.KindWrongCall, time.Microsecond)
	obs.ObserveDispatch(vrc20.OperationID(201), vrc20.KindWrongCall, time.Microsecond)
	after := testutil.ToFloat64(dispatchTotal.WithLabelValues("test", "unknown", "wrong_call"))
	if after-before != 2 {
		t.Fatalf("expected unknown ops folded into one label, delta=%v", after-before)
	}

	okBefore := testutil.ToFloat64(dispatchTotal.WithLabelValues("test", "balance_of", "ok"))
	obs.ObserveDispatch(vrc20.OpBalanceOf, 0, time.Microsecond)
	if got := testutil.ToFloat64(dispatchTotal.WithLabelValues("test", "balance_of", "ok")); got-okBefore != 1 {
		t.Fatalf("expected one ok balance_of, delta=%v", got-okBefore)
	}
}

func TestEventCounter(t *testing.T) {
	testlog.Start(t)
	before := testutil.ToFloat64(eventsTotal.WithLabelValues("Approval"))
	EventCounter{}.Emit(vrc20.NewApprovalEvent(codec.Address{}, codec.Address{}, codec.U256{}))
	if got := testutil.ToFloat64(eventsTotal.WithLabelValues("Approval")); got-before != 1 {
		t.Fatalf("expected one approval, delta=%v", got-before)
	}
}
