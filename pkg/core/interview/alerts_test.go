package interview

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/candorlabs/vox/pkg/core/quality"
	"github.com/candorlabs/vox/pkg/notify"
)

type fakeAlertStore struct {
	mu    sync.Mutex
	saved []quality.Alert
	err   error
}

func (f *fakeAlertStore) SaveAlert(_ context.Context, a quality.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, a)
	return f.err
}

func (f *fakeAlertStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func TestAlertSink_PersistsAndPublishes(t *testing.T) {
	store := &fakeAlertStore{}
	notifier := &recordingNotifier{}
	sink := NewAlertSink(store, notifier, nil, testLogger())

	ch := make(chan quality.Alert, 2)
	ch <- quality.Alert{
		ID:        "a1",
		SessionID: "iv-1",
		Metric:    quality.MetricEngagement,
		Severity:  quality.SeverityWarning,
		Value:     0.4,
		Threshold: 0.5,
		RaisedAt:  time.Now(),
	}
	close(ch)

	sink.Start(context.Background(), ch)
	sink.Wait()

	if store.count() != 1 {
		t.Fatalf("saved %d alerts, want 1", store.count())
	}
	types := notifier.types()
	if len(types) != 1 || types[0] != notify.QualityAlert {
		t.Fatalf("published events = %v, want [quality.alert]", types)
	}
}

func TestAlertSink_StoreFailureDoesNotStopDrain(t *testing.T) {
	store := &fakeAlertStore{err: context.DeadlineExceeded}
	sink := NewAlertSink(store, nil, nil, testLogger())

	ch := make(chan quality.Alert, 2)
	ch <- quality.Alert{ID: "a1", SessionID: "iv-1", Metric: quality.MetricErrorRate}
	ch <- quality.Alert{ID: "a2", SessionID: "iv-1", Metric: quality.MetricErrorRate}
	close(ch)

	sink.Start(context.Background(), ch)
	sink.Wait()

	if store.count() != 2 {
		t.Fatalf("saved %d alerts, want 2", store.count())
	}
}

func TestAlertSink_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sink := NewAlertSink(nil, nil, nil, testLogger())

	ch := make(chan quality.Alert)
	sink.Start(ctx, ch)
	cancel()

	done := make(chan struct{})
	go func() {
		sink.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sink did not stop after cancel")
	}
}
