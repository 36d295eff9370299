package uploader

import (
	"context"
	"sync"
	"testing"
	"time"

	"smartsense/sensorsim/internal/sensor"
)

type stubPoster struct {
	mu    sync.Mutex
	calls int
	last  sensor.Reading
}

func (s *stubPoster) Upload(_ context.Context, r sensor.Reading, _ string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.last = r
	return Result{StatusCode: 200}, nil
}

func (s *stubPoster) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubSource struct {
	r  sensor.Reading
	ok bool
}

func (s *stubSource) Latest() (sensor.Reading, bool) { return s.r, s.ok }

type stubGate struct{ connected bool }

func (g *stubGate) Connected() bool { return g.connected }

func TestAutoSyncSkipsWhenDisconnected(t *testing.T) {
	poster := &stubPoster{}
	src := &stubSource{r: sampleReading(), ok: true}
	syncer := NewAutoSyncer(poster, src, &stubGate{connected: false}, "sensor-01", 5*time.Millisecond, nil, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_ = syncer.Run(ctx)

	if got := poster.count(); got != 0 {
		t.Fatalf("expected no uploads while disconnected, got %d", got)
	}
}

func TestAutoSyncSkipsWithoutReadings(t *testing.T) {
	poster := &stubPoster{}
	syncer := NewAutoSyncer(poster, &stubSource{}, &stubGate{connected: true}, "sensor-01", 5*time.Millisecond, nil, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_ = syncer.Run(ctx)

	if got := poster.count(); got != 0 {
		t.Fatalf("expected no uploads without a reading, got %d", got)
	}
}

// blockingPoster stalls its first upload until released so ticks can
// fire while an upload is in flight.
type blockingPoster struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func (p *blockingPoster) Upload(_ context.Context, _ sensor.Reading, _ string) (Result, error) {
	p.mu.Lock()
	p.calls++
	first := p.calls == 1
	p.mu.Unlock()
	if first {
		close(p.started)
		<-p.release
	}
	return Result{StatusCode: 200}, nil
}

func (p *blockingPoster) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestAutoSyncSkipsTicksWhileUploadInFlight(t *testing.T) {
	poster := &blockingPoster{started: make(chan struct{}), release: make(chan struct{})}
	src := &stubSource{r: sampleReading(), ok: true}
	syncer := NewAutoSyncer(poster, src, &stubGate{connected: true}, "sensor-01", 5*time.Millisecond, nil, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = syncer.Run(ctx)
		close(done)
	}()

	select {
	case <-poster.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first upload never started")
	}

	// Let a number of ticks fire while the first upload is stuck;
	// every one of them must be skipped, not overlapped.
	time.Sleep(60 * time.Millisecond)
	if got := poster.count(); got != 1 {
		t.Fatalf("expected ticks to be skipped during an in-flight upload, got %d uploads", got)
	}

	close(poster.release)
	deadline := time.Now().Add(2 * time.Second)
	for poster.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("uploads never resumed after the in-flight one finished")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-done
}

func TestAutoSyncUploadsLatestWhileConnected(t *testing.T) {
	poster := &stubPoster{}
	src := &stubSource{r: sampleReading(), ok: true}
	results := make(chan Result, 16)
	onResult := func(res Result, err error, _ time.Duration) {
		if err == nil {
			results <- res
		}
	}
	syncer := NewAutoSyncer(poster, src, &stubGate{connected: true}, "sensor-01", 5*time.Millisecond, onResult, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = syncer.Run(ctx)
		close(done)
	}()

	select {
	case res := <-results:
		if res.StatusCode != 200 {
			t.Fatalf("unexpected result status %d", res.StatusCode)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("auto-sync never uploaded")
	}

	cancel()
	<-done

	if poster.count() == 0 {
		t.Fatal("expected at least one upload")
	}
}
