package sensor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State carries the two lifecycle flags of the simulated device.
// Advertising means the sensor is discoverable and producing readings;
// Connected gates automatic uploads. The flags are independent.
type State struct {
	Advertising bool `json:"advertising"`
	Connected   bool `json:"connected"`
}

// Simulator emits synthetic environmental readings on a fixed interval
// without any real hardware behind it. All state is guarded by a single
// mutex so the generation ticker, the sync ticker and the control plane
// may touch it concurrently.
type Simulator struct {
	log          *slog.Logger
	interval     time.Duration
	connectDelay time.Duration

	mu          sync.Mutex
	advertising bool
	connected   bool
	latest      *Reading
	onReading   []func(Reading)
	onState     []func(State)
	quit        chan struct{}
}

// NewSimulator returns a stopped, disconnected simulator. interval is
// the reading generation period, connectDelay the fixed time a Connect
// call takes to complete.
func NewSimulator(interval, connectDelay time.Duration, log *slog.Logger) *Simulator {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if connectDelay < 0 {
		connectDelay = 0
	}
	return &Simulator{
		log:          log,
		interval:     interval,
		connectDelay: connectDelay,
	}
}

// OnReading registers fn to be invoked for every generated reading.
// Observers are called synchronously on the generating tick, in
// registration order.
func (s *Simulator) OnReading(fn func(Reading)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReading = append(s.onReading, fn)
}

// OnStateChange registers fn to be invoked whenever one of the
// lifecycle flags flips.
func (s *Simulator) OnStateChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = append(s.onState, fn)
}

// Start marks the sensor as advertising and begins the generation
// ticker. Calling Start while already advertising is a no-op.
func (s *Simulator) Start() {
	s.mu.Lock()
	if s.advertising {
		s.mu.Unlock()
		return
	}
	s.advertising = true
	s.quit = make(chan struct{})
	quit := s.quit
	st := State{Advertising: true, Connected: s.connected}
	observers := s.stateObservers()
	s.mu.Unlock()

	s.log.Info("simulator started", "interval", s.interval.String())
	s.notifyState(observers, st)

	go func() {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-quit:
				return
			case now := <-t.C:
				s.tick(now)
			}
		}
	}()
}

// Stop cancels the generation ticker and clears the advertising flag.
// Idempotent: stopping a stopped simulator is a no-op.
func (s *Simulator) Stop() {
	s.mu.Lock()
	if !s.advertising {
		s.mu.Unlock()
		return
	}
	s.advertising = false
	close(s.quit)
	s.quit = nil
	st := State{Advertising: false, Connected: s.connected}
	observers := s.stateObservers()
	s.mu.Unlock()

	s.log.Info("simulator stopped")
	s.notifyState(observers, st)
}

// Connect completes after the configured delay and then sets the
// connected flag. There is no failure path: unless ctx is cancelled
// first, the connection always succeeds. Cancellation leaves the flag
// untouched.
func (s *Simulator) Connect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.connectDelay):
	}

	s.mu.Lock()
	changed := !s.connected
	s.connected = true
	st := State{Advertising: s.advertising, Connected: true}
	observers := s.stateObservers()
	s.mu.Unlock()

	if changed {
		s.log.Info("sensor connected", "delay", s.connectDelay.String())
		s.notifyState(observers, st)
	}
	return nil
}

// Disconnect clears the connected flag synchronously. Idempotent.
func (s *Simulator) Disconnect() {
	s.mu.Lock()
	changed := s.connected
	s.connected = false
	st := State{Advertising: s.advertising, Connected: false}
	observers := s.stateObservers()
	s.mu.Unlock()

	if changed {
		s.log.Info("sensor disconnected")
		s.notifyState(observers, st)
	}
}

// State returns the current lifecycle flags.
func (s *Simulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Advertising: s.advertising, Connected: s.connected}
}

// Connected reports whether automatic uploads are currently gated open.
func (s *Simulator) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Latest returns the most recently generated reading, if any.
func (s *Simulator) Latest() (Reading, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return Reading{}, false
	}
	return *s.latest, true
}

func (s *Simulator) tick(now time.Time) {
	r := newReading(now)

	s.mu.Lock()
	if !s.advertising {
		// Stop raced with the ticker; drop the sample.
		s.mu.Unlock()
		return
	}
	s.latest = &r
	observers := make([]func(Reading), len(s.onReading))
	copy(observers, s.onReading)
	s.mu.Unlock()

	s.log.Debug("reading generated", "tempC", r.Temperature, "humidityPct", r.Humidity)
	for _, fn := range observers {
		fn(r)
	}
}

func (s *Simulator) stateObservers() []func(State) {
	out := make([]func(State), len(s.onState))
	copy(out, s.onState)
	return out
}

// notifyState delivers the snapshot captured by the transition that
// triggered it, so rapid consecutive transitions each deliver their own
// state.
func (s *Simulator) notifyState(observers []func(State), st State) {
	for _, fn := range observers {
		fn(st)
	}
}
