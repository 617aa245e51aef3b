package server

import (
	"context"
	"sync"
	"time"
)

// Lifecycle watches the server marker of other processes and calls the
// registered callbacks when a server starts or stops.
type Lifecycle struct {
	marker Marker
	poll   time.Duration

	mx      sync.Mutex
	onStart []func()
	onStop  []func()
}

func NewLifecycle(dir string, poll time.Duration) *Lifecycle {
	if poll <= 0 {
		poll = DefaultPoll
	}
	return &Lifecycle{
		marker: NewMarker(dir, ServerMarker),
		poll:   poll,
	}
}

func (l *Lifecycle) OnStart(f func()) {
	l.mx.Lock()
	defer l.mx.Unlock()
	l.onStart = append(l.onStart, f)
}

func (l *Lifecycle) OnStop(f func()) {
	l.mx.Lock()
	defer l.mx.Unlock()
	l.onStop = append(l.onStop, f)
}

// Run polls the marker until ctx is done. A server already running when
// Run is called is reported as started.
func (l *Lifecycle) Run(ctx context.Context) error {
	running := false
	check := func() {
		now := l.marker.Exists()
		if now == running {
			return
		}
		running = now
		l.mx.Lock()
		callbacks := l.onStop
		if running {
			callbacks = l.onStart
		}
		callbacks = append([]func(){}, callbacks...)
		l.mx.Unlock()
		for _, f := range callbacks {
			f()
		}
	}

	check()
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			check()
		}
	}
}
