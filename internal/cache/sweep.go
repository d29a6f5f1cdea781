package cache

import (
	"sync"
	"time"
)

// Purger is anything that can drop its expired entries.
type Purger interface {
	Purge()
}

// Sweeper periodically purges a set of caches in the background.
type Sweeper struct {
	targets []Purger
	stop    chan struct{}
	once    sync.Once
}

func NewSweeper(targets ...Purger) *Sweeper {
	return &Sweeper{
		targets: targets,
		stop:    make(chan struct{}),
	}
}

// Start launches the background sweep loop.
func (s *Sweeper) Start(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for _, t := range s.targets {
					t.Purge()
				}
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop ends the sweep loop. Safe to call more than once, and safe to call
// even when Start never ran.
func (s *Sweeper) Stop() {
	s.once.Do(func() { close(s.stop) })
}
