package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/esmtools/grid-coverage/internal/grid/sources"
	"github.com/esmtools/grid-coverage/internal/store"
)

// Scheduler periodically reloads remote datasets into the registry.
// A reload swaps the registered handle atomically; requests already holding
// the previous handle keep their immutable snapshot.
type Scheduler struct {
	scheduler *gocron.Scheduler
	registry  *store.Registry
	sources   []sources.Source
	interval  time.Duration
}

// New creates a new Scheduler refreshing the given sources.
func New(srcs []sources.Source, interval time.Duration, registry *store.Registry) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		registry:  registry,
		sources:   srcs,
		interval:  interval,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.sources) == 0 {
		log.Println("scheduler: no remote sources configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 60
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(func() {
		log.Println("scheduler: running dataset refresh job")

		var wg sync.WaitGroup
		for _, src := range s.sources {
			src := src
			wg.Add(1)
			go func() {
				defer wg.Done()

				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				defer cancel()

				ds, err := src.Load(ctx)
				if err != nil {
					// Keep serving the last good dataset.
					log.Printf("scheduler: refresh failed for %s: %v", src.Name(), err)
					return
				}
				s.registry.Register(src.Name(), ds)
			}()
		}
		wg.Wait()
		log.Println("scheduler: completed dataset refresh job")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
