package ingest

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

const (
	fetchTimeout        = 30 * time.Second
	minPollInterval     = time.Minute
	rawPayloadRetention = 90
)

// Poller periodically fetches and stores the latest reading for each city.
type Poller struct {
	scheduler *gocron.Scheduler
	ingester  *Ingester
	cities    []string
	interval  time.Duration
}

func NewPoller(ingester *Ingester, cities []string, interval time.Duration) *Poller {
	return &Poller{
		scheduler: gocron.NewScheduler(time.UTC),
		ingester:  ingester,
		cities:    cities,
		interval:  interval,
	}
}

// Start schedules the fetch job, runs it once immediately and returns.
func (p *Poller) Start() error {
	if len(p.cities) == 0 {
		log.Println("poller: no cities configured; nothing to schedule")
		return nil
	}

	interval := pollInterval(p.interval)
	if interval != p.interval {
		log.Printf("poller: interval %s below minimum, using %s", p.interval, interval)
	}

	if _, err := p.scheduler.Every(interval).Do(p.runOnce); err != nil {
		return err
	}
	if _, err := p.scheduler.Every(1).Day().At("03:00").Do(p.ingester.PruneRawPayloads, rawPayloadRetention); err != nil {
		return err
	}
	log.Printf("poller: fetching %v every %s", p.cities, interval)
	p.scheduler.StartAsync()
	return nil
}

func (p *Poller) runOnce() {
	for _, city := range p.cities {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		if _, err := p.ingester.FetchAndStore(ctx, city); err != nil {
			log.Printf("poller: fetch failed for %s: %v", city, err)
		}
		cancel()
	}
}

func (p *Poller) Stop() {
	if p.scheduler != nil {
		p.scheduler.Stop()
	}
}

func pollInterval(d time.Duration) time.Duration {
	if d < minPollInterval {
		return minPollInterval
	}
	return d
}
