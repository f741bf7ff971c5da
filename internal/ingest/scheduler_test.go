package ingest

import (
	"net/http"
	"testing"
	"time"
)

func TestPollInterval(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{0, time.Minute},
		{30 * time.Second, time.Minute},
		{time.Minute, time.Minute},
		{15 * time.Minute, 15 * time.Minute},
		{2 * time.Hour, 2 * time.Hour},
	}
	for _, tt := range tests {
		if got := pollInterval(tt.in); got != tt.want {
			t.Errorf("pollInterval(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func pm25Handler(values map[string]string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, ok := values[r.URL.Query().Get("city")]
		if !ok {
			w.Write([]byte(`{"results":[]}`))
			return
		}
		w.Write([]byte(`{"results":[{"measurements":[{"parameter":"pm25","value":` + v + `}]}]}`))
	}
}

func TestPoller_RunOnceStoresEachCity(t *testing.T) {
	st := newTestStore(t)
	c := newTestClient(t, pm25Handler(map[string]string{"Delhi": "210", "Mumbai": "64"}))
	p := NewPoller(NewIngester(st, c), []string{"Delhi", "Nowhere", "Mumbai"}, time.Hour)

	p.runOnce()

	for city, want := range map[string]float64{"Delhi": 210, "Mumbai": 64} {
		r, err := st.GetLatestReading(city)
		if err != nil {
			t.Fatalf("GetLatestReading(%s): %v", city, err)
		}
		if r == nil || r.PM25 == nil || *r.PM25 != want {
			t.Errorf("%s reading = %+v, want pm25 %v", city, r, want)
		}
	}

	failed, err := st.GetRecentIngestErrors(10)
	if err != nil {
		t.Fatalf("GetRecentIngestErrors: %v", err)
	}
	if len(failed) != 1 || failed[0].City.String != "Nowhere" {
		t.Errorf("failed runs = %+v, want one for Nowhere", failed)
	}
}

func TestPoller_StartSchedulesJobs(t *testing.T) {
	st := newTestStore(t)
	c := newTestClient(t, pm25Handler(map[string]string{"Delhi": "150"}))
	p := NewPoller(NewIngester(st, c), []string{"Delhi"}, 10*time.Second)

	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	if n := p.scheduler.Len(); n != 2 {
		t.Errorf("scheduled jobs = %d, want fetch and prune", n)
	}

	// The fetch job runs as soon as the scheduler starts.
	deadline := time.Now().Add(5 * time.Second)
	for {
		r, err := st.GetLatestReading("Delhi")
		if err != nil {
			t.Fatalf("GetLatestReading: %v", err)
		}
		if r != nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no reading stored after start")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestPoller_NoCities(t *testing.T) {
	p := NewPoller(NewIngester(newTestStore(t), newTestClient(t, pm25Handler(nil))), nil, time.Hour)
	if err := p.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()
	if n := p.scheduler.Len(); n != 0 {
		t.Errorf("scheduled jobs = %d, want 0", n)
	}
}

