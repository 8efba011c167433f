package progress

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Tracker tracks transfer progress for one running batch. Safe for
// concurrent updates from transfer workers.
type Tracker struct {
	totalObjects   int64
	totalBytes     int64
	doneObjects    atomic.Int64
	doneBytes      atomic.Int64
	failedObjects  atomic.Int64
	startTime      time.Time
	lastUpdateTime time.Time
	speeds         []float64
	mu             sync.RWMutex
}

// NewTracker creates a tracker sized for the batch. totalBytes may be
// zero when size hints are unknown; ETA falls back to object counts then.
func NewTracker(totalObjects, totalBytes int64) *Tracker {
	return &Tracker{
		totalObjects:   totalObjects,
		totalBytes:     totalBytes,
		startTime:      time.Now(),
		lastUpdateTime: time.Now(),
		speeds:         make([]float64, 0, 10),
	}
}

// Update records one terminal descriptor outcome.
func (t *Tracker) Update(bytes int64, success bool) {
	now := time.Now()

	if success {
		t.doneObjects.Add(1)
		t.doneBytes.Add(bytes)
	} else {
		t.failedObjects.Add(1)
	}

	t.mu.Lock()
	elapsed := now.Sub(t.lastUpdateTime).Seconds()
	if elapsed > 0 && bytes > 0 {
		t.speeds = append(t.speeds, float64(bytes)/elapsed)
		if len(t.speeds) > 10 {
			t.speeds = t.speeds[1:]
		}
	}
	t.lastUpdateTime = now
	t.mu.Unlock()
}

// Stats is a point-in-time progress snapshot.
type Stats struct {
	ProgressPct   float64
	DoneObjects   int64
	TotalObjects  int64
	FailedObjects int64
	DoneBytes     int64
	TotalBytes    int64
	SpeedMBps     float64
	Elapsed       string
	ETA           string
}

// Snapshot returns current progress statistics.
func (t *Tracker) Snapshot() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	done := t.doneObjects.Load()
	doneBytes := t.doneBytes.Load()
	failed := t.failedObjects.Load()

	var avgSpeed float64
	if len(t.speeds) > 0 {
		var sum float64
		for _, s := range t.speeds {
			sum += s
		}
		avgSpeed = sum / float64(len(t.speeds))
	}

	eta := "calculating..."
	if avgSpeed > 0 && t.totalBytes > 0 {
		remaining := float64(t.totalBytes-doneBytes) / avgSpeed
		if remaining < 0 {
			remaining = 0
		}
		eta = time.Duration(remaining * float64(time.Second)).Round(time.Second).String()
	} else if done+failed >= t.totalObjects && t.totalObjects > 0 {
		eta = "0s"
	}

	pct := 0.0
	if t.totalObjects > 0 {
		pct = float64(done+failed) / float64(t.totalObjects) * 100
	}

	return Stats{
		ProgressPct:   pct,
		DoneObjects:   done,
		TotalObjects:  t.totalObjects,
		FailedObjects: failed,
		DoneBytes:     doneBytes,
		TotalBytes:    t.totalBytes,
		SpeedMBps:     avgSpeed / (1024 * 1024),
		Elapsed:       time.Since(t.startTime).Round(time.Millisecond).String(),
		ETA:           eta,
	}
}

// Format renders the snapshot as a one-line status string.
func (t *Tracker) Format() string {
	s := t.Snapshot()
	return fmt.Sprintf("%.1f%% (%d/%d objects) | %.1f MB/s | ETA %s | failed: %d",
		s.ProgressPct, s.DoneObjects, s.TotalObjects, s.SpeedMBps, s.ETA, s.FailedObjects)
}
