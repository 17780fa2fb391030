package stream

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// maxSamples bounds the latency window kept for the summary.
const maxSamples = 1024

// Stats collects the per frame processing latency of a stream.
type Stats struct {
	mu      sync.Mutex
	start   time.Time
	frames  int
	faces   int
	samples []float64
	next    int
}

// Summary is a snapshot of the collected statistics.
type Summary struct {
	Frames  int
	Faces   int
	Drops   uint64
	Elapsed time.Duration
	FPS     float64

	Mean, StdDev, P95 time.Duration
}

// NewStats starts collecting at now.
func NewStats(now time.Time) *Stats {
	return &Stats{start: now}
}

// Record adds a processed frame, the time it took and the number of faces found.
func (s *Stats) Record(latency time.Duration, faces int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames++
	s.faces += faces
	ms := float64(latency) / float64(time.Millisecond)
	if len(s.samples) < maxSamples {
		s.samples = append(s.samples, ms)
		return
	}
	s.samples[s.next] = ms
	s.next = (s.next + 1) % maxSamples
}

// Summary computes the statistics at now. Latencies are taken over the most
// recent frames only.
func (s *Stats) Summary(now time.Time, drops uint64) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{
		Frames:  s.frames,
		Faces:   s.faces,
		Drops:   drops,
		Elapsed: now.Sub(s.start),
	}
	if sum.Elapsed > 0 {
		sum.FPS = float64(s.frames) / sum.Elapsed.Seconds()
	}
	if len(s.samples) == 0 {
		return sum
	}

	sorted := make([]float64, len(s.samples))
	copy(sorted, s.samples)
	sort.Float64s(sorted)

	mean, std := stat.MeanStdDev(sorted, nil)
	if len(sorted) < 2 {
		std = 0
	}
	sum.Mean = msToDuration(mean)
	sum.StdDev = msToDuration(std)
	sum.P95 = msToDuration(stat.Quantile(0.95, stat.Empirical, sorted, nil))
	return sum
}

func (s Summary) String() string {
	return fmt.Sprintf("%d frames (%d dropped), %d faces, %.1f fps, latency mean %v, stddev %v, p95 %v",
		s.Frames, s.Drops, s.Faces, s.FPS,
		s.Mean.Round(time.Microsecond), s.StdDev.Round(time.Microsecond), s.P95.Round(time.Microsecond),
	)
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
