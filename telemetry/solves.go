package telemetry

import (
	"time"

	"github.com/pthm-cable/flowswarm/systems"
	"gonum.org/v1/gonum/stat"
)

// SolveRecord is one solves.csv row.
type SolveRecord struct {
	Tick        int64  `csv:"tick"`
	Generation  uint64 `csv:"generation"`
	GoalX       int    `csv:"goal_x"`
	GoalY       int    `csv:"goal_y"`
	Reached     int    `csv:"reached"`
	MaxDistance int    `csv:"max_distance"`
	DurationUS  int64  `csv:"duration_us"`
}

// NewSolveRecord flattens a solve result.
func NewSolveRecord(tick int64, generation uint64, r systems.SolveResult) SolveRecord {
	return SolveRecord{
		Tick:        tick,
		Generation:  generation,
		GoalX:       r.Goal.X,
		GoalY:       r.Goal.Y,
		Reached:     r.Reached,
		MaxDistance: r.MaxDistance,
		DurationUS:  r.Duration.Microseconds(),
	}
}

// SolveLog keeps the most recent solves in a ring.
type SolveLog struct {
	records []SolveRecord
	next    int
	count   int
	total   int
}

// NewSolveLog creates a log holding up to capacity records.
func NewSolveLog(capacity int) *SolveLog {
	if capacity < 1 {
		capacity = 1
	}
	return &SolveLog{records: make([]SolveRecord, capacity)}
}

// Add appends r, evicting the oldest record when full.
func (l *SolveLog) Add(r SolveRecord) {
	l.records[l.next] = r
	l.next = (l.next + 1) % len(l.records)
	if l.count < len(l.records) {
		l.count++
	}
	l.total++
}

// Len returns the number of records held.
func (l *SolveLog) Len() int { return l.count }

// Total returns the number of records ever added.
func (l *SolveLog) Total() int { return l.total }

// Records returns the held records, oldest first.
func (l *SolveLog) Records() []SolveRecord {
	out := make([]SolveRecord, 0, l.count)
	start := (l.next - l.count + len(l.records)) % len(l.records)
	for i := 0; i < l.count; i++ {
		out = append(out, l.records[(start+i)%len(l.records)])
	}
	return out
}

// Last returns the most recent record.
func (l *SolveLog) Last() (SolveRecord, bool) {
	if l.count == 0 {
		return SolveRecord{}, false
	}
	return l.records[(l.next-1+len(l.records))%len(l.records)], true
}

// SolveSummary aggregates the held solves.
type SolveSummary struct {
	Count       int
	MeanTime    time.Duration
	StdDevTime  time.Duration
	MaxTime     time.Duration
	MeanReached float64
}

// Summary computes duration and reach statistics over the held solves.
func (l *SolveLog) Summary() SolveSummary {
	recs := l.Records()
	s := SolveSummary{Count: len(recs)}
	if len(recs) == 0 {
		return s
	}
	us := make([]float64, len(recs))
	reached := make([]float64, len(recs))
	var maxUS int64
	for i, r := range recs {
		us[i] = float64(r.DurationUS)
		reached[i] = float64(r.Reached)
		maxUS = max(maxUS, r.DurationUS)
	}
	mean, std := stat.PopMeanStdDev(us, nil)
	s.MeanTime = time.Duration(mean * float64(time.Microsecond))
	s.StdDevTime = time.Duration(std * float64(time.Microsecond))
	s.MaxTime = time.Duration(maxUS) * time.Microsecond
	s.MeanReached = stat.Mean(reached, nil)
	return s
}
