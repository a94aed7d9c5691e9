// Package synth builds synthetic sleep datasets in the fitness aggregate
// shape and injects controlled anomalies into them.
package synth

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/claude/sleepbuddy/internal/models"
)

const (
	dayMillis = int64(24 * time.Hour / time.Millisecond)

	minSleepHours = 3.0
	maxSleepHours = 12.0

	randomMultiplierMin = 1.8
	randomMultiplierMax = 2.5
)

// MaxDays bounds the length of a generated baseline to ten years.
const MaxDays = 3650

// ErrInvalidDays is returned when a baseline is requested for fewer than one
// day or more than MaxDays.
var ErrInvalidDays = errors.New("days must be between 1 and 3650")

// BaselineOptions shape the normal distribution daily durations are drawn from.
type BaselineOptions struct {
	Days           int
	BaseSleepHours float64
	StdDevHours    float64
}

// DefaultBaselineOptions returns a week of 7.5 ± 1 hour nights.
func DefaultBaselineOptions() BaselineOptions {
	return BaselineOptions{Days: 7, BaseSleepHours: 7.5, StdDevHours: 1.0}
}

// InjectOptions control anomaly injection. A nil Multipliers draws one
// multiplier per anomaly uniformly from [1.8, 2.5].
type InjectOptions struct {
	NumAnomalies int
	Multipliers  []float64
}

// DefaultAnomalyMultipliers returns one very long and one very short night.
// Each call returns a new slice.
func DefaultAnomalyMultipliers() []float64 {
	return []float64{2.0, 0.1}
}

// Injection records one mutated day.
type Injection struct {
	Index      int     `json:"index"`
	Multiplier float64 `json:"multiplier"`
	BeforeMs   int64   `json:"before_ms"`
	AfterMs    int64   `json:"after_ms"`
}

// Generator draws synthetic data from its own random source. It is not safe
// for concurrent use; give each goroutine its own Generator.
type Generator struct {
	rng *rand.Rand
}

// New returns a Generator seeded deterministically from seed.
func New(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// NewWithRand returns a Generator drawing from r.
func NewWithRand(r *rand.Rand) *Generator {
	return &Generator{rng: r}
}

// Baseline builds one bucket per day, most recent first. Bucket i covers the
// 24 hours ending at now − i days. Durations are normally distributed,
// clamped to [3, 12] hours and truncated to whole minutes.
func (g *Generator) Baseline(opts BaselineOptions, now time.Time) (models.FitDataset, error) {
	if opts.Days <= 0 || opts.Days > MaxDays {
		return models.FitDataset{}, fmt.Errorf("%w: got %d", ErrInvalidDays, opts.Days)
	}

	endTime := now.UnixMilli()
	buckets := make([]models.FitBucket, 0, opts.Days)
	for i := range opts.Days {
		hours := g.rng.NormFloat64()*opts.StdDevHours + opts.BaseSleepHours
		hours = max(minSleepHours, min(maxSleepHours, hours))
		minutes := int64(hours * 60)

		bucketEnd := endTime - int64(i)*dayMillis
		bucketStart := bucketEnd - dayMillis

		buckets = append(buckets, models.FitBucket{
			StartTimeMillis: bucketStart,
			EndTimeMillis:   bucketEnd,
			Dataset: []models.FitDataSet{{
				DataSourceID: models.SleepSegmentSourceID,
				Point: []models.FitPoint{{
					StartTimeNanos: bucketStart * int64(time.Millisecond),
					EndTimeNanos:   bucketEnd * int64(time.Millisecond),
					Value:          []models.FitValue{{IntVal: models.Int(minutes * 60 * 1000)}},
				}},
			}},
		})
	}
	return models.FitDataset{Bucket: buckets}, nil
}

// Inject returns a mutated deep copy of base. It picks
// min(NumAnomalies, days-1) distinct days from 1..days-1 (day 0, the most
// recent, is never touched) and scales each day's duration by the paired
// multiplier, truncating to whole milliseconds. When fewer explicit
// multipliers than days are given, only that many days are changed. base is
// never modified.
func (g *Generator) Inject(base models.FitDataset, opts InjectOptions) (models.FitDataset, []Injection) {
	out := base.Clone()

	available := len(out.Bucket) - 1
	count := min(opts.NumAnomalies, available)
	if count <= 0 {
		return out, nil
	}

	multipliers := opts.Multipliers
	if multipliers == nil {
		multipliers = make([]float64, count)
		for i := range multipliers {
			multipliers[i] = randomMultiplierMin + g.rng.Float64()*(randomMultiplierMax-randomMultiplierMin)
		}
	}

	perm := g.rng.Perm(available)[:count]
	injections := make([]Injection, 0, min(count, len(multipliers)))
	for k, p := range perm {
		if k >= len(multipliers) {
			break
		}
		idx := p + 1
		v := sleepValue(&out.Bucket[idx])
		if v == nil {
			continue
		}
		before := *v
		*v = int64(float64(before) * multipliers[k])
		injections = append(injections, Injection{
			Index:      idx,
			Multiplier: multipliers[k],
			BeforeMs:   before,
			AfterMs:    *v,
		})
	}
	return out, injections
}

// sleepValue points at the first point's integer value of b, or nil.
func sleepValue(b *models.FitBucket) *int64 {
	if len(b.Dataset) == 0 || len(b.Dataset[0].Point) == 0 {
		return nil
	}
	p := &b.Dataset[0].Point[0]
	if len(p.Value) == 0 {
		return nil
	}
	return p.Value[0].IntVal
}
