package models

// SleepSegmentSourceID is the merged sleep-segment data source the fitness
// aggregate API reports sleep durations under.
const SleepSegmentSourceID = "derived:com.google.sleep.segment:com.google.android.gms:merged"

// FitDataset is the aggregate response shape of the fitness API: time
// buckets, each holding datasets of points. Millisecond and nanosecond
// bounds travel as decimal strings on the wire.
type FitDataset struct {
	Bucket []FitBucket `json:"bucket"`
}

// FitBucket covers the half-open interval [StartTimeMillis, EndTimeMillis).
type FitBucket struct {
	StartTimeMillis int64        `json:"startTimeMillis,string"`
	EndTimeMillis   int64        `json:"endTimeMillis,string"`
	Dataset         []FitDataSet `json:"dataset"`
}

// FitDataSet is one data source's contribution to a bucket.
type FitDataSet struct {
	DataSourceID string     `json:"dataSourceId"`
	Point        []FitPoint `json:"point"`
}

// FitPoint is a single measurement. For sleep, Value[0].IntVal is the
// duration in milliseconds.
type FitPoint struct {
	StartTimeNanos int64      `json:"startTimeNanos,string"`
	EndTimeNanos   int64      `json:"endTimeNanos,string"`
	Value          []FitValue `json:"value"`
}

// FitValue holds one typed value of a point.
type FitValue struct {
	IntVal *int64   `json:"intVal,omitempty"`
	FpVal  *float64 `json:"fpVal,omitempty"`
}

// Int returns v as a *int64, for building FitValue literals.
func Int(v int64) *int64 { return &v }

// Clone returns a deep copy of d. The copy shares no slices or pointers with
// d, so it can be mutated freely.
func (d FitDataset) Clone() FitDataset {
	if d.Bucket == nil {
		return FitDataset{}
	}
	out := FitDataset{Bucket: make([]FitBucket, len(d.Bucket))}
	for i, b := range d.Bucket {
		out.Bucket[i] = b.clone()
	}
	return out
}

func (b FitBucket) clone() FitBucket {
	c := b
	if b.Dataset == nil {
		return c
	}
	c.Dataset = make([]FitDataSet, len(b.Dataset))
	for i, ds := range b.Dataset {
		cds := ds
		if ds.Point != nil {
			cds.Point = make([]FitPoint, len(ds.Point))
			for j, p := range ds.Point {
				cds.Point[j] = p.clone()
			}
		}
		c.Dataset[i] = cds
	}
	return c
}

func (p FitPoint) clone() FitPoint {
	c := p
	if p.Value == nil {
		return c
	}
	c.Value = make([]FitValue, len(p.Value))
	for i, v := range p.Value {
		var cv FitValue
		if v.IntVal != nil {
			n := *v.IntVal
			cv.IntVal = &n
		}
		if v.FpVal != nil {
			f := *v.FpVal
			cv.FpVal = &f
		}
		c.Value[i] = cv
	}
	return c
}

// SleepMillis returns the first point's first integer value of the bucket and
// whether it is present.
func (b FitBucket) SleepMillis() (int64, bool) {
	if len(b.Dataset) == 0 || len(b.Dataset[0].Point) == 0 {
		return 0, false
	}
	p := b.Dataset[0].Point[0]
	if len(p.Value) == 0 || p.Value[0].IntVal == nil {
		return 0, false
	}
	return *p.Value[0].IntVal, true
}
