package indicator

import "fmt"

// Bucket is a named voltage range. Upper is exclusive; the top bucket has
// no upper bound.
type Bucket struct {
	Name  string
	Upper float64
	Color Color
}

// Buckets partitions the real line into contiguous voltage ranges. All but
// the last bucket have an exclusive upper bound; the last catches every
// value at or above the highest threshold.
type Buckets []Bucket

// Bucket names, lowest first.
const (
	Critical = "critical"
	Low      = "low"
	Nominal  = "nominal"
	Good     = "good"
	VeryGood = "very_good"
	Full     = "full"
)

// DefaultThresholds suit a 12 V lead-acid battery, in volts.
var DefaultThresholds = []float64{11.8, 12.0, 12.1, 12.4, 12.6}

var bucketColors = []struct {
	name  string
	color Color
}{
	{Critical, Color{4, 0, 0}},
	{Low, Color{4, 1, 0}},
	{Nominal, Color{4, 4, 0}},
	{Good, Color{0, 4, 4}},
	{VeryGood, Color{0, 4, 0}},
	{Full, Color{0, 0, 4}},
}

// NewBuckets builds the six standard buckets from five ascending thresholds.
func NewBuckets(thresholds []float64) (Buckets, error) {
	if len(thresholds) != len(bucketColors)-1 {
		return nil, fmt.Errorf("%w: got %d thresholds, want %d", ErrThresholds, len(thresholds), len(bucketColors)-1)
	}
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i] <= thresholds[i-1] {
			return nil, ErrThresholds
		}
	}

	bs := make(Buckets, len(bucketColors))
	for i, bc := range bucketColors {
		bs[i] = Bucket{Name: bc.name, Color: bc.color}
		if i < len(thresholds) {
			bs[i].Upper = thresholds[i]
		}
	}
	return bs, nil
}

// MustBuckets is NewBuckets for known-good thresholds.
func MustBuckets(thresholds []float64) Buckets {
	bs, err := NewBuckets(thresholds)
	if err != nil {
		panic(err)
	}
	return bs
}

// Classify returns the first bucket with v < Upper, or the top bucket.
func (bs Buckets) Classify(v float64) Bucket {
	if len(bs) == 0 {
		return Bucket{Color: Off}
	}
	for _, b := range bs[:len(bs)-1] {
		if v < b.Upper {
			return b
		}
	}
	return bs[len(bs)-1]
}
