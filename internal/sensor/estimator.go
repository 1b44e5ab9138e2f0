// internal/sensor/estimator.go
package sensor

import "fmt"

// NumSamples is the window size of the Rolling estimator.
const NumSamples = 5

// Estimator folds observed inter-arrival intervals into a period estimate.
// Range checking is the caller's job.
type Estimator interface {
	Add(sample uint32)
	Estimate() uint32
}

// Strategy selects an Estimator implementation.
type Strategy string

const (
	StrategyScalar  Strategy = "scalar"
	StrategyRolling Strategy = "rolling"
)

// NewEstimator returns an estimator seeded at NominalPeriod.
func NewEstimator(s Strategy) (Estimator, error) {
	switch s {
	case StrategyScalar, "":
		return NewScalar(NominalPeriod), nil
	case StrategyRolling:
		return NewRolling(NominalPeriod), nil
	default:
		return nil, fmt.Errorf("sensor: unknown estimator strategy %q", s)
	}
}

// Scalar keeps only the latest accepted sample.
type Scalar struct {
	v uint32
}

func NewScalar(seed uint32) *Scalar { return &Scalar{v: seed} }

func (s *Scalar) Add(sample uint32) { s.v = sample }

func (s *Scalar) Estimate() uint32 { return s.v }

// Rolling is the mean of the last NumSamples samples.
// The mean is cached until the next Add.
type Rolling struct {
	samples [NumSamples]uint32
	next    int

	mean  uint32
	valid bool
}

// NewRolling fills the whole window with seed.
func NewRolling(seed uint32) *Rolling {
	r := &Rolling{}
	for i := range r.samples {
		r.samples[i] = seed
	}
	return r
}

func (r *Rolling) Add(sample uint32) {
	r.samples[r.next] = sample
	r.next = (r.next + 1) % NumSamples
	r.valid = false
}

func (r *Rolling) Estimate() uint32 {
	if !r.valid {
		var sum uint64
		for _, v := range r.samples {
			sum += uint64(v)
		}
		r.mean = uint32(sum / NumSamples)
		r.valid = true
	}
	return r.mean
}
