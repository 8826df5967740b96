package analysis

import (
	"fmt"
	"math/cmplx"
	"sort"

	"github.com/mjibson/go-dsp/fft"

	"github.com/san-kum/fieldcanon/internal/dynamo"
)

// Series extracts one named field from every state of a trace.
func Series(trace []dynamo.State, name string) ([]float64, error) {
	if len(trace) == 0 {
		return nil, nil
	}
	if _, ok := trace[0].Fields()[name]; !ok {
		return nil, dynamo.Newf(dynamo.CodeInvalidConfig, "unknown field %q (have %v)", name, FieldNames())
	}
	out := make([]float64, len(trace))
	for i, s := range trace {
		out[i] = s.Fields()[name]
	}
	return out, nil
}

// FieldNames lists the names Series accepts.
func FieldNames() []string {
	fields := dynamo.BlankState().Fields()
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// PowerSpectrum returns the magnitudes of the lower half of the spectrum of
// data with its mean removed. Any length works.
func PowerSpectrum(data []float64) []float64 {
	n := len(data)
	if n < 2 {
		return nil
	}

	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(n)

	centered := make([]float64, n)
	for i, v := range data {
		centered[i] = v - mean
	}

	coeffs := fft.FFTReal(centered)
	ps := make([]float64, n/2)
	for i := range ps {
		ps[i] = cmplx.Abs(coeffs[i])
	}
	return ps
}

// DominantFrequency returns the strongest non-constant bin of data and its
// frequency in cycles per sample. A flat signal gives (0, 0).
func DominantFrequency(data []float64) (int, float64) {
	ps := PowerSpectrum(data)
	best, bin := 0.0, 0
	for i := 1; i < len(ps); i++ {
		if ps[i] > best {
			best, bin = ps[i], i
		}
	}
	if bin == 0 {
		return 0, 0
	}
	return bin, float64(bin) / float64(len(data))
}

// Summary is the spectral view of one trace field.
type Summary struct {
	Field     string  `json:"field"`
	Samples   int     `json:"samples"`
	Bin       int     `json:"bin"`
	Frequency float64 `json:"frequency"`
	Period    float64 `json:"period"`
}

func (s Summary) String() string {
	if s.Bin == 0 {
		return fmt.Sprintf("%s: no oscillation over %d samples", s.Field, s.Samples)
	}
	return fmt.Sprintf("%s: bin %d, %.4f cycles/sample, period %.1f samples", s.Field, s.Bin, s.Frequency, s.Period)
}

func Summarize(trace []dynamo.State, name string) (Summary, error) {
	data, err := Series(trace, name)
	if err != nil {
		return Summary{}, err
	}
	bin, freq := DominantFrequency(data)
	s := Summary{Field: name, Samples: len(data), Bin: bin, Frequency: freq}
	if freq > 0 {
		s.Period = 1 / freq
	}
	return s, nil
}
