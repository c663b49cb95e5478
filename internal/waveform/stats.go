package waveform

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PercentileMean averages, for every sample column, the values that lie within
// the [lo, hi] percentile band of that column. NaN values are ignored. Columns
// without any valid value give NaN.
func PercentileMean(w *Waveform, lo, hi float64) ([]float64, error) {
	if lo < 0 || hi > 100 || lo > hi {
		return nil, fmt.Errorf("invalid percentile band [%g, %g]", lo, hi)
	}
	records, samples := w.Dims()
	out := make([]float64, samples)
	col := make([]float64, 0, records)

	for j := 0; j < samples; j++ {
		col = col[:0]
		for i := 0; i < records; i++ {
			if v := w.Data.At(i, j); !math.IsNaN(v) {
				col = append(col, v)
			}
		}
		if len(col) == 0 {
			out[j] = math.NaN()
			continue
		}
		sort.Float64s(col)
		qlo := stat.Quantile(lo/100, stat.LinInterp, col, nil)
		qhi := stat.Quantile(hi/100, stat.LinInterp, col, nil)

		var band []float64
		for _, v := range col {
			if v >= qlo && v <= qhi {
				band = append(band, v)
			}
		}
		if len(band) == 0 {
			out[j] = math.NaN()
			continue
		}
		out[j] = stat.Mean(band, nil)
	}
	return out, nil
}

// RecordStats summarizes one waveform record.
type RecordStats struct {
	Index     int
	PeakIndex int // -1 when the record holds only fill values
	Peak      float64
	Mean      float64
	Valid     int
}

// Summary returns peak position and power for every record.
func Summary(w *Waveform) []RecordStats {
	records, samples := w.Dims()
	out := make([]RecordStats, records)
	row := make([]float64, samples)

	for i := 0; i < records; i++ {
		mat.Row(row, i, w.Data)
		valid := make([]float64, 0, samples)
		for _, v := range row {
			if !math.IsNaN(v) {
				valid = append(valid, v)
			}
		}

		rs := RecordStats{Index: i, PeakIndex: -1, Peak: math.NaN(), Mean: math.NaN(), Valid: len(valid)}
		if len(valid) > 0 {
			// MaxIdx skips NaN
			rs.PeakIndex = floats.MaxIdx(row)
			rs.Peak = row[rs.PeakIndex]
			rs.Mean = stat.Mean(valid, nil)
		}
		out[i] = rs
	}
	return out
}
