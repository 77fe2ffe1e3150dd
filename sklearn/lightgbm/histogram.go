package lightgbm

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/survival/core/parallel"
)

// BinMapper maps raw feature values to histogram bins. Bin i holds values
// <= UpperBounds[i]; the last bound is +Inf. NaN goes to a dedicated
// missing bin after the value bins.
type BinMapper struct {
	UpperBounds []float64
}

// NewBinMapper builds bins from the non-missing values of one feature.
// With at most maxBin distinct values each value gets its own bin;
// otherwise bins hold roughly equal counts.
func NewBinMapper(values []float64, maxBin int) BinMapper {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return BinMapper{UpperBounds: []float64{math.Inf(1)}}
	}
	sort.Float64s(sorted)

	var distinct []float64
	var counts []int
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			distinct = append(distinct, v)
			counts = append(counts, 0)
		}
		counts[len(counts)-1]++
	}

	bounds := make([]float64, 0, maxBin)
	if len(distinct) <= maxBin {
		for i := 0; i+1 < len(distinct); i++ {
			bounds = append(bounds, (distinct[i]+distinct[i+1])/2)
		}
	} else {
		perBin := float64(len(sorted)) / float64(maxBin)
		acc := 0
		for i := 0; i+1 < len(distinct) && len(bounds) < maxBin-1; i++ {
			acc += counts[i]
			if float64(acc) >= perBin*float64(len(bounds)+1) {
				bounds = append(bounds, (distinct[i]+distinct[i+1])/2)
			}
		}
	}
	bounds = append(bounds, math.Inf(1))
	return BinMapper{UpperBounds: bounds}
}

// NumBins returns the number of bins including the missing bin.
func (b BinMapper) NumBins() int {
	return len(b.UpperBounds) + 1
}

// MissingBin returns the index of the NaN bin.
func (b BinMapper) MissingBin() int {
	return len(b.UpperBounds)
}

// ValueToBin returns the bin of v.
func (b BinMapper) ValueToBin(v float64) int {
	if math.IsNaN(v) {
		return b.MissingBin()
	}
	return sort.SearchFloat64s(b.UpperBounds, v)
}

// Histogram accumulates gradient statistics of one bin
type Histogram struct {
	Count   int
	SumGrad float64
	SumHess float64
}

// SplitInfo contains information about a potential split
type SplitInfo struct {
	Feature      int
	BinThreshold int
	Threshold    float64
	DefaultLeft  bool
	Gain         float64
	LeftCount    int
	RightCount   int
	LeftGrad     float64
	RightGrad    float64
	LeftHess     float64
	RightHess    float64
}

// valid reports whether a split was found.
func (s SplitInfo) valid() bool {
	return s.Feature >= 0
}

func noSplit() SplitInfo {
	return SplitInfo{Feature: -1, Gain: math.Inf(-1)}
}

// buildHistograms accumulates per-bin statistics of rows for each sampled
// feature. Unsampled features get nil. Features are processed in parallel.
func (t *Trainer) buildHistograms(rows []int, features []int) [][]Histogram {
	hists := make([][]Histogram, len(t.binMappers))
	parallel.ParallelizeWithThreshold(len(features), 8, func(start, end int) {
		for _, j := range features[start:end] {
			h := make([]Histogram, t.binMappers[j].NumBins())
			col := t.binned[j]
			for _, i := range rows {
				b := col[i]
				h[b].Count++
				h[b].SumGrad += t.gradients[i]
				h[b].SumHess += t.hessians[i]
			}
			hists[j] = h
		}
	})
	return hists
}

// findBestSplit scans the histograms of the sampled features. Missing
// values are tried on both sides; the first best split in feature order
// wins ties.
func (t *Trainer) findBestSplit(hists [][]Histogram, features []int, sumGrad, sumHess float64, count int) SplitInfo {
	best := noSplit()
	minGain := math.Max(t.params.MinGainToSplit, 0)

	for _, j := range features {
		h := hists[j]
		mapper := t.binMappers[j]
		missing := h[mapper.MissingBin()]
		valueBins := mapper.MissingBin()

		var accGrad, accHess float64
		accCount := 0
		for b := 0; b < valueBins-1; b++ {
			accGrad += h[b].SumGrad
			accHess += h[b].SumHess
			accCount += h[b].Count
			if h[b].Count == 0 {
				continue
			}

			for _, defaultLeft := range []bool{false, true} {
				if defaultLeft && missing.Count == 0 {
					continue
				}
				lg, lh, lc := accGrad, accHess, accCount
				if defaultLeft {
					lg += missing.SumGrad
					lh += missing.SumHess
					lc += missing.Count
				}
				rg, rh, rc := sumGrad-lg, sumHess-lh, count-lc

				if lc < t.params.MinDataInLeaf || rc < t.params.MinDataInLeaf {
					continue
				}
				if lh < t.params.MinSumHessianInLeaf || rh < t.params.MinSumHessianInLeaf {
					continue
				}

				gain := t.regularization.CalculateSplitGain(lg, lh, rg, rh, sumGrad, sumHess)
				if gain <= minGain || gain <= best.Gain {
					continue
				}
				best = SplitInfo{
					Feature:      j,
					BinThreshold: b,
					Threshold:    mapper.UpperBounds[b],
					DefaultLeft:  defaultLeft,
					Gain:         gain,
					LeftCount:    lc,
					RightCount:   rc,
					LeftGrad:     lg,
					RightGrad:    rg,
					LeftHess:     lh,
					RightHess:    rh,
				}
			}
		}
	}
	return best
}

// partition splits rows by a histogram split.
func (t *Trainer) partition(rows []int, split SplitInfo) (left, right []int) {
	col := t.binned[split.Feature]
	missingBin := uint16(t.binMappers[split.Feature].MissingBin())
	left = make([]int, 0, split.LeftCount)
	right = make([]int, 0, split.RightCount)
	for _, i := range rows {
		b := col[i]
		goLeft := int(b) <= split.BinThreshold
		if b == missingBin {
			goLeft = split.DefaultLeft
		}
		if goLeft {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}
