// Package stats computes vote distributions, consensus, and summaries.
// All functions are pure: identical input yields identical output.
package stats

import (
	"math"
	"sort"
	"strconv"

	"github.com/scrumkit/scrumkit/internal/model"
)

// ValueCount is one bucket of a vote distribution.
type ValueCount struct {
	Value   string  `json:"value"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// Summary aggregates the numeric votes of one subject. Non-numeric tokens
// ("?", coffee-break markers) are excluded from the numbers and tallied in
// Special instead.
type Summary struct {
	Mode         float64        `json:"mode"`
	Median       float64        `json:"median"`
	Min          float64        `json:"min"`
	Max          float64        `json:"max"`
	Average      float64        `json:"average"`
	NumericCount int            `json:"numericCount"`
	Special      map[string]int `json:"special,omitempty"`
}

// ConsensusResult reports whether votes cluster around the mode.
type ConsensusResult struct {
	Reached   bool     `json:"reached"`
	Value     float64  `json:"value"`     // the mode the group clustered on
	Agreement float64  `json:"agreement"` // fraction of numeric votes within tolerance of Value
	Outliers  []string `json:"outliers,omitempty"`
}

// Distribution tallies every vote value, numeric or not, sorted by count
// descending then value ascending for determinism.
func Distribution(votes []model.Vote) []ValueCount {
	counts := map[string]int{}
	for _, v := range votes {
		counts[v.Value]++
	}
	out := make([]ValueCount, 0, len(counts))
	for value, n := range counts {
		pct := 0.0
		if len(votes) > 0 {
			pct = float64(n) / float64(len(votes)) * 100
		}
		out = append(out, ValueCount{Value: value, Count: n, Percent: pct})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	return out
}

// Summarize computes mode/median/min/max/average over numeric votes only.
func Summarize(votes []model.Vote) Summary {
	s := Summary{Special: map[string]int{}}
	var nums []float64
	modeCounts := map[float64]int{}
	for _, v := range votes {
		n, ok := parseNumeric(v.Value)
		if !ok {
			s.Special[v.Value]++
			continue
		}
		nums = append(nums, n)
		modeCounts[n]++
	}
	s.NumericCount = len(nums)
	if len(nums) == 0 {
		return s
	}
	sort.Float64s(nums)
	s.Min = nums[0]
	s.Max = nums[len(nums)-1]
	s.Median = median(nums)
	sum := 0.0
	for _, n := range nums {
		sum += n
	}
	s.Average = sum / float64(len(nums))
	s.Mode = mode(modeCounts)
	return s
}

// Consensus reports whether numeric votes agree within tolerance of the mode.
// Votes within ±tolerance count toward the consensus group rather than
// requiring exact equality; anything further out is an outlier.
func Consensus(votes []model.Vote, tolerance float64) ConsensusResult {
	modeCounts := map[float64]int{}
	type numericVote struct {
		participant string
		value       float64
	}
	var numeric []numericVote
	for _, v := range votes {
		n, ok := parseNumeric(v.Value)
		if !ok {
			continue
		}
		numeric = append(numeric, numericVote{v.ParticipantID, n})
		modeCounts[n]++
	}
	if len(numeric) == 0 {
		return ConsensusResult{}
	}
	m := mode(modeCounts)
	res := ConsensusResult{Value: m}
	agree := 0
	for _, nv := range numeric {
		if math.Abs(nv.value-m) <= tolerance {
			agree++
		} else {
			res.Outliers = append(res.Outliers, nv.participant)
		}
	}
	res.Agreement = float64(agree) / float64(len(numeric))
	res.Reached = agree > len(numeric)/2
	return res
}

// PerParticipant counts votes contributed by each participant.
func PerParticipant(votes []model.Vote) map[string]int {
	out := map[string]int{}
	for _, v := range votes {
		out[v.ParticipantID]++
	}
	return out
}

func parseNumeric(s string) (float64, bool) {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// mode picks the most frequent value; ties break toward the smaller value so
// repeated calls agree.
func mode(counts map[float64]int) float64 {
	best := math.Inf(1)
	bestCount := -1
	for v, n := range counts {
		if n > bestCount || (n == bestCount && v < best) {
			best, bestCount = v, n
		}
	}
	return best
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
