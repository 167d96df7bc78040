package outcome

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"pumpwatch/internal/feature"
)

// Bucket is a half-open value range [Low, High) with the profit statistics
// observed for entries whose feature fell inside it.
type Bucket struct {
	Low       float64 `json:"low"`
	High      float64 `json:"high"`
	AvgProfit float64 `json:"avg_profit_rate"`
	WinRate   float64 `json:"win_rate"`
}

// Condition binds a named snapshot feature to its qualifying buckets. The
// condition matches when the feature is defined and falls into any bucket.
type Condition struct {
	Feature string   `json:"feature"`
	Buckets []Bucket `json:"buckets"`
}

// Group is one ordered row of the payout table: all conditions must match.
type Group struct {
	Conditions []Condition `json:"conditions"`
}

// Table is the ordered payout decision table. Evaluation is first-match-wins
// over the groups.
type Table struct {
	Groups []Group `json:"groups"`
}

// LoadTable reads a payout table from a JSON file.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payout table: %w", err)
	}
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode payout table: %w", err)
	}
	for gi, g := range t.Groups {
		if len(g.Conditions) == 0 {
			return nil, fmt.Errorf("payout table: group %d has no conditions", gi)
		}
		for _, c := range g.Conditions {
			if len(c.Buckets) == 0 {
				return nil, fmt.Errorf("payout table: group %d condition %q has no buckets", gi, c.Feature)
			}
		}
	}
	return &t, nil
}

// Match finds the first group whose conditions all match the snapshot and
// writes the group index and expected payout onto it. A nil table matches
// nothing.
func (t *Table) Match(snap *feature.Snapshot) bool {
	if t == nil {
		return false
	}
	for gi, g := range t.Groups {
		total := 0.0
		matched := true
		for _, c := range g.Conditions {
			v, ok := featureValue(snap, c.Feature)
			if !ok {
				matched = false
				break
			}
			b, ok := matchBucket(c.Buckets, v)
			if !ok {
				matched = false
				break
			}
			total += b.AvgProfit
		}
		if !matched {
			continue
		}
		idx := gi
		payout := total / float64(len(g.Conditions))
		snap.MatchedGroup = &idx
		snap.MatchedPayout = &payout
		return true
	}
	return false
}

func matchBucket(buckets []Bucket, v float64) (Bucket, bool) {
	for _, b := range buckets {
		if v >= b.Low && v < b.High {
			return b, true
		}
	}
	return Bucket{}, false
}

// featureValue resolves a table feature name against the snapshot. Undefined
// optional features report ok=false, which fails the condition rather than
// matching a zero.
func featureValue(s *feature.Snapshot, name string) (float64, bool) {
	switch name {
	case "gap_ms":
		return s.GapMs, true
	case "pool_sol":
		return s.PoolSol, true
	case "amount":
		return s.Amount, true
	case "filtered_sum":
		return s.FilteredSum, true
	case "price_cv":
		return optional(s.PriceCV)
	case "gap_cv":
		return optional(s.GapCV)
	case "amount_cv":
		return optional(s.AmountCV)
	case "price_ratio":
		return optional(s.PriceRatio)
	case "large_ratio":
		return optional(s.LargeRatio)
	case "small_ratio":
		return optional(s.SmallRatio)
	case "buy_count":
		return float64(s.BuyCount), true
	case "sell_count":
		return float64(s.SellCount), true
	case "consec_buys":
		return float64(s.ConsecBuys), true
	case "consec_sells":
		return float64(s.ConsecSells), true
	case "recent_count":
		return float64(s.RecentCount), true
	case "avg_gap_ms":
		return optional(s.AvgGapMs)
	case "window_sum":
		return optional(s.WindowSum)
	default:
		return 0, false
	}
}

func optional(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}
