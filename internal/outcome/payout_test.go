package outcome

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"pumpwatch/internal/feature"
)

func tableFixture(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payouts.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

const twoGroupTable = `{
  "groups": [
    {
      "conditions": [
        {"feature": "gap_ms", "buckets": [{"low": 0, "high": 200, "avg_profit_rate": 0.30, "win_rate": 0.6}]},
        {"feature": "buy_count", "buckets": [{"low": 10, "high": 1000, "avg_profit_rate": 0.10, "win_rate": 0.5}]}
      ]
    },
    {
      "conditions": [
        {"feature": "gap_ms", "buckets": [{"low": 0, "high": 1000, "avg_profit_rate": 0.05, "win_rate": 0.4}]}
      ]
    }
  ]
}`

func TestLoadTable(t *testing.T) {
	tbl, err := LoadTable(tableFixture(t, twoGroupTable))
	if err != nil {
		t.Fatalf("LoadTable returned error: %v", err)
	}
	if len(tbl.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(tbl.Groups))
	}
}

func TestLoadTableRejectsEmptyConditions(t *testing.T) {
	if _, err := LoadTable(tableFixture(t, `{"groups":[{"conditions":[]}]}`)); err == nil {
		t.Fatalf("expected error for group without conditions")
	}
}

func TestMatchFirstGroupWins(t *testing.T) {
	tbl, err := LoadTable(tableFixture(t, twoGroupTable))
	if err != nil {
		t.Fatalf("LoadTable returned error: %v", err)
	}

	snap := &feature.Snapshot{GapMs: 100, BuyCount: 15}
	if !tbl.Match(snap) {
		t.Fatalf("expected a match")
	}
	if snap.MatchedGroup == nil || *snap.MatchedGroup != 0 {
		t.Fatalf("expected group 0, got %v", snap.MatchedGroup)
	}
	if snap.MatchedPayout == nil || math.Abs(*snap.MatchedPayout-0.20) > 1e-12 {
		t.Fatalf("expected payout 0.20, got %v", snap.MatchedPayout)
	}
}

func TestMatchFallsThroughToLaterGroup(t *testing.T) {
	tbl, err := LoadTable(tableFixture(t, twoGroupTable))
	if err != nil {
		t.Fatalf("LoadTable returned error: %v", err)
	}

	// Buy count misses group 0's second condition; gap still matches group 1.
	snap := &feature.Snapshot{GapMs: 500, BuyCount: 2}
	if !tbl.Match(snap) {
		t.Fatalf("expected fall-through match")
	}
	if *snap.MatchedGroup != 1 {
		t.Fatalf("expected group 1, got %d", *snap.MatchedGroup)
	}
}

func TestUndefinedFeatureFailsTheCondition(t *testing.T) {
	tbl, err := LoadTable(tableFixture(t, `{
  "groups": [{"conditions": [
    {"feature": "price_cv", "buckets": [{"low": 0, "high": 10, "avg_profit_rate": 0.1}]}
  ]}]}`))
	if err != nil {
		t.Fatalf("LoadTable returned error: %v", err)
	}

	snap := &feature.Snapshot{} // price cv undefined
	if tbl.Match(snap) {
		t.Fatalf("undefined feature must not match a zero bucket")
	}

	cv := 1.5
	snap.PriceCV = &cv
	if !tbl.Match(snap) {
		t.Fatalf("defined feature inside the bucket must match")
	}
}

func TestNilTableMatchesNothing(t *testing.T) {
	var tbl *Table
	if tbl.Match(&feature.Snapshot{}) {
		t.Fatalf("nil table must match nothing")
	}
}
