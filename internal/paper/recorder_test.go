package paper

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
)

func TestJSONLRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.jsonl")

	recorder, err := NewJSONLRecorder(path)
	if err != nil {
		t.Fatalf("NewJSONLRecorder error: %v", err)
	}
	group := 2
	recorder.Record(Record{
		Kind: "entry", Mint: "mint", Ts: 1000,
		Price: 1.5e-7, PoolSol: 150, Simulated: true, Stake: 0.2, Group: &group,
	})
	recorder.Record(Record{
		Kind: "exit", Mint: "mint", Ts: 2000,
		Price: 1.8e-7, PoolSol: 180, Simulated: true, Reason: "profit take", RatePct: 20,
	})
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open recorded file: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		t.Fatalf("expected first line")
	}
	var entry Record
	if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry.Kind != "entry" || entry.Group == nil || *entry.Group != 2 {
		t.Fatalf("unexpected entry record: %+v", entry)
	}

	if !scanner.Scan() {
		t.Fatalf("expected second line")
	}
	var exit Record
	if err := json.Unmarshal(scanner.Bytes(), &exit); err != nil {
		t.Fatalf("decode exit: %v", err)
	}
	if exit.Reason != "profit take" || exit.RatePct != 20 {
		t.Fatalf("unexpected exit record: %+v", exit)
	}
}

func TestRecordAfterCloseIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.jsonl")
	recorder, err := NewJSONLRecorder(path)
	if err != nil {
		t.Fatalf("NewJSONLRecorder error: %v", err)
	}
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	recorder.Record(Record{Kind: "entry"}) // must not panic
	if err := recorder.Close(); err != nil {
		t.Fatalf("double close must be clean: %v", err)
	}
}
