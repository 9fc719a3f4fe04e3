package blocker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/fakeyudi/pomosync/internal/state"
)

func TestFileRuleStoreReplace(t *testing.T) {
	ctx := context.Background()
	s := NewFileRuleStore(filepath.Join(t.TempDir(), "rules.json"))

	rules, err := s.Rules(ctx)
	if err != nil || len(rules) != 0 {
		t.Fatalf("Rules on missing file = %v, %v; want empty, nil", rules, err)
	}

	first := BuildRules(Request{Blocklist: []string{"a.com", "b.com"}, Enabled: true, Mode: state.BlockAlways}, false)
	if err := s.UpdateRules(ctx, nil, first); err != nil {
		t.Fatalf("UpdateRules: %v", err)
	}
	second := BuildRules(Request{Blocklist: []string{"c.com"}, Enabled: true, Mode: state.BlockAlways}, false)
	if err := s.UpdateRules(ctx, []int{1, 2}, second); err != nil {
		t.Fatalf("UpdateRules replace: %v", err)
	}

	rules, err = s.Rules(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 1 || rules[0].Condition.URLFilter != "||c.com" {
		t.Errorf("rules = %+v, want only c.com", rules)
	}
}

func TestFileRuleStoreRejectsDuplicateIDs(t *testing.T) {
	ctx := context.Background()
	s := NewFileRuleStore(filepath.Join(t.TempDir(), "rules.json"))
	rules := BuildRules(Request{Blocklist: []string{"a.com"}, Enabled: true, Mode: state.BlockAlways}, false)
	if err := s.UpdateRules(ctx, nil, rules); err != nil {
		t.Fatal(err)
	}

	// Two interleaved rewrites that both read the empty set before either
	// wrote would each try to add ID 1 without removing it.
	err := s.UpdateRules(ctx, nil, rules)
	if !errors.Is(err, ErrDuplicateRuleID) {
		t.Fatalf("UpdateRules = %v, want ErrDuplicateRuleID", err)
	}
	got, _ := s.Rules(ctx)
	if len(got) != 1 {
		t.Errorf("failed update changed the store: %d rules", len(got))
	}
}

func TestSchedulerOverFileRuleStore(t *testing.T) {
	store := NewFileRuleStore(filepath.Join(t.TempDir(), "rules.json"))
	s := startScheduler(t, store)

	var last <-chan error
	for _, l := range [][]string{{"a.com", "b.com"}, {"c.com", "d.com", "e.com"}, {"f.com"}} {
		last = s.ScheduleUpdate(Request{Blocklist: l, Enabled: true, Mode: state.BlockAlways})
	}
	if err := waitDone(t, last); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	rules, err := store.Rules(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 1 || rules[0].ID != 1 || rules[0].Condition.URLFilter != "||f.com" {
		t.Errorf("rules = %+v, want a single f.com rule", rules)
	}
}
