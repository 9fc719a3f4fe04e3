package blocker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/fakeyudi/pomosync/internal/atomicfile"
)

// ErrDuplicateRuleID is returned when an update would leave two rules with
// the same ID.
var ErrDuplicateRuleID = errors.New("duplicate rule id")

// RuleStore is the enforcement backend. UpdateRules removes removeIDs and
// then adds add as one operation; it fails without changing anything if the
// result would contain a duplicate ID.
type RuleStore interface {
	Rules(ctx context.Context) ([]Rule, error)
	UpdateRules(ctx context.Context, removeIDs []int, add []Rule) error
}

// FileRuleStore keeps the rule set in a JSON file, replaced atomically on
// every update. Anything that enforces blocking (a proxy, a hosts-file
// generator, a browser policy exporter) reads that file.
type FileRuleStore struct {
	path string
	mu   sync.Mutex
}

// NewFileRuleStore returns a store backed by path.
func NewFileRuleStore(path string) *FileRuleStore {
	return &FileRuleStore{path: path}
}

// Rules returns the current rule set. A missing file is an empty set.
func (s *FileRuleStore) Rules(ctx context.Context) ([]Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

// UpdateRules applies one remove-then-add update.
func (s *FileRuleStore) UpdateRules(ctx context.Context, removeIDs []int, add []Rule) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.read()
	if err != nil {
		return err
	}
	remove := make(map[int]bool, len(removeIDs))
	for _, id := range removeIDs {
		remove[id] = true
	}
	next := make([]Rule, 0, len(current)+len(add))
	ids := make(map[int]bool, len(current)+len(add))
	for _, r := range current {
		if remove[r.ID] {
			continue
		}
		next = append(next, r)
		ids[r.ID] = true
	}
	for _, r := range add {
		if ids[r.ID] {
			return fmt.Errorf("rule %d: %w", r.ID, ErrDuplicateRuleID)
		}
		ids[r.ID] = true
		next = append(next, r)
	}
	return s.write(next)
}

func (s *FileRuleStore) read() ([]Rule, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Rule{}, nil
		}
		return nil, fmt.Errorf("reading rules: %w", err)
	}
	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	return rules, nil
}

func (s *FileRuleStore) write(rules []Rule) error {
	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding rules: %w", err)
	}
	return atomicfile.Write(s.path, data)
}
