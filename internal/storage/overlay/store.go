// Package overlay is a file-backed side table of manager decisions, usable
// instead of direct store writes in the simplest deployment mode. The whole
// document is rewritten on every update; each write is atomic (temp file +
// rename) but concurrent processes racing on the same file are not
// coordinated — last write wins. Acceptable for the single-admin usage model.
package overlay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"reviewdash/internal/domain"
)

type Store struct {
	mu        sync.Mutex
	path      string
	decisions map[int64]domain.Decision
}

// Open loads the decision document at path, creating parent directories as
// needed. A missing file is an empty overlay, not an error.
func Open(path string) (*Store, error) {
	s := &Store{path: path, decisions: map[int64]domain.Decision{}}
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("overlay dir: %w", err)
			}
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read overlay: %w", err)
	}
	var doc []domain.Decision
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode overlay: %w", err)
	}
	for _, d := range doc {
		s.decisions[d.ReviewID] = d
	}
	return s, nil
}

// RecordDecision upserts a decision. Last write wins; there is no optimistic
// concurrency check.
func (s *Store) RecordDecision(reviewID int64, approved bool, notes, updatedBy *string) (domain.Decision, error) {
	if reviewID <= 0 {
		return domain.Decision{}, fmt.Errorf("review id must be positive: %w", domain.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	d := domain.Decision{
		ReviewID:     reviewID,
		Approved:     approved,
		ManagerNotes: notes,
		UpdatedBy:    updatedBy,
		UpdatedAt:    time.Now().UTC(),
	}
	s.decisions[reviewID] = d
	if err := s.flushLocked(); err != nil {
		return domain.Decision{}, err
	}
	return d, nil
}

// Decision returns the recorded verdict for a review, if any.
func (s *Store) Decision(reviewID int64) (domain.Decision, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decisions[reviewID]
	return d, ok
}

// ApplyDecisions overrides the approval fields of every review that has a
// recorded decision. The input is never mutated; the result is a fresh slice.
func (s *Store) ApplyDecisions(reviews []domain.Review) []domain.Review {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Review, len(reviews))
	copy(out, reviews)
	for i := range out {
		d, ok := s.decisions[out[i].ID]
		if !ok {
			continue
		}
		out[i].Approved = d.Approved
		out[i].ManagerNotes = d.ManagerNotes
		out[i].UpdatedBy = d.UpdatedBy
		out[i].UpdatedAt = d.UpdatedAt
	}
	return out
}

// flushLocked rewrites the whole document. Temp file + rename keeps each
// write atomic on the same filesystem.
func (s *Store) flushLocked() error {
	doc := make([]domain.Decision, 0, len(s.decisions))
	for _, d := range s.decisions {
		doc = append(doc, d)
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode overlay: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write overlay: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace overlay: %w", err)
	}
	return nil
}
