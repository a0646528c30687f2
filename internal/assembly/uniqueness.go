package assembly

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/stemsi/exstem-assembly/internal/model"
)

// Fingerprint derives the structural dedup key of a question from its
// normalized tokens plus topic, type, level and knowledge dimension.
func Fingerprint(q *model.Question) string {
	toks := Tokenize(q.Text)
	sort.Strings(toks)
	toks = dedupSorted(toks)

	h := sha256.New()
	h.Write([]byte(strings.Join(toks, " ")))
	for _, part := range []string{
		strings.ToLower(strings.TrimSpace(q.Topic)),
		string(q.Type),
		string(q.CognitiveLevel),
		string(q.KnowledgeDimension),
	} {
		h.Write([]byte{'|'})
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func dedupSorted(s []string) []string {
	if len(s) < 2 {
		return s
	}
	out := s[:1]
	for _, v := range s[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// UniquenessStore is the run-scoped registry of accepted questions.
// It only grows and is dropped with the run.
type UniquenessStore struct {
	tau          float64
	fingerprints map[string]struct{}
	texts        []tokenSet
}

// NewUniquenessStore creates an empty store using tau for text overlap.
func NewUniquenessStore(tau float64) *UniquenessStore {
	return &UniquenessStore{
		tau:          tau,
		fingerprints: make(map[string]struct{}),
	}
}

// Check reports whether q may be accepted. On a text match it also returns
// the offending overlap; a fingerprint match reports similarity 1.
func (u *UniquenessStore) Check(q *model.Question) (bool, float64) {
	fp := q.Fingerprint
	if fp == "" {
		fp = Fingerprint(q)
	}
	if _, seen := u.fingerprints[fp]; seen {
		return false, 1
	}
	set := newTokenSet(q.Text)
	for _, prev := range u.texts {
		if sim := jaccard(set, prev); sim > u.tau {
			return false, sim
		}
	}
	return true, 0
}

// Register records q as accepted, filling its fingerprint if missing.
func (u *UniquenessStore) Register(q *model.Question) {
	if q.Fingerprint == "" {
		q.Fingerprint = Fingerprint(q)
	}
	u.fingerprints[q.Fingerprint] = struct{}{}
	u.texts = append(u.texts, newTokenSet(q.Text))
}

// Len is the number of registered questions.
func (u *UniquenessStore) Len() int {
	return len(u.texts)
}
