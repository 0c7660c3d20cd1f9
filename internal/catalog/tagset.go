// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// MaxSelectedTags is the number of tags a customer may select per request.
const MaxSelectedTags = 3

// ErrTooManyTags is returned by TagSet.Add when the set is already full.
var ErrTooManyTags = errors.New("too many tags selected")

// DefaultTags is the selectable tag vocabulary offered to customers.
var DefaultTags = []string{
	"#달콤한", "#짭짤한", "#고소한", "#바삭한", "#촉촉한",
	"#든든한", "#가벼운", "#초코", "#과일",
}

// PopularTag marks best-selling items.
const PopularTag = "#인기"

// TagSet is an insertion-ordered set of at most MaxSelectedTags tags.
// The zero value is an empty set ready for use.
type TagSet struct {
	tags []string
}

// NewTagSet builds a set from tags, ignoring blanks and duplicates.
// It fails with ErrTooManyTags when more than MaxSelectedTags distinct tags are given.
func NewTagSet(tags ...string) (TagSet, error) {
	var s TagSet
	for _, tag := range tags {
		if err := s.Add(tag); err != nil {
			return TagSet{}, err
		}
	}
	return s, nil
}

// Add inserts tag. Adding a tag already present, or a blank tag, is a no-op.
// A fourth distinct tag is rejected and leaves the set unchanged.
func (s *TagSet) Add(tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" || s.Contains(tag) {
		return nil
	}
	if len(s.tags) >= MaxSelectedTags {
		return fmt.Errorf("%w: %q would exceed %d", ErrTooManyTags, tag, MaxSelectedTags)
	}
	s.tags = append(s.tags, tag)
	return nil
}

// Remove deletes tag if present.
func (s *TagSet) Remove(tag string) {
	s.tags = slices.DeleteFunc(s.tags, func(t string) bool { return t == tag })
}

// Contains reports whether tag is in the set.
func (s TagSet) Contains(tag string) bool {
	return slices.Contains(s.tags, tag)
}

// Len returns the number of tags in the set.
func (s TagSet) Len() int {
	return len(s.tags)
}

// Slice returns the tags in insertion order. The result is a copy.
func (s TagSet) Slice() []string {
	return slices.Clone(s.tags)
}

// MatchCount returns how many of the set's tags the item carries.
//
//nolint:gocritic // Item is a small value type passed by value throughout
func (s TagSet) MatchCount(it Item) int {
	n := 0
	for _, tag := range s.tags {
		if it.HasTag(tag) {
			n++
		}
	}
	return n
}
