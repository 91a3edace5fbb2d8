// Package keyword extracts lowercase keyword sets from policy text and
// structured content, and compares them with Jaccard similarity.
package keyword

import "strings"

// Unlimited tells FromContent to follow nested maps at any depth.
const Unlimited = -1

// Set is an unordered set of lowercase keywords.
type Set map[string]struct{}

// NewSet returns a set holding the given words.
func NewSet(words ...string) Set {
	s := make(Set, len(words))
	s.Add(words...)
	return s
}

// Add inserts words into the set.
func (s Set) Add(words ...string) {
	for _, w := range words {
		s[w] = struct{}{}
	}
}

// Has reports whether w is a member of the set.
func (s Set) Has(w string) bool {
	_, ok := s[w]
	return ok
}

// Mentions reports whether term is a member of the set or a substring of
// any member. An empty term never matches.
func (s Set) Mentions(term string) bool {
	if term == "" {
		return false
	}
	if s.Has(term) {
		return true
	}
	for w := range s {
		if strings.Contains(w, term) {
			return true
		}
	}
	return false
}

// Merge adds every member of other to s.
func (s Set) Merge(other Set) {
	for w := range other {
		s[w] = struct{}{}
	}
}

// Tokenize lowercases text and splits it on runs of whitespace.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// FromContent collects the tokens of every string value and every string
// element of list values in content. Nested maps are followed up to maxDepth
// levels below content; pass Unlimited to follow them all. Values of any
// other type, including maps inside lists, are ignored.
func FromContent(content map[string]any, maxDepth int) Set {
	s := make(Set)
	collect(s, content, maxDepth)
	return s
}

func collect(s Set, content map[string]any, depth int) {
	for _, v := range content {
		switch val := v.(type) {
		case string:
			s.Add(Tokenize(val)...)
		case []any:
			for _, item := range val {
				if str, ok := item.(string); ok {
					s.Add(Tokenize(str)...)
				}
			}
		case []string:
			for _, str := range val {
				s.Add(Tokenize(str)...)
			}
		case map[string]any:
			if depth != 0 {
				collect(s, val, depth-1)
			}
		}
	}
}

// FromPolicy builds the keyword set the graph builder compares policies by:
// the title's tokens plus content keywords with nested maps followed one
// level deep.
func FromPolicy(title string, content map[string]any) Set {
	s := FromContent(content, 1)
	s.Add(Tokenize(title)...)
	return s
}

// Jaccard returns |a∩b| / |a∪b|. It is 0 when either set is empty.
func Jaccard(a, b Set) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for w := range small {
		if large.Has(w) {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
