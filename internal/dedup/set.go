// Package dedup remembers which (number, sender, message) triples were
// already handed to the SMS provider so re-running a list does not resend.
package dedup

import (
	"sort"
	"strings"
)

// Set is an unordered collection of dedup keys.
type Set map[string]struct{}

// NewSet builds a set from keys.
func NewSet(keys ...string) Set {
	s := make(Set, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

func (s Set) Has(key string) bool {
	_, ok := s[key]
	return ok
}

func (s Set) Add(key string) {
	s[key] = struct{}{}
}

func (s Set) Len() int { return len(s) }

// Merge adds every key of other to s.
func (s Set) Merge(other Set) {
	for k := range other {
		s[k] = struct{}{}
	}
}

// Keys returns the keys in sorted order.
func (s Set) Keys() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// KeyBuilder derives dedup keys. When IncludeSender is set and the sender is
// non-empty the key is number|sender|message, otherwise number|message.
type KeyBuilder struct {
	IncludeSender bool
}

// Key joins the parts with "|". number must already be normalized.
func (b KeyBuilder) Key(number, sender, message string) string {
	if b.IncludeSender && sender != "" {
		return strings.Join([]string{number, sender, message}, "|")
	}
	return number + "|" + message
}
