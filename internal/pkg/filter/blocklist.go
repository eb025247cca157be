package filter

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultCategory labels blocklist hits whose entry carries no category.
const DefaultCategory = "blocklist"

// Entry is one blocked term.
type Entry struct {
	Word     string
	Category string
}

// Match is a blocked term found in a text. Offset counts runes of the
// normalized text.
type Match struct {
	Word     string
	Category string
	Offset   int
}

type state struct {
	next map[rune]int
	fail int
	out  []int // indices into Blocklist.entries
}

// Blocklist is an Aho-Corasick automaton over normalized terms. It is safe for
// concurrent use and can be rebuilt in place with Reload.
type Blocklist struct {
	mu      sync.RWMutex
	states  []state
	entries []Entry
	lengths []int
}

// NewBlocklist builds a blocklist. Entries that normalize to nothing are ignored.
func NewBlocklist(entries []Entry) *Blocklist {
	b := &Blocklist{}
	b.Reload(entries)
	return b
}

// Words turns a plain word list into entries of DefaultCategory.
func Words(words []string) []Entry {
	out := make([]Entry, 0, len(words))
	for _, w := range words {
		out = append(out, Entry{Word: w, Category: DefaultCategory})
	}
	return out
}

// Reload replaces the term set.
func (b *Blocklist) Reload(entries []Entry) {
	states := []state{{next: map[rune]int{}}}
	kept := make([]Entry, 0, len(entries))
	lengths := make([]int, 0, len(entries))

	for _, e := range entries {
		word := []rune(Normalize(strings.TrimSpace(e.Word)))
		if len(word) == 0 {
			continue
		}
		if e.Category == "" {
			e.Category = DefaultCategory
		}
		cur := 0
		for _, r := range word {
			nxt, ok := states[cur].next[r]
			if !ok {
				states = append(states, state{next: map[rune]int{}})
				nxt = len(states) - 1
				states[cur].next[r] = nxt
			}
			cur = nxt
		}
		states[cur].out = append(states[cur].out, len(kept))
		kept = append(kept, e)
		lengths = append(lengths, len(word))
	}

	// breadth-first fail links
	queue := make([]int, 0, len(states))
	for _, s := range states[0].next {
		states[s].fail = 0
		queue = append(queue, s)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for r, child := range states[cur].next {
			queue = append(queue, child)
			f := states[cur].fail
			for f != 0 {
				if _, ok := states[f].next[r]; ok {
					break
				}
				f = states[f].fail
			}
			if nxt, ok := states[f].next[r]; ok && nxt != child {
				states[child].fail = nxt
			} else {
				states[child].fail = 0
			}
			states[child].out = append(states[child].out, states[states[child].fail].out...)
		}
	}

	b.mu.Lock()
	b.states, b.entries, b.lengths = states, kept, lengths
	b.mu.Unlock()
}

// Len returns the number of terms.
func (b *Blocklist) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

func (b *Blocklist) step(cur int, r rune) int {
	for {
		if nxt, ok := b.states[cur].next[r]; ok {
			return nxt
		}
		if cur == 0 {
			return 0
		}
		cur = b.states[cur].fail
	}
}

// Find returns every occurrence of every term in text.
func (b *Blocklist) Find(text string) []Match {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var matches []Match
	if len(b.entries) == 0 {
		return matches
	}
	cur := 0
	pos := 0
	for _, r := range Normalize(text) {
		cur = b.step(cur, r)
		for _, idx := range b.states[cur].out {
			e := b.entries[idx]
			matches = append(matches, Match{
				Word:     e.Word,
				Category: e.Category,
				Offset:   pos - b.lengths[idx] + 1,
			})
		}
		pos++
	}
	return matches
}

// Contains reports whether any term occurs in text. It stops at the first hit.
func (b *Blocklist) Contains(text string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.entries) == 0 {
		return false
	}
	cur := 0
	for _, r := range Normalize(text) {
		cur = b.step(cur, r)
		if len(b.states[cur].out) > 0 {
			return true
		}
	}
	return false
}

// Categories returns the sorted distinct categories matched in text.
func (b *Blocklist) Categories(text string) []string {
	seen := map[string]struct{}{}
	for _, m := range b.Find(text) {
		seen[m.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

var leet = map[rune]rune{
	'0': 'o',
	'1': 'i',
	'3': 'e',
	'4': 'a',
	'5': 's',
	'7': 't',
	'8': 'b',
	'@': 'a',
	'$': 's',
}

// Normalize folds text for matching: diacritics stripped, lowercased and
// common leetspeak substitutions undone.
func Normalize(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	var sb strings.Builder
	sb.Grow(len(folded))
	for _, r := range folded {
		r = unicode.ToLower(r)
		if sub, ok := leet[r]; ok {
			r = sub
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
