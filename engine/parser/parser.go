// Package parser converts command strings into rule intents using the
// command phrases declared in inform7 mappings.
// Intentionally dumb: no NLP, just pattern matching.
package parser

import (
	"regexp"
	"sort"
	"strings"

	"github.com/nathoo/ifkit/engine/model"
)

var verbAliases = map[string]string{
	// Eat / Drink
	"consume": "eat",
	"devour":  "eat",
	"bite":    "eat",
	"sip":     "drink",
	"quaff":   "drink",

	// Take / Get
	"get":   "take",
	"grab":  "take",
	"carry": "take",

	// Put / Insert
	"insert": "put",
	"place":  "put",
	"set":    "put",

	// Drop
	"discard": "drop",

	// Look / Examine
	"x":       "examine",
	"inspect": "examine",

	// Open / Close
	"shut": "close",
}

var articles = map[string]bool{
	"the": true, "a": true, "an": true, "some": true,
}

var slotRe = regexp.MustCompile(`^\{([\pL_][\pL\pN_']*)\}$`)

// element is one token of a command phrase: a literal word or a slot.
type element struct {
	word string
	slot string
}

// Pattern is the grammar of one rule's command.
type Pattern struct {
	Rule   string
	Owner  string
	Phrase string
	elems  []element
}

// Slots returns the variables named by the phrase, in order.
func (p Pattern) Slots() []string {
	var out []string
	for _, e := range p.elems {
		if e.slot != "" {
			out = append(out, e.slot)
		}
	}
	return out
}

// Grammar is the set of command patterns of a model.
type Grammar struct {
	patterns []Pattern
}

// Intent is one way to read an input: the rule it names and the noun
// phrase typed for each slot.
type Intent struct {
	Rule  string
	Owner string
	Nouns map[string]string // slot variable -> noun phrase
}

// NewGrammar collects the command of every rule declared in m. Patterns are
// ordered by rule name, then owning type.
func NewGrammar(m *model.Model) *Grammar {
	g := &Grammar{}
	for _, t := range m.Types() {
		mp := t.Decl().Mapping
		if mp == nil {
			continue
		}
		for _, r := range t.Decl().Rules {
			c, ok := mp.Commands[r.Name]
			if !ok {
				continue
			}
			g.patterns = append(g.patterns, Pattern{
				Rule:   r.Name,
				Owner:  t.Name,
				Phrase: c.Phrase,
				elems:  compilePhrase(c.Phrase),
			})
		}
	}
	sort.SliceStable(g.patterns, func(i, j int) bool {
		if g.patterns[i].Rule != g.patterns[j].Rule {
			return g.patterns[i].Rule < g.patterns[j].Rule
		}
		return g.patterns[i].Owner < g.patterns[j].Owner
	})
	return g
}

// Patterns returns the grammar's patterns.
func (g *Grammar) Patterns() []Pattern {
	out := make([]Pattern, len(g.patterns))
	copy(out, g.patterns)
	return out
}

// Pattern returns the pattern for rule as declared by owner.
func (g *Grammar) Pattern(rule, owner string) (Pattern, bool) {
	for _, p := range g.patterns {
		if p.Rule == rule && p.Owner == owner {
			return p, true
		}
	}
	return Pattern{}, false
}

// compilePhrase splits a phrase into elements. Literal words are lowercased
// to match Words; slot names are variables and keep their case.
func compilePhrase(phrase string) []element {
	var out []element
	for _, w := range strings.Fields(phrase) {
		if m := slotRe.FindStringSubmatch(w); m != nil {
			out = append(out, element{slot: m[1]})
			continue
		}
		w = strings.ToLower(w)
		if articles[w] {
			continue
		}
		out = append(out, element{word: w})
	}
	return out
}

// Parse returns every intent the input can be read as, in grammar order.
// The first word is mapped through the verb aliases and articles are dropped.
func (g *Grammar) Parse(input string) []Intent {
	words := Words(input)
	if len(words) == 0 {
		return nil
	}
	if alias, ok := verbAliases[words[0]]; ok {
		words[0] = alias
	}

	var out []Intent
	for _, p := range g.patterns {
		nouns := map[string]string{}
		if match(p.elems, words, nouns) {
			out = append(out, Intent{Rule: p.Rule, Owner: p.Owner, Nouns: nouns})
		}
	}
	return out
}

// Words lowercases input, splits it on whitespace, and strips articles.
func Words(input string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(input)) {
		if !articles[w] {
			out = append(out, w)
		}
	}
	return out
}

// match consumes words against elems. A slot takes one or more words, as
// few as let the rest of the pattern match.
func match(elems []element, words []string, nouns map[string]string) bool {
	if len(elems) == 0 {
		return len(words) == 0
	}
	e := elems[0]
	if e.slot == "" {
		if len(words) == 0 || words[0] != e.word {
			return false
		}
		return match(elems[1:], words[1:], nouns)
	}
	for n := 1; n <= len(words); n++ {
		noun := strings.Join(words[:n], " ")
		if prev, ok := nouns[e.slot]; ok && prev != noun {
			continue
		}
		_, had := nouns[e.slot]
		nouns[e.slot] = noun
		if match(elems[1:], words[n:], nouns) {
			return true
		}
		if !had {
			delete(nouns, e.slot)
		}
	}
	return false
}

// Noun normalizes an instance id to the noun phrase a player would type:
// player_inventory becomes "player inventory".
func Noun(id string) string {
	return strings.ToLower(strings.ReplaceAll(id, "_", " "))
}
