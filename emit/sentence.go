package emit

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Param is one parameter of an emitted say-phrase.
type Param struct {
	Local    string // food-1
	Kind     string // food
	Position int    // 1-based
}

// Sentence is an emitted predicate sentence parsed back into its parts.
type Sentence struct {
	Predicate string
	Params    []Param
	Text      string // Inform7 text with [local] substitutions
}

var (
	sentenceRe = regexp.MustCompile(`^To say the (\S+) sentence(?: for (.+?))?: say "(.*)"\.$`)
	paramRe    = regexp.MustCompile(`^\(([\pL\pN-]+)-(\d+) - an? ([^)]+)\)$`)
	substRe    = regexp.MustCompile(`\[([\pL\pN-]+-\d+)\]`)
)

// ParseSentence parses a line produced for a predicate sentence.
func ParseSentence(line string) (Sentence, error) {
	m := sentenceRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return Sentence{}, fmt.Errorf("not a predicate sentence: %q", line)
	}
	s := Sentence{Predicate: m[1], Text: m[3]}
	if m[2] == "" {
		return s, nil
	}
	for _, part := range strings.Split(m[2], " and ") {
		pm := paramRe.FindStringSubmatch(part)
		if pm == nil {
			return Sentence{}, fmt.Errorf("bad parameter %q in %q", part, line)
		}
		pos, _ := strconv.Atoi(pm[2])
		s.Params = append(s.Params, Param{
			Local:    pm[1] + "-" + pm[2],
			Kind:     pm[3],
			Position: pos,
		})
	}
	return s, nil
}

// Slots returns the locals substituted into the text, in order of
// appearance.
func (s Sentence) Slots() []string {
	var out []string
	for _, m := range substRe.FindAllStringSubmatch(s.Text, -1) {
		out = append(out, m[1])
	}
	return out
}

// Fill substitutes values into a template's {slot}s. Slots without a value
// are left as written.
func Fill(template string, values map[string]string) string {
	return slotRe.ReplaceAllStringFunc(template, func(slot string) string {
		if v, ok := values[slot[1:len(slot)-1]]; ok {
			return v
		}
		return slot
	})
}
