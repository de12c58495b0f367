// Package engine provides the play Session: it owns the world state, applies
// rules atomically with constraint rollback, and answers runtime queries.
package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nathoo/ifkit/emit"
	"github.com/nathoo/ifkit/engine/constraints"
	"github.com/nathoo/ifkit/engine/events"
	"github.com/nathoo/ifkit/engine/model"
	"github.com/nathoo/ifkit/engine/parser"
	"github.com/nathoo/ifkit/engine/rules"
	"github.com/nathoo/ifkit/engine/state"
	"github.com/nathoo/ifkit/metrics"
	"github.com/nathoo/ifkit/types"
)

// Runtime errors. These report caller mistakes; a rule that does not fire or
// is rolled back is an Outcome, not an error.
var (
	ErrUnknownRule     = errors.New("unknown rule")
	ErrUnknownType     = errors.New("unknown type")
	ErrUnknownInstance = errors.New("unknown instance")
	ErrBindingType     = errors.New("binding has the wrong type")
	ErrInvalidFact     = errors.New("invalid fact")
	ErrIllegalWorld    = errors.New("world violates constraints")
)

// Outcome is the result of applying a rule.
type Outcome int

const (
	// NotFired: the guard did not hold; the world is unchanged.
	NotFired Outcome = iota
	// Applied: the effect was committed.
	Applied
	// Violated: the effect broke a constraint and was rolled back.
	Violated
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Violated:
		return "violated"
	default:
		return "not_fired"
	}
}

// Result describes one rule application.
type Result struct {
	Outcome    Outcome
	Rule       string
	Owner      string
	Bindings   types.Bindings
	Added      []types.Fact // staged changes; committed only when Applied
	Removed    []types.Fact
	Violations []constraints.Violation
}

// ViolationNames returns the distinct violated constraint names.
func (r Result) ViolationNames() []string {
	return constraints.Names(r.Violations)
}

// Trace renders r for debugging: the rule with its bindings and outcome,
// then one line per added (+), removed (-) and violated (!) item.
func (r Result) Trace() []string {
	keys := make([]string, 0, len(r.Bindings))
	for k := range r.Bindings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + r.Bindings[k]
	}
	lines := []string{fmt.Sprintf("%s.%s {%s} %s", r.Owner, r.Rule, strings.Join(parts, ", "), r.Outcome)}
	for _, f := range r.Added {
		lines = append(lines, "  + "+state.FormatFact(f))
	}
	for _, f := range r.Removed {
		lines = append(lines, "  - "+state.FormatFact(f))
	}
	for _, v := range r.Violations {
		lines = append(lines, "  ! "+v.String())
	}
	return lines
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records rule outcomes on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Session) { s.metrics = c }
}

// WithEvents publishes seeds, rule applications, rollbacks and restores to
// bus. Handlers run after the session lock is released.
func WithEvents(bus *events.Bus) Option {
	return func(s *Session) { s.bus = bus }
}

// WithSeed seeds the random agent.
func WithSeed(seed int64) Option {
	return func(s *Session) { s.rng = NewRNG(seed) }
}

// Session holds the declaration model and the mutable world of one play
// session. Methods are safe for concurrent use; every call sees a complete
// world, never a partially applied one.
type Session struct {
	mu sync.Mutex

	id      string
	m       *model.Model
	grammar *parser.Grammar
	world   *state.World
	moves   int
	cmdLog  []string
	last    []string // constraint names from the latest rollback
	rng     *RNG
	logger  *zap.Logger
	metrics *metrics.Collector
	bus     *events.Bus
	pending []events.Event
}

// New creates a session over a validated model with an empty world.
func New(m *model.Model, opts ...Option) *Session {
	s := &Session{
		id:      uuid.NewString(),
		m:       m,
		grammar: parser.NewGrammar(m),
		world:   state.New(),
		rng:     NewRNG(1),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("session", s.id))
	return s
}

// ID returns the session id.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Model returns the declaration model.
func (s *Session) Model() *model.Model { return s.m }

// Grammar returns the command grammar derived from the model.
func (s *Session) Grammar() *parser.Grammar { return s.grammar }

// Declare adds a live instance of a declared type.
func (s *Session) Declare(id, typ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.declare(s.world, id, typ)
}

func (s *Session) declare(w *state.World, id, typ string) error {
	if t := s.m.Type(typ); t == nil {
		return fmt.Errorf("declaring %s: %w %q", id, ErrUnknownType, typ)
	}
	return w.Declare(id, typ)
}

// Assert adds facts directly, without running rules. Each fact must name a
// declared predicate with matching arity over declared instances of the
// right types, and the resulting world must satisfy every constraint;
// otherwise the world is left unchanged.
func (s *Session) Assert(facts ...types.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.world.Clone()
	for _, f := range facts {
		if err := s.checkFact(w, f); err != nil {
			return err
		}
		w.Add(f)
	}
	if vs := constraints.CheckAll(s.m, w); len(vs) > 0 {
		return fmt.Errorf("asserting: %w: %s", ErrIllegalWorld, describeViolations(vs))
	}
	s.world = w
	s.metrics.SetWorldFacts(w.Len())
	return nil
}

func (s *Session) checkFact(w *state.World, f types.Fact) error {
	p, ok := s.m.PredicateNamed(f.Predicate)
	if !ok {
		return fmt.Errorf("%w: %s is not a declared predicate", ErrInvalidFact, state.FormatFact(f))
	}
	if len(p.Params) != len(f.Args) {
		return fmt.Errorf("%w: %s takes %d argument(s)", ErrInvalidFact, state.FormatFact(f), len(p.Params))
	}
	for i, id := range f.Args {
		if err := s.checkInstance(w, p.Params[i], id); err != nil {
			return fmt.Errorf("%s: %w", state.FormatFact(f), err)
		}
	}
	return nil
}

// checkInstance verifies that id is live and may be bound to variable v.
func (s *Session) checkInstance(w *state.World, v, id string) error {
	typ, ok := w.TypeOf(id)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownInstance, id)
	}
	if want := s.m.VarType(v); want != nil && !s.m.IsSubtype(typ, want.Name) {
		return fmt.Errorf("%w: %s is a %s, %s needs a %s", ErrBindingType, id, typ, v, want.Name)
	}
	return nil
}

// Seed replaces the world with the instances and facts of a scenario. The
// seeded world must satisfy every constraint; otherwise the session is left
// unchanged and the violations are reported.
func (s *Session) Seed(scen types.ScenarioDecl) error {
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()

	w := state.New()
	for _, in := range scen.Instances {
		if err := s.declare(w, in.ID, in.Type); err != nil {
			return fmt.Errorf("seeding: %w", err)
		}
	}
	for _, a := range scen.Facts {
		f := types.Fact{Predicate: a.Predicate, Args: a.Args}
		if err := s.checkFact(w, f); err != nil {
			return fmt.Errorf("seeding: %w", err)
		}
		w.Add(f)
	}
	if vs := constraints.CheckAll(s.m, w); len(vs) > 0 {
		return fmt.Errorf("seeding: %w: %s", ErrIllegalWorld, describeViolations(vs))
	}

	s.world = w
	s.moves = 0
	s.cmdLog = nil
	s.last = nil
	s.metrics.SetWorldFacts(w.Len())
	s.publish(events.Event{Kind: events.Seeded, Added: w.Facts()})
	s.logger.Info("world seeded",
		zap.Int("instances", len(scen.Instances)),
		zap.Int("facts", w.Len()))
	return nil
}

// publish queues ev for delivery once the current call returns.
func (s *Session) publish(ev events.Event) {
	if s.bus == nil {
		return
	}
	ev.Session = s.id
	s.pending = append(s.pending, ev)
}

// flush delivers queued events. It must be deferred before the lock is
// taken so handlers may call back into the session.
func (s *Session) flush() {
	if s.bus == nil {
		return
	}
	s.mu.Lock()
	evs := s.pending
	s.pending = nil
	s.mu.Unlock()
	s.bus.Dispatch(evs...)
}

func describeViolations(vs []constraints.Violation) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

// Apply applies the rule called ruleName under b. The rule is chosen by the
// instance bound to its instance variable, so a subtype's shadowing rule
// wins. A false guard yields NotFired; an effect that breaks a constraint
// yields Violated and leaves the world as it was.
func (s *Session) Apply(ruleName string, b types.Bindings) (Result, error) {
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()

	r, b, err := s.rule(ruleName, b)
	if err != nil {
		return Result{}, err
	}
	return s.apply(r, b)
}

// rule picks the effective rule called name for the bindings given.
func (s *Session) rule(name string, b types.Bindings) (model.Rule, types.Bindings, error) {
	cands := s.m.RulesNamed(name)
	if len(cands) == 0 {
		return model.Rule{}, nil, fmt.Errorf("%w %q", ErrUnknownRule, name)
	}
	for _, c := range cands {
		id, ok := b[c.Var]
		if !ok {
			continue
		}
		typ, ok := s.world.TypeOf(id)
		if !ok || !s.m.IsSubtype(typ, c.Owner) {
			continue
		}
		r, ok := s.m.Type(typ).Rule(name)
		if !ok {
			continue
		}
		if _, bound := b[r.Var]; !bound {
			nb := make(types.Bindings, len(b)+1)
			for k, v := range b {
				nb[k] = v
			}
			nb[r.Var] = id
			b = nb
		}
		return r, b, nil
	}
	return cands[0], b, nil
}

func (s *Session) apply(r model.Rule, b types.Bindings) (Result, error) {
	for v, id := range b {
		if err := s.checkInstance(s.world, v, id); err != nil {
			return Result{}, fmt.Errorf("rule %s: %w", r.Name, err)
		}
	}

	tr, err := rules.Apply(r, b, s.world)
	if err != nil {
		return Result{}, err
	}
	res := Result{Rule: r.Name, Owner: r.Owner, Bindings: b}
	log := s.logger.With(zap.String("rule", r.Name), zap.Any("bindings", map[string]string(b)))

	if !tr.Fired {
		s.last = nil
		s.metrics.RuleApplied(r.Name, NotFired.String())
		log.Debug("rule did not fire")
		return res, nil
	}

	res.Added = tr.Added
	res.Removed = tr.Removed
	if vs := constraints.CheckAll(s.m, tr.World); len(vs) > 0 {
		res.Outcome = Violated
		res.Violations = vs
		s.last = constraints.Names(vs)
		s.metrics.RuleApplied(r.Name, Violated.String())
		s.metrics.ConstraintViolated(s.last...)
		s.publish(events.Event{
			Kind: events.RolledBack, Rule: r.Name, Owner: r.Owner, Bindings: b,
			Added: tr.Added, Removed: tr.Removed, Violations: s.last,
		})
		log.Info("rule rolled back", zap.Strings("violations", s.last))
		return res, nil
	}

	res.Outcome = Applied
	s.world = tr.World
	s.last = nil
	s.metrics.RuleApplied(r.Name, Applied.String())
	s.metrics.SetWorldFacts(s.world.Len())
	s.publish(events.Event{
		Kind: events.Applied, Rule: r.Name, Owner: r.Owner, Bindings: b,
		Added: tr.Added, Removed: tr.Removed,
	})
	log.Debug("rule applied",
		zap.Int("added", len(tr.Added)),
		zap.Int("removed", len(tr.Removed)))
	return res, nil
}

// Query reports whether pred(args...) holds.
func (s *Session) Query(pred string, args ...string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Contains(types.Fact{Predicate: pred, Args: args})
}

// Violations returns the constraints that rolled back the most recent
// application. It is empty after an application that did not violate.
func (s *Session) Violations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.last))
	copy(out, s.last)
	return out
}

// Facts returns every fact of the world, sorted.
func (s *Session) Facts() []types.Fact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.world.Facts()
}

// Instances returns the live instances, sorted by id.
func (s *Session) Instances() []types.InstanceDecl {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.InstanceDecl
	for _, id := range s.world.Instances() {
		typ, _ := s.world.TypeOf(id)
		out = append(out, types.InstanceDecl{ID: id, Type: typ})
	}
	return out
}

// Moves returns the number of commands stepped.
func (s *Session) Moves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moves
}

// CommandLog returns every input passed to Step.
func (s *Session) CommandLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.cmdLog))
	copy(out, s.cmdLog)
	return out
}

// Describe renders a fact with its predicate's sentence template, falling
// back to the fact itself when none is declared.
func (s *Session) Describe(f types.Fact) string {
	p, ok := s.m.PredicateNamed(f.Predicate)
	if !ok || len(p.Params) != len(f.Args) {
		return state.FormatFact(f)
	}
	t := s.m.Type(p.Owner)
	if t == nil || t.Mapping == nil {
		return state.FormatFact(f)
	}
	sent, ok := t.Mapping.Predicates[p.Name]
	if !ok {
		return state.FormatFact(f)
	}
	names := sent.Params
	if len(names) != len(f.Args) {
		names = p.Params
	}
	values := make(map[string]string, len(names))
	for i, n := range names {
		values[n] = parser.Noun(f.Args[i])
	}
	return emit.Fill(sent.Template, values)
}

// Command is one admissible command: a rule instantiation whose guard holds,
// rendered with its command phrase.
type Command struct {
	Text     string
	Rule     string
	Owner    string
	Bindings types.Bindings
}

// Admissible returns every command whose guard holds in the current world,
// sorted by text and de-duplicated. Rules without a command phrase are
// skipped.
func (s *Session) Admissible() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.admissible()
}

func (s *Session) admissible() []Command {
	matcher := rules.Matcher{Model: s.m}
	seen := map[string]bool{}
	var out []Command
	for _, id := range s.world.Instances() {
		typ, _ := s.world.TypeOf(id)
		t := s.m.Type(typ)
		if t == nil {
			continue
		}
		for _, r := range t.Rules() {
			p, ok := s.grammar.Pattern(r.Name, r.Owner)
			if !ok {
				continue
			}
			for _, b := range matcher.Match(r.Guard, types.Bindings{r.Var: id}, s.world) {
				values := make(map[string]string, len(b))
				for v, bid := range b {
					values[v] = parser.Noun(bid)
				}
				text := emit.Fill(p.Phrase, values)
				if seen[text] {
					continue
				}
				seen[text] = true
				out = append(out, Command{Text: text, Rule: r.Name, Owner: r.Owner, Bindings: b})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Text < out[j].Text })
	return out
}

// StepResult is the outcome of one typed command.
type StepResult struct {
	Output []string
	Result *Result // nil when no rule was applied
}

// Step parses a command phrase and applies the first rule it can be read
// as whose guard holds. Anything else is "Nothing happens." Only a
// committed application counts as a move; every non-empty input is logged.
func (s *Session) Step(input string) StepResult {
	defer s.flush()
	s.mu.Lock()
	defer s.mu.Unlock()

	input = strings.TrimSpace(input)
	if input == "" {
		return StepResult{Output: []string{"What do you want to do?"}}
	}
	s.cmdLog = append(s.cmdLog, input)

	matcher := rules.Matcher{Model: s.m}
	for _, in := range s.grammar.Parse(input) {
		partial, ok := s.resolveNouns(in)
		if !ok {
			continue
		}
		r, b, err := s.rule(in.Rule, partial)
		if err != nil || r.Owner != in.Owner && !s.m.IsSubtype(r.Owner, in.Owner) {
			continue
		}
		found := matcher.Match(r.Guard, b, s.world)
		if len(found) == 0 {
			continue
		}
		res, err := s.apply(r, found[0])
		if err != nil {
			s.logger.Warn("step failed", zap.String("input", input), zap.Error(err))
			continue
		}
		if res.Outcome == Applied {
			s.moves++
		}
		return StepResult{Output: s.narrate(res), Result: &res}
	}
	s.last = nil
	return StepResult{Output: []string{"Nothing happens."}}
}

// resolveNouns maps the noun phrases of an intent to live instances.
func (s *Session) resolveNouns(in parser.Intent) (types.Bindings, bool) {
	b := types.Bindings{}
	for v, noun := range in.Nouns {
		id, ok := s.instanceNamed(v, noun)
		if !ok {
			return nil, false
		}
		b[v] = id
	}
	return b, true
}

func (s *Session) instanceNamed(v, noun string) (string, bool) {
	for _, id := range s.world.Instances() {
		if parser.Noun(id) != noun {
			continue
		}
		if s.checkInstance(s.world, v, id) == nil {
			return id, true
		}
	}
	return "", false
}

func (s *Session) narrate(res Result) []string {
	switch res.Outcome {
	case Violated:
		return []string{fmt.Sprintf("You can't do that: it would break %s.", strings.Join(res.ViolationNames(), ", "))}
	case NotFired:
		return []string{"Nothing happens."}
	}

	var out []string
	if p, ok := s.grammar.Pattern(res.Rule, res.Owner); ok {
		if t := s.m.Type(p.Owner); t != nil && t.Mapping != nil {
			if c, ok := t.Mapping.Commands[res.Rule]; ok && c.Narration != "" {
				values := make(map[string]string, len(res.Bindings))
				for v, id := range res.Bindings {
					values[v] = parser.Noun(id)
				}
				out = append(out, sentence(emit.Fill(c.Narration, values)))
			}
		}
	}
	for _, f := range res.Added {
		out = append(out, sentence(s.Describe(f)))
	}
	if len(out) == 0 {
		out = append(out, "Done.")
	}
	return out
}

// sentence capitalizes text and ends it with a full stop.
func sentence(text string) string {
	if text == "" {
		return text
	}
	text = strings.ToUpper(text[:1]) + text[1:]
	if !strings.HasSuffix(text, ".") {
		text += "."
	}
	return text
}

// RandomCommand picks one admissible command with the session RNG.
func (s *Session) RandomCommand() (Command, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmds := s.admissible()
	if len(cmds) == 0 {
		return Command{}, false
	}
	return cmds[s.rng.Intn(len(cmds))], true
}
