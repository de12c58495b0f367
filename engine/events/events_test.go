package events

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDispatch_AllKinds(t *testing.T) {
	var b Bus
	var got []string
	b.Subscribe(func(ev Event) { got = append(got, ev.Kind.String()+":"+ev.Rule) })

	b.Dispatch(
		Event{Kind: Seeded},
		Event{Kind: Applied, Rule: "put"},
		Event{Kind: RolledBack, Rule: "eat", Violations: []string{"eaten1"}},
	)

	want := []string{"seeded:", "applied:put", "rolled_back:eat"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestDispatch_FiltersByKind(t *testing.T) {
	var b Bus
	var rolled []Event
	b.Subscribe(func(ev Event) { rolled = append(rolled, ev) }, RolledBack)

	b.Dispatch(Event{Kind: Applied, Rule: "put"}, Event{Kind: RolledBack, Rule: "eat"})

	if len(rolled) != 1 || rolled[0].Rule != "eat" {
		t.Errorf("filtered handler got %+v, want only the eat rollback", rolled)
	}
}

func TestDispatch_SubscriptionOrder(t *testing.T) {
	var b Bus
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		b.Subscribe(func(Event) { order = append(order, i) })
	}
	b.Dispatch(Event{Kind: Applied})

	if diff := cmp.Diff([]int{0, 1, 2, 3, 4}, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestUnsubscribe(t *testing.T) {
	var b Bus
	n := 0
	stop := b.Subscribe(func(Event) { n++ })
	b.Dispatch(Event{Kind: Applied})
	stop()
	b.Dispatch(Event{Kind: Applied})

	if n != 1 {
		t.Errorf("handler called %d times, want 1", n)
	}
}

func TestDispatch_SinglePass(t *testing.T) {
	var b Bus
	n := 0
	b.Subscribe(func(ev Event) {
		n++
		if ev.Kind == Applied {
			b.Subscribe(func(Event) { n += 100 })
		}
	})
	b.Dispatch(Event{Kind: Applied}, Event{Kind: Seeded})

	if n != 2 {
		t.Errorf("n = %d, want 2: handlers added during dispatch must wait for the next one", n)
	}
}

func TestNilBus(t *testing.T) {
	var b *Bus
	b.Dispatch(Event{Kind: Applied})
}

func TestKindString(t *testing.T) {
	tests := map[Kind]string{
		Seeded:     "seeded",
		Applied:    "applied",
		RolledBack: "rolled_back",
		Restored:   "restored",
		Kind(99):   "unknown",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}
