package auction

import (
	"slices"
	"testing"
)

func always(string) bool { return true }

func TestScheduler_NextCycles(t *testing.T) {
	sc := NewScheduler([]string{"a", "b", "c"}, always)

	for _, want := range []string{"a", "b", "c", "a"} {
		got, skipped, ok := sc.Next()
		if !ok {
			t.Fatal("Next() returned ok=false")
		}
		if got != want {
			t.Fatalf("Next() = %q, want %q", got, want)
		}
		if len(skipped) != 0 {
			t.Fatalf("Next() skipped %v, want none", skipped)
		}
		sc.Advance()
	}
}

func TestScheduler_SkipsIneligible(t *testing.T) {
	sc := NewScheduler([]string{"a", "b", "c"}, func(nick string) bool {
		return nick != "b"
	})

	sc.Advance() // cursor at b
	got, skipped, ok := sc.Next()
	if !ok {
		t.Fatal("Next() returned ok=false")
	}
	if got != "c" {
		t.Errorf("Next() = %q, want %q", got, "c")
	}
	if !slices.Equal(skipped, []string{"b"}) {
		t.Errorf("skipped = %v, want [b]", skipped)
	}
}

func TestScheduler_NoInterestSilentlySkipped(t *testing.T) {
	sc := NewScheduler([]string{"a", "b"}, always)
	sc.MarkNoInterest("a")

	got, skipped, ok := sc.Next()
	if !ok {
		t.Fatal("Next() returned ok=false")
	}
	if got != "b" {
		t.Errorf("Next() = %q, want %q", got, "b")
	}
	// No-interest captains are not announced as skipped.
	if len(skipped) != 0 {
		t.Errorf("skipped = %v, want none", skipped)
	}
}

func TestScheduler_NextNobodyLeft(t *testing.T) {
	sc := NewScheduler([]string{"a", "b"}, func(string) bool { return false })
	if _, _, ok := sc.Next(); ok {
		t.Error("Next() with nobody eligible should return ok=false")
	}
}

func TestScheduler_ClearPassedKeepsNoInterest(t *testing.T) {
	sc := NewScheduler([]string{"a", "b", "c"}, always)
	sc.MarkPassed("a")
	sc.MarkNoInterest("b")

	sc.ClearPassed()

	if sc.Passed("a") {
		t.Error("a should be able to act again after ClearPassed")
	}
	if !sc.Passed("b") {
		t.Error("no-interest captain b must stay passed after ClearPassed")
	}
}

func TestScheduler_Outcome(t *testing.T) {
	t.Run("open while someone can still act", func(t *testing.T) {
		sc := NewScheduler([]string{"a", "b", "c"}, always)
		sc.MarkPassed("b")
		if got := sc.Outcome("a"); got != OutcomeOpen {
			t.Errorf("Outcome = %v, want OutcomeOpen", got)
		}
	})

	t.Run("sale once everyone but the top bidder passed", func(t *testing.T) {
		sc := NewScheduler([]string{"a", "b", "c"}, always)
		sc.MarkPassed("b")
		sc.MarkPassed("c")
		if got := sc.Outcome("a"); got != OutcomeSale {
			t.Errorf("Outcome = %v, want OutcomeSale", got)
		}
	})

	t.Run("no sale when everyone passed without a bid", func(t *testing.T) {
		sc := NewScheduler([]string{"a", "b"}, always)
		sc.MarkPassed("a")
		sc.MarkPassed("b")
		if got := sc.Outcome(""); got != OutcomeNoSale {
			t.Errorf("Outcome = %v, want OutcomeNoSale", got)
		}
	})

	t.Run("ineligible captains are not required to pass", func(t *testing.T) {
		// c's team is full; a holds the top bid and b passed. The round
		// must settle without waiting on c.
		sc := NewScheduler([]string{"a", "b", "c"}, func(nick string) bool {
			return nick != "c"
		})
		sc.MarkPassed("b")
		if got := sc.Outcome("a"); got != OutcomeSale {
			t.Errorf("Outcome = %v, want OutcomeSale", got)
		}
	})

	t.Run("no sale over eligible captains only", func(t *testing.T) {
		sc := NewScheduler([]string{"a", "b", "c"}, func(nick string) bool {
			return nick != "c"
		})
		sc.MarkPassed("a")
		sc.MarkPassed("b")
		if got := sc.Outcome(""); got != OutcomeNoSale {
			t.Errorf("Outcome = %v, want OutcomeNoSale", got)
		}
	})
}
