package dedup

import (
	"fmt"
	"testing"
	"time"
)

func TestEventGuardSuppressesDuplicates(t *testing.T) {
	g := NewEventGuard(8)
	if !g.ShouldProcess("ev-1") {
		t.Fatal("first delivery must process")
	}
	if g.ShouldProcess("ev-1") {
		t.Fatal("duplicate delivery must be suppressed")
	}
	if !g.ShouldProcess("ev-2") {
		t.Fatal("distinct event must process")
	}
}

func TestEventGuardEmptyKeyAlwaysProcesses(t *testing.T) {
	g := NewEventGuard(8)
	if !g.ShouldProcess("") || !g.ShouldProcess("") {
		t.Fatal("empty keys must never be suppressed")
	}
}

func TestEventGuardEvictsOldest(t *testing.T) {
	g := NewEventGuard(3)
	for i := 0; i < 4; i++ {
		g.ShouldProcess(fmt.Sprintf("ev-%d", i))
	}
	// ev-0 was evicted, so its redelivery looks new again
	if !g.ShouldProcess("ev-0") {
		t.Fatal("evicted key must process again")
	}
	if g.ShouldProcess("ev-3") {
		t.Fatal("recent key must stay suppressed")
	}
}

func TestActionGuardWindow(t *testing.T) {
	g := NewActionGuard(5 * time.Second)
	now := time.Unix(1700000000, 0)
	g.now = func() time.Time { return now }

	key := ActionKey("op-1", "msg-1", "expand", "Model", "AI")
	if !g.ShouldProcess(key) {
		t.Fatal("first click must process")
	}
	now = now.Add(2 * time.Second)
	if g.ShouldProcess(key) {
		t.Fatal("repeat click inside the window must be suppressed")
	}
	now = now.Add(10 * time.Second)
	if !g.ShouldProcess(key) {
		t.Fatal("click after the window must process")
	}
}

func TestActionGuardDistinguishesKeys(t *testing.T) {
	g := NewActionGuard(5 * time.Second)
	a := ActionKey("op-1", "msg-1", "expand", "Model", "AI")
	b := ActionKey("op-1", "msg-1", "expand", "Model", "GAMES")
	if !g.ShouldProcess(a) || !g.ShouldProcess(b) {
		t.Fatal("actions differing in any component are distinct")
	}
}
