package store

import "testing"

func TestDirectKey(t *testing.T) {
	if DirectKey(3, 7) != "dm:3:7" {
		t.Fatalf("unexpected key: %s", DirectKey(3, 7))
	}
	// Order independent.
	if DirectKey(7, 3) != DirectKey(3, 7) {
		t.Fatalf("keys differ by argument order: %s vs %s", DirectKey(7, 3), DirectKey(3, 7))
	}
	if DirectKey(1, 2) == DirectKey(1, 3) {
		t.Fatal("distinct pairs must not collide")
	}
}
