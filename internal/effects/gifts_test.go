package effects

import "testing"

func TestGiftCounterStandalone(t *testing.T) {
	g := NewGiftCounter()

	if g.ConsumeOne("alice") {
		t.Fatal("user without a batch should not be suppressed")
	}
}

func TestGiftCounterBatch(t *testing.T) {
	g := NewGiftCounter()
	g.RegisterBatch("alice", 3)

	for i := 0; i < 3; i++ {
		if !g.ConsumeOne("alice") {
			t.Fatalf("consume %d should be covered by the batch", i+1)
		}
	}

	// Entry must be gone once the batch is spent
	if g.ConsumeOne("alice") {
		t.Fatal("batch exhausted, next gift is standalone")
	}
}

func TestGiftCounterAccumulates(t *testing.T) {
	g := NewGiftCounter()
	g.RegisterBatch("bob", 1)
	g.RegisterBatch("bob", 2)

	covered := 0
	for g.ConsumeOne("bob") {
		covered++
	}
	if covered != 3 {
		t.Fatalf("covered %d gifts, want 3", covered)
	}
}

func TestGiftCounterIgnoresNonPositive(t *testing.T) {
	g := NewGiftCounter()
	g.RegisterBatch("mallory", 0)
	g.RegisterBatch("mallory", -5)

	if g.ConsumeOne("mallory") {
		t.Fatal("non-positive batches must not create entries")
	}
}

func TestGiftCounterPerUser(t *testing.T) {
	g := NewGiftCounter()
	g.RegisterBatch("alice", 1)

	if g.ConsumeOne("bob") {
		t.Fatal("bob has no batch")
	}
	if !g.ConsumeOne("alice") {
		t.Fatal("alice's gift is covered")
	}
}
