package rng

import "testing"

func TestNextIsPureAndInRange(t *testing.T) {
	for index := uint64(0); index < 512; index++ {
		first := Next(12345, index)
		second := Next(12345, index)
		if first != second {
			t.Fatalf("index %d produced %f then %f", index, first, second)
		}
		if first < 0 || first >= 1 {
			t.Fatalf("index %d produced out of range value %f", index, first)
		}
	}
}

func TestNextAddressableWithoutPriorCalls(t *testing.T) {
	//1.- Walk a source forward and compare each draw against direct addressing.
	src := NewSource(-987654321)
	for index := uint64(0); index < 64; index++ {
		streamed := src.Float()
		direct := Next(-987654321, index)
		if streamed != direct {
			t.Fatalf("index %d: streamed %f direct %f", index, streamed, direct)
		}
	}
	if src.Calls() != 64 {
		t.Fatalf("expected 64 calls, got %d", src.Calls())
	}
}

func TestSeedsDiverge(t *testing.T) {
	same := 0
	for index := uint64(0); index < 100; index++ {
		if Next(1, index) == Next(2, index) {
			same++
		}
	}
	if same > 5 {
		t.Fatalf("seeds 1 and 2 collided on %d of 100 draws", same)
	}
}

func TestPercentageCheckBounds(t *testing.T) {
	for index := uint64(0); index < 200; index++ {
		if PercentageCheck(42, index, 0) {
			t.Fatalf("0%% chance succeeded at index %d", index)
		}
		if !PercentageCheck(42, index, 100) {
			t.Fatalf("100%% chance failed at index %d", index)
		}
	}
}

func TestSourceConsumesOneSlotPerDraw(t *testing.T) {
	src := NewSource(7)
	src.Chance(0)
	src.Chance(100)
	src.Intn(1)
	src.Intn(8)
	if src.Calls() != 4 {
		t.Fatalf("expected 4 consumed slots, got %d", src.Calls())
	}
}

func TestIndexInRangeCoversRange(t *testing.T) {
	seen := make(map[int]bool)
	for index := uint64(0); index < 400; index++ {
		picked := IndexInRange(99, index, 4)
		if picked < 0 || picked >= 4 {
			t.Fatalf("picked %d outside [0,4)", picked)
		}
		seen[picked] = true
	}
	if len(seen) != 4 {
		t.Fatalf("expected all 4 indices to appear, saw %v", seen)
	}
}
