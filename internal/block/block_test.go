package block

import "testing"

func TestForgeRingLinksCycle(t *testing.T) {
	chain := AllocChain(4)
	head := ForgeRing(chain)

	if head != chain[0] {
		t.Fatal("expected head to be first allocated block")
	}
	if Len(head) != 4 {
		t.Fatalf("expected ring length 4, got %d", Len(head))
	}

	b := head
	for i := 0; i < 3; i++ {
		b = b.Next
	}
	if b.Next != head {
		t.Fatal("expected tail.Next to wrap to head")
	}
}

func TestForgeRingEmptyChain(t *testing.T) {
	if ForgeRing(nil) != nil {
		t.Fatal("expected nil head for empty chain")
	}
}

func TestDrained(t *testing.T) {
	var b *Block
	if !b.Drained() {
		t.Fatal("expected nil block to be drained")
	}

	b = &Block{}
	if !b.Drained() {
		t.Fatal("expected zero-Fill block to be drained")
	}

	b.Fill = 4
	if b.Drained() {
		t.Fatal("expected block with Fill > 0 to not be drained")
	}
}

func TestNeedsData(t *testing.T) {
	b := &Block{}
	if !b.NeedsData() {
		t.Fatal("expected block with nil Data to need data")
	}

	b.Data = make([]byte, 8)
	if b.NeedsData() {
		t.Fatal("expected block with Data to not need data")
	}
}

func TestFastAllocDataSizesEveryEmptyBlock(t *testing.T) {
	chain := AllocChain(3)
	head := ForgeRing(chain)

	n := FastAllocData(head, 16)
	if n != 48 {
		t.Fatalf("expected 48 bytes allocated, got %d", n)
	}

	b := head
	for i := 0; i < 3; i++ {
		if len(b.Data) != 16 {
			t.Fatalf("block %d: expected 16 bytes, got %d", i, len(b.Data))
		}
		b = b.Next
	}
}

func TestFastAllocDataSkipsAlreadyAllocated(t *testing.T) {
	chain := AllocChain(2)
	head := ForgeRing(chain)
	head.Data = make([]byte, 4)

	n := FastAllocData(head, 16)
	if n != 16 {
		t.Fatalf("expected only the second block to be allocated, got %d bytes", n)
	}
	if len(head.Data) != 4 {
		t.Fatal("expected pre-allocated block to be left untouched")
	}
	if len(head.Next.Data) != 16 {
		t.Fatal("expected empty block to receive new allocation")
	}
}

func TestFastAllocDataNilHeadIsNoop(t *testing.T) {
	if n := FastAllocData(nil, 16); n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}
}
