package snowflake

import "testing"

func TestGenerate_Unique(t *testing.T) {
	node, err := NewNode(1)
	if err != nil {
		t.Fatalf("NewNode failed: %v", err)
	}

	seen := make(map[ID]bool)
	for i := 0; i < 10000; i++ {
		id := node.Generate()
		if seen[id] {
			t.Fatalf("Duplicate id generated: %d", id)
		}
		seen[id] = true
	}
}

func TestGenerate_Monotonic(t *testing.T) {
	node, _ := NewNode(1)

	prev := node.Generate()
	for i := 0; i < 10000; i++ {
		id := node.Generate()
		if id <= prev {
			t.Fatalf("Expected strictly increasing ids, got %d after %d", id, prev)
		}
		prev = id
	}
}

func TestNewNode_InvalidID(t *testing.T) {
	node, err := NewNode(-5)
	if err != nil {
		t.Fatalf("NewNode failed: %v", err)
	}
	if node.nodeID != 1 {
		t.Errorf("Expected fallback node id 1, got %d", node.nodeID)
	}
}

func TestID_String(t *testing.T) {
	if got := ID(12345).String(); got != "12345" {
		t.Errorf("Expected '12345', got '%s'", got)
	}
}
