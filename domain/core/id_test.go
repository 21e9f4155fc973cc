package core

import (
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

func TestHashOfDeterminism(t *testing.T) {
	type probe struct {
		Name  string  `json:"name"`
		Value float64 `json:"value"`
	}

	h1, err := HashOf(probe{Name: "ISIS-2", Value: 0.765})
	if err != nil {
		t.Fatalf("HashOf: %v", err)
	}
	h2, err := HashOf(probe{Name: "ISIS-2", Value: 0.765})
	if err != nil {
		t.Fatalf("HashOf: %v", err)
	}
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %s vs %s", h1, h2)
	}

	h3, _ := HashOf(probe{Name: "ISIS-2", Value: 0.766})
	if h1 == h3 {
		t.Errorf("expected different hashes for different payloads")
	}
}
