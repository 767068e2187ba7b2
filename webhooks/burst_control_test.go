package webhooks

import (
	"context"
	"testing"
	"time"
)

func TestBurstController_CoalesceAnchorsWindowDebounceSlidesIt(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	offsets := []time.Duration{0, 2 * time.Second, 11 * time.Second}
	want := map[BurstMode][]bool{
		BurstModeCoalesce: {true, false, true},
		BurstModeDebounce: {true, false, false},
		"":                {true, true, true},
	}
	for mode, expected := range want {
		now := start
		controller := NewBurstController(BurstOptions{
			Mode:   mode,
			Window: 10 * time.Second,
			Now:    func() time.Time { return now },
		})
		for i, offset := range offsets {
			now = start.Add(offset)
			decision, err := controller.Allow(context.Background(), Notification{
				ProviderID: "EPayco",
				Metadata:   map[string]any{"authorization": "ref-7", "status": "Aceptada"},
			})
			if err != nil {
				t.Fatalf("%q #%d: %v", mode, i, err)
			}
			if decision.Allow != expected[i] {
				t.Fatalf("%q #%d: expected allow=%v, got %+v", mode, i, expected[i], decision)
			}
			if !decision.Allow && decision.Metadata["burst_key"] != "epayco:ref-7:aceptada" {
				t.Fatalf("%q #%d: unexpected key %v", mode, i, decision.Metadata["burst_key"])
			}
		}
	}
}

func TestBurstController_PrunesAtCapacity(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	controller := NewBurstController(BurstOptions{
		Mode:       BurstModeCoalesce,
		Window:     time.Second,
		MaxEntries: 2,
		Now:        func() time.Time { return now },
	})
	for _, key := range []string{"a", "b", "c", "d"} {
		n := Notification{ProviderID: "stripeintents", Metadata: map[string]any{"burst_key": key}}
		if decision, _ := controller.Allow(context.Background(), n); !decision.Allow {
			t.Fatalf("first sighting of %q must pass", key)
		}
	}
	if len(controller.starts) > 2 {
		t.Fatalf("expected at most 2 tracked keys, got %d", len(controller.starts))
	}
}

func TestDefaultBurstKeyExtractor_NeedsProviderAndKey(t *testing.T) {
	if _, ok := DefaultBurstKeyExtractor(Notification{Metadata: map[string]any{"burst_key": "x"}}); ok {
		t.Fatalf("expected no key without provider")
	}
	if _, ok := DefaultBurstKeyExtractor(Notification{ProviderID: "simplepay", Metadata: map[string]any{"authorization": nil}}); ok {
		t.Fatalf("expected no key without authorization")
	}
}
