package detect

import (
	"testing"
	"time"

	"github.com/hearthwise/hearthwise/internal/domain"
)

func TestNoiseFilter_Classify(t *testing.T) {
	f := NewNoiseFilter()

	cases := []struct {
		entityID string
		want     EntityClass
	}{
		{"light.kitchen", ClassActionable},
		{"switch.coffee_maker", ClassActionable},
		{"binary_sensor.hallway_motion", ClassActionable},
		{"camera.front_door", ClassSystemNoise},
		{"button.restart", ClassSystemNoise},
		{"update.firmware", ClassSystemNoise},
		{"weather.home", ClassExternalData},
		{"sun.sun", ClassExternalData},
		{"sensor.pollen_forecast", ClassExternalData},
		{"sensor.team_tracker_warriors", ClassExternalData},
		{"sensor.grid_power_import", ClassExternalData},
		{"sensor.energy_price_now", ClassExternalData},
	}
	for _, tc := range cases {
		if got := f.Classify(tc.entityID); got != tc.want {
			t.Errorf("Classify(%q) = %q, want %q", tc.entityID, got, tc.want)
		}
	}
}

func TestNoiseFilter_FilterEvents(t *testing.T) {
	f := NewNoiseFilter()
	now := time.Now()

	events := []domain.Event{
		{EntityID: "light.kitchen", State: "on", Timestamp: now},
		{EntityID: "camera.front_door", State: "recording", Timestamp: now},
		{EntityID: "weather.home", State: "sunny", Timestamp: now},
		{EntityID: "lock.front_door", State: "locked", Timestamp: now},
	}

	filtered := f.FilterEvents(events)
	if len(filtered) != 2 {
		t.Fatalf("expected 2 actionable events, got %d", len(filtered))
	}
	if filtered[0].EntityID != "light.kitchen" || filtered[1].EntityID != "lock.front_door" {
		t.Fatalf("unexpected filtered set: %v", filtered)
	}
}
