package repos

import (
	"testing"
	"time"
)

func TestHoursFromJSON(t *testing.T) {
	raw := []byte(`{
		"monday": {"open": "09:00", "close": "17:00"},
		"Saturday": {"open": "10:00", "close": "14:30"},
		"sunday": null
	}`)

	hours, err := hoursFromJSON(raw)
	if err != nil {
		t.Fatalf("parse hours: %v", err)
	}

	mon, ok := hours.Window(time.Monday)
	if !ok || mon.OpenMins != 9*60 || mon.CloseMins != 17*60 {
		t.Fatalf("monday window wrong: %+v ok=%v", mon, ok)
	}
	sat, ok := hours.Window(time.Saturday)
	if !ok || sat.OpenMins != 10*60 || sat.CloseMins != 14*60+30 {
		t.Fatalf("saturday window wrong: %+v ok=%v", sat, ok)
	}
	if _, ok := hours.Window(time.Sunday); ok {
		t.Fatalf("null day must count as closed")
	}
	if _, ok := hours.Window(time.Friday); ok {
		t.Fatalf("absent day must count as closed")
	}
}

func TestHoursFromJSON_Invalid(t *testing.T) {
	if _, err := hoursFromJSON([]byte(`{"blursday": {"open": "09:00", "close": "17:00"}}`)); err == nil {
		t.Fatalf("unknown day must fail")
	}
	if _, err := hoursFromJSON([]byte(`{"monday": {"open": "25:00", "close": "17:00"}}`)); err == nil {
		t.Fatalf("bad clock value must fail")
	}
	hours, err := hoursFromJSON(nil)
	if err != nil || len(hours) != 0 {
		t.Fatalf("empty input should parse to closed week, got %v %v", hours, err)
	}
}
