package events

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validChange() EventChange {
	return EventChange{
		Action: ActionCreate,
		Event: Event{
			EventID:     "ev-1",
			Coefficient: decimal.RequireFromString("1.50"),
			Deadline:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			State:       StateNew,
			Version:     1,
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := validChange()

	body, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(body)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.Action != msg.Action {
		t.Errorf("action = %q, want %q", got.Action, msg.Action)
	}
	if got.EventID != msg.EventID {
		t.Errorf("event_id = %q, want %q", got.EventID, msg.EventID)
	}
	if !got.Coefficient.Equal(msg.Coefficient) {
		t.Errorf("coefficient = %s, want %s", got.Coefficient, msg.Coefficient)
	}
	if !got.Deadline.Equal(msg.Deadline) {
		t.Errorf("deadline = %v, want %v", got.Deadline, msg.Deadline)
	}
	if got.State != msg.State || got.Version != msg.Version {
		t.Errorf("state/version = %v/%d, want %v/%d", got.State, got.Version, msg.State, msg.Version)
	}
}

func TestEncodeSerializesDecimalAsFixedPointString(t *testing.T) {
	body, err := validChange().Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(body), `"coefficient":"1.5"`) && !strings.Contains(string(body), `"coefficient":"1.50"`) {
		t.Errorf("coefficient not serialized as quoted decimal: %s", body)
	}
}

func TestEncodeNormalizesDeadlineToUTC(t *testing.T) {
	msk := time.FixedZone("MSK", 3*3600)
	msg := validChange()
	msg.Deadline = time.Date(2026, 3, 1, 15, 0, 0, 0, msk) // 12:00 UTC

	body, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := Decode(body)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Deadline.Location() != time.UTC {
		t.Errorf("deadline location = %v, want UTC", got.Deadline.Location())
	}
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if !got.Deadline.Equal(want) {
		t.Errorf("deadline = %v, want %v", got.Deadline, want)
	}
}

func TestDecodeRejectsMalformedBodies(t *testing.T) {
	good := validChange()

	cases := map[string]func() []byte{
		"not json": func() []byte { return []byte("{not json") },
		"unknown action": func() []byte {
			m := good
			m.Action = "destroy"
			b, _ := m.Encode()
			return b
		},
		"unknown state": func() []byte {
			m := good
			m.State = "MAYBE"
			b, _ := m.Encode()
			return b
		},
		"zero coefficient": func() []byte {
			m := good
			m.Coefficient = decimal.Zero
			b, _ := m.Encode()
			return b
		},
		"negative coefficient": func() []byte {
			m := good
			m.Coefficient = decimal.RequireFromString("-1.50")
			b, _ := m.Encode()
			return b
		},
		"too many decimal places": func() []byte {
			m := good
			m.Coefficient = decimal.RequireFromString("1.505")
			b, _ := m.Encode()
			return b
		},
		"missing event id": func() []byte {
			m := good
			m.EventID = ""
			b, _ := m.Encode()
			return b
		},
		"zero version": func() []byte {
			m := good
			m.Version = 0
			b, _ := m.Encode()
			return b
		},
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Decode(body()); err == nil {
				t.Errorf("Decode accepted %s", name)
			}
		})
	}
}

func TestStateTerminal(t *testing.T) {
	if StateNew.Terminal() {
		t.Error("NEW must not be terminal")
	}
	if !StateFinishedWin.Terminal() || !StateFinishedLose.Terminal() {
		t.Error("FINISHED_* must be terminal")
	}
}
