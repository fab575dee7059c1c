package gossip

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shortwave/go-shortwave/internal/errors"
	"github.com/shortwave/go-shortwave/internal/radio/freq"
	"github.com/shortwave/go-shortwave/internal/radio/types"
)

func TestEncodeAdvertiseEnvelope(t *testing.T) {
	ad := &types.StationAdvertisement{
		MessageID:    uuid.New(),
		StationID:    uuid.New(),
		Frequency:    freq.MustParse("100.5"),
		Name:         "Jazz FM",
		StreamURL:    "http://example.com/stream",
		AdvertisedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		TTLSeconds:   60,
	}
	raw, err := EncodeAdvertise(ad)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != TypeAdvertise {
		t.Fatalf("type = %q, want %q", env.Type, TypeAdvertise)
	}

	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Advertise == nil || msg.Release != nil {
		t.Fatalf("expected advertise variant")
	}
	if msg.Advertise.Frequency.Key() != "100.5" {
		t.Fatalf("frequency = %q", msg.Advertise.Frequency.Key())
	}
	if msg.Advertise.MessageID != ad.MessageID {
		t.Fatalf("message_id changed across the wire")
	}
}

func TestEncodeReleaseEnvelope(t *testing.T) {
	rel := &types.ReleaseRequest{
		StationID: uuid.New(),
		Frequency: freq.MustParse("88.1"),
		Reason:    "signing off",
		Signature: "c2ln",
	}
	raw, err := EncodeRelease(rel)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	msg, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Release == nil || msg.Advertise != nil {
		t.Fatalf("expected release variant")
	}
	if msg.Release.Reason != "signing off" || msg.Release.Signature != "c2ln" {
		t.Fatalf("release fields lost: %+v", msg.Release)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", "{{{"},
		{"unknown tag", `{"type":"Nuke","data":{}}`},
		{"bad advertise payload", `{"type":"Advertise","data":[1,2,3]}`},
		{"bad release payload", `{"type":"Release","data":"nope"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.raw))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errors.IsInput(err) {
				t.Fatalf("expected input error, got %v", err)
			}
		})
	}
}
