// Package gossip bridges the registry to the pub/sub mesh: it serializes
// outbound advertisements/releases into tagged JSON envelopes, deserializes
// inbound ones, and dispatches them to the registry. The mesh's own message
// signing (peer authenticity) is orthogonal to the application-level owner
// signatures carried inside the payloads; both must hold.
package gossip

import (
	"encoding/json"
	"fmt"

	"github.com/shortwave/go-shortwave/internal/errors"
	"github.com/shortwave/go-shortwave/internal/radio/types"
)

// Topic names, one per message kind.
const (
	TopicAdvertise = "shortwave/advertise/v1"
	TopicRelease   = "shortwave/release/v1"
)

// Envelope tags.
const (
	TypeAdvertise = "Advertise"
	TypeRelease   = "Release"
)

// Envelope is the wire form: {"type":"Advertise"|"Release","data":{…}}.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Message is the decoded sum type; exactly one field is non-nil.
type Message struct {
	Advertise *types.StationAdvertisement
	Release   *types.ReleaseRequest
}

// EncodeAdvertise wraps ad in an Advertise envelope.
func EncodeAdvertise(ad *types.StationAdvertisement) ([]byte, error) {
	data, err := json.Marshal(ad)
	if err != nil {
		return nil, fmt.Errorf("encode advertisement: %w", err)
	}
	return json.Marshal(Envelope{Type: TypeAdvertise, Data: data})
}

// EncodeRelease wraps rel in a Release envelope.
func EncodeRelease(rel *types.ReleaseRequest) ([]byte, error) {
	data, err := json.Marshal(rel)
	if err != nil {
		return nil, fmt.Errorf("encode release: %w", err)
	}
	return json.Marshal(Envelope{Type: TypeRelease, Data: data})
}

// Decode parses an envelope into the message sum type. Unknown tags and
// malformed payloads are InputErrors; callers drop them with a log line.
func Decode(raw []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, errors.NewInputError("decode.envelope", err)
	}
	switch env.Type {
	case TypeAdvertise:
		var ad types.StationAdvertisement
		if err := json.Unmarshal(env.Data, &ad); err != nil {
			return Message{}, errors.NewInputError("decode.advertisement", err)
		}
		return Message{Advertise: &ad}, nil
	case TypeRelease:
		var rel types.ReleaseRequest
		if err := json.Unmarshal(env.Data, &rel); err != nil {
			return Message{}, errors.NewInputError("decode.release", err)
		}
		return Message{Release: &rel}, nil
	default:
		return Message{}, errors.NewInputError("decode.envelope", fmt.Errorf("unknown type %q", env.Type))
	}
}
