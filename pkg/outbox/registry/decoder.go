package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/unicampus/campus-backend/pkg/enums"
)

// ErrNoDecoder means no decoder exists for the event type and envelope version.
var ErrNoDecoder = errors.New("no decoder registered")

type decodeFunc func(payload json.RawMessage) (any, error)

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// Decoders maps (event type, envelope version) to a payload decoder so that
// consumers can keep reading old versions while producers move on.
type Decoders struct {
	mu    sync.RWMutex
	byKey map[decoderKey]decodeFunc
}

func NewDecoders() *Decoders {
	return &Decoders{byKey: make(map[decoderKey]decodeFunc)}
}

// Register decodes eventType@version payloads into T. Registering the same
// pair twice is a wiring bug and panics.
func Register[T any](d *Decoders, eventType enums.OutboxEventType, version int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := decoderKey{eventType: eventType, version: version}
	if _, dup := d.byKey[key]; dup {
		panic(fmt.Sprintf("registry: decoder for %s@v%d registered twice", eventType, version))
	}
	d.byKey[key] = func(raw json.RawMessage) (any, error) {
		var payload T
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, err
		}
		return payload, nil
	}
}

// Decode returns the typed payload for eventType@version.
func (d *Decoders) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	d.mu.RLock()
	decode, ok := d.byKey[decoderKey{eventType: eventType, version: version}]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s@v%d", ErrNoDecoder, eventType, version)
	}
	if trimmed := bytes.TrimSpace(payload); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%s@v%d: empty payload", eventType, version)
	}
	decoded, err := decode(payload)
	if err != nil {
		return nil, fmt.Errorf("%s@v%d: %w", eventType, version, err)
	}
	return decoded, nil
}
