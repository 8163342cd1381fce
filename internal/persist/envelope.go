package persist

import (
	"bytes"
	"encoding/json"
	"fmt"

	"harvestcart/internal/model"
)

// Cart envelope versions:
//
//	0: bare JSON array of items (legacy, unversioned)
//	1: bare {"items":[...],"total":n} object (unversioned)
//	2: {"version":2,"payload":{"items":[...],"total":n}}
const CartVersion = 2

type envelope struct {
	Version int             `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

// migrations[v] lifts a version v payload to version v+1.
var migrations = map[int]func(json.RawMessage) (json.RawMessage, error){
	0: func(raw json.RawMessage) (json.RawMessage, error) {
		var items []model.CartItem
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		if items == nil {
			items = []model.CartItem{}
		}
		return json.Marshal(model.Cart{Items: items, Total: model.ComputeTotal(items)})
	},
	1: func(raw json.RawMessage) (json.RawMessage, error) { return raw, nil },
}

// Migrate lifts payload from version from to CartVersion.
func Migrate(from int, payload json.RawMessage) (json.RawMessage, error) {
	if from > CartVersion || from < 0 {
		return nil, fmt.Errorf("%w: unsupported cart version %d", ErrCorrupt, from)
	}
	for v := from; v < CartVersion; v++ {
		step, ok := migrations[v]
		if !ok {
			return nil, fmt.Errorf("%w: no migration from version %d", ErrCorrupt, v)
		}
		next, err := step(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: migrate v%d: %v", ErrCorrupt, v, err)
		}
		payload = next
	}
	return payload, nil
}

// DecodeCart reads any known cart shape and returns a normalized current cart:
// lines with qty <= 0 are dropped and the total is recomputed.
func DecodeCart(data []byte) (model.Cart, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return model.Cart{}, fmt.Errorf("%w: empty value", ErrCorrupt)
	}
	version, payload, err := sniff(data)
	if err != nil {
		return model.Cart{}, err
	}
	payload, err = Migrate(version, payload)
	if err != nil {
		return model.Cart{}, err
	}
	var c model.Cart
	if err := json.Unmarshal(payload, &c); err != nil {
		return model.Cart{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	items := make([]model.CartItem, 0, len(c.Items))
	for _, it := range c.Items {
		if it.Qty > 0 {
			items = append(items, it)
		}
	}
	return model.Cart{Items: items, Total: model.ComputeTotal(items)}, nil
}

func sniff(data []byte) (int, json.RawMessage, error) {
	switch data[0] {
	case '[':
		return 0, json.RawMessage(data), nil
	case '{':
	default:
		return 0, nil, fmt.Errorf("%w: unexpected JSON value", ErrCorrupt)
	}
	var head struct {
		Version *int            `json:"version"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if head.Version == nil {
		return 1, json.RawMessage(data), nil
	}
	if len(head.Payload) == 0 {
		return 0, nil, fmt.Errorf("%w: envelope without payload", ErrCorrupt)
	}
	return *head.Version, head.Payload, nil
}

// EncodeCart always writes the current envelope.
func EncodeCart(c model.Cart) ([]byte, error) {
	if c.Items == nil {
		c.Items = []model.CartItem{}
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Version: CartVersion, Payload: payload})
}
