package polymarketgamma

import (
	"encoding/json"
	"fmt"
)

// decodeMarkets keeps each element's raw JSON next to the typed market so the
// sync job can persist fields that are not modeled here.
func decodeMarkets(body []byte) ([]Market, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		var wrapped struct {
			Data []json.RawMessage `json:"data"`
		}
		if werr := json.Unmarshal(body, &wrapped); werr != nil || wrapped.Data == nil {
			return nil, fmt.Errorf("decode markets: %w", err)
		}
		raws = wrapped.Data
	}
	out := make([]Market, 0, len(raws))
	for i, raw := range raws {
		var m Market
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode market %d: %w", i, err)
		}
		m.Raw = append(json.RawMessage(nil), raw...)
		out = append(out, m)
	}
	return out, nil
}
