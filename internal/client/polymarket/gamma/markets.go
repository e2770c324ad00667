package polymarketgamma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type ListMarketsParams struct {
	Active       *bool
	Closed       *bool
	Limit        int
	Offset       int
	ConditionIDs []string
}

type Tag struct {
	ID    FlexString `json:"id"`
	Label string     `json:"label"`
	Slug  string     `json:"slug"`
}

type Market struct {
	ID            FlexString `json:"id"`
	ConditionID   string     `json:"conditionId"`
	Question      string     `json:"question"`
	Description   string     `json:"description"`
	Slug          string     `json:"slug"`
	StartDate     string     `json:"startDate"`
	EndDate       string     `json:"endDate"`
	Image         string     `json:"image"`
	Icon          string     `json:"icon"`
	Category      string     `json:"category"`
	Outcomes      Outcomes   `json:"outcomes"`
	OutcomePrices FloatList  `json:"outcomePrices"`
	Volume        FlexFloat  `json:"volume"`
	VolumeNum     *FlexFloat `json:"volumeNum"`
	Liquidity     FlexFloat  `json:"liquidity"`
	LiquidityNum  *FlexFloat `json:"liquidityNum"`
	Active        bool       `json:"active"`
	Closed        bool       `json:"closed"`
	Archived      bool       `json:"archived"`
	Tags          []Tag      `json:"tags"`

	Raw json.RawMessage `json:"_raw,omitempty"`
}

// PricedOutcome is an outcome with a known price.
type PricedOutcome struct {
	Name  string
	Price float64
}

// PricedOutcomes pairs outcome names with prices, taking an inline price first and
// outcomePrices by position otherwise. Outcomes without a price are dropped.
func (m Market) PricedOutcomes() []PricedOutcome {
	out := make([]PricedOutcome, 0, len(m.Outcomes))
	for i, o := range m.Outcomes {
		switch {
		case o.Price != nil:
			out = append(out, PricedOutcome{Name: o.Name, Price: *o.Price})
		case i < len(m.OutcomePrices):
			out = append(out, PricedOutcome{Name: o.Name, Price: m.OutcomePrices[i]})
		}
	}
	return out
}

func (m Market) VolumeValue() float64 {
	if m.VolumeNum != nil {
		return float64(*m.VolumeNum)
	}
	return float64(m.Volume)
}

func (m Market) LiquidityValue() float64 {
	if m.LiquidityNum != nil {
		return float64(*m.LiquidityNum)
	}
	return float64(m.Liquidity)
}

// Time parses an ISO timestamp as returned by Gamma; empty or bad input yields nil.
func Time(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func (c *Client) ListMarkets(ctx context.Context, params ListMarketsParams) ([]Market, error) {
	query := url.Values{}
	if params.Active != nil {
		query.Set("active", strconv.FormatBool(*params.Active))
	}
	if params.Closed != nil {
		query.Set("closed", strconv.FormatBool(*params.Closed))
	}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Offset > 0 {
		query.Set("offset", strconv.Itoa(params.Offset))
	}
	if len(params.ConditionIDs) > 0 {
		query.Set("condition_ids", strings.Join(params.ConditionIDs, ","))
	}
	body, err := c.doRequest(ctx, "/markets", query)
	if err != nil {
		return nil, err
	}
	return decodeMarkets(body)
}

// FlexString accepts a JSON string or number.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	*s = FlexString(string(b))
	return nil
}

// FlexFloat accepts a JSON number or a numeric string. Unparseable strings decode as 0.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = FlexFloat(parsed)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

type Outcome struct {
	Name  string   `json:"name"`
	Price *float64 `json:"price,omitempty"`
}

// Outcomes accepts a list of names, a string holding such a list, or a list of
// {name, price} objects.
type Outcomes []Outcome

func (o *Outcomes) UnmarshalJSON(b []byte) error {
	inner, err := unquoteArray(b)
	if err != nil || inner == nil {
		*o = nil
		return err
	}
	var names []string
	if err := json.Unmarshal(inner, &names); err == nil {
		out := make(Outcomes, len(names))
		for i, n := range names {
			out[i] = Outcome{Name: n}
		}
		*o = out
		return nil
	}
	var objs []struct {
		Name  string     `json:"name"`
		Price *FlexFloat `json:"price"`
	}
	if err := json.Unmarshal(inner, &objs); err != nil {
		return fmt.Errorf("outcomes: %w", err)
	}
	out := make(Outcomes, len(objs))
	for i, obj := range objs {
		out[i] = Outcome{Name: obj.Name}
		if obj.Price != nil {
			p := float64(*obj.Price)
			out[i].Price = &p
		}
	}
	*o = out
	return nil
}

// FloatList accepts arrays of numbers or numeric strings, optionally stringified.
type FloatList []float64

func (l *FloatList) UnmarshalJSON(b []byte) error {
	inner, err := unquoteArray(b)
	if err != nil || inner == nil {
		*l = nil
		return err
	}
	var raw []FlexFloat
	if err := json.Unmarshal(inner, &raw); err != nil {
		return fmt.Errorf("float list: %w", err)
	}
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = float64(v)
	}
	*l = out
	return nil
}

func unquoteArray(b []byte) ([]byte, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil, nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		return []byte(s), nil
	}
	return b, nil
}
