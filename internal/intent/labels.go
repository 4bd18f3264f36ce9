// Package intent classifies an utterance into a closed set of support
// intents.
package intent

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownIntent = errors.New("unknown intent")

type Intent int

const (
	Uncertain Intent = iota
	Greeting
	Goodbye
	Thanks
	TrackOrder
	ReturnItem
	PaymentInfo
	RefundRequest
	CancelOrder
	ShippingInfo
	ProductInfo
)

var names = [...]string{
	Uncertain:     "uncertain",
	Greeting:      "greeting",
	Goodbye:       "goodbye",
	Thanks:        "thanks",
	TrackOrder:    "track_order",
	ReturnItem:    "return_item",
	PaymentInfo:   "payment_info",
	RefundRequest: "refund_request",
	CancelOrder:   "cancel_order",
	ShippingInfo:  "shipping_info",
	ProductInfo:   "product_info",
}

// Labels lists every intent a classifier can produce, in a fixed order.
// Uncertain is the gate's sentinel and is not a label.
func Labels() []Intent {
	return []Intent{
		Greeting, Goodbye, Thanks,
		TrackOrder, ReturnItem, PaymentInfo, RefundRequest, CancelOrder,
		ShippingInfo, ProductInfo,
	}
}

func (i Intent) String() string {
	if i < 0 || int(i) >= len(names) {
		return fmt.Sprintf("intent(%d)", int(i))
	}
	return names[i]
}

// Parse maps a dataset or artifact label onto an Intent.
func Parse(s string) (Intent, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range names {
		if name == s && Intent(i) != Uncertain {
			return Intent(i), nil
		}
	}
	return Uncertain, fmt.Errorf("%q: %w", s, ErrUnknownIntent)
}

// IsSmallTalk reports whether the intent is answered with a canned reply
// before entity extraction.
func (i Intent) IsSmallTalk() bool {
	return i == Greeting || i == Goodbye
}

// IsPersonalized reports whether replies for the intent are rendered from
// the user's profile.
func (i Intent) IsPersonalized() bool {
	switch i {
	case TrackOrder, ReturnItem, PaymentInfo, RefundRequest, CancelOrder:
		return true
	}
	return false
}

func (i Intent) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

func (i *Intent) UnmarshalText(text []byte) error {
	if string(text) == names[Uncertain] {
		*i = Uncertain
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Result is one classification. Scores holds every label in Labels and its
// maximum equals Confidence.
type Result struct {
	Intent     Intent             `json:"intent"`
	Confidence float64            `json:"confidence"`
	Scores     map[Intent]float64 `json:"scores"`
}
