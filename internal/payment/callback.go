package payment

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Callback is the envelope Daraja posts to CallBackURL.
type Callback struct {
	Body struct {
		STKCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

// STKCallback reports the outcome of one checkout request.  ResultCode 0
// means the customer paid; anything else (1032 cancelled by user, 1037
// timeout, ...) means no money moved.
type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

// CallbackMetadata is only present on success.
type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

// CallbackItem values are numbers or strings depending on Name.
type CallbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

// Succeeded reports whether the customer completed the payment.
func (c STKCallback) Succeeded() bool { return c.ResultCode == 0 }

// Item returns the metadata value for name as a string.
func (c STKCallback) Item(name string) (string, bool) {
	if c.CallbackMetadata == nil {
		return "", false
	}
	for _, it := range c.CallbackMetadata.Item {
		if it.Name != name || len(it.Value) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(it.Value, &s); err == nil {
			return s, true
		}
		var n json.Number
		if err := json.Unmarshal(it.Value, &n); err == nil {
			return n.String(), true
		}
		return string(it.Value), true
	}
	return "", false
}

// Receipt is the M-Pesa receipt number of a successful payment.
func (c STKCallback) Receipt() string {
	r, _ := c.Item("MpesaReceiptNumber")
	return r
}

// Amount is the paid amount reported by the provider, if any.
func (c STKCallback) Amount() (uint64, bool) {
	s, ok := c.Item("Amount")
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return uint64(f), true
}

// Validate checks the fields the reconciler depends on.
func (c STKCallback) Validate() error {
	if c.CheckoutRequestID == "" {
		return fmt.Errorf("callback without CheckoutRequestID")
	}
	return nil
}
