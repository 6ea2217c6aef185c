package square

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMalformedPayload = errors.New("malformed webhook payload")

// Envelope is a webhook notification classified once at the boundary.
// Payment and Refund are nil when the event carries neither form.
type Envelope struct {
	EventID string
	Type    string
	Payment *PaymentRef
	Refund  *RefundRef
}

// PaymentRef holds either the inline payment or the id to fetch it by.
type PaymentRef struct {
	Inline *Payment
	ID     string
}

type RefundRef struct {
	Inline *Refund
	ID     string
}

type rawEnvelope struct {
	EventID    string  `json:"event_id"`
	ID         string  `json:"id"`
	EventIDAlt string  `json:"eventId"`
	Type       string  `json:"type"`
	Data       rawData `json:"data"`
}

type rawData struct {
	Type   string    `json:"type"`
	ID     string    `json:"id"`
	Object rawObject `json:"object"`
}

type rawObject struct {
	Payment      *Payment `json:"payment"`
	PaymentID    string   `json:"payment_id"`
	PaymentIDAlt string   `json:"paymentId"`
	Refund       *Refund  `json:"refund"`
	RefundID     string   `json:"refund_id"`
	RefundIDAlt  string   `json:"refundId"`
}

func ParseEnvelope(body []byte) (Envelope, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(body, &raw); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	env := Envelope{
		EventID: firstNonEmpty(raw.EventID, raw.ID, raw.EventIDAlt),
		Type:    raw.Type,
	}
	if env.EventID == "" || env.Type == "" {
		return Envelope{}, fmt.Errorf("%w: missing event id or type", ErrMalformedPayload)
	}

	obj := raw.Data.Object
	switch {
	case obj.Payment != nil && obj.Payment.ID != "":
		env.Payment = &PaymentRef{Inline: obj.Payment}
	case firstNonEmpty(obj.PaymentID, obj.PaymentIDAlt) != "":
		env.Payment = &PaymentRef{ID: firstNonEmpty(obj.PaymentID, obj.PaymentIDAlt)}
	case raw.Data.Type == "payment" && raw.Data.ID != "":
		env.Payment = &PaymentRef{ID: raw.Data.ID}
	}

	switch {
	case obj.Refund != nil && obj.Refund.ID != "":
		env.Refund = &RefundRef{Inline: obj.Refund}
	case firstNonEmpty(obj.RefundID, obj.RefundIDAlt) != "":
		env.Refund = &RefundRef{ID: firstNonEmpty(obj.RefundID, obj.RefundIDAlt)}
	case raw.Data.Type == "refund" && raw.Data.ID != "":
		env.Refund = &RefundRef{ID: raw.Data.ID}
	}

	return env, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
