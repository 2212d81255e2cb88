package payment

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/tidwall/gjson"

	"github.com/smarttravel/checkout-backend/internal/models"
)

// Supported gateway names
const (
	GatewayVNPay   = "vnpay"
	GatewayMoMo    = "momo"
	GatewayPayable = "payable"
	GatewayStripe  = "stripe"
)

var (
	// ErrUnknownGateway is returned for a gateway with no vocabulary
	ErrUnknownGateway = errors.New("unknown payment gateway")

	// ErrMalformedStatus is returned when a status body is not JSON
	ErrMalformedStatus = errors.New("malformed payment status response")
)

// Outcome is a status response mapped onto the session state machine
type Outcome struct {
	Status models.PaymentStatus
	// Code is the gateway's own value that produced Status
	Code string
	// Known is false when Code is not in the vocabulary and Status
	// defaulted to PENDING.
	Known bool
}

// Vocabulary maps one gateway's status codes to PaymentStatus
type Vocabulary struct {
	Gateway string
	Code    func(body string) string
	Success []string
	Failed  []string
	Pending []string
}

// firstOf reads the first path present in the body
func firstOf(paths ...string) func(string) string {
	return func(body string) string {
		for _, p := range paths {
			if r := gjson.Get(body, p); r.Exists() {
				return strings.ToUpper(strings.TrimSpace(r.String()))
			}
		}
		return ""
	}
}

// stripeCode folds a Checkout Session's status and payment_status into one
// code. Expired sessions are failed whatever their payment status says.
func stripeCode(body string) string {
	status := gjson.Get(body, "status").String()
	if status == string(stripe.CheckoutSessionStatusExpired) {
		return strings.ToUpper(status)
	}
	return strings.ToUpper(status + "/" + gjson.Get(body, "payment_status").String())
}

func stripePair(s stripe.CheckoutSessionStatus, p stripe.CheckoutSessionPaymentStatus) string {
	return strings.ToUpper(string(s) + "/" + string(p))
}

var vocabularies = map[string]Vocabulary{
	GatewayVNPay: {
		Gateway: GatewayVNPay,
		Code:    firstOf("vnp_ResponseCode", "code"),
		Success: []string{"00"},
		Failed:  []string{"24", "11", "51", "65", "75", "79", "99"},
		Pending: []string{"01", ""},
	},
	GatewayMoMo: {
		Gateway: GatewayMoMo,
		Code:    firstOf("resultCode"),
		Success: []string{"0", "9000"},
		Failed:  []string{"1003", "1004", "1005", "1006", "1017", "1026", "4001"},
		Pending: []string{"1000", "7000", "7002"},
	},
	GatewayPayable: {
		Gateway: GatewayPayable,
		Code:    firstOf("paymentStatus", "data.paymentStatus"),
		Success: []string{"SUCCESS"},
		Failed:  []string{"FAILED", "CANCELLED"},
		Pending: []string{"PENDING", "PROCESSING"},
	},
	GatewayStripe: {
		Gateway: GatewayStripe,
		Code:    stripeCode,
		Success: []string{
			stripePair(stripe.CheckoutSessionStatusComplete, stripe.CheckoutSessionPaymentStatusPaid),
			stripePair(stripe.CheckoutSessionStatusComplete, stripe.CheckoutSessionPaymentStatusNoPaymentRequired),
		},
		Failed: []string{strings.ToUpper(string(stripe.CheckoutSessionStatusExpired))},
		Pending: []string{
			stripePair(stripe.CheckoutSessionStatusOpen, stripe.CheckoutSessionPaymentStatusUnpaid),
			stripePair(stripe.CheckoutSessionStatusComplete, stripe.CheckoutSessionPaymentStatusUnpaid),
		},
	},
}

// Lookup returns the vocabulary for a gateway name
func Lookup(gateway string) (Vocabulary, error) {
	v, ok := vocabularies[strings.ToLower(strings.TrimSpace(gateway))]
	if !ok {
		return Vocabulary{}, fmt.Errorf("%w: %q", ErrUnknownGateway, gateway)
	}
	return v, nil
}

// Gateways lists every gateway with a vocabulary, sorted
func Gateways() []string {
	out := make([]string, 0, len(vocabularies))
	for name := range vocabularies {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Normalize maps a raw status body. Codes outside the table keep the
// session pending.
func (v Vocabulary) Normalize(body []byte) (Outcome, error) {
	if !gjson.ValidBytes(body) {
		return Outcome{}, ErrMalformedStatus
	}
	code := v.Code(string(body))

	for _, group := range []struct {
		status models.PaymentStatus
		codes  []string
	}{
		{models.PaymentSuccess, v.Success},
		{models.PaymentFailed, v.Failed},
		{models.PaymentPending, v.Pending},
	} {
		for _, c := range group.codes {
			if c == code {
				return Outcome{Status: group.status, Code: code, Known: true}, nil
			}
		}
	}
	return Outcome{Status: models.PaymentPending, Code: code}, nil
}

// Normalize maps a raw status body for the named gateway
func Normalize(gateway string, body []byte) (Outcome, error) {
	v, err := Lookup(gateway)
	if err != nil {
		return Outcome{}, err
	}
	return v.Normalize(body)
}
