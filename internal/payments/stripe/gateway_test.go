package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	stripeapi "github.com/stripe/stripe-go/v84"

	"github.com/alopez/store-backend/pkg/db/models"
	"github.com/alopez/store-backend/pkg/enums"
	pkgerrors "github.com/alopez/store-backend/pkg/errors"
)

const testSecret = "whsec_test"

type fakeSettings struct{}

func (fakeSettings) SigningSecret() string { return testSecret }
func (fakeSettings) Currency() string      { return "mxn" }

type fakeSessions struct {
	params *stripeapi.CheckoutSessionParams
	err    error
}

func (f *fakeSessions) New(ctx context.Context, params *stripeapi.CheckoutSessionParams) (*stripeapi.CheckoutSession, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripeapi.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

func newTestGateway(t *testing.T, sessions SessionCreator) *Gateway {
	t.Helper()
	gw, err := NewGateway(GatewayParams{Settings: fakeSettings{}, Sessions: sessions, WebsiteURL: "http://localhost:4242/"})
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	return gw
}

func testOrder() *models.Order {
	return &models.Order{
		ID:         12,
		CustomerID: 3,
		Status:     enums.OrderStatusPending,
		TotalPrice: decimal.RequireFromString("59.98"),
		Items: []models.OrderItem{{
			ProductID:  1,
			UnitPrice:  decimal.RequireFromString("29.99"),
			Quantity:   2,
			TotalPrice: decimal.RequireFromString("59.98"),
			Product:    &models.Product{ID: 1, Name: "Keyboard", Description: "Mechanical"},
		}},
	}
}

func TestCreateCheckoutSessionBuildsParams(t *testing.T) {
	sessions := &fakeSessions{}
	gw := newTestGateway(t, sessions)

	out, err := gw.CreateCheckoutSession(context.Background(), testOrder())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.CheckoutURL != "https://checkout.stripe.com/c/pay/cs_test_1" {
		t.Fatalf("unexpected url %s", out.CheckoutURL)
	}

	p := sessions.params
	if *p.Mode != string(stripeapi.CheckoutSessionModePayment) {
		t.Fatalf("unexpected mode %s", *p.Mode)
	}
	if *p.SuccessURL != "http://localhost:4242/checkout-success?orderId=12" || *p.CancelURL != "http://localhost:4242/checkout-cancel" {
		t.Fatalf("unexpected urls %s %s", *p.SuccessURL, *p.CancelURL)
	}
	if p.PaymentIntentData.Metadata["order_id"] != "12" {
		t.Fatalf("unexpected metadata %v", p.PaymentIntentData.Metadata)
	}
	if len(p.LineItems) != 1 {
		t.Fatalf("expected one line item, got %d", len(p.LineItems))
	}
	li := p.LineItems[0]
	if *li.Quantity != 2 || *li.PriceData.UnitAmount != 2999 || *li.PriceData.Currency != "mxn" {
		t.Fatalf("unexpected line item %+v %+v", li, li.PriceData)
	}
	if *li.PriceData.ProductData.Name != "Keyboard" || *li.PriceData.ProductData.Description != "Mechanical" {
		t.Fatalf("unexpected product data %+v", li.PriceData.ProductData)
	}
}

func TestCreateCheckoutSessionWrapsProviderError(t *testing.T) {
	gw := newTestGateway(t, &fakeSessions{err: errors.New("card_declined")})

	_, err := gw.CreateCheckoutSession(context.Background(), testOrder())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodePayment || typed.Message() != "Payment method used: Stripe" {
		t.Fatalf("expected payment error, got %v", err)
	}
}

func TestToMinorUnits(t *testing.T) {
	cases := map[string]int64{"29.99": 2999, "0.1": 10, "100": 10000, "19.995": 2000}
	for in, want := range cases {
		if got := toMinorUnits(decimal.RequireFromString(in)); got != want {
			t.Fatalf("toMinorUnits(%s) = %d, want %d", in, got, want)
		}
	}
}

func TestParseWebhookRequestMapsStatuses(t *testing.T) {
	gw := newTestGateway(t, &fakeSessions{})

	cases := []struct {
		eventType stripeapi.EventType
		want      enums.OrderStatus
	}{
		{stripeapi.EventTypePaymentIntentSucceeded, enums.OrderStatusPaid},
		{stripeapi.EventTypePaymentIntentPaymentFailed, enums.OrderStatusFailed},
	}
	for _, tc := range cases {
		t.Run(string(tc.eventType), func(t *testing.T) {
			payload, header := signedEvent(t, "evt_1", tc.eventType, map[string]string{"order_id": "1"})
			result, err := gw.ParseWebhookRequest(context.Background(), signatureHeaders(header), payload)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result == nil || result.OrderID != 1 || result.Status != tc.want || result.EventID != "evt_1" {
				t.Fatalf("unexpected result %+v", result)
			}
		})
	}
}

func TestParseWebhookRequestIgnoresOtherEvents(t *testing.T) {
	gw := newTestGateway(t, &fakeSessions{})
	payload, header := signedEvent(t, "evt_2", stripeapi.EventTypeChargeSucceeded, nil)

	result, err := gw.ParseWebhookRequest(context.Background(), signatureHeaders(header), payload)
	if err != nil || result != nil {
		t.Fatalf("expected no result, got %+v %v", result, err)
	}
}

func TestParseWebhookRequestRejectsBadSignature(t *testing.T) {
	gw := newTestGateway(t, &fakeSessions{})
	payload, _ := signedEvent(t, "evt_3", stripeapi.EventTypePaymentIntentSucceeded, map[string]string{"order_id": "1"})

	_, err := gw.ParseWebhookRequest(context.Background(), signatureHeaders("t=1,v1=invalid"), payload)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodePayment || typed.Message() != "Signature verification failed, please check webhook secret." {
		t.Fatalf("expected signature error, got %v", err)
	}
}

func TestParseWebhookRequestRejectsMissingOrderID(t *testing.T) {
	gw := newTestGateway(t, &fakeSessions{})
	for _, meta := range []map[string]string{nil, {"order_id": "abc"}} {
		payload, header := signedEvent(t, "evt_4", stripeapi.EventTypePaymentIntentSucceeded, meta)
		_, err := gw.ParseWebhookRequest(context.Background(), signatureHeaders(header), payload)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Message() != "Could not deserialize Stripe event. Check the SDK and API version." {
			t.Fatalf("expected decode error for %v, got %v", meta, err)
		}
	}
}

func TestParseWebhookRequestAcceptsOlderAPIVersion(t *testing.T) {
	gw := newTestGateway(t, &fakeSessions{})
	payload, sig := signedEventAt(t, "evt_old", stripeapi.EventTypePaymentIntentSucceeded, "2020-08-27", map[string]string{"order_id": "12"})

	result, err := gw.ParseWebhookRequest(context.Background(), signatureHeaders(sig), payload)
	if err != nil {
		t.Fatalf("expected older api version to be accepted, got %v", err)
	}
	if result == nil || result.OrderID != 12 || result.Status != enums.OrderStatusPaid {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestParseWebhookRequestUndecodableSignedPayload(t *testing.T) {
	gw := newTestGateway(t, &fakeSessions{})
	payload := []byte(`{"id":"evt_bad","type":"payment_intent.succeeded","api_version":"2020-08-27","data":{"object":"not-an-intent"}}`)

	_, err := gw.ParseWebhookRequest(context.Background(), signatureHeaders(sign(payload)), payload)
	if err == nil {
		t.Fatal("expected decode error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Message() != msgEventUndecodable {
		t.Fatalf("expected %q, got %v", msgEventUndecodable, err)
	}
}

func TestNewGatewayValidatesParams(t *testing.T) {
	if _, err := NewGateway(GatewayParams{}); err == nil {
		t.Fatal("expected error without settings")
	}
	if _, err := NewGateway(GatewayParams{Settings: fakeSettings{}}); err == nil {
		t.Fatal("expected error without website url")
	}
}

func signatureHeaders(value string) http.Header {
	h := http.Header{}
	h.Set("Stripe-Signature", value)
	return h
}

func signedEvent(t *testing.T, id string, eventType stripeapi.EventType, metadata map[string]string) ([]byte, string) {
	t.Helper()
	return signedEventAt(t, id, eventType, stripeapi.APIVersion, metadata)
}

func signedEventAt(t *testing.T, id string, eventType stripeapi.EventType, apiVersion string, metadata map[string]string) ([]byte, string) {
	t.Helper()
	rawIntent, err := json.Marshal(map[string]any{
		"id":       "pi_" + id,
		"object":   "payment_intent",
		"metadata": metadata,
	})
	if err != nil {
		t.Fatalf("marshal intent: %v", err)
	}
	event := &stripeapi.Event{
		ID:         id,
		Type:       eventType,
		Object:     "event",
		APIVersion: apiVersion,
		Data:       &stripeapi.EventData{Raw: rawIntent},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload, sign(payload)
}

func sign(payload []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
