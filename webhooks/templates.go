package webhooks

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-gateways/auth"
	"github.com/goliatone/go-gateways/core"
	"github.com/goliatone/go-gateways/providers/epayco"
	"github.com/goliatone/go-gateways/providers/simplepay"
	"github.com/goliatone/go-gateways/providers/stripeintents"
)

// Template bundles what one gateway needs to have its notifications
// processed.
type Template struct {
	ProviderID  string
	Verifier    Verifier
	Extractor   DeliveryIDExtractor
	Parser      Parser
	Acknowledge Acknowledger
}

// Processor builds a processor that records every verified notification
// through sink.
func (t Template) Processor(ledger DeliveryLedger, sink core.TransactionSink) *Processor {
	handler := NewTransactionHandler(sink, t.Parser)
	handler.Acknowledge = t.Acknowledge
	processor := NewProcessor(t.Verifier, ledger, handler)
	if t.Extractor != nil {
		processor.ExtractID = t.Extractor
	}
	return processor
}

// HeaderHMACVerifier checks an HMAC of the raw body carried in a header.
type HeaderHMACVerifier struct {
	Header    string
	Prefix    string
	Secret    string
	Algorithm auth.HMACAlgorithm
	Encoding  auth.HMACEncoding
}

func (v HeaderHMACVerifier) Verify(_ context.Context, n Notification) error {
	header := n.Header(v.Header)
	if header == "" {
		return fmt.Errorf("webhooks: %s signature header is required", strings.TrimSpace(v.Header))
	}
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("webhooks: signature secret is required")
	}
	signature := strings.TrimSpace(strings.TrimPrefix(header, strings.TrimSpace(v.Prefix)))
	if signature == "" {
		return fmt.Errorf("webhooks: signature value is required")
	}
	algorithm := v.Algorithm
	if algorithm == "" {
		algorithm = auth.HMACSHA256
	}
	expected, err := auth.Sum(algorithm, secret, n.Body)
	if err != nil {
		return err
	}
	decoded, err := decodeSignature(v.Encoding, signature)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(decoded, expected) != 1 {
		return fmt.Errorf("webhooks: signature verification failed")
	}
	return nil
}

func decodeSignature(encoding auth.HMACEncoding, signature string) ([]byte, error) {
	switch auth.HMACEncoding(strings.ToLower(strings.TrimSpace(string(encoding)))) {
	case auth.HMACBase64:
		decoded, err := base64.StdEncoding.DecodeString(signature)
		if err != nil {
			return nil, fmt.Errorf("webhooks: decode base64 signature: %w", err)
		}
		return decoded, nil
	default:
		decoded, err := hex.DecodeString(signature)
		if err != nil {
			return nil, fmt.Errorf("webhooks: decode hex signature: %w", err)
		}
		return decoded, nil
	}
}

type HeaderTokenVerifier struct {
	Header string
	Token  string
}

func (v HeaderTokenVerifier) Verify(_ context.Context, n Notification) error {
	expected := strings.TrimSpace(v.Token)
	if expected == "" {
		return fmt.Errorf("webhooks: verification token is required")
	}
	actual := n.Header(v.Header)
	if actual == "" {
		return fmt.Errorf("webhooks: %s verification header is required", strings.TrimSpace(v.Header))
	}
	if subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) != 1 {
		return fmt.Errorf("webhooks: verification token mismatch")
	}
	return nil
}

// StripeSignatureVerifier checks the Stripe-Signature header: an HMAC-SHA256
// of "<t>.<body>" in any v1 entry, with t inside Tolerance of now.
type StripeSignatureVerifier struct {
	Secret    string
	Tolerance time.Duration
	Now       func() time.Time
}

func (v StripeSignatureVerifier) Verify(_ context.Context, n Notification) error {
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("webhooks: signature secret is required")
	}
	header := n.Header("Stripe-Signature")
	if header == "" {
		return fmt.Errorf("webhooks: Stripe-Signature header is required")
	}
	timestamp := ""
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return fmt.Errorf("webhooks: Stripe-Signature header is malformed")
	}
	seconds, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("webhooks: Stripe-Signature timestamp: %w", err)
	}
	tolerance := v.Tolerance
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	if age := now().Sub(time.Unix(seconds, 0)); age > tolerance || age < -tolerance {
		return fmt.Errorf("webhooks: Stripe-Signature timestamp outside tolerance")
	}
	expected, err := auth.Sum(auth.HMACSHA256, secret, []byte(timestamp+"."), n.Body)
	if err != nil {
		return err
	}
	for _, signature := range signatures {
		decoded, err := hex.DecodeString(signature)
		if err == nil && subtle.ConstantTimeCompare(decoded, expected) == 1 {
			return nil
		}
	}
	return fmt.Errorf("webhooks: signature verification failed")
}

// EPaycoSignatureVerifier checks x_signature of a confirmation, the SHA-256 of
// customer id, p_key, x_ref_payco, x_transaction_id, x_amount and
// x_currency_code joined by "^".
type EPaycoSignatureVerifier struct {
	CustomerID string
	Key        string
}

func (v EPaycoSignatureVerifier) Verify(_ context.Context, n Notification) error {
	if strings.TrimSpace(v.CustomerID) == "" || strings.TrimSpace(v.Key) == "" {
		return fmt.Errorf("webhooks: epayco customer id and key are required")
	}
	values, err := url.ParseQuery(string(n.Body))
	if err != nil {
		return fmt.Errorf("webhooks: decode epayco confirmation: %w", err)
	}
	signature := strings.TrimSpace(values.Get("x_signature"))
	if signature == "" {
		return fmt.Errorf("webhooks: x_signature is required")
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{
		strings.TrimSpace(v.CustomerID),
		strings.TrimSpace(v.Key),
		values.Get("x_ref_payco"),
		values.Get("x_transaction_id"),
		values.Get("x_amount"),
		values.Get("x_currency_code"),
	}, "^")))
	expected := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(strings.ToLower(signature)), []byte(expected)) != 1 {
		return fmt.Errorf("webhooks: signature verification failed")
	}
	return nil
}

func HeaderDeliveryIDExtractor(headers ...string) DeliveryIDExtractor {
	keys := append([]string(nil), headers...)
	return func(n Notification) (string, error) {
		for _, key := range keys {
			if value := n.Header(key); value != "" {
				return value, nil
			}
		}
		return "", fmt.Errorf("webhooks: delivery id is required for dedupe")
	}
}

// UpdateDeliveryIDExtractor derives the delivery id from the parsed update, as
// "<authorization>:<status>". Gateways that resend a status without a
// delivery header dedupe on what they report.
func UpdateDeliveryIDExtractor(parse Parser) DeliveryIDExtractor {
	return func(n Notification) (string, error) {
		if parse == nil {
			return "", fmt.Errorf("webhooks: parser is required")
		}
		update, err := parse(n)
		if err != nil {
			return "", err
		}
		if update.Authorization == "" {
			return "", fmt.Errorf("webhooks: delivery id is required for dedupe")
		}
		return update.Authorization + ":" + strings.ToLower(update.Status), nil
	}
}

func ChainDeliveryIDExtractors(extractors ...DeliveryIDExtractor) DeliveryIDExtractor {
	list := append([]DeliveryIDExtractor(nil), extractors...)
	return func(n Notification) (string, error) {
		var lastErr error
		for _, extractor := range list {
			if extractor == nil {
				continue
			}
			deliveryID, err := extractor(n)
			if err == nil && strings.TrimSpace(deliveryID) != "" {
				return strings.TrimSpace(deliveryID), nil
			}
			if err != nil {
				lastErr = err
			}
		}
		if lastErr != nil {
			return "", lastErr
		}
		return "", fmt.Errorf("webhooks: delivery id is required for dedupe")
	}
}

// UpdateBurstKey keys bursts by the authorization and status a notification
// reports.
func UpdateBurstKey(parse Parser) BurstKeyExtractor {
	return func(n Notification) (string, bool) {
		if parse == nil {
			return "", false
		}
		update, err := parse(n)
		if err != nil || update.Authorization == "" {
			return "", false
		}
		return strings.ToLower(n.ProviderID) + ":" + update.Authorization + ":" + strings.ToLower(update.Status), true
	}
}

// NewSimplePayTemplate handles SimplePay IPN calls. The body is signed like
// the start request, and SimplePay expects the body echoed back with a
// receiveDate and a fresh signature.
func NewSimplePayTemplate(secret string) Template {
	secret = strings.TrimSpace(secret)
	return Template{
		ProviderID: simplepay.ProviderID,
		Verifier: HeaderHMACVerifier{
			Header:    simplepay.SignatureHeader,
			Secret:    secret,
			Algorithm: auth.HMACSHA384,
			Encoding:  auth.HMACBase64,
		},
		Extractor: UpdateDeliveryIDExtractor(ParseSimplePay),
		Parser:    ParseSimplePay,
		Acknowledge: func(_ context.Context, n Notification, now time.Time) (map[string]string, []byte, error) {
			payload := map[string]any{}
			if err := json.Unmarshal(n.Body, &payload); err != nil {
				return nil, nil, fmt.Errorf("webhooks: decode simplepay ipn: %w", err)
			}
			payload["receiveDate"] = now.UTC().Format(time.RFC3339)
			body, err := json.Marshal(payload)
			if err != nil {
				return nil, nil, err
			}
			sum, err := auth.Sum(auth.HMACSHA384, secret, body)
			if err != nil {
				return nil, nil, err
			}
			return map[string]string{
				"Content-Type":            "application/json;charset=utf-8",
				simplepay.SignatureHeader: base64.StdEncoding.EncodeToString(sum),
			}, body, nil
		},
	}
}

// ParseSimplePay reads an IPN body. Only FINISHED is a successful payment.
func ParseSimplePay(n Notification) (Update, error) {
	tree, err := jsonTree(n.Body)
	if err != nil {
		return Update{}, err
	}
	status := strings.ToUpper(core.String(tree, "status"))
	update := Update{
		Action:        core.ActionPurchase,
		Status:        status,
		Success:       status == "FINISHED",
		Message:       "SimplePay " + status,
		Authorization: core.String(tree, "transactionId"),
		OrderID:       core.String(tree, "orderRef"),
		Raw:           tree,
	}
	if !update.Success {
		update.ErrorCode = status
	}
	if update.Authorization == "" || status == "" {
		return Update{}, fmt.Errorf("webhooks: simplepay ipn needs transactionId and status")
	}
	return update, nil
}

// NewStripeTemplate handles Stripe events about payment intents and refunds.
func NewStripeTemplate(secret string) Template {
	return Template{
		ProviderID: stripeintents.ProviderID,
		Verifier:   StripeSignatureVerifier{Secret: strings.TrimSpace(secret)},
		Extractor: func(n Notification) (string, error) {
			tree, err := jsonTree(n.Body)
			if err != nil {
				return "", err
			}
			if id := core.String(tree, "id"); id != "" {
				return id, nil
			}
			return "", fmt.Errorf("webhooks: stripe event id is required")
		},
		Parser: ParseStripe,
	}
}

// ParseStripe maps payment intent and refund events to updates. Other event
// types are ignored.
func ParseStripe(n Notification) (Update, error) {
	tree, err := jsonTree(n.Body)
	if err != nil {
		return Update{}, err
	}
	object := []any{"data", "object"}
	at := func(path ...any) []any {
		return append(append([]any(nil), object...), path...)
	}
	eventType := core.String(tree, "type")
	update := Update{
		Status:        eventType,
		Authorization: core.String(tree, at("id")...),
		OrderID:       core.String(tree, at("metadata", "order_id")...),
		Test:          !core.Bool(tree, "livemode"),
		Raw:           tree,
	}
	switch eventType {
	case "payment_intent.succeeded":
		update.Action = core.ActionPurchase
		update.Success = true
		update.Message = "Payment complete."
	case "payment_intent.payment_failed":
		update.Action = core.ActionPurchase
		update.Message = core.String(tree, at("last_payment_error", "message")...)
		update.ErrorCode = core.FirstString(tree,
			at("last_payment_error", "decline_code"),
			at("last_payment_error", "code"),
		)
	case "payment_intent.amount_capturable_updated":
		update.Action = core.ActionAuthorize
		update.Success = true
		update.Message = "Payment authorized."
	case "payment_intent.canceled":
		update.Action = core.ActionVoid
		update.Success = true
		update.Message = core.FirstString(tree, at("cancellation_reason"))
	case "charge.refunded":
		update.Action = core.ActionRefund
		update.Success = true
		update.Message = "Charge refunded."
		update.Authorization = core.FirstString(tree, at("payment_intent"), at("id"))
	default:
		update.Ignore = true
		return update, nil
	}
	amountPath := at("amount")
	if update.Action == core.ActionRefund {
		amountPath = at("amount_refunded")
	}
	if cents, err := strconv.ParseInt(core.String(tree, amountPath...), 10, 64); err == nil {
		update.Money = core.MoneyFromCents(cents, core.String(tree, at("currency")...))
	}
	return update, nil
}

// NewEPaycoTemplate handles ePayco confirmation calls, form posts signed with
// the customer id and p_key of the merchant panel.
func NewEPaycoTemplate(customerID string, key string) Template {
	return Template{
		ProviderID: epayco.ProviderID,
		Verifier:   EPaycoSignatureVerifier{CustomerID: customerID, Key: key},
		Extractor:  UpdateDeliveryIDExtractor(ParseEPayco),
		Parser:     ParseEPayco,
	}
}

// ParseEPayco reads a confirmation. x_cod_response 1 is accepted; 2 rejected,
// 3 pending and 4 failed are recorded as unsuccessful.
func ParseEPayco(n Notification) (Update, error) {
	values, err := url.ParseQuery(string(n.Body))
	if err != nil {
		return Update{}, fmt.Errorf("webhooks: decode epayco confirmation: %w", err)
	}
	raw := make(map[string]any, len(values))
	for key := range values {
		if key == "x_signature" {
			continue
		}
		raw[key] = values.Get(key)
	}
	code := strings.TrimSpace(values.Get("x_cod_response"))
	update := Update{
		Action:        core.ActionPurchase,
		Status:        code,
		Success:       code == "1",
		Message:       strings.TrimSpace(values.Get("x_response_reason_text")),
		Authorization: strings.TrimSpace(values.Get("x_ref_payco")),
		OrderID:       strings.TrimSpace(values.Get("x_id_invoice")),
		Test:          strings.EqualFold(strings.TrimSpace(values.Get("x_test_request")), "true"),
		Raw:           raw,
	}
	if update.Message == "" {
		update.Message = strings.TrimSpace(values.Get("x_response"))
	}
	if !update.Success {
		update.ErrorCode = code
	}
	if money, err := core.NewMoney(values.Get("x_amount"), values.Get("x_currency_code")); err == nil {
		update.Money = money
	}
	if update.Authorization == "" || code == "" {
		return Update{}, fmt.Errorf("webhooks: epayco confirmation needs x_ref_payco and x_cod_response")
	}
	return update, nil
}

func jsonTree(body []byte) (map[string]any, error) {
	tree, ok := core.ParseBody(body).(map[string]any)
	if !ok || len(tree) == 0 {
		return nil, fmt.Errorf("webhooks: notification body is not a JSON object")
	}
	return tree, nil
}
