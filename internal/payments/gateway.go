package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"

	"github.com/christlifeministries/portal/internal/models"
	"github.com/shopspring/decimal"
)

var (
	errMissingSigningSecret  = errors.New("payments: signing secret is required")
	errMissingCallbackSecret = errors.New("payments: callback secret is required")
)

const paidMarker = "paid"

type GatewayConfig struct {
	CheckoutURL string
	// SigningSecret signs the outbound checkout request.
	SigningSecret string
	// CallbackSecret is shared with the provider and signs its return.
	CallbackSecret string
	// ReturnBaseURL is the portal address the provider redirects back to.
	ReturnBaseURL string
}

// Gateway signs checkout redirects and verifies the provider's return signature.
type Gateway struct {
	checkoutURL    string
	secret         []byte
	callbackSecret []byte
	returnBase     string
}

// ProviderReturn is what the provider appends to the return URL once the
// payer has paid.
type ProviderReturn struct {
	Reference string
	Signature string
}

func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	if strings.TrimSpace(cfg.SigningSecret) == "" {
		return nil, errMissingSigningSecret
	}
	if strings.TrimSpace(cfg.CallbackSecret) == "" {
		return nil, errMissingCallbackSecret
	}
	return &Gateway{
		checkoutURL:    cfg.CheckoutURL,
		secret:         []byte(cfg.SigningSecret),
		callbackSecret: []byte(cfg.CallbackSecret),
		returnBase:     strings.TrimRight(cfg.ReturnBaseURL, "/"),
	}, nil
}

// Sign returns the checkout request signature,
// hex(HMAC-SHA256(signing secret, "<id>:<amount 2dp>:<currency>")).
func (g *Gateway) Sign(paymentID string, amount decimal.Decimal, currency string) string {
	return sign(g.secret, paymentID+":"+amount.StringFixed(2)+":"+strings.ToUpper(currency))
}

// SignReturn is the signature the provider attaches to a paid return:
// hex(HMAC-SHA256(callback secret, "<id>:<amount 2dp>:<currency>:paid:<reference>")).
func (g *Gateway) SignReturn(paymentID string, amount decimal.Decimal, currency, reference string) string {
	return sign(g.callbackSecret, returnMessage(paymentID, amount, currency, reference))
}

// Verify checks a provider return in constant time. A return without a
// provider reference never verifies.
func (g *Gateway) Verify(payment models.Payment, providerReturn ProviderReturn) bool {
	reference := strings.TrimSpace(providerReturn.Reference)
	if reference == "" {
		return false
	}
	provided, err := hex.DecodeString(strings.TrimSpace(providerReturn.Signature))
	if err != nil || len(provided) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, g.callbackSecret)
	mac.Write([]byte(returnMessage(payment.ID, payment.Amount, payment.Currency, reference)))
	return hmac.Equal(provided, mac.Sum(nil))
}

// ReturnURL is the portal confirmation page for a payment.
func (g *Gateway) ReturnURL(paymentID string) string {
	return g.returnBase + "/payments/" + url.PathEscape(paymentID)
}

// PaymentURL builds the signed redirect to the hosted checkout.
func (g *Gateway) PaymentURL(payment models.Payment) string {
	query := url.Values{}
	query.Set("payment_id", payment.ID)
	query.Set("amount", payment.Amount.StringFixed(2))
	query.Set("currency", strings.ToUpper(payment.Currency))
	query.Set("type", string(payment.PaymentType))
	query.Set("return_url", g.ReturnURL(payment.ID))
	query.Set("signature", g.Sign(payment.ID, payment.Amount, payment.Currency))
	separator := "?"
	if strings.Contains(g.checkoutURL, "?") {
		separator = "&"
	}
	return g.checkoutURL + separator + query.Encode()
}

func returnMessage(paymentID string, amount decimal.Decimal, currency, reference string) string {
	return strings.Join([]string{
		paymentID, amount.StringFixed(2), strings.ToUpper(currency), paidMarker, strings.TrimSpace(reference),
	}, ":")
}

func sign(secret []byte, message string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
