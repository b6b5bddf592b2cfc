// Package payment is the client for the Safaricom Daraja API: OAuth token
// acquisition and Lipa na M-Pesa Online (STK push) initiation, plus the
// callback payload the provider posts back.
package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/car-rental-booking/internal/config"
)

// ErrPaymentInitiation wraps every network or provider failure.
var ErrPaymentInitiation = errors.New("payment initiation failed")

// ErrInvalidPhone is returned for numbers that cannot be turned into the
// 2547XXXXXXXX / 2541XXXXXXXX form the provider expects.
var ErrInvalidPhone = errors.New("invalid phone number")

// nairobi is EAT (UTC+3, no DST); Daraja timestamps are in local time.
var nairobi = time.FixedZone("EAT", 3*60*60)

// STKRequest is the processrequest body.
type STKRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            uint64 `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// STKResponse is the synchronous acknowledgment.  Raw keeps the exact bytes
// so the API can hand them back to the client unchanged.
type STKResponse struct {
	MerchantRequestID   string          `json:"MerchantRequestID"`
	CheckoutRequestID   string          `json:"CheckoutRequestID"`
	ResponseCode        string          `json:"ResponseCode"`
	ResponseDescription string          `json:"ResponseDescription"`
	CustomerMessage     string          `json:"CustomerMessage"`
	Raw                 json.RawMessage `json:"-"`
}

// TokenCache stores the OAuth access token between calls.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, token string, ttl time.Duration)
}

// Client talks to Daraja.  It is safe for concurrent use.
type Client struct {
	cfg   config.MpesaConfig
	http  *http.Client
	cache TokenCache
	now   func() time.Time
}

// NewClient builds a client.  httpClient may be nil (a client with
// cfg.Timeout is created); cache may be nil (a token is fetched per call).
func NewClient(cfg config.MpesaConfig, httpClient *http.Client, cache TokenCache) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{cfg: cfg, http: httpClient, cache: cache, now: time.Now}
}

// Timestamp formats t as YYYYMMDDHHMMSS in Nairobi time.
func Timestamp(t time.Time) string { return t.In(nairobi).Format("20060102150405") }

// Password is base64(shortcode + passkey + timestamp).
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

// NormalizePhone converts 07XXXXXXXX, 01XXXXXXXX, +2547XXXXXXXX and
// 2547XXXXXXXX into 2547XXXXXXXX.
func NormalizePhone(raw string) (string, error) {
	p := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(raw))
	p = strings.TrimPrefix(p, "+")
	switch {
	case len(p) == 10 && strings.HasPrefix(p, "0"):
		p = "254" + p[1:]
	case len(p) == 9 && (p[0] == '7' || p[0] == '1'):
		p = "254" + p
	}
	if len(p) != 12 || !strings.HasPrefix(p, "254") {
		return "", ErrInvalidPhone
	}
	if _, err := strconv.ParseUint(p, 10, 64); err != nil {
		return "", ErrInvalidPhone
	}
	return p, nil
}

// CallbackURL is where the provider reports the outcome for bookingID.
func (c *Client) CallbackURL(bookingID uint64) string {
	return fmt.Sprintf("%s/pay/callback/%d", c.cfg.CallbackBase, bookingID)
}

// InitiatePayment obtains a bearer token and submits an STK push for
// amount against bookingID.  Any failure is wrapped in ErrPaymentInitiation.
func (c *Client) InitiatePayment(ctx context.Context, phone string, amount, bookingID uint64) (*STKResponse, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentInitiation, err)
	}
	ts := Timestamp(c.now())
	reqBody := STKRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.Passkey, ts),
		Timestamp:         ts,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.CallbackURL(bookingID),
		AccountReference:  fmt.Sprintf("%s-%d", c.cfg.AccountReference, bookingID),
		TransactionDesc:   c.cfg.TransactionDesc,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentInitiation, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentInitiation, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentInitiation, err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrPaymentInitiation, err)
	}
	if res.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: provider status %d: %s", ErrPaymentInitiation, res.StatusCode, truncate(raw, 256))
	}
	var out STKResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrPaymentInitiation, err)
	}
	if out.ResponseCode != "0" || out.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: provider response code %q: %s", ErrPaymentInitiation, out.ResponseCode, out.ResponseDescription)
	}
	out.Raw = raw
	return &out, nil
}

type oauthResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// accessToken returns a cached token or fetches a new one with HTTP Basic
// consumer credentials.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.cfg.ConsumerKey == "" || c.cfg.ConsumerSecret == "" {
		return "", errors.New("mpesa consumer credentials are not configured")
	}
	if c.cache != nil {
		if tok, ok := c.cache.Get(ctx, c.cfg.TokenCacheKey); ok {
			return tok, nil
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)
	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("oauth request: %w", err)
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("oauth read: %w", err)
	}
	if res.StatusCode/100 != 2 {
		return "", fmt.Errorf("oauth status %d: %s", res.StatusCode, truncate(raw, 256))
	}
	var tok oauthResponse
	if err := json.Unmarshal(raw, &tok); err != nil {
		return "", fmt.Errorf("oauth decode: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("oauth response without access_token")
	}
	if c.cache != nil {
		// Daraja tokens live 3599s; refresh a minute early.
		secs, _ := strconv.Atoi(tok.ExpiresIn)
		if ttl := time.Duration(secs)*time.Second - time.Minute; ttl > 0 {
			c.cache.Set(ctx, c.cfg.TokenCacheKey, tok.AccessToken, ttl)
		}
	}
	return tok.AccessToken, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
