package config

import (
    "strings"
    "time"
)

// MpesaConfig carries the Daraja (M-Pesa STK push) credentials and endpoints.
// BaseURL defaults to the Safaricom sandbox.  CallbackBase is the public URL
// of this service; the provider posts results to CallbackBase + "/pay/callback/<bookingId>".
type MpesaConfig struct {
    BaseURL          string
    ConsumerKey      string
    ConsumerSecret   string
    ShortCode        string
    Passkey          string
    CallbackBase     string
    AccountReference string
    TransactionDesc  string
    Timeout          time.Duration
    TokenCacheKey    string
}

// LoadMpesaConfig reads MPESA_* variables.  Missing credentials are not fatal
// here: the payment client reports ErrPaymentInitiation at call time instead,
// so the catalogue and admin surfaces keep working without a provider account.
func LoadMpesaConfig() MpesaConfig {
    return MpesaConfig{
        BaseURL:          strings.TrimRight(envStr("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"), "/"),
        ConsumerKey:      envStr("MPESA_CONSUMER_KEY", ""),
        ConsumerSecret:   envStr("MPESA_CONSUMER_SECRET", ""),
        ShortCode:        envStr("MPESA_SHORTCODE", "174379"),
        Passkey:          envStr("MPESA_PASSKEY", ""),
        CallbackBase:     strings.TrimRight(envStr("MPESA_CALLBACK_BASE", "http://localhost:3000"), "/"),
        AccountReference: envStr("MPESA_ACCOUNT_REFERENCE", "CarRental"),
        TransactionDesc:  envStr("MPESA_TRANSACTION_DESC", "Car Booking Payment"),
        Timeout:          envDur("MPESA_TIMEOUT", 15*time.Second),
        TokenCacheKey:    envStr("MPESA_TOKEN_CACHE_KEY", "mpesa:oauth_token"),
    }
}
