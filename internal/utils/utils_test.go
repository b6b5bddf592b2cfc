package utils

import (
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "golang.org/x/crypto/bcrypt"
)

func TestSessionTokenRoundTrip(t *testing.T) {
    tok, err := NewSessionToken("secret", 42, "jane@example.com", "admin", time.Hour)
    require.NoError(t, err)
    assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Exp, 5*time.Second)

    claims, err := ParseSessionToken("secret", tok.Token)
    require.NoError(t, err)
    assert.Equal(t, uint64(42), claims.ID)
    assert.Equal(t, "jane@example.com", claims.Email)
    assert.Equal(t, "admin", claims.Role)
    assert.Equal(t, "42", claims.Subject)
}

func TestParseSessionTokenRejects(t *testing.T) {
    good, err := NewSessionToken("secret", 1, "a@example.com", "user", time.Hour)
    require.NoError(t, err)
    expired, err := NewSessionToken("secret", 1, "a@example.com", "user", -time.Minute)
    require.NoError(t, err)
    none, err := jwt.NewWithClaims(jwt.SigningMethodNone, SessionClaims{
        ID: 1,
        RegisteredClaims: jwt.RegisteredClaims{
            ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
        },
    }).SignedString(jwt.UnsafeAllowNoneSignatureType)
    require.NoError(t, err)
    noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{ID: 1}).SignedString([]byte("secret"))
    require.NoError(t, err)

    cases := map[string]struct{ secret, raw string }{
        "wrong secret": {"other", good.Token},
        "expired":      {"secret", expired.Token},
        "alg none":     {"secret", none},
        "no exp":       {"secret", noExp},
        "garbage":      {"secret", "not.a.jwt"},
    }
    for name, tc := range cases {
        t.Run(name, func(t *testing.T) {
            _, err := ParseSessionToken(tc.secret, tc.raw)
            assert.ErrorIs(t, err, ErrInvalidToken)
        })
    }
}

func TestHashPassword(t *testing.T) {
    hash, err := HashPassword("hunter22", bcrypt.MinCost)
    require.NoError(t, err)
    assert.True(t, VerifyPassword(hash, "hunter22"))
    assert.False(t, VerifyPassword(hash, "hunter23"))

    // out of range cost falls back to the default
    hash, err = HashPassword("hunter22", 99)
    require.NoError(t, err)
    cost, err := bcrypt.Cost([]byte(hash))
    require.NoError(t, err)
    assert.Equal(t, bcrypt.DefaultCost, cost)
}
