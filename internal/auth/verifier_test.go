package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func testVerifier() Verifier {
	return Verifier{
		Secret:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:    "resto-id",
		ClockSkew: time.Second,
		Now:       func() time.Time { return testNow },
	}
}

func TestVerifierRoundTrip(t *testing.T) {
	v := testVerifier()
	token, err := v.Issue("cust-1", RoleAdmin, time.Minute)
	require.NoError(t, err)

	claims, err := v.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "cust-1", claims.Subject)
	require.Equal(t, RoleAdmin, claims.Role)
}

func TestVerifierDefaultsRoleToCustomer(t *testing.T) {
	v := testVerifier()
	token, err := v.Issue("cust-1", "", time.Minute)
	require.NoError(t, err)
	claims, err := v.Parse(token)
	require.NoError(t, err)
	require.Equal(t, RoleCustomer, claims.Role)
}

func TestVerifierRejects(t *testing.T) {
	v := testVerifier()

	t.Run("expired", func(t *testing.T) {
		token, err := v.Issue("cust-1", "", time.Minute)
		require.NoError(t, err)
		later := v
		later.Now = func() time.Time { return testNow.Add(time.Hour) }
		_, err = later.Parse(token)
		require.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := v
		other.Issuer = "someone-else"
		token, err := other.Issue("cust-1", "", time.Minute)
		require.NoError(t, err)
		_, err = v.Parse(token)
		require.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := v
		other.Secret = []byte("another-secret-another-secret-xx")
		token, err := other.Issue("cust-1", "", time.Minute)
		require.NoError(t, err)
		_, err = v.Parse(token)
		require.Error(t, err)
	})

	t.Run("other algorithm", func(t *testing.T) {
		tok, err := jwt.NewBuilder().Subject("cust-1").Issuer("resto-id").Expiration(testNow.Add(time.Minute)).Build()
		require.NoError(t, err)
		signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS512, v.Secret))
		require.NoError(t, err)
		_, err = v.Parse(string(signed))
		require.Error(t, err)
	})

	t.Run("missing subject", func(t *testing.T) {
		token, err := v.Issue("", "", time.Minute)
		require.NoError(t, err)
		_, err = v.Parse(token)
		require.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.Parse("not-a-token")
		require.Error(t, err)
		_, err = v.Parse("  ")
		require.Error(t, err)
	})
}
