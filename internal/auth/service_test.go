package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewService(nil, "traderoom", []byte("test-secret"), time.Hour)
	token, err := svc.signToken("user-42")
	require.NoError(t, err)

	subject, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", subject)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewService(nil, "traderoom", []byte("secret-a"), time.Hour)
	verifier := NewService(nil, "traderoom", []byte("secret-b"), time.Hour)

	token, err := issuer.signToken("user-42")
	require.NoError(t, err)

	_, err = verifier.ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsWrongIssuer(t *testing.T) {
	issuer := NewService(nil, "other-app", []byte("secret"), time.Hour)
	verifier := NewService(nil, "traderoom", []byte("secret"), time.Hour)

	token, err := issuer.signToken("user-42")
	require.NoError(t, err)

	_, err = verifier.ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	svc := NewService(nil, "traderoom", []byte("secret"), -time.Minute)
	token, err := svc.signToken("user-42")
	require.NoError(t, err)

	_, err = svc.ParseToken(token)
	assert.Error(t, err)
}
