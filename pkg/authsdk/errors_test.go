package authsdk

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOAuth2ErrorWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	ErrInvalidClient.WriteError(rec)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
	require.JSONEq(t, `{"error":"invalid_client","error_description":"client authentication failed"}`, rec.Body.String())
}

func TestOAuth2ErrorIs(t *testing.T) {
	err := ErrInvalidGrant.WithDescription("code expired")
	require.True(t, errors.Is(err, ErrInvalidGrant))
	require.False(t, errors.Is(err, ErrInvalidClient))
	require.Equal(t, "invalid_grant: code expired", err.Error())
	require.Equal(t, "the provided grant is invalid or expired", ErrInvalidGrant.Description)
}

func TestParseErrorResponse(t *testing.T) {
	require.NoError(t, ParseErrorResponse(http.StatusOK, nil))

	err := ParseErrorResponse(http.StatusBadRequest, []byte(`{"error":"slow_down"}`))
	require.ErrorIs(t, err, ErrSlowDown)

	err = ParseErrorResponse(http.StatusBadGateway, []byte("<html>"))
	var oe *OAuth2Error
	require.ErrorAs(t, err, &oe)
	require.Equal(t, ErrorCodeServerError, oe.Code)
	require.Equal(t, http.StatusBadGateway, oe.StatusCode)
}
