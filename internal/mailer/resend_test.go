package mailer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResendSend(t *testing.T) {
	var (
		gotAuth string
		gotKey  string
		gotBody resendEmail
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("Idempotency-Key")
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"email_123"}`))
	}))
	defer srv.Close()

	client := NewResend("re_key", WithBaseURL(srv.URL))
	require.NoError(t, client.Ready())

	id, err := client.Send(context.Background(), &Message{
		From:           "Estimates <estimates@example.com>",
		To:             []string{"office@example.com"},
		BCC:            []string{"audit@example.com"},
		ReplyTo:        "jane@example.com",
		Subject:        "New estimate",
		HTML:           "<p>hi</p>",
		Text:           "hi",
		IdempotencyKey: "abc/notify",
	})
	require.NoError(t, err)

	assert.Equal(t, "email_123", id)
	assert.Equal(t, "Bearer re_key", gotAuth)
	assert.Equal(t, "abc/notify", gotKey)
	assert.Equal(t, []string{"office@example.com"}, gotBody.To)
	assert.Equal(t, []string{"audit@example.com"}, gotBody.BCC)
	assert.Empty(t, gotBody.CC)
	assert.Equal(t, "jane@example.com", gotBody.ReplyTo)
	assert.Equal(t, "New estimate", gotBody.Subject)
}

func TestResendNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"invalid from"}`))
	}))
	defer srv.Close()

	_, err := NewResend("re_key", WithBaseURL(srv.URL)).Send(context.Background(), &Message{To: []string{"a@b.co"}})
	require.Error(t, err)

	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "resend", de.Provider)
	assert.Equal(t, http.StatusUnprocessableEntity, de.StatusCode)
	assert.Contains(t, de.Body, "invalid from")
	assert.Contains(t, err.Error(), "422")
}

func TestResendReadyWithoutKey(t *testing.T) {
	assert.ErrorIs(t, NewResend("").Ready(), ErrMissingAPIKey)
}
