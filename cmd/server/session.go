package main

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rotisserie/eris"

	"github.com/Simplici0/homebuild/internal/wizard"
)

const (
	wizardCookieName = "homebuild_wizard"
	wizardCookieTTL  = 7 * 24 * time.Hour
)

// sessionCodec signs wizard state into a cookie value. The payload is
// readable by the client but cannot be altered without the secret.
type sessionCodec struct {
	secret []byte
	secure bool
}

func newSessionCodec(secret string, secure bool) (*sessionCodec, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, eris.Wrap(err, "generate session key")
		}
	}
	return &sessionCodec{secret: key, secure: secure}, nil
}

func (c *sessionCodec) sign(payload string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	_, _ = mac.Write([]byte(payload))
	return mac.Sum(nil)
}

func (c *sessionCodec) encode(st wizard.State) (string, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return "", eris.Wrap(err, "encode wizard state")
	}
	payload := base64.RawURLEncoding.EncodeToString(raw)
	return payload + "." + hex.EncodeToString(c.sign(payload)), nil
}

func (c *sessionCodec) decode(value string) (wizard.State, bool) {
	payload, signature, ok := strings.Cut(value, ".")
	if !ok {
		return wizard.State{}, false
	}

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return wizard.State{}, false
	}
	if !hmac.Equal(provided, c.sign(payload)) {
		return wizard.State{}, false
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil || len(raw) == 0 {
		return wizard.State{}, false
	}

	var st wizard.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return wizard.State{}, false
	}
	return st, true
}

func (c *sessionCodec) setCookie(w http.ResponseWriter, st wizard.State) error {
	value, err := c.encode(st)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     wizardCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(wizardCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
