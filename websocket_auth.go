package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"portalshift/engine/internal/auth"
)

const tokenLeeway = 2 * time.Second

var errMissingToken = errors.New("missing auth token")

type websocketAuthenticator interface {
	// Authenticate returns the subject the connection acts as. An empty subject
	// lets the hub assign an anonymous id.
	Authenticate(r *http.Request) (string, error)
}

type allowAllAuthenticator struct{}

func (allowAllAuthenticator) Authenticate(*http.Request) (string, error) {
	return "", nil
}

type tokenAuthenticator struct {
	verifier *auth.HMACTokenVerifier
}

// newWebsocketAuthenticator returns the allow-all authenticator when secret is
// blank, otherwise one that requires an HS256 token signed with secret.
func newWebsocketAuthenticator(secret string) (websocketAuthenticator, error) {
	if strings.TrimSpace(secret) == "" {
		return allowAllAuthenticator{}, nil
	}
	verifier, err := auth.NewHMACTokenVerifier(secret, tokenLeeway)
	if err != nil {
		return nil, err
	}
	return &tokenAuthenticator{verifier: verifier}, nil
}

func (a *tokenAuthenticator) Authenticate(r *http.Request) (string, error) {
	token := bearerToken(r)
	if token == "" {
		return "", errMissingToken
	}
	claims, err := a.verifier.Verify(token)
	if err != nil {
		return "", err
	}
	return "ws:" + claims.Subject, nil
}

// bearerToken reads the token from the query string, which browsers can set on
// websocket dials, or from an Authorization header.
func bearerToken(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
