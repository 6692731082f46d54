package gateway

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// AuthHandler manages challenge-response authentication for WebSocket
// clients. Single-shot HTTP requests authenticate with the shared secret
// header instead.
type AuthHandler struct {
	sharedSecret string
}

// NewAuthHandler creates a new authentication handler.
func NewAuthHandler(sharedSecret string) *AuthHandler {
	return &AuthHandler{
		sharedSecret: sharedSecret,
	}
}

// GenerateChallenge generates a cryptographically random 32-byte challenge.
func (a *AuthHandler) GenerateChallenge() (string, error) {
	challenge := make([]byte, 32)
	if _, err := rand.Read(challenge); err != nil {
		return "", fmt.Errorf("failed to generate challenge: %w", err)
	}
	return hex.EncodeToString(challenge), nil
}

// VerifySignature verifies an HMAC-SHA256 signature against a challenge.
func (a *AuthHandler) VerifySignature(challenge, signature string) bool {
	h := hmac.New(sha256.New, []byte(a.sharedSecret))
	h.Write([]byte(challenge))
	expected := hex.EncodeToString(h.Sum(nil))

	// Constant-time comparison to prevent timing attacks.
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// HandleAuthResponse processes an authentication response from a client.
func (a *AuthHandler) HandleAuthResponse(client *Client, signature string) AuthResult {
	challenge := client.challengeValue()
	if challenge == "" {
		return AuthResult{
			Event:   "auth.failure",
			Message: "No challenge found",
		}
	}

	if !a.VerifySignature(challenge, signature) {
		if client.failAuth() >= 3 {
			return AuthResult{
				Event:   "auth.failure",
				Message: "Too many failed attempts",
			}
		}
		return AuthResult{
			Event:   "auth.failure",
			Message: "Invalid signature",
		}
	}

	client.completeAuth()

	return AuthResult{
		Event:   "auth.success",
		Success: true,
	}
}
