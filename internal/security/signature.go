package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const SignaturePrefix = "sha256="

var (
	ErrMissingSignature = errors.New(
		"the configuration contains a secret for this repository, but the request was not signed",
	)
	ErrUnexpectedSignature = errors.New(
		"the request was signed, but the configuration contains no secret for this repository",
	)
	ErrSignatureMismatch  = errors.New("secret failed to authorise the payload")
	ErrMalformedSignature = errors.New("signature is not a valid hex digest")
)

// ValidateSignature checks payload against a hex encoded HMAC-SHA256 signature.
// A nil secret means none is configured, a nil signature means the request was
// not signed.
func ValidateSignature(payload, secret, signature []byte) error {
	switch {
	case secret == nil && signature == nil:
		return nil
	case signature == nil:
		return ErrMissingSignature
	case secret == nil:
		return ErrUnexpectedSignature
	}

	decoded := make([]byte, hex.DecodedLen(len(signature)))
	if _, err := hex.Decode(decoded, signature); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedSignature, err)
	}

	if !hmac.Equal(decoded, Sign(secret, payload)) {
		return ErrSignatureMismatch
	}
	return nil
}

// Sign computes the raw HMAC-SHA256 of payload keyed with secret.
func Sign(secret, payload []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return mac.Sum(nil)
}

// SignatureHeader formats the signature the way it is sent in X-Hub-Signature-256.
func SignatureHeader(secret, payload []byte) string {
	return SignaturePrefix + hex.EncodeToString(Sign(secret, payload))
}

// ParseSignatureHeader strips the algorithm prefix from a signature header
// value. An absent header yields nil.
func ParseSignatureHeader(value string) []byte {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return []byte(strings.TrimPrefix(value, SignaturePrefix))
}
