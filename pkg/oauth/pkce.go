package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	// pkceVerifierBytes is the entropy of a code verifier. 64 bytes encode
	// to 86 base64url characters, inside the 43-128 range RFC 7636 allows.
	pkceVerifierBytes = 64

	// stateBytes is the entropy of the state nonce. 32 bytes encode to 43
	// base64url characters, enough for servers that demand at least 32.
	stateBytes = 32
)

// randomURLSafe returns n random bytes base64url-encoded without padding,
// which keeps the result inside the RFC 7636 unreserved character set.
func randomURLSafe(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GeneratePKCE creates a fresh verifier/challenge pair bound by the S256
// transform, ready to put on an authorization request. The weaker plain
// transform is not offered.
func GeneratePKCE() (*PKCEChallenge, error) {
	verifier, challenge, err := GeneratePKCERaw()
	if err != nil {
		return nil, err
	}

	return &PKCEChallenge{
		CodeVerifier:        verifier,
		CodeChallenge:       challenge,
		CodeChallengeMethod: "S256",
	}, nil
}

// GeneratePKCERaw is GeneratePKCE without the struct: it hands back the
// verifier and its S256 challenge as plain strings.
func GeneratePKCERaw() (verifier, challenge string, err error) {
	verifier, err = randomURLSafe(pkceVerifierBytes)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes for PKCE: %w", err)
	}

	return verifier, ChallengeFromVerifier(verifier), nil
}

// ChallengeFromVerifier derives the S256 code challenge for a verifier:
// SHA256 over the verifier's ASCII bytes, base64url-encoded without padding.
// Deterministic; the same verifier always yields the same challenge.
func ChallengeFromVerifier(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// GenerateState creates the anti-CSRF nonce that links an authorization
// response back to the attempt that started it. It is unrelated
// cryptographically to the PKCE verifier.
func GenerateState() (string, error) {
	state, err := randomURLSafe(stateBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	return state, nil
}
