// Package auth provides Kalshi API authentication using RSA-PSS signatures.
package auth

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Signer signs outgoing requests with a Kalshi API key.
type Signer struct {
	KeyID      string          // API key ID from the Kalshi dashboard
	PrivateKey *rsa.PrivateKey // RSA private key for signing
}

// NewSigner loads a signer from a key ID and a PEM private key file.
func NewSigner(keyID, privateKeyPath string) (*Signer, error) {
	if keyID == "" {
		return nil, fmt.Errorf("API key ID is required")
	}
	if privateKeyPath == "" {
		return nil, fmt.Errorf("private key path is required")
	}

	privateKey, err := LoadPrivateKey(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}

	return &Signer{
		KeyID:      keyID,
		PrivateKey: privateKey,
	}, nil
}

// LoadPrivateKey loads an RSA private key from a PEM file.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	// Try PKCS#8 first (newer format)
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("key is not an RSA private key")
		}
		return rsaKey, nil
	}

	// Fall back to PKCS#1 (older format)
	rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return rsaKey, nil
}

// Sign adds the KALSHI-ACCESS-* authentication headers to req.
// The signed path must exclude the query string.
func (s *Signer) Sign(req *http.Request) error {
	timestampMs := time.Now().UnixMilli()

	signature, err := s.signature(timestampMs, req.Method, req.URL.Path)
	if err != nil {
		return err
	}

	req.Header.Set("KALSHI-ACCESS-KEY", s.KeyID)
	req.Header.Set("KALSHI-ACCESS-TIMESTAMP", strconv.FormatInt(timestampMs, 10))
	req.Header.Set("KALSHI-ACCESS-SIGNATURE", signature)
	return nil
}

// signature creates an RSA-PSS signature over timestamp_ms + method + path.
func (s *Signer) signature(timestampMs int64, method, path string) (string, error) {
	message := fmt.Sprintf("%d%s%s", timestampMs, method, path)
	hashed := sha256.Sum256([]byte(message))

	sig, err := rsa.SignPSS(
		rand.Reader,
		s.PrivateKey,
		crypto.SHA256,
		hashed[:],
		&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash},
	)
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}

	return base64.StdEncoding.EncodeToString(sig), nil
}
