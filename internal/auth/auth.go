// Package auth signs outbound gateway requests with RSA-PSS.
//
// The signed message is timestamp_ms + method + path, hashed with SHA-256.
// Signatures travel in the X-Gateway-Key, X-Gateway-Timestamp and
// X-Gateway-Signature headers.
package auth

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	HeaderKey       = "X-Gateway-Key"
	HeaderTimestamp = "X-Gateway-Timestamp"
	HeaderSignature = "X-Gateway-Signature"
)

var pssOptions = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash}

// Signer holds the key used to sign requests.
type Signer struct {
	KeyID      string
	PrivateKey *rsa.PrivateKey

	now func() time.Time
}

// NewSigner creates a signer from an in-memory key.
func NewSigner(keyID string, key *rsa.PrivateKey) *Signer {
	return &Signer{KeyID: keyID, PrivateKey: key, now: time.Now}
}

// LoadSigner reads a PEM private key from disk.
func LoadSigner(keyID, privateKeyPath string) (*Signer, error) {
	if keyID == "" {
		return nil, errors.New("key id is required")
	}
	if privateKeyPath == "" {
		return nil, errors.New("private key path is required")
	}

	key, err := LoadPrivateKey(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}
	return NewSigner(keyID, key), nil
}

// LoadPrivateKey loads an RSA private key in PKCS#8 or PKCS#1 PEM form.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("failed to decode PEM block")
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("key is not an RSA private key")
		}
		return rsaKey, nil
	}

	rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return rsaKey, nil
}

// SignRequest returns the headers authenticating method and path.
func (s *Signer) SignRequest(method, path string) (map[string]string, error) {
	ts := s.now().UnixMilli()

	hashed := digest(ts, method, path)
	sig, err := rsa.SignPSS(rand.Reader, s.PrivateKey, crypto.SHA256, hashed[:], pssOptions)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}

	return map[string]string{
		HeaderKey:       s.KeyID,
		HeaderTimestamp: strconv.FormatInt(ts, 10),
		HeaderSignature: base64.StdEncoding.EncodeToString(sig),
	}, nil
}

// Verify checks a signature produced by SignRequest.
func Verify(pub *rsa.PublicKey, timestamp, method, path, signature string) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}

	hashed := digest(ts, method, path)
	return rsa.VerifyPSS(pub, crypto.SHA256, hashed[:], sig, pssOptions)
}

func digest(timestampMs int64, method, path string) [32]byte {
	return sha256.Sum256([]byte(strconv.FormatInt(timestampMs, 10) + method + path))
}
