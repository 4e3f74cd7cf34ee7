// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package crypto provides the cryptographic primitives clipcore's session
// and storage layers build on: AES-256-GCM payload sealing, RSA-OAEP
// session-key wrapping, and canonical SHA-256 fingerprinting.
//
// The algorithms are fixed by the wire protocol, not chosen for library
// fit: AES-256-GCM and RSA-OAEP/SHA-256 are both served directly by the
// standard library, so this package has no third-party dependency.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"time"

	"github.com/appconnect-x/clipcore/internal/errs"
	"github.com/appconnect-x/clipcore/internal/metrics"
)

// KeySize is the length in bytes of an AES-256 session key.
const KeySize = 32

// NonceSize is the length in bytes of a GCM nonce (referred to elsewhere as the "iv").
const NonceSize = 12

// Encrypt seals plaintext under key using AES-256-GCM with a fresh
// 12-byte CSPRNG nonce and no associated data. It returns the nonce and
// the ciphertext with the 128-bit authentication tag appended.
func Encrypt(key, plaintext []byte) (iv []byte, ciphertextWithTag []byte, err error) {
	start := time.Now()
	block, err := aes.NewCipher(key)
	if err != nil {
		metrics.CryptoOperations.WithLabelValues("seal", "error").Inc()
		return nil, nil, errs.New(errs.CodeWrapFail, "invalid AES key", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		metrics.CryptoOperations.WithLabelValues("seal", "error").Inc()
		return nil, nil, errs.New(errs.CodeWrapFail, "failed to init GCM", err)
	}

	iv = make([]byte, NonceSize)
	if _, err := rand.Read(iv); err != nil {
		metrics.CryptoOperations.WithLabelValues("seal", "error").Inc()
		return nil, nil, errs.New(errs.CodeWrapFail, "failed to generate nonce", err)
	}

	ciphertextWithTag = gcm.Seal(nil, iv, plaintext, nil)
	metrics.CryptoOperations.WithLabelValues("seal", "success").Inc()
	metrics.CryptoOperationDuration.WithLabelValues("seal").Observe(time.Since(start).Seconds())
	return iv, ciphertextWithTag, nil
}

// Decrypt opens ciphertextWithTag under key and iv. It fails with
// CodeDecryptAuth if the nonce length is wrong or the authentication tag
// does not verify.
func Decrypt(key, iv, ciphertextWithTag []byte) ([]byte, error) {
	start := time.Now()
	if len(iv) != NonceSize {
		metrics.CryptoOperations.WithLabelValues("open", "auth_fail").Inc()
		return nil, errs.New(errs.CodeDecryptAuth, "invalid nonce length", nil)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		metrics.CryptoOperations.WithLabelValues("open", "error").Inc()
		return nil, errs.New(errs.CodeDecryptAuth, "invalid AES key", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		metrics.CryptoOperations.WithLabelValues("open", "error").Inc()
		return nil, errs.New(errs.CodeDecryptAuth, "failed to init GCM", err)
	}

	plaintext, err := gcm.Open(nil, iv, ciphertextWithTag, nil)
	if err != nil {
		metrics.CryptoOperations.WithLabelValues("open", "auth_fail").Inc()
		return nil, errs.New(errs.CodeDecryptAuth, "authentication tag verification failed", err)
	}

	metrics.CryptoOperations.WithLabelValues("open", "success").Inc()
	metrics.CryptoOperationDuration.WithLabelValues("open").Observe(time.Since(start).Seconds())
	return plaintext, nil
}

// WrapSessionKey wraps keyBytes (the session AEAD key) for peerPublicKey
// using RSA-OAEP with SHA-256 for both the hash and MGF1.
func WrapSessionKey(peerPublicKey *rsa.PublicKey, keyBytes []byte) ([]byte, error) {
	start := time.Now()
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, peerPublicKey, keyBytes, nil)
	if err != nil {
		metrics.CryptoOperations.WithLabelValues("wrap", "error").Inc()
		return nil, errs.New(errs.CodeWrapFail, "RSA-OAEP wrap failed", err)
	}
	metrics.CryptoOperations.WithLabelValues("wrap", "success").Inc()
	metrics.CryptoOperationDuration.WithLabelValues("wrap").Observe(time.Since(start).Seconds())
	return wrapped, nil
}

// UnwrapSessionKey inverts WrapSessionKey. It fails with CodeWrapFail on
// padding error or if the recovered key is not KeySize bytes.
func UnwrapSessionKey(ownPrivateKey *rsa.PrivateKey, wrapped []byte) ([]byte, error) {
	start := time.Now()
	keyBytes, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, ownPrivateKey, wrapped, nil)
	if err != nil {
		metrics.CryptoOperations.WithLabelValues("unwrap", "error").Inc()
		return nil, errs.New(errs.CodeWrapFail, "RSA-OAEP unwrap failed", err)
	}
	if len(keyBytes) != KeySize {
		metrics.CryptoOperations.WithLabelValues("unwrap", "error").Inc()
		return nil, errs.New(errs.CodeWrapFail, "unwrapped key has unexpected length", nil)
	}
	metrics.CryptoOperations.WithLabelValues("unwrap", "success").Inc()
	metrics.CryptoOperationDuration.WithLabelValues("unwrap").Observe(time.Since(start).Seconds())
	return keyBytes, nil
}

// Sha256HexUpper returns the uppercase hex-encoded SHA-256 digest of b.
func Sha256HexUpper(b []byte) string {
	sum := sha256.Sum256(b)
	return toUpperHex(sum[:])
}

// FingerprintOf computes the pinning fingerprint of a certificate as
// "SHA256:" followed by the uppercase hex SHA-256 digest of its DER
// encoding.
func FingerprintOf(cert *x509.Certificate) string {
	return "SHA256:" + Sha256HexUpper(cert.Raw)
}

func toUpperHex(b []byte) string {
	dst := make([]byte, hex.EncodedLen(len(b)))
	hex.Encode(dst, b)
	for i, c := range dst {
		if c >= 'a' && c <= 'f' {
			dst[i] = c - 'a' + 'A'
		}
	}
	return string(dst)
}

// NewSessionKey generates a fresh 32-byte CSPRNG session key.
func NewSessionKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, errs.New(errs.CodeWrapFail, "failed to generate session key", err)
	}
	return key, nil
}
