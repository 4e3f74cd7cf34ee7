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

// Package envelope implements the wire codec for clipcore's primary
// transport: the encrypted-frame textual framing and the JSON control
// frames exchanged during handshake and connection bookkeeping.
package envelope

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/appconnect-x/clipcore/crypto"
	"github.com/appconnect-x/clipcore/internal/errs"
)

// ControlType enumerates the recognized control frame discriminators.
type ControlType string

const (
	TypeKeyExchange        ControlType = "key_exchange"
	TypeKeyExchangeAck     ControlType = "key_exchange_ack"
	TypeErrorReport        ControlType = "error_report"
	TypeConnectionStatus   ControlType = "connection_status"
	TypeClipboardSyncResult ControlType = "clipboard_sync_result"
)

// KeyExchange is the client->server session key wrap frame.
type KeyExchange struct {
	Type         ControlType `json:"type"`
	EncryptedKey string      `json:"encrypted_key"`
}

// KeyExchangeAck is the server's handshake response.
type KeyExchangeAck struct {
	Type    ControlType `json:"type"`
	Status  string      `json:"status"` // "ok" | "error"
	Message string      `json:"message,omitempty"`
}

// ErrorReport surfaces a failure over the control channel without
// terminating the sync engine.
type ErrorReport struct {
	Type      ControlType            `json:"type"`
	ErrorType string                 `json:"error_type"`
	Message   string                 `json:"message"`
	Timestamp int64                  `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// ConnectionStatus is an informational control frame.
type ConnectionStatus struct {
	Type      ControlType            `json:"type"`
	Status    string                 `json:"status"`
	Timestamp int64                  `json:"timestamp"`
	Stats     map[string]interface{} `json:"stats,omitempty"`
}

// ClipboardSyncResult reports the outcome of an inbound clipboard apply.
type ClipboardSyncResult struct {
	Type        ControlType `json:"type"`
	Success     bool        `json:"success"`
	ClipboardID string      `json:"clipboard_id"`
	Message     string      `json:"message"`
	Timestamp   int64       `json:"timestamp"`
}

// discriminator is used only to sniff the "type" field of an arbitrary
// control frame before decoding into its concrete shape.
type discriminator struct {
	Type ControlType `json:"type"`
}

// frameSeparator is the delimiter between the base64 IV and the base64
// ciphertext-with-tag in an encrypted frame.
const frameSeparator = "|"

// EncodeEncrypted renders iv and ciphertextWithTag as the wire form
// b64(iv) + "|" + b64(ciphertext_with_tag) using the standard base64
// alphabet with padding.
func EncodeEncrypted(iv, ciphertextWithTag []byte) string {
	return base64.StdEncoding.EncodeToString(iv) + frameSeparator + base64.StdEncoding.EncodeToString(ciphertextWithTag)
}

// DecodeEncrypted parses an encrypted frame, accepting both padded and
// unpadded base64 input on either side of the separator.
func DecodeEncrypted(frame string) (iv, ciphertextWithTag []byte, err error) {
	parts := strings.SplitN(frame, frameSeparator, 2)
	if len(parts) != 2 {
		return nil, nil, errs.New(errs.CodeDecryptAuth, "malformed encrypted frame: missing separator", nil)
	}

	iv, err = decodeBase64Flexible(parts[0])
	if err != nil {
		return nil, nil, errs.New(errs.CodeDecryptAuth, "malformed IV encoding", err)
	}
	ciphertextWithTag, err = decodeBase64Flexible(parts[1])
	if err != nil {
		return nil, nil, errs.New(errs.CodeDecryptAuth, "malformed ciphertext encoding", err)
	}
	return iv, ciphertextWithTag, nil
}

func decodeBase64Flexible(s string) ([]byte, error) {
	if b, err := base64.URLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	if b, err := base64.RawURLEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// SealText encrypts plaintext under key and returns the wire-ready
// encrypted frame.
func SealText(key []byte, plaintext []byte) (string, error) {
	iv, ciphertext, err := crypto.Encrypt(key, plaintext)
	if err != nil {
		return "", err
	}
	return EncodeEncrypted(iv, ciphertext), nil
}

// OpenText decrypts a wire-form encrypted frame under key.
func OpenText(key []byte, frame string) ([]byte, error) {
	iv, ciphertext, err := DecodeEncrypted(frame)
	if err != nil {
		return nil, err
	}
	return crypto.Decrypt(key, iv, ciphertext)
}

// IsEncryptedFrame classifies a received buffer per spec §4.B: a frame
// containing the separator that does not parse as JSON is treated as
// encrypted; everything else is a control-frame candidate.
func IsEncryptedFrame(buf string) bool {
	if !strings.Contains(buf, frameSeparator) {
		return false
	}
	var probe json.RawMessage
	return json.Unmarshal([]byte(buf), &probe) != nil
}

// ParseControlFrame decodes buf into one of the recognized control frame
// types. Unknown "type" values return that type with a nil frame and a nil
// error so the caller can log and ignore per spec; malformed JSON returns an
// error so the caller can drop and log it.
func ParseControlFrame(buf string) (ControlType, interface{}, error) {
	var disc discriminator
	if err := json.Unmarshal([]byte(buf), &disc); err != nil {
		return "", nil, errs.New(errs.CodePolicyViolation, "malformed control frame", err)
	}

	switch disc.Type {
	case TypeKeyExchange:
		var f KeyExchange
		if err := json.Unmarshal([]byte(buf), &f); err != nil {
			return "", nil, errs.New(errs.CodePolicyViolation, "malformed key_exchange frame", err)
		}
		return disc.Type, f, nil
	case TypeKeyExchangeAck:
		var f KeyExchangeAck
		if err := json.Unmarshal([]byte(buf), &f); err != nil {
			return "", nil, errs.New(errs.CodePolicyViolation, "malformed key_exchange_ack frame", err)
		}
		return disc.Type, f, nil
	case TypeErrorReport:
		var f ErrorReport
		if err := json.Unmarshal([]byte(buf), &f); err != nil {
			return "", nil, errs.New(errs.CodePolicyViolation, "malformed error_report frame", err)
		}
		return disc.Type, f, nil
	case TypeConnectionStatus:
		var f ConnectionStatus
		if err := json.Unmarshal([]byte(buf), &f); err != nil {
			return "", nil, errs.New(errs.CodePolicyViolation, "malformed connection_status frame", err)
		}
		return disc.Type, f, nil
	case TypeClipboardSyncResult:
		var f ClipboardSyncResult
		if err := json.Unmarshal([]byte(buf), &f); err != nil {
			return "", nil, errs.New(errs.CodePolicyViolation, "malformed clipboard_sync_result frame", err)
		}
		return disc.Type, f, nil
	default:
		// Unknown types are logged by the caller and ignored.
		return disc.Type, nil, nil
	}
}

// MarshalControlFrame serializes any control frame value to its JSON wire form.
func MarshalControlFrame(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", errs.New(errs.CodePolicyViolation, "failed to marshal control frame", err)
	}
	return string(b), nil
}
