// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed opens the encrypted key material in a stream grant.
//
// The backend never returns stream keys in the clear. Two sealing
// formats are accepted:
//
//   - "age:" followed by standard base64 of an age file encrypted to
//     the agent's X25519 recipient. Used when the agent was provisioned
//     with an identity file.
//   - "<nonce hex>:<ciphertext hex>", XChaCha20-Poly1305 under a key
//     derived with HKDF-SHA256 from a secret shared with the backend.
//     This is the format older backends emit.
//
// Values in neither format are returned unchanged, which is what
// development backends send.
package sealed

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/spatialtrace/spatialtrace/lib/schema/xr"
)

const agePrefix = "age:"

var hkdfInfo = []byte("spatialtrace.grant.credentials.v1")

// ErrNoKey is returned when a sealed value arrives but the Keyring has
// no key for its format.
var ErrNoKey = errors.New("no key configured for sealed credential")

// Keyring holds the keys able to open grant credentials. The zero
// value opens only unsealed values.
type Keyring struct {
	identities []age.Identity
	shared     []byte
}

// NewKeyring builds a Keyring. identities may be nil; sharedSecret may
// be empty.
func NewKeyring(identities []age.Identity, sharedSecret []byte) *Keyring {
	keyring := &Keyring{identities: identities}
	if len(sharedSecret) > 0 {
		keyring.shared = deriveKey(sharedSecret)
	}
	return keyring
}

// ParseIdentities reads age identities in the format age-keygen writes.
func ParseIdentities(r io.Reader) ([]age.Identity, error) {
	identities, err := age.ParseIdentities(r)
	if err != nil {
		return nil, fmt.Errorf("parsing age identities: %w", err)
	}
	return identities, nil
}

// Open returns the plaintext of a sealed value.
func (k *Keyring) Open(value string) (string, error) {
	if encoded, ok := strings.CutPrefix(value, agePrefix); ok {
		return k.openAge(encoded)
	}
	nonceHex, dataHex, ok := strings.Cut(value, ":")
	if !ok || !isHex(nonceHex) || !isHex(dataHex) || len(nonceHex) != 2*chacha20poly1305.NonceSizeX {
		return value, nil
	}
	if k == nil || k.shared == nil {
		return "", ErrNoKey
	}
	nonce, _ := hex.DecodeString(nonceHex)
	data, _ := hex.DecodeString(dataHex)
	aead, err := chacha20poly1305.NewX(k.shared)
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}
	plaintext, err := aead.Open(nil, nonce, data, nil)
	if err != nil {
		return "", fmt.Errorf("opening sealed credential: %w", err)
	}
	return string(plaintext), nil
}

func (k *Keyring) openAge(encoded string) (string, error) {
	if k == nil || len(k.identities) == 0 {
		return "", ErrNoKey
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decoding sealed credential: %w", err)
	}
	reader, err := age.Decrypt(bytes.NewReader(raw), k.identities...)
	if err != nil {
		return "", fmt.Errorf("decrypting sealed credential: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("reading sealed credential: %w", err)
	}
	return string(plaintext), nil
}

// OpenGrant returns grant with its key fields opened.
func (k *Keyring) OpenGrant(grant xr.StreamGrant) (xr.StreamGrant, error) {
	accessKeyID, err := k.Open(grant.AccessKeyID)
	if err != nil {
		return xr.StreamGrant{}, fmt.Errorf("access key id: %w", err)
	}
	secretKey, err := k.Open(grant.SecretKey)
	if err != nil {
		return xr.StreamGrant{}, fmt.Errorf("secret key: %w", err)
	}
	grant.AccessKeyID = accessKeyID
	grant.SecretKey = secretKey
	return grant, nil
}

// SealAge encrypts plaintext to the given age recipients (age1...).
func SealAge(plaintext string, recipientKeys ...string) (string, error) {
	if len(recipientKeys) == 0 {
		return "", errors.New("at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return "", fmt.Errorf("parsing recipient %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}
	var buffer bytes.Buffer
	writer, err := age.Encrypt(&buffer, recipients...)
	if err != nil {
		return "", fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := io.WriteString(writer, plaintext); err != nil {
		return "", fmt.Errorf("encrypting: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalizing age encryption: %w", err)
	}
	return agePrefix + base64.StdEncoding.EncodeToString(buffer.Bytes()), nil
}

// SealShared encrypts plaintext in the nonce:ciphertext format under
// sharedSecret.
func SealShared(plaintext string, sharedSecret []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(deriveKey(sharedSecret))
	if err != nil {
		return "", fmt.Errorf("creating cipher: %w", err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(nonce) + ":" + hex.EncodeToString(sealed), nil
}

func deriveKey(secret []byte) []byte {
	key := make([]byte, chacha20poly1305.KeySize)
	reader := hkdf.New(sha256.New, secret, nil, hkdfInfo)
	if _, err := io.ReadFull(reader, key); err != nil {
		panic("sealed: hkdf: " + err.Error())
	}
	return key
}

func isHex(s string) bool {
	if s == "" || len(s)%2 != 0 {
		return false
	}
	for _, r := range s {
		if !('0' <= r && r <= '9' || 'a' <= r && r <= 'f' || 'A' <= r && r <= 'F') {
			return false
		}
	}
	return true
}
