// Package vault seals portal credentials under a user-supplied passphrase
// so they can live in the config file without being readable from it.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLength = 16
	keyLength  = 32
)

// ErrWrongPassphrase is returned by Open when the envelope does not
// authenticate under the derived key.
var ErrWrongPassphrase = errors.New("vault: wrong passphrase or corrupted envelope")

// envelope is the serialized form of a sealed value.
type envelope struct {
	Salt  string `json:"salt"`
	Nonce string `json:"nonce"`
	Data  string `json:"data"`
}

// Vault derives keys from passphrases and seals values with AES-256-GCM.
type Vault struct {
	iterations int
}

// New creates a vault with the given PBKDF2 iteration count.
func New(iterations int) *Vault {
	if iterations <= 0 {
		iterations = 10000
	}
	return &Vault{iterations: iterations}
}

func (v *Vault) deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, v.iterations, keyLength, sha256.New)
}

// Seal encrypts plaintext under the passphrase and returns a compact
// base64 envelope suitable for a config file.
func (v *Vault) Seal(passphrase, plaintext string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("vault: generating salt: %w", err)
	}

	block, err := aes.NewCipher(v.deriveKey(passphrase, salt))
	if err != nil {
		return "", fmt.Errorf("vault: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("vault: creating gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("vault: generating nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	raw, err := json.Marshal(envelope{
		Salt:  base64.StdEncoding.EncodeToString(salt),
		Nonce: base64.StdEncoding.EncodeToString(nonce),
		Data:  base64.StdEncoding.EncodeToString(sealed),
	})
	if err != nil {
		return "", fmt.Errorf("vault: encoding envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Open decrypts an envelope produced by Seal. A wrong passphrase surfaces
// as ErrWrongPassphrase, never as garbage plaintext.
func (v *Vault) Open(passphrase, sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("vault: decoding envelope: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("vault: parsing envelope: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return "", fmt.Errorf("vault: decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return "", fmt.Errorf("vault: decoding nonce: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return "", fmt.Errorf("vault: decoding payload: %w", err)
	}

	block, err := aes.NewCipher(v.deriveKey(passphrase, salt))
	if err != nil {
		return "", fmt.Errorf("vault: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("vault: creating gcm: %w", err)
	}
	if len(nonce) != gcm.NonceSize() {
		return "", ErrWrongPassphrase
	}

	plaintext, err := gcm.Open(nil, nonce, data, nil)
	if err != nil {
		return "", ErrWrongPassphrase
	}
	return string(plaintext), nil
}

// HashPassword derives a salted verifier for a password. The verifier can
// be stored and later checked with VerifyPassword; the password cannot be
// recovered from it.
func (v *Vault) HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("vault: generating salt: %w", err)
	}
	hash := v.deriveKey(password, salt)
	return base64.StdEncoding.EncodeToString(salt) + ":" + base64.StdEncoding.EncodeToString(hash), nil
}

// VerifyPassword checks a password against a verifier from HashPassword
// in constant time.
func (v *Vault) VerifyPassword(password, verifier string) bool {
	var saltB64, hashB64 string
	for i := 0; i < len(verifier); i++ {
		if verifier[i] == ':' {
			saltB64, hashB64 = verifier[:i], verifier[i+1:]
			break
		}
	}
	if saltB64 == "" || hashB64 == "" {
		return false
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(hashB64)
	if err != nil {
		return false
	}
	got := v.deriveKey(password, salt)
	return subtle.ConstantTimeCompare(got, want) == 1
}
