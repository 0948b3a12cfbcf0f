// Package sealer encrypts and authenticates the persisted session record.
//
// The passphrase is stretched with argon2id using a random per-record salt and the record is
// sealed with NaCl secretbox. The sealed form is a small JSON envelope so the format can be
// versioned.
package sealer

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "github.com/jrsteele09/go-blog-client/internal/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	envelopeVersion = 1
	saltSize        = 16
	nonceSize       = 24
	keySize         = 32

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

var ErrEmptyPassphrase = errors.New("sealer passphrase is empty")

type envelope struct {
	Version int    `json:"v"`
	Salt    []byte `json:"salt"`
	Nonce   []byte `json:"nonce"`
	Box     []byte `json:"box"`
}

type Sealer struct {
	passphrase []byte
}

func New(passphrase string) (*Sealer, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	return &Sealer{passphrase: []byte(passphrase)}, nil
}

// Seal encrypts plaintext into a self describing envelope
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	env := envelope{
		Version: envelopeVersion,
		Salt:    make([]byte, saltSize),
	}
	if _, err := rand.Read(env.Salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	env.Nonce = nonce[:]

	key := s.deriveKey(env.Salt)
	env.Box = secretbox.Seal(nil, plaintext, &nonce, &key)
	return json.Marshal(env)
}

// Open decrypts an envelope produced by Seal. Anything that fails to authenticate is reported as
// errors.ErrCorrupt.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(sealed, &env); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrCorrupt, "invalid envelope")
	}
	if env.Version != envelopeVersion {
		return nil, apperrors.Wrapf(apperrors.ErrCorrupt, "unsupported envelope version %d", env.Version)
	}
	if len(env.Salt) != saltSize || len(env.Nonce) != nonceSize {
		return nil, apperrors.Wrapf(apperrors.ErrCorrupt, "invalid envelope header")
	}

	var nonce [nonceSize]byte
	copy(nonce[:], env.Nonce)
	key := s.deriveKey(env.Salt)

	plaintext, ok := secretbox.Open(nil, env.Box, &nonce, &key)
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrCorrupt, "authentication failed")
	}
	return plaintext, nil
}

func (s *Sealer) deriveKey(salt []byte) [keySize]byte {
	var key [keySize]byte
	copy(key[:], argon2.IDKey(s.passphrase, salt, argonTime, argonMemory, argonThreads, keySize))
	return key
}
