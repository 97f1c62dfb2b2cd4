package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"sacco-console/internal/core/domain"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keyPendingTwoFactor = "pendingTwoFactor"
	keyPendingUserData  = "pendingUserData"

	nonceSize = 24
)

var errUnseal = errors.New("session: cannot unseal value")

// Sealer encrypts values held in transient storage
type Sealer struct {
	key [32]byte
}

// NewSealer derives a sealing key from the console secret
func NewSealer(secret string) (*Sealer, error) {
	if secret == "" {
		return nil, errors.New("session: empty sealing secret")
	}
	s := &Sealer{}
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("sacco-console pending session"))
	if _, err := io.ReadFull(r, s.key[:]); err != nil {
		return nil, fmt.Errorf("derive sealing key: %w", err)
	}
	return s, nil
}

// Seal encrypts and authenticates plaintext
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}
	out := secretbox.Seal(nonce[:], plaintext, &nonce, &s.key)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Open reverses Seal
func (s *Sealer) Open(sealed string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return nil, errUnseal
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, errUnseal
	}
	return plain, nil
}

// PendingStore keeps the transient state of unfinished logins
type PendingStore struct {
	storage Storage
	sealer  *Sealer
}

// NewPendingStore wraps a transient visitor storage scope
func NewPendingStore(storage Storage, sealer *Sealer) *PendingStore {
	return &PendingStore{storage: storage, sealer: sealer}
}

// SaveTwoFactor records a login waiting for OTP verification
func (p *PendingStore) SaveTwoFactor(pending domain.PendingTwoFactor) error {
	raw, err := json.Marshal(pending)
	if err != nil {
		return err
	}
	return p.storage.Set(keyPendingTwoFactor, string(raw))
}

// TwoFactor returns the pending two-factor login, if any
func (p *PendingStore) TwoFactor() (*domain.PendingTwoFactor, bool) {
	raw, err := p.storage.Get(keyPendingTwoFactor)
	if err != nil {
		return nil, false
	}
	var pending domain.PendingTwoFactor
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		_ = p.storage.Delete(keyPendingTwoFactor)
		return nil, false
	}
	return &pending, true
}

// ClearTwoFactor discards the pending two-factor login
func (p *PendingStore) ClearTwoFactor() error {
	return p.storage.Delete(keyPendingTwoFactor)
}

// SavePasswordChange seals a session that is blocked on a password change
func (p *PendingStore) SavePasswordChange(pending domain.PendingPasswordChange) error {
	raw, err := json.Marshal(pending)
	if err != nil {
		return err
	}
	sealed, err := p.sealer.Seal(raw)
	if err != nil {
		return fmt.Errorf("seal pending user data: %w", err)
	}
	return p.storage.Set(keyPendingUserData, sealed)
}

// PasswordChange returns the sealed pending session. Data that does not
// unseal or decode is dropped.
func (p *PendingStore) PasswordChange() (*domain.PendingPasswordChange, bool) {
	sealed, err := p.storage.Get(keyPendingUserData)
	if err != nil {
		return nil, false
	}
	raw, err := p.sealer.Open(sealed)
	if err != nil {
		_ = p.storage.Delete(keyPendingUserData)
		return nil, false
	}
	var pending domain.PendingPasswordChange
	if err := json.Unmarshal(raw, &pending); err != nil || pending.Token == "" {
		_ = p.storage.Delete(keyPendingUserData)
		return nil, false
	}
	return &pending, true
}

// ClearPasswordChange discards the pending session
func (p *PendingStore) ClearPasswordChange() error {
	return p.storage.Delete(keyPendingUserData)
}

// MoveTo hands unfinished logins over to dst, leaving this store empty
func (p *PendingStore) MoveTo(dst *PendingStore) error {
	if err := move(p.storage, dst.storage, keyPendingTwoFactor, keyPendingUserData); err != nil {
		return err
	}
	return p.storage.Clear()
}

// Clear wipes all transient state of the visitor
func (p *PendingStore) Clear() error {
	return p.storage.Clear()
}
