package model

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"

	"github.com/torrejonv/multisig-coordinator/errors"
)

// KeyHashSize is the byte length of a public-key fingerprint.
const KeyHashSize = 28

// KeyHash is the 28-byte fingerprint of an Ed25519 public key, held in its
// canonical lowercase-hex form. Equality is plain string equality.
type KeyHash string

// NewKeyHashFromBytes converts raw hash bytes to the canonical form.
func NewKeyHashFromBytes(b []byte) (KeyHash, error) {
	if len(b) != KeyHashSize {
		return "", errors.NewInvalidAddressError("key hash must be %d bytes, got %d", KeyHashSize, len(b))
	}

	return KeyHash(hex.EncodeToString(b)), nil
}

// NewKeyHashFromHex validates and normalizes a hex key hash.
func NewKeyHashFromHex(s string) (KeyHash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", errors.NewInvalidAddressError("key hash %q is not hex", s, err)
	}

	return NewKeyHashFromBytes(b)
}

// HashVerificationKey computes the key hash of an Ed25519 verification key:
// blake2b-224 over the raw key bytes.
func HashVerificationKey(vkey []byte) (KeyHash, error) {
	h, err := blake2b.New(KeyHashSize, nil)
	if err != nil {
		return "", errors.New(errors.ERR_ERROR, "blake2b init failed", err)
	}

	if _, err = h.Write(vkey); err != nil {
		return "", errors.New(errors.ERR_ERROR, "blake2b write failed", err)
	}

	return KeyHash(hex.EncodeToString(h.Sum(nil))), nil
}

// Bytes returns the raw 28 bytes. The receiver is trusted to be canonical;
// a malformed KeyHash yields nil.
func (k KeyHash) Bytes() []byte {
	b, err := hex.DecodeString(string(k))
	if err != nil || len(b) != KeyHashSize {
		return nil
	}

	return b
}

func (k KeyHash) String() string {
	return string(k)
}

// KeyHashSet is a membership set over key hashes.
type KeyHashSet map[KeyHash]struct{}

// NewKeyHashSet builds a set from a slice, deduplicating.
func NewKeyHashSet(hashes []KeyHash) KeyHashSet {
	s := make(KeyHashSet, len(hashes))
	for _, h := range hashes {
		s[h] = struct{}{}
	}

	return s
}

// Contains reports membership.
func (s KeyHashSet) Contains(k KeyHash) bool {
	_, ok := s[k]
	return ok
}
