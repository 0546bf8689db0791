// Package crypto implements the password hashing contract used by user commands.
//
// New hashes are argon2id in the PHC string format:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>
//
// Verify also accepts bcrypt hashes and the unsalted SHA-256/base64 digests
// written by the previous generation of the service, so existing accounts
// keep working until their next successful login rehashes them.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const argon2idPrefix = "$argon2id$"

// Params tunes the argon2id cost.
type Params struct {
	Memory     uint32 // KiB
	Iterations uint32
	Threads    uint8
	SaltLength uint32
	KeyLength  uint32
}

// DefaultParams follows the RFC 9106 second recommended option.
var DefaultParams = Params{
	Memory:     64 * 1024,
	Iterations: 3,
	Threads:    2,
	SaltLength: 16,
	KeyLength:  32,
}

type Hasher struct {
	params Params
}

// NewHasher returns a Hasher; zero fields in p fall back to DefaultParams.
func NewHasher(p Params) *Hasher {
	if p.Memory == 0 {
		p.Memory = DefaultParams.Memory
	}
	if p.Iterations == 0 {
		p.Iterations = DefaultParams.Iterations
	}
	if p.Threads == 0 {
		p.Threads = DefaultParams.Threads
	}
	if p.SaltLength == 0 {
		p.SaltLength = DefaultParams.SaltLength
	}
	if p.KeyLength == 0 {
		p.KeyLength = DefaultParams.KeyLength
	}
	return &Hasher{params: p}
}

// Hash derives a salted argon2id hash of raw.
func (h *Hasher) Hash(raw string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(raw), salt, h.params.Iterations, h.params.Memory, h.params.Threads, h.params.KeyLength)

	b64 := base64.RawStdEncoding
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2idPrefix, argon2.Version,
		h.params.Memory, h.params.Iterations, h.params.Threads,
		b64.EncodeToString(salt), b64.EncodeToString(key),
	), nil
}

// Verify reports whether raw matches stored, whatever scheme stored uses.
func (h *Hasher) Verify(raw, stored string) bool {
	switch {
	case stored == "":
		return false
	case strings.HasPrefix(stored, argon2idPrefix):
		return verifyArgon2id(raw, stored)
	case isBcrypt(stored):
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(raw)) == nil
	default:
		return subtle.ConstantTimeCompare([]byte(LegacyHash(raw)), []byte(stored)) == 1
	}
}

// NeedsRehash reports whether stored was produced by anything other than
// argon2id with the current parameters.
func (h *Hasher) NeedsRehash(stored string) bool {
	p, _, _, err := decodeArgon2id(stored)
	if err != nil {
		return true
	}
	return p.Memory != h.params.Memory || p.Iterations != h.params.Iterations || p.Threads != h.params.Threads
}

// LegacyHash is the unsalted digest written by the previous service generation.
func LegacyHash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func isBcrypt(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$")
}

func verifyArgon2id(raw, stored string) bool {
	p, salt, key, err := decodeArgon2id(stored)
	if err != nil {
		return false
	}
	other := argon2.IDKey([]byte(raw), salt, p.Iterations, p.Memory, p.Threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, other) == 1
}

func decodeArgon2id(stored string) (Params, []byte, []byte, error) {
	var p Params
	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	parts := strings.Split(stored, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, fmt.Errorf("not an argon2id hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, fmt.Errorf("parse version: %w", err)
	}
	if version != argon2.Version {
		return p, nil, nil, fmt.Errorf("unsupported argon2 version %d", version)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Threads); err != nil {
		return p, nil, nil, fmt.Errorf("parse params: %w", err)
	}

	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("decode salt: %w", err)
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil {
		return p, nil, nil, fmt.Errorf("decode key: %w", err)
	}
	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))
	return p, salt, key, nil
}
