// Package hash provides one-way hashing for credentials. It is used for
// account passwords and refresh tokens alike: neither is ever stored in a
// recoverable form.
package hash

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrCorruptHash is returned when a stored hash cannot be decoded. A
// non-matching candidate is not an error.
var ErrCorruptHash = errors.New("corrupt credential hash")

const (
	defaultMemory      uint32 = 64 * 1024
	defaultTime        uint32 = 3
	defaultParallelism uint8  = 2
	defaultSaltLength  uint32 = 16
	defaultKeyLength   uint32 = 32
)

// Hasher derives and verifies argon2id hashes in PHC string format.
// The zero value is not usable; construct with New.
type Hasher struct {
	memory      uint32
	time        uint32
	parallelism uint8
	saltLength  uint32
	keyLength   uint32
}

// New constructs a Hasher with the default argon2id parameters.
func New() *Hasher {
	return &Hasher{
		memory:      defaultMemory,
		time:        defaultTime,
		parallelism: defaultParallelism,
		saltLength:  defaultSaltLength,
		keyLength:   defaultKeyLength,
	}
}

// Hash derives an argon2id hash of the secret with a fresh random salt.
// Repeated calls on the same input produce different encodings.
func (h *Hasher) Hash(secret string) (string, error) {
	salt := make([]byte, h.saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(secret), salt, h.time, h.memory, h.parallelism, h.keyLength)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.memory,
		h.time,
		h.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
	return encoded, nil
}

// Verify reports whether candidate matches the encoded hash. The stored
// parameters are used for recomputation, so hashes created under older
// settings keep verifying. A malformed encoding yields ErrCorruptHash.
func (h *Hasher) Verify(candidate, encoded string) (bool, error) {
	params, salt, key, err := decode(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(candidate), salt, params.time, params.memory, params.parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}

type params struct {
	memory      uint32
	time        uint32
	parallelism uint8
}

func decode(encoded string) (params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return params{}, nil, nil, ErrCorruptHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return params{}, nil, nil, ErrCorruptHash
	}

	p, err := parseParams(parts[3])
	if err != nil {
		return params{}, nil, nil, err
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return params{}, nil, nil, ErrCorruptHash
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return params{}, nil, nil, ErrCorruptHash
	}

	return p, salt, key, nil
}

func parseParams(part string) (params, error) {
	var p params
	for _, pair := range strings.Split(part, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return params{}, ErrCorruptHash
		}
		value, err := strconv.ParseUint(kv[1], 10, 32)
		if err != nil {
			return params{}, ErrCorruptHash
		}
		switch kv[0] {
		case "m":
			p.memory = uint32(value)
		case "t":
			p.time = uint32(value)
		case "p":
			if value > 255 {
				return params{}, ErrCorruptHash
			}
			p.parallelism = uint8(value)
		default:
			return params{}, ErrCorruptHash
		}
	}
	if p.memory == 0 || p.time == 0 || p.parallelism == 0 {
		return params{}, ErrCorruptHash
	}
	return p, nil
}
