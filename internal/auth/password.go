package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

var errUnsupportedHash = errors.New("unsupported password hash format")

// VerifyPassword reports whether password matches the stored hash. bcrypt
// ($2a$, $2b$, $2y$) and argon2id PHC strings are accepted; anything else
// never matches. Both comparisons are constant-time.
func VerifyPassword(hash, password string) bool {
	switch {
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	case strings.HasPrefix(hash, "$argon2id$"):
		ok, err := verifyArgon2id(hash, password)
		return err == nil && ok
	default:
		return false
	}
}

// HashPassword returns a bcrypt hash of password at the default cost.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// dummyHash is compared against when no account matches, so a failed lookup
// costs as much as a wrong password.
var dummyHash = sync.OnceValue(func() []byte {
	b, err := bcrypt.GenerateFromPassword([]byte("carnet-dummy-password"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("auth: generate dummy hash: %v", err))
	}
	return b
})

func burnPasswordCheck(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
}

// verifyArgon2id checks a $argon2id$v=19$m=..,t=..,p=..$salt$hash string.
func verifyArgon2id(encoded, password string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return false, errUnsupportedHash
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return false, fmt.Errorf("%w: argon2 version %q", errUnsupportedHash, parts[2])
	}

	var memory, time uint32
	var threads uint8
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return false, errUnsupportedHash
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return false, errUnsupportedHash
		}
		switch k {
		case "m":
			memory = uint32(n)
		case "t":
			time = uint32(n)
		case "p":
			if n > 255 {
				return false, errUnsupportedHash
			}
			threads = uint8(n)
		default:
			return false, errUnsupportedHash
		}
	}
	if memory == 0 || time == 0 || threads == 0 {
		return false, errUnsupportedHash
	}

	salt, err := decodeB64(parts[4])
	if err != nil {
		return false, err
	}
	want, err := decodeB64(parts[5])
	if err != nil || len(want) == 0 {
		return false, errUnsupportedHash
	}

	got := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// decodeB64 accepts both the unpadded encoding of the PHC format and padded
// standard base64.
func decodeB64(s string) ([]byte, error) {
	if b, err := base64.RawStdEncoding.DecodeString(s); err == nil {
		return b, nil
	}
	return base64.StdEncoding.DecodeString(s)
}
