package domain

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// NewID returns a prefixed, base62-encoded random identifier, e.g. "acc_8fK2q...".
// Entropy comes from a fresh random UUID (the same source the teacher already
// wires for merchant/wallet IDs), re-encoded to base62 so IDs stay short and
// URL-safe.
func NewID(prefix string) string {
	u := uuid.New()
	return prefix + "_" + base62Encode(u[:])
}

func base62Encode(b []byte) string {
	n := new(big.Int).SetBytes(b)
	if n.Sign() == 0 {
		return string(base62Alphabet[0])
	}
	base := big.NewInt(int64(len(base62Alphabet)))
	mod := new(big.Int)
	var out []byte
	for n.Sign() > 0 {
		n.DivMod(n, base, mod)
		out = append(out, base62Alphabet[mod.Int64()])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

// NewAgentAPIKey returns a fresh agent bearer key: "sk_agt_" + 64 hex chars.
func NewAgentAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "sk_agt_" + hex.EncodeToString(buf), nil
}

// IsAgentAPIKey reports whether a bearer token looks like an agent key
// rather than a signed session token.
func IsAgentAPIKey(token string) bool {
	return strings.HasPrefix(token, "sk_agt_")
}
