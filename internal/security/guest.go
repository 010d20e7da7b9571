package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var ErrInvalidGuestID = errors.New("invalid guest id")

const (
	guestPrefix      = "g"
	guestRandomBytes = 16
	guestMACBytes    = 16
)

// GuestSigner issues and verifies server-signed guest identifiers of the
// form g<random hex>.<hmac hex>. They fit the viewer segment of a product
// room key, so a guest can prove the room is theirs without a session.
type GuestSigner struct {
	secret []byte
}

// NewGuestSigner creates a signer keyed by secret.
func NewGuestSigner(secret string) *GuestSigner {
	return &GuestSigner{secret: []byte(secret)}
}

// Issue returns a fresh signed guest id.
func (s *GuestSigner) Issue() (string, error) {
	randomBytes := make([]byte, guestRandomBytes)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}

	nonce := hex.EncodeToString(randomBytes)
	return guestPrefix + nonce + "." + s.sign(nonce), nil
}

// Verify reports whether id was issued by this signer.
func (s *GuestSigner) Verify(id string) bool {
	nonce, mac, ok := strings.Cut(strings.TrimPrefix(id, guestPrefix), ".")
	if !ok || !strings.HasPrefix(id, guestPrefix) {
		return false
	}
	if len(nonce) != guestRandomBytes*2 || len(mac) != guestMACBytes*2 {
		return false
	}
	// Constant-time comparison
	return hmac.Equal([]byte(mac), []byte(s.sign(nonce)))
}

func (s *GuestSigner) sign(nonce string) string {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(nonce))
	return hex.EncodeToString(h.Sum(nil)[:guestMACBytes])
}
