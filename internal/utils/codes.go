package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const alnumUpper = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewOTP returns a 6-digit numeric code in [100000, 999999].
func NewOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// NewPassQRCode returns "MCD-SUB-" followed by 9 upper-case alphanumerics.
func NewPassQRCode() (string, error) {
	var b strings.Builder
	b.WriteString("MCD-SUB-")
	max := big.NewInt(int64(len(alnumUpper)))
	for i := 0; i < 9; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alnumUpper[n.Int64()])
	}
	return b.String(), nil
}

// NewReference returns a wallet transaction reference such as
// "TXN3F9A0C1B2D4E".
func NewReference() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TXN" + strings.ToUpper(id[:12])
}

// NewSessionID returns a random UUID for chat sessions and request ids.
func NewSessionID() string { return uuid.NewString() }
