package delivery

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	trackingPrefix      = "DLG"
	trackingRandomChars = 5
	otpMin              = 100000
	otpSpan             = 900000
)

const base36Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateTrackingNumber produces a customer-facing tracking code: the DLG
// prefix, the millisecond timestamp in base36 and a random base36 suffix.
func GenerateTrackingNumber(now time.Time) (string, error) {
	stamp := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))

	suffix := make([]byte, trackingRandomChars)
	for i := range suffix {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(base36Alphabet))))
		if err != nil {
			return "", fmt.Errorf("generating tracking suffix: %w", err)
		}
		suffix[i] = base36Alphabet[idx.Int64()]
	}

	return trackingPrefix + stamp + string(suffix), nil
}

// GenerateOTP produces the six digit delivery confirmation code.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpSpan))
	if err != nil {
		return "", fmt.Errorf("generating otp: %w", err)
	}
	return strconv.FormatInt(otpMin+n.Int64(), 10), nil
}

// VerifyOTP compares a submitted code with the stored one. Both sides are
// trimmed so copy-pasted codes with whitespace still verify.
func VerifyOTP(stored, submitted string) bool {
	stored = strings.TrimSpace(stored)
	submitted = strings.TrimSpace(submitted)
	return stored != "" && stored == submitted
}
