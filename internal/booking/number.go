package booking

import (
	"crypto/rand"
	"strconv"
	"strings"
	"time"
)

const numberSuffixLen = 5

const numberAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateNumber returns a human-readable booking number, unique per tenant
// in practice but not by construction; the coordinator retries on a
// uniqueness violation.
func GenerateNumber(now time.Time) string {
	var b strings.Builder
	b.WriteString("BK")
	b.WriteString(strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)))

	var buf [numberSuffixLen]byte
	if _, err := rand.Read(buf[:]); err == nil {
		for _, c := range buf {
			b.WriteByte(numberAlphabet[int(c)%len(numberAlphabet)])
		}
	}
	return b.String()
}
