package utils

import (
	"fmt"
	"math/rand"
	"time"
)

// Charset excludes ambiguous characters so codes survive being typed from a
// phone keyboard.
const codeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateReference generates a unique reference for ledger entries and
// payout calls
func GenerateReference(prefix string) string {
	result := make([]byte, 8)
	for i := range result {
		result[i] = codeCharset[rand.Intn(len(codeCharset))]
	}

	timestamp := time.Now().Format("20060102")
	return fmt.Sprintf("%s_%s_%s", prefix, timestamp, string(result))
}

// GenerateCode generates a human-typeable voucher code of n characters.
// Uniqueness is enforced by the caller against the database.
func GenerateCode(n int) string {
	result := make([]byte, n)
	for i := range result {
		result[i] = codeCharset[rand.Intn(len(codeCharset))]
	}
	return string(result)
}
