package utils

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

const codeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateReferralCode generates a prefixed referral code candidate.
// Uniqueness is the caller's responsibility.
func GenerateReferralCode(prefix string, length int) string {
	if length <= 0 {
		length = 6
	}

	result := make([]byte, length)
	for i := range result {
		result[i] = codeCharset[rand.Intn(len(codeCharset))]
	}

	if prefix == "" {
		return string(result)
	}
	return fmt.Sprintf("%s-%s", strings.ToUpper(prefix), string(result))
}

// GenerateReference generates a unique reference for wallet transactions
func GenerateReference(prefix string) string {
	result := make([]byte, 8)
	for i := range result {
		result[i] = codeCharset[rand.Intn(len(codeCharset))]
	}

	timestamp := time.Now().Format("20060102")
	return fmt.Sprintf("%s_%s_%s", prefix, timestamp, string(result))
}
