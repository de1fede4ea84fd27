package ledger

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"medchain-backend/internal/models"
)

const verificationCodeLen = 8

// VerificationCode derives the receipt code of a distribution. It is keyed
// with the server secret so it cannot be recomputed from public ids.
func VerificationCode(secret []byte, d *models.Distribution) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strings.Join([]string{d.DistributionID, d.BatchID, d.SenderID, d.ReceiverID}, "|")))
	return hex.EncodeToString(mac.Sum(nil))[:verificationCodeLen]
}

func codesMatch(expected, presented string) bool {
	return expected != "" && hmac.Equal([]byte(expected), []byte(presented))
}
