package utils

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
)

const (
	StudyCodeLength  = 6
	studyCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateStudyCode returns a random 6-character join code drawn from
// uppercase letters and digits. Uniqueness against existing studies is the
// caller's responsibility.
func GenerateStudyCode() (string, error) {
	code := make([]byte, StudyCodeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(studyCodeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = studyCodeCharset[num.Int64()]
	}
	return string(code), nil
}

// GenerateVerificationCode returns a 6-digit numeric code for email
// confirmation and password reset flows.
func GenerateVerificationCode() (string, error) {
	const digits = "0123456789"
	code := make([]byte, 6)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		code[i] = digits[num.Int64()]
	}
	return string(code), nil
}

// GenerateSecureToken returns a 64-character hex token for reset links and
// OAuth state parameters.
func GenerateSecureToken() (string, error) {
	token := make([]byte, 32)
	if _, err := rand.Read(token); err != nil {
		return "", err
	}
	return hex.EncodeToString(token), nil
}
