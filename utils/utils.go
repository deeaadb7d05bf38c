package utils

import "fmt"

// GenerateRateLimitKey creates a unique key for rate limiting
func GenerateRateLimitKey(userID uint, studyID, path string) string {
	return fmt.Sprintf("rl:%d:%s:%s", userID, studyID, path)
}

// Pointer returns a pointer to the given value
func Pointer[T any](v T) *T {
	return &v
}
