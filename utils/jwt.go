package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"moim/config"
	"moim/models"
)

const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour
)

type Claims struct {
	UserID       uint   `json:"user_id"`
	SessionID    string `json:"session_id"`
	TokenVersion int    `json:"token_version"`
	jwt.RegisteredClaims
}

// GenerateJWTToken issues an access/refresh token pair for the user and
// records the refresh token so it can be rotated and revoked.
func GenerateJWTToken(db *gorm.DB, user *models.User, userAgent, ip string) (string, string, string, error) {
	sessionID := uuid.NewString()

	accessToken, err := signToken(user, sessionID, AccessTokenTTL)
	if err != nil {
		return "", "", "", err
	}

	refreshToken, err := signToken(user, sessionID, RefreshTokenTTL)
	if err != nil {
		return "", "", "", err
	}

	record := models.RefreshToken{
		UserID:    user.ID,
		SessionID: sessionID,
		Token:     refreshToken,
		UserAgent: userAgent,
		IPAddress: ip,
		ExpiresAt: time.Now().Add(RefreshTokenTTL),
	}
	if err := db.Create(&record).Error; err != nil {
		return "", "", "", err
	}

	return accessToken, refreshToken, sessionID, nil
}

func signToken(user *models.User, sessionID string, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID:       user.ID,
		SessionID:    sessionID,
		TokenVersion: user.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(config.AppConfig.JWTSecret))
}

func ParseJWTToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(config.AppConfig.JWTSecret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// RefreshTokens rotates a refresh token: the presented token is revoked and a
// fresh pair is issued for the same user.
func RefreshTokens(db *gorm.DB, refreshToken, userAgent, ip string) (string, string, error) {
	claims, err := ParseJWTToken(refreshToken)
	if err != nil {
		return "", "", err
	}

	var record models.RefreshToken
	if err := db.Where("token = ? AND is_revoked = ?", refreshToken, false).First(&record).Error; err != nil {
		return "", "", errors.New("refresh token not recognized")
	}
	if time.Now().After(record.ExpiresAt) {
		return "", "", errors.New("refresh token expired")
	}

	var user models.User
	if err := db.First(&user, claims.UserID).Error; err != nil {
		return "", "", errors.New("user not found")
	}
	if claims.TokenVersion != user.TokenVersion {
		return "", "", errors.New("invalid token version")
	}

	if err := db.Model(&record).Update("is_revoked", true).Error; err != nil {
		return "", "", err
	}

	access, refresh, _, err := GenerateJWTToken(db, &user, userAgent, ip)
	return access, refresh, err
}

// RevokeSession revokes every refresh token belonging to a session.
func RevokeSession(db *gorm.DB, sessionID string) error {
	return db.Model(&models.RefreshToken{}).
		Where("session_id = ? AND is_revoked = ?", sessionID, false).
		Update("is_revoked", true).Error
}
