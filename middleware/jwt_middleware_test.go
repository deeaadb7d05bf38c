package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"moim/cache"
	"moim/config"
	"moim/models"
	"moim/utils"
)

func setupGuardTest(t *testing.T) (*fiber.App, *cache.Sessions, *models.User) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, config.MigrateDB(db))

	config.DB = db
	config.AppConfig.JWTSecret = "guard-test-secret"

	user := &models.User{
		Email:        "guard@example.com",
		PasswordHash: "hashed",
		Name:         "Guard",
		IsActive:     true,
		TokenVersion: 1,
	}
	require.NoError(t, db.Create(user).Error)

	sessions := cache.NewSessions(cache.NewMemory())

	app := fiber.New()
	app.Get("/guarded", Protected(sessions), func(c *fiber.Ctx) error {
		userID, _ := c.Locals("userID").(uint)
		return c.JSON(fiber.Map{"user_id": userID})
	})
	app.Post("/guest", GuestOnly(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"ok": true})
	})

	return app, sessions, user
}

func issueToken(t *testing.T, user *models.User) string {
	t.Helper()
	access, _, _, err := utils.GenerateJWTToken(config.DB, user, "test-agent", "127.0.0.1")
	require.NoError(t, err)
	return access
}

func TestProtectedRejectsAnonymous(t *testing.T) {
	app, _, _ := setupGuardTest(t)

	req := httptest.NewRequest("GET", "/guarded", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	// The response tells the client where it was headed
	body, _ := io.ReadAll(resp.Body)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "/guarded", payload["redirect_to"])
}

func TestProtectedAcceptsBearerToken(t *testing.T) {
	app, _, user := setupGuardTest(t)
	token := issueToken(t, user)

	req := httptest.NewRequest("GET", "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestProtectedAcceptsCookieToken(t *testing.T) {
	app, _, user := setupGuardTest(t)
	token := issueToken(t, user)

	req := httptest.NewRequest("GET", "/guarded", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestProtectedRejectsMalformedHeader(t *testing.T) {
	app, _, user := setupGuardTest(t)
	token := issueToken(t, user)

	req := httptest.NewRequest("GET", "/guarded", nil)
	req.Header.Set("Authorization", "Token "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

// A stale token keeps working only while its cached session lives; once the
// session is cleared the version bump in the database wins.
func TestProtectedTokenVersionBump(t *testing.T) {
	app, sessions, user := setupGuardTest(t)
	token := issueToken(t, user)

	req := httptest.NewRequest("GET", "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.NoError(t, config.DB.Model(user).Update("token_version", user.TokenVersion+1).Error)

	claims, err := utils.ParseJWTToken(token)
	require.NoError(t, err)
	require.NoError(t, sessions.Clear(req.Context(), claims.SessionID, user.ID))

	req = httptest.NewRequest("GET", "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestProtectedRejectsInactiveUser(t *testing.T) {
	app, _, user := setupGuardTest(t)
	token := issueToken(t, user)

	require.NoError(t, config.DB.Model(user).Update("is_active", false).Error)

	req := httptest.NewRequest("GET", "/guarded", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestGuestOnly(t *testing.T) {
	app, _, user := setupGuardTest(t)

	// Anonymous callers pass through
	req := httptest.NewRequest("POST", "/guest", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Signed-in callers are turned away
	token := issueToken(t, user)
	req = httptest.NewRequest("POST", "/guest", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}
