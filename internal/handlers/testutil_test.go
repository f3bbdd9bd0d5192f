package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"github.com/schedulesync/backend/internal/config"
	"github.com/schedulesync/backend/internal/database"
	"github.com/schedulesync/backend/internal/middleware"
	"github.com/schedulesync/backend/internal/models"
	"github.com/schedulesync/backend/internal/services"
	"github.com/schedulesync/backend/pkg/logger"
	"github.com/schedulesync/backend/pkg/utils"
)

type testEnv struct {
	app      *fiber.App
	db       *gorm.DB
	verifier *fakeVerifier
}

// fakeVerifier stands in for the Google verifier: tokens are looked up in a
// fixed table instead of being checked against a provider.
type fakeVerifier struct {
	profiles map[string]*services.IdentityProfile
}

func (f *fakeVerifier) Verify(ctx context.Context, rawIDToken string) (*services.IdentityProfile, error) {
	profile, ok := f.profiles[rawIDToken]
	if !ok {
		return nil, services.ErrInvalidToken
	}
	return profile, nil
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.Init()
		utils.ConfigureJWT("test-secret", 30, 24)
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	cfg := &config.Config{
		Google: config.GoogleConfig{VerifyTimeout: time.Second},
	}

	verifier := &fakeVerifier{profiles: map[string]*services.IdentityProfile{}}

	authHandler := NewAuthHandler(db, cfg, verifier)
	groupsHandler := NewGroupsHandler(db)
	authMiddleware := middleware.NewAuthMiddleware(db)

	app := fiber.New()
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())
	app.Use(middleware.SecurityLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/google", authHandler.GoogleAuth)
	authRoutes.Post("/refresh", authHandler.Refresh)
	authRoutes.Get("/google/redirect", authHandler.GoogleLoginRedirect)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)

	api.Post("/groups/assign-admin", authMiddleware.RequireAuth, groupsHandler.AssignAdmin)

	groupRoutes := api.Group("/groups")
	groupRoutes.Get("/", authMiddleware.RequireAuth, groupsHandler.List)
	groupRoutes.Post("/", authMiddleware.RequireAuth, groupsHandler.Create)
	groupRoutes.Get("/:slug", authMiddleware.OptionalAuth, groupsHandler.Get)
	groupRoutes.Patch("/:slug", authMiddleware.RequireAuth, groupsHandler.Update)
	groupRoutes.Delete("/:slug", authMiddleware.RequireAuth, middleware.StaffOnly, groupsHandler.Deactivate)
	groupRoutes.Post("/:slug/join", authMiddleware.RequireAuth, groupsHandler.Join)
	groupRoutes.Delete("/:slug/leave", authMiddleware.RequireAuth, groupsHandler.Leave)
	groupRoutes.Delete("/:slug/remove/:memberId", authMiddleware.RequireAuth, groupsHandler.RemoveMember)

	return &testEnv{app: app, db: db, verifier: verifier}
}

func createTestUser(t *testing.T, db *gorm.DB, email, firstName, lastName string) (*models.User, string) {
	t.Helper()

	provider := models.AuthProviderGoogle
	subject := "sub-" + email
	user := &models.User{
		Email:          email,
		FirstName:      firstName,
		LastName:       lastName,
		Username:       utils.Slugify(firstName+" "+lastName) + "-" + email,
		PasswordHash:   models.UnusablePassword,
		AuthProvider:   &provider,
		ProviderUserID: &subject,
		IsActive:       true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}

	token, err := utils.GenerateAccessToken(user)
	if err != nil {
		t.Fatalf("failed generating auth token: %v", err)
	}

	return user, token
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func assertEnvelopeError(t *testing.T, body map[string]any, expected string) {
	t.Helper()
	if success, _ := body["success"].(bool); success {
		t.Fatalf("expected success=false, got %+v", body)
	}
	if got, _ := body["message"].(string); got != expected {
		t.Fatalf("expected message %q, got %q", expected, got)
	}
}
