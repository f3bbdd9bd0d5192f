package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"gorm.io/gorm"

	"github.com/schedulesync/backend/internal/config"
	"github.com/schedulesync/backend/internal/middleware"
	"github.com/schedulesync/backend/internal/models"
	"github.com/schedulesync/backend/internal/services"
	"github.com/schedulesync/backend/pkg/logger"
	"github.com/schedulesync/backend/pkg/utils"
)

type AuthHandler struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Accounts *services.AccountService
	Google   services.IdentityVerifier
}

func NewAuthHandler(db *gorm.DB, cfg *config.Config, google services.IdentityVerifier) *AuthHandler {
	return &AuthHandler{
		DB:       db,
		Cfg:      cfg,
		Accounts: services.NewAccountService(db),
		Google:   google,
	}
}

type socialAuthRequest struct {
	IDToken  string `json:"idToken"`
	Provider string `json:"provider"`
}

// GoogleAuth exchanges a verified Google ID token for a local session.
// Unknown subjects are provisioned on the fly; verifier failures all surface
// as the same generic message.
func (h *AuthHandler) GoogleAuth(c *fiber.Ctx) error {
	var req socialAuthRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	req.IDToken = strings.TrimSpace(req.IDToken)
	if req.IDToken == "" {
		return utils.Error(c, fiber.StatusBadRequest, "idToken is required")
	}

	provider := models.AuthProvider(strings.ToLower(req.Provider))
	verifier, err := services.VerifierFor(provider, h.Google)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "Unsupported Provider")
	}

	profile, err := verifier.Verify(c.Context(), req.IDToken)
	if err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "Invalid Token")
	}

	user, created, err := h.Accounts.FindOrCreateFederated(c.Context(), provider, profile)
	if err != nil {
		logger.Error("federated_sign_in_failed", err, map[string]interface{}{
			"provider": string(provider),
		})
		return utils.Error(c, fiber.StatusInternalServerError, "failed signing in")
	}

	tokens, err := utils.GenerateTokenPair(user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating tokens")
	}

	logger.InfoWithUser(user.ID.String(), "federated_sign_in", map[string]interface{}{
		"provider": string(provider),
		"created":  created,
	})

	return utils.Success(c, fiber.StatusOK, "Authenticated Successfully", fiber.Map{
		"access":    tokens.Access,
		"refresh":   tokens.Refresh,
		"email":     user.Email,
		"fullName":  user.FullName(),
		"avatarURL": user.AvatarURL,
	})
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

// Refresh mints a new access token from a valid refresh token. Previously
// issued refresh tokens stay valid.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Refresh == "" {
		return utils.Error(c, fiber.StatusBadRequest, "refresh is required")
	}

	claims, err := utils.ValidateRefreshToken(req.Refresh)
	if err != nil {
		return utils.Error(c, fiber.StatusUnauthorized, "invalid or expired token")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ? AND is_active = ?", claims.UserID, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusUnauthorized, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed loading user")
	}

	access, err := utils.GenerateAccessToken(&user)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed generating token")
	}

	return utils.Success(c, fiber.StatusOK, "Token refreshed", fiber.Map{"access": access})
}

// GoogleLoginRedirect hands web clients the Google authorization-code URL.
// Mobile clients skip this and post the ID token directly.
func (h *AuthHandler) GoogleLoginRedirect(c *fiber.Ctx) error {
	if h.Cfg.Google.ClientID == "" {
		return utils.Error(c, fiber.StatusBadRequest, "google sign-in is not configured")
	}

	oauthCfg := &oauth2.Config{
		ClientID:     h.Cfg.Google.ClientID,
		ClientSecret: h.Cfg.Google.ClientSecret,
		RedirectURL:  h.Cfg.Google.RedirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}

	state := logger.GenerateRequestID()
	return utils.Success(c, fiber.StatusOK, "Redirect URL generated", fiber.Map{
		"url": oauthCfg.AuthCodeURL(state),
	})
}

// Me returns the authenticated account.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return utils.Success(c, fiber.StatusOK, "Account retrieved successfully", user)
}
