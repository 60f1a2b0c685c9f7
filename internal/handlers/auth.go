package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/xid"
	"golang.org/x/crypto/bcrypt"

	"cvbuilder/internal/auth"
	"cvbuilder/internal/logging"
	"cvbuilder/internal/store"
)

// UserStore is the slice of the store the auth handlers need.
type UserStore interface {
	CreateUser(ctx context.Context, u store.User) error
	UserByEmail(ctx context.Context, email string) (store.User, error)
}

// Auth handles registration, login and logout. It issues the session
// cookie the access gate later checks for presence.
type Auth struct {
	users      UserStore
	tokens     *auth.Manager
	cookieName string
}

// NewAuth builds the auth handler.
func NewAuth(users UserStore, tokens *auth.Manager, cookieName string) *Auth {
	return &Auth{users: users, tokens: tokens, cookieName: cookieName}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates an account and logs it in.
func (h *Auth) HandleRegister(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid email")
	}
	if len(req.Password) < 8 {
		return fiber.NewError(fiber.StatusBadRequest, "Password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Registration failed")
	}

	user := store.User{ID: xid.New().String(), Email: req.Email, PasswordHash: string(hash)}
	if err := h.users.CreateUser(c.Context(), user); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return fiber.NewError(fiber.StatusConflict, "Email already registered")
		}
		logging.Error("User creation failed", "error", err.Error())
		return fiber.NewError(fiber.StatusInternalServerError, "Registration failed")
	}

	if err := h.startSession(c, user); err != nil {
		return err
	}
	logging.Info("User registered", "user_id", user.ID)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": user.ID, "email": user.Email})
}

// HandleLogin verifies credentials and starts a session.
func (h *Auth) HandleLogin(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	user, err := h.users.UserByEmail(c.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid credentials")
		}
		logging.Error("User lookup failed", "error", err.Error())
		return fiber.NewError(fiber.StatusInternalServerError, "Login failed")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid credentials")
	}

	if err := h.startSession(c, user); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"id": user.ID, "email": user.Email})
}

// HandleLogout revokes the session and clears the cookie.
func (h *Auth) HandleLogout(c *fiber.Ctx) error {
	if token := c.Cookies(h.cookieName); token != "" {
		if err := h.tokens.Revoke(c.Context(), token); err != nil {
			logging.Warn("Session revocation failed", "error", err.Error())
		}
	}
	c.Cookie(&fiber.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Auth) startSession(c *fiber.Ctx, user store.User) error {
	token, err := h.tokens.Issue(c.Context(), user.ID, user.Email)
	if err != nil {
		logging.Error("Token issue failed", "error", err.Error())
		return fiber.NewError(fiber.StatusInternalServerError, "Session could not be created")
	}
	c.Cookie(&fiber.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(h.tokens.TTL()),
		HTTPOnly: true,
		SameSite: "Lax",
	})
	return nil
}

// RequireUser resolves the session cookie into a user ID, or fails with
// 401. API handlers needing an owner call this first.
func (h *Auth) RequireUser(c *fiber.Ctx) (string, error) {
	token := c.Cookies(h.cookieName)
	if token == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "Not logged in")
	}
	userID, err := h.tokens.Verify(c.Context(), token)
	if err != nil {
		return "", fiber.NewError(fiber.StatusUnauthorized, "Invalid session")
	}
	return userID, nil
}
