package controllers

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"
	"gorm.io/gorm"

	"github.com/cloudvps-cz/CloudVPS/app/models"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/database"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/session"
)

// HandleOAuthBegin redirects to the provider's consent screen
func HandleOAuthBegin(c *fiber.Ctx) error {
	return gothfiber.BeginAuthHandler(c)
}

// HandleOAuthCallback completes the provider flow and logs the user in
func HandleOAuthCallback(c *fiber.Ctx) error {
	u, err := gothfiber.CompleteUserAuth(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString(fmt.Sprintf("OAuth failed: %v", err))
	}

	db := database.GetDB()

	var appUser models.User
	res := db.Where("email = ?", u.Email).First(&appUser)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		// Create new user; password is a random placeholder since
		// validation requires one (never used for login)
		placeholder := fmt.Sprintf("oauth_%d", time.Now().UnixNano())
		hash, _ := models.HashPassword(placeholder)
		email := u.Email
		if email == "" {
			// Ensure unique, non-empty email to satisfy unique index semantics in MySQL
			email = fmt.Sprintf("%s_%s@%s.oauth.local", u.Provider, u.UserID, u.Provider)
		}
		appUser = models.User{
			Name:     firstNonEmpty(u.Name, u.NickName, u.Email, "User"),
			Email:    email,
			Password: hash,
			Status:   models.STATUS_ACTIVE,
		}
		if err := db.Create(&appUser).Error; err != nil {
			return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("create user failed: %v", err))
		}
	} else if res.Error != nil {
		return c.Status(fiber.StatusInternalServerError).SendString(fmt.Sprintf("db error: %v", res.Error))
	}

	// Create app session
	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("session init failed")
	}
	sess.Set(AUTH_KEY, true)
	sess.Set(USER_ID, appUser.ID)
	sess.Set(USER_NAME, appUser.Name)
	sess.Set(USER_IS_ADMIN, appUser.Role == models.ROLE_ADMIN)
	if err := sess.Save(); err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("session save failed")
	}

	_ = session.SetSessionValue(c, USER_EMAIL, appUser.Email)
	if appUser.HasBillingClient() {
		_ = session.SetSessionValue(c, USER_BILLING_CLIENT, appUser.BillingClientID)
	}

	_ = db.Model(&appUser).UpdateColumn("last_login_at", time.Now()).Error

	return c.Redirect("/dashboard", fiber.StatusSeeOther)
}

// HandleOAuthLogout clears the provider session and the app session
func HandleOAuthLogout(c *fiber.Ctx) error {
	_ = gothfiber.Logout(c)
	return HandleAuthLogout(c)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
