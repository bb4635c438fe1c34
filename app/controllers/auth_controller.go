package controllers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/cloudvps-cz/CloudVPS/app/models"
	"github.com/cloudvps-cz/CloudVPS/app/repository"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/database"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/env"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/mail"
	"github.com/cloudvps-cz/CloudVPS/internal/pkg/session"
)

func HandleAuthLogin(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		var (
			user models.User
			err  error
		)
		fm := fiber.Map{
			"type": "error",
		}

		// notice: in production you should not inform the user
		// with detailed messages about login failures
		result := database.GetDB().Where("email = ?", c.FormValue("email")).First(&user)
		if result.Error != nil {
			fm["message"] = "There is a problem with the login process"

			return flash.WithError(c, fm).Redirect("/login")
		}

		if !models.CheckPasswordHash(c.FormValue("password"), user.Password) {
			fm["message"] = "There is a problem with the login process"

			return flash.WithError(c, fm).Redirect("/login")
		}

		if !user.IsActive() {
			fm["message"] = "Account is not activated yet. Please check your inbox."

			return flash.WithError(c, fm).Redirect("/login")
		}

		sess, err := session.GetSessionStore().Get(c)
		if err != nil {
			fm["message"] = fmt.Sprintf("something went wrong: %s", err)

			return flash.WithError(c, fm).Redirect("/login")
		}

		sess.Set(AUTH_KEY, true)
		sess.Set(USER_ID, user.ID)
		sess.Set(USER_NAME, user.Name)
		sess.Set(USER_IS_ADMIN, user.Role == models.ROLE_ADMIN)

		err = sess.Save()
		if err != nil {
			fm["message"] = fmt.Sprintf("something went wrong: %s", err)

			return flash.WithError(c, fm).Redirect("/login")
		}

		_ = session.SetSessionValue(c, USER_EMAIL, user.Email)
		if user.HasBillingClient() {
			_ = session.SetSessionValue(c, USER_BILLING_CLIENT, user.BillingClientID)
		}

		database.GetDB().Model(&user).Update("last_login_at", time.Now())

		fm = fiber.Map{
			"type":    "success",
			"message": "Welcome back!",
		}

		return flash.WithSuccess(c, fm).Redirect("/dashboard")
	}

	return c.Render("auth/login", fiber.Map{
		"Title":         "Login",
		"FromProtected": isLoggedIn(c),
		"Flash":         flash.Get(c),
		"csrf":          c.Locals("csrf"),
	}, "layouts/main")
}

func HandleAuthLogout(c *fiber.Ctx) error {
	fm := fiber.Map{
		"type": "error",
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		fm["message"] = "logged out (no sess)"

		return flash.WithError(c, fm).Redirect("/login")
	}

	err = sess.Destroy()
	if err != nil {
		fm["message"] = fmt.Sprintf("something went wrong: %s", err)

		return flash.WithError(c, fm).Redirect("/login")
	}

	fm = fiber.Map{
		"type":    "success",
		"message": "See you soon!",
	}

	c.Locals(FROM_PROTECTED, false)

	return flash.WithSuccess(c, fm).Redirect("/login")
}

func HandleAuthRegister(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		fm := fiber.Map{
			"type": "error",
		}

		name := c.FormValue("name")
		email := c.FormValue("email")
		password := c.FormValue("password")

		repo := repository.GetGlobalFactory().GetUserRepository()
		if _, err := repo.GetByEmail(email); err == nil {
			fm["message"] = "An account with this email already exists"

			return flash.WithError(c, fm).Redirect("/register")
		}

		user, err := models.CreateUser(name, email, password)
		if err != nil {
			fm["message"] = "Please check your input: " + err.Error()

			return flash.WithError(c, fm).Redirect("/register")
		}

		if ico := c.FormValue("company_id"); ico != "" {
			user.CompanyID = ico
		}

		if err := user.GenerateActivationToken(); err != nil {
			fm["message"] = "Registration failed, please try again"

			return flash.WithError(c, fm).Redirect("/register")
		}

		if err := repo.Create(user); err != nil {
			fm["message"] = "Registration failed, please try again"

			return flash.WithError(c, fm).Redirect("/register")
		}

		activationURL := fmt.Sprintf("%s/activate/%s",
			env.GetEnv("PUBLIC_DOMAIN", "http://localhost:"+env.GetEnv("APP_PORT", "4000")),
			user.ActivationToken,
		)
		body := fmt.Sprintf(
			"<h2>Welcome to CloudVPS</h2><p>Activate your account: <a href=\"%s\">%s</a></p>",
			activationURL, activationURL,
		)
		if err := mail.SendMail(user.Email, "Activate your CloudVPS account", body); err != nil {
			// Account exists; the user can request a new activation mail.
			fm = fiber.Map{
				"type":    "info",
				"message": "Account created, but the activation email could not be sent.",
			}
			return flash.WithInfo(c, fm).Redirect("/login")
		}

		fm = fiber.Map{
			"type":    "success",
			"message": "Account created. Please confirm your email address.",
		}

		return flash.WithSuccess(c, fm).Redirect("/login")
	}

	return c.Render("auth/register", fiber.Map{
		"Title":         "Register",
		"FromProtected": isLoggedIn(c),
		"Flash":         flash.Get(c),
		"csrf":          c.Locals("csrf"),
	}, "layouts/main")
}

// HandleUserActivate confirms the emailed activation token.
func HandleUserActivate(c *fiber.Ctx) error {
	token := c.Params("token")
	fm := fiber.Map{
		"type": "error",
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByActivationToken(token)
	if err != nil {
		fm["message"] = "Invalid or expired activation link"

		return flash.WithError(c, fm).Redirect("/login")
	}

	user.Status = models.STATUS_ACTIVE
	user.ActivationToken = ""
	if err := repo.Update(user); err != nil {
		fm["message"] = "Activation failed, please try again"

		return flash.WithError(c, fm).Redirect("/login")
	}

	fm = fiber.Map{
		"type":    "success",
		"message": "Account activated. You can log in now.",
	}

	return flash.WithSuccess(c, fm).Redirect("/login")
}
