package signup

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/manan-gakkhar/Doc-Plus/internal/platform/auth"
)

// Page is the data handed to the "signup" template.
type Page struct {
	Roles       []Role
	Role        Role
	Email       string
	Phone       string
	SessionInfo string
	Error       string
	// Step is "confirm" while a phone signup waits for its code.
	Step string
}

type Form struct {
	Role           string `form:"role" json:"role"`
	Email          string `form:"email" json:"email"`
	Password       string `form:"password" json:"password"`
	ProviderID     string `form:"provider_id" json:"provider_id"`
	IDToken        string `form:"id_token" json:"id_token"`
	Phone          string `form:"phone" json:"phone"`
	RecaptchaToken string `form:"recaptcha_token" json:"recaptcha_token"`
	SessionInfo    string `form:"session_info" json:"session_info"`
	Code           string `form:"code" json:"code"`
}

type Handler struct {
	svc          *Service
	secureCookie bool
}

// NewHandler builds the signup handler. secureCookie marks the session
// cookie Secure and should be set whenever the site is served over TLS.
func NewHandler(svc *Service, secureCookie bool) *Handler {
	return &Handler{svc: svc, secureCookie: secureCookie}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/signup", h.Show)
	e.POST("/signup", h.SignUpWithEmail)
	e.POST("/signup/federated", h.SignUpFederated)
	e.POST("/signup/phone/code", h.SendPhoneCode)
	e.POST("/signup/phone", h.SignUpWithPhone)
}

func (h *Handler) Show(c echo.Context) error {
	role, err := ParseRole(c.QueryParam("role"))
	if err != nil {
		role = RolePatient
	}
	return c.Render(http.StatusOK, "signup", Page{Roles: Roles, Role: role})
}

func (h *Handler) SignUpWithEmail(c echo.Context) error {
	var f Form
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	page := Page{Roles: Roles, Email: f.Email}
	role, err := ParseRole(f.Role)
	if err != nil {
		return h.fail(c, page, err)
	}
	page.Role = role

	res, err := h.svc.SignUpWithEmail(c.Request().Context(), role, f.Email, f.Password)
	if err != nil {
		return h.fail(c, page, err)
	}
	return h.succeed(c, res)
}

func (h *Handler) SignUpFederated(c echo.Context) error {
	var f Form
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	page := Page{Roles: Roles}
	role, err := ParseRole(f.Role)
	if err != nil {
		return h.fail(c, page, err)
	}
	page.Role = role

	res, err := h.svc.SignUpWithIDP(c.Request().Context(), role, f.ProviderID, f.IDToken, requestURI(c))
	if err != nil {
		return h.fail(c, page, err)
	}
	return h.succeed(c, res)
}

// SendPhoneCode starts a phone signup. The HTML flow re-renders the form at
// the confirmation step.
func (h *Handler) SendPhoneCode(c echo.Context) error {
	var f Form
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	page := Page{Roles: Roles, Phone: f.Phone}
	role, err := ParseRole(f.Role)
	if err != nil {
		return h.fail(c, page, err)
	}
	page.Role = role

	session, err := h.svc.StartPhone(c.Request().Context(), f.Phone, f.RecaptchaToken)
	if err != nil {
		return h.fail(c, page, err)
	}
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, map[string]string{"session_info": session})
	}
	page.SessionInfo = session
	page.Step = "confirm"
	return c.Render(http.StatusOK, "signup", page)
}

func (h *Handler) SignUpWithPhone(c echo.Context) error {
	var f Form
	if err := c.Bind(&f); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid form")
	}
	page := Page{Roles: Roles, Phone: f.Phone, SessionInfo: f.SessionInfo, Step: "confirm"}
	role, err := ParseRole(f.Role)
	if err != nil {
		return h.fail(c, page, err)
	}
	page.Role = role

	res, err := h.svc.SignUpWithPhone(c.Request().Context(), role, f.SessionInfo, f.Code)
	if err != nil {
		return h.fail(c, page, err)
	}
	return h.succeed(c, res)
}

func (h *Handler) succeed(c echo.Context, res *Result) error {
	maxAge := res.User.ExpiresIn
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	if res.User.IDToken != "" {
		c.SetCookie(&http.Cookie{
			Name:     auth.SessionCookie,
			Value:    res.User.IDToken,
			Path:     "/",
			MaxAge:   int(maxAge.Seconds()),
			HttpOnly: true,
			Secure:   h.secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
	}
	if wantsJSON(c) {
		return c.JSON(http.StatusCreated, map[string]string{
			"uid":      res.User.UID,
			"role":     string(res.Role),
			"redirect": res.Redirect,
		})
	}
	return c.Redirect(http.StatusSeeOther, res.Redirect)
}

// fail shows the mapped message: inline on the form for browsers, as a 400
// for API clients.
func (h *Handler) fail(c echo.Context, page Page, err error) error {
	msg := MessageForError(CodeOf(err))
	if errors.Is(err, ErrInvalidRole) {
		msg = "Unknown role"
	}
	if wantsJSON(c) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
	}
	if page.Role == "" {
		page.Role = RolePatient
	}
	page.Error = msg
	return c.Render(http.StatusOK, "signup", page)
}

func wantsJSON(c echo.Context) bool {
	r := c.Request()
	return strings.HasPrefix(r.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) ||
		strings.Contains(r.Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}

func requestURI(c echo.Context) string {
	return c.Scheme() + "://" + c.Request().Host + "/signup"
}
