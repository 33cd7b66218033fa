package handler

import (
	"net/http"
	"time"

	"dirport/internal/domain"
	"dirport/internal/usecase"

	"github.com/labstack/echo/v4"
)

// AuthConfig carries the transport-level settings for the login endpoints.
type AuthConfig struct {
	// PreAuthentication selects the factor-first ordering.
	PreAuthentication bool
	// SessionCookieName names the cookie carrying the raw provider token.
	SessionCookieName string
	// PrincipalCookieName names the portal's own authentication cookie.
	PrincipalCookieName string
	// SecureCookies marks cookies Secure; off only for local development.
	SecureCookies bool
	// RequireCSRF enforces form tokens on credential submissions.
	RequireCSRF bool
}

// AuthHandler exposes the login state machine over HTTP.
type AuthHandler struct {
	credentialLogin *usecase.CredentialLogin
	identityLogin   *usecase.IdentityLogin
	signIn          *usecase.SignIn
	csrf            *usecase.GenerateCSRF
	captcha         domain.CaptchaVerifier
	cfg             AuthConfig
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(
	credentialLogin *usecase.CredentialLogin,
	identityLogin *usecase.IdentityLogin,
	signIn *usecase.SignIn,
	csrf *usecase.GenerateCSRF,
	captcha domain.CaptchaVerifier,
	cfg AuthConfig,
) *AuthHandler {
	return &AuthHandler{
		credentialLogin: credentialLogin,
		identityLogin:   identityLogin,
		signIn:          signIn,
		csrf:            csrf,
		captcha:         captcha,
		cfg:             cfg,
	}
}

// loginRequest is the credential-first submission.
type loginRequest struct {
	Username   string `json:"username" form:"username" validate:"required"`
	Password   string `json:"password" form:"password" validate:"required"`
	SSOSession string `json:"ssoSession" form:"ssoSession"`
	Captcha    string `json:"captcha" form:"captcha"`
	FormID     string `json:"formId" form:"formId"`
	CSRFToken  string `json:"csrfToken" form:"csrfToken"`
}

// identityRequest is the factor-first username-only submission.
type identityRequest struct {
	Username   string `json:"username" form:"username" validate:"required"`
	SSOSession string `json:"ssoSession" form:"ssoSession"`
	Captcha    string `json:"captcha" form:"captcha"`
	FormID     string `json:"formId" form:"formId"`
	CSRFToken  string `json:"csrfToken" form:"csrfToken"`
}

// continueRequest resumes a factor-first login with the real credentials.
type continueRequest struct {
	RequestID string `json:"requestId" form:"requestId" validate:"required"`
	Password  string `json:"password" form:"password" validate:"required"`
}

// loginResponse is the JSON outcome rendered back to the views layer.
type loginResponse struct {
	OK                 bool   `json:"ok"`
	Outcome            string `json:"outcome"`
	RedirectURL        string `json:"redirectUrl,omitempty"`
	RequestID          string `json:"requestId,omitempty"`
	UserName           string `json:"userName,omitempty"`
	MustChangePassword bool   `json:"mustChangePassword,omitempty"`
	MustUnlockUser     bool   `json:"mustUnlockUser,omitempty"`
	Error              string `json:"error,omitempty"`
}

// formResponse carries a fresh form id and CSRF token.
type formResponse struct {
	FormID    string `json:"formId"`
	CSRFToken string `json:"csrfToken"`
}

// HandleForm issues a form id and CSRF token for the anonymous login form.
func (h *AuthHandler) HandleForm(c echo.Context) error {
	formID, token, err := h.csrf.Execute(c.Request().Context())
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, formResponse{FormID: formID, CSRFToken: token})
}

// HandleLogin processes the credential-first submission.
func (h *AuthHandler) HandleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.checkPreconditions(c, req.FormID, req.CSRFToken, req.Captcha); err != nil {
		return err
	}

	outcome, err := h.credentialLogin.Execute(c.Request().Context(), usecase.LoginInput{
		Username:   req.Username,
		Password:   req.Password,
		SSOSession: req.SSOSession,
	})
	if err != nil {
		return mapDomainError(err)
	}
	return h.respond(c, outcome)
}

// HandleIdentity processes the factor-first username submission.
func (h *AuthHandler) HandleIdentity(c echo.Context) error {
	var req identityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.checkPreconditions(c, req.FormID, req.CSRFToken, req.Captcha); err != nil {
		return err
	}

	outcome, err := h.identityLogin.SubmitIdentity(c.Request().Context(), req.Username, req.SSOSession)
	if err != nil {
		return mapDomainError(err)
	}
	return h.respond(c, outcome)
}

// HandleCallback receives the provider's access token after the factor. In
// the factor-first ordering it parks a continuation and asks for
// credentials; otherwise it establishes the session directly.
func (h *AuthHandler) HandleCallback(c echo.Context) error {
	accessToken := c.QueryParam("accessToken")
	if accessToken == "" {
		accessToken = c.FormValue("accessToken")
	}
	if accessToken == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing access token")
	}

	ctx := c.Request().Context()

	if h.cfg.PreAuthentication {
		outcome, err := h.identityLogin.HandleCallback(ctx, accessToken)
		if err != nil {
			return mapDomainError(err)
		}
		return h.respond(c, outcome)
	}

	session, tok, err := h.signIn.Execute(ctx, accessToken)
	if err != nil {
		return mapDomainError(err)
	}
	h.applySession(c, session)
	return c.JSON(http.StatusOK, loginResponse{
		OK:                 true,
		Outcome:            "signed_in",
		UserName:           session.Subject,
		MustChangePassword: tok.MustChangePassword,
		MustUnlockUser:     tok.MustUnlockUser,
	})
}

// HandleContinue finishes a factor-first login with the real credentials.
func (h *AuthHandler) HandleContinue(c echo.Context) error {
	var req continueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	outcome, err := h.identityLogin.Complete(c.Request().Context(), req.RequestID, req.Password)
	if err != nil {
		return mapDomainError(err)
	}
	return h.respond(c, outcome)
}

func (h *AuthHandler) checkPreconditions(c echo.Context, formID, csrfToken, captcha string) error {
	if h.cfg.RequireCSRF && !h.csrf.Verify(formID, csrfToken) {
		return echo.NewHTTPError(http.StatusForbidden, "invalid form token")
	}
	ok, err := h.captcha.Verify(c.Request().Context(), captcha, c.RealIP())
	if err != nil || !ok {
		return mapDomainError(domain.ErrCaptchaFailed)
	}
	return nil
}

func (h *AuthHandler) respond(c echo.Context, outcome *usecase.Outcome) error {
	switch outcome.Kind {
	case usecase.OutcomeRedirect:
		return c.JSON(http.StatusOK, loginResponse{
			OK:                 true,
			Outcome:            "redirect",
			RedirectURL:        outcome.RedirectURL,
			MustChangePassword: outcome.MustChangePassword,
		})

	case usecase.OutcomeBypass:
		return c.JSON(http.StatusOK, loginResponse{
			OK:       true,
			Outcome:  "bypass",
			UserName: outcome.UserName,
		})

	case usecase.OutcomeCredentialsRequired:
		return c.JSON(http.StatusOK, loginResponse{
			OK:        true,
			Outcome:   "credentials_required",
			RequestID: outcome.RequestID,
			UserName:  outcome.UserName,
		})

	case usecase.OutcomeSignedIn:
		h.applySession(c, outcome.Session)
		return c.JSON(http.StatusOK, loginResponse{
			OK:                 true,
			Outcome:            "signed_in",
			UserName:           outcome.Session.Subject,
			MustChangePassword: outcome.MustChangePassword,
			MustUnlockUser:     outcome.MustUnlockUser,
		})

	default:
		return c.JSON(http.StatusUnauthorized, loginResponse{
			OK:      false,
			Outcome: "rejected",
			Error:   "wrong username or password",
		})
	}
}

// applySession invalidates any pre-existing session cookie and sets the new
// session and principal cookies, both expiring with the token.
func (h *AuthHandler) applySession(c echo.Context, session *domain.Session) {
	expired := &http.Cookie{
		Name:     h.cfg.SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	c.SetCookie(expired)

	c.SetCookie(&http.Cookie{
		Name:     h.cfg.SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ValidTo,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	c.SetCookie(&http.Cookie{
		Name:     h.cfg.PrincipalCookieName,
		Value:    session.Principal,
		Path:     "/",
		Expires:  session.ValidTo,
		HttpOnly: true,
		Secure:   h.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
