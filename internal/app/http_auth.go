package app

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"launchkit/api/internal/audit"
	"launchkit/api/internal/auth"
	"launchkit/api/internal/authpw"
	"launchkit/api/internal/guard"
	"launchkit/api/internal/i18n"
	"launchkit/api/internal/ratelimit"
	"launchkit/api/internal/store"
)

func (s *HTTPServer) handleAuth(w http.ResponseWriter, r *http.Request, route string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}
	switch route {
	case "signup":
		s.handleSignUp(w, r)
	case "signin":
		s.handleSignIn(w, r)
	case "signout":
		s.handleSignOut(w, r)
	case "verify-email":
		s.handleVerifyEmail(w, r)
	case "resend-verification":
		s.handleResendVerification(w, r)
	case "reset-password/request":
		s.handleRequestReset(w, r)
	case "reset-password":
		s.handleResetPassword(w, r)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleSignUp(w http.ResponseWriter, r *http.Request) {
	locale := i18n.FromRequest(r)
	var body struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	resp, err := s.service.passwords.SignUp(r.Context(), authpw.SignUpRequest{
		Email:       strings.ToLower(strings.TrimSpace(body.Email)),
		Password:    body.Password,
		DisplayName: body.DisplayName,
	})
	switch {
	case errors.Is(err, authpw.ErrEmailTaken):
		writeError(w, http.StatusConflict, "EMAIL_EXISTS", locale.T(i18n.EmailTaken), nil)
		return
	case errors.Is(err, authpw.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "WEAK_PASSWORD", locale.T(i18n.WeakPassword), nil)
		return
	case errors.Is(err, authpw.ErrMissingFields), errors.Is(err, authpw.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, "SIGNUP_FAILED", locale.T(i18n.InvalidData), nil)
		return
	case err != nil:
		s.logger.Error().Err(err).Msg("sign up")
		writeMappedError(w, err)
		return
	}

	s.service.recorder.Record(r.Context(), audit.Entry{
		Action:     audit.UserSignUp,
		ActorID:    resp.User.ID,
		TargetID:   resp.User.ID,
		TargetType: "user",
		IPAddress:  ratelimit.ClientIP(r),
	})

	response := map[string]any{"userId": resp.User.ID}
	if s.service.smtpConfigured() {
		link := s.service.cfg.AppURL + "/verify-email?token=" + url.QueryEscape(resp.VerificationToken)
		if err := s.service.mailer.SendVerification(locale.Locale(), resp.User.Email, resp.User.DisplayName, link); err != nil {
			s.logger.Warn().Err(err).Str("user_id", resp.User.ID).Msg("send verification email")
		}
	} else {
		response["devVerificationToken"] = resp.VerificationToken
	}
	writeJSON(w, http.StatusCreated, response)
}

func (s *HTTPServer) handleSignIn(w http.ResponseWriter, r *http.Request) {
	locale := i18n.FromRequest(r)
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	user, err := s.service.passwords.SignIn(r.Context(), authpw.SignInRequest{
		Email:    strings.ToLower(strings.TrimSpace(body.Email)),
		Password: body.Password,
	})
	switch {
	case errors.Is(err, authpw.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", locale.T(i18n.BadCredentials), nil)
		return
	case errors.Is(err, authpw.ErrEmailNotVerified):
		writeError(w, http.StatusForbidden, "EMAIL_NOT_VERIFIED", locale.T(i18n.EmailUnverified), nil)
		return
	case err != nil:
		s.logger.Error().Err(err).Msg("sign in")
		writeMappedError(w, err)
		return
	}

	token, err := s.service.startSession(r.Context(), user)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID).Msg("start session")
		writeError(w, http.StatusInternalServerError, "SESSION_FAILED", "Failed to create session", nil)
		return
	}
	setCookie(w, auth.CookieName, token, s.service.cfg.SessionTTL, s.service.cfg.CookieSecure)
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  newUserView(user),
	})
}

func (s *HTTPServer) handleSignOut(w http.ResponseWriter, r *http.Request) {
	scope := guard.FromContext(r.Context())
	if session, ok := scope.Session(r.Context()); ok {
		if err := s.service.sessions.Revoke(r.Context(), session.ID); err != nil {
			s.logger.Warn().Err(err).Str("user_id", session.UserID).Msg("revoke session")
		}
		scope.Forget()
	}
	setCookie(w, auth.CookieName, "", -1, s.service.cfg.CookieSecure)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	user, err := s.service.passwords.VerifyEmail(r.Context(), body.Token)
	if errors.Is(err, authpw.ErrInvalidToken) {
		writeError(w, http.StatusBadRequest, "VERIFICATION_FAILED", i18n.FromRequest(r).T(i18n.InvalidToken), nil)
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("verify email")
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": newUserView(user)})
}

func (s *HTTPServer) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	locale := i18n.FromRequest(r)
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	token, err := s.service.passwords.ResendVerification(r.Context(), email)
	if err != nil {
		s.logger.Warn().Err(err).Msg("resend verification")
	}

	response := map[string]any{"ok": true}
	if token != "" {
		if s.service.smtpConfigured() {
			user, err := s.service.store.GetUserByEmail(r.Context(), email)
			if err == nil {
				link := s.service.cfg.AppURL + "/verify-email?token=" + url.QueryEscape(token)
				if err := s.service.mailer.SendVerification(locale.Locale(), user.Email, user.DisplayName, link); err != nil {
					s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("send verification email")
				}
			}
		} else {
			response["devVerificationToken"] = token
		}
	}
	writeJSON(w, http.StatusOK, response)
}

// handleRequestReset answers the same way whether or not the address exists.
func (s *HTTPServer) handleRequestReset(w http.ResponseWriter, r *http.Request) {
	locale := i18n.FromRequest(r)
	var body struct {
		Email string `json:"email"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	token, err := s.service.passwords.RequestPasswordReset(r.Context(), email)
	if err != nil {
		s.logger.Warn().Err(err).Msg("request password reset")
	}

	response := map[string]any{"ok": true}
	if token != "" {
		if s.service.smtpConfigured() {
			user, err := s.service.store.GetUserByEmail(r.Context(), email)
			if err == nil {
				link := s.service.cfg.AppURL + "/reset-password?token=" + url.QueryEscape(token)
				if err := s.service.mailer.SendPasswordReset(locale.Locale(), user.Email, user.DisplayName, link); err != nil {
					s.logger.Warn().Err(err).Str("user_id", user.ID).Msg("send password reset email")
				}
			}
		} else {
			response["devResetToken"] = token
		}
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *HTTPServer) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	locale := i18n.FromRequest(r)
	var body struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	userID, err := s.service.passwords.ResetPassword(r.Context(), authpw.ResetPasswordRequest{
		Token:       body.Token,
		NewPassword: body.NewPassword,
	})
	switch {
	case errors.Is(err, authpw.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "WEAK_PASSWORD", locale.T(i18n.WeakPassword), nil)
		return
	case errors.Is(err, authpw.ErrInvalidToken):
		writeError(w, http.StatusBadRequest, "RESET_FAILED", locale.T(i18n.InvalidToken), nil)
		return
	case err != nil:
		s.logger.Error().Err(err).Msg("reset password")
		writeMappedError(w, err)
		return
	}

	// Existing sessions end with the old password.
	if err := s.service.sessions.RevokeUser(r.Context(), userID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("revoke sessions after reset")
	}
	s.service.recorder.Record(r.Context(), audit.Entry{
		Action:     audit.UserPasswordReset,
		ActorID:    userID,
		TargetID:   userID,
		TargetType: "user",
		IPAddress:  ratelimit.ClientIP(r),
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	user, err := s.service.store.GetUserByID(r.Context(), session.UserID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return
	}
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":   newUserView(user),
		"locale": i18n.FromRequest(r).Locale(),
	})
}
