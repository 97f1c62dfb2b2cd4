package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"sacco-console/internal/adapters/api"
	"sacco-console/internal/core/domain"
	"sacco-console/internal/core/session"
	"sacco-console/internal/pkg/password"

	"go.uber.org/zap"
)

// State is the position of a visitor in the login flow
type State string

const (
	StateAnonymous             State = "anonymous"
	StateCredentialsSubmitted  State = "credentials-submitted"
	StateOTPPending            State = "otp-pending"
	StatePasswordChangePending State = "password-change-pending"
	StateAuthenticated         State = "authenticated"
	StateAbandoned             State = "abandoned"
)

// LoginOutcome tells the caller where a login attempt ended
type LoginOutcome string

const (
	OutcomeAuthenticated          LoginOutcome = "authenticated"
	OutcomeRequiresTwoFactor      LoginOutcome = "requires_2fa"
	OutcomePasswordChangeRequired LoginOutcome = "password_change_required"
	OutcomeLoginRequired          LoginOutcome = "login_required"
)

const statusRequiresTwoFactor = "requires_2fa"

// LoginInput represents login input
type LoginInput struct {
	Email    string    `json:"email"`
	Password string    `json:"password"`
	BranchID domain.ID `json:"branchId,omitempty"`
}

// LoginResult is returned by Login, VerifyOTP and the forced password change
type LoginResult struct {
	Outcome   LoginOutcome             `json:"outcome"`
	User      *domain.User             `json:"user,omitempty"`
	TwoFactor *domain.PendingTwoFactor `json:"twoFactor,omitempty"`
}

// loginResponse covers both shapes /users/login and /auth/2fa/verify-otp use
type loginResponse struct {
	Status          string       `json:"status"`
	Message         string       `json:"message"`
	Token           string       `json:"token"`
	User            *domain.User `json:"user"`
	UserID          domain.ID    `json:"userId"`
	TwoFactorMethod string       `json:"twoFactorMethod"`
}

// AuthService drives the login state machine of one visitor:
// anonymous → credentials-submitted → (authenticated | otp-pending |
// password-change-pending) → (authenticated | abandoned)
type AuthService struct {
	client  *api.Client
	tokens  *session.TokenStore
	pending *session.PendingStore
	log     *zap.Logger
	state   State
}

// NewAuthService creates the controller and derives its state from storage
func NewAuthService(client *api.Client, tokens *session.TokenStore, pending *session.PendingStore, log *zap.Logger) *AuthService {
	s := &AuthService{
		client:  client,
		tokens:  tokens,
		pending: pending,
		log:     log,
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.state = s.derive()
	return s
}

// State returns the current state of the flow
func (s *AuthService) State() State {
	return s.state
}

func (s *AuthService) derive() State {
	if s.tokens.IsAuthenticated() {
		return StateAuthenticated
	}
	if _, ok := s.pending.TwoFactor(); ok {
		return StateOTPPending
	}
	if _, ok := s.pending.PasswordChange(); ok {
		return StatePasswordChangePending
	}
	return StateAnonymous
}

// Login submits credentials. A requires_2fa answer stores only the pending
// identity; no token is persisted until VerifyOTP succeeds.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	input.Email = strings.TrimSpace(input.Email)
	if input.Email == "" || input.Password == "" {
		return nil, fmt.Errorf("%w: email and password are required", domain.ErrInvalidInput)
	}

	s.state = StateCredentialsSubmitted

	var resp loginResponse
	if err := s.client.Post(ctx, "/users/login", input, &resp, api.SkipAuth()); err != nil {
		s.state = s.derive()
		return nil, err
	}

	// A fresh attempt supersedes whatever an earlier attempt left behind.
	_ = s.pending.ClearTwoFactor()
	_ = s.pending.ClearPasswordChange()

	if resp.Status == statusRequiresTwoFactor {
		if err := s.tokens.Clear(); err != nil {
			s.log.Warn("clear stale session failed", zap.Error(err))
		}
		pending := domain.PendingTwoFactor{
			UserID:          resp.UserID,
			TwoFactorMethod: resp.TwoFactorMethod,
			Email:           input.Email,
			BranchID:        input.BranchID,
		}
		if pending.UserID == "" && resp.User != nil {
			pending.UserID = resp.User.ID
		}
		if pending.UserID == "" {
			s.state = s.derive()
			return nil, domain.ErrUnexpectedLoginResponse
		}
		if err := s.pending.SaveTwoFactor(pending); err != nil {
			s.state = s.derive()
			return nil, fmt.Errorf("store pending two-factor login: %w", err)
		}
		s.state = StateOTPPending
		s.log.Info("login requires two-factor verification",
			zap.String("user_id", pending.UserID.String()),
			zap.String("method", pending.TwoFactorMethod),
		)
		return &LoginResult{Outcome: OutcomeRequiresTwoFactor, TwoFactor: &pending}, nil
	}

	return s.establish(resp.Token, resp.User)
}

// PendingTwoFactor returns the login waiting for an OTP
func (s *AuthService) PendingTwoFactor() (*domain.PendingTwoFactor, bool) {
	return s.pending.TwoFactor()
}

// RequestOTP asks the backend to (re)send the one-time code. The state is
// left untouched.
func (s *AuthService) RequestOTP(ctx context.Context, userID domain.ID) error {
	userID, err := s.pendingUserID(userID)
	if err != nil {
		return err
	}
	body := map[string]any{"userId": userID}
	return s.client.Post(ctx, "/auth/2fa/request-otp", body, nil, api.SkipAuth())
}

// VerifyOTP completes a two-factor login. On failure the visitor stays in
// otp-pending and may retry.
func (s *AuthService) VerifyOTP(ctx context.Context, userID domain.ID, code string) (*LoginResult, error) {
	userID, err := s.pendingUserID(userID)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", domain.ErrInvalidInput)
	}

	var resp loginResponse
	body := map[string]any{"userId": userID, "otp": code}
	if err := s.client.Post(ctx, "/auth/2fa/verify-otp", body, &resp, api.SkipAuth()); err != nil {
		s.state = StateOTPPending
		return nil, err
	}

	result, err := s.establish(resp.Token, resp.User)
	if err != nil {
		return nil, err
	}
	_ = s.pending.ClearTwoFactor()
	return result, nil
}

func (s *AuthService) pendingUserID(userID domain.ID) (domain.ID, error) {
	pending, ok := s.pending.TwoFactor()
	if !ok {
		return "", domain.ErrNoPendingTwoFactor
	}
	if userID == "" {
		return pending.UserID, nil
	}
	if userID != pending.UserID {
		return "", fmt.Errorf("%w: user does not match the pending login", domain.ErrInvalidInput)
	}
	return userID, nil
}

// Abandon drops any unfinished login
func (s *AuthService) Abandon() error {
	errTwoFactor := s.pending.ClearTwoFactor()
	errPassword := s.pending.ClearPasswordChange()
	s.state = StateAbandoned
	if errTwoFactor != nil {
		return errTwoFactor
	}
	return errPassword
}

// establish turns a token and user into a session, unless the backend wants
// the password changed first
func (s *AuthService) establish(token string, user *domain.User) (*LoginResult, error) {
	if token == "" || user == nil {
		s.state = s.derive()
		return nil, domain.ErrUnexpectedLoginResponse
	}

	if user.PasswordChangeRequired {
		if err := s.tokens.Clear(); err != nil {
			s.log.Warn("clear stale session failed", zap.Error(err))
		}
		if err := s.pending.SavePasswordChange(domain.PendingPasswordChange{Token: token, User: *user}); err != nil {
			s.state = s.derive()
			return nil, fmt.Errorf("store pending password change: %w", err)
		}
		s.state = StatePasswordChangePending
		s.log.Info("login blocked on password change",
			zap.String("user_id", user.ID.String()),
			zap.String("token", password.Fingerprint(token)),
		)
		return &LoginResult{Outcome: OutcomePasswordChangeRequired, User: user}, nil
	}

	if err := s.tokens.SetSession(token, *user); err != nil {
		s.state = s.derive()
		return nil, fmt.Errorf("persist session: %w", err)
	}
	s.client.Guard().Reset()
	s.state = StateAuthenticated
	s.log.Info("user logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)),
		zap.String("token", password.Fingerprint(token)),
	)
	return &LoginResult{Outcome: OutcomeAuthenticated, User: user}, nil
}

// Logout tells the backend (best effort) and always clears local state. The
// client's 401 handling is suspended meanwhile so it does not race this
// cleanup with a redirect of its own.
func (s *AuthService) Logout(ctx context.Context) error {
	guard := s.client.Guard()
	guard.BeginLogout()
	defer guard.EndLogout()

	if err := s.client.Post(ctx, "/auth/logout", nil, nil); err != nil {
		s.log.Warn("backend logout failed", zap.Error(err))
	}

	errTokens := s.tokens.Clear()
	if err := s.pending.Clear(); err != nil {
		s.log.Warn("clear pending state failed", zap.Error(err))
	}
	s.state = StateAnonymous
	return errTokens
}

// CurrentUser returns the user of the stored session
func (s *AuthService) CurrentUser() (*domain.User, bool) {
	if !s.tokens.IsAuthenticated() {
		return nil, false
	}
	return s.tokens.CurrentUser()
}

// IsAuthenticated reports whether a complete session is stored
func (s *AuthService) IsAuthenticated() bool {
	return s.tokens.IsAuthenticated()
}

// HasPendingPasswordChange reports whether a login waits on a forced change
func (s *AuthService) HasPendingPasswordChange() bool {
	_, ok := s.pending.PasswordChange()
	return ok
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePassword changes the password of the signed-in user. The session
// itself is kept; a user record in the answer replaces the stored one. A
// rejected current password is returned as an error and ends nothing.
func (s *AuthService) ChangePassword(ctx context.Context, current, next string) error {
	if !s.tokens.IsAuthenticated() {
		return domain.ErrNotAuthenticated
	}
	if err := password.Validate(current, next); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrWeakPassword, err)
	}

	var resp loginResponse
	if err := s.client.Post(ctx, "/auth/change-password", changePasswordRequest{current, next}, &resp, api.CredentialCheck()); err != nil {
		return err
	}
	if resp.User != nil {
		if err := s.tokens.ReplaceUser(*resp.User); err != nil {
			return fmt.Errorf("replace user: %w", err)
		}
	}
	return nil
}

// CompleteForcedPasswordChange changes the password with the held-back
// token. A fresh token in the answer becomes the session; otherwise the
// visitor has to log in again. The pending data is dropped either way.
func (s *AuthService) CompleteForcedPasswordChange(ctx context.Context, current, next string) (*LoginResult, error) {
	pending, ok := s.pending.PasswordChange()
	if !ok {
		return nil, domain.ErrNoPendingPasswordChange
	}
	if err := password.Validate(current, next); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrWeakPassword, err)
	}

	var resp loginResponse
	if err := s.client.Post(ctx, "/auth/change-password", changePasswordRequest{current, next}, &resp,
		api.WithToken(pending.Token), api.CredentialCheck()); err != nil {
		return nil, err
	}
	_ = s.pending.ClearPasswordChange()

	if resp.Token != "" && resp.User != nil {
		user := *resp.User
		user.PasswordChangeRequired = false
		return s.establish(resp.Token, &user)
	}

	if err := s.tokens.Clear(); err != nil {
		s.log.Warn("clear session failed", zap.Error(err))
	}
	s.state = StateAnonymous
	s.log.Info("password changed, fresh login required", zap.String("user_id", pending.User.ID.String()))
	return &LoginResult{Outcome: OutcomeLoginRequired, User: &pending.User}, nil
}

// UpdateProfile saves profile fields and replaces the stored user with the
// record the backend returns
func (s *AuthService) UpdateProfile(ctx context.Context, fields map[string]any) (*domain.User, error) {
	if !s.tokens.IsAuthenticated() {
		return nil, domain.ErrNotAuthenticated
	}

	var raw json.RawMessage
	if err := s.client.Put(ctx, "/users/profile", fields, &raw); err != nil {
		return nil, err
	}
	user, err := decodeUser(raw)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.ReplaceUser(*user); err != nil {
		return nil, fmt.Errorf("replace user: %w", err)
	}
	return user, nil
}

// decodeUser accepts either {"user": {...}} or a bare user object
func decodeUser(raw json.RawMessage) (*domain.User, error) {
	var wrapped struct {
		User *domain.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User, nil
	}
	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil || user.ID == "" {
		return nil, fmt.Errorf("decode user: %w", domain.ErrUnexpectedLoginResponse)
	}
	return &user, nil
}
