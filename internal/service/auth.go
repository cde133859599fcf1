package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"greenmart/api/internal/apperr"
	"greenmart/api/internal/ids"
	"greenmart/api/internal/mail"
	"greenmart/api/internal/models"
	"greenmart/api/internal/repository"
	"greenmart/api/internal/security"
)

// Capability interfaces implemented by the pgx repositories, the redis
// pending store, the jwt issuer and the minio avatar store. The service
// holds typed references, never concrete adapters.
type UserStore interface {
	Create(ctx context.Context, user models.User) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (models.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) (models.User, error)
	UpdateAvatar(ctx context.Context, id uuid.UUID, avatarURL string) error
}

type TokenStore interface {
	Create(ctx context.Context, token models.RefreshToken) error
	DeleteByToken(ctx context.Context, token string) (bool, error)
}

type VerificationCache interface {
	SaveCode(ctx context.Context, code string, pending models.PendingRegistration, ttl time.Duration) error
	SaveUserCode(ctx context.Context, userID string, code string, ttl time.Duration) error
	GetByCode(ctx context.Context, code string) (*models.PendingRegistration, error)
	GetUserCode(ctx context.Context, userID string) (string, error)
	DeleteCode(ctx context.Context, code string) error
	DeleteUserCode(ctx context.Context, userID string) error
}

type TokenIssuer interface {
	CreateAccessToken(userID string) (string, error)
	CreateRefreshToken(userID string) (string, time.Time, error)
	DecodeRefreshToken(token string) (*security.Claims, error)
}

type TemplateRenderer interface {
	Render(name string, context map[string]any) (string, error)
}

type AvatarStore interface {
	PutAvatar(ctx context.Context, objectKey string, data []byte, contentType string) (string, error)
}

const verifyEmailTemplate = "verify_email.html"

type AuthService struct {
	users           UserStore
	tokens          TokenStore
	pending         VerificationCache
	issuer          TokenIssuer
	mailer          mail.Mailer
	renderer        TemplateRenderer
	avatars         AvatarStore
	verificationTTL time.Duration
	maxResends      int
	log             zerolog.Logger
}

type AuthServiceDeps struct {
	Users           UserStore
	Tokens          TokenStore
	Pending         VerificationCache
	Issuer          TokenIssuer
	Mailer          mail.Mailer
	Renderer        TemplateRenderer
	Avatars         AvatarStore
	VerificationTTL time.Duration
	MaxResends      int
	Log             zerolog.Logger
}

func NewAuthService(deps AuthServiceDeps) *AuthService {
	return &AuthService{
		users:           deps.Users,
		tokens:          deps.Tokens,
		pending:         deps.Pending,
		issuer:          deps.Issuer,
		mailer:          deps.Mailer,
		renderer:        deps.Renderer,
		avatars:         deps.Avatars,
		verificationTTL: deps.VerificationTTL,
		maxResends:      deps.MaxResends,
		log:             deps.Log,
	}
}

type RegisterInput struct {
	Username       *string
	FirstName      *string
	LastName       *string
	Phone          *string
	Email          string
	Password       string
	RepeatPassword string
}

type RegisterAck struct {
	Message string
	UserID  uuid.UUID
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Register starts a local registration: the candidate is parked in the cache
// under a fresh verification code and a mail goes out. No user row and no
// token pair exist until the code is verified.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (RegisterAck, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))

	_, err := s.users.FindByEmail(ctx, input.Email)
	if err == nil {
		return RegisterAck{}, apperr.New(apperr.KindConflict, "email already exists")
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return RegisterAck{}, fmt.Errorf("find user by email: %w", err)
	}

	if input.Password != input.RepeatPassword {
		return RegisterAck{}, apperr.New(apperr.KindBadRequest, "passwords do not match")
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return RegisterAck{}, fmt.Errorf("hash password: %w", err)
	}

	candidate := models.PendingRegistration{
		ID:           uuid.New(),
		AuthType:     models.AuthTypeLocal,
		Username:     input.Username,
		Email:        input.Email,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Phone:        input.Phone,
		PasswordHash: &hash,
	}

	if err := s.issueVerification(ctx, candidate); err != nil {
		return RegisterAck{}, err
	}

	return RegisterAck{Message: "verification code sent", UserID: candidate.ID}, nil
}

type FederatedInput struct {
	Email      string
	Name       *string
	GivenName  *string
	FamilyName *string
	Provider   models.AuthType
	UserAgent  string
}

// RegisterFederated skips verification entirely: the provider already proved
// the email. A missing user is created active; an existing one is reused.
func (s *AuthService) RegisterFederated(ctx context.Context, input FederatedInput) (TokenPair, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))

	user, err := s.users.FindByEmail(ctx, input.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		user, err = s.users.Create(ctx, models.User{
			ID:          uuid.New(),
			AuthType:    input.Provider,
			Username:    input.Name,
			Email:       input.Email,
			FirstName:   input.GivenName,
			LastName:    input.FamilyName,
			IsActivated: true,
			RoleID:      models.RoleCustomer,
		})
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("resolve federated user: %w", err)
	}

	return s.issueTokenPair(ctx, user.ID, input.UserAgent)
}

// Resend re-issues the verification code for a pending registration, at most
// maxResends times.
func (s *AuthService) Resend(ctx context.Context, userID uuid.UUID) (RegisterAck, error) {
	code, err := s.pending.GetUserCode(ctx, userID.String())
	if err != nil {
		return RegisterAck{}, fmt.Errorf("lookup pending code: %w", err)
	}
	var candidate *models.PendingRegistration
	if code != "" {
		candidate, err = s.pending.GetByCode(ctx, code)
		if err != nil {
			return RegisterAck{}, fmt.Errorf("lookup pending registration: %w", err)
		}
	}
	if candidate == nil {
		return RegisterAck{}, apperr.New(apperr.KindBadRequest, "verification code expired")
	}

	if err := s.pending.DeleteCode(ctx, code); err != nil {
		s.log.Warn().Err(err).Msg("delete pending code failed")
	}
	if err := s.pending.DeleteUserCode(ctx, userID.String()); err != nil {
		s.log.Warn().Err(err).Msg("delete pending user code failed")
	}

	if candidate.ResendCount >= s.maxResends {
		return RegisterAck{}, apperr.New(apperr.KindTooManyRequests, "too many requests")
	}

	candidate.ResendCount++
	if err := s.issueVerification(ctx, *candidate); err != nil {
		return RegisterAck{}, err
	}

	return RegisterAck{Message: "verification code sent", UserID: userID}, nil
}

// VerifyEmail consumes a code: the candidate becomes a real user row, the
// code is removed and a token pair is issued.
func (s *AuthService) VerifyEmail(ctx context.Context, code string, userAgent string) (TokenPair, error) {
	candidate, err := s.pending.GetByCode(ctx, code)
	if err != nil {
		return TokenPair{}, fmt.Errorf("lookup pending registration: %w", err)
	}
	if candidate == nil {
		return TokenPair{}, apperr.New(apperr.KindBadRequest, "verification code expired")
	}

	user, err := s.users.Create(ctx, models.User{
		ID:           candidate.ID,
		AuthType:     candidate.AuthType,
		Username:     candidate.Username,
		Email:        candidate.Email,
		FirstName:    candidate.FirstName,
		LastName:     candidate.LastName,
		Phone:        candidate.Phone,
		PasswordHash: candidate.PasswordHash,
		IsActivated:  true,
		RoleID:       models.RoleCustomer,
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("create user: %w", err)
	}

	if err := s.pending.DeleteCode(ctx, code); err != nil {
		s.log.Warn().Err(err).Msg("delete pending code failed")
	}

	return s.issueTokenPair(ctx, user.ID, userAgent)
}

// VerifyCode checks a code without consuming the payload, restarting the TTL
// on both keys. Used by the password-reset flow before the new password is
// submitted.
func (s *AuthService) VerifyCode(ctx context.Context, code string) error {
	candidate, err := s.pending.GetByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("lookup pending registration: %w", err)
	}
	if candidate == nil {
		return apperr.New(apperr.KindBadRequest, "verification code expired")
	}

	if err := s.pending.DeleteCode(ctx, code); err != nil {
		s.log.Warn().Err(err).Msg("delete pending code failed")
	}
	if err := s.pending.SaveCode(ctx, code, *candidate, s.verificationTTL); err != nil {
		return fmt.Errorf("re-arm pending code: %w", err)
	}
	if err := s.pending.SaveUserCode(ctx, candidate.ID.String(), code, s.verificationTTL); err != nil {
		return fmt.Errorf("re-arm pending user code: %w", err)
	}
	return nil
}

// Login deliberately reports the same message whether the email is unknown,
// the account has no password, or the password is wrong.
func (s *AuthService) Login(ctx context.Context, email, password, userAgent string) (TokenPair, error) {
	invalidCredentials := apperr.New(apperr.KindBadRequest, "invalid email or password")

	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return TokenPair{}, invalidCredentials
		}
		return TokenPair{}, fmt.Errorf("find user by email: %w", err)
	}

	if user.PasswordHash == nil {
		return TokenPair{}, invalidCredentials
	}
	ok, err := security.VerifyPassword(password, *user.PasswordHash)
	if err != nil || !ok {
		return TokenPair{}, invalidCredentials
	}

	return s.issueTokenPair(ctx, user.ID, userAgent)
}

// Refresh rotates the refresh token: the presented row is deleted before a
// new pair is issued, so every refresh token is single-use. A token that
// decodes fine but has no row left was already rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, userAgent string) (TokenPair, error) {
	claims, err := s.issuer.DecodeRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, apperr.New(apperr.KindUnauthorized, "unauthorized")
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return TokenPair{}, apperr.New(apperr.KindUnauthorized, "unauthorized")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return TokenPair{}, apperr.New(apperr.KindNotFound, "user not found")
		}
		return TokenPair{}, fmt.Errorf("get user: %w", err)
	}

	deleted, err := s.tokens.DeleteByToken(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, fmt.Errorf("delete refresh token: %w", err)
	}
	if !deleted {
		return TokenPair{}, apperr.New(apperr.KindGone, "refresh token already used")
	}

	return s.issueTokenPair(ctx, user.ID, userAgent)
}

// Logout is idempotent; an unknown token is not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if _, err := s.tokens.DeleteByToken(ctx, refreshToken); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// ForgotPassword re-enters the verification flow for an existing user; no
// new user is created.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (RegisterAck, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return RegisterAck{}, apperr.New(apperr.KindNotFound, "user not found")
		}
		return RegisterAck{}, fmt.Errorf("find user by email: %w", err)
	}

	candidate := models.PendingRegistration{
		ID:           user.ID,
		AuthType:     user.AuthType,
		Username:     user.Username,
		Email:        user.Email,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Phone:        user.Phone,
		PasswordHash: user.PasswordHash,
	}
	if err := s.issueVerification(ctx, candidate); err != nil {
		return RegisterAck{}, err
	}

	return RegisterAck{Message: "verification code sent", UserID: user.ID}, nil
}

type ChangePasswordInput struct {
	UserID         uuid.UUID
	Password       string
	RepeatPassword string
	UserAgent      string
}

// ChangePassword requires a still-valid pending code for the user. A token
// pair is issued as part of the change but only the confirmation message is
// returned to the caller.
func (s *AuthService) ChangePassword(ctx context.Context, input ChangePasswordInput) error {
	if input.Password != input.RepeatPassword {
		return apperr.New(apperr.KindBadRequest, "passwords do not match")
	}

	code, err := s.pending.GetUserCode(ctx, input.UserID.String())
	if err != nil {
		return fmt.Errorf("lookup pending code: %w", err)
	}
	var candidate *models.PendingRegistration
	if code != "" {
		candidate, err = s.pending.GetByCode(ctx, code)
		if err != nil {
			return fmt.Errorf("lookup pending registration: %w", err)
		}
	}
	if candidate == nil {
		return apperr.New(apperr.KindBadRequest, "verification time expired")
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.UpdatePassword(ctx, candidate.ID, hash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if _, err := s.issueTokenPair(ctx, user.ID, input.UserAgent); err != nil {
		return err
	}
	return nil
}

// UpdateAvatar stores the image and persists its public URL on the user row.
func (s *AuthService) UpdateAvatar(ctx context.Context, userID uuid.UUID, data []byte, contentType, filename string) (string, error) {
	if len(data) == 0 {
		return "", apperr.New(apperr.KindBadRequest, "empty file")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", apperr.New(apperr.KindBadRequest, "unsupported file type")
	}

	objectKey := ids.New() + strings.ToLower(path.Ext(filename))
	url, err := s.avatars.PutAvatar(ctx, objectKey, data, contentType)
	if err != nil {
		return "", fmt.Errorf("store avatar: %w", err)
	}

	if err := s.users.UpdateAvatar(ctx, userID, url); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", apperr.New(apperr.KindNotFound, "user not found")
		}
		return "", fmt.Errorf("update avatar: %w", err)
	}
	return url, nil
}

func (s *AuthService) issueTokenPair(ctx context.Context, userID uuid.UUID, userAgent string) (TokenPair, error) {
	accessToken, err := s.issuer.CreateAccessToken(userID.String())
	if err != nil {
		return TokenPair{}, fmt.Errorf("create access token: %w", err)
	}

	refreshToken, expiresAt, err := s.issuer.CreateRefreshToken(userID.String())
	if err != nil {
		return TokenPair{}, fmt.Errorf("create refresh token: %w", err)
	}

	if err := s.tokens.Create(ctx, models.RefreshToken{
		UserID:    userID,
		Token:     refreshToken,
		UserAgent: userAgent,
		ExpiresAt: expiresAt,
	}); err != nil {
		return TokenPair{}, fmt.Errorf("persist refresh token: %w", err)
	}

	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// issueVerification writes the code under both cache keys and sends exactly
// one email. A delivery failure surfaces as a gateway timeout.
func (s *AuthService) issueVerification(ctx context.Context, candidate models.PendingRegistration) error {
	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}

	body, err := s.renderer.Render(verifyEmailTemplate, map[string]any{
		"year": time.Now().Year(),
		"code": code,
	})
	if err != nil {
		return fmt.Errorf("render verification email: %w", err)
	}

	if err := s.pending.SaveCode(ctx, code, candidate, s.verificationTTL); err != nil {
		return fmt.Errorf("save pending code: %w", err)
	}
	if err := s.pending.SaveUserCode(ctx, candidate.ID.String(), code, s.verificationTTL); err != nil {
		return fmt.Errorf("save pending user code: %w", err)
	}

	if err := s.mailer.SendEmail(candidate.Email, "Email Verification", body); err != nil {
		return apperr.Wrap(apperr.KindGatewayTimeout, "gateway timeout", err)
	}
	return nil
}

// generateCode returns a 4-digit numeric code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%04d", n.Int64()+1000), nil
}
