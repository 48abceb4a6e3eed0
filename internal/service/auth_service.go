package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/teamhub-api/internal/models"
	"github.com/noah-isme/teamhub-api/internal/repository"
	appErrors "github.com/noah-isme/teamhub-api/pkg/errors"
)

type authAccountRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.Account, error)
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
	FindByID(ctx context.Context, id string) (*models.Account, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type loginTicketStore interface {
	Create(ctx context.Context, ticket, userID string, ttl time.Duration) error
	Consume(ctx context.Context, ticket string) (string, error)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	TicketTTL time.Duration
}

// AuthService provides login, session issue, rotation and logout use cases.
type AuthService struct {
	accounts  authAccountRepository
	tickets   loginTicketStore
	tokens    *TokenService
	sessions  *SessionService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(accounts authAccountRepository, tickets loginTicketStore, tokens *TokenService, sessions *SessionService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.TicketTTL <= 0 {
		config.TicketTTL = 2 * time.Minute
	}
	return &AuthService{
		accounts:  accounts,
		tickets:   tickets,
		tokens:    tokens,
		sessions:  sessions,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// LocalLogin verifies username and password and returns a login ticket.
func (s *AuthService) LocalLogin(ctx context.Context, req models.LocalLoginRequest) (*models.LoginResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}
	meta := models.RequestMeta{IP: req.IP, UserAgent: req.UserAgent}

	account, err := s.accounts.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			s.recordFailedLogin(ctx, nil, meta)
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch account")
	}

	if account.PasswordHash == nil || bcrypt.CompareHashAndPassword([]byte(*account.PasswordHash), []byte(req.Password)) != nil {
		s.recordFailedLogin(ctx, &account.ID, meta)
		return nil, appErrors.ErrInvalidCredentials
	}

	if !account.EmailVerified {
		return nil, appErrors.Clone(appErrors.ErrEmailNotVerified, "Email not verified. Please verify your email before logging in.")
	}

	return s.CompleteLogin(ctx, account, meta)
}

// CompleteLogin finishes a successful authentication for account. It guards
// against suspicious activity and issues the one-time ticket the client
// exchanges for a session.
func (s *AuthService) CompleteLogin(ctx context.Context, account *models.Account, meta models.RequestMeta) (*models.LoginResult, error) {
	if report, err := s.sessions.SecurityCheck(ctx, account.ID); err != nil {
		s.logger.Warn("failed to run login security check", zap.String("user_id", account.ID), zap.Error(err))
	} else if report.Suspicious {
		s.logger.Warn("suspicious login activity, revoking session",
			zap.String("user_id", account.ID),
			zap.Int("unique_ips", len(report.UniqueIPs)),
		)
		if _, err := s.sessions.Revoke(ctx, account.ID, models.RevokeReasonSecurity); err != nil {
			s.logger.Warn("failed to revoke session after security check", zap.Error(err))
		}
	}

	ticket, err := newOpaqueToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create login ticket")
	}
	if err := s.tickets.Create(ctx, ticket, account.ID, s.config.TicketTTL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store login ticket")
	}

	if err := s.accounts.UpdateLastLogin(ctx, account.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}
	s.audit(ctx, account.ID, models.AuditActionLogin, meta, map[string]interface{}{"provider": account.Provider})
	s.metrics.RecordAuthEvent(EventLoginSuccess)

	identity := account.Identity()
	return &models.LoginResult{
		Success:     models.LoginSuccess,
		User:        &identity,
		LoginTicket: ticket,
	}, nil
}

// IssueSession exchanges a login ticket for a new refresh and access token
// pair, replacing any earlier session of the user.
func (s *AuthService) IssueSession(ctx context.Context, req models.IssueSessionRequest) (*models.SessionTokens, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}

	userID, err := s.tickets.Consume(ctx, req.LoginTicket)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return nil, appErrors.ErrTicketInvalid
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to redeem login ticket")
	}
	if subtle.ConstantTimeCompare([]byte(userID), []byte(req.User.UserID)) != 1 {
		return nil, appErrors.ErrTicketInvalid
	}

	account, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, appErrors.ErrTicketInvalid
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	identity := account.Identity()

	refreshToken, refreshExpires, err := s.tokens.IssueRefreshToken(identity)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}
	accessToken, _, err := s.tokens.IssueAccessToken(identity)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	meta := models.RequestMeta{IP: req.IP, UserAgent: req.UserAgent}
	record, err := s.sessions.Upsert(ctx, identity, refreshToken, refreshExpires, meta)
	if err != nil {
		return nil, err
	}

	s.audit(ctx, identity.UserID, models.AuditActionSessionIssue, meta, map[string]interface{}{"sessionId": record.SessionID})
	s.metrics.RecordAuthEvent(EventSessionIssued)

	return &models.SessionTokens{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresIn:  int64(s.tokens.AccessTTL().Seconds()),
		RefreshExpiresIn: int64(s.tokens.RefreshTTL().Seconds()),
		SessionID:        record.SessionID,
	}, nil
}

// Rotate mints a new access token for the holder of a verified refresh token.
// The stored record must still carry the presented token and be active.
func (s *AuthService) Rotate(ctx context.Context, identity models.Identity, presented string, meta models.RequestMeta) (*models.RotationResult, error) {
	status, record, err := s.sessions.Status(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}
	if status != SessionActive || subtle.ConstantTimeCompare([]byte(record.Token), []byte(presented)) != 1 {
		s.metrics.RecordAuthEvent(EventRotationDenied)
		s.audit(ctx, identity.UserID, models.AuditActionRotationDenied, meta, map[string]interface{}{"status": statusLabel(status, record, presented)})
		return nil, appErrors.ErrTokenRevoked
	}

	accessToken, _, err := s.tokens.IssueAccessToken(identity)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	s.sessions.Touch(ctx, record)
	s.metrics.RecordAuthEvent(EventRotationSuccess)

	return &models.RotationResult{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// Logout revokes the user's session. Calling it without a session is a no-op.
func (s *AuthService) Logout(ctx context.Context, userID string, meta models.RequestMeta) error {
	revoked, err := s.sessions.Revoke(ctx, userID, models.RevokeReasonLogout)
	if err != nil {
		return err
	}
	if revoked {
		s.audit(ctx, userID, models.AuditActionLogout, meta, nil)
	}
	return nil
}

// RevokeSession revokes the caller's session identified by sessionID.
func (s *AuthService) RevokeSession(ctx context.Context, userID, sessionID string, meta models.RequestMeta) error {
	if err := s.sessions.RevokeSession(ctx, userID, sessionID, models.RevokeReasonUser); err != nil {
		return err
	}
	s.audit(ctx, userID, models.AuditActionSessionRevoke, meta, map[string]interface{}{"sessionId": sessionID})
	return nil
}

func (s *AuthService) recordFailedLogin(ctx context.Context, userID *string, meta models.RequestMeta) {
	s.metrics.RecordAuthEvent(EventLoginFailure)
	entry := &models.AuditLog{
		UserID:    userID,
		Action:    models.AuditActionLoginFailed,
		Resource:  "auth",
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}
	if err := s.accounts.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record failed login audit log", zap.Error(err))
	}
}

func (s *AuthService) audit(ctx context.Context, userID, action string, meta models.RequestMeta, values map[string]interface{}) {
	entry := &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "session",
		ResourceID: &userID,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if values != nil {
		if raw, err := json.Marshal(values); err == nil {
			entry.NewValues = raw
		}
	}
	if err := s.accounts.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func statusLabel(status SessionStatus, record *models.RefreshTokenRecord, presented string) string {
	switch status {
	case SessionMissing:
		return "missing"
	case SessionRevoked:
		return "revoked"
	case SessionExpired:
		return "expired"
	}
	if record != nil && record.Token != presented {
		return "superseded"
	}
	return "active"
}

func newOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
