package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/noah-isme/teamhub-api/internal/models"
	"github.com/noah-isme/teamhub-api/internal/repository"
	appErrors "github.com/noah-isme/teamhub-api/pkg/errors"
)

// OAuthProvider abstracts the identity provider used for social sign-in.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code, codeVerifier, redirectURI string) (string, error)
	UserInfo(ctx context.Context, accessToken string) (*models.OAuthUserInfo, error)
}

// GoogleProvider implements OAuthProvider with golang.org/x/oauth2.
type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

// NewGoogleProvider builds a provider from client credentials and endpoints.
func NewGoogleProvider(clientID, clientSecret, redirectURL, authURL, tokenURL, userInfoURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     oauth2.Endpoint{AuthURL: authURL, TokenURL: tokenURL},
		},
		userInfoURL: userInfoURL,
	}
}

// AuthCodeURL returns the consent page URL for state.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for a provider access token.
func (p *GoogleProvider) Exchange(ctx context.Context, code, codeVerifier, redirectURI string) (string, error) {
	var opts []oauth2.AuthCodeOption
	if codeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(codeVerifier))
	}
	if redirectURI != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_uri", redirectURI))
	}
	token, err := p.config.Exchange(ctx, code, opts...)
	if err != nil {
		return "", fmt.Errorf("exchange code: %w", err)
	}
	return token.AccessToken, nil
}

// UserInfo fetches the profile of the account behind accessToken.
func (p *GoogleProvider) UserInfo(ctx context.Context, accessToken string) (*models.OAuthUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("user info request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info status: %s", resp.Status)
	}
	var info models.OAuthUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return &info, nil
}

type oauthAccountRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Account, error)
}

type oauthFlowStore interface {
	Create(ctx context.Context, flow *models.OAuthFlow, ttl time.Duration) error
	Update(ctx context.Context, flow *models.OAuthFlow) error
	Get(ctx context.Context, state string) (*models.OAuthFlow, error)
	Delete(ctx context.Context, state string) error
}

// OAuthService maps provider identities onto local accounts. It also tracks
// sign-ins for clients that poll for the outcome instead of handling the redirect.
type OAuthService struct {
	provider  OAuthProvider
	accounts  oauthAccountRepository
	flows     oauthFlowStore
	auth      *AuthService
	validator *validator.Validate
	logger    *zap.Logger
	flowTTL   time.Duration
	now       func() time.Time
}

// NewOAuthService constructs an OAuthService.
func NewOAuthService(provider OAuthProvider, accounts oauthAccountRepository, flows oauthFlowStore, auth *AuthService, validate *validator.Validate, logger *zap.Logger, flowTTL time.Duration) *OAuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if flowTTL <= 0 {
		flowTTL = 10 * time.Minute
	}
	return &OAuthService{
		provider:  provider,
		accounts:  accounts,
		flows:     flows,
		auth:      auth,
		validator: validate,
		logger:    logger,
		flowTTL:   flowTTL,
		now:       time.Now,
	}
}

// WithClock overrides the time source.
func (s *OAuthService) WithClock(now func() time.Time) *OAuthService {
	if now != nil {
		s.now = now
	}
	return s
}

// Login resolves the provider identity and either completes the login of the
// matching account or asks the client to register.
func (s *OAuthService) Login(ctx context.Context, req models.OAuthLoginRequest) (*models.LoginResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid oauth payload")
	}

	accessToken := req.AccessToken
	if accessToken == "" {
		token, err := s.provider.Exchange(ctx, req.Code, req.CodeVerifier, req.RedirectURI)
		if err != nil {
			s.logger.Info("oauth code exchange failed", zap.Error(err))
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "failed to verify Google account")
		}
		accessToken = token
	}

	info, err := s.provider.UserInfo(ctx, accessToken)
	if err != nil {
		s.logger.Info("oauth user info failed", zap.Error(err))
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "failed to verify Google account")
	}
	email := strings.ToLower(strings.TrimSpace(info.Email))
	if email == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Google account has no email address")
	}

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return &models.LoginResult{Success: models.LoginRegister, Email: email}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch account")
	}

	return s.auth.CompleteLogin(ctx, account, models.RequestMeta{IP: req.IP, UserAgent: req.UserAgent})
}

// StartFlow registers a pending sign-in and returns the consent URL.
func (s *OAuthService) StartFlow(ctx context.Context) (*models.OAuthStart, error) {
	flow := &models.OAuthFlow{
		State:     uuid.NewString(),
		Status:    models.OAuthPending,
		CreatedAt: s.now().UTC(),
	}
	if err := s.flows.Create(ctx, flow, s.flowTTL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to start oauth flow")
	}
	return &models.OAuthStart{State: flow.State, AuthURL: s.provider.AuthCodeURL(flow.State)}, nil
}

// Callback completes the flow for state with the provider's authorization code.
func (s *OAuthService) Callback(ctx context.Context, state, code, providerError string, meta models.RequestMeta) (*models.OAuthFlow, error) {
	flow, err := s.flows.Get(ctx, state)
	if err != nil {
		if errors.Is(err, repository.ErrFlowNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown or expired oauth state")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load oauth flow")
	}
	if flow.Status != models.OAuthPending {
		return flow, nil
	}

	completedAt := s.now().UTC()
	flow.CompletedAt = &completedAt
	switch {
	case providerError != "":
		flow.Status = models.OAuthError
		flow.Error = providerError
	case code == "":
		flow.Status = models.OAuthError
		flow.Error = "missing authorization code"
	default:
		result, err := s.Login(ctx, models.OAuthLoginRequest{Code: code, IP: meta.IP, UserAgent: meta.UserAgent})
		if err != nil {
			flow.Status = models.OAuthError
			flow.Error = appErrors.FromError(err).Message
		} else {
			flow.Status = models.OAuthCompleted
			flow.Result = result
		}
	}

	if err := s.flows.Update(ctx, flow); err != nil {
		if errors.Is(err, repository.ErrFlowNotFound) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown or expired oauth state")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save oauth flow")
	}
	return flow, nil
}

// Status reports the state of a polled flow. A finished flow is removed once
// read; an unknown or stale state reads as timed out.
func (s *OAuthService) Status(ctx context.Context, state string) (*models.OAuthFlow, error) {
	flow, err := s.flows.Get(ctx, state)
	if err != nil {
		if errors.Is(err, repository.ErrFlowNotFound) {
			return &models.OAuthFlow{State: state, Status: models.OAuthTimeout}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load oauth flow")
	}

	if flow.Status == models.OAuthPending {
		if s.now().Sub(flow.CreatedAt) < s.flowTTL {
			return flow, nil
		}
		flow.Status = models.OAuthTimeout
	}

	if err := s.flows.Delete(ctx, state); err != nil {
		s.logger.Warn("failed to delete finished oauth flow", zap.String("state", state), zap.Error(err))
	}
	return flow, nil
}
