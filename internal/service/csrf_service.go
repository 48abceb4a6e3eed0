package service

import (
	"crypto/subtle"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/teamhub-api/pkg/csrf"
	appErrors "github.com/noah-isme/teamhub-api/pkg/errors"
)

// CSRFService issues and validates double-submit tokens.
type CSRFService struct {
	signer  *csrf.Signer
	metrics *MetricsService
	logger  *zap.Logger
}

// NewCSRFService constructs a CSRFService around signer.
func NewCSRFService(signer *csrf.Signer, metrics *MetricsService, logger *zap.Logger) *CSRFService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSRFService{signer: signer, metrics: metrics, logger: logger}
}

// Issue returns a token bound to sessionID.
func (s *CSRFService) Issue(sessionID string) (string, time.Time, error) {
	token, expiresAt, err := s.signer.Generate(sessionID)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue csrf token")
	}
	return token, expiresAt, nil
}

// Validate requires cookie and header to be present and equal, and the token
// to carry a valid signature for sessionID.
func (s *CSRFService) Validate(cookie, header, sessionID string) error {
	if cookie == "" || header == "" {
		return s.reject("missing token", sessionID, nil)
	}
	if subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
		return s.reject("cookie and header differ", sessionID, nil)
	}
	if err := s.signer.Verify(header, sessionID); err != nil {
		return s.reject("verification failed", sessionID, err)
	}
	return nil
}

func (s *CSRFService) reject(reason, sessionID string, err error) error {
	s.metrics.RecordAuthEvent(EventCSRFRejected)
	fields := []zap.Field{zap.String("reason", reason), zap.String("session", sessionID)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	s.logger.Debug("csrf token rejected", fields...)
	return appErrors.ErrCSRFInvalid
}
