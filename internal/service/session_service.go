package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/teamhub-api/internal/models"
	"github.com/noah-isme/teamhub-api/internal/repository"
	appErrors "github.com/noah-isme/teamhub-api/pkg/errors"
	"github.com/noah-isme/teamhub-api/pkg/jobs"
)

// Job types handled by SessionService.HandlePurgeJob.
const (
	JobPurgeUser    = "session.purge_user"
	JobPurgeExpired = "session.purge_expired"
)

const (
	touchInterval      = time.Minute
	securityWindow     = 24 * time.Hour
	suspiciousIPCount  = 3
	expiryWarningAhead = time.Hour
)

// SessionStore persists one refresh token record per user.
type SessionStore interface {
	Upsert(ctx context.Context, record *models.RefreshTokenRecord) error
	FindByUserID(ctx context.Context, userID string) (*models.RefreshTokenRecord, error)
	Revoke(ctx context.Context, userID, reason string, at time.Time) (bool, error)
	RevokeSession(ctx context.Context, userID, sessionID, reason string, at time.Time) (bool, error)
	Touch(ctx context.Context, userID string, at time.Time) error
	DeleteExpired(ctx context.Context, userID string, now time.Time) (int64, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type loginHistory interface {
	RecentLoginIPs(ctx context.Context, userID string, since time.Time) ([]string, error)
}

type jobEnqueuer interface {
	TryEnqueue(job jobs.Job) error
}

// SessionStatus is the outcome of checking a user's record at use time.
type SessionStatus int

const (
	SessionMissing SessionStatus = iota
	SessionActive
	SessionRevoked
	SessionExpired
)

// SessionService wraps the session store with validity checks, activity
// tracking and cleanup of expired records.
type SessionService struct {
	store   SessionStore
	history loginHistory
	purges  jobEnqueuer
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewSessionService constructs a SessionService.
func NewSessionService(store SessionStore, history loginHistory, metrics *MetricsService, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{store: store, history: history, metrics: metrics, logger: logger, now: time.Now}
}

// WithClock overrides the time source.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	if now != nil {
		s.now = now
	}
	return s
}

// AttachPurgeQueue routes opportunistic cleanup of expired records through q.
func (s *SessionService) AttachPurgeQueue(q jobEnqueuer) {
	s.purges = q
}

// Upsert replaces the user's record with a new refresh token and returns the
// stored record.
func (s *SessionService) Upsert(ctx context.Context, identity models.Identity, token string, expiresAt time.Time, meta models.RequestMeta) (*models.RefreshTokenRecord, error) {
	now := s.now().UTC()
	record := &models.RefreshTokenRecord{
		UserID:       identity.UserID,
		SessionID:    uuid.NewString(),
		Token:        token,
		CreatedAt:    now,
		ExpiresAt:    expiresAt.UTC(),
		IPAddress:    meta.IP,
		UserAgent:    meta.UserAgent,
		LastActivity: now,
	}

	start := time.Now()
	err := s.store.Upsert(ctx, record)
	s.metrics.ObserveStore("upsert", time.Since(start))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist session")
	}
	return record, nil
}

// Status loads the user's record and classifies it. Expired records are
// queued for deletion.
func (s *SessionService) Status(ctx context.Context, userID string) (SessionStatus, *models.RefreshTokenRecord, error) {
	start := time.Now()
	record, err := s.store.FindByUserID(ctx, userID)
	s.metrics.ObserveStore("find", time.Since(start))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return SessionMissing, nil, nil
		}
		return SessionMissing, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	now := s.now()
	switch {
	case record.Revoked:
		return SessionRevoked, record, nil
	case record.Expired(now):
		s.schedulePurge(userID)
		return SessionExpired, record, nil
	default:
		return SessionActive, record, nil
	}
}

// IsValid reports whether the user has an unrevoked, unexpired record.
func (s *SessionService) IsValid(ctx context.Context, userID string) (bool, error) {
	status, _, err := s.Status(ctx, userID)
	if err != nil {
		return false, err
	}
	return status == SessionActive, nil
}

// Revoke marks the user's record revoked. Revoking an already revoked or
// missing record is not an error.
func (s *SessionService) Revoke(ctx context.Context, userID, reason string) (bool, error) {
	revoked, err := s.store.Revoke(ctx, userID, reason, s.now().UTC())
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke session")
	}
	if revoked {
		s.metrics.RecordAuthEvent(EventSessionRevoked)
	}
	return revoked, nil
}

// RevokeSession revokes the user's record only if it carries sessionID.
func (s *SessionService) RevokeSession(ctx context.Context, userID, sessionID, reason string) error {
	revoked, err := s.store.RevokeSession(ctx, userID, sessionID, reason, s.now().UTC())
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke session")
	}
	if !revoked {
		return appErrors.Clone(appErrors.ErrNotFound, "session not found")
	}
	s.metrics.RecordAuthEvent(EventSessionRevoked)
	return nil
}

// Touch stamps activity on record, at most once per minute. Failures are logged only.
func (s *SessionService) Touch(ctx context.Context, record *models.RefreshTokenRecord) {
	if record == nil {
		return
	}
	now := s.now().UTC()
	if now.Sub(record.LastActivity) < touchInterval {
		return
	}
	if err := s.store.Touch(ctx, record.UserID, now); err != nil {
		s.logger.Warn("failed to update session activity", zap.String("user_id", record.UserID), zap.Error(err))
		return
	}
	record.LastActivity = now
}

// Active lists the caller's active sessions. A user has at most one.
func (s *SessionService) Active(ctx context.Context, userID, currentSessionID string) ([]models.SessionInfo, error) {
	status, record, err := s.Status(ctx, userID)
	if err != nil {
		return nil, err
	}
	if status != SessionActive {
		return []models.SessionInfo{}, nil
	}
	return []models.SessionInfo{record.ToInfo(currentSessionID)}, nil
}

// Current returns the caller's active session.
func (s *SessionService) Current(ctx context.Context, userID string) (*models.SessionInfo, error) {
	status, record, err := s.Status(ctx, userID)
	if err != nil {
		return nil, err
	}
	if status != SessionActive {
		return nil, appErrors.ErrTokenRevoked
	}
	info := record.ToInfo(record.SessionID)
	return &info, nil
}

// SecurityCheck summarises recent login activity for userID.
func (s *SessionService) SecurityCheck(ctx context.Context, userID string) (*models.SecurityReport, error) {
	status, record, err := s.Status(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := &models.SecurityReport{UniqueIPs: []string{}}
	now := s.now()
	if status == SessionActive {
		report.ActiveSessions = 1
		report.SessionExpires = record.ExpiresAt.UTC().Format(time.RFC3339)
		if record.ExpiresAt.Sub(now) < expiryWarningAhead {
			report.Recommendations = append(report.Recommendations, "Your session expires soon. Sign in again to continue.")
		}
	}

	if s.history != nil {
		ips, err := s.history.RecentLoginIPs(ctx, userID, now.Add(-securityWindow))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load login history")
		}
		if ips != nil {
			report.UniqueIPs = ips
		}
	}

	if len(report.UniqueIPs) > suspiciousIPCount {
		report.Suspicious = true
		report.Recommendations = append(report.Recommendations, "Sign-ins from several addresses were seen in the last 24 hours. Revoke sessions you do not recognise.")
	}
	return report, nil
}

// Purge removes every expired record and returns how many were deleted.
func (s *SessionService) Purge(ctx context.Context) (int64, error) {
	n, err := s.store.PurgeExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge expired sessions: %w", err)
	}
	s.metrics.RecordPurged(n)
	return n, nil
}

// PurgeJob builds the periodic global cleanup job.
func (s *SessionService) PurgeJob() jobs.Job {
	return jobs.Job{ID: uuid.NewString(), Type: JobPurgeExpired}
}

// HandlePurgeJob is the jobs.Handler for session cleanup.
func (s *SessionService) HandlePurgeJob(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case JobPurgeExpired:
		n, err := s.Purge(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			s.logger.Info("purged expired sessions", zap.Int64("count", n))
		}
		return nil
	case JobPurgeUser:
		userID, ok := job.Payload.(string)
		if !ok || userID == "" {
			return fmt.Errorf("purge job %s: missing user id", job.ID)
		}
		n, err := s.store.DeleteExpired(ctx, userID, s.now().UTC())
		if err != nil {
			return fmt.Errorf("delete expired session: %w", err)
		}
		s.metrics.RecordPurged(n)
		return nil
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

func (s *SessionService) schedulePurge(userID string) {
	if s.purges == nil {
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: JobPurgeUser, Payload: userID}
	if err := s.purges.TryEnqueue(job); err != nil {
		s.logger.Debug("expired session purge not queued", zap.String("user_id", userID), zap.Error(err))
	}
}
