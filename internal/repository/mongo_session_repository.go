package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/noah-isme/teamhub-api/internal/models"
)

const refreshTokensCollection = "refresh_tokens"

// MongoSessionRepository persists refresh token records in MongoDB, keyed by
// a unique index on user_id.
type MongoSessionRepository struct {
	coll *mongodriver.Collection
}

// NewMongoSessionRepository binds the repository to db's refresh_tokens collection.
func NewMongoSessionRepository(db *mongodriver.Database) *MongoSessionRepository {
	return &MongoSessionRepository{coll: db.Collection(refreshTokensCollection)}
}

// newMongoSessionRepositoryForCollection is used by tests against mock deployments.
func newMongoSessionRepositoryForCollection(coll *mongodriver.Collection) *MongoSessionRepository {
	return &MongoSessionRepository{coll: coll}
}

// EnsureIndexes creates the unique user index and a TTL index on expires_at.
// The TTL monitor only deletes opportunistically; callers still check expiry.
func (r *MongoSessionRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("uniq_user_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("ttl_expires_at").SetExpireAfterSeconds(0),
		},
	}
	if _, err := r.coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("mongo ensure indexes: %w", err)
	}
	return nil
}

// Upsert replaces the user's record in a single atomic update.
func (r *MongoSessionRepository) Upsert(ctx context.Context, record *models.RefreshTokenRecord) error {
	filter := bson.D{{Key: "user_id", Value: record.UserID}}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "session_id", Value: record.SessionID},
			{Key: "token", Value: record.Token},
			{Key: "created_at", Value: record.CreatedAt},
			{Key: "expires_at", Value: record.ExpiresAt},
			{Key: "revoked", Value: false},
			{Key: "ip_address", Value: record.IPAddress},
			{Key: "user_agent", Value: record.UserAgent},
			{Key: "last_activity", Value: record.LastActivity},
		}},
		{Key: "$unset", Value: bson.D{
			{Key: "revoked_at", Value: ""},
			{Key: "revoked_reason", Value: ""},
		}},
	}
	if _, err := r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("mongo upsert refresh token: %w", err)
	}
	return nil
}

// FindByUserID returns the record for a user.
func (r *MongoSessionRepository) FindByUserID(ctx context.Context, userID string) (*models.RefreshTokenRecord, error) {
	var record models.RefreshTokenRecord
	err := r.coll.FindOne(ctx, bson.D{{Key: "user_id", Value: userID}}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("mongo find refresh token: %w", err)
	}
	return &record, nil
}

// Revoke marks the user's record revoked.
func (r *MongoSessionRepository) Revoke(ctx context.Context, userID, reason string, at time.Time) (bool, error) {
	filter := bson.D{{Key: "user_id", Value: userID}, {Key: "revoked", Value: false}}
	return r.revoke(ctx, filter, reason, at)
}

// RevokeSession revokes the user's record only when it still carries sessionID.
func (r *MongoSessionRepository) RevokeSession(ctx context.Context, userID, sessionID, reason string, at time.Time) (bool, error) {
	filter := bson.D{
		{Key: "user_id", Value: userID},
		{Key: "session_id", Value: sessionID},
		{Key: "revoked", Value: false},
	}
	return r.revoke(ctx, filter, reason, at)
}

func (r *MongoSessionRepository) revoke(ctx context.Context, filter bson.D, reason string, at time.Time) (bool, error) {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "revoked", Value: true},
		{Key: "revoked_at", Value: at},
		{Key: "revoked_reason", Value: reason},
	}}}
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("mongo revoke refresh token: %w", err)
	}
	return res.MatchedCount > 0, nil
}

// Touch records activity on an unrevoked record.
func (r *MongoSessionRepository) Touch(ctx context.Context, userID string, at time.Time) error {
	filter := bson.D{{Key: "user_id", Value: userID}, {Key: "revoked", Value: false}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "last_activity", Value: at}}}}
	if _, err := r.coll.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("mongo touch refresh token: %w", err)
	}
	return nil
}

// DeleteExpired removes the user's record if it has expired by now.
func (r *MongoSessionRepository) DeleteExpired(ctx context.Context, userID string, now time.Time) (int64, error) {
	filter := bson.D{{Key: "user_id", Value: userID}, {Key: "expires_at", Value: bson.D{{Key: "$lte", Value: now}}}}
	res, err := r.coll.DeleteOne(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("mongo delete expired refresh token: %w", err)
	}
	return res.DeletedCount, nil
}

// PurgeExpired removes every expired record.
func (r *MongoSessionRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	filter := bson.D{{Key: "expires_at", Value: bson.D{{Key: "$lte", Value: now}}}}
	res, err := r.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("mongo purge expired refresh tokens: %w", err)
	}
	return res.DeletedCount, nil
}
