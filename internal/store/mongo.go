// README: Store backed by MongoDB; one collection each for conversations, preferences and sessions.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tripmate/internal/types"
)

const (
	collConversations = "conversations"
	collPreferences   = "preferences"
	collSessions      = "sessions"
)

type MongoStore struct {
	client        *mongo.Client
	conversations *mongo.Collection
	preferences   *mongo.Collection
	sessions      *mongo.Collection
}

type messageDoc struct {
	// ObjectIDs grow with insertion and break timestamp ties.
	OID       primitive.ObjectID `bson:"_id,omitempty"`
	ID        string             `bson:"message_id"`
	SessionID string             `bson:"session_id"`
	Role      string             `bson:"role"`
	Content   string             `bson:"content"`
	Timestamp time.Time          `bson:"timestamp"`
	Metadata  map[string]any     `bson:"metadata,omitempty"`
}

type preferenceDoc struct {
	SessionID string    `bson:"session_id"`
	Key       string    `bson:"key"`
	Value     any       `bson:"value"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type sessionDoc struct {
	SessionID       string    `bson:"session_id"`
	Title           string    `bson:"title"`
	TitleOverridden bool      `bson:"title_overridden"`
	CreatedAt       time.Time `bson:"created_at"`
	LastUpdated     time.Time `bson:"last_updated"`
	LastMessage     string    `bson:"last_message"`
}

// NewMongoStore uses the given database and creates indexes if missing.
func NewMongoStore(ctx context.Context, client *mongo.Client, database string) (*MongoStore, error) {
	db := client.Database(database)
	s := &MongoStore{
		client:        client,
		conversations: db.Collection(collConversations),
		preferences:   db.Collection(collPreferences),
		sessions:      db.Collection(collSessions),
	}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	if _, err := s.conversations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "timestamp", Value: -1}},
	}); err != nil {
		return err
	}
	if _, err := s.preferences.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	_, err := s.sessions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "last_updated", Value: -1}}},
	})
	return err
}

func (s *MongoStore) SaveMessage(ctx context.Context, m *Message) error {
	_, err := s.conversations.InsertOne(ctx, messageDoc{
		OID:       primitive.NewObjectID(),
		ID:        m.ID,
		SessionID: m.SessionID,
		Role:      string(m.Role),
		Content:   m.Content,
		Timestamp: m.Timestamp,
		Metadata:  m.Metadata,
	})
	return err
}

func (s *MongoStore) RecentMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.conversations.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]Message, len(docs))
	for i, d := range docs {
		out[len(docs)-1-i] = Message{
			ID:        d.ID,
			SessionID: d.SessionID,
			Role:      Role(d.Role),
			Content:   d.Content,
			Timestamp: d.Timestamp,
			Metadata:  d.Metadata,
		}
	}
	return out, nil
}

func (s *MongoStore) CountMessages(ctx context.Context, sessionID string) (int, error) {
	n, err := s.conversations.CountDocuments(ctx, bson.M{"session_id": sessionID})
	return int(n), err
}

func (s *MongoStore) DeleteMessages(ctx context.Context, sessionID string) (int, error) {
	res, err := s.conversations.DeleteMany(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

func (s *MongoStore) UpsertPreference(ctx context.Context, p *Preference) error {
	_, err := s.preferences.UpdateOne(ctx,
		bson.M{"session_id": p.SessionID, "key": p.Key},
		bson.M{
			"$set":         bson.M{"value": p.Value.Any(), "updated_at": p.UpdatedAt},
			"$setOnInsert": bson.M{"created_at": p.CreatedAt},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *MongoStore) Preferences(ctx context.Context, sessionID string) ([]Preference, error) {
	cur, err := s.preferences.Find(ctx, bson.M{"session_id": sessionID},
		options.Find().SetSort(bson.D{{Key: "key", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []preferenceDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	out := make([]Preference, 0, len(docs))
	for _, d := range docs {
		v, err := types.FromAny(d.Value)
		if err != nil {
			return nil, fmt.Errorf("decode preference %s: %w", d.Key, err)
		}
		out = append(out, Preference{
			SessionID: d.SessionID,
			Key:       d.Key,
			Value:     v,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		})
	}
	return out, nil
}

func (s *MongoStore) DeletePreference(ctx context.Context, sessionID, key string) error {
	res, err := s.preferences.DeleteOne(ctx, bson.M{"session_id": sessionID, "key": key})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeletePreferences(ctx context.Context, sessionID string) (int, error) {
	res, err := s.preferences.DeleteMany(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

func (s *MongoStore) UpsertSession(ctx context.Context, sess *Session) error {
	_, err := s.sessions.UpdateOne(ctx,
		bson.M{"session_id": sess.SessionID},
		bson.M{
			"$set": bson.M{
				"title":            sess.Title,
				"title_overridden": sess.TitleOverridden,
				"last_updated":     sess.LastUpdated,
				"last_message":     sess.LastMessage,
			},
			"$setOnInsert": bson.M{"created_at": sess.CreatedAt},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *MongoStore) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var d sessionDoc
	err := s.sessions.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sess := sessionFromDoc(d)
	return &sess, nil
}

func (s *MongoStore) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_updated", Value: -1}, {Key: "session_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.sessions.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var docs []sessionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]Session, len(docs))
	for i, d := range docs {
		out[i] = sessionFromDoc(d)
	}
	return out, nil
}

func (s *MongoStore) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := s.sessions.DeleteOne(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func sessionFromDoc(d sessionDoc) Session {
	return Session{
		SessionID:       d.SessionID,
		Title:           d.Title,
		TitleOverridden: d.TitleOverridden,
		CreatedAt:       d.CreatedAt,
		LastUpdated:     d.LastUpdated,
		LastMessage:     d.LastMessage,
	}
}
