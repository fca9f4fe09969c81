// Package mongostore is the MongoDB implementation of stats.Store. Accounts
// and attempt results live in two collections; aggregates are recomputed
// from the results collection after every insert.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"speedtype/internal/stats"
	"speedtype/internal/tier"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	accountsCollection = "users"
	resultsCollection  = "testresults"
)

const (
	usernameIndex   = "username_unique"
	emailIndex      = "email_unique"
	attemptKeyIndex = "attempt_key_unique"
)

type Store struct {
	client   *mongo.Client
	accounts *mongo.Collection
	results  *mongo.Collection
}

type accountDoc struct {
	ID              primitive.ObjectID `bson:"_id"`
	Handle          string             `bson:"username"`
	Email           string             `bson:"email"`
	PasswordHash    string             `bson:"password"`
	Tier            string             `bson:"subscription"`
	BestWPM         float64            `bson:"wpm"`
	AverageAccuracy float64            `bson:"accuracy"`
	AttemptsCount   int                `bson:"testsTaken"`
	CreatedAt       time.Time          `bson:"createdAt"`
}

type resultDoc struct {
	ID         primitive.ObjectID `bson:"_id"`
	AccountID  primitive.ObjectID `bson:"userId"`
	AttemptKey string             `bson:"attemptKey,omitempty"`
	WPM        float64            `bson:"wpm"`
	Accuracy   float64            `bson:"accuracy"`
	TimeTaken  int                `bson:"timeTaken"`
	TextLength int                `bson:"textLength"`
	CreatedAt  time.Time          `bson:"createdAt"`
}

func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}
	log.Printf("[Mongo] Connected to database %s\n", database)

	db := client.Database(database)
	return &Store{
		client:   client,
		accounts: db.Collection(accountsCollection),
		results:  db.Collection(resultsCollection),
	}, nil
}

// Migrate creates the indexes the store relies on for uniqueness and
// ordering. It is safe to call on every start.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.accounts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName(usernameIndex)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName(emailIndex)},
		{Keys: bson.D{{Key: "wpm", Value: -1}}, Options: options.Index().SetName("wpm_desc")},
	})
	if err != nil {
		return fmt.Errorf("creating account indexes: %w", err)
	}

	_, err = s.results.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("user_recent")},
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "attemptKey", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName(attemptKeyIndex).
				SetPartialFilterExpression(bson.D{{Key: "attemptKey", Value: bson.D{{Key: "$type", Value: "string"}}}}),
		},
	})
	if err != nil {
		return fmt.Errorf("creating result indexes: %w", err)
	}
	log.Println("[Mongo] Indexes ensured")
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("%w: %v", stats.ErrServiceUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func wrap(op string, err error) error {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return fmt.Errorf("%s: %w: %v", op, stats.ErrServiceUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (d accountDoc) toAccount() (*stats.Account, error) {
	t, err := tier.Parse(d.Tier)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", d.ID.Hex(), err)
	}
	return &stats.Account{
		ID:              d.ID.Hex(),
		Handle:          d.Handle,
		Email:           d.Email,
		PasswordHash:    d.PasswordHash,
		Tier:            t,
		BestWPM:         d.BestWPM,
		AverageAccuracy: d.AverageAccuracy,
		AttemptsCount:   d.AttemptsCount,
		CreatedAt:       d.CreatedAt,
	}, nil
}

func (s *Store) CreateAccount(ctx context.Context, na stats.NewAccount) (*stats.Account, error) {
	doc := accountDoc{
		ID:           primitive.NewObjectID(),
		Handle:       na.Handle,
		Email:        na.Email,
		PasswordHash: na.PasswordHash,
		Tier:         string(tier.Free),
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := s.accounts.InsertOne(ctx, doc); err != nil {
		switch duplicateIndex(err) {
		case emailIndex:
			return nil, fmt.Errorf("%w: email already registered", stats.ErrConflict)
		case usernameIndex:
			return nil, fmt.Errorf("%w: username already taken", stats.ErrConflict)
		}
		return nil, wrap("creating account", err)
	}
	return doc.toAccount()
}

// duplicateIndex names the unique index a write collided with, or returns
// "" when err is not a duplicate key error.
func duplicateIndex(err error) string {
	var we mongo.WriteException
	if !errors.As(err, &we) {
		return ""
	}
	for _, e := range we.WriteErrors {
		if e.Code != 11000 && e.Code != 11001 {
			continue
		}
		for _, name := range []string{usernameIndex, emailIndex, attemptKeyIndex} {
			if strings.Contains(e.Message, "index: "+name+" ") {
				return name
			}
		}
	}
	return ""
}

func (s *Store) findAccount(ctx context.Context, filter bson.D, what string) (*stats.Account, error) {
	var doc accountDoc
	err := s.accounts.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: account %s", stats.ErrNotFound, what)
	}
	if err != nil {
		return nil, wrap("getting account", err)
	}
	return doc.toAccount()
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (*stats.Account, error) {
	return s.findAccount(ctx, bson.D{{Key: "email", Value: email}}, email)
}

func (s *Store) AccountByID(ctx context.Context, id string) (*stats.Account, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: account %s", stats.ErrNotFound, id)
	}
	return s.findAccount(ctx, bson.D{{Key: "_id", Value: oid}}, id)
}

// RecordAttempt inserts the result, then recomputes the account aggregate
// from every stored result. The write is conditioned on testsTaken being
// lower than the recomputed count, so a slower recompute that saw fewer
// results can never overwrite a fresher one.
func (s *Store) RecordAttempt(ctx context.Context, at stats.Attempt) (string, bool, error) {
	oid, err := primitive.ObjectIDFromHex(at.AccountID)
	if err != nil {
		return "", false, fmt.Errorf("%w: account %s", stats.ErrNotFound, at.AccountID)
	}
	if _, err := s.AccountByID(ctx, at.AccountID); err != nil {
		return "", false, err
	}

	doc := resultDoc{
		ID:         primitive.NewObjectID(),
		AccountID:  oid,
		AttemptKey: at.AttemptKey,
		WPM:        at.WPM,
		Accuracy:   at.Accuracy,
		TimeTaken:  at.TimeTaken,
		TextLength: at.TextLength,
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
	}

	resultID, dup := doc.ID.Hex(), false
	if _, err := s.results.InsertOne(ctx, doc); err != nil {
		if duplicateIndex(err) != attemptKeyIndex || at.AttemptKey == "" {
			return "", false, wrap("inserting attempt result", err)
		}
		var existing resultDoc
		err := s.results.FindOne(ctx, bson.D{
			{Key: "userId", Value: oid},
			{Key: "attemptKey", Value: at.AttemptKey},
		}).Decode(&existing)
		if err != nil {
			return "", false, wrap("finding duplicate attempt", err)
		}
		resultID, dup = existing.ID.Hex(), true
	}

	// A duplicate still recomputes, in case the first submission stopped
	// between its insert and its aggregate update.
	if err := s.recompute(ctx, oid); err != nil {
		return "", false, err
	}
	return resultID, dup, nil
}

type aggregate struct {
	Best float64 `bson:"best"`
	Avg  float64 `bson:"avg"`
	N    int     `bson:"n"`
}

func (s *Store) recompute(ctx context.Context, oid primitive.ObjectID) error {
	cur, err := s.results.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "userId", Value: oid}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "best", Value: bson.D{{Key: "$max", Value: "$wpm"}}},
			{Key: "avg", Value: bson.D{{Key: "$avg", Value: "$accuracy"}}},
			{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	})
	if err != nil {
		return wrap("aggregating results", err)
	}
	var aggs []aggregate
	if err := cur.All(ctx, &aggs); err != nil {
		return wrap("reading aggregate", err)
	}
	if len(aggs) == 0 {
		return nil
	}
	agg := aggs[0]

	_, err = s.accounts.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}, {Key: "testsTaken", Value: bson.D{{Key: "$lt", Value: agg.N}}}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "wpm", Value: agg.Best},
			{Key: "accuracy", Value: agg.Avg},
			{Key: "testsTaken", Value: agg.N},
		}}},
	)
	if err != nil {
		return wrap("updating aggregates", err)
	}
	return nil
}

func (s *Store) RecentResults(ctx context.Context, accountID string, limit int) ([]stats.AttemptResult, error) {
	oid, err := primitive.ObjectIDFromHex(accountID)
	if err != nil {
		return []stats.AttemptResult{}, nil
	}
	cur, err := s.results.Find(ctx,
		bson.D{{Key: "userId", Value: oid}},
		options.Find().
			SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
			SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, wrap("finding recent results", err)
	}
	var docs []resultDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, wrap("decoding recent results", err)
	}

	out := make([]stats.AttemptResult, 0, len(docs))
	for _, d := range docs {
		out = append(out, stats.AttemptResult{
			ID:         d.ID.Hex(),
			AccountID:  d.AccountID.Hex(),
			AttemptKey: d.AttemptKey,
			WPM:        d.WPM,
			Accuracy:   d.Accuracy,
			TimeTaken:  d.TimeTaken,
			TextLength: d.TextLength,
			CreatedAt:  d.CreatedAt,
		})
	}
	return out, nil
}

func (s *Store) TopAccounts(ctx context.Context, limit int) ([]stats.Account, error) {
	cur, err := s.accounts.Find(ctx,
		bson.D{{Key: "wpm", Value: bson.D{{Key: "$gt", Value: 0}}}},
		options.Find().
			SetSort(bson.D{{Key: "wpm", Value: -1}, {Key: "createdAt", Value: 1}}).
			SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, wrap("finding leaderboard", err)
	}
	var docs []accountDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, wrap("decoding leaderboard", err)
	}

	out := make([]stats.Account, 0, len(docs))
	for _, d := range docs {
		a, err := d.toAccount()
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}
