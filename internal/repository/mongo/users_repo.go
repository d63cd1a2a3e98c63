// Package mongo stores each user as one document with messages embedded,
// the layout the original application used.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/Nexus-Agni/ShadowSpeak/internal/models"
	"github.com/Nexus-Agni/ShadowSpeak/internal/repository"
)

const (
	usersCollection = "users"
	usernameIndex   = "username_unique"
	emailIndex      = "email_unique"
)

type userDoc struct {
	ID                  string           `bson:"_id"`
	Username            string           `bson:"username"`
	Email               string           `bson:"email"`
	PasswordHash        string           `bson:"password"`
	VerifyCode          string           `bson:"verifyCode"`
	VerifyCodeExpiry    time.Time        `bson:"verifyCodeExpiry"`
	IsVerified          bool             `bson:"isVerified"`
	IsAcceptingMessages bool             `bson:"isAcceptingMessages"`
	Messages            []models.Message `bson:"messages"`
	CreatedAt           time.Time        `bson:"createdAt"`
	UpdatedAt           time.Time        `bson:"updatedAt"`
}

func (d userDoc) toModel() models.User {
	msgs := d.Messages
	if msgs == nil {
		msgs = []models.Message{}
	}
	return models.User{
		ID:                  d.ID,
		Username:            d.Username,
		Email:               d.Email,
		PasswordHash:        d.PasswordHash,
		VerifyCode:          d.VerifyCode,
		VerifyCodeExpiry:    d.VerifyCodeExpiry,
		IsVerified:          d.IsVerified,
		IsAcceptingMessages: d.IsAcceptingMessages,
		Messages:            msgs,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

type usersRepo struct {
	coll *mongo.Collection
	now  func() time.Time
}

// Connect opens a client for uri. The caller disconnects it on shutdown.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// NewUsers returns the repository for db and makes sure the unique indexes exist.
func NewUsers(ctx context.Context, db *mongo.Database) (repository.Users, error) {
	coll := db.Collection(usersCollection)
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName(usernameIndex)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName(emailIndex)},
	})
	if err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}
	return &usersRepo{coll: coll, now: time.Now}, nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		switch dupIndex(err.Error()) {
		case usernameIndex:
			return models.ErrUsernameTaken
		case emailIndex:
			return models.ErrEmailTaken
		}
	}
	return fmt.Errorf("db error: %w", err)
}

// dupIndex extracts the index name from an E11000 message. The name comes
// before the duplicated value, so the value cannot be mistaken for it.
func dupIndex(msg string) string {
	_, rest, ok := strings.Cut(msg, "index: ")
	if !ok {
		return ""
	}
	if f := strings.Fields(rest); len(f) > 0 {
		return f[0]
	}
	return ""
}

func (r *usersRepo) Create(ctx context.Context, u *models.User) error {
	now := r.now().UTC()
	doc := userDoc{
		ID:                  uuid.NewString(),
		Username:            u.Username,
		Email:               u.Email,
		PasswordHash:        u.PasswordHash,
		VerifyCode:          u.VerifyCode,
		VerifyCodeExpiry:    u.VerifyCodeExpiry,
		IsVerified:          u.IsVerified,
		IsAcceptingMessages: u.IsAcceptingMessages,
		Messages:            []models.Message{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return mapErr(err)
	}
	u.ID = doc.ID
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Messages = doc.Messages
	return nil
}

func (r *usersRepo) findOne(ctx context.Context, filter bson.D) (models.User, error) {
	var doc userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return models.User{}, mapErr(err)
	}
	return doc.toModel(), nil
}

func (r *usersRepo) GetByID(ctx context.Context, id string) (models.User, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (r *usersRepo) GetByUsername(ctx context.Context, username string) (models.User, error) {
	return r.findOne(ctx, bson.D{{Key: "username", Value: username}})
}

func (r *usersRepo) GetByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (r *usersRepo) GetByIdentifier(ctx context.Context, identifier string) (models.User, error) {
	return r.findOne(ctx, bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "username", Value: identifier}},
		bson.D{{Key: "email", Value: identifier}},
	}}})
}

// updateOne applies set to the matching document; zero matches is ErrNotFound.
func (r *usersRepo) updateOne(ctx context.Context, filter bson.D, update bson.D) (*mongo.UpdateResult, error) {
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, mapErr(err)
	}
	if res.MatchedCount == 0 {
		return nil, models.ErrNotFound
	}
	return res, nil
}

func (r *usersRepo) set(fields bson.D) bson.D {
	fields = append(fields, bson.E{Key: "updatedAt", Value: r.now().UTC()})
	return bson.D{{Key: "$set", Value: fields}}
}

func (r *usersRepo) ReplacePending(ctx context.Context, id string, p models.PendingRegistration) error {
	_, err := r.updateOne(ctx,
		bson.D{{Key: "_id", Value: id}, {Key: "isVerified", Value: false}},
		r.set(bson.D{
			{Key: "username", Value: p.Username},
			{Key: "password", Value: p.PasswordHash},
			{Key: "verifyCode", Value: p.VerifyCode},
			{Key: "verifyCodeExpiry", Value: p.VerifyCodeExpiry},
		}),
	)
	return err
}

func (r *usersRepo) SetVerifyCode(ctx context.Context, id, code string, expiry time.Time) error {
	_, err := r.updateOne(ctx,
		bson.D{{Key: "_id", Value: id}, {Key: "isVerified", Value: false}},
		r.set(bson.D{{Key: "verifyCode", Value: code}, {Key: "verifyCodeExpiry", Value: expiry}}),
	)
	return err
}

func (r *usersRepo) MarkVerified(ctx context.Context, id string) error {
	_, err := r.updateOne(ctx,
		bson.D{{Key: "_id", Value: id}},
		r.set(bson.D{{Key: "isVerified", Value: true}, {Key: "verifyCode", Value: ""}}),
	)
	return err
}

func (r *usersRepo) SetAcceptingMessages(ctx context.Context, id string, accepting bool) (models.User, error) {
	var doc userDoc
	err := r.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		r.set(bson.D{{Key: "isAcceptingMessages", Value: accepting}}),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return models.User{}, mapErr(err)
	}
	return doc.toModel(), nil
}

func (r *usersRepo) AppendMessage(ctx context.Context, userID string, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	_, err := r.updateOne(ctx,
		bson.D{{Key: "_id", Value: userID}},
		bson.D{
			{Key: "$push", Value: bson.D{{Key: "messages", Value: msg}}},
			{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: r.now().UTC()}}},
		},
	)
	return err
}

func (r *usersRepo) DeleteMessage(ctx context.Context, userID, messageID string) error {
	res, err := r.updateOne(ctx,
		bson.D{{Key: "_id", Value: userID}},
		bson.D{{Key: "$pull", Value: bson.D{{Key: "messages", Value: bson.D{{Key: "_id", Value: messageID}}}}}},
	)
	if err != nil {
		return err
	}
	if res.ModifiedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}
