package mongodb

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/anweshb/vidtube-backend/internal/domain/entity"
	"github.com/anweshb/vidtube-backend/internal/domain/repository"
)

const (
	usersColl         = "users"
	subscriptionsColl = "subscriptions"
	videosColl        = "videos"
)

type UserRepository struct {
	users *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{users: db.Collection(usersColl)}
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) (*entity.User, error) {
	now := time.Now().UTC()
	u.Username = strings.ToLower(u.Username)
	u.CreatedAt = now
	u.UpdatedAt = now
	res, err := r.users.InsertOne(ctx, u)
	if err != nil {
		return nil, err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		u.ID = oid
	}
	return u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*entity.User, error) {
	u := &entity.User{}
	err := r.users.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// identityFilter builds an $or over the non-empty identifiers.
func identityFilter(username, email string) bson.D {
	clauses := bson.A{}
	if username != "" {
		clauses = append(clauses, bson.D{{Key: "username", Value: strings.ToLower(username)}})
	}
	if email != "" {
		clauses = append(clauses, bson.D{{Key: "email", Value: email}})
	}
	return bson.D{{Key: "$or", Value: clauses}}
}

func (r *UserRepository) GetByUsernameOrEmail(ctx context.Context, username, email string) (*entity.User, error) {
	if username == "" && email == "" {
		return nil, repository.ErrNotFound
	}
	u := &entity.User{}
	err := r.users.FindOne(ctx, identityFilter(username, email)).Decode(u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	if username == "" && email == "" {
		return false, nil
	}
	n, err := r.users.CountDocuments(ctx, identityFilter(username, email), options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetRefreshToken overwrites the single refresh-token slot. This is the
// rotation/revocation write: it is a lone update-by-id, so a concurrent
// refresh that lost the race fails the stored-token comparison afterwards.
func (r *UserRepository) SetRefreshToken(ctx context.Context, id primitive.ObjectID, token string) error {
	return r.setByID(ctx, id, bson.D{{Key: "refreshToken", Value: token}})
}

func (r *UserRepository) ClearRefreshToken(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.users.UpdateByID(ctx, id, bson.D{
		{Key: "$unset", Value: bson.D{{Key: "refreshToken", Value: 1}}},
		{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: time.Now().UTC()}}},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	return r.setByID(ctx, id, bson.D{{Key: "password", Value: passwordHash}})
}

func (r *UserRepository) UpdateAccountDetails(ctx context.Context, id primitive.ObjectID, fullName, email string) (*entity.User, error) {
	return r.findAndSet(ctx, id, bson.D{
		{Key: "fullName", Value: fullName},
		{Key: "email", Value: email},
	})
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, id primitive.ObjectID, url string) (*entity.User, error) {
	return r.findAndSet(ctx, id, bson.D{{Key: "avatar", Value: url}})
}

func (r *UserRepository) UpdateCoverImage(ctx context.Context, id primitive.ObjectID, url string) (*entity.User, error) {
	return r.findAndSet(ctx, id, bson.D{{Key: "coverImage", Value: url}})
}

func (r *UserRepository) setByID(ctx context.Context, id primitive.ObjectID, fields bson.D) error {
	fields = append(fields, bson.E{Key: "updatedAt", Value: time.Now().UTC()})
	res, err := r.users.UpdateByID(ctx, id, bson.D{{Key: "$set", Value: fields}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) findAndSet(ctx context.Context, id primitive.ObjectID, fields bson.D) (*entity.User, error) {
	fields = append(fields, bson.E{Key: "updatedAt", Value: time.Now().UTC()})
	u := &entity.User{}
	err := r.users.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: id}},
		bson.D{{Key: "$set", Value: fields}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) ChannelProfile(ctx context.Context, username string, viewer primitive.ObjectID) (*entity.ChannelProfile, error) {
	cur, err := r.users.Aggregate(ctx, channelProfilePipeline(username, viewer))
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()
	var results []entity.ChannelProfile
	if err := cur.All(ctx, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, repository.ErrNotFound
	}
	return &results[0], nil
}

func (r *UserRepository) WatchHistory(ctx context.Context, id primitive.ObjectID) ([]entity.WatchHistoryEntry, error) {
	cur, err := r.users.Aggregate(ctx, watchHistoryPipeline(id))
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()
	var results []struct {
		WatchHistory []primitive.ObjectID       `bson:"watchHistory"`
		Videos       []entity.WatchHistoryEntry `bson:"videos"`
	}
	if err := cur.All(ctx, &results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, repository.ErrNotFound
	}
	return orderByHistory(results[0].WatchHistory, results[0].Videos), nil
}

// orderByHistory re-sorts joined videos into the stored watch order. The
// $lookup emits matches in foreign-index order, which is unrelated to the
// order of ids in the user's watchHistory array. Ids whose video no longer
// exists are skipped.
func orderByHistory(ids []primitive.ObjectID, videos []entity.WatchHistoryEntry) []entity.WatchHistoryEntry {
	byID := make(map[primitive.ObjectID]entity.WatchHistoryEntry, len(videos))
	for _, v := range videos {
		byID[v.ID] = v
	}
	out := make([]entity.WatchHistoryEntry, 0, len(videos))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			out = append(out, v)
		}
	}
	return out
}

var _ repository.UserRepository = (*UserRepository)(nil)
