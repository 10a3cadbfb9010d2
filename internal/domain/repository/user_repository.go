package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/anweshb/vidtube-backend/internal/domain/entity"
)

// ErrNotFound is returned by repositories when no document matches.
var ErrNotFound = errors.New("not found")

// UserRepository defines user document operations, including the two
// aggregation reads. Write operations that touch a single field are atomic
// update-by-id; concurrency correctness leans on MongoDB's per-document
// atomicity rather than transactions.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) (*entity.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*entity.User, error)
	// GetByUsernameOrEmail matches either identifier; empty strings never match.
	GetByUsernameOrEmail(ctx context.Context, username, email string) (*entity.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)

	SetRefreshToken(ctx context.Context, id primitive.ObjectID, token string) error
	ClearRefreshToken(ctx context.Context, id primitive.ObjectID) error
	UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error
	UpdateAccountDetails(ctx context.Context, id primitive.ObjectID, fullName, email string) (*entity.User, error)
	UpdateAvatar(ctx context.Context, id primitive.ObjectID, url string) (*entity.User, error)
	UpdateCoverImage(ctx context.Context, id primitive.ObjectID, url string) (*entity.User, error)

	// ChannelProfile joins the subscriptions collection twice and computes
	// subscriber counts plus whether viewer subscribes to the channel.
	ChannelProfile(ctx context.Context, username string, viewer primitive.ObjectID) (*entity.ChannelProfile, error)
	// WatchHistory resolves the user's watched-video ids into videos with a
	// single projected owner each.
	WatchHistory(ctx context.Context, id primitive.ObjectID) ([]entity.WatchHistoryEntry, error)
}
