package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is the aggregate root for the user domain. Username is stored
// lowercase-normalized; username and email are unique across the collection.
// Password (bcrypt hash) and the current refresh token never serialize into
// API responses.
type User struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Username     string               `bson:"username" json:"username"`
	Email        string               `bson:"email" json:"email"`
	FullName     string               `bson:"fullName" json:"fullName"`
	Password     string               `bson:"password" json:"-"`
	Avatar       string               `bson:"avatar" json:"avatar"`
	CoverImage   string               `bson:"coverImage,omitempty" json:"coverImage,omitempty"`
	RefreshToken string               `bson:"refreshToken,omitempty" json:"-"`
	WatchHistory []primitive.ObjectID `bson:"watchHistory,omitempty" json:"watchHistory,omitempty"`
	CreatedAt    time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// ChannelProfile is the aggregation result for a channel page: the channel's
// public fields plus subscriber counts and whether the viewer subscribes.
type ChannelProfile struct {
	ID                        primitive.ObjectID `bson:"_id" json:"id"`
	FullName                  string             `bson:"fullName" json:"fullName"`
	Username                  string             `bson:"username" json:"username"`
	SubscribersCount          int64              `bson:"subscribersCount" json:"subscribersCount"`
	ChannelsSubscribedToCount int64              `bson:"channelsSubscribedToCount" json:"channelsSubscribedToCount"`
	IsSubscribed              bool               `bson:"isSubscribed" json:"isSubscribed"`
	Avatar                    string             `bson:"avatar" json:"avatar"`
	CoverImage                string             `bson:"coverImage,omitempty" json:"coverImage,omitempty"`
	Email                     string             `bson:"email" json:"email"`
}
