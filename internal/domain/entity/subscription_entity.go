package entity

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Subscription is an edge from a subscriber to the channel they follow.
// A (subscriber, channel) pair is unique; duplicates would inflate the
// channel-profile counts.
type Subscription struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Subscriber primitive.ObjectID `bson:"subscriber" json:"subscriber"`
	Channel    primitive.ObjectID `bson:"channel" json:"channel"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}
