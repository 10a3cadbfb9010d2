package mongodb

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// channelProfilePipeline matches one user by lowercase username, joins the
// subscriptions collection twice (as channel, as subscriber), derives the
// counts and whether viewer appears among the subscriber edges, and projects
// the public channel fields.
func channelProfilePipeline(username string, viewer primitive.ObjectID) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "username", Value: strings.ToLower(username)},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: subscriptionsColl},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "channel"},
			{Key: "as", Value: "subscribers"},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: subscriptionsColl},
			{Key: "localField", Value: "_id"},
			{Key: "foreignField", Value: "subscriber"},
			{Key: "as", Value: "subscribedTo"},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "subscribersCount", Value: bson.D{
				{Key: "$size", Value: "$subscribers"},
			}},
			{Key: "channelsSubscribedToCount", Value: bson.D{
				{Key: "$size", Value: "$subscribedTo"},
			}},
			{Key: "isSubscribed", Value: bson.D{
				{Key: "$cond", Value: bson.D{
					{Key: "if", Value: bson.D{
						{Key: "$in", Value: bson.A{viewer, "$subscribers.subscriber"}},
					}},
					{Key: "then", Value: true},
					{Key: "else", Value: false},
				}},
			}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "fullName", Value: 1},
			{Key: "username", Value: 1},
			{Key: "subscribersCount", Value: 1},
			{Key: "channelsSubscribedToCount", Value: 1},
			{Key: "isSubscribed", Value: 1},
			{Key: "avatar", Value: 1},
			{Key: "coverImage", Value: 1},
			{Key: "email", Value: 1},
		}}},
	}
}

// watchHistoryPipeline matches the user by id and resolves watchHistory into
// video documents. A sub-pipeline joins each video's owner and collapses the
// join result to its first element so owner comes back as a single object.
// The raw watchHistory id list is projected alongside the joined videos:
// $lookup returns docs in foreign-index order, so the repository re-sorts by
// the id list to preserve the stored watch order.
func watchHistoryPipeline(id primitive.ObjectID) mongo.Pipeline {
	ownerProjection := bson.D{{Key: "$project", Value: bson.D{
		{Key: "fullName", Value: 1},
		{Key: "username", Value: 1},
		{Key: "avatar", Value: 1},
	}}}
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "_id", Value: id},
		}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: videosColl},
			{Key: "localField", Value: "watchHistory"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "videos"},
			{Key: "pipeline", Value: bson.A{
				bson.D{{Key: "$lookup", Value: bson.D{
					{Key: "from", Value: usersColl},
					{Key: "localField", Value: "owner"},
					{Key: "foreignField", Value: "_id"},
					{Key: "as", Value: "owner"},
					{Key: "pipeline", Value: bson.A{ownerProjection}},
				}}},
				bson.D{{Key: "$addFields", Value: bson.D{
					{Key: "owner", Value: bson.D{
						{Key: "$first", Value: "$owner"},
					}},
				}}},
			}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "watchHistory", Value: 1},
			{Key: "videos", Value: 1},
		}}},
	}
}
