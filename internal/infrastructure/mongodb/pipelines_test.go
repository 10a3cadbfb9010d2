package mongodb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/anweshb/vidtube-backend/internal/domain/entity"
)

// stage returns the single top-level operator of a pipeline stage.
func stage(t *testing.T, d bson.D) (string, any) {
	t.Helper()
	require.Len(t, d, 1)
	return d[0].Key, d[0].Value
}

func asD(t *testing.T, v any) bson.D {
	t.Helper()
	d, ok := v.(bson.D)
	require.True(t, ok, "expected bson.D, got %T", v)
	return d
}

func field(t *testing.T, d bson.D, key string) any {
	t.Helper()
	for _, e := range d {
		if e.Key == key {
			return e.Value
		}
	}
	t.Fatalf("key %q not found in %v", key, d)
	return nil
}

func TestChannelProfilePipelineShape(t *testing.T) {
	viewer := primitive.NewObjectID()
	p := channelProfilePipeline("CoolChannel", viewer)
	require.Len(t, p, 5)

	op, v := stage(t, p[0])
	assert.Equal(t, "$match", op)
	assert.Equal(t, "coolchannel", field(t, asD(t, v), "username"))

	op, v = stage(t, p[1])
	assert.Equal(t, "$lookup", op)
	sub := asD(t, v)
	assert.Equal(t, "subscriptions", field(t, sub, "from"))
	assert.Equal(t, "channel", field(t, sub, "foreignField"))
	assert.Equal(t, "subscribers", field(t, sub, "as"))

	op, v = stage(t, p[2])
	assert.Equal(t, "$lookup", op)
	sub = asD(t, v)
	assert.Equal(t, "subscriber", field(t, sub, "foreignField"))
	assert.Equal(t, "subscribedTo", field(t, sub, "as"))

	op, v = stage(t, p[3])
	assert.Equal(t, "$addFields", op)
	add := asD(t, v)
	assert.Equal(t, bson.D{{Key: "$size", Value: "$subscribers"}}, field(t, add, "subscribersCount"))
	assert.Equal(t, bson.D{{Key: "$size", Value: "$subscribedTo"}}, field(t, add, "channelsSubscribedToCount"))

	op, _ = stage(t, p[4])
	assert.Equal(t, "$project", op)
}

func TestChannelProfilePipelineIsSubscribedUsesViewer(t *testing.T) {
	viewer := primitive.NewObjectID()
	p := channelProfilePipeline("alice", viewer)

	_, v := stage(t, p[3])
	cond := asD(t, field(t, asD(t, field(t, asD(t, v), "isSubscribed")), "$cond"))
	in := field(t, asD(t, field(t, cond, "if")), "$in")
	require.Equal(t, bson.A{viewer, "$subscribers.subscriber"}, in)
	assert.Equal(t, true, field(t, cond, "then"))
	assert.Equal(t, false, field(t, cond, "else"))
}

func TestChannelProfilePipelineProjection(t *testing.T) {
	p := channelProfilePipeline("alice", primitive.NewObjectID())
	_, v := stage(t, p[4])
	proj := asD(t, v)

	want := []string{"fullName", "username", "subscribersCount", "channelsSubscribedToCount", "isSubscribed", "avatar", "coverImage", "email"}
	got := make([]string, 0, len(proj))
	for _, e := range proj {
		got = append(got, e.Key)
	}
	assert.ElementsMatch(t, want, got)
	// password and refreshToken must never be projected
	assert.NotContains(t, got, "password")
	assert.NotContains(t, got, "refreshToken")
}

func TestWatchHistoryPipelineShape(t *testing.T) {
	id := primitive.NewObjectID()
	p := watchHistoryPipeline(id)
	require.Len(t, p, 3)

	op, v := stage(t, p[0])
	assert.Equal(t, "$match", op)
	assert.Equal(t, id, field(t, asD(t, v), "_id"))

	op, v = stage(t, p[1])
	assert.Equal(t, "$lookup", op)
	lk := asD(t, v)
	assert.Equal(t, "videos", field(t, lk, "from"))
	assert.Equal(t, "watchHistory", field(t, lk, "localField"))
	assert.Equal(t, "_id", field(t, lk, "foreignField"))
	assert.Equal(t, "videos", field(t, lk, "as"))

	// the raw id list rides along so the repository can restore watch order
	op, v = stage(t, p[2])
	assert.Equal(t, "$project", op)
	proj := asD(t, v)
	assert.Equal(t, 1, field(t, proj, "watchHistory"))
	assert.Equal(t, 1, field(t, proj, "videos"))
}

func TestWatchHistoryPipelineOwnerSubPipeline(t *testing.T) {
	p := watchHistoryPipeline(primitive.NewObjectID())
	_, v := stage(t, p[1])
	sub, ok := field(t, asD(t, v), "pipeline").(bson.A)
	require.True(t, ok)
	require.Len(t, sub, 2)

	// inner owner lookup into users, projecting only the public fields
	op, lv := stage(t, sub[0].(bson.D))
	require.Equal(t, "$lookup", op)
	lk := asD(t, lv)
	assert.Equal(t, "users", field(t, lk, "from"))
	assert.Equal(t, "owner", field(t, lk, "localField"))

	inner, ok := field(t, lk, "pipeline").(bson.A)
	require.True(t, ok)
	require.Len(t, inner, 1)
	op, pv := stage(t, inner[0].(bson.D))
	require.Equal(t, "$project", op)
	proj := asD(t, pv)
	keys := make([]string, 0, len(proj))
	for _, e := range proj {
		keys = append(keys, e.Key)
	}
	assert.ElementsMatch(t, []string{"fullName", "username", "avatar"}, keys)

	// the join array collapses to its first element
	op, av := stage(t, sub[1].(bson.D))
	require.Equal(t, "$addFields", op)
	owner := asD(t, field(t, asD(t, av), "owner"))
	assert.Equal(t, "$owner", field(t, owner, "$first"))
}

func TestOrderByHistoryPreservesWatchOrder(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()
	c := primitive.NewObjectID()

	// join output arrives in _id order regardless of the stored list
	joined := []entity.WatchHistoryEntry{
		{ID: a, Title: "first watched last"},
		{ID: b, Title: "watched second"},
		{ID: c, Title: "watched first"},
	}

	got := orderByHistory([]primitive.ObjectID{c, b, a}, joined)
	require.Len(t, got, 3)
	assert.Equal(t, []primitive.ObjectID{c, b, a}, []primitive.ObjectID{got[0].ID, got[1].ID, got[2].ID})
}

func TestOrderByHistorySkipsDeletedVideos(t *testing.T) {
	a := primitive.NewObjectID()
	gone := primitive.NewObjectID()

	got := orderByHistory(
		[]primitive.ObjectID{gone, a},
		[]entity.WatchHistoryEntry{{ID: a, Title: "still here"}},
	)
	require.Len(t, got, 1)
	assert.Equal(t, a, got[0].ID)
}

func TestOrderByHistoryEmpty(t *testing.T) {
	assert.Empty(t, orderByHistory(nil, nil))
}

func TestIdentityFilter(t *testing.T) {
	f := identityFilter("Alice", "a@b.co")
	or, ok := field(t, f, "$or").(bson.A)
	require.True(t, ok)
	require.Len(t, or, 2)
	assert.Equal(t, "alice", field(t, or[0].(bson.D), "username"))
	assert.Equal(t, "a@b.co", field(t, or[1].(bson.D), "email"))

	f = identityFilter("", "a@b.co")
	or = field(t, f, "$or").(bson.A)
	require.Len(t, or, 1)
	assert.Equal(t, "a@b.co", field(t, or[0].(bson.D), "email"))
}
