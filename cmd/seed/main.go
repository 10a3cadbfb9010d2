package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/anweshb/vidtube-backend/config"
	"github.com/anweshb/vidtube-backend/internal/domain/entity"
	"github.com/anweshb/vidtube-backend/internal/infrastructure/mongodb"
	"github.com/anweshb/vidtube-backend/pkg/helpers"
)

// Seeds a demo channel with a couple of subscribers, videos, and a watch
// history so the aggregation endpoints return something to look at.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()
	client, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoConnTimeout)
	if err != nil {
		log.Fatalf("failed to connect to mongodb: %v", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()
	db := client.Database(cfg.MongoDB)
	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		log.Fatalf("failed to ensure indexes: %v", err)
	}

	repo := mongodb.NewUserRepository(db)

	password := "password123"
	hash, err := helpers.HashPassword(password)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	channel := upsertUser(ctx, db, repo, &entity.User{
		Username: "demochannel",
		Email:    "channel@vidtube.dev",
		FullName: "Demo Channel",
		Password: hash,
		Avatar:   "https://storage.googleapis.com/vidtube-dev/avatars/demo-channel.png",
	})
	viewer := upsertUser(ctx, db, repo, &entity.User{
		Username: "demoviewer",
		Email:    "viewer@vidtube.dev",
		FullName: "Demo Viewer",
		Password: hash,
		Avatar:   "https://storage.googleapis.com/vidtube-dev/avatars/demo-viewer.png",
	})
	fan := upsertUser(ctx, db, repo, &entity.User{
		Username: "demofan",
		Email:    "fan@vidtube.dev",
		FullName: "Demo Fan",
		Password: hash,
		Avatar:   "https://storage.googleapis.com/vidtube-dev/avatars/demo-fan.png",
	})
	fmt.Printf("seeded users: channel=%s viewer=%s fan=%s password=%s\n",
		channel.ID.Hex(), viewer.ID.Hex(), fan.ID.Hex(), password)

	// Subscription edges; the unique (subscriber, channel) index makes reruns no-ops.
	now := time.Now().UTC()
	for _, sub := range []primitive.ObjectID{viewer.ID, fan.ID} {
		_, err = db.Collection("subscriptions").UpdateOne(ctx,
			bson.D{{Key: "subscriber", Value: sub}, {Key: "channel", Value: channel.ID}},
			bson.D{
				{Key: "$setOnInsert", Value: bson.D{{Key: "createdAt", Value: now}}},
				{Key: "$set", Value: bson.D{{Key: "updatedAt", Value: now}}},
			},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			log.Fatalf("failed to seed subscription: %v", err)
		}
	}

	videos := db.Collection("videos")
	var docs []interface{}
	for i := 1; i <= 3; i++ {
		docs = append(docs, entity.Video{
			VideoFile:   fmt.Sprintf("https://storage.googleapis.com/vidtube-dev/videos/demo-%d.mp4", i),
			Thumbnail:   fmt.Sprintf("https://storage.googleapis.com/vidtube-dev/thumbs/demo-%d.png", i),
			Title:       fmt.Sprintf("Demo video %d", i),
			Description: "Seeded demo content",
			Duration:    42.5,
			Views:       int64(i * 100),
			IsPublished: true,
			Owner:       channel.ID,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	res, err := videos.InsertMany(ctx, docs)
	if err != nil {
		log.Fatalf("failed to seed videos: %v", err)
	}

	if _, err := db.Collection("users").UpdateByID(ctx, viewer.ID, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "watchHistory", Value: res.InsertedIDs},
			{Key: "updatedAt", Value: now},
		}},
	}); err != nil {
		log.Fatalf("failed to seed watch history: %v", err)
	}
	fmt.Printf("seeded %d videos and viewer watch history\n", len(res.InsertedIDs))
}

func upsertUser(ctx context.Context, db *mongo.Database, repo *mongodb.UserRepository, u *entity.User) *entity.User {
	existing, err := repo.GetByUsernameOrEmail(ctx, u.Username, u.Email)
	if err == nil {
		return existing
	}
	created, err := repo.Create(ctx, u)
	if err != nil {
		log.Fatalf("failed to seed user %s: %v", u.Username, err)
	}
	return created
}
