package main

import (
	"context"
	"log"
	"log/slog"
	"time"

	"relay-service/internal/api/middleware"
	"relay-service/internal/config"
	"relay-service/internal/database"
	"relay-service/internal/logger"
	"relay-service/internal/models"
	"relay-service/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

type seedUser struct {
	username string
	email    string
	city     string
	premium  bool
}

var seedUsers = []seedUser{
	{"alice", "alice@relay.local", "Lisbon", true},
	{"bob", "bob@relay.local", "Porto", false},
	{"charlie", "charlie@relay.local", "Braga", false},
	{"dana", "dana@relay.local", "Faro", true},
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	if err := logger.Setup(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		log.Fatal("Failed to configure logger:", err)
	}

	slog.Info("Starting database seeding...")

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		log.Fatal("Migration failed:", err)
	}

	ctx := context.Background()
	store := repository.NewStore(db)
	auth := middleware.NewAuthMiddleware(cfg.JWT.Secret, cfg.JWT.ExpirationTime)

	password, err := bcrypt.GenerateFromPassword([]byte("123456"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("Failed to hash password:", err)
	}

	ids := make(map[string]string, len(seedUsers))
	for _, su := range seedUsers {
		user := &models.User{
			Username: su.username,
			Email:    su.email,
			Password: string(password),
			City:     su.city,
			Premium:  su.premium,
		}
		if err := store.Create(ctx, user); err != nil {
			existing, findErr := store.FindUserByEmail(ctx, su.email)
			if findErr != nil {
				log.Fatal("Failed to create user ", su.username, ": ", err)
			}
			slog.Warn("User already exists", "username", su.username)
			ids[su.username] = existing.ID
		} else {
			ids[su.username] = user.ID
		}

		token, err := auth.GenerateToken(ids[su.username], su.email)
		if err != nil {
			log.Fatal("Failed to sign token:", err)
		}
		slog.Info("Seeded user", "username", su.username, "id", ids[su.username], "premium", su.premium, "token", token)
	}

	follows := [][2]string{{"bob", "alice"}, {"charlie", "alice"}, {"alice", "dana"}}
	for _, f := range follows {
		if err := store.Follow(ctx, ids[f[0]], ids[f[1]]); err != nil {
			slog.Warn("Follow not created", "follower", f[0], "following", f[1], "error", err)
		}
	}

	post := &models.Post{UserID: ids["alice"], Description: "First light over the river"}
	if err := store.CreatePost(ctx, post); err != nil {
		log.Fatal("Failed to create post:", err)
	}
	comment := &models.Comment{PostID: post.ID, UserID: ids["bob"], Content: "Stunning colours, where was this taken?"}
	if err := store.CreateComment(ctx, comment); err != nil {
		log.Fatal("Failed to create comment:", err)
	}
	slog.Info("Seeded post", "postID", post.ID, "commentID", comment.ID)

	// alice is premium, so bob can answer her once she has written first
	opener := &models.Message{
		SenderID:   ids["alice"],
		ReceiverID: ids["bob"],
		Content:    "Welcome aboard!",
		Medias:     []string{},
		Timestamp:  time.Now(),
	}
	if err := store.CreateMessage(ctx, opener); err != nil {
		log.Fatal("Failed to create message:", err)
	}

	slog.Info("Database seeding completed successfully!")
}
