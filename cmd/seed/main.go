// Command seed populates the database with mock users, follows, posts,
// replies, reposts and likes for local development.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"monch/internal/config"
	"monch/internal/database"
	"monch/internal/logger"
	"monch/internal/model"
	"monch/internal/repository"
)

const seedPassword = "password123"

var usernameChars = regexp.MustCompile(`[^a-z0-9_.]`)

type seeder struct {
	users   repository.UserRepository
	follows repository.FollowRepository
	posts   repository.PostRepository
	likes   repository.LikeRepository
	rng     *rand.Rand
	log     *zap.Logger
}

func main() {
	userCount := flag.Int("users", 10, "number of users to create")
	postsPerUser := flag.Int("posts", 3, "root posts per user")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(cfg, log, *userCount, *postsPerUser); err != nil {
		log.Fatal("seed failed", zap.Error(err))
	}
	log.Info("successfully populated the database with mock data")
}

func run(cfg *config.Config, log *zap.Logger, userCount, postsPerUser int) error {
	if userCount < 2 {
		return fmt.Errorf("need at least 2 users, got %d", userCount)
	}

	ctx := context.Background()
	db, err := database.Connect(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	seed := time.Now().UnixNano()
	gofakeit.Seed(seed)
	s := &seeder{
		users:   repository.NewUserRepository(db),
		follows: repository.NewFollowRepository(db),
		posts:   repository.NewPostRepository(db),
		likes:   repository.NewLikeRepository(db),
		rng:     rand.New(rand.NewSource(seed)),
		log:     log,
	}

	log.Info("creating mock users", zap.Int("count", userCount))
	users, err := s.createUsers(ctx, userCount)
	if err != nil {
		return err
	}

	log.Info("creating mock posts", zap.Int("per_user", postsPerUser))
	posts, err := s.createPosts(ctx, users, postsPerUser)
	if err != nil {
		return err
	}

	log.Info("creating mock replies and reposts")
	if err := s.createReplies(ctx, users, posts); err != nil {
		return err
	}

	log.Info("creating mock follows")
	if err := s.createFollows(ctx, users); err != nil {
		return err
	}

	log.Info("creating mock likes")
	return s.createLikes(ctx, users[0], posts)
}

func (s *seeder) createUsers(ctx context.Context, n int) ([]*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	users := make([]*model.User, 0, n)
	for i := 0; i < n; i++ {
		u := &model.User{
			Username:       mockUsername(i),
			PasswordHashed: string(hash),
			DisplayName:    truncate(gofakeit.Name(), model.MaxDisplayNameLength),
			Bio:            truncate(gofakeit.Sentence(12), model.MaxBioLength),
		}
		if err := s.users.Create(ctx, u); err != nil {
			return nil, fmt.Errorf("create user %s: %w", u.Username, err)
		}
		users = append(users, u)
	}
	return users, nil
}

func (s *seeder) createPosts(ctx context.Context, users []*model.User, perUser int) ([]*model.Post, error) {
	posts := make([]*model.Post, 0, len(users)*perUser)
	for _, u := range users {
		for i := 0; i < perUser; i++ {
			p := &model.Post{UserID: u.ID, Content: mockContent()}
			if err := s.posts.Create(ctx, p); err != nil {
				return nil, fmt.Errorf("create post: %w", err)
			}
			posts = append(posts, p)
		}
	}
	return posts, nil
}

// createReplies gives about half of the posts a reply and a few of them a repost.
func (s *seeder) createReplies(ctx context.Context, users []*model.User, posts []*model.Post) error {
	for _, p := range posts {
		if s.rng.Intn(2) == 0 {
			parentID := p.ID
			reply := &model.Post{UserID: s.pick(users).ID, Content: mockContent(), ParentPostID: &parentID}
			if err := s.posts.Create(ctx, reply); err != nil {
				return fmt.Errorf("create reply: %w", err)
			}
		}
		if s.rng.Intn(5) == 0 {
			originalID := p.ID
			repost := &model.Post{UserID: s.pick(users).ID, Content: p.Content, RepostOfID: &originalID}
			if err := s.posts.Create(ctx, repost); err != nil {
				return fmt.Errorf("create repost: %w", err)
			}
		}
	}
	return nil
}

// createFollows makes every user follow one other random user.
func (s *seeder) createFollows(ctx context.Context, users []*model.User) error {
	for i, u := range users {
		j := s.rng.Intn(len(users) - 1)
		if j >= i {
			j++
		}
		if _, err := s.follows.Toggle(ctx, u.ID, users[j].ID); err != nil {
			return fmt.Errorf("follow: %w", err)
		}
	}
	return nil
}

func (s *seeder) createLikes(ctx context.Context, liker *model.User, posts []*model.Post) error {
	for _, p := range posts {
		if err := s.likes.Like(ctx, liker.ID, p.ID); err != nil {
			return fmt.Errorf("like post %d: %w", p.ID, err)
		}
	}
	return nil
}

func (s *seeder) pick(users []*model.User) *model.User {
	return users[s.rng.Intn(len(users))]
}

// mockUsername builds a valid, unique username from a fake one.
func mockUsername(i int) string {
	base := usernameChars.ReplaceAllString(strings.ToLower(gofakeit.Username()), "")
	base = truncate(base, 24)
	if len(base) < 3 {
		base = "user"
	}
	return fmt.Sprintf("%s%d", base, i)
}

func mockContent() string {
	return truncate(gofakeit.Sentence(gofakeit.Number(5, 25)), model.MaxPostContentLength)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
