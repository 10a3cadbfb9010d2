package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/anweshb/vidtube-backend/internal/domain/entity"
	repo "github.com/anweshb/vidtube-backend/internal/domain/repository"
	"github.com/anweshb/vidtube-backend/pkg/helpers"
	"github.com/anweshb/vidtube-backend/pkg/mailer"
)

var (
	ErrUserExists          = errors.New("user with same credentials exists")
	ErrUserNotFound        = errors.New("user does not exist")
	ErrInvalidCredentials  = errors.New("invalid user credentials")
	ErrWrongOldPassword    = errors.New("old password incorrect")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenUsed    = errors.New("refresh token is expired or used")
	ErrUploadFailed        = errors.New("media upload failed")
	ErrTokenGeneration     = errors.New("something went wrong while generating tokens")
)

// MediaStorage is the external media-upload collaborator. An empty URL from
// Upload is treated as a failed upload.
type MediaStorage interface {
	Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, objectPath string) error
	// ObjectPath reverses a previously returned URL; "" when the URL is not ours.
	ObjectPath(url string) string
}

// EmailPublisher enqueues notification emails. *helpers.RabbitPublisher
// satisfies it.
type EmailPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// Service orchestrates the register/login/logout/refresh flows and the
// aggregation reads. ES and Pub are optional; a nil value disables channel
// indexing / email notifications.
type Service struct {
	Repo    repo.UserRepository
	JWT     *helpers.JWTManager
	Media   MediaStorage
	Pub     EmailPublisher
	Logger  *logrus.Logger
	ES      *elasticsearch.Client
	ESIndex string
}

func NewService(r repo.UserRepository, jwt *helpers.JWTManager, media MediaStorage, pub EmailPublisher, logger *logrus.Logger, es *elasticsearch.Client, esIndex string) *Service {
	return &Service{
		Repo:    r,
		JWT:     jwt,
		Media:   media,
		Pub:     pub,
		Logger:  logger,
		ES:      es,
		ESIndex: esIndex,
	}
}

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// FileUpload is one incoming multipart file.
type FileUpload struct {
	Reader      io.Reader
	Filename    string
	ContentType string
}

type RegisterInput struct {
	FullName string
	Email    string
	Username string
	Password string
	Avatar   *FileUpload
	Cover    *FileUpload
}

// Register creates a user with a lowercase-normalized username. The avatar
// upload is mandatory; the cover image is optional and a failed cover upload
// fails the whole registration rather than creating a half-populated profile.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	exists, err := s.Repo.ExistsByUsernameOrEmail(ctx, in.Username, in.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUserExists
	}

	avatarURL, err := s.uploadMedia(ctx, "avatars", in.Avatar)
	if err != nil {
		return nil, fmt.Errorf("%w: avatar: %v", ErrUploadFailed, err)
	}
	coverURL := ""
	if in.Cover != nil {
		coverURL, err = s.uploadMedia(ctx, "covers", in.Cover)
		if err != nil {
			return nil, fmt.Errorf("%w: cover image: %v", ErrUploadFailed, err)
		}
	}

	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u, err := s.Repo.Create(ctx, &entity.User{
		Username:   strings.ToLower(in.Username),
		Email:      in.Email,
		FullName:   in.FullName,
		Password:   hash,
		Avatar:     avatarURL,
		CoverImage: coverURL,
	})
	if err != nil {
		return nil, err
	}

	_ = s.indexChannel(ctx, u)
	s.enqueueEmail(ctx, u.Email, "Welcome to VidTube",
		fmt.Sprintf("Hi %s, your channel @%s is ready.", u.FullName, u.Username))
	return u, nil
}

// Login authenticates by username or email (at least one must be set) and
// issues a fresh token pair.
func (s *Service) Login(ctx context.Context, username, email, password string) (*entity.User, TokenPair, error) {
	u, err := s.Repo.GetByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, TokenPair{}, ErrUserNotFound
		}
		return nil, TokenPair{}, err
	}
	if !helpers.CompareHashAndPassword(u.Password, password) {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// IssueTokens generates the access/refresh pair and persists the refresh
// token onto the user document. The single stored token is the revocation
// mechanism: only the most recently issued refresh token survives rotation.
// Every failure collapses into ErrTokenGeneration so no signing or storage
// detail leaks to the caller.
func (s *Service) IssueTokens(ctx context.Context, u *entity.User) (TokenPair, error) {
	access, aexp, err := s.JWT.GenerateAccessToken(u.ID.Hex(), u.Email, u.Username, u.FullName)
	if err != nil {
		s.logError(err, u, "generate access token failed")
		return TokenPair{}, ErrTokenGeneration
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(u.ID.Hex())
	if err != nil {
		s.logError(err, u, "generate refresh token failed")
		return TokenPair{}, ErrTokenGeneration
	}
	if err := s.Repo.SetRefreshToken(ctx, u.ID, refresh); err != nil {
		s.logError(err, u, "persist refresh token failed")
		return TokenPair{}, ErrTokenGeneration
	}
	u.RefreshToken = refresh
	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

// Refresh implements the rotation state machine: verify signature/expiry,
// load the embedded user, require an exact match against the stored token
// (a mismatch signals reuse of a stale rotated token), then rotate.
func (s *Service) Refresh(ctx context.Context, incoming string) (*entity.User, TokenPair, error) {
	claims, err := s.JWT.ParseRefreshToken(incoming)
	if err != nil {
		return nil, TokenPair{}, ErrInvalidRefreshToken
	}
	uid, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, TokenPair{}, ErrInvalidRefreshToken
	}
	u, err := s.Repo.GetByID(ctx, uid)
	if err != nil {
		return nil, TokenPair{}, ErrInvalidRefreshToken
	}
	if incoming != u.RefreshToken {
		return nil, TokenPair{}, ErrRefreshTokenUsed
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// Logout clears the stored refresh token so the current session cannot be
// refreshed again.
func (s *Service) Logout(ctx context.Context, id primitive.ObjectID) error {
	err := s.Repo.ClearRefreshToken(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrUserNotFound
	}
	return err
}

func (s *Service) ChangePassword(ctx context.Context, id primitive.ObjectID, oldPassword, newPassword string) error {
	u, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if !helpers.CompareHashAndPassword(u.Password, oldPassword) {
		return ErrWrongOldPassword
	}
	hash, err := helpers.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.Repo.UpdatePassword(ctx, id, hash); err != nil {
		return err
	}
	s.enqueueEmail(ctx, u.Email, "Your password was changed",
		fmt.Sprintf("Hi %s, the password for @%s was just changed.", u.FullName, u.Username))
	return nil
}

func (s *Service) GetProfile(ctx context.Context, id primitive.ObjectID) (*entity.User, error) {
	u, err := s.Repo.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func (s *Service) UpdateAccountDetails(ctx context.Context, id primitive.ObjectID, fullName, email string) (*entity.User, error) {
	u, err := s.Repo.UpdateAccountDetails(ctx, id, fullName, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	_ = s.indexChannel(ctx, u)
	return u, nil
}

// UpdateAvatar uploads the replacement first, swaps the URL, then deletes
// the previous object best-effort. A failed delete only logs; the profile
// update has already succeeded.
func (s *Service) UpdateAvatar(ctx context.Context, id primitive.ObjectID, file *FileUpload) (*entity.User, error) {
	return s.replaceImage(ctx, id, file, "avatars",
		func(u *entity.User) string { return u.Avatar },
		s.Repo.UpdateAvatar)
}

func (s *Service) UpdateCoverImage(ctx context.Context, id primitive.ObjectID, file *FileUpload) (*entity.User, error) {
	return s.replaceImage(ctx, id, file, "covers",
		func(u *entity.User) string { return u.CoverImage },
		s.Repo.UpdateCoverImage)
}

func (s *Service) replaceImage(
	ctx context.Context,
	id primitive.ObjectID,
	file *FileUpload,
	folder string,
	current func(*entity.User) string,
	update func(context.Context, primitive.ObjectID, string) (*entity.User, error),
) (*entity.User, error) {
	u, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	oldURL := current(u)

	url, err := s.uploadMedia(ctx, folder, file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	updated, err := update(ctx, id, url)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if oldURL != "" {
		if path := s.Media.ObjectPath(oldURL); path != "" {
			if derr := s.Media.Delete(ctx, path); derr != nil && s.Logger != nil {
				s.Logger.WithError(derr).WithField("object", path).Warn("delete replaced media failed")
			}
		}
	}
	_ = s.indexChannel(ctx, updated)
	return updated, nil
}

func (s *Service) uploadMedia(ctx context.Context, folder string, file *FileUpload) (string, error) {
	if file == nil || file.Reader == nil {
		return "", errors.New("no file provided")
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	objectPath := filepath.ToSlash(filepath.Join(folder, uuid.NewString()+ext))
	url, err := s.Media.Upload(ctx, objectPath, file.ContentType, file.Reader)
	if err != nil {
		return "", err
	}
	if url == "" {
		return "", errors.New("upload returned no url")
	}
	return url, nil
}

// ChannelProfile runs the subscriber-count aggregation for one channel.
func (s *Service) ChannelProfile(ctx context.Context, username string, viewer primitive.ObjectID) (*entity.ChannelProfile, error) {
	p, err := s.Repo.ChannelProfile(ctx, username, viewer)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return p, err
}

// WatchHistory returns the caller's watched videos with resolved owners.
func (s *Service) WatchHistory(ctx context.Context, id primitive.ObjectID) ([]entity.WatchHistoryEntry, error) {
	h, err := s.Repo.WatchHistory(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return h, err
}

// SearchChannels performs a multi_match query over username and full name.
func (s *Service) SearchChannels(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"username^2", "fullName"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := s.ES.Search(
		s.ES.Search.WithContext(c),
		s.ES.Search.WithIndex(s.ESIndex),
		s.ES.Search.WithBody(strings.NewReader(string(b))),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

func (s *Service) indexChannel(ctx context.Context, u *entity.User) error {
	if s.ES == nil || s.ESIndex == "" {
		return nil
	}
	doc := map[string]any{
		"username":   u.Username,
		"fullName":   u.FullName,
		"avatar":     u.Avatar,
		"coverImage": u.CoverImage,
		"createdAt":  u.CreatedAt.Format(time.RFC3339Nano),
		"updatedAt":  u.UpdatedAt.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESIndex, DocumentID: u.ID.Hex(), Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID.Hex()).Warn("es index failed")
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("user_id", u.ID.Hex()).Warn("es index response error")
	}
	return nil
}

func (s *Service) enqueueEmail(ctx context.Context, to, subject, text string) {
	if s.Pub == nil {
		return
	}
	job := mailer.EmailJob{To: to, Subject: subject, Text: text}
	if err := s.Pub.PublishJSON(ctx, job); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("to", to).Warn("enqueue email failed")
	}
}

func (s *Service) logError(err error, u *entity.User, msg string) {
	if s.Logger == nil {
		return
	}
	s.Logger.WithError(err).WithField("user_id", u.ID.Hex()).Error(msg)
}
