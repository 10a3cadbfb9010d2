package application

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/anweshb/vidtube-backend/internal/domain/entity"
	repo "github.com/anweshb/vidtube-backend/internal/domain/repository"
	"github.com/anweshb/vidtube-backend/pkg/helpers"
	"github.com/anweshb/vidtube-backend/pkg/mailer"
)

// fakeRepo is an in-memory UserRepository.
type fakeRepo struct {
	users map[primitive.ObjectID]*entity.User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[primitive.ObjectID]*entity.User)}
}

func (f *fakeRepo) Create(_ context.Context, u *entity.User) (*entity.User, error) {
	u.ID = primitive.NewObjectID()
	u.Username = strings.ToLower(u.Username)
	u.CreatedAt = time.Now().UTC()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	f.users[u.ID] = &cp
	return u, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id primitive.ObjectID) (*entity.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeRepo) GetByUsernameOrEmail(_ context.Context, username, email string) (*entity.User, error) {
	for _, u := range f.users {
		if (username != "" && u.Username == strings.ToLower(username)) || (email != "" && u.Email == email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeRepo) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	_, err := f.GetByUsernameOrEmail(ctx, username, email)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (f *fakeRepo) SetRefreshToken(_ context.Context, id primitive.ObjectID, token string) error {
	u, ok := f.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.RefreshToken = token
	return nil
}

func (f *fakeRepo) ClearRefreshToken(_ context.Context, id primitive.ObjectID) error {
	u, ok := f.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.RefreshToken = ""
	return nil
}

func (f *fakeRepo) UpdatePassword(_ context.Context, id primitive.ObjectID, hash string) error {
	u, ok := f.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.Password = hash
	return nil
}

func (f *fakeRepo) UpdateAccountDetails(ctx context.Context, id primitive.ObjectID, fullName, email string) (*entity.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	u.FullName = fullName
	u.Email = email
	return f.GetByID(ctx, id)
}

func (f *fakeRepo) UpdateAvatar(ctx context.Context, id primitive.ObjectID, url string) (*entity.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	u.Avatar = url
	return f.GetByID(ctx, id)
}

func (f *fakeRepo) UpdateCoverImage(ctx context.Context, id primitive.ObjectID, url string) (*entity.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	u.CoverImage = url
	return f.GetByID(ctx, id)
}

func (f *fakeRepo) ChannelProfile(_ context.Context, username string, _ primitive.ObjectID) (*entity.ChannelProfile, error) {
	for _, u := range f.users {
		if u.Username == strings.ToLower(username) {
			return &entity.ChannelProfile{ID: u.ID, Username: u.Username, FullName: u.FullName}, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (f *fakeRepo) WatchHistory(_ context.Context, id primitive.ObjectID) ([]entity.WatchHistoryEntry, error) {
	if _, ok := f.users[id]; !ok {
		return nil, repo.ErrNotFound
	}
	return []entity.WatchHistoryEntry{}, nil
}

var _ repo.UserRepository = (*fakeRepo)(nil)

// fakeMedia records uploads and deletes; URLs are "mem://<objectPath>".
type fakeMedia struct {
	uploads   []string
	deletes   []string
	uploadErr error
}

func (m *fakeMedia) Upload(_ context.Context, objectPath, _ string, r io.Reader) (string, error) {
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	_, _ = io.Copy(io.Discard, r)
	m.uploads = append(m.uploads, objectPath)
	return "mem://" + objectPath, nil
}

func (m *fakeMedia) Delete(_ context.Context, objectPath string) error {
	m.deletes = append(m.deletes, objectPath)
	return nil
}

func (m *fakeMedia) ObjectPath(url string) string {
	return strings.TrimPrefix(url, "mem://")
}

type fakePublisher struct {
	jobs []mailer.EmailJob
}

func (p *fakePublisher) PublishJSON(_ context.Context, body any) error {
	if job, ok := body.(mailer.EmailJob); ok {
		p.jobs = append(p.jobs, job)
	}
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo, *fakeMedia, *fakePublisher) {
	t.Helper()
	r := newFakeRepo()
	m := &fakeMedia{}
	p := &fakePublisher{}
	jwt := helpers.NewJWTManager("test-access", "test-refresh", time.Hour, 24*time.Hour)
	return NewService(r, jwt, m, p, nil, nil, ""), r, m, p
}

func upload(name string) *FileUpload {
	return &FileUpload{Reader: strings.NewReader("img-bytes"), Filename: name, ContentType: "image/png"}
}

func registerUser(t *testing.T, svc *Service) *entity.User {
	t.Helper()
	u, err := svc.Register(context.Background(), RegisterInput{
		FullName: "Alice A",
		Email:    "alice@example.com",
		Username: "Alice",
		Password: "hunter22!",
		Avatar:   upload("a.png"),
	})
	require.NoError(t, err)
	return u
}

func TestRegister(t *testing.T) {
	svc, _, media, pub := newTestService(t)

	u := registerUser(t, svc)
	assert.Equal(t, "alice", u.Username, "username is lowercase-normalized")
	assert.NotEqual(t, "hunter22!", u.Password, "password is stored hashed")
	assert.True(t, helpers.CompareHashAndPassword(u.Password, "hunter22!"))
	assert.True(t, strings.HasPrefix(u.Avatar, "mem://avatars/"))
	assert.Empty(t, u.CoverImage)

	require.Len(t, media.uploads, 1)
	require.Len(t, pub.jobs, 1)
	assert.Equal(t, "alice@example.com", pub.jobs[0].To)
}

func TestRegisterWithCover(t *testing.T) {
	svc, _, media, _ := newTestService(t)

	u, err := svc.Register(context.Background(), RegisterInput{
		FullName: "Bob",
		Email:    "bob@example.com",
		Username: "bob",
		Password: "password1",
		Avatar:   upload("a.png"),
		Cover:    upload("c.jpg"),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u.CoverImage, "mem://covers/"))
	assert.Len(t, media.uploads, 2)
}

func TestRegisterDuplicate(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	registerUser(t, svc)

	// same username, different email
	_, err := svc.Register(context.Background(), RegisterInput{
		FullName: "Other", Email: "other@example.com", Username: "ALICE",
		Password: "password1", Avatar: upload("a.png"),
	})
	assert.ErrorIs(t, err, ErrUserExists)

	// same email, different username
	_, err = svc.Register(context.Background(), RegisterInput{
		FullName: "Other", Email: "alice@example.com", Username: "other",
		Password: "password1", Avatar: upload("a.png"),
	})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestRegisterMissingAvatar(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.Register(context.Background(), RegisterInput{
		FullName: "Alice", Email: "a@b.co", Username: "alice", Password: "password1",
	})
	assert.ErrorIs(t, err, ErrUploadFailed)
}

func TestRegisterUploadError(t *testing.T) {
	svc, _, media, _ := newTestService(t)
	media.uploadErr = errors.New("bucket unavailable")
	_, err := svc.Register(context.Background(), RegisterInput{
		FullName: "Alice", Email: "a@b.co", Username: "alice",
		Password: "password1", Avatar: upload("a.png"),
	})
	assert.ErrorIs(t, err, ErrUploadFailed)
}

func TestLogin(t *testing.T) {
	svc, r, _, _ := newTestService(t)
	created := registerUser(t, svc)

	u, pair, err := svc.Login(context.Background(), "alice", "", "hunter22!")
	require.NoError(t, err)
	assert.Equal(t, created.ID, u.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	stored, err := r.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshToken, stored.RefreshToken, "issued refresh token is persisted")

	// email works as the identifier too
	_, _, err = svc.Login(context.Background(), "", "alice@example.com", "hunter22!")
	assert.NoError(t, err)
}

func TestLoginUnknownUser(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, _, err := svc.Login(context.Background(), "ghost", "", "whatever1")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	registerUser(t, svc)
	_, _, err := svc.Login(context.Background(), "alice", "", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshRotation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	registerUser(t, svc)
	_, pair, err := svc.Login(context.Background(), "alice", "", "hunter22!")
	require.NoError(t, err)

	_, rotated, err := svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, rotated.AccessToken)

	// the pre-rotation token is now stale and must be rejected
	_, _, err = svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenUsed)

	// the newest token still works
	_, _, err = svc.Refresh(context.Background(), rotated.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshInvalidToken(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, _, err := svc.Refresh(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshUnknownUser(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	tok, _, err := svc.JWT.GenerateRefreshToken(primitive.NewObjectID().Hex())
	require.NoError(t, err)
	_, _, err = svc.Refresh(context.Background(), tok)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshAfterLogout(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	u := registerUser(t, svc)
	_, pair, err := svc.Login(context.Background(), "alice", "", "hunter22!")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), u.ID))

	_, _, err = svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenUsed)
}

func TestChangePassword(t *testing.T) {
	svc, _, _, pub := newTestService(t)
	u := registerUser(t, svc)

	err := svc.ChangePassword(context.Background(), u.ID, "hunter22!", "newpassword1")
	require.NoError(t, err)

	_, _, err = svc.Login(context.Background(), "alice", "", "newpassword1")
	assert.NoError(t, err)
	_, _, err = svc.Login(context.Background(), "alice", "", "hunter22!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// welcome + password-changed notifications
	require.Len(t, pub.jobs, 2)
	assert.Contains(t, pub.jobs[1].Subject, "password")
}

func TestChangePasswordWrongOld(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	u := registerUser(t, svc)
	err := svc.ChangePassword(context.Background(), u.ID, "not-the-password", "newpassword1")
	assert.ErrorIs(t, err, ErrWrongOldPassword)
}

func TestUpdateAccountDetails(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	u := registerUser(t, svc)

	updated, err := svc.UpdateAccountDetails(context.Background(), u.ID, "Alice B", "aliceb@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Alice B", updated.FullName)
	assert.Equal(t, "aliceb@example.com", updated.Email)
}

func TestUpdateAvatarReplacesOldObject(t *testing.T) {
	svc, _, media, _ := newTestService(t)
	u := registerUser(t, svc)
	oldPath := media.uploads[0]

	updated, err := svc.UpdateAvatar(context.Background(), u.ID, upload("new.png"))
	require.NoError(t, err)
	assert.NotEqual(t, u.Avatar, updated.Avatar)

	require.Len(t, media.uploads, 2)
	require.Len(t, media.deletes, 1)
	assert.Equal(t, oldPath, media.deletes[0], "the replaced object is cleaned up")
}

func TestUpdateCoverImageFirstTimeNoDelete(t *testing.T) {
	svc, _, media, _ := newTestService(t)
	u := registerUser(t, svc)

	updated, err := svc.UpdateCoverImage(context.Background(), u.ID, upload("cover.jpg"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(updated.CoverImage, "mem://covers/"))
	assert.Empty(t, media.deletes, "no previous cover to delete")
}

func TestUpdateAvatarUnknownUser(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.UpdateAvatar(context.Background(), primitive.NewObjectID(), upload("a.png"))
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGetProfileUnknownUser(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.GetProfile(context.Background(), primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestChannelProfileUnknownChannel(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.ChannelProfile(context.Background(), "ghost", primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSearchChannelsWithoutES(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	out, err := svc.SearchChannels(context.Background(), "alice", 10)
	require.NoError(t, err)
	assert.Empty(t, out)
}
