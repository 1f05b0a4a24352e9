package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/kb-api/internal/dto"
	"github.com/noah-isme/kb-api/internal/models"
	appErrors "github.com/noah-isme/kb-api/pkg/errors"
)

// memoryUsers is an in-memory identity directory.
type memoryUsers struct {
	mu      sync.Mutex
	users   map[string]*models.User
	listErr error
}

func newMemoryUsers(users ...models.User) *memoryUsers {
	m := &memoryUsers{users: map[string]*models.User{}}
	for i := range users {
		u := users[i]
		m.users[u.ID] = &u
	}
	return m
}

func (m *memoryUsers) List(_ context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, u := range m.users {
		if filter.Role == nil || u.Role == *filter.Role {
			out = append(out, *u)
		}
	}
	return out, len(out), nil
}

func (m *memoryUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m *memoryUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryUsers) ListByRole(_ context.Context, role models.UserRole) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.User
	for _, u := range m.users {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memoryUsers) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.ID = fmt.Sprintf("user-%d", len(m.users)+1)
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memoryUsers) Update(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return sql.ErrNoRows
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func strPtr(s string) *string { return &s }

func TestUserServiceCreate(t *testing.T) {
	repo := newMemoryUsers(models.User{ID: "admin-1", Username: "root", Role: models.RoleAdmin})
	activity := &recordingActivity{}
	svc := NewUserService(repo, activity, nil, nil)
	ctx := context.Background()

	req := dto.CreateUserRequest{Username: " Tech01 ", Password: "s3cretpass", DisplayName: "Tech One", Role: "Supervisor", SupervisorType: strPtr("field")}

	_, err := svc.Create(ctx, models.Actor{ID: "sup", Role: models.RoleSupervisor}, req)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	user, err := svc.Create(ctx, admin, req)
	require.NoError(t, err)
	assert.Equal(t, "tech01", user.Username)
	assert.Equal(t, models.RoleSupervisor, user.Role)
	require.NotNil(t, user.SupervisorType)
	assert.Equal(t, "field", *user.SupervisorType)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cretpass")))
	assert.Equal(t, []string{models.ActionUserCreate}, activity.actions())

	_, err = svc.Create(ctx, admin, req)
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.Create(ctx, admin, dto.CreateUserRequest{Username: "x1", Password: "short", DisplayName: "X", Role: "user"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	plain, err := svc.Create(ctx, admin, dto.CreateUserRequest{Username: "viewer", Password: "longenough", DisplayName: "Viewer", Role: "user", SupervisorType: strPtr("field")})
	require.NoError(t, err)
	assert.Nil(t, plain.SupervisorType)
}

func TestUserServiceUpdate(t *testing.T) {
	repo := newMemoryUsers(models.User{ID: "user-9", Username: "sam", DisplayName: "Sam", Role: models.RoleSupervisor, SupervisorType: strPtr("field")})
	svc := NewUserService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Update(ctx, user1, "user-9", dto.UpdateUserRequest{DisplayName: strPtr("Nope")})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	updated, err := svc.Update(ctx, admin, "user-9", dto.UpdateUserRequest{Role: strPtr("USER"), DisplayName: strPtr(" Samuel ")})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, updated.Role)
	assert.Equal(t, "Samuel", updated.DisplayName)
	assert.Nil(t, updated.SupervisorType)

	_, err = svc.Update(ctx, admin, "user-9", dto.UpdateUserRequest{Role: strPtr("owner")})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Update(ctx, admin, "missing", dto.UpdateUserRequest{DisplayName: strPtr("Ghost")})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestUserServiceGetAndList(t *testing.T) {
	repo := newMemoryUsers(
		models.User{ID: "u1", Username: "one", Role: models.RoleUser},
		models.User{ID: "u2", Username: "two", Role: models.RoleUser},
	)
	svc := NewUserService(repo, nil, nil, nil)
	ctx := context.Background()

	self, err := svc.Get(ctx, user1, "u1")
	require.NoError(t, err)
	assert.Equal(t, "one", self.Username)

	_, err = svc.Get(ctx, user1, "u2")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Get(ctx, admin, "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, _, err = svc.List(ctx, supervisor, models.UserFilter{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	users, page, err := svc.List(ctx, admin, models.UserFilter{Limit: 1000, Offset: -3})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, defaultListLimit, page.Limit)
	assert.Equal(t, 0, page.Offset)
}
