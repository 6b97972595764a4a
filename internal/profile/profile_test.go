package profile

import (
	"path/filepath"
	"testing"

	"learnpath-quiz/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestLoginSaveLoadLogout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "profile.yaml")

	ctx := NewContext(path)
	require.NoError(t, ctx.Load())
	_, err := ctx.User()
	require.ErrorIs(t, err, ErrNoUser)

	require.NoError(t, ctx.Login(domain.User{ID: "u1", Name: "Alice", Login: "alice"}, "tok"))

	reloaded := NewContext(path)
	require.NoError(t, reloaded.Load())
	user, err := reloaded.User()
	require.NoError(t, err)
	require.Equal(t, "u1", user.ID)
	require.Equal(t, domain.RoleStudent, user.Role)
	require.Equal(t, "tok", reloaded.Token())
	require.Equal(t, "u1", reloaded.UserID())

	require.NoError(t, reloaded.Logout())
	require.Empty(t, reloaded.UserID())

	again := NewContext(path)
	require.NoError(t, again.Load())
	_, err = again.User()
	require.ErrorIs(t, err, ErrNoUser)
}
