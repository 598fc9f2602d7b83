package db

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, maxUsers int) *DB {
	t.Helper()

	tmpfile, err := os.CreateTemp("", "test-*.db")
	require.NoError(t, err)
	tmpfile.Close()
	os.Remove(tmpfile.Name())

	database, err := New(tmpfile.Name(), maxUsers)
	require.NoError(t, err)

	t.Cleanup(func() {
		database.Close()
		os.Remove(tmpfile.Name())
	})
	return database
}

func TestRegisterAndAuthenticate(t *testing.T) {
	database := newTestDB(t, 10)

	require.NoError(t, database.Register("alice", "secret123"))

	ok, err := database.Authenticate("alice", "secret123")
	require.NoError(t, err)
	assert.True(t, ok, "registration password must authenticate")

	ok, err = database.Authenticate("alice", "wrong")
	require.NoError(t, err)
	assert.False(t, ok, "wrong password must be rejected")

	ok, err = database.Authenticate("nobody", "secret123")
	require.NoError(t, err)
	assert.False(t, ok, "unknown user must be rejected")
}

func TestRegisterDuplicate(t *testing.T) {
	database := newTestDB(t, 10)

	require.NoError(t, database.Register("alice", "secret123"))
	assert.ErrorIs(t, database.Register("alice", "other"), ErrUserExists)

	count, err := database.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count, "exactly one account per successful registration")
}

func TestRegisterStoreFull(t *testing.T) {
	database := newTestDB(t, 2)

	require.NoError(t, database.Register("alice", "pw1"))
	require.NoError(t, database.Register("bob", "pw2"))
	assert.ErrorIs(t, database.Register("carol", "pw3"), ErrStoreFull)
}

func TestPasswordNeverStoredPlaintext(t *testing.T) {
	database := newTestDB(t, 10)

	require.NoError(t, database.Register("alice", "secret123"))

	acc, err := database.Find("alice")
	require.NoError(t, err)
	assert.NotContains(t, acc.Password, "secret123")
	assert.True(t, len(acc.Password) > 20, "expected a digest, got %q", acc.Password)
}

func TestSetOnline(t *testing.T) {
	database := newTestDB(t, 10)

	require.NoError(t, database.Register("alice", "secret123"))

	require.NoError(t, database.SetOnline("alice", true))
	acc, err := database.Find("alice")
	require.NoError(t, err)
	assert.True(t, acc.Online)
	assert.False(t, acc.LastSeen.IsZero())

	require.NoError(t, database.SetOnline("alice", false))
	acc, err = database.Find("alice")
	require.NoError(t, err)
	assert.False(t, acc.Online)

	assert.ErrorIs(t, database.SetOnline("nobody", true), ErrUserNotFound)
}

func TestFindNotFound(t *testing.T) {
	database := newTestDB(t, 10)

	_, err := database.Find("ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestResetPresence(t *testing.T) {
	database := newTestDB(t, 10)

	require.NoError(t, database.Register("alice", "pw1"))
	require.NoError(t, database.Register("bob", "pw2"))
	require.NoError(t, database.SetOnline("alice", true))
	require.NoError(t, database.SetOnline("bob", true))

	require.NoError(t, database.ResetPresence())

	for _, user := range []string{"alice", "bob"} {
		acc, err := database.Find(user)
		require.NoError(t, err)
		assert.False(t, acc.Online, "%s should be offline after reset", user)
	}
}

func TestUsernameCaseSensitive(t *testing.T) {
	database := newTestDB(t, 10)

	require.NoError(t, database.Register("Alice", "pw1"))
	require.NoError(t, database.Register("alice", "pw2"))

	ok, err := database.Authenticate("Alice", "pw1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = database.Authenticate("alice", "pw1")
	require.NoError(t, err)
	assert.False(t, ok)
}
