package auth

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/James-Trimble/PlayPalace11/internal/protocol"
	"github.com/James-Trimble/PlayPalace11/internal/store"
)

func newManager(t *testing.T) (*Manager, *store.Memory) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	st := store.NewMemory()
	return New(st, []byte("test-secret"), time.Hour, log), st
}

func TestAuthenticateRegistersUnknownUser(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()

	id, err := m.Authenticate(ctx, "hanna", "hunter2", "de")
	require.NoError(t, err)
	assert.Equal(t, "hanna", id)

	u, err := st.GetUser(ctx, "hanna")
	require.NoError(t, err)
	assert.Equal(t, "de", u.Locale)
	assert.NotEqual(t, "hunter2", u.PasswordHash, "password must be hashed")
}

func TestAuthenticateRejectsWrongPassword(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	_, err := m.Authenticate(ctx, "hanna", "hunter2", "en")
	require.NoError(t, err)

	_, err = m.Authenticate(ctx, "hanna", "wrong", "en")
	var perr *protocol.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, protocol.CodeCredentialsRejected, perr.Code)
}

func TestAuthenticateAcceptsReturningUser(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()

	_, err := m.Authenticate(ctx, "hanna", "hunter2", "en")
	require.NoError(t, err)

	id, err := m.Authenticate(ctx, "hanna", "hunter2", "fr")
	require.NoError(t, err)
	assert.Equal(t, "hanna", id)

	u, err := st.GetUser(ctx, "hanna")
	require.NoError(t, err)
	assert.Equal(t, "fr", u.Locale, "locale follows the latest login")
}

func TestRegisterRaceCannotOverwriteAccount(t *testing.T) {
	m, st := newManager(t)
	ctx := context.Background()

	_, err := m.Authenticate(ctx, "hanna", "hunter2", "en")
	require.NoError(t, err)
	u, err := st.GetUser(ctx, "hanna")
	require.NoError(t, err)

	// A login that raced past the lookup and tries to register anyway must
	// end up validated against the existing account, not replace it.
	id, err := m.register(ctx, "hanna", "hunter2", "en")
	require.NoError(t, err)
	assert.Equal(t, "hanna", id)

	_, err = m.register(ctx, "hanna", "wrong", "en")
	var perr *protocol.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, protocol.CodeCredentialsRejected, perr.Code)

	after, err := st.GetUser(ctx, "hanna")
	require.NoError(t, err)
	assert.Equal(t, u.PasswordHash, after.PasswordHash, "the stored hash survives the race")
}

func TestAuthenticateRejectsEmptyCredentials(t *testing.T) {
	m, _ := newManager(t)
	ctx := context.Background()

	for _, tc := range [][2]string{{"", "pw"}, {"user", ""}, {"", ""}} {
		_, err := m.Authenticate(ctx, tc[0], tc[1], "en")
		assert.Error(t, err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	m, _ := newManager(t)

	token, err := m.IssueToken("hanna")
	require.NoError(t, err)

	id, err := m.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "hanna", id)
}

func TestVerifyTokenRejectsGarbageAndForeignKeys(t *testing.T) {
	m, _ := newManager(t)

	_, err := m.VerifyToken("not-a-token")
	assert.Error(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)
	other := New(store.NewMemory(), []byte("other-secret"), time.Hour, log)
	token, err := other.IssueToken("hanna")
	require.NoError(t, err)

	_, err = m.VerifyToken(token)
	assert.Error(t, err, "token signed with a different secret must fail")
}
