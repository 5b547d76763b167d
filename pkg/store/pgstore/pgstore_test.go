package pgstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"contextdb/pkg/auth"
	"contextdb/pkg/models"
	"contextdb/pkg/store"
)

// Integration tests run against a real database when
// CONTEXTDB_TEST_POSTGRES_DSN is set, and are skipped otherwise.
func testStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("CONTEXTDB_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CONTEXTDB_TEST_POSTGRES_DSN not set")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	st, err := New(pool)
	require.NoError(t, err)
	require.NoError(t, st.EnsureSchema(context.Background()))
	return st
}

func ownerCtx(owner string) context.Context {
	return auth.WithPrincipal(context.Background(), owner)
}

// unique ids keep runs against a shared database from colliding
func freshChatID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func TestRequiresPrincipal(t *testing.T) {
	st := testStore(t)

	_, err := st.Fetch(context.Background(), "chat")
	require.True(t, errors.Is(err, store.ErrUnauthorized))

	_, err = st.Append(context.Background(), "chat", models.MessageRecord{Text: "x"})
	require.True(t, errors.Is(err, store.ErrUnauthorized))
}

func TestOwnerScopedCRUD(t *testing.T) {
	st := testStore(t)
	chat := freshChatID("crud")
	alice := ownerCtx("alice")
	bob := ownerCtx("bob")

	a, err := st.Append(alice, chat, models.MessageRecord{Sender: "user", Text: "hi"})
	require.NoError(t, err)
	require.NotEmpty(t, a.ID)

	b, err := st.Append(alice, chat, models.MessageRecord{Sender: "assistant", Text: "hello"})
	require.NoError(t, err)

	recs, err := st.Fetch(alice, chat)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, a.ID, recs[0].ID)
	require.Equal(t, b.ID, recs[1].ID)

	// same chat id under a different owner is a separate, empty log
	other, err := st.Fetch(bob, chat)
	require.NoError(t, err)
	require.Empty(t, other)

	ok, err := st.Exists(bob, chat)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, st.DeleteOne(alice, chat, a.ID))
	require.NoError(t, st.DeleteOne(alice, chat, "missing"))

	recs, err = st.Fetch(alice, chat)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	require.NoError(t, st.DeleteAll(alice, chat))
	require.NoError(t, st.DeleteAll(alice, chat))

	ok, err = st.Exists(alice, chat)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOwners_EnumeratesWithoutPrincipal(t *testing.T) {
	st := testStore(t)
	chat := freshChatID("owners")

	for _, owner := range []string{"owner-a", "owner-b"} {
		_, err := st.Append(ownerCtx(owner), chat, models.MessageRecord{Text: "x"})
		require.NoError(t, err)
	}

	// maintenance path: no principal in the context
	owners, err := st.Owners(context.Background())
	require.NoError(t, err)
	require.Subset(t, owners, []string{"owner-a", "owner-b"})

	for _, owner := range []string{"owner-a", "owner-b"} {
		require.NoError(t, st.DeleteAll(ownerCtx(owner), chat))
	}
}

func TestOverwriteTransactional(t *testing.T) {
	st := testStore(t)
	chat := freshChatID("ow")
	alice := ownerCtx("alice")

	_, err := st.Append(alice, chat, models.MessageRecord{Text: "old"})
	require.NoError(t, err)

	repl := []models.MessageRecord{
		{ID: "m1", Text: "one", CreatedAt: time.Now().UTC()},
		{ID: "m2", Text: "two", CreatedAt: time.Now().UTC(), Embedding: []byte(`[1,2,3]`)},
	}
	require.NoError(t, st.Overwrite(alice, chat, repl))

	recs, err := st.Fetch(alice, chat)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "one", recs[0].Text)
	require.JSONEq(t, `[1,2,3]`, string(recs[1].Embedding))

	require.NoError(t, st.DeleteAll(alice, chat))
}
