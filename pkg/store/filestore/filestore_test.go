package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"contextdb/pkg/models"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(t.TempDir())
	require.NoError(t, err)
	return st
}

func TestFetch_MissingLogIsEmpty(t *testing.T) {
	st := newStore(t)
	recs, err := st.Fetch(context.Background(), "nobody")
	require.NoError(t, err)
	require.NotNil(t, recs)
	require.Empty(t, recs)
}

func TestFetch_ZeroByteLogIsEmpty(t *testing.T) {
	st := newStore(t)

	// a failed append can leave an O_CREATE'd empty file behind; it must
	// still read as a valid empty log, not a nil slice
	require.NoError(t, os.WriteFile(filepath.Join(st.Root(), "stub.jsonl"), nil, 0o600))

	recs, err := st.Fetch(context.Background(), "stub")
	require.NoError(t, err)
	require.NotNil(t, recs)
	require.Empty(t, recs)
}

func TestAppend_AssignsIDAndPreservesOrder(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		out, err := st.Append(ctx, "chat1", models.MessageRecord{Sender: "user", Text: fmt.Sprintf("msg %d", i)})
		require.NoError(t, err)
		require.NotEmpty(t, out.ID)
		require.False(t, out.CreatedAt.IsZero())
		ids = append(ids, out.ID)
	}

	recs, err := st.Fetch(ctx, "chat1")
	require.NoError(t, err)
	require.Len(t, recs, 5)
	for i, m := range recs {
		require.Equal(t, ids[i], m.ID, "append order must be preserved")
		require.Equal(t, fmt.Sprintf("msg %d", i), m.Text)
	}
}

func TestAppend_SanitizesIDToSameLog(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	_, err := st.Append(ctx, "../../c99", models.MessageRecord{Text: "a"})
	require.NoError(t, err)

	// the traversal prefix is discarded, not encoded
	recs, err := st.Fetch(ctx, "c99")
	require.NoError(t, err)
	require.Len(t, recs, 1)

	_, statErr := os.Stat(filepath.Join(st.Root(), "c99.jsonl"))
	require.NoError(t, statErr)
}

func TestDeleteOne(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	a, _ := st.Append(ctx, "chat", models.MessageRecord{Text: "a"})
	b, _ := st.Append(ctx, "chat", models.MessageRecord{Text: "b"})
	c, _ := st.Append(ctx, "chat", models.MessageRecord{Text: "c"})

	require.NoError(t, st.DeleteOne(ctx, "chat", b.ID))

	recs, err := st.Fetch(ctx, "chat")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, a.ID, recs[0].ID)
	require.Equal(t, c.ID, recs[1].ID)

	// unknown id and missing log are both silent no-ops
	require.NoError(t, st.DeleteOne(ctx, "chat", "no-such-id"))
	require.NoError(t, st.DeleteOne(ctx, "ghost", "whatever"))
}

func TestOverwrite(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	_, err := st.Append(ctx, "chat", models.MessageRecord{Text: "old"})
	require.NoError(t, err)

	repl := []models.MessageRecord{
		{ID: "m1", Text: "new one"},
		{ID: "m2", Text: "new two"},
	}
	require.NoError(t, st.Overwrite(ctx, "chat", repl))

	recs, err := st.Fetch(ctx, "chat")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "new one", recs[0].Text)

	// empty replacement removes the log entirely
	require.NoError(t, st.Overwrite(ctx, "chat", nil))
	ok, err := st.Exists(ctx, "chat")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOverwrite_LeavesNoStagingDebris(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	require.NoError(t, st.Overwrite(ctx, "chat", []models.MessageRecord{{ID: "m", Text: "x"}}))

	ents, err := os.ReadDir(filepath.Join(st.Root(), ".tmp"))
	require.NoError(t, err)
	require.Empty(t, ents)
}

func TestDeleteAll_Idempotent(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	_, err := st.Append(ctx, "chat", models.MessageRecord{Text: "x"})
	require.NoError(t, err)

	require.NoError(t, st.DeleteAll(ctx, "chat"))
	require.NoError(t, st.DeleteAll(ctx, "chat"))

	recs, err := st.Fetch(ctx, "chat")
	require.NoError(t, err)
	require.Empty(t, recs)
}

func TestList(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	for _, id := range []string{"alpha", "beta"} {
		_, err := st.Append(ctx, id, models.MessageRecord{Text: "x"})
		require.NoError(t, err)
	}

	ids, err := st.List(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"alpha", "beta"}, ids)
}

func TestConcurrentAppendsDoNotInterleave(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := st.Append(ctx, "busy", models.MessageRecord{Text: fmt.Sprintf("m%d", i)})
			if err != nil {
				t.Errorf("append: %v", err)
			}
		}(i)
	}
	wg.Wait()

	recs, err := st.Fetch(ctx, "busy")
	require.NoError(t, err)
	require.Len(t, recs, n, "every append must land on its own line")
}

func TestFetch_MalformedStoredLineIsTerminal(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	_, err := st.Append(ctx, "chat", models.MessageRecord{Text: "good"})
	require.NoError(t, err)

	f, err := os.OpenFile(filepath.Join(st.Root(), "chat.jsonl"), os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, err = f.WriteString("garbage\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = st.Fetch(ctx, "chat")
	require.Error(t, err, "corruption must surface, never be skipped")
}
