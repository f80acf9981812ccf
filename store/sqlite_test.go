package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migadu/msgset/consts"
	"github.com/migadu/msgset/msgset"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(t *testing.T, scope string, ids ...uint64) msgset.Record {
	t.Helper()
	set, err := msgset.New(scope, msgset.ModeUID, ids)
	require.NoError(t, err)
	rec, err := set.ToRecord()
	require.NoError(t, err)
	return rec
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := testRecord(t, "INBOX", 1, 2, 3, 10, 11, 50)
	key := KeyFor("INBOX", msgset.ModeUID)
	require.NoError(t, s.Put(ctx, key, rec))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	// The loaded record rebuilds into an equal set.
	original, err := msgset.FromRecord(rec)
	require.NoError(t, err)
	loaded, err := msgset.FromRecord(got)
	require.NoError(t, err)
	assert.True(t, original.Equal(loaded))

	hits, misses := s.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(0), misses)
}

func TestSQLiteStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	key := KeyFor("INBOX", msgset.ModeUID)

	require.NoError(t, s.Put(ctx, key, testRecord(t, "INBOX", 1, 2)))
	require.NoError(t, s.Put(ctx, key, testRecord(t, "INBOX", 5, 6, 7)))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []uint64{5, 6, 7}, got.Members)
}

func TestSQLiteStoreNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, "uid/Missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, consts.ErrRecordNotFound))

	err = s.Delete(ctx, "uid/Missing")
	assert.True(t, errors.Is(err, consts.ErrRecordNotFound))

	_, misses := s.Stats()
	assert.Equal(t, int64(1), misses)
}

func TestSQLiteStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	key := KeyFor("Archive", msgset.ModeUID)

	require.NoError(t, s.Put(ctx, key, testRecord(t, "Archive", 9)))
	require.NoError(t, s.Delete(ctx, key))

	_, err := s.Get(ctx, key)
	assert.True(t, errors.Is(err, consts.ErrRecordNotFound))
}

func TestSQLiteStoreList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, scope := range []string{"INBOX", "INBOX/Receipts", "Archive"} {
		key := KeyFor(scope, msgset.ModeUID)
		require.NoError(t, s.Put(ctx, key, testRecord(t, scope, 1, 2)))
	}

	keys, err := s.List(ctx, "uid/INBOX")
	require.NoError(t, err)
	assert.Equal(t, []string{"uid/INBOX", "uid/INBOX/Receipts"}, keys)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestSQLiteStoreRejectsInvalidRecord(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := testRecord(t, "INBOX", 1, 2)
	rec.FormatVersion = msgset.RecordVersion + 1

	err := s.Put(ctx, KeyFor("INBOX", msgset.ModeUID), rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, msgset.ErrUnsupportedVersion))
}

func TestValidateKey(t *testing.T) {
	assert.NoError(t, ValidateKey("uid/INBOX"))

	err := ValidateKey("")
	assert.True(t, errors.Is(err, consts.ErrInvalidStoreKey))

	err = ValidateKey("bad\x00key")
	assert.True(t, errors.Is(err, consts.ErrInvalidStoreKey))
}

func TestKeyFor(t *testing.T) {
	assert.Equal(t, "uid/INBOX", KeyFor("INBOX", msgset.ModeUID))
	assert.Equal(t, "seq/Archive/2024", KeyFor("Archive/2024", msgset.ModeSeq))
}
