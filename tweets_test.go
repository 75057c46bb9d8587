package main

import (
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory RecordStore for service-level tests. Records go
// through the JSON codec so tests exercise the same round-trip as the SQLite
// store.
type memStore struct {
	mu   sync.Mutex
	recs map[string]string
	vers map[string]int64
}

func newMemStore() *memStore {
	return &memStore{recs: make(map[string]string), vers: make(map[string]int64)}
}

func (m *memStore) Get(username string) (UserRecord, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.recs[username]
	if !ok {
		return UserRecord{}, 0, nil
	}
	var rec UserRecord
	if err := json.UnmarshalFromString(data, &rec); err != nil {
		return UserRecord{}, 0, err
	}
	return rec, m.vers[username], nil
}

func (m *memStore) Set(username string, rec UserRecord, expected int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vers[username] != expected {
		return ErrVersionConflict
	}
	data, err := json.MarshalToString(rec)
	if err != nil {
		return err
	}
	m.recs[username] = data
	m.vers[username] = expected + 1
	return nil
}

func (m *memStore) Keys() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.recs))
	for k := range m.recs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// conflictStore fails the next n writes with a version conflict.
type conflictStore struct {
	RecordStore
	remaining int
}

func (c *conflictStore) Set(username string, rec UserRecord, expected int64) error {
	if c.remaining > 0 {
		c.remaining--
		return ErrVersionConflict
	}
	return c.RecordStore.Set(username, rec, expected)
}

func newTestService(store RecordStore) *TweetService {
	log := logrus.New()
	log.SetOutput(io.Discard)
	svc := newTweetService(store, newModerationPolicy([]string{"modzilla"}), log)
	svc.now = func() time.Time { return time.Unix(1000, 0) }
	return svc
}

func TestParseTS(t *testing.T) {
	ts, err := parseTS("1000")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), ts)

	ts, err = parseTS("0")
	require.NoError(t, err)
	assert.Equal(t, int64(0), ts)

	for _, bad := range []string{"", "abc", "-1", "+1", "1.5", "10 ", "0x10"} {
		_, err := parseTS(bad)
		assert.ErrorIs(t, err, errBadTS, "parseTS(%q)", bad)
	}
}

func TestComposeTrimsBody(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	require.NoError(t, svc.Compose("alice", "  hi "))

	rec, version, err := store.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	require.Len(t, rec.Tweets, 1)
	assert.Equal(t, "hi", rec.Tweets[0].Body)
	assert.Equal(t, int64(1000), rec.Tweets[0].TS)
	assert.Empty(t, rec.Tweets[0].Likes)
}

func TestComposeRejectsBlank(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	for _, body := range []string{"", "   ", "​", "​​", " ​ "} {
		err := svc.Compose("alice", body)
		assert.ErrorIs(t, err, errBlankTweet, "Compose(%q)", body)
	}

	// Nothing was written
	rec, version, err := store.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)
	assert.Empty(t, rec.Tweets)
}

func TestFindTweetFirstMatchWins(t *testing.T) {
	rec := UserRecord{Tweets: []Tweet{
		{Body: "first", TS: 1000},
		{Body: "second", TS: 1000},
	}}
	assert.Equal(t, 0, findTweet(rec, 1000))
	assert.Equal(t, -1, findTweet(rec, 999))
}

func TestFeedOrdering(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	post := func(author string, ts int64, body string) {
		svc.now = func() time.Time { return time.Unix(ts, 0) }
		require.NoError(t, svc.Compose(author, body))
	}
	post("bob", 200, "bob early")
	post("bob", 300, "bob late")
	post("alice", 100, "alice early")
	post("alice", 300, "alice late")

	feed, err := svc.Feed()
	require.NoError(t, err)
	require.Len(t, feed, 4)

	// Newest first for every adjacent pair
	for i := 1; i < len(feed); i++ {
		assert.GreaterOrEqual(t, feed[i-1].TS, feed[i].TS)
	}

	// Equal timestamps order by author name: the stable sort keeps the
	// username enumeration order
	assert.Equal(t, "alice late", feed[0].Body)
	assert.Equal(t, "alice", feed[0].Author)
	assert.Equal(t, "bob late", feed[1].Body)
	assert.Equal(t, "bob early", feed[2].Body)
	assert.Equal(t, "alice early", feed[3].Body)
}

func TestLikeIdempotent(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	require.NoError(t, svc.Compose("alice", "hello"))

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Like("bob", "alice", "1000", "like"))
	}

	rec, _, err := store.Get("alice")
	require.NoError(t, err)
	assert.True(t, rec.Tweets[0].Likes.Has("bob"))
	assert.Len(t, rec.Tweets[0].Likes, 1)
}

func TestLikeUnlikeRoundTrip(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	require.NoError(t, svc.Compose("alice", "hello"))

	require.NoError(t, svc.Like("bob", "alice", "1000", "like"))
	require.NoError(t, svc.Like("bob", "alice", "1000", "unlike"))

	rec, _, err := store.Get("alice")
	require.NoError(t, err)
	assert.Empty(t, rec.Tweets[0].Likes)

	// Unliking when not a liker is a no-op, never an error
	require.NoError(t, svc.Like("carol", "alice", "1000", "unlike"))
}

func TestLikeValidation(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	require.NoError(t, svc.Compose("alice", "hello"))

	assert.ErrorIs(t, svc.Like("bob", "alice", "nope", "like"), errBadTS)
	assert.ErrorIs(t, svc.Like("bob", "alice", "1000", "smash"), errInvalidAction)
	assert.ErrorIs(t, svc.Like("bob", "alice", "1001", "like"), errTweetNotFound)
	assert.ErrorIs(t, svc.Like("bob", "nobody", "1000", "like"), errTweetNotFound)
}

func TestLikeSetMarshalsSorted(t *testing.T) {
	out, err := json.MarshalToString(LikeSet{"bob": {}, "alice": {}})
	require.NoError(t, err)
	assert.Equal(t, `["alice","bob"]`, out)
}

func TestDeleteAuthorization(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	require.NoError(t, svc.Compose("alice", "hello"))

	// Not the author, not a moderator
	assert.ErrorIs(t, svc.Delete("bob", "alice", "1000"), errPermission)
	rec, _, _ := store.Get("alice")
	assert.Len(t, rec.Tweets, 1)

	// Missing tweets report not found before any permission check
	assert.ErrorIs(t, svc.Delete("bob", "alice", "1234"), errTweetNotFound)

	// The author may delete their own
	require.NoError(t, svc.Delete("alice", "alice", "1000"))
	rec, _, _ = store.Get("alice")
	assert.Empty(t, rec.Tweets)

	// A moderator may delete anyone's
	require.NoError(t, svc.Compose("alice", "hello again"))
	require.NoError(t, svc.Delete("modzilla", "alice", "1000"))
	rec, _, _ = store.Get("alice")
	assert.Empty(t, rec.Tweets)
}

func TestDeleteRemovesExactlyOne(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	svc.now = func() time.Time { return time.Unix(1000, 0) }
	require.NoError(t, svc.Compose("alice", "first"))
	svc.now = func() time.Time { return time.Unix(2000, 0) }
	require.NoError(t, svc.Compose("alice", "second"))

	require.NoError(t, svc.Delete("alice", "alice", "1000"))

	rec, _, err := store.Get("alice")
	require.NoError(t, err)
	require.Len(t, rec.Tweets, 1)
	assert.Equal(t, "second", rec.Tweets[0].Body)
	assert.Equal(t, -1, findTweet(rec, 1000))
}

func TestUpdateRetriesOnConflict(t *testing.T) {
	store := &conflictStore{RecordStore: newMemStore(), remaining: 2}
	svc := newTestService(store)

	require.NoError(t, svc.Compose("alice", "eventually lands"))
	rec, _, err := store.Get("alice")
	require.NoError(t, err)
	assert.Len(t, rec.Tweets, 1)
}

func TestUpdateGivesUpAfterTooManyConflicts(t *testing.T) {
	store := &conflictStore{RecordStore: newMemStore(), remaining: casAttempts + 1}
	svc := newTestService(store)

	err := svc.Compose("alice", "never lands")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many concurrent updates")

	rec, _, getErr := store.Get("alice")
	require.NoError(t, getErr)
	assert.Empty(t, rec.Tweets)
}
