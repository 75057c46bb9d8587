package main

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Zero-width spaces make a tweet look blank without being empty.
const zeroWidthSpace = "​"

// casAttempts bounds the read-modify-write retry loop when a concurrent
// writer bumps the record version.
const casAttempts = 5

// TweetService implements composing, the feed, like/unlike and delete on top
// of the per-user record store.
type TweetService struct {
	store RecordStore
	mods  ModerationPolicy
	log   logrus.FieldLogger
	now   func() time.Time
}

func newTweetService(store RecordStore, mods ModerationPolicy, log logrus.FieldLogger) *TweetService {
	return &TweetService{store: store, mods: mods, log: log, now: time.Now}
}

// parseTS validates the wire form of a tweet address: a bare non-negative
// integer, the way the clients send it. Signs and anything non-numeric are
// rejected.
func parseTS(s string) (int64, error) {
	ts, err := strconv.ParseUint(s, 10, 63)
	if err != nil {
		return 0, errBadTS
	}
	return int64(ts), nil
}

// findTweet returns the index of the first tweet in rec with the given
// timestamp, or -1. Within one record the timestamp is the only address a
// tweet has; two tweets posted in the same second collide and the first wins.
func findTweet(rec UserRecord, ts int64) int {
	for i, t := range rec.Tweets {
		if t.TS == ts {
			return i
		}
	}
	return -1
}

// update runs one read-modify-write cycle against an author's record,
// retrying when a concurrent writer invalidates the version it read.
// Errors from fn abort without writing.
func (s *TweetService) update(author string, fn func(rec *UserRecord) error) error {
	for i := 0; i < casAttempts; i++ {
		rec, version, err := s.store.Get(author)
		if err != nil {
			return err
		}
		if err := fn(&rec); err != nil {
			return err
		}
		err = s.store.Set(author, rec, version)
		if errors.Is(err, ErrVersionConflict) {
			continue
		}
		return err
	}
	return errors.Errorf("record %q: too many concurrent updates", author)
}

// Compose appends a new tweet to the caller's own record. The body is
// rejected when it is empty once zero-width spaces and surrounding
// whitespace are gone.
func (s *TweetService) Compose(caller, body string) error {
	body = strings.TrimSpace(strings.ReplaceAll(body, zeroWidthSpace, ""))
	if body == "" {
		return errBlankTweet
	}

	tweet := Tweet{Body: body, TS: s.now().Unix(), Likes: LikeSet{}}
	err := s.update(caller, func(rec *UserRecord) error {
		rec.Tweets = append(rec.Tweets, tweet)
		return nil
	})
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"author": caller, "ts": tweet.TS}).Info("tweet recorded")
	return nil
}

// Feed flattens every user's tweets into one sequence sorted newest first.
// The username is only stored as the record key, so it is attached to each
// tweet as the author field here. Authors are gathered in username order and
// the sort is stable, so tweets with equal timestamps order by author name.
func (s *TweetService) Feed() ([]FeedTweet, error) {
	usernames, err := s.store.Keys()
	if err != nil {
		return nil, err
	}

	feed := make([]FeedTweet, 0)
	for _, username := range usernames {
		rec, _, err := s.store.Get(username)
		if err != nil {
			return nil, err
		}
		for _, t := range rec.Tweets {
			if t.Likes == nil {
				t.Likes = LikeSet{}
			}
			feed = append(feed, FeedTweet{Tweet: t, Author: username})
		}
	}

	sort.SliceStable(feed, func(i, j int) bool { return feed[i].TS > feed[j].TS })
	return feed, nil
}

// Like adds or removes the caller from the like set of the tweet at
// (author, ts). Both directions are idempotent: a double like and an unlike
// by a non-liker are no-ops, never errors.
func (s *TweetService) Like(caller, author, rawTS, action string) error {
	ts, err := parseTS(rawTS)
	if err != nil {
		return err
	}
	if action != "like" && action != "unlike" {
		return errInvalidAction
	}

	return s.update(author, func(rec *UserRecord) error {
		i := findTweet(*rec, ts)
		if i < 0 {
			return errTweetNotFound
		}
		if rec.Tweets[i].Likes == nil {
			rec.Tweets[i].Likes = LikeSet{}
		}
		if action == "like" {
			rec.Tweets[i].Likes.Add(caller)
		} else {
			rec.Tweets[i].Likes.Remove(caller)
		}
		return nil
	})
}

// Delete removes the tweet at (author, ts). Only the author or a moderator
// may delete, and existence is checked first so a missing tweet never reads
// as a permission failure.
func (s *TweetService) Delete(caller, author, rawTS string) error {
	ts, err := parseTS(rawTS)
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"caller": caller,
		"author": author,
		"ts":     ts,
	}).Info("delete requested")

	return s.update(author, func(rec *UserRecord) error {
		i := findTweet(*rec, ts)
		if i < 0 {
			return errTweetNotFound
		}
		if caller != author && !s.mods.IsModerator(caller) {
			return errPermission
		}
		rec.Tweets = append(rec.Tweets[:i], rec.Tweets[i+1:]...)
		return nil
	})
}
