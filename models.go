package main

import "sort"

// Tweet is one message inside its author's record. The creation timestamp
// doubles as the tweet's address within that record; the stored form carries
// no author field, the record key is the author.
type Tweet struct {
	Body  string  `json:"body"`
	TS    int64   `json:"ts"`
	Likes LikeSet `json:"likes"`
}

// UserRecord is the full stored state for one username.
type UserRecord struct {
	Tweets []Tweet `json:"tweets"`
}

// FeedTweet is a Tweet with its author attached, the shape the feed returns.
type FeedTweet struct {
	Tweet
	Author string `json:"author"`
}

// LikeSet holds the usernames that like a tweet. It marshals as a sorted
// array so responses are deterministic.
type LikeSet map[string]struct{}

func (s LikeSet) Add(user string)    { s[user] = struct{}{} }
func (s LikeSet) Remove(user string) { delete(s, user) }

func (s LikeSet) Has(user string) bool {
	_, ok := s[user]
	return ok
}

func (s LikeSet) MarshalJSON() ([]byte, error) {
	users := make([]string, 0, len(s))
	for u := range s {
		users = append(users, u)
	}
	sort.Strings(users)
	return json.Marshal(users)
}

func (s *LikeSet) UnmarshalJSON(data []byte) error {
	var users []string
	if err := json.Unmarshal(data, &users); err != nil {
		return err
	}
	*s = make(LikeSet, len(users))
	for _, u := range users {
		(*s)[u] = struct{}{}
	}
	return nil
}
