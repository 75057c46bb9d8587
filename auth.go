package main

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// IdentityProvider resolves the caller behind a request, or reports that
// nobody is signed in.
type IdentityProvider interface {
	CurrentUser(r *http.Request) (string, bool)
}

// ModerationPolicy decides which identities may delete anyone's tweets.
type ModerationPolicy interface {
	IsModerator(username string) bool
}

type modList map[string]struct{}

func newModerationPolicy(usernames []string) ModerationPolicy {
	m := make(modList, len(usernames))
	for _, u := range usernames {
		m[u] = struct{}{}
	}
	return m
}

func (m modList) IsModerator(username string) bool {
	_, ok := m[username]
	return ok
}

const sessionName = "session"

// sessionAuth is the cookie-session IdentityProvider, with bcrypt-hashed
// credentials in the user table.
type sessionAuth struct {
	store *sessions.CookieStore
	db    *sql.DB
}

var _ IdentityProvider = (*sessionAuth)(nil)

func newSessionAuth(secret string, db *sql.DB) *sessionAuth {
	s := sessions.NewCookieStore([]byte(secret))
	s.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
	}
	return &sessionAuth{store: s, db: db}
}

func (a *sessionAuth) CurrentUser(r *http.Request) (string, bool) {
	session, _ := a.store.Get(r, sessionName)
	username, ok := session.Values["username"].(string)
	return username, ok && username != ""
}

func (a *sessionAuth) signIn(w http.ResponseWriter, r *http.Request, username string) {
	session, _ := a.store.Get(r, sessionName)
	session.Values["username"] = username
	session.Save(r, w)
}

func (a *sessionAuth) signOut(w http.ResponseWriter, r *http.Request) {
	session, _ := a.store.Get(r, sessionName)
	delete(session.Values, "username")
	session.Save(r, w)
}

// register creates the credential row; it reports whether the username was
// still free.
func (a *sessionAuth) register(username, password string) (bool, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, err
	}
	res, err := a.db.Exec(
		"INSERT OR IGNORE INTO user (username, pw_hash) VALUES (?, ?)",
		username, string(hash))
	if err != nil {
		return false, errors.Wrapf(err, "register %q", username)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (a *sessionAuth) lookupHash(username string) (string, bool, error) {
	var hash string
	err := a.db.QueryRow("SELECT pw_hash FROM user WHERE username = ?", username).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "look up user %q", username)
	}
	return hash, true, nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
