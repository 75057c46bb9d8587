package main

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// server wires the HTTP surface to the identity provider, the record store
// and the rate limiter.
type server struct {
	auth    *sessionAuth
	tweets  *TweetService
	mods    ModerationPolicy
	limiter *rateLimiter
	log     logrus.FieldLogger
}

func newServer(cfg *Config, db *sql.DB, log logrus.FieldLogger) *server {
	mods := newModerationPolicy(cfg.Moderators)
	return &server{
		auth:    newSessionAuth(cfg.SecretKey, db),
		tweets:  newTweetService(newRecordStore(db), mods, log),
		mods:    mods,
		limiter: newRateLimiter(cfg.RateMax, cfg.RatePeriod),
		log:     log,
	}
}

func (s *server) setupRouter() *mux.Router {
	r := mux.NewRouter()

	r.PathPrefix("/static/").Handler(
		http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	r.HandleFunc("/", s.indexHandler).Methods("GET")
	r.HandleFunc("/home", s.homeHandler).Methods("GET")
	r.HandleFunc("/login", s.loginHandler).Methods("GET", "POST")
	r.HandleFunc("/register", s.registerHandler).Methods("GET", "POST")
	r.HandleFunc("/logout", s.logoutHandler).Methods("GET")

	r.HandleFunc("/api/tweet", s.api(s.apiTweetHandler)).Methods("POST")
	r.HandleFunc("/api/feed", s.api(s.apiFeedHandler)).Methods("GET")
	r.HandleFunc("/api/like", s.api(s.apiLikeHandler)).Methods("POST")
	r.HandleFunc("/api/delete", s.api(s.apiDeleteHandler)).Methods("POST")

	return r
}

type apiHandlerFunc func(w http.ResponseWriter, r *http.Request, caller string)

// api gates every API route behind the sign-in check and the shared
// rate-limit bucket, in that order, then hands the handler the caller's
// identity.
func (s *server) api(h apiHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := s.auth.CurrentUser(r)
		if !ok {
			s.writeError(w, errNotSignedIn)
			return
		}
		if wait, ok := s.limiter.Admit(caller); !ok {
			s.writeError(w, errRateLimited(wait))
			return
		}
		h(w, r, caller)
	}
}

// GET / — landing page; signed-in users go straight to /home
func (s *server) indexHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.auth.CurrentUser(r); ok {
		http.Redirect(w, r, "/home", http.StatusFound)
		return
	}
	s.renderTemplate(w, "index.html", map[string]interface{}{})
}

// GET /home — feed page, only for signed-in users
func (s *server) homeHandler(w http.ResponseWriter, r *http.Request) {
	username, ok := s.auth.CurrentUser(r)
	if !ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	s.renderTemplate(w, "home.html", map[string]interface{}{
		"name": username,
		"mod":  s.mods.IsModerator(username),
	})
}

// GET + POST /login
func (s *server) loginHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.auth.CurrentUser(r); ok {
		http.Redirect(w, r, "/home", http.StatusFound)
		return
	}

	errorMsg := ""
	if r.Method == "POST" {
		username := r.FormValue("username")
		password := r.FormValue("password")

		hash, found, err := s.auth.lookupHash(username)
		if err != nil {
			s.log.WithError(err).Error("login lookup failed")
			errorMsg = "Something went wrong"
		} else if !found {
			errorMsg = "Invalid username"
		} else if !checkPassword(hash, password) {
			errorMsg = "Invalid password"
		} else {
			s.auth.signIn(w, r, username)
			http.Redirect(w, r, "/home", http.StatusFound)
			return
		}
	}

	s.renderTemplate(w, "login.html", map[string]interface{}{
		"error": errorMsg,
	})
}

// GET + POST /register
func (s *server) registerHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.auth.CurrentUser(r); ok {
		http.Redirect(w, r, "/home", http.StatusFound)
		return
	}

	errorMsg := ""
	if r.Method == "POST" {
		username := r.FormValue("username")
		password := r.FormValue("password")
		password2 := r.FormValue("password2")

		if username == "" {
			errorMsg = "You have to enter a username"
		} else if password == "" {
			errorMsg = "You have to enter a password"
		} else if password != password2 {
			errorMsg = "The two passwords do not match"
		} else {
			created, err := s.auth.register(username, password)
			if err != nil {
				s.log.WithError(err).Error("registration failed")
				errorMsg = "Something went wrong"
			} else if !created {
				errorMsg = "The username is already taken"
			} else {
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}
		}
	}

	s.renderTemplate(w, "register.html", map[string]interface{}{
		"error": errorMsg,
	})
}

// GET /logout
func (s *server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	s.auth.signOut(w, r)
	http.Redirect(w, r, "/", http.StatusFound)
}

// POST /api/tweet
func (s *server) apiTweetHandler(w http.ResponseWriter, r *http.Request, caller string) {
	params, err := formParams(r, "body")
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.tweets.Compose(caller, params["body"]); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GET /api/feed
func (s *server) apiFeedHandler(w http.ResponseWriter, r *http.Request, _ string) {
	feed, err := s.tweets.Feed()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tweets": feed})
}

// POST /api/like
func (s *server) apiLikeHandler(w http.ResponseWriter, r *http.Request, caller string) {
	params, err := formParams(r, "author", "ts", "action")
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.tweets.Like(caller, params["author"], params["ts"], params["action"]); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// POST /api/delete
func (s *server) apiDeleteHandler(w http.ResponseWriter, r *http.Request, caller string) {
	params, err := formParams(r, "author", "ts")
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.tweets.Delete(caller, params["author"], params["ts"]); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
