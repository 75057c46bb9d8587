package main

import (
	"fmt"
	"net/http"
	"time"
)

// apiError maps an error onto the HTTP status and JSON error body the
// frontend expects.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string { return e.message }

var (
	errNotSignedIn   = &apiError{http.StatusUnauthorized, "Not signed in"}
	errBlankTweet    = &apiError{http.StatusBadRequest, "Cannot submit a blank tweet"}
	errBadTS         = &apiError{http.StatusBadRequest, "Bad ts"}
	errInvalidAction = &apiError{http.StatusBadRequest, "Invalid action"}
	errTweetNotFound = &apiError{http.StatusNotFound, "Tweet not found"}
	errPermission    = &apiError{http.StatusUnauthorized, "Permission denied"}
)

func errMissingParam(name string) *apiError {
	return &apiError{http.StatusBadRequest, fmt.Sprintf("Missing param: %s", name)}
}

func errRateLimited(wait time.Duration) *apiError {
	return &apiError{
		http.StatusTooManyRequests,
		fmt.Sprintf("Wait %.2f sec before trying again.", wait.Seconds()),
	}
}
