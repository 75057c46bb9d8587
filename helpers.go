package main

import (
	"errors"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/nikolalohinski/gonja/v2"
	"github.com/nikolalohinski/gonja/v2/exec"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// --- Template helpers ---

func (s *server) renderTemplate(w http.ResponseWriter, name string, data map[string]interface{}) {
	tmpl, err := gonja.FromFile("templates/" + name)
	if err != nil {
		s.log.WithError(err).WithField("template", name).Error("template parse failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, exec.NewContext(data)); err != nil {
		s.log.WithError(err).WithField("template", name).Error("template render failed")
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// writeError surfaces an error as the JSON body and status code the clients
// expect; anything unrecognized becomes a plain 500.
func (s *server) writeError(w http.ResponseWriter, err error) {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		writeJSON(w, apiErr.status, map[string]string{"error": apiErr.message})
		return
	}
	s.log.WithError(err).Error("internal error")
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
}

// formParams parses the form body and requires each named parameter to be
// present. The frontend posts application/x-www-form-urlencoded.
func formParams(r *http.Request, names ...string) (map[string]string, error) {
	if err := r.ParseForm(); err != nil {
		return nil, &apiError{http.StatusBadRequest, "Malformed form body"}
	}
	params := make(map[string]string, len(names))
	for _, name := range names {
		vs, ok := r.Form[name]
		if !ok || len(vs) == 0 {
			return nil, errMissingParam(name)
		}
		params[name] = vs[0]
	}
	return params, nil
}
