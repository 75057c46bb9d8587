package main

import (
	"database/sql"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// ErrVersionConflict is returned by Set when the stored record moved past the
// version it was read at. Callers re-read and retry.
var ErrVersionConflict = errors.New("record version conflict")

// RecordStore is the schemaless per-user store: one record per username.
//
// Get returns the record together with the version it was read at; an unknown
// username yields an empty record at version 0. Set replaces the whole record
// and succeeds only while the stored version still equals expected, which
// closes the lost-update window between concurrent read-modify-write cycles.
type RecordStore interface {
	Get(username string) (UserRecord, int64, error)
	Set(username string, rec UserRecord, expected int64) error
	Keys() ([]string, error)
}

func openDB(path string) (*sql.DB, error) {
	return sql.Open("sqlite3", path)
}

func applySchema(db *sql.DB) error {
	schema, err := os.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = db.Exec(string(schema))
	return err
}

type sqliteStore struct {
	db *sql.DB
}

func newRecordStore(db *sql.DB) RecordStore {
	return &sqliteStore{db: db}
}

func (s *sqliteStore) Get(username string) (UserRecord, int64, error) {
	var (
		data    []byte
		version int64
	)
	err := s.db.QueryRow("SELECT data, version FROM record WHERE username = ?", username).
		Scan(&data, &version)
	if err == sql.ErrNoRows {
		return UserRecord{}, 0, nil
	}
	if err != nil {
		return UserRecord{}, 0, errors.Wrapf(err, "read record %q", username)
	}

	var rec UserRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return UserRecord{}, 0, errors.Wrapf(err, "decode record %q", username)
	}
	return rec, version, nil
}

func (s *sqliteStore) Set(username string, rec UserRecord, expected int64) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrapf(err, "encode record %q", username)
	}

	var res sql.Result
	if expected == 0 {
		res, err = s.db.Exec(
			"INSERT OR IGNORE INTO record (username, data, version) VALUES (?, ?, 1)",
			username, string(data))
	} else {
		res, err = s.db.Exec(
			"UPDATE record SET data = ?, version = version + 1 WHERE username = ? AND version = ?",
			string(data), username, expected)
	}
	if err != nil {
		return errors.Wrapf(err, "write record %q", username)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "write record %q", username)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	return nil
}

func (s *sqliteStore) Keys() ([]string, error) {
	rows, err := s.db.Query("SELECT username FROM record ORDER BY username")
	if err != nil {
		return nil, errors.Wrap(err, "list records")
	}
	defer rows.Close()

	var usernames []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, errors.Wrap(err, "list records")
		}
		usernames = append(usernames, username)
	}
	return usernames, rows.Err()
}
