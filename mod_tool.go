//go:build ignore
// +build ignore

package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
)

const modToolDoc = `Repltweet Moderation Tool

Usage:
  mod_tool -i                  Dump all tweets and authors to STDOUT.
  mod_tool <author> <ts>       Delete a tweet by author and timestamp.
  mod_tool -h                  Show this screen.

The database path is taken from DATABASE (default /tmp/repltweet.db).`

type tweet struct {
	Body  string   `json:"body"`
	TS    int64    `json:"ts"`
	Likes []string `json:"likes"`
}

type record struct {
	Tweets []tweet `json:"tweets"`
}

func main() {
	if len(os.Args) < 2 || os.Args[1] == "-h" {
		fmt.Println(modToolDoc)
		return
	}

	path := os.Getenv("DATABASE")
	if path == "" {
		path = "/tmp/repltweet.db"
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Can't open database: %s\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if os.Args[1] == "-i" {
		dump(db)
		return
	}

	if len(os.Args) != 3 {
		fmt.Println(modToolDoc)
		os.Exit(1)
	}
	author := os.Args[1]
	ts, err := strconv.ParseInt(os.Args[2], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid timestamp: %s\n", os.Args[2])
		os.Exit(1)
	}
	deleteTweet(db, author, ts)
}

func dump(db *sql.DB) {
	rows, err := db.Query("SELECT username, data FROM record ORDER BY username")
	if err != nil {
		fmt.Fprintf(os.Stderr, "SQL error: %s\n", err)
		os.Exit(1)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			username string
			data     []byte
		)
		if err := rows.Scan(&username, &data); err != nil {
			fmt.Fprintf(os.Stderr, "Scan error: %s\n", err)
			continue
		}
		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			fmt.Fprintf(os.Stderr, "Corrupt record for %s: %s\n", username, err)
			continue
		}
		for _, t := range rec.Tweets {
			fmt.Printf("%s,%d,%q,%d likes\n", username, t.TS, t.Body, len(t.Likes))
		}
	}
}

func deleteTweet(db *sql.DB, author string, ts int64) {
	var (
		data    []byte
		version int64
	)
	err := db.QueryRow("SELECT data, version FROM record WHERE username = ?", author).
		Scan(&data, &version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "No record for %s\n", author)
		os.Exit(1)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		fmt.Fprintf(os.Stderr, "Corrupt record for %s: %s\n", author, err)
		os.Exit(1)
	}

	match := -1
	for i, t := range rec.Tweets {
		if t.TS == ts {
			match = i
			break
		}
	}
	if match == -1 {
		fmt.Fprintf(os.Stderr, "No tweet by %s at %d\n", author, ts)
		os.Exit(1)
	}
	rec.Tweets = append(rec.Tweets[:match], rec.Tweets[match+1:]...)

	out, err := json.Marshal(rec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Encode error: %s\n", err)
		os.Exit(1)
	}
	res, err := db.Exec(
		"UPDATE record SET data = ?, version = version + 1 WHERE username = ? AND version = ?",
		string(out), author, version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "SQL error: %s\n", err)
		os.Exit(1)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		fmt.Fprintln(os.Stderr, "Record changed underneath us, try again")
		os.Exit(1)
	}
	fmt.Printf("Deleted tweet by %s at %d\n", author, ts)
}
