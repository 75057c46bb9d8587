package main

import (
	"net/http"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("bad configuration")
	}

	log := logrus.New()
	log.SetLevel(cfg.LogLevel)
	log.SetFormatter(&nested.Formatter{
		TimestampFormat: "01-02|15:04:05",
	})

	db, err := openDB(cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("can't open database")
	}
	defer db.Close()

	if err := applySchema(db); err != nil {
		log.WithError(err).Fatal("can't apply schema")
	}

	srv := newServer(cfg, db, log)

	log.WithField("addr", cfg.Addr).Info("listening")
	if err := http.ListenAndServe(cfg.Addr, srv.setupRouter()); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
