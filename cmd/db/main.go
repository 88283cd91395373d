package main

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/tomasstrnad1997/sweeper/db"
)

func main() {
	log := logrus.New()
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("Failed to load .env")
	}
	store, err := db.InitStore()
	if err != nil {
		log.WithError(err).Fatal("Failed to create store")
	}
	defer store.Close()
	if err = store.InitializeTables(); err != nil {
		log.WithError(err).Fatal("Failed to create tables")
	}
	log.WithField("path", os.Getenv("DB_PATH")).Info("Tables created")
}
