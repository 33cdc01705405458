package main

import (
	"database/sql"
	"log"

	_ "github.com/lib/pq" // PostgreSQL driver
)

var db *sql.DB

func initDB() {
	connStr := cfg.DatabaseURL
	if connStr == "" {
		connStr = "user=admin password=password dbname=campusmatch sslmode=disable"
		log.Println("Warning: DATABASE_URL not set, using default connection string")
	}

	var err error
	db, err = sql.Open("postgres", connStr)
	if err != nil {
		log.Fatal("Error connecting to the database:", err)
	}
	if err = db.Ping(); err != nil {
		log.Fatal("Cannot reach the database:", err)
	}
	log.Println("Database connection established successfully")

	// Table layout lives in schema.sql; apply it with psql before first run.
}
