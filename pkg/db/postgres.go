package db

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/aethermoor/server/config"
	_ "github.com/lib/pq"
)

// DB is the global connection pool, opened once at boot by InitPostgres.
var DB *sql.DB

// InitPostgres opens the pool and verifies connectivity.
func InitPostgres() error {
	dsn := config.GlobalConfig.Database.GetDSN()
	var err error

	DB, err = sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}

	if err = DB.Ping(); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	log.Println("connected to postgres")
	return nil
}

// Close releases the pool.
func Close() {
	if DB != nil {
		DB.Close()
		log.Println("postgres connection closed")
	}
}
