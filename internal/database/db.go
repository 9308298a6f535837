package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
)

const (
	pingAttempts = 5
	pingBackoff  = 2 * time.Second
)

// dsn builds the driver configuration.  Timestamps are stored and read as
// UTC; clientFoundRows makes an UPDATE that changes nothing still report the
// matched row, which the repositories use to tell "not found" apart.
func dsn(user, pass, host, port, name string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = pass
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, port)
	cfg.DBName = name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true
	cfg.Collation = "utf8mb4_general_ci"
	return cfg.FormatDSN()
}

// Open connects to MySQL.  The database is pinged a few times before giving
// up since it is often still starting when the API container comes up.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn(user, pass, host, port, name))
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = db.PingContext(ctx)
		cancel()
		if err == nil {
			return db, nil
		}
		if attempt == pingAttempts {
			_ = db.Close()
			return nil, fmt.Errorf("mysql %s: %w", net.JoinHostPort(host, port), err)
		}
		time.Sleep(pingBackoff)
	}
}
