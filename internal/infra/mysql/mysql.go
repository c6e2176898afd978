package mysql

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"shopify-preorder-sync/internal/config"
)

//go:embed schema.sql
var schemaSQL string

const errDuplicateEntry = 1062

func New(cfg config.MysqlConfig) (*sql.DB, error) {
	if cfg.Host == "" || cfg.Username == "" || cfg.Database == "" {
		return nil, errors.New("mysql: host, username and database are required")
	}

	if cfg.Port == 0 {
		cfg.Port = 3306
	}

	driverCfg := gomysql.NewConfig()
	driverCfg.User = cfg.Username
	driverCfg.Passwd = cfg.Password
	driverCfg.Net = "tcp"
	driverCfg.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	driverCfg.DBName = cfg.Database
	driverCfg.ParseTime = true
	driverCfg.Loc = time.UTC
	driverCfg.MultiStatements = false

	db, err := sql.Open("mysql", driverCfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("mysql connection error %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql: ping %w", err)
	}

	return db, nil
}

// Migrate applies the embedded schema. Every statement is CREATE TABLE IF NOT
// EXISTS so running it on each start is safe.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range splitStatements(schemaSQL) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("mysql: migrate: %w", err)
		}
	}
	return nil
}

func splitStatements(script string) []string {
	parts := strings.Split(script, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		lines := strings.Split(p, "\n")
		kept := lines[:0]
		for _, l := range lines {
			if strings.HasPrefix(strings.TrimSpace(l), "--") {
				continue
			}
			kept = append(kept, l)
		}
		stmt := strings.TrimSpace(strings.Join(kept, "\n"))
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// IsDuplicateEntry reports whether err is a MySQL unique key violation.
func IsDuplicateEntry(err error) bool {
	var myErr *gomysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == errDuplicateEntry
}
