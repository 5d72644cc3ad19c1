package api

import (
	"fmt"
	"log"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/ethanbaker/voicechat/internal/stores/session"
	"github.com/ethanbaker/voicechat/pkg/utils"
)

// openStore creates the session store selected by DATABASE_DRIVER. Without a
// driver, MySQL is used when MYSQL_DATABASE is set and memory otherwise.
func openStore(cfg *utils.Config) (session.Store, error) {
	driver := strings.ToLower(cfg.Get("DATABASE_DRIVER"))
	if driver == "" {
		driver = "memory"
		if cfg.Get("MYSQL_DATABASE") != "" {
			driver = "mysql"
		}
	}

	switch driver {
	case "mysql":
		dbConfig := mysql.Config{
			User:      cfg.Get("MYSQL_USER"),
			Passwd:    cfg.Get("MYSQL_ROOT_PASSWORD"),
			Net:       "tcp",
			Addr:      fmt.Sprintf("%s:%s", cfg.GetWithDefault("MYSQL_HOST", "localhost"), cfg.GetWithDefault("MYSQL_PORT", "3306")),
			DBName:    cfg.Get("MYSQL_DATABASE"),
			ParseTime: true,
		}
		if dbConfig.DBName == "" {
			return nil, fmt.Errorf("MYSQL_DATABASE not set in config or environment")
		}
		return session.NewMySqlStore(dbConfig)

	case "postgres":
		dsn := cfg.Get("POSTGRES_DSN")
		if dsn == "" {
			return nil, fmt.Errorf("POSTGRES_DSN not set in config or environment")
		}
		return session.NewPostgresStore(dsn)

	case "sqlite":
		return session.NewSqliteStore(cfg.GetWithDefault("SQLITE_PATH", "voicechat.db"))

	case "memory":
		log.Println("[API]: Warning, no database configured, using in-memory session store (data will not persist across restarts)")
		return session.NewInMemoryStore(), nil

	default:
		return nil, fmt.Errorf("unknown DATABASE_DRIVER %q (expected mysql, postgres, sqlite or memory)", driver)
	}
}
