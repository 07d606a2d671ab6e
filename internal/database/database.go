package database

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xelth-com/pdbsync/internal/config"
	"github.com/xelth-com/pdbsync/internal/logging"
)

const (
	embeddedDataPath = "./db_data"
	embeddedPort     = 5433
)

// DB wraps gorm.DB and includes a reference to an embedded process if active
type DB struct {
	*gorm.DB
	Engine   string
	embedded *embeddedpostgres.EmbeddedPostgres
}

// gormWriter routes gorm's statement log into the zerolog logger.
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	logging.Printf(format, args...)
}

// cleanupStaleEmbeddedPostgres cleans up leftover processes from a previous crash
func cleanupStaleEmbeddedPostgres(dataPath string) {
	pidFile := filepath.Join(dataPath, "postmaster.pid")

	data, err := os.ReadFile(pidFile)
	if err != nil {
		// No pid file = clean state
		return
	}

	// Parse PID from first line of postmaster.pid
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	if !scanner.Scan() {
		return
	}
	pid, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil {
		logging.Warn().Err(err).Msg("Could not parse PID from postmaster.pid")
		return
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		logging.Info().Int("pid", pid).Msg("Cleaning up stale postmaster.pid (process not found)")
		os.Remove(pidFile)
		return
	}

	// On Unix, FindProcess always succeeds, so we need to send signal 0 to check
	if err := process.Signal(syscall.Signal(0)); err != nil {
		logging.Info().Int("pid", pid).Msg("Cleaning up stale postmaster.pid (process not running)")
		os.Remove(pidFile)
		return
	}

	logging.Warn().Int("pid", pid).Msg("Found orphaned PostgreSQL process, attempting to stop")
	if err := process.Signal(syscall.SIGTERM); err != nil {
		logging.Warn().Err(err).Int("pid", pid).Msg("Could not send SIGTERM")
	}

	// Wait up to 5 seconds for process to stop
	for i := 0; i < 10; i++ {
		time.Sleep(500 * time.Millisecond)
		if err := process.Signal(syscall.Signal(0)); err != nil {
			logging.Info().Msg("Orphaned PostgreSQL process stopped")
			os.Remove(pidFile)
			return
		}
	}

	logging.Warn().Int("pid", pid).Msg("Process did not stop gracefully, sending SIGKILL")
	process.Kill()
	time.Sleep(500 * time.Millisecond)
	os.Remove(pidFile)
}

// isPortInUse checks if a port is already in use
func isPortInUse(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// startEmbedded boots the embedded PostgreSQL cluster and points cfg at it.
func startEmbedded(cfg *config.DatabaseConfig) (*embeddedpostgres.EmbeddedPostgres, error) {
	dataPath := cfg.DataPath
	if dataPath == "" {
		dataPath = embeddedDataPath
	}
	port := embeddedPort
	if p, err := strconv.Atoi(cfg.Port); err == nil && p > 0 {
		port = p
	}
	if cfg.Username == "" {
		cfg.Username = "postgres"
	}
	if cfg.Database == "" || strings.Contains(cfg.Database, ".") {
		cfg.Database = "peeringdb"
	}

	logging.Info().Str("data_path", dataPath).Int("port", port).Msg("Mode: [Embedded PostgreSQL] - Initializing internal database")
	cleanupStaleEmbeddedPostgres(dataPath)

	if isPortInUse(port) {
		logging.Warn().Int("port", port).Msg("Port still in use, waiting for release")
		for i := 0; i < 6; i++ {
			time.Sleep(500 * time.Millisecond)
			if !isPortInUse(port) {
				break
			}
		}
		if isPortInUse(port) {
			return nil, fmt.Errorf("port %d is still in use by another process", port)
		}
	}

	embeddedCfg := embeddedpostgres.DefaultConfig().
		DataPath(dataPath).
		Port(uint32(port)).
		Database(cfg.Database).
		Username(cfg.Username).
		Password("postgres")

	embedded := embeddedpostgres.NewDatabase(embeddedCfg)
	if err := embedded.Start(); err != nil {
		return nil, fmt.Errorf("failed to start embedded database: %w", err)
	}

	cfg.Host = "localhost"
	cfg.Port = strconv.Itoa(port)
	cfg.Password = "postgres"
	logging.Info().Int("port", port).Msg("Embedded PostgreSQL process started")
	return embedded, nil
}

// dialector picks the gorm driver for the configured engine.
func dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Engine {
	case config.EngineSQLite, "":
		if dir := filepath.Dir(cfg.Database); dir != "." && cfg.Database != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		return sqlite.Open(cfg.Database + "?_busy_timeout=5000"), nil
	case config.EnginePostgres, config.EngineEmbeddedPostgres:
		port := cfg.Port
		if port == "" {
			port = "5432"
		}
		dsn := fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host,
			port,
			cfg.Username,
			cfg.Password,
			cfg.Database,
		)
		return postgres.Open(dsn), nil
	case config.EngineMySQL:
		port := cfg.Port
		if port == "" {
			port = "3306"
		}
		dsn := fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			cfg.Username,
			cfg.Password,
			cfg.Host,
			port,
			cfg.Database,
		)
		return mysql.Open(dsn), nil
	}
	return nil, fmt.Errorf("unsupported database engine %q", cfg.Engine)
}

// Connect opens the configured database (SQLite, PostgreSQL, MySQL or an
// embedded PostgreSQL cluster).
func Connect(cfg config.DatabaseConfig) (*DB, error) {
	var embedded *embeddedpostgres.EmbeddedPostgres

	if cfg.Engine == config.EngineEmbeddedPostgres {
		var err error
		if embedded, err = startEmbedded(&cfg); err != nil {
			return nil, err
		}
	} else if cfg.Engine != config.EngineSQLite {
		logging.Info().Str("engine", cfg.Engine).Str("host", cfg.Host).Str("port", cfg.Port).Msg("Connecting to external database")
	}

	dial, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	logLevel := logger.Silent
	if cfg.Verbose {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dial, &gorm.Config{
		Logger: logger.New(gormWriter{}, logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		// Clean up embedded process if GORM connection fails
		if embedded != nil {
			_ = embedded.Stop()
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Engine != config.EngineSQLite {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.SetMaxIdleConns(10)
			sqlDB.SetMaxOpenConns(100)
			sqlDB.SetConnMaxLifetime(time.Hour)
		}
	}

	logging.Debug().Str("engine", cfg.Engine).Msg("Database connection established")

	engine := cfg.Engine
	if engine == "" {
		engine = config.EngineSQLite
	}
	return &DB{
		DB:       db,
		Engine:   engine,
		embedded: embedded,
	}, nil
}

// Close ensures the database connection and embedded process are shut down
func (db *DB) Close() error {
	if db.embedded != nil {
		logging.Info().Msg("Stopping Embedded PostgreSQL process")
		_ = db.embedded.Stop()
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate triggers GORM schema synchronization
func (db *DB) AutoMigrate(models ...interface{}) error {
	return db.DB.AutoMigrate(models...)
}

// DropTables removes the tables of the given models.
func (db *DB) DropTables(models ...interface{}) error {
	return db.DB.Migrator().DropTable(models...)
}
