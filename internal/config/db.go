package config

import "fmt"

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DBConfig struct {
	Driver          string `yaml:"driver"`
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	Name            string `yaml:"name"`
	SSLMode         string `yaml:"sslmode"`
	TimeZone        string `yaml:"timezone"`
	SQLitePath      string `yaml:"sqlite_path"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifeTime int    `yaml:"conn_max_lifetime_min"` // минут
}

func defaultDBConfig() DBConfig {
	return DBConfig{
		Driver:          DriverPostgres,
		Host:            "postgres",
		User:            "booking",
		Password:        "booking",
		Name:            "booking_db",
		SSLMode:         "disable",
		TimeZone:        "UTC",
		Port:            5432,
		SQLitePath:      "booking.db",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifeTime: 30,
	}
}

func (c *DBConfig) applyEnv() {
	c.Driver = getEnv("DB_DRIVER", c.Driver)
	c.Host = getEnv("DB_HOST", c.Host)
	c.User = getEnv("DB_USER", c.User)
	c.Password = getEnv("DB_PASSWORD", c.Password)
	c.Name = getEnv("DB_NAME", c.Name)
	c.SSLMode = getEnv("DB_SSLMODE", c.SSLMode)
	c.TimeZone = getEnv("DB_TIMEZONE", c.TimeZone)
	c.SQLitePath = getEnv("DB_SQLITE_PATH", c.SQLitePath)
	c.Port = getEnvInt("DB_PORT", c.Port)
	c.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", c.MaxOpenConns)
	c.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", c.MaxIdleConns)
	c.ConnMaxLifeTime = getEnvInt("DB_CONN_MAX_LIFETIME_MIN", c.ConnMaxLifeTime)
}

func (c *DBConfig) validate() []string {
	var errs []string
	switch c.Driver {
	case DriverPostgres:
		// минимальная валидация
		if c.Host == "" || c.User == "" || c.Name == "" {
			errs = append(errs, "db: host/user/name must not be empty")
		}
		if c.Port < 1 || c.Port > 65535 {
			errs = append(errs, fmt.Sprintf("db: port must be between 1 and 65535, got %d", c.Port))
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			errs = append(errs, "db: sqlite_path must not be empty")
		}
	default:
		errs = append(errs, fmt.Sprintf("db: unknown driver %q", c.Driver))
	}
	return errs
}

// DSN собирает строку подключения для Postgres.
func (c *DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		c.Host,
		c.User,
		c.Password,
		c.Name,
		c.Port,
		c.SSLMode,
		c.TimeZone,
	)
}
