package config

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type HTTPServer struct {
	Addr string `yaml:"address" env:"HTTP_ADDR" env-default:":8080"`
}

type EventLog struct {
	Path string `yaml:"path" env:"EVENTLOG_PATH" env-default:"venue-events.db"`
}

type Kafka struct {
	Enabled bool     `yaml:"enabled" env:"KAFKA_ENABLED" env-default:"false"`
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"venue.events"`
}

type Database struct {
	Enabled         bool   `yaml:"enabled" env:"DB_ENABLED" env-default:"false"`
	Host            string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port            int    `yaml:"port" env:"DB_PORT" env-default:"3306"`
	User            string `yaml:"user" env:"DB_USER"`
	Password        string `yaml:"password" env:"DB_PASSWORD"`
	Name            string `yaml:"name" env:"DB_NAME"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime" env-default:"3600"`
	MaxIdleConns    int    `yaml:"max_idle_conns" env-default:"5"`
	MaxOpenConns    int    `yaml:"max_open_conns" env-default:"20"`
}

type Snapshot struct {
	Dir string `yaml:"dir" env:"SNAPSHOT_DIR" env-default:"snapshots"`
}

type Config struct {
	Env         string   `yaml:"env" env:"ENV" env-default:"production"`
	Instruments []string `yaml:"instruments" env:"INSTRUMENTS" env-separator:"," env-required:"true"`
	EventLog    EventLog `yaml:"event_log"`
	Kafka       Kafka    `yaml:"kafka"`
	Database    Database `yaml:"database"`
	Snapshot    Snapshot `yaml:"snapshot"`
	HTTPServer  `yaml:"http_server"`
}

func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?parseTime=true",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// MustLoad reads the config from CONFIG_PATH or the -config flag and exits
// on any failure. Environment variables override file values.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "path to config file")
		flag.Parse()
		configPath = *flags

		if configPath == "" {
			log.Fatal("Config path is not set")
		}
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("Config file does not exist: %s", configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("Unable to load config: %s", err.Error())
	}

	return &cfg
}

// Load reads the config from an explicit path, returning errors instead of
// exiting. Used by tests.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
