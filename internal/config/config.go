package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type EngineConfig struct {
	Env            string `yaml:"env"`
	MigrationsPath string `yaml:"migrations_path"`
	HTTPServer     `yaml:"http_server"`
	OrderDB        `yaml:"order_db"`
	CustodyService `yaml:"custody-service"`
	Redis          `yaml:"redis"`
	KafkaService   `yaml:"kafka-service"`
	Reconciler     `yaml:"reconciler"`
	Sweeper        `yaml:"sweeper"`
	Disputes       `yaml:"disputes"`
}

type HTTPServer struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

type OrderDB struct {
	Dsn string `yaml:"dsn"`
}

type CustodyService struct {
	BaseURL string `yaml:"base_url"`
}

type Redis struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Ttl      time.Duration `yaml:"ttl"`
}

type KafkaService struct {
	Host         string `yaml:"host"`
	Port         string `yaml:"port"`
	OrderTopic   string `yaml:"order_topic" env-default:"order-events"`
	DisputeTopic string `yaml:"dispute_topic" env-default:"dispute-events"`
	GroupID      string `yaml:"group_id" env-default:"order-engine"`
}

type Reconciler struct {
	PollInterval time.Duration `yaml:"poll_interval" env-default:"15s"`
}

type Sweeper struct {
	Schedule      string        `yaml:"schedule" env-default:"@every 30s"`
	Cooldown      time.Duration `yaml:"cooldown" env-default:"10s"`
	OpenTTL       time.Duration `yaml:"open_ttl" env-default:"15m"`
	InProgressTTL time.Duration `yaml:"in_progress_ttl" env-default:"120m"`
}

type Disputes struct {
	ProposalTTL time.Duration `yaml:"proposal_ttl" env-default:"24h"`
	SweepPeriod time.Duration `yaml:"sweep_period" env-default:"1m"`
}

func MustLoad() *EngineConfig {

	// Processing env config variable and file
	configPath := os.Getenv("ORDER_ENGINE_CONFIG_PATH")

	if configPath == "" {
		log.Fatalf("ORDER_ENGINE_CONFIG_PATH was not found\n")
	}

	if _, err := os.Stat(configPath); err != nil {
		log.Fatalf("failed to find config file: %v\n", err)
	}

	// YAML to struct object
	var cfg EngineConfig
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("failed to read config file: %v", err)
	}

	return &cfg
}
