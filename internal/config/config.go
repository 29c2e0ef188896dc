// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/magabrotheeeer/cv-optimizer/internal/models"
)

// Config общая структура для хранения настроек сервиса
type Config struct {
	Env                     string            `yaml:"env"`
	StorageConnectionString string            `yaml:"storage_connection_string"`
	BaseURL                 string            `yaml:"base_url"` // Внешний адрес фронтенда для redirect-страниц Stripe
	RabbitMQURL             string            `yaml:"rabbitmq_url"`
	RabbitMQMaxRetries      int               `yaml:"rabbitmq_max_retries"`
	RabbitMQRetryDelay      time.Duration     `yaml:"rabbitmq_retry_delay"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	Stripe                  `yaml:"stripe"`
	Optimizer               `yaml:"optimizer"`
	Sessions                `yaml:"sessions"`
	Plans                   []models.PlanSpec `yaml:"plans"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// Stripe структура с ключами платёжного провайдера.
// WebhookSecret — единственный механизм аутентификации webhook-запросов.
type Stripe struct {
	SecretKey     string `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
}

// Optimizer структура для настройки клиента LLM-оптимизатора
type Optimizer struct {
	APIURL         string        `yaml:"api_url"`
	APIKey         string        `yaml:"api_key" env:"OPTIMIZER_API_KEY"`
	Model          string        `yaml:"model"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Sessions структура с политикой хранения сессий
type Sessions struct {
	RetentionPeriod time.Duration `yaml:"retention_period"` // Сколько хранится запись сессии
	CleanupInterval time.Duration `yaml:"cleanup_interval"` // Период запуска чистки
}

// MustLoad функция для загрузки конфига, путь берётся из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}

// PlanByName возвращает спецификацию тарифа по его названию.
// Второй результат false, если такой тариф не сконфигурирован.
func (c *Config) PlanByName(name string) (models.PlanSpec, bool) {
	for _, plan := range c.Plans {
		if plan.Name == name {
			return plan, true
		}
	}
	return models.PlanSpec{}, false
}
