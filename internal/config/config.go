package config

import "github.com/caarlos0/env/v9"

type Config struct {
	Port                   string `env:"PORT" envDefault:"8080"`
	DBUser                 string `env:"DB_USER,required"`
	DBPassword             string `env:"DB_PASSWORD,required"`
	DBHost                 string `env:"DB_HOST,required"` // e.g. tcp(host:3306) or unix(/cloudsql/instance)
	DBName                 string `env:"DB_NAME,required"`
	DBPort                 string `env:"DB_PORT" envDefault:"3306"`
	InstanceConnectionName string `env:"INSTANCE_CONNECTION_NAME"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// FirebaseProjectID empty means dev auth via the X-User-ID header.
	FirebaseProjectID string `env:"FIREBASE_PROJECT_ID"`

	NatsURL   string `env:"NATS_URL"`
	NatsToken string `env:"NATS_TOKEN"`

	ZarinPal ZarinPalConfig `envPrefix:"ZARINPAL_"`
	Zibal    ZibalConfig    `envPrefix:"ZIBAL_"`
}

type ZarinPalConfig struct {
	MerchantID  string `env:"MERCHANT_ID"`
	BaseURL     string `env:"BASE_URL" envDefault:"https://api.zarinpal.com"`
	StartPayURL string `env:"START_PAY_URL" envDefault:"https://www.zarinpal.com/pg/StartPay/"`
	CallbackURL string `env:"CALLBACK_URL"`
}

type ZibalConfig struct {
	Merchant    string `env:"MERCHANT" envDefault:"zibal"`
	BaseURL     string `env:"BASE_URL" envDefault:"https://gateway.zibal.ir"`
	StartPayURL string `env:"START_PAY_URL" envDefault:"https://gateway.zibal.ir/start/"`
	CallbackURL string `env:"CALLBACK_URL"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
