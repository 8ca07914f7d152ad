package config

import (
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/invoice-analysis/backend/internal/ai"
)

type Config struct {
	Env      string `mapstructure:"ENV" validate:"required"`
	LogLevel string `mapstructure:"LOG_LEVEL" validate:"oneof=trace debug info warn error fatal panic disabled"`

	RiskDelayWeight     float64 `mapstructure:"RISK_DELAY_WEIGHT" validate:"gte=0"`
	RiskAmountWeight    float64 `mapstructure:"RISK_AMOUNT_WEIGHT" validate:"gte=0"`
	RiskAmountScale     float64 `mapstructure:"RISK_AMOUNT_SCALE" validate:"gt=0"`
	TermLargeAmount     float64 `mapstructure:"TERM_LARGE_AMOUNT" validate:"gte=0"`
	TermLongDelayDays   int     `mapstructure:"TERM_LONG_DELAY_DAYS" validate:"gte=0"`
	TermMediumDelayDays int     `mapstructure:"TERM_MEDIUM_DELAY_DAYS" validate:"gte=0,ltefield=TermLongDelayDays"`
}

func Load() (Config, error) {
	return load(".env")
}

func load(envFile string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	def := ai.DefaultPolicy()
	v.SetDefault("ENV", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("RISK_DELAY_WEIGHT", def.DelayWeight)
	v.SetDefault("RISK_AMOUNT_WEIGHT", def.AmountWeight)
	v.SetDefault("RISK_AMOUNT_SCALE", def.AmountScale)
	v.SetDefault("TERM_LARGE_AMOUNT", def.LargeAmount.InexactFloat64())
	v.SetDefault("TERM_LONG_DELAY_DAYS", def.LongDelayDays)
	v.SetDefault("TERM_MEDIUM_DELAY_DAYS", def.MediumDelayDays)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Policy() ai.Policy {
	p := ai.DefaultPolicy()
	p.DelayWeight = c.RiskDelayWeight
	p.AmountWeight = c.RiskAmountWeight
	p.AmountScale = c.RiskAmountScale
	p.LargeAmount = decimal.NewFromFloat(c.TermLargeAmount)
	p.LongDelayDays = c.TermLongDelayDays
	p.MediumDelayDays = c.TermMediumDelayDays
	return p
}
