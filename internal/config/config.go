package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"gridbot/internal/models"
)

type Config struct {
	Account AccountConfig
	Gateway GatewayConfig
	Engine  EngineConfig
	Log     LogConfig
	Symbols map[string]SymbolConfig
}

type AccountConfig struct {
	Login    int64
	Password string
	Server   string
}

type GatewayConfig struct {
	BaseURL string
	WSURL   string
	Timeout time.Duration
}

type EngineConfig struct {
	GlobalStopLoss     float64
	LoopDelay          time.Duration
	TrailingDelay      time.Duration
	CleanerInterval    time.Duration
	ClosedLevelBlock   time.Duration
	GridTolerance      float64
	MaxOrdersPerSymbol int
	Magic              int64
}

type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

type SymbolConfig struct {
	LotSize           float64
	BrickSize         float64
	MaxUp             int
	MaxDown           int
	InitialLevelsBuy  int
	InitialLevelsSell int
	TradeSide         models.TradeSide
	Rounding          models.RoundMode
	StopLoss          float64
	TakeProfit        float64
	TrailingStop      float64
	Active            bool
	FarClose          bool
}

func Load() (*Config, error) {
	viper.AddConfigPath("configs")
	viper.SetConfigName("config")
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("Не удалось прочитать конфигурацию: %w", err)
	}
	return fromViper(viper.GetViper())
}

// FileUsed возвращает путь к файлу, из которого была прочитана конфигурация.
func FileUsed() string {
	return viper.ConfigFileUsed()
}

// LoadFile читает конфигурацию из конкретного файла. Нужен для наблюдателя.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("Не удалось прочитать конфигурацию: %w", err)
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.Account = AccountConfig{
		Login:    v.GetInt64("account.login"),
		Password: envSub(v, "account.password"),
		Server:   v.GetString("account.server"),
	}

	cfg.Gateway = GatewayConfig{
		BaseURL: v.GetString("gateway.base_url"),
		WSURL:   v.GetString("gateway.ws_url"),
		Timeout: secondsOr(v, "gateway.timeout_seconds", 15),
	}

	cfg.Engine = EngineConfig{
		GlobalStopLoss:     v.GetFloat64("engine.global_stop_loss"),
		LoopDelay:          secondsOr(v, "engine.loop_delay_seconds", 1),
		TrailingDelay:      secondsOr(v, "engine.trailing_delay_seconds", 0.5),
		CleanerInterval:    secondsOr(v, "engine.cleaner_interval_seconds", 10),
		ClosedLevelBlock:   secondsOr(v, "engine.closed_level_block_seconds", 300),
		GridTolerance:      v.GetFloat64("engine.grid_tolerance"),
		MaxOrdersPerSymbol: intOr(v, "engine.max_orders_per_symbol", 60),
		Magic:              int64(intOr(v, "engine.magic", 123456)),
	}

	cfg.Log = LogConfig{
		Level:      v.GetString("log.level"),
		Format:     v.GetString("log.format"),
		File:       v.GetString("log.file"),
		MaxSize:    v.GetInt("log.max_size"),
		MaxBackups: v.GetInt("log.max_backups"),
		MaxAge:     v.GetInt("log.max_age"),
		Compress:   v.GetBool("log.compress"),
	}

	cfg.Symbols = map[string]SymbolConfig{}
	for name := range v.GetStringMap("symbols") {
		key := "symbols." + name
		// viper приводит ключи к нижнему регистру, а шлюз ждёт имена
		// инструментов в верхнем.
		cfg.Symbols[strings.ToUpper(name)] = SymbolConfig{
			LotSize:           v.GetFloat64(key + ".lot_size"),
			BrickSize:         v.GetFloat64(key + ".brick_size"),
			MaxUp:             v.GetInt(key + ".max_up"),
			MaxDown:           v.GetInt(key + ".max_down"),
			InitialLevelsBuy:  v.GetInt(key + ".initial_levels_buy"),
			InitialLevelsSell: v.GetInt(key + ".initial_levels_sell"),
			TradeSide:         tradeSideOr(v.GetString(key + ".trade_side")),
			Rounding:          roundingOr(v.GetString(key + ".rounding")),
			StopLoss:          v.GetFloat64(key + ".stop_loss"),
			TakeProfit:        v.GetFloat64(key + ".take_profit"),
			TrailingStop:      v.GetFloat64(key + ".trailing_stop"),
			Active:            v.GetBool(key + ".active"),
			FarClose:          v.GetBool(key + ".far_close"),
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Account.Login == 0 || c.Account.Password == "" || c.Account.Server == "" {
		return fmt.Errorf("В конфигурации не заполнены реквизиты счёта (account.login, account.password, account.server).")
	}
	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("Не задан адрес торгового шлюза (gateway.base_url).")
	}
	for name, sym := range c.Symbols {
		if !sym.Active {
			continue
		}
		if sym.BrickSize <= 0 {
			return fmt.Errorf("Некорректный шаг сетки для %s: brick_size должен быть больше нуля.", name)
		}
		if sym.LotSize <= 0 {
			return fmt.Errorf("Некорректный лот для %s: lot_size должен быть больше нуля.", name)
		}
		if sym.MaxUp < 0 || sym.MaxDown < 0 || sym.InitialLevelsBuy < 0 || sym.InitialLevelsSell < 0 {
			return fmt.Errorf("Отрицательное число уровней для %s.", name)
		}
		switch sym.TradeSide {
		case models.TradeSideBuy, models.TradeSideSell, models.TradeSideBoth:
		default:
			return fmt.Errorf("Некорректное направление торговли для %s: %s", name, sym.TradeSide)
		}
		switch sym.Rounding {
		case models.RoundNearest, models.RoundUp, models.RoundDown:
		default:
			return fmt.Errorf("Некорректный режим округления для %s: %s", name, sym.Rounding)
		}
	}
	return nil
}

// ActiveSymbols возвращает имена активных инструментов.
func (c *Config) ActiveSymbols() []string {
	names := make([]string, 0, len(c.Symbols))
	for name, sym := range c.Symbols {
		if sym.Active {
			names = append(names, name)
		}
	}
	return names
}

func secondsOr(v *viper.Viper, key string, def float64) time.Duration {
	val := v.GetFloat64(key)
	if val <= 0 {
		val = def
	}
	return time.Duration(val * float64(time.Second))
}

func intOr(v *viper.Viper, key string, def int) int {
	if val := v.GetInt(key); val > 0 {
		return val
	}
	return def
}

func tradeSideOr(raw string) models.TradeSide {
	side := models.TradeSide(strings.ToLower(strings.TrimSpace(raw)))
	if side == "" {
		return models.TradeSideBoth
	}
	return side
}

func roundingOr(raw string) models.RoundMode {
	mode := models.RoundMode(strings.ToLower(strings.TrimSpace(raw)))
	if mode == "" {
		return models.RoundNearest
	}
	return mode
}

func envSub(v *viper.Viper, key string) string {
	val := v.GetString(key)
	if val == "" {
		return ""
	}

	re := regexp.MustCompile(`\$\{(\w+)\}`)
	return re.ReplaceAllStringFunc(val, func(match string) string {
		envKey := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(envKey)
	})
}
