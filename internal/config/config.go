package config

import (
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config agrupa los ajustes de entorno. Los flags de la CLI siempre
// tienen prioridad; esto solo fija los valores por defecto.
type Config struct {
	Workers   int    `env:"DUPESCAN_WORKERS" env-default:"0"` // 0 = NumCPU
	CacheFile string `env:"DUPESCAN_CACHE_FILE" env-default:".dupescan_cache.json"`
	LogLevel  string `env:"DUPESCAN_LOG" env-default:"warn"` // debug|info|warn
}

// Load lee la configuración del entorno. No hay archivo obligatorio:
// sin variables definidas se aplican los valores por defecto.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetupLogger construye el logger de diagnóstico sobre stderr.
// El informe para humanos va por stdout; esto son avisos y debug.
func SetupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	default:
		lvl = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
