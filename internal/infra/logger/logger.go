package logger

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

const defaultService = "linkguard"

// Logger names for the parts of the service. Each one shows up in the "logger" key,
// so abuse decisions, blocks and click accounting can be filtered apart.
const (
	ComponentHTTP       = "http"
	ComponentLinks      = "links"
	ComponentClassifier = "classifier"
	ComponentEscalation = "escalation"
	ComponentClicks     = "clicks"
	ComponentConsumer   = "click-consumer"
	ComponentSweeper    = "sweeper"
	ComponentNATS       = "nats"
	ComponentAdmin      = "linkctl"
)

// Config drives how the zap logger is built.
type Config struct {
	Development bool
	Level       string
	// Encoding is "json" or "console"; empty keeps the preset's default.
	Encoding string
	// Service is attached to every json entry. Defaults to "linkguard".
	Service string
}

// ConfigFromEnv reads APP_ENV, LOG_LEVEL, LOG_ENCODING and SERVICE_NAME. Anything but
// APP_ENV=production selects the development preset.
func ConfigFromEnv(getenv func(string) string) Config {
	return Config{
		Development: getenv("APP_ENV") != "production",
		Level:       getenv("LOG_LEVEL"),
		Encoding:    getenv("LOG_ENCODING"),
		Service:     getenv("SERVICE_NAME"),
	}
}

var (
	mu     sync.RWMutex
	global *zap.Logger
)

// Init builds a logger from cfg and makes it the global one.
func Init(cfg Config) (*zap.Logger, error) {
	l, err := New(cfg)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	prev := global
	global = l
	mu.Unlock()

	if prev != nil {
		_ = prev.Sync()
	}
	return l, nil
}

// MustInit panics if the logger cannot be built.
func MustInit(cfg Config) *zap.Logger {
	l, err := Init(cfg)
	if err != nil {
		panic(err)
	}
	return l
}

// For returns the global logger named after a component. Before Init it returns a no-op logger.
func For(component string) *zap.Logger {
	mu.RLock()
	l := global
	mu.RUnlock()

	if l == nil {
		return zap.NewNop()
	}
	return l.Named(component)
}

// Sync flushes the global logger. Errors from syncing a terminal are ignored.
func Sync() error {
	mu.RLock()
	l := global
	mu.RUnlock()

	if l == nil {
		return nil
	}
	err := l.Sync()
	if errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EINVAL) || errors.Is(err, os.ErrInvalid) {
		return nil
	}
	return err
}

// New returns a zap.Logger configured according to cfg.
func New(cfg Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if cfg.Encoding != "" {
		zapCfg.Encoding = cfg.Encoding
	}
	zapCfg.EncoderConfig = encoderConfig(zapCfg.Encoding, colorize())

	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, fmt.Errorf("logger: invalid level %q: %w", cfg.Level, err)
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}

	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if zapCfg.Encoding == "json" {
		service := cfg.Service
		if service == "" {
			service = defaultService
		}
		opts = append(opts, zap.Fields(zap.String("service", service)))
	}
	return zapCfg.Build(opts...)
}

func encoderConfig(encoding string, color bool) zapcore.EncoderConfig {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.StacktraceKey = "stack"
	enc.EncodeDuration = zapcore.StringDurationEncoder

	if encoding != "console" {
		enc.EncodeTime = zapcore.ISO8601TimeEncoder
		return enc
	}

	enc.ConsoleSeparator = " | "
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	if color {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return enc
}

func colorize() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}
