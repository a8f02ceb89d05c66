package internal

import (
	"chat-presence/errors"
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

const (
	BackendBadger = "badger"
	BackendMongo  = "mongo"
)

type Config struct {
	Host            string        `env:"HOST,default=0.0.0.0"`
	Port            int           `env:"PORT,default=5000"`
	StoreBackend    string        `env:"STORE_BACKEND,default=badger"`
	BadgerFilepath  string        `env:"BADGER_FILEPATH,default=./data/badger"`
	BadgerInMemory  bool          `env:"BADGER_IN_MEMORY,default=false"`
	MongoURI        string        `env:"MONGO_URI"`
	MongoDatabase   string        `env:"MONGO_DATABASE,default=chat"`
	SweepPeriod     time.Duration `env:"SWEEP_PERIOD,default=15s"`
	ExpiryWindow    time.Duration `env:"EXPIRY_WINDOW,default=10s"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=1s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`

	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS,default=20"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW,default=1s"`

	// CensoredWords is a comma separated list, empty disables moderation.
	CensoredWords   string `env:"CENSORED_WORDS"`
	CharReplacement string `env:"CHARACTER_REPLACEMENT,default=*"`
}

// Load reads an optional .env file, then the environment, and validates the result.
func Load() (Config, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	var problems []string
	switch c.StoreBackend {
	case BackendBadger:
		if c.BadgerFilepath == "" && !c.BadgerInMemory {
			problems = append(problems, "BADGER_FILEPATH is required unless BADGER_IN_MEMORY is set")
		}
	case BackendMongo:
		if c.MongoURI == "" {
			problems = append(problems, "MONGO_URI is required with the mongo backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("STORE_BACKEND must be %q or %q, got %q", BackendBadger, BackendMongo, c.StoreBackend))
	}
	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT out of range: %d", c.Port))
	}
	if c.SweepPeriod <= 0 {
		problems = append(problems, "SWEEP_PERIOD must be positive")
	}
	if c.ExpiryWindow <= 0 {
		problems = append(problems, "EXPIRY_WINDOW must be positive")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		problems = append(problems, "RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	if _, err := CharacterRune(c.CharReplacement); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", errors.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CensoredWordList splits CENSORED_WORDS, dropping blanks.
func (c Config) CensoredWordList() []string {
	return lo.FilterMap(strings.Split(c.CensoredWords, ","), func(word string, _ int) (string, bool) {
		word = strings.TrimSpace(word)
		return word, word != ""
	})
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
