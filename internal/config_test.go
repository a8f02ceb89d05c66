package internal

import (
	"chat-presence/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir()) // no .env file around

	config, err := Load()

	req.NoError(err)
	req.Equal(5000, config.Port)
	req.Equal(BackendBadger, config.StoreBackend)
	req.Equal(15*time.Second, config.SweepPeriod)
	req.Equal(10*time.Second, config.ExpiryWindow)
	req.Empty(config.CensoredWordList())
	req.Equal("0.0.0.0:5000", config.Address())
}

func TestLoad_From_Environment(t *testing.T) {
	req := require.New(t)
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "8081")
	t.Setenv("STORE_BACKEND", "mongo")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("EXPIRY_WINDOW", "30s")
	t.Setenv("CENSORED_WORDS", " badger, ,snake ")

	config, err := Load()

	req.NoError(err)
	req.Equal(8081, config.Port)
	req.Equal(BackendMongo, config.StoreBackend)
	req.Equal(30*time.Second, config.ExpiryWindow)
	req.Equal([]string{"badger", "snake"}, config.CensoredWordList())
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		Port: 5000, StoreBackend: BackendBadger, BadgerFilepath: "/tmp/badger",
		SweepPeriod: time.Second, ExpiryWindow: time.Second,
		RateLimitRequests: 1, RateLimitWindow: time.Second, CharReplacement: "*",
	}
	require.NoError(t, valid.Validate())

	cases := map[string]func(c *Config){
		"unknown backend":       func(c *Config) { c.StoreBackend = "redis" },
		"mongo without uri":     func(c *Config) { c.StoreBackend = BackendMongo },
		"badger without path":   func(c *Config) { c.BadgerFilepath = "" },
		"port out of range":     func(c *Config) { c.Port = 70000 },
		"zero sweep period":     func(c *Config) { c.SweepPeriod = 0 },
		"negative expiry":       func(c *Config) { c.ExpiryWindow = -time.Second },
		"no rate limit":         func(c *Config) { c.RateLimitRequests = 0 },
		"multi-char censorship": func(c *Config) { c.CharReplacement = "**" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			config := valid
			mutate(&config)
			require.ErrorIs(t, config.Validate(), errors.ErrInvalidConfig)
		})
	}
}

func TestCharacterRune(t *testing.T) {
	req := require.New(t)
	r, err := CharacterRune("€")
	req.NoError(err)
	req.Equal('€', r)

	_, err = CharacterRune("")
	req.Error(err)
}
