package main

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		bind:              "0.0.0.0",
		port:              5555,
		httpPort:          8080,
		discussionTimeout: 30 * time.Second,
		voteTimeout:       20 * time.Second,
		roundGrace:        2 * time.Second,
	}
}

func TestConfigValidate(t *testing.T) {
	if err := validConfig().validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := map[string]func(*Config){
		"port too high":           func(c *Config) { c.port = 70000 },
		"negative port":           func(c *Config) { c.port = -1 },
		"negative http port":      func(c *Config) { c.httpPort = -1 },
		"tls cert without key":    func(c *Config) { c.tlsCert = "cert.pem" },
		"tls key without cert":    func(c *Config) { c.tlsKey = "key.pem" },
		"zero discussion timeout": func(c *Config) { c.discussionTimeout = 0 },
		"zero vote timeout":       func(c *Config) { c.voteTimeout = 0 },
		"negative round grace":    func(c *Config) { c.roundGrace = -time.Second },
	}

	for name, mutate := range cases {
		cfg := validConfig()
		mutate(cfg)
		if err := cfg.validate(); err == nil {
			t.Errorf("%s: expected a validation error", name)
		}
	}
}

func TestConfigScheme(t *testing.T) {
	cfg := validConfig()
	if cfg.scheme() != "http" {
		t.Errorf("scheme without tls = %q", cfg.scheme())
	}

	cfg.tlsCert = "cert.pem"
	cfg.tlsKey = "key.pem"
	if cfg.scheme() != "https" {
		t.Errorf("scheme with tls = %q", cfg.scheme())
	}
}
