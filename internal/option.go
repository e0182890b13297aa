package internal

import "github.com/starford/raido/internal/completion"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config           *Config
	completionClient completion.Client
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithCompletionClient overrides the completion service client, mainly for
// tests and local development against a stub.
func WithCompletionClient(c completion.Client) Option {
	return func(a *application) {
		a.completionClient = c
	}
}
