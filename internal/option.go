package internal

import (
	"io"

	"github.com/starford/agevault/internal/transcoder"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config     *Config
	version    string
	logOutput  io.Writer
	transcoder transcoder.Transcoder
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

// WithLogOutput redirects log output. Defaults to stdout, or stderr for the
// MCP server since stdout carries the protocol.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithTranscoder replaces the age CLI transcoder.
func WithTranscoder(tc transcoder.Transcoder) Option {
	return func(a *application) {
		a.transcoder = tc
	}
}
