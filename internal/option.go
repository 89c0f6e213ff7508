package internal

import (
	"io"

	pkgconfig "github.com/starford/tessera/pkg/config"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	holder    *pkgconfig.Holder[Config]
	logOutput io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithConfigHolder sets a reloadable configuration. Run reloads it on
// SIGHUP; only the log level takes effect without a restart.
func WithConfigHolder(h *pkgconfig.Holder[Config]) Option {
	return func(a *application) {
		a.holder = h
		a.config = h.Get()
	}
}

// WithLogOutput redirects the JSON log. The MCP server needs stdout for
// the protocol, so it logs to stderr.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}
