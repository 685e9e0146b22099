package config

// TracingConfig controls OTLP trace export.
//
// Traces are sent to a local OpenTelemetry collector (or any agent exposing
// an OTLP HTTP receiver) rather than directly to a vendor backend. The
// collector buffers, retries and handles authentication, so the application
// only ever talks to localhost.
type TracingConfig struct {
	// Enabled switches trace export on. Off by default.
	Enabled bool `mapstructure:"enabled"`

	// Endpoint is the OTLP HTTP receiver, host:port (default localhost:4318).
	Endpoint string `mapstructure:"endpoint"`

	// Environment is the deployment environment tag (dev, staging, prod).
	Environment string `mapstructure:"environment"`

	// ServiceName is the service name attached to exported spans.
	ServiceName string `mapstructure:"service_name"`
}
