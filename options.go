package mure

import "log/slog"

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	nodeID         string
	region         string
	port           int
	bootstrapPeers []string
	databaseURL    string
	logger         *slog.Logger
	version        string
	localMemory    LocalMemory
	telemetrySink  TelemetrySink
	eventHooks     []EventHook
	statusProvider StatusProvider
	commandHandler CommandHandler
}

// WithNodeID overrides the node identity from config (MURE_NODE_ID env var).
func WithNodeID(id string) Option {
	return func(o *resolvedOptions) { o.nodeID = id }
}

// WithRegion overrides the node region from config (MURE_REGION env var).
func WithRegion(region string) Option {
	return func(o *resolvedOptions) { o.region = region }
}

// WithPort overrides the TCP port from config (MURE_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithBootstrapPeers overrides the bootstrap address list from config
// (MURE_BOOTSTRAP_PEERS env var).
func WithBootstrapPeers(addrs ...string) Option {
	return func(o *resolvedOptions) { o.bootstrapPeers = addrs }
}

// WithDatabaseURL overrides the Postgres connection string from config
// (DATABASE_URL env var). Only used when MURE_STORE_DRIVER=postgres.
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithLocalMemory replaces the store selected by MURE_STORE_DRIVER with a
// caller-provided backend.
func WithLocalMemory(m LocalMemory) Option {
	return func(o *resolvedOptions) { o.localMemory = m }
}

// WithTelemetrySink replaces the OTEL-backed telemetry sink.
func WithTelemetrySink(s TelemetrySink) Option {
	return func(o *resolvedOptions) { o.telemetrySink = s }
}

// WithEventHook registers a hook for swarm lifecycle events.
// Multiple hooks may be registered; all registered hooks receive every event.
func WithEventHook(hook EventHook) Option {
	return func(o *resolvedOptions) { o.eventHooks = append(o.eventHooks, hook) }
}

// WithStatusProvider sets the callback that supplies agent statuses for
// outbound coordination requests.
func WithStatusProvider(fn StatusProvider) Option {
	return func(o *resolvedOptions) { o.statusProvider = fn }
}

// WithCommandHandler sets the callback that receives commands arriving from
// the swarm.
func WithCommandHandler(fn CommandHandler) Option {
	return func(o *resolvedOptions) { o.commandHandler = fn }
}
