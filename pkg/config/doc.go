/*
Package config loads the process-wide Aegis configuration.

Precedence, lowest to highest: built-in defaults, the YAML file named by
AEGIS_CONFIG (if set), then individual AEGIS_* environment variables. The
resulting Config is constructed once during boot and never mutated.

Documented environment keys:

	AEGIS_DATA_DIR            bbolt store location (default ./aegis-data)
	AEGIS_LOG_LEVEL           debug|info|warn|error
	AEGIS_LOG_DIR             mirror log lines to <dir>/aegisd.log
	AEGIS_LOG_JSON            JSON log output
	AEGIS_GATEWAY_ADDR        gateway listen address
	AEGIS_GATEWAY_SECRET      bearer secret required on non-health routes
	AEGIS_METRICS_ADDR        Prometheus listen address
	AEGIS_MODEL               model identifier passed to role handlers
	AEGIS_WORKERS             scheduler worker count (default 1)
	AEGIS_HEARTBEAT_INTERVAL  heartbeat tick (default 10s)
	AEGIS_HEALTH_INTERVAL     supervisor sweep interval (default 30s)
	AEGIS_BREAKER_THRESHOLD   consecutive failures before a breaker opens
	AEGIS_BREAKER_COOLDOWN    open-state cooldown (default 5m)
	AEGIS_MEMORY_SOFT_LIMIT   RSS soft ceiling in bytes
	AEGIS_ENDPOINTS           comma-separated URLs for the dependency audit
	AEGIS_MESSAGING_TOKEN     messaging collaborator credential
	AEGIS_PAYMENTS_KEY        payments collaborator credential
	AEGIS_BANKING_KEY         banking collaborator credential
	AEGIS_TRADING_KEY         trading collaborator credential
*/
package config
