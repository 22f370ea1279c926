package main

import (
	"github.com/Hu9o73/ESILV-Big-Data-Structure/internal/config"
	"github.com/spf13/pflag"
)

// registerFlags declares the flags shared by every command. Each one mirrors
// an environment variable and wins over it when set.
func registerFlags(fs *pflag.FlagSet) {
	fs.String("log-level", "", "log level: debug, info, warn or error (env LOG_LEVEL)")
	fs.String("log-format", "", "log format: json or text (env LOG_FORMAT)")
	fs.String("log-file", "", "write logs to a rotating file instead of stderr (env LOG_FILE)")
	fs.String("workload", "", "workload YAML overriding statistics, servers, cost rates and queries (env WORKLOAD_FILE)")
	fs.Int64("servers", 0, "number of servers in the sharded cluster (env CLUSTER_SERVERS)")
	fs.StringP("output", "o", "", "output format: text or json (env OUTPUT)")
	fs.String("xlsx", "", "also export sizes, sharding, workload and assumptions to an XLSX workbook (env XLSX_PATH)")
	fs.String("run-log", "", "append every estimate to an NDJSON run log (env RUN_LOG)")
	fs.String("database-url", "", "PostgreSQL URL of the run history store (env DATABASE_URL)")
	fs.String("transport", "", "MCP transport for serve: stdio or http (env TRANSPORT)")
	fs.String("http-addr", "", "listen address for the http transport (env HTTP_ADDR)")
	fs.String("http-bearer-token", "", "bearer token required by the http transport (env HTTP_BEARER_TOKEN)")
	fs.Bool("otel", false, "export traces and metrics over OTLP (env OTEL_ENABLED)")
	fs.Int32("pool-max-conns", 0, "maximum run store connections (env POOL_MAX_CONNS)")
	fs.Int32("pool-min-conns", 0, "minimum idle run store connections (env POOL_MIN_CONNS)")
	fs.Duration("pool-max-conn-lifetime", 0, "maximum run store connection lifetime (env POOL_MAX_CONN_LIFETIME)")
}

// overridesFromFlags converts the flags the user actually set into config
// overrides; untouched flags stay nil so environment values apply.
func overridesFromFlags(fs *pflag.FlagSet) config.Overrides {
	o := config.Overrides{
		LogLevel:            changed(fs, "log-level", fs.GetString),
		LogFormat:           changed(fs, "log-format", fs.GetString),
		LogFile:             changed(fs, "log-file", fs.GetString),
		WorkloadFile:        changed(fs, "workload", fs.GetString),
		ClusterServers:      changed(fs, "servers", fs.GetInt64),
		Output:              changed(fs, "output", fs.GetString),
		XLSXPath:            changed(fs, "xlsx", fs.GetString),
		RunLog:              changed(fs, "run-log", fs.GetString),
		DatabaseURL:         changed(fs, "database-url", fs.GetString),
		Transport:           changed(fs, "transport", fs.GetString),
		HTTPAddr:            changed(fs, "http-addr", fs.GetString),
		HTTPBearerToken:     changed(fs, "http-bearer-token", fs.GetString),
		PoolMaxConns:        changed(fs, "pool-max-conns", fs.GetInt32),
		PoolMinConns:        changed(fs, "pool-min-conns", fs.GetInt32),
		PoolMaxConnLifetime: changed(fs, "pool-max-conn-lifetime", fs.GetDuration),
	}
	o.OTelEnabled, _ = fs.GetBool("otel")
	return o
}

func changed[T any](fs *pflag.FlagSet, name string, get func(string) (T, error)) *T {
	if !fs.Changed(name) {
		return nil
	}
	v, err := get(name)
	if err != nil {
		return nil
	}
	return &v
}
