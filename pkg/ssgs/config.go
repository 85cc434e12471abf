package ssgs

import (
	"fmt"
	"net/netip"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config contains the configuration for ssgsd. The env struct tag contains
// the environment variable name and the default value if missing (after
// "="). A trailing "?" before the "=" allows the variable to be explicitly
// set to an empty value instead of falling back to the default.
type Config struct {
	// The UDP address to listen on for SSGSCP datagrams.
	ListenAddr netip.AddrPort `env:"SSGS_LISTEN_ADDR=:9960"`

	// Path to the authorized gateway table (pkg/gateway.LoadTable format).
	GatewayTable string `env:"SSGS_GATEWAY_TABLE=gateways.json"`

	// Path to the sqlite3 audit database. Audit recording is disabled if empty.
	AuditDB string `env:"SSGS_AUDIT_DB"`

	// Path to an IP2Location .ip2x database. Geo enrichment is disabled if empty.
	GeoDB string `env:"SSGS_GEO_DB"`

	// HTTP address for the debug monitor and Prometheus metrics. Disabled if empty.
	DebugAddr string `env:"SSGS_DEBUG_ADDR"`

	// The minimum log level (trace, debug, info, warn, error, fatal).
	LogLevel zerolog.Level `env:"SSGS_LOG_LEVEL=info"`

	// Whether to log to stdout.
	LogStdout bool `env:"SSGS_LOG_STDOUT=true"`

	// Whether to use pretty (non-JSON) logs on stdout.
	LogStdoutPretty bool `env:"SSGS_LOG_STDOUT_PRETTY=true"`

	// The log file to output to, if provided. Reopened on SIGHUP.
	LogFile string `env:"SSGS_LOG_FILE"`

	// Client inactivity before eviction, as a Go duration (e.g. "90s"). 0
	// disables eviction.
	IdleTimeout time.Duration `env:"SSGS_IDLE_TIMEOUT=0"`
}

// UnmarshalEnv unmarshals an array of "KEY=VALUE" environment variables into
// c, setting default values as appropriate. If incremental is true, default
// values are not set for variables missing from es, only for ones present
// but empty.
func (c *Config) UnmarshalEnv(es []string, incremental bool) error {
	em := map[string]string{}
	for _, e := range es {
		if strings.HasPrefix(e, "SSGS_") {
			if k, v, ok := strings.Cut(e, "="); ok {
				em[k] = v
			}
		}
	}

	cv := reflect.ValueOf(c).Elem()
	for _, ctf := range reflect.VisibleFields(cv.Type()) {
		tag, ok := ctf.Tag.Lookup("env")
		if !ok {
			continue
		}

		var unsettable bool
		key, val, _ := strings.Cut(tag, "=")
		if strings.HasSuffix(key, "?") {
			key = strings.TrimSuffix(key, "?")
			unsettable = true
		}

		if v, exists := em[key]; exists {
			if unsettable || v != "" {
				val = v
			}
			delete(em, key)
		} else if incremental {
			continue
		}

		switch cvf := cv.FieldByName(ctf.Name); cvf.Interface().(type) {
		case string:
			cvf.SetString(val)
		case time.Duration:
			if v, err := time.ParseDuration(val); err == nil {
				cvf.Set(reflect.ValueOf(v))
			} else if val == "" {
				cvf.Set(reflect.ValueOf(time.Duration(0)))
			} else {
				return fmt.Errorf("env %s (%T): parse %q: %w", key, cvf.Interface(), val, err)
			}
		case bool:
			if val == "" {
				cvf.SetBool(false)
			} else if v, err := strconv.ParseBool(val); err == nil {
				cvf.SetBool(v)
			} else {
				return fmt.Errorf("env %s (%T): parse %q: %w", key, cvf.Interface(), val, err)
			}
		case zerolog.Level:
			if v, err := zerolog.ParseLevel(val); err == nil {
				cvf.Set(reflect.ValueOf(v))
			} else {
				return fmt.Errorf("env %s (%T): parse %q: %w", key, cvf.Interface(), val, err)
			}
		case netip.AddrPort:
			if val == "" {
				cvf.Set(reflect.ValueOf(netip.AddrPort{}))
			} else if v, err := netip.ParseAddrPort(val); err == nil {
				cvf.Set(reflect.ValueOf(v))
			} else if v, err1 := netip.ParseAddrPort("[::]" + val); len(val) > 0 && val[0] == ':' && err1 == nil {
				cvf.Set(reflect.ValueOf(v))
			} else {
				return fmt.Errorf("env %s (%T): parse %q: %w", key, cvf.Interface(), val, err)
			}
		default:
			return fmt.Errorf("unhandled type %T (%s)", cvf.Interface(), tag)
		}
	}

	for key, val := range em {
		if val != "" {
			return fmt.Errorf("unknown environment variable %q", key)
		}
	}
	return nil
}
