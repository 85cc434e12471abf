// Command ssgsd runs the Sensor Seal Gateway Server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-envparse"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/sensorseal/ssgs/db/auditdb"
	"github.com/sensorseal/ssgs/pkg/gateway"
	"github.com/sensorseal/ssgs/pkg/geo"
	"github.com/sensorseal/ssgs/pkg/sensorseal"
	"github.com/sensorseal/ssgs/pkg/ssgs"
)

var opt struct {
	Help bool
}

func init() {
	pflag.BoolVarP(&opt.Help, "help", "h", false, "Show this help text")
}

func main() {
	pflag.Parse()

	if pflag.NArg() > 1 || opt.Help {
		fmt.Printf("usage: %s [options] [env_file]\n\noptions:\n%s\nnote: if env_file is provided, config from the environment is ignored\n", os.Args[0], pflag.CommandLine.FlagUsages())
		if opt.Help {
			os.Exit(2)
		}
		os.Exit(0)
	}

	var e []string
	if pflag.NArg() == 0 {
		e = os.Environ()
	} else {
		x, err := readEnv(pflag.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: read env file: %v\n", err)
			os.Exit(1)
		}
		e = x
	}

	var c ssgs.Config
	if err := c.UnmarshalEnv(e, false); err != nil {
		fmt.Fprintf(os.Stderr, "error: parse config: %v\n", err)
		os.Exit(1)
	}

	logger, reopenLog, err := ssgs.ConfigureLogging(c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: configure logging: %v\n", err)
		os.Exit(1)
	}

	table, err := gateway.LoadTable(c.GatewayTable)
	if err != nil {
		logger.Fatal().Err(err).Str("path", c.GatewayTable).Msg("load gateway table")
	}
	logger.Info().Int("count", table.Len()).Msg("loaded gateway table")

	srv := ssgs.NewServer(table)
	srv.Logger = logger
	srv.Metrics = ssgs.NewMetrics()
	srv.IdleTimeout = c.IdleTimeout

	var auditDB *auditdb.DB
	if c.AuditDB != "" {
		db, err := auditdb.Open(context.Background(), c.AuditDB)
		if err != nil {
			logger.Fatal().Err(err).Str("path", c.AuditDB).Msg("open audit database")
		}
		db.Logger = logger
		defer db.Close()
		srv.Audit = db
		auditDB = db
	}

	if c.GeoDB != "" {
		gdb := &geo.DB{}
		if err := gdb.Load(c.GeoDB); err != nil {
			logger.Fatal().Err(err).Str("path", c.GeoDB).Msg("load geo database")
		}
		defer gdb.Close()
		srv.Geo = gdb
	}

	srv.OnConnection = func(cl *ssgs.Client) {
		l := logger.With().Str("gateway_uid", cl.GatewayUID.String()).Logger()
		l.Info().Stringer("remote", cl.RemoteAddr).Msg("gateway connected")

		cl.OnReconnect = func() {
			l.Debug().Msg("reconnect grace period elapsed")
		}
		cl.OnMessage = func(u sensorseal.Update) {
			ev := l.Debug()
			if u.SensorSealUID != nil {
				ev = ev.Str("sensor_seal_uid", u.SensorSealUID.String())
			}
			if u.Temperature != nil {
				ev = ev.Float64("temperature", *u.Temperature)
			}
			if u.Vibration != nil {
				ev = ev.Float64("vibration", *u.Vibration)
			}
			if u.RPM != nil {
				ev = ev.Uint32("rpm", *u.RPM)
			}
			if u.Voltage != nil {
				ev = ev.Float64("voltage", *u.Voltage)
			}
			ev.Msg("telemetry update")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if reopenLog != nil {
		hch := make(chan os.Signal, 1)
		signal.Notify(hch, syscall.SIGHUP)
		go func() {
			for range hch {
				logger.Info().Msg("got SIGHUP, reopening log file and gateway table")
				reopenLog()
				if t, err := gateway.LoadTable(c.GatewayTable); err != nil {
					logger.Error().Err(err).Msg("reload gateway table")
				} else {
					srv.SetTable(t)
				}
			}
		}()
	}

	g, ctx := errgroup.WithContext(ctx)

	if c.DebugAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/", ssgs.DebugMonitorHandler(srv))
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			srv.Metrics.WritePrometheus(w)
		})
		if auditDB != nil {
			mux.Handle("/export", auditdb.ExportHandler(auditDB, 10000))
		}

		dbgSrv := &http.Server{Addr: c.DebugAddr, Handler: mux}
		g.Go(func() error {
			logger.Info().Str("addr", c.DebugAddr).Msg("starting debug server")
			if err := dbgSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("debug server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return dbgSrv.Close()
		})
	}

	g.Go(func() error {
		return srv.Run(ctx, c.ListenAddr)
	})

	logger.Info().Str("addr", c.ListenAddr.String()).Msg("starting ssgsd")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("run server")
	}
}

func readEnv(name string) ([]string, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := envparse.Parse(f)
	if err != nil {
		return nil, err
	}

	var r []string
	for k, v := range m {
		r = append(r, k+"="+v)
	}
	return r, nil
}
