package hooks

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/akyaiy/cortexlink/internal/consumer/input"
	"github.com/akyaiy/cortexlink/internal/consumer/record"
	"github.com/akyaiy/cortexlink/internal/consumer/script"
	"github.com/akyaiy/cortexlink/internal/core/corestate"
	"github.com/akyaiy/cortexlink/internal/core/utils"
	"github.com/akyaiy/cortexlink/internal/cortex/conn"
	"github.com/akyaiy/cortexlink/internal/cortex/session"
	"github.com/akyaiy/cortexlink/internal/cortex/stream"
	"github.com/akyaiy/cortexlink/internal/engine/app"
	"github.com/akyaiy/cortexlink/internal/engine/config"
	"github.com/akyaiy/cortexlink/internal/engine/logs"
	"github.com/akyaiy/cortexlink/internal/server/status"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

var clientApp = app.New()

func Run(cmd *cobra.Command, args []string) {
	clientApp.InitialHooks(
		Init0Hook, Init1Hook, Init2Hook,
		Init3Hook, Init4Hook, Init5Hook,
		Init6Hook,
	)

	clientApp.Run(RunHook)
}

// Credentials converts the loaded application keys for the handshake.
func Credentials(c *config.Credentials) session.Credentials {
	return session.Credentials{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		License:      c.License,
		Debit:        c.Debit,
	}
}

// buildConsumers assembles the configured consumers. Slow ones get their own queue so
// they never hold up the connection.
func buildConsumers(ctx context.Context, cs *corestate.CoreState, x *app.AppX) (stream.Fanout, error) {
	conf := x.Config.Conf
	var consumers stream.Fanout

	if *conf.Input.Enabled {
		agg := input.NewAggregator(*conf.Input.MinWeight, x.SLog)
		consumers = append(consumers, agg)
		go func() {
			defer utils.CatchPanicWithFallback(func(any) {})
			agg.Run(ctx, *conf.Input.Interval, func(ev input.Event) {
				x.SLog.Info("input", slog.Any("input", ev))
			})
		}()
	}

	if *conf.Script.Enabled {
		runner, err := script.Load(*conf.Script.Path, x.SLog)
		if err != nil {
			_ = consumers.Close()
			return nil, err
		}
		q := stream.NewQueue(runner, *conf.Stream.QueueSize, x.SLog)
		q.OnDrop = func(stream.Message) { x.Metrics.QueueDropped() }
		consumers = append(consumers, q)
	}

	if *conf.Record.Enabled {
		rec, err := record.Open(*conf.Record.Path, cs.InstanceID, x.SLog)
		if err != nil {
			_ = consumers.Close()
			return nil, err
		}
		rec.OnDrop = func(stream.Message) { x.Metrics.QueueDropped() }
		consumers = append(consumers, rec)
	}

	if len(consumers) == 0 {
		x.Log.Printf("%s: %s", logs.PrintWarn(), "No consumer is enabled, streamed messages are discarded")
	}
	return consumers, nil
}

func connectionOptions(x *app.AppX) []conn.Option {
	c := x.Config.Conf.Cortex
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: *c.HandshakeTimeout,
		TLSClientConfig:  &tls.Config{InsecureSkipVerify: *c.InsecureSkipVerify},
	}
	return []conn.Option{
		conn.WithLogger(x.SLog),
		conn.WithDialer(dialer),
		conn.WithMetrics(x.Metrics),
		conn.WithWriteTimeout(*c.WriteTimeout),
		conn.WithHandshakeTimeout(*c.HandshakeTimeout),
		conn.WithRetryPolicy(session.ExponentialRetryPolicy(*c.RetryBudget, *c.RetryInterval, *c.RetryMaxInterval)),
	}
}

func RunHook(ctx context.Context, cs *corestate.CoreState, x *app.AppX) error {
	ctxMain, cancelMain := context.WithCancel(ctx)
	defer cancelMain()
	conf := x.Config.Conf

	var (
		consumers stream.Fanout
		statusSrv *status.Server
	)
	clientApp.Fallback(func(ctx context.Context, cs *corestate.CoreState, x *app.AppX) {
		if statusSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := statusSrv.Shutdown(shutdownCtx); err != nil {
				x.Log.Printf("%s: Failed to stop the status server gracefully: %s", logs.PrintError(), err.Error())
			}
			cancel()
		}

		x.Log.Println("Cleaning up...")
		if err := consumers.Close(); err != nil {
			x.Log.Printf("%s: Consumer close error: %s", logs.PrintError(), err.Error())
		}
		if err := x.Runtime.Clean(); err != nil {
			x.Log.Printf("%s: Cleanup error: %s", logs.PrintError(), err.Error())
		}
		x.Log.Println("bye!")
	})

	creds := Credentials(x.Config.Credentials)
	if err := creds.Validate(); err != nil {
		return err
	}

	consumers, err := buildConsumers(ctxMain, cs, x)
	if err != nil {
		return err
	}

	var (
		mu       sync.RWMutex
		current  func() *conn.Connection
		attempts func() int
	)

	if *conf.Status.Enabled {
		report := func() status.Report {
			r := status.Report{
				Instance: cs.InstanceID,
				Client:   *conf.Client.Name,
				Version:  cs.Version,
				Uptime:   cs.Uptime().Truncate(time.Second).String(),
			}
			mu.RLock()
			defer mu.RUnlock()
			if attempts != nil {
				r.Attempts = attempts()
			}
			if current != nil {
				if c := current(); c != nil {
					st := c.Snapshot()
					r.Connection = &st
				}
			}
			return r
		}
		statusSrv = status.New(*conf.Status.Address, *conf.Status.Port, status.NewRouter(report, x.Registry), x.SLog)
		if err := statusSrv.Start(func(error) { cancelMain() }); err != nil {
			statusSrv = nil
			return err
		}
		x.Log.Printf("Status on http://%s%s", statusSrv.Addr(), config.StatusRoute)
	}

	url := *conf.Cortex.URL
	x.Log.Printf("Connecting to %s", url)
	done := make(chan error, 1)

	if *conf.Cortex.Reconnect {
		sup := conn.NewSupervisor(url, creds, consumers, conn.ReconnectPolicy{
			MaxInterval: *conf.Cortex.ReconnectMaxInterval,
		}, x.SLog, connectionOptions(x)...)
		mu.Lock()
		current, attempts = sup.Current, sup.Attempts
		mu.Unlock()
		go func() {
			defer utils.CatchPanicWithCancel(cancelMain)
			done <- sup.Run(ctxMain)
		}()
	} else {
		c, err := conn.Open(ctxMain, url, creds, consumers, connectionOptions(x)...)
		if err != nil {
			return err
		}
		mu.Lock()
		current = func() *conn.Connection { return c }
		attempts = func() int { return 1 }
		mu.Unlock()
		go func() {
			<-c.Done()
			done <- c.Err()
		}()
	}

	select {
	case err = <-done:
	case <-ctxMain.Done():
		x.Log.Printf("Shutting down...")
		err = <-done
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
