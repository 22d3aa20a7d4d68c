package hooks

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/akyaiy/cortexlink/internal/core/corestate"
	"github.com/akyaiy/cortexlink/internal/core/run_manager"
	"github.com/akyaiy/cortexlink/internal/engine/app"
	"github.com/akyaiy/cortexlink/internal/engine/config"
	"github.com/akyaiy/cortexlink/internal/engine/logs"
	"github.com/akyaiy/cortexlink/internal/engine/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var Compositor *config.Compositor = config.NewCompositor()

func Init0Hook(cs *corestate.CoreState, x *app.AppX) {
	x.Config = Compositor
	x.Log.SetOutput(os.Stdout)
	x.Log.SetPrefix(logs.SetBrightBlack(fmt.Sprintf("(%s) ", cs.Stage)))
	x.Log.SetFlags(log.Ldate | log.Ltime)
}

// First stage: pre-init
func Init1Hook(cs *corestate.CoreState, x *app.AppX) {
	*cs = *corestate.NewCorestate(&corestate.CoreState{
		InstanceIDDirName:  "instance",
		BinName:            filepath.Base(os.Args[0]),
		Version:            config.ClientVersion,
		MetaDir:            config.MetaDir,
		Stage:              corestate.StagePreInit,
		StartTimestampUnix: time.Now().Unix(),
	})
	x.Log.SetPrefix(logs.SetBlue(fmt.Sprintf("(%s) ", cs.Stage)))
}

// Init2Hook loads environment, configuration file and credentials. Command line flags
// win over the file, the environment wins over the credentials file.
func Init2Hook(cs *corestate.CoreState, x *app.AppX) {
	if err := x.Config.LoadEnv(); err != nil {
		x.Log.Fatalf("env load error: %s", err)
	}

	cfgPath := *x.Config.Env.ConfigPath
	if x.Config.CMDLine != nil && x.Config.CMDLine.Run.ConfigPath != "" {
		cfgPath = x.Config.CMDLine.Run.ConfigPath
		x.Config.Env.ConfigPath = &cfgPath
	}
	if err := x.Config.LoadConf(cfgPath); err != nil {
		x.Log.Fatalf("conf load error: %s", err)
	}

	if x.Config.CMDLine != nil {
		if url := x.Config.CMDLine.Run.URL; url != "" {
			x.Config.Conf.Cortex.URL = &url
		}
		if x.Config.CMDLine.Root.Debug {
			level := "debug"
			x.Config.Conf.Log.Level = &level
		}
	}

	if err := x.Config.LoadCredentials(*x.Config.Conf.Cortex.CredentialsFile); err != nil {
		x.Log.Fatalf("credentials load error: %s", err)
	}
}

func Init3Hook(cs *corestate.CoreState, x *app.AppX) {
	id, err := corestate.LoadOrCreateInstanceID(filepath.Join(cs.MetaDir, cs.InstanceIDDirName))
	if err != nil {
		x.Log.Fatalf("instance id error: %s", err)
	}
	cs.InstanceID = id
	x.Log.Printf("Instance id is %s", cs.InstanceID)
}

// post-init stage
func Init4Hook(cs *corestate.CoreState, x *app.AppX) {
	cs.Stage = corestate.StagePostInit
	x.Log.SetPrefix(logs.SetYellow(fmt.Sprintf("(%s) ", cs.Stage)))

	rm := run_manager.New("", cs.InstanceID)
	others, err := rm.Others()
	if err != nil {
		x.Log.Fatalf("Unexpected failure: %s", err.Error())
	}
	if len(others) > 0 {
		x.Log.Fatalf("Unable to continue: a client with the same instance id is already running (%s)", others[0])
	}
	runDir, err := rm.Create()
	if err != nil {
		x.Log.Fatalf("Unexpected failure: %s", err.Error())
	}
	cs.RunDir = runDir
	x.Runtime = rm

	err = rm.WriteLock(&run_manager.Lock{
		PID:        os.Getpid(),
		Version:    cs.Version,
		InstanceID: cs.InstanceID,
		URL:        *x.Config.Conf.Cortex.URL,
		Started:    time.Unix(cs.StartTimestampUnix, 0).Format("2006-01-02/15:04:05 MST"),
		StartedAt:  cs.StartTimestampUnix,
	})
	if err != nil {
		_ = rm.Clean()
		x.Log.Fatalf("Unexpected failure: %s", err.Error())
	}
}

func Init5Hook(cs *corestate.CoreState, x *app.AppX) {
	conf := x.Config.Conf
	warn := func(flag, msg string) {
		if !slices.Contains(*conf.DisableWarnings, flag) {
			x.Log.Printf("%s: %s", logs.PrintWarn(), msg)
		}
	}

	if strings.HasPrefix(*conf.Cortex.URL, "wss://") && *conf.Cortex.InsecureSkipVerify {
		warn("--WInsecureTLS", "TLS certificate of the Cortex service is not verified")
	}
	if strings.HasPrefix(*conf.Cortex.URL, "ws://") {
		warn("--WPlainText", "Cortex URL is not encrypted, credentials are sent in clear text")
	}
	if _, ok := logs.ParseLevel(*conf.Log.Level); !ok {
		warn("--WLogLevel", fmt.Sprintf("unknown log level %q, using %s", *conf.Log.Level, logs.Levels.Fallback))
	}
	if *conf.Status.Enabled && *conf.Status.Address != "127.0.0.1" && *conf.Status.Address != "localhost" {
		warn("--WStatusExposed", "status server listens on a non-loopback address")
	}

	if *conf.Client.ShowConfig {
		fmt.Printf("Configuration from %s:\n", *x.Config.Env.ConfigPath)
		x.Config.Print(os.Stdout, conf)
	}
}

func Init6Hook(cs *corestate.CoreState, x *app.AppX) {
	cs.Stage = corestate.StageReady
	x.Log.SetPrefix(logs.SetGreen(fmt.Sprintf("(%s) ", cs.Stage)))

	newSlog, err := logs.SetupLogger(x.Config.Conf.Log)
	if err != nil {
		_ = x.Runtime.Clean()
		x.Log.Fatalf("Unexpected failure: %s", err.Error())
	}
	x.SLog = newSlog.With(slog.String("instance", cs.InstanceID))

	x.Registry = prometheus.NewRegistry()
	x.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	x.Metrics = metrics.New(
		metrics.WithRegistry(x.Registry),
		metrics.WithConstLabels(prometheus.Labels{"client": *x.Config.Conf.Client.Name}),
	)
}
