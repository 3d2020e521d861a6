package main

import (
	"flag"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"sentrypulse/pkg/alert"
	"sentrypulse/pkg/config"
	"sentrypulse/pkg/configmgr"
	"sentrypulse/pkg/configwatch"
	"sentrypulse/pkg/dashboard"
	"sentrypulse/pkg/health"
	"sentrypulse/pkg/logging"
	"sentrypulse/pkg/notifier"
	"sentrypulse/pkg/probe"
	"sentrypulse/pkg/scheduler"
	"sentrypulse/pkg/status"
)

func main() {
	configPath := flag.String("config", "config.toml", "Path to configuration file")
	pidFile := flag.String("pidfile", "/tmp/sentrypulse.pid", "Path to PID file")
	healthCheck := flag.Bool("health", false, "Perform health check and exit")
	statusFile := flag.String("status-file", "/tmp/sentrypulse-status.json", "Path to the periodically persisted status snapshot")
	debounce := flag.Duration("debounce", configwatch.DefaultDebounce, "Config reload debounce window")
	flag.Parse()

	if *healthCheck {
		health.CheckHealth(*pidFile)
	}

	if err := health.WritePIDFile(*pidFile); err != nil {
		os.Stderr.WriteString("failed to write PID file: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = os.Remove(*pidFile) }()

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logging.New(cfg.Global.LogLevel)
	log.Info().Str("config", *configPath).Int("services", len(cfg.Services)).Msg("starting sentrypulse")

	executor := probe.NewExecutor()
	reg := status.NewRegistry(*configPath)
	for _, svc := range cfg.Services {
		reg.AddService(svc.Name, svc.URL, svc.IsEnabled())
	}

	useWebhook := cfg.Global.DefaultWebhookURL != ""
	for _, svc := range cfg.Services {
		if svc.WebhookURL != "" {
			useWebhook = true
		}
	}
	var notify notifier.Notifier = notifier.NoOp{}
	if useWebhook {
		notify = notifier.NewWebhook(cfg.Global)
	}

	alerts := alert.New(notify, logging.Component(log, "alert"), nil)

	onResult := func(r probe.Result) {
		reg.UpdateFromProbeResult(r, alerts.Snapshot(r.ServiceName).ConsecutiveFailures)
	}

	sched := scheduler.New(cfg.Global, executor, alerts, onResult, logging.Component(log, "scheduler"))
	started := false
	if err := sched.Start(cfg.Services); err != nil {
		log.Error().Err(err).Msg("scheduler failed to start")
		os.Exit(1)
	}
	started = true

	mgr := configmgr.New(cfg)
	watcher := configwatch.New(*configPath, *debounce, logging.Component(log, "configwatch"))
	watchEvents := watcher.Subscribe()
	go mgr.Run(watchEvents)
	if err := watcher.Start(); err != nil {
		log.Warn().Err(err).Msg("config hot-reload disabled: could not start file watcher")
	}

	updates := make(chan scheduler.ConfigUpdate, 4)
	go func() {
		for n := range mgr.Subscribe() {
			for _, d := range n.Diffs {
				switch d.Kind {
				case config.ServiceAdded, config.ServiceModified:
					if d.New != nil {
						reg.AddService(d.New.Name, d.New.URL, d.New.IsEnabled())
					}
				case config.ServiceRemoved:
					reg.RemoveService(d.Name)
				}
			}
			reg.MarkConfigReload()
			updates <- scheduler.ConfigUpdate{Diffs: n.Diffs, Global: mgr.Current().Global}
		}
	}()
	sched.EnableHotReload(updates)

	persistStop := make(chan struct{})
	go reg.RunPeriodicPersistence(persistStop, *statusFile, 30*time.Second, func(err error) {
		log.Warn().Err(err).Msg("failed to persist status snapshot")
	})

	var dashServer *dashboard.Server
	if cfg.Global.Web != nil && cfg.Global.Web.Enabled {
		api := dashboard.New(reg, func() bool { return started })
		addr := cfg.Global.Web.BindAddress
		if addr == "" {
			addr = "127.0.0.1"
		}
		dashServer = dashboard.NewServer(api, addr+":"+strconv.Itoa(cfg.Global.Web.Port), logging.Component(log, "dashboard"))
		go func() {
			if err := dashServer.ListenAndServe(); err != nil {
				log.Warn().Err(err).Msg("dashboard server stopped")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("received shutdown signal")

	close(persistStop)
	if dashServer != nil {
		_ = dashServer.Shutdown()
	}
	sched.Stop()

	log.Info().Msg("sentrypulse stopped")
}
