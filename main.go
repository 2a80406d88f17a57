package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"hotscribe/audio"
	"hotscribe/bus"
	"hotscribe/config"
	"hotscribe/controller"
	"hotscribe/doctor"
	"hotscribe/log"
	"hotscribe/notify"
	"hotscribe/observe"
	"hotscribe/shutdown"
)

var version = "dev"

type flags struct {
	configPath string
	logPath    string
	device     string
	metrics    string
	setup      bool
	doctor     bool
	test       bool
	tui        bool
	debug      bool
	version    bool
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "config file (default: user config dir)/hotscribe/config.yaml")
	flag.StringVar(&f.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	flag.StringVar(&f.device, "device", "", "Use named microphone device for every profile")
	flag.StringVar(&f.metrics, "metrics", "", "Serve Prometheus metrics on this address (e.g. localhost:9464)")
	flag.BoolVar(&f.setup, "setup", false, "Select microphone device before starting")
	flag.BoolVar(&f.doctor, "doctor", false, "Run system diagnostics and exit")
	flag.BoolVar(&f.test, "test", false, "Test mode: headless, hotkeys read from stdin, audio from the WAV file argument")
	flag.BoolVar(&f.tui, "tui", true, "Run with terminal status view")
	flag.BoolVar(&f.debug, "debug", false, "Write debug level diagnostics")
	flag.BoolVar(&f.version, "version", false, "Print version and exit")
	flag.Parse()
	return f
}

func run() {
	os.Exit(runApp(parseFlags()))
}

func runApp(f flags) int {
	if f.version {
		fmt.Printf("hotscribe %s\n", version)
		return 0
	}

	logPath, err := log.ResolveDir(f.logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()

	if f.configPath == "" {
		if f.configPath, err = config.DefaultPath(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	if err := config.LoadEnv(filepath.Dir(f.configPath)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	if f.doctor {
		return doctor.Run(f.configPath, flag.Arg(0))
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	headless := f.test || !f.tui
	if headless && cfg.GlobalOptions.PrintToTerminal {
		log.SetTerminal(os.Stderr)
	}
	log.SetDebug(f.debug)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()
	log.Infof("hotscribe %s starting, config %s", version, f.configPath)

	if f.setup && f.device == "" && !f.test {
		if f.device, err = setupDevice(); err != nil {
			if errors.Is(err, audio.ErrCancelled) {
				return 0
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	overrideDevice(cfg, f.device)

	if addr := firstNonEmpty(f.metrics, cfg.GlobalOptions.MetricsAddr); addr != "" {
		stop, err := startMetrics(addr)
		if err != nil {
			log.Warnf("metrics disabled: %v", err)
		} else {
			defer stop()
		}
	}

	b := bus.New()
	defer b.Close()
	notify.Watch(b)

	var (
		ctrlOpts = []controller.Option{controller.WithConfigPath(f.configPath)}
		script   *testScript
	)
	if f.test {
		notify.Disable()
		cfg.GlobalOptions.NoiseOnCompletion = false
		script, err = newTestScript(b, flag.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		ctrlOpts = append(ctrlOpts, script.options()...)
	} else {
		actx, err := audio.NewContext()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
			return 1
		}
		defer actx.Close()
		ctrlOpts = append(ctrlOpts, controller.WithCapture(actx))
	}

	ctrl, err := controller.New(b, cfg, ctrlOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	quit := make(chan struct{})
	var quitOnce sync.Once
	b.Subscribe(bus.QuitApplication, func(any) {
		quitOnce.Do(func() { close(quit) })
	})

	var exitCode atomic.Int32
	b.Subscribe(bus.InitializationFailed, func(any) {
		if headless {
			exitCode.Store(1)
			b.Emit(bus.CloseApp, nil)
		}
	})

	// The stdin script can only be consumed once, so -test never reloads.
	if !f.test {
		watcher, err := config.NewWatcher(f.configPath, func(next *config.Config) {
			overrideDevice(next, f.device)
			b.Emit(bus.ConfigChanged, next)
		})
		if err != nil {
			log.Warnf("config reload disabled: %v", err)
		} else {
			defer watcher.Stop()
		}
	}

	stopSignals := shutdown.OnSignal(func(sig os.Signal) {
		log.Infof("received %s, shutting down", sig)
		b.Emit(bus.CloseApp, nil)
	})
	defer stopSignals()

	var ui *statusView
	if !headless {
		ui = newStatusView(b, cfg)
	}

	ctrl.StartListening()

	switch {
	case script != nil:
		go script.wait(b, quit)
	case ui != nil:
		go func() {
			if err := ui.Run(); err != nil {
				log.Errorf("tui: %v", err)
			}
			b.Emit(bus.CloseApp, nil)
		}()
	default:
		fmt.Fprintln(os.Stderr, "hotscribe running, Ctrl+C to quit")
	}

	<-quit
	ctrl.Close()
	if ui != nil {
		ui.Quit()
	}
	b.Sync()
	log.Info("hotscribe stopped")
	return int(exitCode.Load())
}

// initCrashLog appends Go runtime crash output to crash_log.txt in the log
// directory.
func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

func setupDevice() (string, error) {
	actx, err := audio.NewContext()
	if err != nil {
		return "", fmt.Errorf("initializing audio: %w", err)
	}
	defer actx.Close()
	dev, err := audio.SelectDevice(actx)
	if err != nil {
		return "", err
	}
	fmt.Printf("Using device: %s (set recording_options.sound_device to keep it)\n", dev.Name)
	return dev.Name, nil
}

// overrideDevice applies -device (or the -setup choice) to every profile.
func overrideDevice(cfg *config.Config, device string) {
	if device == "" {
		return
	}
	for i := range cfg.Profiles {
		cfg.Profiles[i].RecordingOptions.SoundDevice = device
	}
}

func startMetrics(addr string) (stop func(), err error) {
	shutdownProvider, err := observe.InitProvider(context.Background(), version)
	if err != nil {
		return nil, err
	}
	srv, err := observe.Serve(addr)
	if err != nil {
		shutdownProvider(context.Background())
		return nil, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Close(ctx)
		shutdownProvider(ctx)
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
