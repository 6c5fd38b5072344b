package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nshafer/rvlink"
	"github.com/nshafer/rvlink/internal/config"
	"github.com/nshafer/rvlink/internal/logging"
	"github.com/nshafer/rvlink/internal/metrics"
	"github.com/nshafer/rvlink/vehicle"
)

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath, overrides(cmd))
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	w := newWatcher(cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if cfg.Metrics.Enabled {
		server := metrics.NewServer(cfg.Metrics.Addr, w.metrics, logger)
		if err := server.Start(); err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Stop(ctx); err != nil {
				logger.Warn("Failed to stop metrics server", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return w.run(ctx, cmd.InOrStdin())
}

// watcher ties a Channel to the vehicle state, the metrics and the terminal.
type watcher struct {
	log     *zap.Logger
	store   *vehicle.Store
	metrics *metrics.Metrics
	channel *rvlink.Channel

	outMu sync.Mutex
	out   io.Writer
}

// newWatcher prints to out. The plain log format sends the library's messages to errOut.
func newWatcher(cfg *config.Config, logger *zap.Logger, out, errOut io.Writer) *watcher {
	w := &watcher{
		log:     logger,
		store:   vehicle.NewStore(),
		metrics: metrics.New(),
		out:     out,
	}
	// there is no REST client to seed the lights, they are learned from their events
	w.store.AddUnknownLights = true
	w.store.OnChange(w.onChange)

	dialer := rvlink.NewWebsocketDialer()
	dialer.Dialer.HandshakeTimeout = cfg.Transport.HandshakeTimeout
	dialer.PingInterval = cfg.Transport.PingInterval
	dialer.PongWait = cfg.Transport.PongWait
	dialer.Logger = libraryLogger(cfg.Logging, logger, errOut)

	channel := rvlink.NewChannel(cfg.EndPoint(), cfg.Server.APIKey, w.onEvent, w.onStatus)
	channel.Logger = libraryLogger(cfg.Logging, logger, errOut)
	channel.Dialer = dialer
	channel.ReconnectAfterFunc = rvlink.ExponentialBackoff(cfg.Reconnect.InitialDelay, cfg.Reconnect.MaxDelay)
	channel.MaxReconnectAttempts = cfg.Reconnect.MaxAttempts
	w.channel = channel

	return w
}

// libraryLogger hands the messages of the Channel and its dialer to logger, or with the plain format to the
// standard log package writing to errOut.
func libraryLogger(cfg config.LoggingConfig, logger *zap.Logger, errOut io.Writer) rvlink.Logger {
	if strings.EqualFold(cfg.Format, "plain") {
		return rvlink.NewCustomLogger(loggerLevel(cfg.Level), log.New(errOut, "", log.LstdFlags))
	}
	return rvlink.NewZapLogger(logger)
}

func loggerLevel(level string) rvlink.LoggerLevel {
	switch logging.ParseLevel(level) {
	case zapcore.DebugLevel:
		return rvlink.LogDebug
	case zapcore.WarnLevel:
		return rvlink.LogWarning
	case zapcore.ErrorLevel:
		return rvlink.LogError
	default:
		return rvlink.LogInfo
	}
}

func (w *watcher) onEvent(ev rvlink.Event) {
	err := w.store.Apply(ev)
	w.metrics.ObserveEvent(string(ev.Type), err)
	if err != nil {
		w.log.Warn("Failed to apply event", zap.String("type", string(ev.Type)), zap.Error(err))
	}
	w.printf("< %s %s\n", ev.Type, ev.Data)
}

func (w *watcher) onStatus(connected bool) {
	w.store.SetConnected(connected)
	w.metrics.ObserveStatus(connected)
	if connected {
		w.printf("+ connected\n")
	} else {
		w.printf("x disconnected\n")
	}
}

func (w *watcher) onChange(snapshot vehicle.Snapshot) {
	on := 0
	for _, light := range snapshot.Lights {
		if light.On() {
			on++
		}
	}
	w.metrics.ObserveLightsOn(on)
}

func (w *watcher) printf(format string, v ...any) {
	w.outMu.Lock()
	defer w.outMu.Unlock()

	fmt.Fprintf(w.out, format, v...)
}

// run connects and executes commands read from in until 'q' or ctx is done. The channel is destroyed on
// return. Following continues after in is exhausted.
func (w *watcher) run(ctx context.Context, in io.Reader) error {
	defer w.channel.Destroy()

	if err := w.channel.Connect(); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", w.channel.EndPoint(), err)
	}
	w.printf("Following '%s', 'h' for help, 'q' to exit\n", w.channel.EndPoint())

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Shutting down")
			return nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if w.exec(line) {
				return nil
			}
		}
	}
}

// exec runs a single interactive command and reports whether rvwatch should quit.
func (w *watcher) exec(input string) bool {
	cmd, _, _ := strings.Cut(strings.TrimSpace(input), " ")

	switch cmd {
	case "":

	case "h":
		w.printf("%s", usage)

	case "q":
		return true

	case "c":
		if err := w.channel.Connect(); err != nil {
			w.printf("%v\n", err)
		}

	case "d":
		// a requested disconnect is not reported through onStatus
		wasConnected := w.channel.IsConnected()
		w.channel.Disconnect()
		if wasConnected {
			w.onStatus(false)
		}

	case "s":
		w.printf("Connected: %v\n", w.channel.IsConnected())
		w.printf("Connection: %v\n", w.channel.State())
		snapshot, err := json.MarshalIndent(w.store.Snapshot(), "", "  ")
		if err != nil {
			w.printf("%v\n", err)
			break
		}
		w.printf("%s\n", snapshot)

	default:
		w.printf("Unknown command\n%s", usage)
	}

	return false
}

const usage = `
q       quit
c       connect, also after automatic reconnects gave up
d       disconnect
s       status and latest vehicle state
h       help
`
