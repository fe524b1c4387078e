package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/smazurov/illuminode/internal/api"
	"github.com/smazurov/illuminode/internal/config"
	"github.com/smazurov/illuminode/internal/events"
	"github.com/smazurov/illuminode/internal/logging"
	"github.com/smazurov/illuminode/internal/metrics"
	"github.com/smazurov/illuminode/internal/metrics/exporters"
	"github.com/smazurov/illuminode/internal/mqtt"
	"github.com/smazurov/illuminode/internal/session"
	"github.com/smazurov/illuminode/internal/systemd"
	"github.com/smazurov/illuminode/internal/version"
)

// daemon wires the session to the API server, metrics and MQTT bridge.
type daemon struct {
	opts   *Options
	logger *slog.Logger

	mu            sync.Mutex
	stopped       bool
	cancel        context.CancelFunc
	sess          *session.Session
	server        *api.Server
	settleWatcher *config.Watcher[session.SettleDelays]
	sseExporter   *exporters.SSEExporter
	bridge        *mqtt.Bridge
	mqttClient    *mqtt.PahoClient
	notifier      *systemd.Notifier
	detachMetrics func()
}

func (d *daemon) run() {
	opts := d.opts

	// Initialize logging system
	logging.Initialize(logging.Config{
		Level:  opts.LoggingLevel,
		Format: opts.LoggingFormat,
		Modules: map[string]string{
			"session":   opts.LoggingSession,
			"transport": opts.LoggingTransport,
			"api":       opts.LoggingAPI,
			"mqtt":      opts.LoggingMQTT,
		},
	})
	logger := logging.GetLogger("main")
	d.logger = logger
	logger.Info("Starting illuminode", "version", version.String(), "device", opts.Device)

	// Create event bus for in-process event handling
	eventBus := events.New()
	logging.SetLogCallback(func(entry logging.LogEntry) {
		eventBus.Publish(events.LogEntryEvent{
			Timestamp:  entry.Timestamp.Format(time.RFC3339),
			Level:      entry.Level,
			Module:     entry.Module,
			Message:    entry.Message,
			Attributes: entry.Attributes,
		})
	})

	sess, err := openSession(opts, eventBus)
	if err != nil {
		logger.Error("Failed to open device", "device", opts.Device, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		cancel()
		sess.Close()
		return
	}
	d.cancel = cancel
	d.sess = sess
	d.detachMetrics = metrics.Attach(eventBus)
	d.notifier = systemd.NewNotifier(logging.GetLogger("systemd"))

	// Settle table hot reload
	if opts.SettleFile != "" {
		d.settleWatcher = config.NewConfigWatcher(
			opts.SettleFile,
			config.LoadSettleDelays,
			logging.GetLogger("config"),
			config.WithDebounce[session.SettleDelays](500*time.Millisecond),
			config.WithErrorHandler[session.SettleDelays](func(err error) {
				logger.Warn("Keeping previous settle delays", "path", opts.SettleFile, "error", err)
			}),
		)
		d.settleWatcher.OnReload(func(delays session.SettleDelays) {
			sess.SetSettleDelays(delays)
			logger.Info("Settle delays reloaded", "path", opts.SettleFile)
			eventBus.Publish(events.SettleReloadedEvent{
				Path:      opts.SettleFile,
				Timestamp: time.Now().Format(time.RFC3339),
			})
		})
		if startErr := d.settleWatcher.Start(); startErr != nil {
			logger.Warn("Settle file watcher not started", "path", opts.SettleFile, "error", startErr)
		}
	}

	if interval := parseDuration(opts.MetricsSSEInterval, exporters.DefaultInterval); interval > 0 {
		d.sseExporter = exporters.NewSSEExporter(eventBus)
		d.sseExporter.SetInterval(interval)
		d.sseExporter.Start(ctx)
	}

	if opts.MQTTBroker != "" {
		if err := d.startBridge(sess, eventBus); err != nil {
			d.mu.Unlock()
			logger.Error("Failed to start MQTT bridge", "broker", opts.MQTTBroker, "error", err)
			d.shutdown()
			os.Exit(1)
		}
	}

	apiOpts := &api.Options{
		AuthUsername: opts.AuthUsername,
		AuthPassword: opts.AuthPassword,
		CORSOrigin:   opts.CORSOrigin,
		Device:       sess,
		EventBus:     eventBus,
	}
	if opts.MetricsPrometheusEnabled {
		apiOpts.PrometheusHandler = exporters.HTTPHandler()
	}
	d.server = api.NewServer(apiOpts)
	server := d.server
	notifier := d.notifier
	d.mu.Unlock()

	if opts.WatchHotplug {
		if node := serialNode(opts.Device); node != "" {
			go watchUnplug(ctx, node, sess, notifier, logger)
		}
	}
	go notifier.RunWatchdog(ctx, sess.Err)

	notifier.Ready(fmt.Sprintf("serving %s on %s", opts.Device, opts.Port))
	logger.Info("Starting HTTP server", "port", opts.Port)
	if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
		logger.Error("Failed to start HTTP server", "error", startErr)
		os.Exit(1)
	}
}

// startBridge connects to the broker. Called with d.mu held.
func (d *daemon) startBridge(sess *session.Session, bus *events.Bus) error {
	opts := d.opts
	mqttLogger := logging.GetLogger("mqtt")
	topics := mqtt.TopicsFor(opts.MQTTPrefix)
	clientID := opts.MQTTClientID
	if clientID == "" {
		clientID = version.ClientID()
	}

	client, err := mqtt.Connect(mqtt.Config{
		Broker:      opts.MQTTBroker,
		ClientID:    clientID,
		QoS:         byte(opts.MQTTQos),
		WillTopic:   topics.Status,
		WillPayload: mqtt.StatusOffline,
	}, mqttLogger)
	if err != nil {
		return err
	}
	d.mqttClient = client

	d.bridge = mqtt.NewBridge(client, sess, bus, opts.MQTTPrefix, mqttLogger)
	return d.bridge.Start()
}

func (d *daemon) shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true

	logger := d.logger
	if logger == nil {
		logger = logging.GetLogger("main")
	}
	logger.Info("Shutting down server")
	if d.notifier != nil {
		d.notifier.Stopping()
	}

	if d.server != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if stopErr := d.server.Stop(stopCtx); stopErr != nil {
			logger.Error("Error stopping HTTP server", "error", stopErr)
		}
		stopCancel()
	}

	// Stop the bridge before the session so queued commands drain first
	if d.bridge != nil {
		d.bridge.Stop()
	}
	if d.mqttClient != nil {
		d.mqttClient.Close()
	}
	if d.sseExporter != nil {
		d.sseExporter.Stop()
	}
	if d.settleWatcher != nil {
		if stopErr := d.settleWatcher.Stop(); stopErr != nil {
			logger.Warn("Error stopping settle watcher", "error", stopErr)
		}
	}
	if d.cancel != nil {
		d.cancel()
	}
	if d.sess != nil {
		if closeErr := d.sess.Close(); closeErr != nil {
			logger.Warn("Error closing device", "error", closeErr)
		}
	}
	if d.detachMetrics != nil {
		d.detachMetrics()
	}
}
