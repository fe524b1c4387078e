package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/illuminode/cmd"
	"github.com/smazurov/illuminode/internal/config"
	"github.com/smazurov/illuminode/internal/events"
	"github.com/smazurov/illuminode/internal/logging"
	"github.com/smazurov/illuminode/internal/session"
	"github.com/smazurov/illuminode/internal/systemd"
	"github.com/smazurov/illuminode/internal/transport"
	"github.com/smazurov/illuminode/internal/version"
	"github.com/smazurov/illuminode/pkg/hotplug"
	"github.com/spf13/cobra"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Device settings
	Device        string `help:"Device URI (serial path, serial://, sim://)" short:"d" default:"/dev/ttyACM0" toml:"device.uri" env:"DEVICE_URI"`
	AckMode       string `help:"Command completion mode (settle, terminator)" default:"settle" toml:"device.ack_mode" env:"DEVICE_ACK_MODE"`
	AckTimeout    string `help:"Terminator wait in terminator mode" default:"2s" toml:"device.ack_timeout" env:"DEVICE_ACK_TIMEOUT"`
	RequireClear  bool   `help:"Reject sequences not preceded by a clear" default:"true" toml:"device.require_clear" env:"DEVICE_REQUIRE_CLEAR"`
	SkipRedundant bool   `help:"Skip commands that match cached state" default:"true" toml:"device.skip_redundant" env:"DEVICE_SKIP_REDUNDANT"`
	SettleFile    string `help:"Settle delay table, reloaded on change" default:"" toml:"device.settle_file" env:"DEVICE_SETTLE_FILE"`
	WatchHotplug  bool   `help:"Invalidate the session when the serial device is unplugged" default:"true" toml:"device.watch_hotplug" env:"DEVICE_WATCH_HOTPLUG"`

	// Server settings
	Port       string `help:"Address to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	CORSOrigin string `help:"Allowed CORS origin" default:"*" toml:"server.cors_origin" env:"SERVER_CORS_ORIGIN"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Metrics settings
	MetricsPrometheusEnabled bool   `help:"Serve /metrics" default:"true" toml:"metrics.prometheus_enabled" env:"METRICS_PROMETHEUS_ENABLED"`
	MetricsSSEInterval       string `help:"Interval of metrics events on the SSE stream (0 disables)" default:"1s" toml:"metrics.sse_interval" env:"METRICS_SSE_INTERVAL"`

	// MQTT settings
	MQTTBroker   string `help:"MQTT broker URL, empty disables the bridge" default:"" toml:"mqtt.broker" env:"MQTT_BROKER"`
	MQTTPrefix   string `help:"MQTT topic prefix" default:"illuminode" toml:"mqtt.prefix" env:"MQTT_PREFIX"`
	MQTTClientID string `help:"MQTT client ID (default derived from host and pid)" default:"" toml:"mqtt.client_id" env:"MQTT_CLIENT_ID"`
	MQTTQos      int    `help:"MQTT QoS level (0, 1, 2)" default:"1" toml:"mqtt.qos" env:"MQTT_QOS"`

	// Logging settings
	LoggingLevel     string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingSession   string `help:"Session logging level" default:"info" toml:"logging.session" env:"LOGGING_SESSION"`
	LoggingTransport string `help:"Transport logging level" default:"info" toml:"logging.transport" env:"LOGGING_TRANSPORT"`
	LoggingAPI       string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingMQTT      string `help:"MQTT bridge logging level" default:"info" toml:"logging.mqtt" env:"LOGGING_MQTT"`
}

func main() {
	var root *cobra.Command

	// Create Huma CLI. The callback also runs before every subcommand, so
	// the device is only opened once the daemon starts.
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, root); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		d := &daemon{opts: opts}
		hooks.OnStart(d.run)
		hooks.OnStop(d.shutdown)
	})

	root = cli.Root()
	root.Use = "illuminode"
	root.Short = "Illuminate LED array controller"
	root.Long = "Serves an HTTP control API, Prometheus metrics and an optional MQTT bridge for one LED array. " +
		"Subcommands talk to the device directly."
	root.Version = version.String()

	root.AddCommand(cmd.CreateSendCmd())
	root.AddCommand(cmd.CreateRunCmd())
	root.AddCommand(cmd.CreatePropsCmd())

	// Run the CLI
	cli.Run()
}

// openSession connects to the device, applies the settle table and performs
// the handshake.
func openSession(opts *Options, bus *events.Bus) (*session.Session, error) {
	mode := session.AckMode(opts.AckMode)
	if mode != session.AckSettle && mode != session.AckTerminator {
		return nil, fmt.Errorf("unknown ack mode %q", opts.AckMode)
	}

	delays := session.DefaultSettleDelays()
	if opts.SettleFile != "" {
		loaded, err := config.LoadSettleDelays(opts.SettleFile)
		if err != nil {
			return nil, err
		}
		delays = loaded
	}

	t, err := transport.Open(opts.Device)
	if err != nil {
		return nil, err
	}

	sess := session.New(t,
		session.WithSettleDelays(delays),
		session.WithAckMode(mode, parseDuration(opts.AckTimeout, session.DefaultAckTimeout)),
		session.WithRequireClear(opts.RequireClear),
		session.WithSkipRedundant(opts.SkipRedundant),
		session.WithPublisher(bus),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	props, err := sess.Handshake(ctx)
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}
	logging.GetLogger("main").Info("Device ready",
		"session_id", sess.ID(), "device_name", props.DeviceName, "led_count", int(props.LedCount))
	return sess, nil
}

// parseDuration falls back to def when value is not a valid duration.
func parseDuration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("Invalid duration, using default", "value", value, "default", def)
		return def
	}
	return d
}

// serialNode returns the device node of a serial URI, or "" for other schemes.
func serialNode(uri string) string {
	if !strings.Contains(uri, "://") {
		return uri
	}
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != transport.SchemeSerial {
		return ""
	}
	return u.Path
}

func watchUnplug(ctx context.Context, node string, sess *session.Session, notifier *systemd.Notifier, logger *slog.Logger) {
	monitor, err := hotplug.NewMonitor()
	if err != nil {
		logger.Warn("Hotplug monitoring unavailable", "error", err)
		return
	}
	defer monitor.Close()

	err = hotplug.WatchRemoval(ctx, monitor, node, func(ev hotplug.Event) {
		logger.Error("Serial device removed", "device", node, "kobj", ev.KObj)
		sess.Invalidate(fmt.Errorf("%s removed", node))
		notifier.Status("device removed: " + node)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("Hotplug monitor stopped", "error", err)
	}
}
