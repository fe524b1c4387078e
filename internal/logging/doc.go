// Package logging gives every illuminode package a named slog logger whose
// level can be tuned per module, from config or while the daemon runs.
//
// Records fan out to up to three sinks. The systemd journal is used when
// journald is reachable ([github.com/coreos/go-systemd/v22/journal.Enabled]).
// stdout gets text or JSON when it is a terminal, pipe or file. An in-memory
// ring buffer always receives everything; it serves GET /api/logs and the
// log event stream.
//
// Call [Initialize] once from the root command, then ask for a logger by
// module name:
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"transport": "debug"},
//	})
//
//	log := logging.GetLogger("session").With("session_id", id)
//	log.Debug("Command written", "command", wire)
//
// The module names in use are session, transport, script, mqtt, api, http,
// config, systemd, sim, cli and main. A module without an override follows
// the global level, including later changes to it.
//
// The same settings live under [logging] in the TOML file:
//
//	[logging]
//	level = "warn"
//
//	[logging.modules]
//	session = "debug"
//	mqtt = "error"
//
// [SetLevel] changes one module, or the global level for "", without a
// restart. PUT /api/logs/levels/{module} calls it and GET /api/logs/levels
// reports [Levels].
//
// In the journal each record is tagged SYSLOG_IDENTIFIER=illuminode and
// MODULE=<name>. Attribute keys become upper-case fields with anything
// outside [A-Z0-9_] replaced by an underscore, so a session can be followed
// with:
//
//	journalctl -t illuminode MODULE=session SESSION_ID=<id> -f
//	journalctl -t illuminode COMMAND=sc.red
package logging
