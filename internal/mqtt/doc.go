// Package mqtt bridges one LED array session to an MQTT broker.
//
// # Topic Hierarchy
//
//	{prefix}/state     # retained DeviceState JSON after every change (bridge → broker)
//	{prefix}/log       # device info and error lines (bridge → broker)
//	{prefix}/status    # retained "online" / "offline", offline is the last will
//	{prefix}/command   # one wire mnemonic per payload line (broker → bridge)
//	{prefix}/result    # one CommandResult per executed line (bridge → broker)
//
// The default prefix is "illuminode". Commands from one payload run in
// order and stop at the first failure; lines after it are reported as
// skipped in the result of the failing line.
//
// # Debugging with mosquitto clients
//
// Watch everything the bridge publishes:
//
//	mosquitto_sub -h localhost -t 'illuminode/#' -v
//
// Clear the array and show a brightfield pattern:
//
//	mosquitto_pub -h localhost -t illuminode/command -m $'x\nbf'
//
// Start a DPC sequence with a 100 ms delay:
//
//	mosquitto_pub -h localhost -t illuminode/command -m $'x\nrdpc.100.1'
//
// # Message Formats
//
// CommandResult ({prefix}/result):
//
//	{
//	  "session_id": "1f0c...",
//	  "command": "rdpc.10.1",
//	  "ok": false,
//	  "code": "DEVICE_ERROR",
//	  "error": "[DEVICE_ERROR] rdpc.10.1: delay 10 ms is below hardware minimum 40 ms",
//	  "raw": "ERROR: delay 10 ms is below hardware minimum 40 ms",
//	  "timestamp": "2025-01-27T10:30:00Z"
//	}
//
// LogMessage ({prefix}/log):
//
//	{
//	  "session_id": "1f0c...",
//	  "command": "rdpc.100.1",
//	  "class": "info",
//	  "line": "Running DPC sequence: 1 acquisitions, 100 ms delay",
//	  "timestamp": "2025-01-27T10:30:00Z"
//	}
package mqtt
