// Package protocol models the text command grammar of the Illuminate LED-array firmware.
//
// # Requests
//
// Every command the device understands is a typed [Request]. Requests are plain values:
// construct them, call [Encode], and hand the bytes to a transport. Validation always runs
// before encoding, so an out-of-range value never reaches the wire.
//
//	wire, err := protocol.Encode(protocol.SetBrightness{Value: 128}) // "sb.128"
//	wire, err = protocol.Encode(protocol.RunDpcSequence{Params: protocol.SequenceParams{
//		DelayMs:      500,
//		Acquisitions: 2,
//	}}) // "rdpc.500.2"
//
// [Parse] is the inverse of [Encode] and accepts any wire mnemonic, which lets operators type
// raw commands ("sc.green", "l.0.1.2") while still going through validation.
//
// # Grammar
//
// Tokens are dot-separated and case-sensitive:
//
//	x                                  clear array
//	bf | an | dpc.t|b|l|r | cdpc      static patterns
//	sc.<red|green|blue|white>          color preset
//	sc.<r>.<g>.<b>                     custom color
//	sb.<0-255>                         brightness
//	na.<0-100>                         numerical aperture x100
//	sad.<mm>                           array distance
//	l.<i0>.<i1>...                     explicit LED list
//	rdpc.<delay>.<n>[.<t0>.<t1>.<t2>]  DPC acquisition sequence
//	rfpm.<delay>.<n>.<na>[.<t0>...]    FPM acquisition sequence
//
// Trigger fields are written only when at least one channel is non-zero.
//
// # Responses
//
// The firmware answers with newline-terminated lines. A [Decoder] classifies each line as
// informational, an error (prefixed with "ERROR") or the "-==-" response terminator, and
// helpers parse query payloads such as NA.<v>, DZ.<v> and the pprops JSON document.
package protocol
