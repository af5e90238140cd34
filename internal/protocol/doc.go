// Package protocol owns the LoRa basestation wire contract.
//
// Ownership boundary:
// - fixed 9-byte message header
// - typed payload variants (image fragment, sensor reading, notice)
// - frame encoding helpers used by node simulators
//
// Framing (the leading length byte) lives in protocol/frame.
package protocol
