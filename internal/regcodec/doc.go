// Package regcodec converts between 16-bit register words and the structured
// payloads the console edits: ASCII text and addressed record blocks.
//
// # Text packing
//
// Two characters share one register. The first character occupies the high
// byte and the second the low byte:
//
//	"AB"  -> [0x4142]
//	"ABC" -> [0x4142, 0x4300]
//
// An odd trailing character is paired with a zero low byte. Each byte slot
// holds 8 bits, so characters above 0xFF cannot be stored and EncodeText
// rejects them with fault.CodecRange instead of truncating them.
//
// # Decoding
//
// DecodeRegisters walks the words in order and maps every byte:
//
//   - 32..126 decodes to the ASCII character
//   - 0 is a terminator and contributes nothing
//   - anything else becomes a literal '?'
//
// Decoding is lossy. Different non-printable bytes all render as '?', and a
// zero byte inside a string disappears. The round trip
//
//	DecodeRegisters(EncodeText(s)) == s
//
// holds for every printable-ASCII s. For odd lengths the padding byte is zero
// and vanishes on decode; for other input the round trip is not promised.
//
// IsLikelyText is a display hint used by the record tools to decide whether
// a decoded text line is worth showing. It never influences writes.
//
// # Record blocks
//
// PackRecordBlock anchors a run of values at a start address and computes the
// inclusive end address (start+length-1). File records on the backing service
// map one-to-one onto holding registers, so a record number is used directly
// as the start address.
//
// All functions are pure and safe for concurrent use.
package regcodec
