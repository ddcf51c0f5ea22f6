package regcodec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/five82/mbdeck/internal/fault"
)

const (
	printableMin = 32
	printableMax = 126
	maxCharCode  = 0xFF
	placeholder  = '?'
)

// EncodeText packs text two characters per word, first character in the high
// byte. An odd trailing character is paired with a zero low byte. Characters
// above 0xFF do not fit a byte slot and are rejected with fault.CodecRange.
func EncodeText(text string) ([]uint16, error) {
	codes := make([]uint16, 0, len(text))
	pos := 0
	for _, r := range text {
		if r < 0 || r > maxCharCode {
			return nil, fault.New(fault.CodecRange, "encode", "character %q at position %d is outside 0x00-0xFF", r, pos)
		}
		codes = append(codes, uint16(r))
		pos++
	}

	words := make([]uint16, 0, (len(codes)+1)/2)
	for i := 0; i < len(codes); i += 2 {
		hi := codes[i]
		var lo uint16
		if i+1 < len(codes) {
			lo = codes[i+1]
		}
		words = append(words, hi<<8|lo)
	}
	return words, nil
}

// DecodeRegisters unpacks words into text, high byte first. Printable ASCII
// bytes decode to themselves, zero bytes are skipped and every other byte
// becomes '?'. The mapping is lossy: distinct non-printable bytes decode to
// the same '?' and cannot be recovered.
func DecodeRegisters(words []uint16) string {
	var b strings.Builder
	b.Grow(len(words) * 2)
	for _, w := range words {
		for _, c := range [2]byte{byte(w >> 8), byte(w)} {
			switch {
			case c == 0:
			case isPrintable(c):
				b.WriteByte(c)
			default:
				b.WriteByte(placeholder)
			}
		}
	}
	return b.String()
}

// IsLikelyText reports whether any byte of words is printable ASCII. It is a
// display hint only.
func IsLikelyText(words []uint16) bool {
	for _, w := range words {
		if isPrintable(byte(w>>8)) || isPrintable(byte(w)) {
			return true
		}
	}
	return false
}

func isPrintable(c byte) bool {
	return c >= printableMin && c <= printableMax
}

// AddressedBlock is a run of register values anchored at a start address.
type AddressedBlock struct {
	Start  int
	End    int
	Values []uint16
}

// Len returns the number of addresses the block spans.
func (b AddressedBlock) Len() int {
	return b.End - b.Start + 1
}

// Range renders the block's address span as "start-end", the format the
// backing service uses for address_range.
func (b AddressedBlock) Range() string {
	return fmt.Sprintf("%d-%d", b.Start, b.End)
}

// PackRecordBlock anchors values at start. The block spans length addresses;
// length must be at least 1.
func PackRecordBlock(values []uint16, start, length int) (AddressedBlock, error) {
	if length < 1 {
		return AddressedBlock{}, fault.New(fault.Validation, "pack record", "length must be at least 1, got %d", length)
	}
	if start < 0 {
		return AddressedBlock{}, fault.New(fault.Validation, "pack record", "start address must not be negative, got %d", start)
	}
	out := make([]uint16, len(values))
	copy(out, values)
	return AddressedBlock{
		Start:  start,
		End:    start + length - 1,
		Values: out,
	}, nil
}

// ParseValues reads a comma separated list of register values. Entries that
// are not integers are skipped; integers outside 0-65535 are an error. An
// input with no usable entry is a validation error.
func ParseValues(input string) ([]uint16, error) {
	var out []uint16
	for _, field := range strings.Split(input, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.ParseInt(field, 0, 64)
		if err != nil {
			continue
		}
		if n < 0 || n > 0xFFFF {
			return nil, fault.New(fault.InvalidValue, "parse values", "%d is outside 0-65535", n)
		}
		out = append(out, uint16(n))
	}
	if len(out) == 0 {
		return nil, fault.New(fault.Validation, "parse values", "expected comma separated numbers")
	}
	return out, nil
}

// FormatHex renders words as 0xHHHH tokens.
func FormatHex(words []uint16) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = fmt.Sprintf("0x%04X", w)
	}
	return out
}
