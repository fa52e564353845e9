package adv

import "github.com/pkg/errors"

// ErrStructureLength is returned when an AD structure declares a length that
// runs past the end of the advertising data.
var ErrStructureLength = errors.New("adv: structure length exceeds remaining data")

// A Structure is one length-prefixed, typed field of advertising data.
// Data is a view into the scanned blob; it is valid until the blob is reused.
type Structure struct {
	Type byte
	Data []byte
}

// A Scanner walks the AD structures of an advertising data blob, one
// structure per call to Next. It does not copy and does not allocate.
//
// The layout is a repetition of { length, type, length-1 data bytes }.
// A length byte of zero terminates the scan; the remainder of the blob is
// zero padding [CSSv6, Part A, 1.3]. A length byte running past the end of
// the blob stops the scan with ErrStructureLength.
type Scanner struct {
	b    []byte
	s    Structure
	err  error
	done bool
}

// NewScanner returns a Scanner over the advertising data blob b.
func NewScanner(b []byte) *Scanner {
	return &Scanner{b: b}
}

// Next advances to the next AD structure. It returns false when the blob is
// exhausted or malformed; the two cases are told apart by Err.
func (s *Scanner) Next() bool {
	if s.done || len(s.b) == 0 {
		return false
	}
	l := int(s.b[0])
	if l == 0 {
		s.done = true
		return false
	}
	if len(s.b) < 1+l {
		s.err = errors.Wrapf(ErrStructureLength, "need %d bytes, have %d", 1+l, len(s.b))
		s.done = true
		return false
	}
	s.s = Structure{Type: s.b[1], Data: s.b[2 : 1+l]}
	s.b = s.b[1+l:]
	return true
}

// Structure returns the AD structure read by the last successful Next.
func (s *Scanner) Structure() Structure { return s.s }

// Err returns the first malformed-data error hit by Next, if any.
func (s *Scanner) Err() error { return s.err }

// AppendStructure appends one AD structure to b and returns the extended blob.
func AppendStructure(b []byte, typ byte, data []byte) []byte {
	b = append(b, byte(len(data)+1), typ)
	return append(b, data...)
}
