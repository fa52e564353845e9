package advfilter

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/hcitools/advfilter/uuid"
)

// ConfigureFilteringOpcode is the vendor-specific opcode of the filter
// configuration command. It must not collide with any other vendor command.
const ConfigureFilteringOpcode = 0xFF11

// Single-byte command response codes, per the Bluetooth spec.
const (
	StatusSuccess = 0x00
	StatusInvalid = 0x12 // generic error
)

// ErrNullConfig is returned when the configuration buffer is absent.
var ErrNullConfig = errors.New("filter: missing configuration buffer")

// ErrInvalidConfig is returned when a configuration violates the bitmask,
// RSSI range or UUID capacity constraints, or its buffer does not cover the
// declared UUID counts.
var ErrInvalidConfig = errors.New("filter: invalid configuration")

// ParseConfig parses a configuration command payload into a Config:
//
//	enabled rules  4 bytes, little-endian, bits 0-6 defined
//	rssi threshold 1 byte, signed, validated only with the RSSI rule enabled
//	uuid16 count   1 byte, followed by count 2-byte UUIDs
//	uuid32 count   1 byte, followed by count 4-byte UUIDs
//
// cap16 and cap32 bound the UUID list sizes. The UUID lists are copied out
// of b; the caller may reuse the buffer afterwards.
func ParseConfig(b []byte, cap16, cap32 int) (*Config, error) {
	if len(b) == 0 {
		return nil, ErrNullConfig
	}
	if len(b) < 6 {
		return nil, errors.Wrapf(ErrInvalidConfig, "payload of %d bytes", len(b))
	}
	c := &Config{
		Rules:         Rule(binary.LittleEndian.Uint32(b)),
		RSSIThreshold: int8(b[4]),
	}
	if c.Rules&^RuleAll != 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "undefined rule bits in %#08x", uint32(c.Rules))
	}
	if c.Rules&RuleRSSI != 0 && (c.RSSIThreshold < RSSIMin || c.RSSIThreshold > RSSIMax) {
		return nil, errors.Wrapf(ErrInvalidConfig, "rssi threshold %d dBm out of [%d, %d]", c.RSSIThreshold, RSSIMin, RSSIMax)
	}

	n16, rest := int(b[5]), b[6:]
	if n16 > cap16 {
		return nil, errors.Wrapf(ErrInvalidConfig, "%d 16-bit UUIDs exceeds capacity %d", n16, cap16)
	}
	if len(rest) < 2*n16+1 {
		return nil, errors.Wrapf(ErrInvalidConfig, "%d 16-bit UUIDs declared, %d bytes remain", n16, len(rest))
	}
	c.UUID16, rest = copyUUIDs(rest, n16, 2), rest[2*n16:]

	n32, rest := int(rest[0]), rest[1:]
	if n32 > cap32 {
		return nil, errors.Wrapf(ErrInvalidConfig, "%d 32-bit UUIDs exceeds capacity %d", n32, cap32)
	}
	if len(rest) != 4*n32 {
		return nil, errors.Wrapf(ErrInvalidConfig, "%d 32-bit UUIDs declared, %d bytes remain", n32, len(rest))
	}
	c.UUID32 = copyUUIDs(rest, n32, 4)
	return c, nil
}

func copyUUIDs(b []byte, n, width int) []uuid.UUID {
	if n == 0 {
		return nil
	}
	us := make([]uuid.UUID, n)
	for i := 0; i < n; i++ {
		u := make(uuid.UUID, width)
		copy(u, b[i*width:])
		us[i] = u
	}
	return us
}

// Marshal encodes the policy as a configuration command payload, the inverse
// of ParseConfig.
func (c *Config) Marshal() []byte {
	b := make([]byte, 6, 7+2*len(c.UUID16)+4*len(c.UUID32))
	binary.LittleEndian.PutUint32(b, uint32(c.Rules))
	b[4] = byte(c.RSSIThreshold)
	b[5] = byte(len(c.UUID16))
	for _, u := range c.UUID16 {
		b = append(b, u...)
	}
	b = append(b, byte(len(c.UUID32)))
	for _, u := range c.UUID32 {
		b = append(b, u...)
	}
	return b
}

// Configure validates c and atomically replaces the active policy with a
// copy of it. On error the previous policy stays in force.
func (e *Engine) Configure(c Config) error {
	if c.Rules&^RuleAll != 0 {
		return errors.Wrapf(ErrInvalidConfig, "undefined rule bits in %#08x", uint32(c.Rules))
	}
	if c.Rules&RuleRSSI != 0 && (c.RSSIThreshold < RSSIMin || c.RSSIThreshold > RSSIMax) {
		return errors.Wrapf(ErrInvalidConfig, "rssi threshold %d dBm out of [%d, %d]", c.RSSIThreshold, RSSIMin, RSSIMax)
	}
	if len(c.UUID16) > e.cap16 {
		return errors.Wrapf(ErrInvalidConfig, "%d 16-bit UUIDs exceeds capacity %d", len(c.UUID16), e.cap16)
	}
	if len(c.UUID32) > e.cap32 {
		return errors.Wrapf(ErrInvalidConfig, "%d 32-bit UUIDs exceeds capacity %d", len(c.UUID32), e.cap32)
	}
	for _, u := range c.UUID16 {
		if u.Len() != 2 {
			return errors.Wrapf(ErrInvalidConfig, "16-bit UUID list holds a %d-byte UUID", u.Len())
		}
	}
	for _, u := range c.UUID32 {
		if u.Len() != 4 {
			return errors.Wrapf(ErrInvalidConfig, "32-bit UUID list holds a %d-byte UUID", u.Len())
		}
	}
	cc := c
	cc.UUID16 = append([]uuid.UUID(nil), c.UUID16...)
	cc.UUID32 = append([]uuid.UUID(nil), c.UUID32...)
	e.cfg.Store(&cc)
	return nil
}

// HandleConfigureFiltering is the command handler for
// ConfigureFilteringOpcode. It maps a successful reconfiguration to
// StatusSuccess and any validation failure to StatusInvalid, leaving the
// active policy untouched on failure.
func (e *Engine) HandleConfigureFiltering(params []byte) byte {
	c, err := ParseConfig(params, e.cap16, e.cap32)
	if err != nil {
		logger.Warn("rejected filter configuration", "err", err.Error())
		return StatusInvalid
	}
	e.cfg.Store(c)
	logger.Info("filter configuration replaced",
		"rules", uint32(c.Rules), "uuid16", len(c.UUID16), "uuid32", len(c.UUID32))
	return StatusSuccess
}
