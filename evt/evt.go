package evt

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Event codes handled by the filter.
const (
	// LEMetaCode is the LE Meta Event code [Vol 4, Part E, 7.7.65].
	LEMetaCode = 0x3E

	// LEExtendedAdvertisingReportSubCode is the LE Extended Advertising
	// Report sub-event code [Vol 4, Part E, 7.7.65.13].
	LEExtendedAdvertisingReportSubCode = 0x0D
)

// MaxDataLength is the maximum AD data length carried by a single LE
// Extended Advertising Report.
const MaxDataLength = 229

// EventTypeDataIncomplete is the Data Status bit of the report's event type:
// set when the advertising data is incomplete and further fragments of the
// report chain follow.
const EventTypeDataIncomplete uint16 = 1 << 5

// ErrInvalidLength is returned by Valid when the report buffer is shorter
// than its fixed header or than its declared AD data.
var ErrInvalidLength = errors.New("evt: invalid report length")

// Field offsets within the LE Meta payload, starting at the sub-event code.
const (
	// RSSIOffset is the offset of the RSSI field within the report.
	RSSIOffset = 15

	headerLength = 26
)

// LEExtendedAdvertisingReport is the LE Meta payload of an LE Extended
// Advertising Report event, accessed in place. The accessors do not bounds
// check; call Valid first on untrusted input. The layout assumes a single
// report per event, which is how controllers emit extended reports.
type LEExtendedAdvertisingReport []byte

// SubeventCode returns the sub-event code.
func (e LEExtendedAdvertisingReport) SubeventCode() uint8 { return e[0] }

// NumReports returns the number of reports in the event.
func (e LEExtendedAdvertisingReport) NumReports() uint8 { return e[1] }

// EventType returns the event type bit field of the report.
func (e LEExtendedAdvertisingReport) EventType() uint16 {
	return binary.LittleEndian.Uint16(e[2:])
}

// DataIncomplete reports whether the Data Status bits mark this report as an
// intermediate fragment of a chained advertisement.
func (e LEExtendedAdvertisingReport) DataIncomplete() bool {
	return e.EventType()&EventTypeDataIncomplete != 0
}

// AddressType returns the advertiser address type.
func (e LEExtendedAdvertisingReport) AddressType() uint8 { return e[4] }

// Address returns the advertiser address, little-endian.
func (e LEExtendedAdvertisingReport) Address() [6]byte {
	b := [6]byte{}
	copy(b[:], e[5:])
	return b
}

// PrimaryPHY returns the advertiser PHY on the primary channel.
func (e LEExtendedAdvertisingReport) PrimaryPHY() uint8 { return e[11] }

// SecondaryPHY returns the advertiser PHY on the secondary channel.
func (e LEExtendedAdvertisingReport) SecondaryPHY() uint8 { return e[12] }

// AdvertisingSID returns the advertising set identifier.
func (e LEExtendedAdvertisingReport) AdvertisingSID() uint8 { return e[13] }

// TxPower returns the advertised transmit power in dBm.
func (e LEExtendedAdvertisingReport) TxPower() int8 { return int8(e[14]) }

// RSSI returns the received signal strength in dBm.
func (e LEExtendedAdvertisingReport) RSSI() int8 { return int8(e[RSSIOffset]) }

// PeriodicAdvertisingInterval returns the periodic advertising interval.
func (e LEExtendedAdvertisingReport) PeriodicAdvertisingInterval() uint16 {
	return binary.LittleEndian.Uint16(e[16:])
}

// DirectedAddressType returns the target address type of a directed report.
func (e LEExtendedAdvertisingReport) DirectedAddressType() uint8 { return e[18] }

// DirectedAddress returns the target address of a directed report.
func (e LEExtendedAdvertisingReport) DirectedAddress() [6]byte {
	b := [6]byte{}
	copy(b[:], e[19:])
	return b
}

// DataLength returns the declared length of the AD data.
func (e LEExtendedAdvertisingReport) DataLength() int { return int(e[25]) }

// Data returns the AD data blob, borrowed from the event buffer.
func (e LEExtendedAdvertisingReport) Data() []byte {
	return e[headerLength : headerLength+e.DataLength()]
}

// Valid checks that the buffer holds the fixed report header and covers the
// declared AD data.
func (e LEExtendedAdvertisingReport) Valid() error {
	if len(e) < headerLength {
		return errors.Wrapf(ErrInvalidLength, "header needs %d bytes, have %d", headerLength, len(e))
	}
	if e.DataLength() > MaxDataLength {
		return errors.Wrapf(ErrInvalidLength, "data length %d exceeds %d", e.DataLength(), MaxDataLength)
	}
	if len(e) < headerLength+e.DataLength() {
		return errors.Wrapf(ErrInvalidLength, "data needs %d bytes, have %d", headerLength+e.DataLength(), len(e))
	}
	return nil
}
