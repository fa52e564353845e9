package adv

// Advertising data field types.
// Refer to Supplement to Bluetooth Core Specification | CSSv6, Part A.
const (
	Flags            = 0x01 // Flags
	SomeUUID16       = 0x02 // Incomplete List of 16-bit Service Class UUIDs
	AllUUID16        = 0x03 // Complete List of 16-bit Service Class UUIDs
	SomeUUID32       = 0x04 // Incomplete List of 32-bit Service Class UUIDs
	AllUUID32        = 0x05 // Complete List of 32-bit Service Class UUIDs
	SomeUUID128      = 0x06 // Incomplete List of 128-bit Service Class UUIDs
	AllUUID128       = 0x07 // Complete List of 128-bit Service Class UUIDs
	ShortName        = 0x08 // Shortened Local Name
	CompleteName     = 0x09 // Complete Local Name
	TxPower          = 0x0A // Tx Power Level
	ServiceSol16     = 0x14 // List of 16-bit Service Solicitation UUIDs
	ServiceSol128    = 0x15 // List of 128-bit Service Solicitation UUIDs
	ServiceData16    = 0x16 // Service Data - 16-bit UUID
	Appearance       = 0x19 // Appearance
	AdvInterval      = 0x1A // Advertising Interval
	ServiceSol32     = 0x1F // List of 32-bit Service Solicitation UUIDs
	ServiceData32    = 0x20 // Service Data - 32-bit UUID
	ServiceData128   = 0x21 // Service Data - 128-bit UUID
	ManufacturerData = 0xFF // Manufacturer Specific Data
)
