package advfilter

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/hcitools/advfilter/uuid"
)

func TestParseConfigRoundTrip(t *testing.T) {
	in := Config{
		Rules:         RuleRSSI | RuleServiceData16 | RuleAllUUID32,
		RSSIThreshold: -80,
		UUID16:        []uuid.UUID{uuid.UUID16(0x180F), uuid.UUID16(0x180A)},
		UUID32:        []uuid.UUID{uuid.UUID32(0x0000180A)},
	}
	out, err := ParseConfig(in.Marshal(), 8, 8)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if out.Rules != in.Rules || out.RSSIThreshold != -80 {
		t.Errorf("got rules %#x threshold %d", out.Rules, out.RSSIThreshold)
	}
	if len(out.UUID16) != 2 || !out.UUID16[0].Equal(uuid.UUID16(0x180F)) || !out.UUID16[1].Equal(uuid.UUID16(0x180A)) {
		t.Errorf("UUID16 list = %v", out.UUID16)
	}
	if len(out.UUID32) != 1 || !out.UUID32[0].Equal(uuid.UUID32(0x0000180A)) {
		t.Errorf("UUID32 list = %v", out.UUID32)
	}
}

func TestParseConfigNullBuffer(t *testing.T) {
	if _, err := ParseConfig(nil, 8, 8); errors.Cause(err) != ErrNullConfig {
		t.Errorf("ParseConfig(nil) = %v, want ErrNullConfig", err)
	}
	if _, err := ParseConfig([]byte{}, 8, 8); errors.Cause(err) != ErrNullConfig {
		t.Errorf("ParseConfig(empty) = %v, want ErrNullConfig", err)
	}
}

func TestParseConfigRejects(t *testing.T) {
	valid := Config{Rules: RuleRSSI, RSSIThreshold: -80}

	cases := []struct {
		name string
		b    []byte
	}{
		{"undefined rule bit", (&Config{Rules: 1 << 7, RSSIThreshold: -80}).Marshal()},
		{"rssi above max", (&Config{Rules: RuleRSSI, RSSIThreshold: -29}).Marshal()},
		{"rssi below min", append([]byte{0x01, 0, 0, 0, 0x87 /* -121 */}, 0, 0)},
		{"too short for header", valid.Marshal()[:5]},
		{"declared uuid16s missing", []byte{0x02, 0, 0, 0, 0x00, 2, 0x0F, 0x18, 0}},
		{"declared uuid32s missing", []byte{0x10, 0, 0, 0, 0x00, 0, 1, 0x0A, 0x18}},
		{"trailing bytes", append(valid.Marshal(), 0xFF)},
	}
	for _, c := range cases {
		if _, err := ParseConfig(c.b, 8, 8); errors.Cause(err) != ErrInvalidConfig {
			t.Errorf("%s: err = %v, want ErrInvalidConfig", c.name, err)
		}
	}
}

func TestParseConfigIgnoresThresholdWhenRSSIDisabled(t *testing.T) {
	c := Config{Rules: RuleServiceData16, RSSIThreshold: 20, UUID16: []uuid.UUID{uuid.UUID16(0x180F)}}
	out, err := ParseConfig(c.Marshal(), 8, 8)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if out.RSSIThreshold != 20 {
		t.Errorf("threshold = %d, want 20 carried through unvalidated", out.RSSIThreshold)
	}
}

func TestParseConfigCapacity(t *testing.T) {
	c := Config{
		Rules:  RuleAllUUID16,
		UUID16: []uuid.UUID{uuid.UUID16(1), uuid.UUID16(2), uuid.UUID16(3)},
	}
	if _, err := ParseConfig(c.Marshal(), 2, 8); errors.Cause(err) != ErrInvalidConfig {
		t.Errorf("uuid16 over capacity: err = %v", err)
	}
	c = Config{
		Rules:  RuleAllUUID32,
		UUID32: []uuid.UUID{uuid.UUID32(1), uuid.UUID32(2)},
	}
	if _, err := ParseConfig(c.Marshal(), 8, 1); errors.Cause(err) != ErrInvalidConfig {
		t.Errorf("uuid32 over capacity: err = %v", err)
	}
}

func TestHandleConfigureFiltering(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	c := Config{Rules: RuleRSSI | RuleServiceData16, RSSIThreshold: -70, UUID16: []uuid.UUID{uuid.UUID16(0x180F)}}
	if st := e.HandleConfigureFiltering(c.Marshal()); st != StatusSuccess {
		t.Fatalf("status = %#02x, want success", st)
	}
	got := e.Config()
	if got.RSSIThreshold != -70 || got.Rules != c.Rules {
		t.Errorf("active config = %+v", got)
	}
}

func TestRejectedCommandKeepsPriorConfig(t *testing.T) {
	e, err := NewEngine(OptUUID16Capacity(1))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	good := Config{Rules: RuleRSSI, RSSIThreshold: -75}
	if st := e.HandleConfigureFiltering(good.Marshal()); st != StatusSuccess {
		t.Fatalf("status = %#02x, want success", st)
	}

	bad := Config{
		Rules:  RuleRSSI | RuleAllUUID16,
		UUID16: []uuid.UUID{uuid.UUID16(1), uuid.UUID16(2)},
	}
	bad.RSSIThreshold = -75
	if st := e.HandleConfigureFiltering(bad.Marshal()); st != StatusInvalid {
		t.Fatalf("status = %#02x, want invalid", st)
	}
	got := e.Config()
	if got.Rules != RuleRSSI || got.RSSIThreshold != -75 || len(got.UUID16) != 0 {
		t.Errorf("prior config not retained: %+v", got)
	}
}

func TestConfigureValidatesUUIDWidths(t *testing.T) {
	e, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	c := Config{Rules: RuleAllUUID16, UUID16: []uuid.UUID{uuid.UUID32(0x180F)}}
	if err := e.Configure(c); errors.Cause(err) != ErrInvalidConfig {
		t.Errorf("Configure accepted a 4-byte UUID in the 16-bit list: %v", err)
	}
}

func TestOptDefaultConfig(t *testing.T) {
	c := Config{Rules: RuleAllUUID16, UUID16: []uuid.UUID{uuid.UUID16(0x180F)}}
	e, err := NewEngine(OptDefaultConfig(c))
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if got := e.Config(); got.Rules != RuleAllUUID16 || len(got.UUID16) != 1 {
		t.Errorf("default config not applied: %+v", got)
	}

	_, err = NewEngine(OptUUID16Capacity(0), OptDefaultConfig(c))
	if errors.Cause(err) != ErrInvalidConfig {
		t.Errorf("NewEngine accepted a default config over capacity: %v", err)
	}
}
