// Package advfilter filters LE Extended Advertising Report HCI events
// against an operator-configured policy of RSSI threshold and service UUID
// lists, before the events reach the upper host stack.
package advfilter

import (
	"sync/atomic"

	"github.com/mgutz/logxi/v1"

	"github.com/hcitools/advfilter/adv"
	"github.com/hcitools/advfilter/evt"
	"github.com/hcitools/advfilter/uuid"
)

var logger = log.New("filter")

// Status is the verdict of one filter stage for one event.
type Status int

const (
	// Accept lets the event through to the host.
	Accept Status = iota
	// Discard suppresses the event.
	Discard
)

func (s Status) String() string {
	if s == Accept {
		return "accept"
	}
	return "discard"
}

// Rule is a bitmask of enabled filtering rules. The bit assignment is part
// of the configuration wire format and must not change.
type Rule uint32

const (
	RuleRSSI          Rule = 1 << iota // filter on RSSI threshold
	RuleServiceData16                  // Service Data - 16-bit UUID
	RuleSomeUUID16                     // Incomplete List of 16-bit Service Class UUIDs
	RuleAllUUID16                      // Complete List of 16-bit Service Class UUIDs
	RuleServiceData32                  // Service Data - 32-bit UUID
	RuleSomeUUID32                     // Incomplete List of 32-bit Service Class UUIDs
	RuleAllUUID32                      // Complete List of 32-bit Service Class UUIDs
)

// RuleAll covers every defined rule bit.
const RuleAll = RuleRSSI | RuleServiceData16 | RuleSomeUUID16 | RuleAllUUID16 |
	RuleServiceData32 | RuleSomeUUID32 | RuleAllUUID32

// ruleUUID covers the rule bits evaluated by the UUID stage.
const ruleUUID = RuleAll &^ RuleRSSI

// Valid RSSI threshold range, in dBm.
const (
	RSSIMin = -120
	RSSIMax = -30
)

// Default policy applied until the first configuration command.
const (
	DefaultRSSIThreshold  = -80
	DefaultUUID16Capacity = 8
	DefaultUUID32Capacity = 8
)

// Config is one filtering policy. It is replaced wholesale on
// reconfiguration, never mutated in place.
type Config struct {
	Rules         Rule
	RSSIThreshold int8
	UUID16        []uuid.UUID
	UUID32        []uuid.UUID
}

// matchStructure reports whether s matches an enabled UUID rule.
func (c *Config) matchStructure(s adv.Structure) bool {
	switch s.Type {
	case adv.ServiceData16:
		return c.Rules&RuleServiceData16 != 0 && matchServiceData(c.UUID16, 2, s.Data)
	case adv.ServiceData32:
		return c.Rules&RuleServiceData32 != 0 && matchServiceData(c.UUID32, 4, s.Data)
	case adv.SomeUUID16:
		return c.Rules&RuleSomeUUID16 != 0 && matchUUIDList(c.UUID16, 2, s.Data)
	case adv.AllUUID16:
		return c.Rules&RuleAllUUID16 != 0 && matchUUIDList(c.UUID16, 2, s.Data)
	case adv.SomeUUID32:
		return c.Rules&RuleSomeUUID32 != 0 && matchUUIDList(c.UUID32, 4, s.Data)
	case adv.AllUUID32:
		return c.Rules&RuleAllUUID32 != 0 && matchUUIDList(c.UUID32, 4, s.Data)
	}
	return false
}

// matchServiceData reports whether the UUID leading a service data field is
// in list. A field shorter than one UUID matches nothing.
func matchServiceData(list []uuid.UUID, width int, data []byte) bool {
	if len(data) < width {
		return false
	}
	return uuid.Contains(list, uuid.UUID(data[:width]))
}

// matchUUIDList reports whether any UUID of a packed service class UUID list
// is in list. A trailing partial UUID is ignored.
func matchUUIDList(list []uuid.UUID, width int, data []byte) bool {
	for ; len(data) >= width; data = data[width:] {
		if uuid.Contains(list, uuid.UUID(data[:width])) {
			return true
		}
	}
	return false
}

// Engine owns the active filtering policy and the advertising-report chain
// state, and exposes the two filter stages. Construct one with NewEngine and
// register it on a Chain.
type Engine struct {
	cfg atomic.Pointer[Config]

	cap16 int
	cap32 int

	// inChain is set while the advertiser's chained report sequence is in
	// progress. There is one flag for the whole engine, not one per
	// advertiser: reports of interleaved chains from multiple advertisers
	// will confuse it. Touched only from the event path.
	inChain bool
}

// NewEngine returns an engine with the default policy active.
func NewEngine(opts ...Option) (*Engine, error) {
	e := &Engine{
		cap16: DefaultUUID16Capacity,
		cap32: DefaultUUID32Capacity,
	}
	e.cfg.Store(&Config{
		Rules:         RuleRSSI,
		RSSIThreshold: DefaultRSSIThreshold,
	})
	if err := e.Option(opts...); err != nil {
		return nil, err
	}
	return e, nil
}

// Option sets the options specified.
func (e *Engine) Option(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return err
		}
	}
	return nil
}

// Config returns a snapshot of the active policy.
func (e *Engine) Config() Config {
	return *e.cfg.Load()
}

// Register wires the engine's filter stages and its configuration command
// into the chain.
func (e *Engine) Register(c *Chain) {
	c.RegisterStage(e.FilterByRSSI)
	c.RegisterStage(e.FilterByUUID)
	c.RegisterCommand(ConfigureFilteringOpcode, e.HandleConfigureFiltering)
}

// decodeReport frames a raw HCI event packet {code, plen, payload} as an
// extended advertising report. When done is true the stage is finished and
// must return the verdict as is: Accept for events outside the filter's
// jurisdiction, Discard for packets that cannot be decoded safely.
func decodeReport(b []byte) (rep evt.LEExtendedAdvertisingReport, verdict Status, done bool) {
	if len(b) < 2 {
		return nil, Discard, true
	}
	if b[0] != evt.LEMetaCode {
		return nil, Accept, true
	}
	payload := b[2:]
	if len(payload) < 1 {
		return nil, Discard, true
	}
	if payload[0] != evt.LEExtendedAdvertisingReportSubCode {
		return nil, Accept, true
	}
	if int(b[1]) != len(payload) {
		return nil, Discard, true
	}
	return evt.LEExtendedAdvertisingReport(payload), Accept, false
}

// FilterByRSSI is the RSSI filter stage. It accepts every event when the
// RSSI rule is disabled or the event is not an extended advertising report,
// and otherwise accepts exactly the reports whose RSSI is at or above the
// configured threshold. Undecodable reports are discarded.
func (e *Engine) FilterByRSSI(b []byte) Status {
	cfg := e.cfg.Load()
	if cfg.Rules&RuleRSSI == 0 {
		return Accept
	}
	rep, verdict, done := decodeReport(b)
	if done {
		return verdict
	}
	if len(rep) <= evt.RSSIOffset {
		logger.Debug("discarding truncated report", "len", len(rep))
		return Discard
	}
	if rep.RSSI() < cfg.RSSIThreshold {
		return Discard
	}
	return Accept
}

// FilterByUUID is the UUID filter stage. It accepts every event when no UUID
// rule is enabled or the event is not an extended advertising report. The
// opening and closing fragments of a chained report sequence bypass
// inspection. Otherwise the report is accepted iff any AD structure matches
// an enabled UUID rule; malformed reports are discarded.
func (e *Engine) FilterByUUID(b []byte) Status {
	cfg := e.cfg.Load()
	if cfg.Rules&ruleUUID == 0 {
		return Accept
	}
	rep, verdict, done := decodeReport(b)
	if done {
		return verdict
	}
	if err := rep.Valid(); err != nil {
		logger.Debug("discarding malformed report", "err", err.Error())
		return Discard
	}

	// Boundary fragments of a report chain pass through unfiltered so the
	// host can reassemble the chain it has already started receiving.
	if !e.inChain {
		if rep.DataIncomplete() {
			e.inChain = true
			return Accept
		}
	} else if !rep.DataIncomplete() {
		e.inChain = false
		return Accept
	}

	s := adv.NewScanner(rep.Data())
	for s.Next() {
		if cfg.matchStructure(s.Structure()) {
			return Accept
		}
	}
	if err := s.Err(); err != nil {
		logger.Debug("discarding report with malformed AD data", "err", err.Error())
	}
	return Discard
}
