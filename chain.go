package advfilter

// A Handler is one filter stage: it inspects a raw HCI event packet
// {code, plen, payload} and returns a verdict.
type Handler func(b []byte) Status

// A CommandHandler executes one vendor command and returns the single status
// byte of its response.
type CommandHandler func(params []byte) byte

// A Chain dispatches events to the registered filter stages and vendor
// commands to their handlers. An event is delivered only if every stage
// accepts it. Register everything before the first dispatch; registration is
// not synchronized with dispatch.
type Chain struct {
	stages []Handler
	cmdh   map[uint16]CommandHandler
}

// NewChain returns an empty chain.
func NewChain() *Chain {
	return &Chain{cmdh: make(map[uint16]CommandHandler)}
}

// RegisterStage appends a filter stage to the chain.
func (c *Chain) RegisterStage(h Handler) {
	c.stages = append(c.stages, h)
}

// RegisterCommand registers the handler for a vendor opcode.
func (c *Chain) RegisterCommand(opcode uint16, h CommandHandler) {
	c.cmdh[opcode] = h
}

// Apply runs the event through every registered stage. The aggregate verdict
// is Accept iff all stages accept; the first Discard short-circuits.
func (c *Chain) Apply(b []byte) Status {
	for _, h := range c.stages {
		if h(b) == Discard {
			return Discard
		}
	}
	return Accept
}

// HandleCommand dispatches a vendor command. It reports false when no
// handler is registered for the opcode.
func (c *Chain) HandleCommand(opcode uint16, params []byte) (byte, bool) {
	h, ok := c.cmdh[opcode]
	if !ok {
		return 0, false
	}
	return h(params), true
}
