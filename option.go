package advfilter

import "github.com/pkg/errors"

// An Option is a configuration function, which configures the engine.
type Option func(*Engine) error

// OptUUID16Capacity sets the maximum number of 16-bit UUIDs a policy may hold.
func OptUUID16Capacity(n int) Option {
	return func(e *Engine) error {
		if n < 0 {
			return errors.New("filter: negative UUID capacity")
		}
		e.cap16 = n
		return nil
	}
}

// OptUUID32Capacity sets the maximum number of 32-bit UUIDs a policy may hold.
func OptUUID32Capacity(n int) Option {
	return func(e *Engine) error {
		if n < 0 {
			return errors.New("filter: negative UUID capacity")
		}
		e.cap32 = n
		return nil
	}
}

// OptDefaultConfig sets the policy active before the first configuration
// command. Capacity options must precede it.
func OptDefaultConfig(c Config) Option {
	return func(e *Engine) error {
		return e.Configure(c)
	}
}
