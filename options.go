package genie

import (
	"fmt"
	"time"
)

// DefaultDuration is the exit duration used when ExitOptions.Duration is zero.
const DefaultDuration = 400 * time.Millisecond

// ExitOptions configures one exit animation. The zero value is usable.
type ExitOptions struct {
	// Duration of the whole effect. Zero defaults to DefaultDuration.
	Duration time.Duration
	// Margin is the headroom added to the displacement scale. Zero defaults
	// to DefaultMargin.
	Margin float64
	// Debug mounts the encoded field behind the element at half opacity and
	// logs the derived parameters at debug level.
	Debug bool
	// Capabilities selects the phase policy and timeline strategy. Nil
	// defaults to DefaultCapabilities().
	Capabilities *Capabilities
	// Clock drives ManualTimeline. Nil uses the scheduler when it is a Clock,
	// otherwise a SystemClock.
	Clock Clock
	// OnComplete runs once when the animation finishes, is canceled, or
	// fails after starting. The error is nil on normal completion.
	OnComplete func(error)
}

// resolve fills in defaults and validates the options.
func (o ExitOptions) resolve(s Scheduler) (ExitOptions, error) {
	if o.Duration < 0 {
		return o, fmt.Errorf("%w: negative duration %v", ErrPrecondition, o.Duration)
	}
	if o.Duration == 0 {
		o.Duration = DefaultDuration
	}
	if !isFinite(o.Margin) || o.Margin < 0 {
		return o, fmt.Errorf("%w: margin %v must be finite and >= 0", ErrPrecondition, o.Margin)
	}
	if o.Margin == 0 {
		o.Margin = DefaultMargin
	}
	if o.Capabilities == nil {
		caps := DefaultCapabilities()
		o.Capabilities = &caps
	}
	if o.Clock == nil {
		if c, ok := s.(Clock); ok {
			o.Clock = c
		} else {
			o.Clock = NewSystemClock()
		}
	}
	return o, nil
}
