// Package pid implements the dual-gain-scheduled PID controller from spec
// §4.2. It is deliberately not built on a general-purpose PID library:
// the spec pins down an exact anti-windup clamp and a derivative-on-
// measurement term, and testable invariants P6/P7 depend on that precise
// shape, not on whatever internal smoothing a third-party controller
// applies. See DESIGN.md for the libraries that were considered and
// passed over for this reason.
package pid

// Gains is one Kp/Ki/Kd set.
type Gains struct {
	Kp float64
	Ki float64
	Kd float64
}

// Controller is a single-input single-output PID with gain scheduling
// between an aggressive and a conservative gain set, anti-windup, and
// derivative-on-measurement.
type Controller struct {
	aggressive   Gains
	conservative Gains
	threshold    float64 // |error| above which the aggressive set is used
	outputMin    float64
	outputMax    float64

	setpoint float64
	enabled  bool

	integral  float64
	lastInput float64
	haveInput bool
	output    float64
}

// New returns a disabled controller with the given gain sets, switch
// threshold, and output clamp.
func New(aggressive, conservative Gains, threshold, outputMin, outputMax float64) *Controller {
	return &Controller{
		aggressive:   aggressive,
		conservative: conservative,
		threshold:    threshold,
		outputMin:    outputMin,
		outputMax:    outputMax,
	}
}

// SetSetpoint updates the target temperature.
func (c *Controller) SetSetpoint(setpoint float64) { c.setpoint = setpoint }

// Setpoint returns the current target.
func (c *Controller) Setpoint() float64 { return c.setpoint }

// Enable arms the controller; it still needs Reset (or a first Update)
// before it produces a meaningful output.
func (c *Controller) Enable() { c.enabled = true }

// Disable forces the output to zero and stops integration, per spec I3.
func (c *Controller) Disable() {
	c.enabled = false
	c.output = 0
}

// Enabled reports whether the controller is currently active.
func (c *Controller) Enabled() bool { return c.enabled }

// Reset clears the integrator, the derivative memory, and the output.
func (c *Controller) Reset() {
	c.integral = 0
	c.lastInput = 0
	c.haveInput = false
	c.output = 0
}

// Output returns the last computed actuator command, in [outputMin, outputMax].
func (c *Controller) Output() float64 { return c.output }

// Update advances the controller by one sample. dt is in seconds; a
// non-positive dt is a no-op (clock didn't advance, or went backwards).
func (c *Controller) Update(current float64, dt float64) float64 {
	if !c.enabled {
		c.output = 0
		return c.output
	}
	if dt <= 0 {
		return c.output
	}

	errVal := c.setpoint - current
	gains := c.conservative
	if absf(errVal) > c.threshold {
		gains = c.aggressive
	}

	p := gains.Kp * errVal

	if gains.Ki != 0 {
		windupLimit := absf((c.outputMax - c.outputMin) / gains.Ki)
		c.integral = clamp(c.integral+errVal*dt, -windupLimit, windupLimit)
	}
	iTerm := gains.Ki * c.integral

	var d float64
	if c.haveInput {
		d = -gains.Kd * (current - c.lastInput) / dt
	}
	c.lastInput = current
	c.haveInput = true

	c.output = clamp(p+iTerm+d, c.outputMin, c.outputMax)
	return c.output
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
