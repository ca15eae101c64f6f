package ports

// PWM writes a duty cycle in [0, 255] to one output pin.
type PWM interface {
	SetDuty(pin int, duty uint8) error
	Close() error
}

// Indicator is a single status light.
type Indicator interface {
	Set(on bool) error
}
