package domain

// DutyMax is the largest duty-cycle value a drive pin accepts.
const DutyMax = 255

// ActuatorCommand is the signed drive for both motors. Negative means reverse.
// A command is recomputed every tick and never read back.
type ActuatorCommand struct {
	Motor1 int
	Motor2 int
}

// Stopped is the fail-safe command.
var Stopped = ActuatorCommand{}

// IsStopped reports whether both motors are commanded to zero.
func (c ActuatorCommand) IsStopped() bool {
	return c.Motor1 == 0 && c.Motor2 == 0
}

// PinDuty is the duty cycle written to one motor's forward and reverse pins.
type PinDuty struct {
	Forward uint8
	Reverse uint8
}
