package domain

const (
	AxisMin    = 0
	AxisMax    = 0xFFF
	AxisMiddle = AxisMax / 2

	// Buttons are wired to pull-ups: released reads high.
	ButtonPressed  = 0
	ButtonReleased = 1
)

// ControllerState is the consumer's local mirror of every channel.
type ControllerState struct {
	ThumbStickX      int32
	ThumbStickY      int32
	ThumbStickButton uint8
	YellowButton     uint8
	RedButton        uint8
	GreenButton      uint8
	BlueButton       uint8
}

// NeutralState is the state both ends assume before any update arrives.
func NeutralState() ControllerState {
	return ControllerState{
		ThumbStickX:      AxisMiddle,
		ThumbStickY:      AxisMiddle,
		ThumbStickButton: ButtonReleased,
		YellowButton:     ButtonReleased,
		RedButton:        ButtonReleased,
		GreenButton:      ButtonReleased,
		BlueButton:       ButtonReleased,
	}
}

// Get returns the field bound to id.
func (s ControllerState) Get(id ChannelID) int32 {
	switch id {
	case ThumbStickXAxis:
		return s.ThumbStickX
	case ThumbStickYAxis:
		return s.ThumbStickY
	case ThumbStickButton:
		return int32(s.ThumbStickButton)
	case YellowButton:
		return int32(s.YellowButton)
	case RedButton:
		return int32(s.RedButton)
	case GreenButton:
		return int32(s.GreenButton)
	case BlueButton:
		return int32(s.BlueButton)
	default:
		return 0
	}
}

// Set stores v into the field bound to id. Button values are truncated to a byte.
func (s *ControllerState) Set(id ChannelID, v int32) {
	switch id {
	case ThumbStickXAxis:
		s.ThumbStickX = v
	case ThumbStickYAxis:
		s.ThumbStickY = v
	case ThumbStickButton:
		s.ThumbStickButton = uint8(v)
	case YellowButton:
		s.YellowButton = uint8(v)
	case RedButton:
		s.RedButton = uint8(v)
	case GreenButton:
		s.GreenButton = uint8(v)
	case BlueButton:
		s.BlueButton = uint8(v)
	}
}

// Values flattens the state for logging and telemetry.
func (s ControllerState) Values() map[string]float64 {
	out := make(map[string]float64, int(channelCount))
	for id := ChannelID(0); id < channelCount; id++ {
		out[id.String()] = float64(s.Get(id))
	}
	return out
}
