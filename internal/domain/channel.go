package domain

import (
	"encoding/binary"
	"fmt"
)

// ChannelID names one logical input exposed by the controller.
type ChannelID int

const (
	ThumbStickXAxis ChannelID = iota
	ThumbStickYAxis
	ThumbStickButton
	YellowButton
	RedButton
	GreenButton
	BlueButton

	channelCount
)

var channelNames = [...]string{
	ThumbStickXAxis:  "thumb_stick_x_axis",
	ThumbStickYAxis:  "thumb_stick_y_axis",
	ThumbStickButton: "thumb_stick_button",
	YellowButton:     "yellow_button",
	RedButton:        "red_button",
	GreenButton:      "green_button",
	BlueButton:       "blue_button",
}

func (id ChannelID) String() string {
	if id < 0 || id >= channelCount {
		return fmt.Sprintf("channel(%d)", int(id))
	}
	return channelNames[id]
}

// ParseChannelID maps a configured channel name back to its ID.
func ParseChannelID(name string) (ChannelID, error) {
	for i, n := range channelNames {
		if n == name {
			return ChannelID(i), nil
		}
	}
	return 0, fmt.Errorf("unknown channel %q", name)
}

// Width is the declared wire width of a channel value.
type Width string

const (
	WidthInt32 Width = "int32"
	WidthByte  Width = "byte"
)

// Size returns the number of payload bytes for the width.
func (w Width) Size() int {
	switch w {
	case WidthInt32:
		return 4
	case WidthByte:
		return 1
	default:
		return 0
	}
}

// Channel is a named, typed, subscribable remote attribute.
type Channel struct {
	ID    ChannelID
	UUID  string
	Width Width
}

// Decode converts a raw attribute payload into an integer value.
// int32 channels are little-endian signed, byte channels unsigned.
func (c Channel) Decode(p []byte) (int32, error) {
	n := c.Width.Size()
	if n == 0 {
		return 0, fmt.Errorf("channel %s: unsupported width %q", c.ID, c.Width)
	}
	if len(p) < n {
		return 0, fmt.Errorf("channel %s: short payload: got %d bytes, want %d", c.ID, len(p), n)
	}
	if c.Width == WidthByte {
		return int32(p[0]), nil
	}
	return int32(binary.LittleEndian.Uint32(p[:4])), nil
}

// Encode is the inverse of Decode.
func (c Channel) Encode(v int32) []byte {
	if c.Width == WidthByte {
		return []byte{byte(v)}
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return b[:]
}

// Session identifiers shared by both ends of the link.
const (
	ControllerServiceUUID = "547b5676-0377-480f-b6f8-2a94873c07ec"
	ControllerLocalName   = "DUCKS_Controller"
	ReceiverLocalName     = "DUCKS_Central"
)

// DefaultChannels is the deployment channel set in subscription order.
func DefaultChannels() []Channel {
	return []Channel{
		{ID: ThumbStickXAxis, UUID: "5b03b0ef-c8db-4ef0-adf6-09e23d41a68d", Width: WidthInt32},
		{ID: ThumbStickYAxis, UUID: "b1169c28-5e12-4213-a4ff-0aa316f233cc", Width: WidthInt32},
		{ID: ThumbStickButton, UUID: "c2dd566c-65bb-4d28-8708-227c923433cf", Width: WidthByte},
		{ID: YellowButton, UUID: "b273ac1b-e05f-4e47-a508-6c87d89e46eb", Width: WidthByte},
		{ID: RedButton, UUID: "6db0dbd7-8830-4e3d-b885-baf0e4c75d93", Width: WidthByte},
		{ID: GreenButton, UUID: "ec339d10-06c3-4ad0-80dc-0066f0fea2b9", Width: WidthByte},
		{ID: BlueButton, UUID: "473abf6f-2591-427d-9ae9-9546d01e2287", Width: WidthByte},
	}
}
