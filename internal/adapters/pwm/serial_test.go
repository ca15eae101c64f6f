package pwm

import (
	"bytes"
	"io"
	"testing"
)

type pipe struct {
	io.Reader
	bytes.Buffer
	closed bool
}

func (p *pipe) Write(b []byte) (int, error) { return p.Buffer.Write(b) }
func (p *pipe) Read(b []byte) (int, error)  { return p.Reader.Read(b) }
func (p *pipe) Close() error                { p.closed = true; return nil }

func TestSerialWritesTextProtocol(t *testing.T) {
	p := &pipe{Reader: bytes.NewReader(nil)}
	s := NewSerial(p)

	if err := s.SetDuty(7, 0); err != nil {
		t.Fatalf("set duty: %v", err)
	}
	if err := s.SetDuty(6, 255); err != nil {
		t.Fatalf("set duty: %v", err)
	}
	if got := p.Buffer.String(); got != "W 7 0\nW 6 255\n" {
		t.Fatalf("unexpected wire output %q", got)
	}
	if err := s.Close(); err != nil || !p.closed {
		t.Fatalf("expected close to reach the port")
	}
}

func TestSerialHandshake(t *testing.T) {
	s := NewSerial(&pipe{Reader: bytes.NewReader([]byte("ready\r\n"))})
	if err := s.await("ready"); err != nil {
		t.Fatalf("await: %v", err)
	}

	s = NewSerial(&pipe{Reader: bytes.NewReader([]byte("boot\n"))})
	if err := s.await("ready"); err == nil {
		t.Fatalf("expected handshake mismatch")
	}
}

func TestSerialConfigValidate(t *testing.T) {
	var c SerialConfig
	c.ApplyDefaults()
	if c.Baud != 115200 {
		t.Fatalf("expected default baud 115200, got %d", c.Baud)
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected missing port error")
	}
}
