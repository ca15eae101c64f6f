package pwm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"

	"github.com/Eric-Butcher/RealTimeRobot/internal/ports"
)

// SerialConfig describes the link to the motor board.
type SerialConfig struct {
	Port        string        `yaml:"port"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// Handshake, when set, is the line the board prints once it is ready.
	Handshake string `yaml:"handshake"`
}

func (c *SerialConfig) ApplyDefaults() {
	if c.Baud == 0 {
		c.Baud = 115200
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 2 * time.Second
	}
}

func (c *SerialConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.Baud <= 0 {
		return errors.New("baud must be positive")
	}
	return nil
}

// Serial drives a microcontroller that performs analog writes on request.
// Each write is one text line: "W <pin> <duty>\n".
type Serial struct {
	mu   sync.Mutex
	port io.ReadWriteCloser
	in   *bufio.Reader
	out  *bufio.Writer
}

var _ ports.PWM = (*Serial)(nil)

// OpenSerial opens the port and waits for the handshake line if configured.
func OpenSerial(cfg SerialConfig) (*Serial, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Port, err)
	}
	s := NewSerial(port)
	if cfg.Handshake != "" {
		if err := s.await(cfg.Handshake); err != nil {
			port.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewSerial wraps an already open stream.
func NewSerial(rw io.ReadWriteCloser) *Serial {
	return &Serial{
		port: rw,
		in:   bufio.NewReader(rw),
		out:  bufio.NewWriter(rw),
	}
}

func (s *Serial) await(want string) error {
	ln, err := s.in.ReadString('\n')
	if err != nil {
		return fmt.Errorf("await %q: %w", want, err)
	}
	if got := strings.TrimSpace(ln); got != want {
		return fmt.Errorf("expected %q but got %q", want, got)
	}
	return nil
}

func (s *Serial) SetDuty(pin int, duty uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.out, "W %d %d\n", pin, duty); err != nil {
		return err
	}
	return s.out.Flush()
}

func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Close()
}
