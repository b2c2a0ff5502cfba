// Package logging sets up the glove's console log sink.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"
)

// Options selects the log level and an optional serial console mirror.
type Options struct {
	Level      string
	SerialPort string
	SerialBaud int
}

// OpenSerial opens a serial port for writing. Replaced in tests.
var OpenSerial = func(port string, baud int) (io.WriteCloser, error) {
	return serial.Open(serial.OpenOptions{
		PortName:        port,
		BaudRate:        uint(baud),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	})
}

// Setup configures the standard logrus logger. Logs always go to stderr;
// when SerialPort is set they are mirrored there too. A serial port that
// will not open is reported and skipped. The returned closer releases the
// port and is never nil.
func Setup(opts Options) (io.Closer, error) {
	level := opts.Level
	if level == "" {
		level = "info"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nopCloser{}, fmt.Errorf("logging: %w", err)
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)

	if opts.SerialPort == "" {
		return nopCloser{}, nil
	}
	port, err := OpenSerial(opts.SerialPort, opts.SerialBaud)
	if err != nil {
		log.Warnf("serial console %s unavailable, logging to stderr only: %v", opts.SerialPort, err)
		return nopCloser{}, nil
	}
	log.SetOutput(io.MultiWriter(os.Stderr, port))
	log.Printf("serial console mirror on %s at %d baud", opts.SerialPort, opts.SerialBaud)
	return closerFunc(func() error {
		log.SetOutput(os.Stderr)
		return port.Close()
	}), nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
