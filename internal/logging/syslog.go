package logging

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"asnblock/internal/brand"
)

// SyslogConfig holds syslog output configuration. The default address is
// the local syslog socket; a host:port address with protocol udp or tcp
// targets a remote server instead.
type SyslogConfig struct {
	Enabled  bool
	Address  string // "/dev/log" or "host:port"
	Protocol string // unixgram, udp or tcp
	Tag      string
	Facility int
}

// DefaultSyslogConfig returns sensible defaults.
func DefaultSyslogConfig() SyslogConfig {
	return SyslogConfig{
		Enabled:  false,
		Address:  "/dev/log",
		Protocol: "unixgram",
		Tag:      brand.BinaryName,
		Facility: 1, // LOG_USER
	}
}

// SyslogWriter implements io.Writer and sends RFC 3164 formatted lines
// to a syslog daemon.
type SyslogWriter struct {
	mu     sync.Mutex
	conn   net.Conn
	config SyslogConfig
}

// NewSyslogWriter creates a new syslog writer.
func NewSyslogWriter(cfg SyslogConfig) (*SyslogWriter, error) {
	if cfg.Address == "" {
		cfg.Address = "/dev/log"
	}
	if cfg.Protocol == "" {
		if cfg.Address[0] == '/' {
			cfg.Protocol = "unixgram"
		} else {
			cfg.Protocol = "udp"
		}
	}
	if cfg.Tag == "" {
		cfg.Tag = brand.BinaryName
	}

	conn, err := net.DialTimeout(cfg.Protocol, cfg.Address, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to syslog at %s: %w", cfg.Address, err)
	}

	return &SyslogWriter{conn: conn, config: cfg}, nil
}

// Write implements io.Writer for syslog.
// Format: <priority>timestamp tag: message
func (w *SyslogWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return 0, fmt.Errorf("syslog connection closed")
	}

	// Priority = facility * 8 + severity (INFO).
	priority := w.config.Facility*8 + 6
	timestamp := time.Now().Format(time.Stamp)
	msg := fmt.Sprintf("<%d>%s %s: %s", priority, timestamp, w.config.Tag, string(p))

	if _, err = w.conn.Write([]byte(msg)); err != nil {
		w.reconnect()
		return 0, err
	}
	return len(p), nil
}

func (w *SyslogWriter) reconnect() {
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	conn, err := net.DialTimeout(w.config.Protocol, w.config.Address, 5*time.Second)
	if err != nil {
		return
	}
	w.conn = conn
}

// Close closes the syslog connection.
func (w *SyslogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn != nil {
		err := w.conn.Close()
		w.conn = nil
		return err
	}
	return nil
}

// MultiWriter combines multiple io.Writers (e.g., stderr + syslog).
func MultiWriter(writers ...io.Writer) io.Writer {
	return io.MultiWriter(writers...)
}
