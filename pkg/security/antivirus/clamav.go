package antivirus

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strings"
	"time"
)

// clamd rejects INSTREAM chunks above StreamMaxLength; stay well under the default
const maxChunkSize = 1 << 20

// ClamAVScanner connects to clamd daemon for malware scanning
type ClamAVScanner struct {
	address string        // TCP address (host:port) or Unix socket path
	timeout time.Duration // Connection and scan timeout
}

var _ Scanner = (*ClamAVScanner)(nil)

// NewClamAVScanner creates a ClamAV scanner
// address: TCP "localhost:3310" or Unix socket "/var/run/clamav/clamd.sock"
func NewClamAVScanner(address string, timeout time.Duration) *ClamAVScanner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ClamAVScanner{
		address: address,
		timeout: timeout,
	}
}

func (c *ClamAVScanner) Name() string {
	return "clamav"
}

func (c *ClamAVScanner) dial(ctx context.Context, timeout time.Duration) (net.Conn, error) {
	network := "tcp"
	if strings.HasPrefix(c.address, "/") {
		network = "unix"
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, network, c.address)
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	conn.SetDeadline(deadline)
	return conn, nil
}

// Available checks if ClamAV daemon answers PING
func (c *ClamAVScanner) Available(ctx context.Context) bool {
	conn, err := c.dial(ctx, 5*time.Second)
	if err != nil {
		return false
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("zPING\x00")); err != nil {
		return false
	}
	reply, err := bufio.NewReader(conn).ReadString(0)
	if err != nil && reply == "" {
		return false
	}
	return strings.HasPrefix(reply, "PONG")
}

// Scan streams the attachment to clamd with the zINSTREAM command
func (c *ClamAVScanner) Scan(ctx context.Context, filename string, data []byte) ScanResult {
	result := ScanResult{ScannerName: c.Name()}
	fail := func(err error) ScanResult {
		result.Infected = true // Fail closed
		result.Error = err
		return result
	}

	conn, err := c.dial(ctx, c.timeout)
	if err != nil {
		return fail(fmt.Errorf("failed to connect to clamd: %w", err))
	}
	defer conn.Close()

	w := bufio.NewWriter(conn)
	if _, err := w.WriteString("zINSTREAM\x00"); err != nil {
		return fail(fmt.Errorf("failed to send command: %w", err))
	}

	// Each chunk is prefixed with its length as a big-endian uint32
	size := make([]byte, 4)
	for start := 0; start < len(data); start += maxChunkSize {
		end := start + maxChunkSize
		if end > len(data) {
			end = len(data)
		}
		binary.BigEndian.PutUint32(size, uint32(end-start))
		if _, err := w.Write(size); err != nil {
			return fail(fmt.Errorf("failed to send size: %w", err))
		}
		if _, err := w.Write(data[start:end]); err != nil {
			return fail(fmt.Errorf("failed to send file data: %w", err))
		}
	}

	// Zero-length chunk terminates the stream
	binary.BigEndian.PutUint32(size, 0)
	if _, err := w.Write(size); err != nil {
		return fail(fmt.Errorf("failed to send end marker: %w", err))
	}
	if err := w.Flush(); err != nil {
		return fail(fmt.Errorf("failed to flush stream: %w", err))
	}

	reply, err := bufio.NewReader(conn).ReadString(0)
	if err != nil && reply == "" {
		return fail(fmt.Errorf("failed to read response: %w", err))
	}

	return parseReply(result, strings.TrimSpace(strings.TrimRight(reply, "\x00")))
}

// parseReply interprets clamd responses:
// Clean: "stream: OK"
// Infected: "stream: Eicar-Signature FOUND"
// Error: "INSTREAM size limit exceeded. ERROR"
func parseReply(result ScanResult, reply string) ScanResult {
	switch {
	case strings.HasSuffix(reply, "FOUND"):
		result.Infected = true
		if parts := strings.SplitN(reply, ":", 2); len(parts) == 2 {
			result.ThreatName = strings.TrimSuffix(strings.TrimSpace(parts[1]), " FOUND")
		}
	case strings.HasSuffix(reply, "OK"):
	default:
		result.Infected = true
		result.Error = fmt.Errorf("scan error: %s", reply)
	}
	return result
}
