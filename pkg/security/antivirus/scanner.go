package antivirus

import (
	"context"
	"errors"
)

// ScanResult contains the result of a malware scan
type ScanResult struct {
	Infected    bool   // True if malware was detected
	ThreatName  string // Name of detected threat (empty if clean)
	ScannerName string // Name of scanner that produced this result
	Error       error  // Any error that occurred during scanning
}

// ErrNoScanner is reported when no scanner in a chain is reachable
var ErrNoScanner = errors.New("no antivirus scanner available")

// Scanner checks attachment content before it is mailed or archived.
// Attachments are rejected on detection; scan errors fail closed.
type Scanner interface {
	// Scan returns Infected=true whenever Error is set
	Scan(ctx context.Context, filename string, data []byte) ScanResult

	// Name returns the scanner implementation name (for logging)
	Name() string

	// Available checks if the scanner is operational
	Available(ctx context.Context) bool
}

// NoOpScanner always reports clean. Used when no clamd address is configured.
type NoOpScanner struct{}

var _ Scanner = (*NoOpScanner)(nil)

func (n *NoOpScanner) Scan(ctx context.Context, filename string, data []byte) ScanResult {
	return ScanResult{ScannerName: n.Name()}
}

func (n *NoOpScanner) Name() string {
	return "noop"
}

func (n *NoOpScanner) Available(ctx context.Context) bool {
	return true
}

func NewNoOpScanner() *NoOpScanner {
	return &NoOpScanner{}
}

// ChainScanner runs every available scanner and fails if any detects malware
// or errors. With no scanner available it fails closed with ErrNoScanner.
type ChainScanner struct {
	scanners []Scanner
}

var _ Scanner = (*ChainScanner)(nil)

func NewChainScanner(scanners ...Scanner) *ChainScanner {
	return &ChainScanner{scanners: scanners}
}

func (c *ChainScanner) Scan(ctx context.Context, filename string, data []byte) ScanResult {
	ran := false
	for _, s := range c.scanners {
		if !s.Available(ctx) {
			continue
		}
		ran = true
		if res := s.Scan(ctx, filename, data); res.Infected || res.Error != nil {
			return res
		}
	}
	if !ran {
		return ScanResult{Infected: true, ScannerName: c.Name(), Error: ErrNoScanner}
	}
	return ScanResult{ScannerName: c.Name()}
}

func (c *ChainScanner) Name() string {
	return "chain"
}

func (c *ChainScanner) Available(ctx context.Context) bool {
	for _, s := range c.scanners {
		if s.Available(ctx) {
			return true
		}
	}
	return false
}
