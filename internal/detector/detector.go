// Package detector handles platform detection.
package detector

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/retroenv/contractcfg/internal/arch/evm"
	"github.com/retroenv/contractcfg/internal/arch/neo"
	"github.com/retroenv/contractcfg/internal/arch/wasm"
	"github.com/retroenv/contractcfg/internal/options"
	"github.com/retroenv/retrogolib/log"
)

// Platforms returns the names of all supported platforms.
func Platforms() []string {
	return []string{neo.Name, evm.Name, wasm.Name}
}

// headerSize is the number of bytes read from the input file to detect the module format.
const headerSize = 4

// Detector handles platform detection from options, file extensions and file content.
type Detector struct {
	logger *log.Logger
}

// New creates a new platform detector.
func New(logger *log.Logger) *Detector {
	return &Detector{
		logger: logger,
	}
}

// Detect determines the platform from options or file auto-detection.
// It first checks if a platform is explicitly specified in options, otherwise
// attempts to detect the platform from the input filename extension and the
// module header.
func (d *Detector) Detect(opts options.Program) (string, error) {
	if opts.Platform != "" {
		platform := strings.ToLower(opts.Platform)
		if !slices.Contains(Platforms(), platform) {
			return "", fmt.Errorf("unsupported platform '%s'", opts.Platform)
		}
		return platform, nil
	}

	platform := d.detectFromFile(opts.Input)
	if platform == "" {
		platform = d.detectFromContent(opts.Input)
	}
	d.logger.Debug("Auto-detected platform",
		log.String("platform", platform),
		log.String("file", opts.Input))
	return platform, nil
}

// detectFromFile determines the platform based on file extension.
func (d *Detector) detectFromFile(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".avm":
		return neo.Name
	case ".wasm":
		return wasm.Name
	case ".evm", ".bin", ".hex":
		return evm.Name
	default:
		return ""
	}
}

// detectFromContent checks the file header for the wasm module magic and defaults to EVM
// bytecode for unknown content.
func (d *Detector) detectFromContent(filename string) string {
	file, err := os.Open(filename)
	if err != nil {
		return evm.Name
	}
	defer func() { _ = file.Close() }()

	header := make([]byte, headerSize)
	n, err := io.ReadFull(file, header)
	if err != nil {
		return evm.Name
	}
	if wasm.HasMagic(header[:n]) {
		return wasm.Name
	}
	return evm.Name
}
