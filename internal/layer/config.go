package layer

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig wraps every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid convolution config")

// Config holds the hyperparameters of a ConvolutionLayer.
type Config struct {
	Name        string
	InChannels  int
	OutChannels int
	KernelH     int
	KernelW     int
	StrideH     int
	StrideW     int
	PaddingH    int
	PaddingW    int
	DilationH   int
	DilationW   int
	Groups      int
	UseBias     bool
}

// DefaultConfig returns a stride 1, padding 0, dilation 1, single group
// configuration.
func DefaultConfig(inChannels, outChannels, kernelH, kernelW int) Config {
	return Config{
		InChannels:  inChannels,
		OutChannels: outChannels,
		KernelH:     kernelH,
		KernelW:     kernelW,
		StrideH:     1,
		StrideW:     1,
		DilationH:   1,
		DilationW:   1,
		Groups:      1,
	}
}

// KernelChannels returns the channel count of each kernel, InChannels/Groups.
func (c Config) KernelChannels() int {
	return c.InChannels / c.Groups
}

// Validate checks that every hyperparameter is in range and that Groups
// divides both channel counts.
func (c Config) Validate() error {
	switch {
	case c.InChannels < 1 || c.OutChannels < 1:
		return fmt.Errorf("%w: channels must be positive, got in=%d out=%d", ErrInvalidConfig, c.InChannels, c.OutChannels)
	case c.KernelH < 1 || c.KernelW < 1:
		return fmt.Errorf("%w: kernel size must be positive, got %dx%d", ErrInvalidConfig, c.KernelH, c.KernelW)
	case c.StrideH < 1 || c.StrideW < 1:
		return fmt.Errorf("%w: stride must be positive, got %dx%d", ErrInvalidConfig, c.StrideH, c.StrideW)
	case c.DilationH < 1 || c.DilationW < 1:
		return fmt.Errorf("%w: dilation must be positive, got %dx%d", ErrInvalidConfig, c.DilationH, c.DilationW)
	case c.PaddingH < 0 || c.PaddingW < 0:
		return fmt.Errorf("%w: padding must be non-negative, got %dx%d", ErrInvalidConfig, c.PaddingH, c.PaddingW)
	case c.Groups < 1:
		return fmt.Errorf("%w: groups must be positive, got %d", ErrInvalidConfig, c.Groups)
	case c.InChannels%c.Groups != 0:
		return fmt.Errorf("%w: groups %d does not divide in channels %d", ErrInvalidConfig, c.Groups, c.InChannels)
	case c.OutChannels%c.Groups != 0:
		return fmt.Errorf("%w: groups %d does not divide out channels %d", ErrInvalidConfig, c.Groups, c.OutChannels)
	}
	return nil
}
