package differ

// DiffConfig holds configuration for content diffing
type DiffConfig struct {
	// IgnoreWhitespace treats changes that only touch whitespace as trivial.
	IgnoreWhitespace      bool
	EnableSemanticCleanup bool
	// MaxDiffBytes skips the line diff for larger inputs; such changes are
	// scored at full severity.
	MaxDiffBytes int
}

// DefaultDiffConfig returns default configuration
func DefaultDiffConfig() DiffConfig {
	return DiffConfig{
		IgnoreWhitespace:      true,
		EnableSemanticCleanup: true,
		MaxDiffBytes:          5 * 1024 * 1024,
	}
}
