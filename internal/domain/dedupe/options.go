package dedupe

// Option applies a configuration option to the deduper.
type Option func(*trialDeduper)

// WithMaxSize bounds the number of remembered ids. Zero or negative keeps
// every id.
func WithMaxSize(maxSize int) Option {
	return func(d *trialDeduper) {
		d.maxSize = maxSize
	}
}
