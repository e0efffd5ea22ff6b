package v1

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	configFile string
	store      string
	batchSize  int
	topK       int
	summaries  bool
	seed       int64
	hasSeed    bool
}

// WithConfigFile sets the config file path.
func WithConfigFile(path string) Option {
	return func(c *clientConfig) {
		c.configFile = path
	}
}

// WithStore sets the artifact directory used by Fit, Load, and Save.
func WithStore(dir string) Option {
	return func(c *clientConfig) {
		c.store = dir
	}
}

// WithBatchSize joins this many documents per embedding input.
func WithBatchSize(n int) Option {
	return func(c *clientConfig) {
		c.batchSize = n
	}
}

// WithTopK sets the number of neighbors consulted by Infer.
func WithTopK(k int) Option {
	return func(c *clientConfig) {
		c.topK = k
	}
}

// WithoutSummaries disables LLM topic labeling.
func WithoutSummaries() Option {
	return func(c *clientConfig) {
		c.summaries = false
	}
}

// WithSeed fixes the sampling seed for reproducible fits.
func WithSeed(seed int64) Option {
	return func(c *clientConfig) {
		c.seed = seed
		c.hasSeed = true
	}
}
