package executor

// Options configures an Executor.
type Options struct {
	// Concurrency bounds concurrent transport calls. Defaults to 4.
	Concurrency int
	// MaxPages caps the pages fetched per connection, counting the first.
	// 0 means unlimited. Capped connections end result.Partial.
	MaxPages int
}

type Option func(*Options)

func WithConcurrency(n int) Option { return func(o *Options) { o.Concurrency = n } }
func WithMaxPages(n int) Option    { return func(o *Options) { o.MaxPages = n } }

func defaultOptions() Options {
	return Options{Concurrency: 4}
}
