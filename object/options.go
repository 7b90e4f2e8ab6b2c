package object

type newOptions struct {
	fixed bool
}

// Option configures Constructor.New.
type Option func(*newOptions)

// Fixed places the new object in foreign memory right away.
func Fixed() Option {
	return func(o *newOptions) { o.fixed = true }
}
