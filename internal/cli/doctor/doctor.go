// Package doctor runs diagnostic checks and prints their outcome.
package doctor

import "context"

// Result captures the outcome of a single diagnostic check.
type Result struct {
	Name    string
	Status  Status
	Details string
}

type Status string

const (
	StatusOK    Status = "ok"
	StatusWarn  Status = "warn"
	StatusError Status = "error"
)

// Check is one diagnostic.
type Check func(context.Context) Result

// Run executes checks in order.
func Run(ctx context.Context, checks ...Check) []Result {
	results := make([]Result, 0, len(checks))
	for _, check := range checks {
		results = append(results, check(ctx))
	}
	return results
}

func HasFailures(results []Result) bool {
	for _, res := range results {
		if res.Status == StatusError {
			return true
		}
	}
	return false
}
