package testutil

// FixedJobGenerator generates the same job token every time.
//
// This keeps the _job attribute stable so dumps of a test store can be
// compared against golden files.
//
// Thread-safety: FixedJobGenerator is stateless and safe for concurrent use.
type FixedJobGenerator struct {
	token string
}

// NewFixedJobGenerator creates a new fixed job token generator.
//
// If token is empty, Generate() returns "test-job-default".
func NewFixedJobGenerator(token string) *FixedJobGenerator {
	if token == "" {
		token = "test-job-default"
	}
	return &FixedJobGenerator{token: token}
}

// Generate returns the fixed job token.
//
// Implements judge.JobGenerator interface.
func (g *FixedJobGenerator) Generate() string {
	return g.token
}
