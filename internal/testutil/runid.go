package testutil

// FixedRunIDGenerator names every run the same, so a scenario's history
// and audit file name are the same on every execution.
//
// Unlike engine.FixedGenerator, which returns ids in sequence and panics
// when they run out, this generator never runs out.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator returns a generator for id. An empty id becomes
// "test-run-default".
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate implements engine.RunIDGenerator.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}
