package models

// Feature is a catalog entry that groups and signals are matched against.
// Read-only input to the engine. The Embedding is populated during catalog
// warm-up and may be nil when no embedding provider is configured.
type Feature struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Embedding   []float32 `json:"-" yaml:"-"`
}

// Text returns the feature's text representation used for similarity
// comparison against cluster content.
func (f *Feature) Text() string {
	if f.Description == "" {
		return f.Name
	}
	return f.Name + "\n\n" + f.Description
}
