package model

// Importer is implemented by every API model built from a larch record.
type Importer interface {
	// Import fills the API model from a record of the model or perf
	// package.
	Import(interface{}) error
}

// Model is an API model that also converts back into the record it
// describes, as entries posted to the service do.
type Model interface {
	Importer
	// Export returns the record the API model describes.
	Export() (interface{}, error)
}

var (
	_ Model    = &APISuiteSummary{}
	_ Model    = &APIPoint{}
	_ Model    = &APIEntry{}
	_ Importer = &APIChangePoint{}
	_ Importer = &APIVerdict{}
)
