package fact

// Version constants stamped on facts the runtime creates.
const (
	// SchemaVersion is the store schema generation.
	SchemaVersion = 1

	// RuntimeVersion is the judge runtime version, written as _version.
	RuntimeVersion = "factbase 0.1.0"
)
