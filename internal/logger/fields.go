package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Standard tracing fields, propagated through the call chain via context.
const (
	// FieldRunID is the per-tick run identifier (UUID)
	FieldRunID = "run_id"

	// FieldJob is the scheduler job identifier
	FieldJob = "job"

	// FieldMarketplace is the marketplace instance name
	FieldMarketplace = "marketplace"

	// FieldItem is the item spec name
	FieldItem = "item"

	// FieldListing is the listing ID within its marketplace
	FieldListing = "listing"

	// FieldComponent is the component/module name
	FieldComponent = "component"
)

// Standard metric fields, used for aggregation and alerting.
const (
	// FieldDurationMs is the execution duration in milliseconds
	FieldDurationMs = "duration_ms"

	// FieldCount is a generic count field
	FieldCount = "count"

	// FieldClassification is the cache verdict for a listing
	FieldClassification = "classification"
)
