package logg

// Field names shared by component loggers.
const (
	Layer     = "layer"
	Operation = "operation"
	RunID     = "run_id"
	Step      = "step"
	Action    = "action"
	Selector  = "selector"
	URL       = "url"
	Model     = "model"
	Index     = "index"
)
