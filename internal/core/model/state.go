package model

type State string

const (
	StateRequested         State = "requested"
	StatePermissionChecked State = "permission_checked"
	StateSchemaFetched     State = "schema_fetched"
	StateQueryBuilt        State = "query_built"
	StateFeaturesRetrieved State = "features_retrieved"
	StateFeaturesWritten   State = "features_written"
	StateBBoxWritten       State = "bbox_written"
	StateCompleted         State = "completed"
	StateSkipped           State = "skipped"
	StateFailed            State = "failed"
)

// Terminal reports whether no further transition can follow.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateSkipped || s == StateFailed
}

type Transition struct {
	JobID  string
	State  State
	Reason string
}
