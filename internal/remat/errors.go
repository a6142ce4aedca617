package remat

import "fmt"

// Stages of a configure or fetch, reported in FetchError.Stage and logs.
const (
	StageConfigure = "configure"
	StageConnect   = "connect"
	StagePrepare   = "prepare"
	StageBind      = "bind"
	StageExecute   = "execute"
	StageMap       = "map"
)

// FetchError reports which stage of a rematerialization failed.
// Use errors.Is with the core sentinels to classify the cause.
type FetchError struct {
	Schema string
	Table  string
	Stage  string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("rematerialize %s: %s failed: %v", qualified(e.Schema, e.Table), e.Stage, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func qualified(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}
