package domain

import (
	"encoding/json"
	"strconv"
)

type TaskID int

const (
	NoTask TaskID = -1
	// TaskIndeterminate is reported when the server could not be reached. It is
	// never persisted.
	TaskIndeterminate TaskID = -2
)

func (id TaskID) Active() bool {
	return id >= 0
}

func (id TaskID) String() string {
	return strconv.Itoa(int(id))
}

type TaskStateKind string

const (
	TaskStateNone          TaskStateKind = "none"
	TaskStateActive        TaskStateKind = "active"
	TaskStateIndeterminate TaskStateKind = "indeterminate"
)

type TaskState struct {
	Kind TaskStateKind
	ID   TaskID
}

func TaskStateFor(id TaskID) TaskState {
	switch {
	case id == TaskIndeterminate:
		return TaskState{Kind: TaskStateIndeterminate, ID: TaskIndeterminate}
	case id.Active():
		return TaskState{Kind: TaskStateActive, ID: id}
	default:
		return TaskState{Kind: TaskStateNone, ID: NoTask}
	}
}

// TaskInfo is the server-supplied question and metadata for the current task.
// It is kept opaque.
type TaskInfo json.RawMessage

type TransitionKind string

const (
	TransitionStarted  TransitionKind = "started"
	TransitionFinished TransitionKind = "finished"
)

type Transition struct {
	Kind   TransitionKind
	TaskID TaskID
}
