package application

import (
	"strings"

	"github.com/bnema/taskwatch/internal/domain"
)

const taskIDPlaceholder = "{id}"

// Endpoints are the task server paths, relative to the server base URL.
type Endpoints struct {
	Login      string
	Refresh    string
	ActiveTask string
	Ingest     string
	// TaskInfo contains an "{id}" placeholder.
	TaskInfo string
}

func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:      "/api/token/",
		Refresh:    "/api/token/refresh/",
		ActiveTask: "/api/active-task/",
		Ingest:     "/api/ingest/",
		TaskInfo:   "/api/tasks/{id}/",
	}
}

func (e Endpoints) withDefaults() Endpoints {
	defaults := DefaultEndpoints()
	if strings.TrimSpace(e.Login) == "" {
		e.Login = defaults.Login
	}
	if strings.TrimSpace(e.Refresh) == "" {
		e.Refresh = defaults.Refresh
	}
	if strings.TrimSpace(e.ActiveTask) == "" {
		e.ActiveTask = defaults.ActiveTask
	}
	if strings.TrimSpace(e.Ingest) == "" {
		e.Ingest = defaults.Ingest
	}
	if strings.TrimSpace(e.TaskInfo) == "" {
		e.TaskInfo = defaults.TaskInfo
	}
	return e
}

func (e Endpoints) TaskInfoPath(id domain.TaskID) string {
	if !strings.Contains(e.TaskInfo, taskIDPlaceholder) {
		return strings.TrimRight(e.TaskInfo, "/") + "/" + id.String() + "/"
	}
	return strings.ReplaceAll(e.TaskInfo, taskIDPlaceholder, id.String())
}

func (e Endpoints) isLogin(path string) bool {
	return path == e.Login
}
