package domain

// Keys of the flat shared store namespace.
const (
	KeyUsername          = "username"
	KeyAccessToken       = "accessToken"
	KeyRefreshToken      = "refreshToken"
	KeyLoggedIn          = "loggedIn"
	KeyCurrentTaskID     = "current_task_id"
	KeyCurrentTaskInfo   = "current_task_info"
	KeyPendingURL        = "pending_url"
	KeyPendingAnnotation = "pending_annotation"
)
