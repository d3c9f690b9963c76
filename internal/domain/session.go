package domain

// Session is the persisted login state. It is unencrypted in the shared store.
type Session struct {
	Username     string
	AccessToken  string
	RefreshToken string
	LoggedIn     bool
}

// Cleared reports whether every field is already in its logged-out form.
func (s Session) Cleared() bool {
	return !s.LoggedIn && s.Username == "" && s.AccessToken == "" && s.RefreshToken == ""
}

type Tokens struct {
	AccessToken  string
	RefreshToken string
}
