package domain

// Session carries the authenticated identity for every collaborator call.
// It is passed explicitly rather than read from ambient storage.
type Session struct {
	UserID string
	Token  string
}

func (s Session) Valid() bool {
	return s.UserID != "" && s.Token != ""
}
