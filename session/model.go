package session

import "time"

// Session is the value stored for an opaque token.
type Session struct {
	Token     string
	SubjectID string
	Role      string
	AutoLogin bool
	IssuedAt  int64
}

// Claims is the identity a caller asks [Service.Issue] to persist.
type Claims struct {
	SubjectID string
	Role      string
	AutoLogin bool
}

// IssuedTime returns IssuedAt as a time.Time.
func (s *Session) IssuedTime() time.Time {
	return time.Unix(s.IssuedAt, 0)
}
