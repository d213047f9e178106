package student

import "time"

// defaults of students whose identity provider did not share these
const (
	DefaultName  = "No Name"
	DefaultEmail = "No Email"
)

type Student struct {
	UID       string    `json:"uid"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	PhotoURL  string    `json:"photo_url"`
	CreatedAt time.Time `json:"created_at"` // UTC
}
