package profile

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

type Profile struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Email  string  `json:"email"`
	Avatar *string `json:"avatar,omitempty"`
}
