package enrollment

import "time"

type Status string

const (
	Active    Status = "active"
	Completed Status = "completed"
	Paused    Status = "paused"
)

type Enrollment struct {
	ID          string     `json:"id"`
	CourseID    string     `json:"courseId"`
	UserID      string     `json:"userId"`
	Status      Status     `json:"status"`
	Progress    int        `json:"progress"`
	EnrolledAt  time.Time  `json:"enrolledAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type ProgressUp struct {
	Progress int `json:"progress" validate:"gte=0,lte=100"`
}
