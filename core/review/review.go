package review

import "time"

type Review struct {
	ID         string    `json:"id"`
	CourseID   string    `json:"courseId"`
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	UserAvatar *string   `json:"userAvatar,omitempty"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"createdAt"`
	Helpful    int       `json:"helpful"`
}

type ReviewNew struct {
	CourseID string `json:"courseId" validate:"required"`
	Rating   int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment  string `json:"comment" validate:"required"`
}
