package course

import (
	"strings"
	"time"
)

type Status string

const (
	Draft     Status = "draft"
	Published Status = "published"
	Archived  Status = "archived"
)

type Category string

const (
	Programming Category = "programming"
	Design      Category = "design"
	Business    Category = "business"
	Marketing   Category = "marketing"
	DataScience Category = "data-science"
)

type Course struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Category      Category  `json:"category"`
	Instructor    string    `json:"instructor"`
	Thumbnail     string    `json:"thumbnail"`
	Duration      string    `json:"duration"`
	Lessons       int       `json:"lessons"`
	Status        Status    `json:"status"`
	Price         float64   `json:"price"`
	Rating        float64   `json:"rating"`
	StudentsCount int       `json:"studentsCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

type CourseNew struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	Category    Category `json:"category" validate:"required,oneof=programming design business marketing data-science"`
	Instructor  string   `json:"instructor" validate:"required"`
	Thumbnail   string   `json:"thumbnail" validate:"omitempty,url"`
	Duration    string   `json:"duration"`
	Lessons     int      `json:"lessons" validate:"gte=0"`
	Status      Status   `json:"status" validate:"required,oneof=draft published archived"`
	Price       float64  `json:"price" validate:"gte=0"`
}

type CourseUp struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Category    *Category `json:"category" validate:"omitempty,oneof=programming design business marketing data-science"`
	Instructor  *string   `json:"instructor"`
	Thumbnail   *string   `json:"thumbnail" validate:"omitempty,url"`
	Duration    *string   `json:"duration"`
	Lessons     *int      `json:"lessons" validate:"omitempty,gte=0"`
	Status      *Status   `json:"status" validate:"omitempty,oneof=draft published archived"`
	Price       *float64  `json:"price" validate:"omitempty,gte=0"`
}

// FilterAll disables a filter dimension.
const FilterAll = "all"

type Filters struct {
	Category string `json:"category"`
	Status   string `json:"status"`
	Search   string `json:"search"`
}

// Match reports whether the course passes every active filter
// dimension. Dimensions combine with AND; the search term matches the
// title case-insensitively.
func (f Filters) Match(c Course) bool {
	if f.Category != "" && f.Category != FilterAll && string(c.Category) != f.Category {
		return false
	}
	if f.Status != "" && f.Status != FilterAll && string(c.Status) != f.Status {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(c.Title), strings.ToLower(f.Search)) {
		return false
	}
	return true
}
