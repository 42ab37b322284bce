package catalog

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/irsalhamdi/edtech-platform/apperr"
	"github.com/irsalhamdi/edtech-platform/core/course"
	"github.com/irsalhamdi/edtech-platform/core/enrollment"
	"github.com/irsalhamdi/edtech-platform/core/profile"
	"github.com/irsalhamdi/edtech-platform/core/review"
	"github.com/irsalhamdi/edtech-platform/gateway"
	"github.com/irsalhamdi/edtech-platform/validate"
)

const dateLayout = "2006-01-02"

// fallbackReviewer is shown when the author's profile row is gone or
// not created yet.
const fallbackReviewer = "Usuário"

func toCourse(rec gateway.Record) (course.Course, error) {
	c, err := parseCourse(rec)
	if err != nil {
		return course.Course{}, apperr.Integrity(fmt.Errorf("course record: %w", err))
	}
	return c, nil
}

func parseCourse(rec gateway.Record) (course.Course, error) {
	var c course.Course
	var err error

	if c.ID, err = str(rec, "id"); err != nil {
		return c, err
	}
	if c.Title, err = str(rec, "title"); err != nil {
		return c, err
	}
	c.Description = optStr(rec, "description")

	cat, err := str(rec, "category")
	if err != nil {
		return c, err
	}
	c.Category = course.Category(cat)

	if c.Instructor, err = str(rec, "instructor"); err != nil {
		return c, err
	}
	c.Thumbnail = optStr(rec, "thumbnail")
	c.Duration = optStr(rec, "duration")

	if c.Lessons, err = count(rec, "lessons"); err != nil {
		return c, err
	}

	st, err := str(rec, "status")
	if err != nil {
		return c, err
	}
	c.Status = course.Status(st)

	if c.Price, err = num(rec, "price"); err != nil {
		return c, err
	}
	if c.Rating, err = num(rec, "rating"); err != nil {
		return c, err
	}
	if c.StudentsCount, err = count(rec, "students_count"); err != nil {
		return c, err
	}
	if c.CreatedAt, err = date(rec, "created_at"); err != nil {
		return c, err
	}

	return c, nil
}

func toEnrollment(rec gateway.Record) (enrollment.Enrollment, error) {
	e, err := parseEnrollment(rec)
	if err != nil {
		return enrollment.Enrollment{}, apperr.Integrity(fmt.Errorf("enrollment record: %w", err))
	}
	return e, nil
}

func parseEnrollment(rec gateway.Record) (enrollment.Enrollment, error) {
	var e enrollment.Enrollment
	var err error

	if e.ID, err = str(rec, "id"); err != nil {
		return e, err
	}
	if e.CourseID, err = str(rec, "course_id"); err != nil {
		return e, err
	}
	if e.UserID, err = str(rec, "user_id"); err != nil {
		return e, err
	}

	st, err := str(rec, "status")
	if err != nil {
		return e, err
	}
	e.Status = enrollment.Status(st)

	if e.Progress, err = count(rec, "progress"); err != nil {
		return e, err
	}
	if e.EnrolledAt, err = date(rec, "enrolled_at"); err != nil {
		return e, err
	}
	if e.CompletedAt, err = optDate(rec, "completed_at"); err != nil {
		return e, err
	}

	return e, nil
}

// toReview resolves the author's display data through the profile
// side-table keyed by user id.
func toReview(rec gateway.Record, profiles map[string]profile.Profile) (review.Review, error) {
	r, err := parseReview(rec, profiles)
	if err != nil {
		return review.Review{}, apperr.Integrity(fmt.Errorf("review record: %w", err))
	}
	return r, nil
}

func parseReview(rec gateway.Record, profiles map[string]profile.Profile) (review.Review, error) {
	var r review.Review
	var err error

	if r.ID, err = str(rec, "id"); err != nil {
		return r, err
	}
	if r.CourseID, err = str(rec, "course_id"); err != nil {
		return r, err
	}
	if r.UserID, err = str(rec, "user_id"); err != nil {
		return r, err
	}

	r.UserName = fallbackReviewer
	if p, ok := profiles[r.UserID]; ok {
		r.UserName = p.Name
		r.UserAvatar = p.Avatar
	}

	if r.Rating, err = count(rec, "rating"); err != nil {
		return r, err
	}
	if r.Comment, err = str(rec, "comment"); err != nil {
		return r, err
	}
	if r.CreatedAt, err = date(rec, "created_at"); err != nil {
		return r, err
	}
	if r.Helpful, err = count(rec, "helpful"); err != nil {
		return r, err
	}

	return r, nil
}

func toProfile(rec gateway.Record) (profile.Profile, error) {
	p, err := parseProfile(rec)
	if err != nil {
		return profile.Profile{}, apperr.Integrity(fmt.Errorf("profile record: %w", err))
	}
	return p, nil
}

func parseProfile(rec gateway.Record) (profile.Profile, error) {
	var p profile.Profile
	var err error

	if p.ID, err = str(rec, "id"); err != nil {
		return p, err
	}
	if p.Name, err = str(rec, "name"); err != nil {
		return p, err
	}
	p.Email = optStr(rec, "email")
	if avatar := optStr(rec, "avatar"); avatar != "" {
		p.Avatar = &avatar
	}

	return p, nil
}

func fromCourseNew(nc course.CourseNew) gateway.Record {
	return gateway.Record{
		"id":             validate.GenerateID(),
		"title":          nc.Title,
		"description":    nc.Description,
		"category":       string(nc.Category),
		"instructor":     nc.Instructor,
		"thumbnail":      nc.Thumbnail,
		"duration":       nc.Duration,
		"lessons":        nc.Lessons,
		"status":         string(nc.Status),
		"price":          nc.Price,
		"rating":         0,
		"students_count": 0,
		"created_at":     today(),
	}
}

func fromCourseUp(up course.CourseUp) gateway.Record {
	patch := gateway.Record{}
	if up.Title != nil {
		patch["title"] = *up.Title
	}
	if up.Description != nil {
		patch["description"] = *up.Description
	}
	if up.Category != nil {
		patch["category"] = string(*up.Category)
	}
	if up.Instructor != nil {
		patch["instructor"] = *up.Instructor
	}
	if up.Thumbnail != nil {
		patch["thumbnail"] = *up.Thumbnail
	}
	if up.Duration != nil {
		patch["duration"] = *up.Duration
	}
	if up.Lessons != nil {
		patch["lessons"] = *up.Lessons
	}
	if up.Status != nil {
		patch["status"] = string(*up.Status)
	}
	if up.Price != nil {
		patch["price"] = *up.Price
	}
	return patch
}

func fromEnrollmentNew(courseID string, userID string) gateway.Record {
	return gateway.Record{
		"id":          validate.GenerateID(),
		"course_id":   courseID,
		"user_id":     userID,
		"status":      string(enrollment.Active),
		"progress":    0,
		"enrolled_at": today(),
	}
}

func fromCompletion() gateway.Record {
	return gateway.Record{
		"status":       string(enrollment.Completed),
		"progress":     100,
		"completed_at": today(),
	}
}

func fromReviewNew(userID string, nr review.ReviewNew) gateway.Record {
	return gateway.Record{
		"id":         validate.GenerateID(),
		"course_id":  nr.CourseID,
		"user_id":    userID,
		"rating":     nr.Rating,
		"comment":    nr.Comment,
		"created_at": today(),
		"helpful":    0,
	}
}

func today() string {
	return time.Now().UTC().Format(dateLayout)
}

func str(rec gateway.Record, key string) (string, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		return "", fmt.Errorf("missing field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q is not a string", key)
	}
	return s, nil
}

func optStr(rec gateway.Record, key string) string {
	s, _ := rec[key].(string)
	return s
}

// num coerces remote numerics, which arrive as JSON numbers or, for
// decimal columns, as strings.
func num(rec gateway.Record, key string) (float64, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("missing field %q", key)
	}

	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("field %q is not numeric: %w", key, err)
		}
		return f, nil
	}

	return 0, fmt.Errorf("field %q is not numeric", key)
}

func count(rec gateway.Record, key string) (int, error) {
	f, err := num(rec, key)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// date truncates remote date-times to calendar-date granularity.
func date(rec gateway.Record, key string) (time.Time, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		return time.Time{}, fmt.Errorf("missing field %q", key)
	}

	t, err := parseDate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("field %q: %w", key, err)
	}
	return t, nil
}

func optDate(rec gateway.Record, key string) (*time.Time, error) {
	v, ok := rec[key]
	if !ok || v == nil {
		return nil, nil
	}

	t, err := parseDate(v)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", key, err)
	}
	return &t, nil
}

func parseDate(v interface{}) (time.Time, error) {
	if t, ok := v.(time.Time); ok {
		return truncate(t.UTC()), nil
	}

	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("value %v is not a date", v)
	}

	layouts := []string{dateLayout, time.RFC3339, "2006-01-02T15:04:05"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncate(t.UTC()), nil
		}
	}

	return time.Time{}, fmt.Errorf("value %q is not a date", s)
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// round1 rounds a rating to one decimal, the platform-wide display
// precision.
func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
