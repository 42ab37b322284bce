// Package analytics derives reporting figures from catalog snapshots.
// Everything here is a pure function over slices; nothing talks to the
// remote store.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/irsalhamdi/edtech-platform/core/course"
	"github.com/irsalhamdi/edtech-platform/core/enrollment"
	"github.com/irsalhamdi/edtech-platform/core/review"
)

// Summary aggregates one student's enrollments for their dashboard.
type Summary struct {
	Enrolled    int     `json:"enrolled"`
	Completed   int     `json:"completed"`
	InProgress  int     `json:"inProgress"`
	AvgProgress float64 `json:"avgProgress"`
}

// StudentSummary computes the per-student figures. Paused enrollments
// count towards the total but are left out of the average progress.
func StudentSummary(enrollments []enrollment.Enrollment, userID string) Summary {
	var sum Summary
	var progress, tracked int

	for _, e := range enrollments {
		if e.UserID != userID {
			continue
		}
		sum.Enrolled++

		switch e.Status {
		case enrollment.Completed:
			sum.Completed++
			progress += e.Progress
			tracked++
		case enrollment.Active:
			sum.InProgress++
			progress += e.Progress
			tracked++
		}
	}

	if tracked > 0 {
		sum.AvgProgress = round1(float64(progress) / float64(tracked))
	}
	return sum
}

// CategoryStat rolls one category up across its courses.
type CategoryStat struct {
	Category course.Category `json:"category"`
	Courses  int             `json:"courses"`
	Students int             `json:"students"`
	Revenue  float64         `json:"revenue"`
}

// AvgTicket is the revenue per student. The second return is false
// when the category has no students and the ticket is undefined.
func (cs CategoryStat) AvgTicket() (float64, bool) {
	if cs.Students == 0 {
		return 0, false
	}
	return cs.Revenue / float64(cs.Students), true
}

// ByCategory rolls all courses up per category, ordered by revenue
// descending. Revenue is estimated as price times enrolled students.
func ByCategory(courses []course.Course) []CategoryStat {
	idx := make(map[course.Category]*CategoryStat)
	for _, c := range courses {
		cs, ok := idx[c.Category]
		if !ok {
			cs = &CategoryStat{Category: c.Category}
			idx[c.Category] = cs
		}
		cs.Courses++
		cs.Students += c.StudentsCount
		cs.Revenue += c.Price * float64(c.StudentsCount)
	}

	out := make([]CategoryStat, 0, len(idx))
	for _, cs := range idx {
		out = append(out, *cs)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// KPIs are the headline admin dashboard figures.
type KPIs struct {
	TotalCourses     int     `json:"totalCourses"`
	PublishedCourses int     `json:"publishedCourses"`
	TotalStudents    int     `json:"totalStudents"`
	TotalRevenue     float64 `json:"totalRevenue"`
	AvgRating        float64 `json:"avgRating"`
}

// Dashboard computes the platform KPIs. TotalStudents counts distinct
// enrolled users, not enrollments. AvgRating averages one rating per
// published course, each derived from that course's reviews; courses
// without reviews count as 0.
func Dashboard(courses []course.Course, enrollments []enrollment.Enrollment, reviews []review.Review) KPIs {
	var k KPIs

	sums := make(map[string]int)
	counts := make(map[string]int)
	for _, r := range reviews {
		sums[r.CourseID] += r.Rating
		counts[r.CourseID]++
	}

	var total float64
	for _, c := range courses {
		k.TotalCourses++
		k.TotalRevenue += c.Price * float64(c.StudentsCount)
		if c.Status != course.Published {
			continue
		}
		k.PublishedCourses++
		if n := counts[c.ID]; n > 0 {
			total += float64(sums[c.ID]) / float64(n)
		}
	}
	if k.PublishedCourses > 0 {
		k.AvgRating = round1(total / float64(k.PublishedCourses))
	}

	users := make(map[string]struct{})
	for _, e := range enrollments {
		users[e.UserID] = struct{}{}
	}
	k.TotalStudents = len(users)

	return k
}

// MonthCount is one point of an enrollment time series.
type MonthCount struct {
	Month time.Time `json:"month"`
	Count int       `json:"count"`
}

// MonthlySeries buckets enrollments by calendar month over the last
// months up to now, oldest first. Months without enrollments are kept
// as zero points.
func MonthlySeries(enrollments []enrollment.Enrollment, months int, now time.Time) []MonthCount {
	if months <= 0 {
		return nil
	}

	first := monthStart(now.UTC()).AddDate(0, -(months - 1), 0)

	out := make([]MonthCount, months)
	for i := range out {
		out[i].Month = first.AddDate(0, i, 0)
	}

	for _, e := range enrollments {
		m := monthStart(e.EnrolledAt.UTC())
		if m.Before(first) {
			continue
		}
		i := (m.Year()-first.Year())*12 + int(m.Month()) - int(first.Month())
		if i >= 0 && i < months {
			out[i].Count++
		}
	}

	return out
}

// RecentCourses returns the latest courses, newest first, capped at n.
func RecentCourses(courses []course.Course, n int) []course.Course {
	out := make([]course.Course, len(courses))
	copy(out, courses)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Recent returns the latest enrollments, newest first, capped at n.
func Recent(enrollments []enrollment.Enrollment, n int) []enrollment.Enrollment {
	out := make([]enrollment.Enrollment, len(enrollments))
	copy(out, enrollments)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EnrolledAt.After(out[j].EnrolledAt)
	})

	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
