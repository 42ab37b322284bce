package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/irsalhamdi/edtech-platform/apperr"
	"github.com/irsalhamdi/edtech-platform/core/course"
	"github.com/irsalhamdi/edtech-platform/core/enrollment"
	"github.com/irsalhamdi/edtech-platform/core/identity"
	"github.com/irsalhamdi/edtech-platform/core/profile"
	"github.com/irsalhamdi/edtech-platform/core/review"
	"github.com/irsalhamdi/edtech-platform/gateway"
	"github.com/irsalhamdi/edtech-platform/validate"
	"github.com/sirupsen/logrus"
)

const (
	coursesTable     = "courses"
	enrollmentsTable = "enrollments"
	reviewsTable     = "reviews"
	profilesTable    = "profiles"
	rolesTable       = "user_roles"
)

// Store holds the authoritative client-side snapshot of courses,
// enrollments and reviews, and mediates every read and write against
// the remote store. Every successful mutation triggers a full refresh.
type Store struct {
	gw  gateway.Gateway
	ids identity.Source
	log logrus.FieldLogger

	mu      sync.RWMutex
	snap    snapshot
	loading bool
}

type snapshot struct {
	courses     []course.Course
	enrollments []enrollment.Enrollment
	reviews     []review.Review
}

func New(gw gateway.Gateway, ids identity.Source, log logrus.FieldLogger) *Store {
	return &Store{
		gw:  gw,
		ids: ids,
		log: log,
	}
}

// Bind ties the store's lifecycle to the session: a login rebuilds the
// snapshot for the new principal, a logout clears it.
func (s *Store) Bind(n *identity.Notifier) {
	n.Subscribe(func(p *identity.Principal) {
		if p == nil {
			s.Clear()
			return
		}
		s.Refresh(context.Background())
	})
}

// Refresh replaces the whole snapshot from the remote store. It fails
// open: on any remote error the previous snapshot stays visible and
// the failure is only logged.
func (s *Store) Refresh(ctx context.Context) {
	s.setLoading(true)
	defer s.setLoading(false)

	snap, err := s.fetch(ctx)
	if err != nil {
		s.log.WithFields(logrus.Fields{"message": err}).Error("refresh failed, keeping previous snapshot")
		return
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

func (s *Store) fetch(ctx context.Context) (snapshot, error) {
	if _, err := s.ids.Current(ctx); err != nil {
		return snapshot{}, fmt.Errorf("resolving principal: %w", err)
	}

	courseRows, err := s.gw.Select(ctx, coursesTable)
	if err != nil {
		return snapshot{}, fmt.Errorf("fetching courses: %w", err)
	}

	courses := make([]course.Course, 0, len(courseRows))
	for _, rec := range courseRows {
		c, err := toCourse(rec)
		if err != nil {
			return snapshot{}, err
		}
		courses = append(courses, c)
	}

	// Row-level security scopes this to the principal remotely.
	enrollRows, err := s.gw.Select(ctx, enrollmentsTable)
	if err != nil {
		return snapshot{}, fmt.Errorf("fetching enrollments: %w", err)
	}

	enrollments := make([]enrollment.Enrollment, 0, len(enrollRows))
	for _, rec := range enrollRows {
		e, err := toEnrollment(rec)
		if err != nil {
			return snapshot{}, err
		}
		enrollments = append(enrollments, e)
	}

	reviewRows, err := s.gw.Select(ctx, reviewsTable)
	if err != nil {
		return snapshot{}, fmt.Errorf("fetching reviews: %w", err)
	}

	profiles, err := s.reviewerProfiles(ctx, reviewRows)
	if err != nil {
		return snapshot{}, err
	}

	reviews := make([]review.Review, 0, len(reviewRows))
	for _, rec := range reviewRows {
		r, err := toReview(rec, profiles)
		if err != nil {
			return snapshot{}, err
		}
		reviews = append(reviews, r)
	}

	return snapshot{
		courses:     courses,
		enrollments: enrollments,
		reviews:     reviews,
	}, nil
}

func (s *Store) reviewerProfiles(ctx context.Context, reviewRows []gateway.Record) (map[string]profile.Profile, error) {
	seen := make(map[string]struct{})
	ids := make([]string, 0, len(reviewRows))
	for _, rec := range reviewRows {
		id, ok := rec["user_id"].(string)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	profiles := make(map[string]profile.Profile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}

	rows, err := s.gw.Select(ctx, profilesTable, gateway.In("id", ids...))
	if err != nil {
		return nil, fmt.Errorf("fetching reviewer profiles: %w", err)
	}

	for _, rec := range rows {
		p, err := toProfile(rec)
		if err != nil {
			return nil, err
		}
		profiles[p.ID] = p
	}

	return profiles, nil
}

// Clear drops the snapshot, typically on logout.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snapshot{}
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = v
}

func (s *Store) Courses() []course.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]course.Course, len(s.snap.courses))
	copy(out, s.snap.courses)
	return out
}

func (s *Store) Enrollments() []enrollment.Enrollment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]enrollment.Enrollment, len(s.snap.enrollments))
	copy(out, s.snap.enrollments)
	return out
}

func (s *Store) Reviews() []review.Review {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]review.Review, len(s.snap.reviews))
	copy(out, s.snap.reviews)
	return out
}

func (s *Store) FilteredCourses(f course.Filters) []course.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]course.Course, 0, len(s.snap.courses))
	for _, c := range s.snap.courses {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Store) CourseByID(id string) (course.Course, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.snap.courses {
		if c.ID == id {
			return c, true
		}
	}
	return course.Course{}, false
}

func (s *Store) EnrollmentByCourse(courseID string, userID string) (enrollment.Enrollment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.snap.enrollments {
		if e.CourseID == courseID && e.UserID == userID {
			return e, true
		}
	}
	return enrollment.Enrollment{}, false
}

func (s *Store) EnrolledCourses(userID string) []course.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()

	enrolled := make(map[string]struct{})
	for _, e := range s.snap.enrollments {
		if e.UserID == userID {
			enrolled[e.CourseID] = struct{}{}
		}
	}

	out := make([]course.Course, 0, len(enrolled))
	for _, c := range s.snap.courses {
		if _, ok := enrolled[c.ID]; ok {
			out = append(out, c)
		}
	}
	return out
}

// AvailableCourses lists the published courses the user has not yet
// enrolled in, for the student catalog view.
func (s *Store) AvailableCourses(userID string) []course.Course {
	s.mu.RLock()
	defer s.mu.RUnlock()

	enrolled := make(map[string]struct{})
	for _, e := range s.snap.enrollments {
		if e.UserID == userID {
			enrolled[e.CourseID] = struct{}{}
		}
	}

	var out []course.Course
	for _, c := range s.snap.courses {
		if c.Status != course.Published {
			continue
		}
		if _, ok := enrolled[c.ID]; ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

// ReviewsByCourse returns the course's reviews, newest first.
func (s *Store) ReviewsByCourse(courseID string) []review.Review {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []review.Review
	for _, r := range s.snap.reviews {
		if r.CourseID == courseID {
			out = append(out, r)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// CourseAverageRating recomputes the rating from the review snapshot.
// This, not the persisted rating column, is the source of truth for
// display.
func (s *Store) CourseAverageRating(courseID string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sum, n int
	for _, r := range s.snap.reviews {
		if r.CourseID == courseID {
			sum += r.Rating
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return round1(float64(sum) / float64(n))
}

func (s *Store) Enroll(ctx context.Context, courseID string, userID string) error {
	if err := s.requirePrincipal(ctx); err != nil {
		return err
	}
	if err := validate.CheckID(courseID); err != nil {
		return apperr.Invalid(err)
	}

	err := s.gw.Insert(ctx, enrollmentsTable, fromEnrollmentNew(courseID, userID))
	if err != nil {
		if errors.Is(err, gateway.ErrConflict) {
			return apperr.AlreadyEnrolled(err, apperr.WithFields(map[string]interface{}{
				"course_id": courseID,
				"user_id":   userID,
			}))
		}
		return apperr.Unavailable(fmt.Errorf("creating enrollment: %w", err))
	}

	s.Refresh(ctx)
	return nil
}

// MarkComplete finishes an enrollment. Calling it again on an already
// completed enrollment is accepted and overwrites completed_at with
// today. TODO: confirm with product whether the overwrite is wanted.
func (s *Store) MarkComplete(ctx context.Context, enrollmentID string) error {
	if err := s.requirePrincipal(ctx); err != nil {
		return err
	}

	if err := s.gw.Update(ctx, enrollmentsTable, enrollmentID, fromCompletion()); err != nil {
		return apperr.Unavailable(fmt.Errorf("completing enrollment[%s]: %w", enrollmentID, err))
	}

	s.Refresh(ctx)
	return nil
}

func (s *Store) UpdateProgress(ctx context.Context, enrollmentID string, progress int) error {
	if err := s.requirePrincipal(ctx); err != nil {
		return err
	}
	if err := validate.Check(enrollment.ProgressUp{Progress: progress}); err != nil {
		return apperr.Invalid(err)
	}

	patch := gateway.Record{"progress": progress}
	if err := s.gw.Update(ctx, enrollmentsTable, enrollmentID, patch); err != nil {
		return apperr.Unavailable(fmt.Errorf("updating progress of enrollment[%s]: %w", enrollmentID, err))
	}

	s.Refresh(ctx)
	return nil
}

func (s *Store) AddCourse(ctx context.Context, nc course.CourseNew) error {
	if err := s.requirePrincipal(ctx); err != nil {
		return err
	}
	if err := validate.Check(nc); err != nil {
		return apperr.Invalid(err)
	}
	if nc.Status == course.Published && strings.TrimSpace(nc.Description) == "" {
		return apperr.Invalid(errors.New("a published course must have a description"))
	}

	if err := s.gw.Insert(ctx, coursesTable, fromCourseNew(nc)); err != nil {
		return apperr.Unavailable(fmt.Errorf("creating course: %w", err))
	}

	s.Refresh(ctx)
	return nil
}

// UpdateCourse checks the publish invariant against the merge of the
// patch and the stored course, so a patch that only flips the status
// to published still needs a pre-existing description.
func (s *Store) UpdateCourse(ctx context.Context, id string, up course.CourseUp) error {
	if err := s.requirePrincipal(ctx); err != nil {
		return err
	}
	if err := validate.Check(up); err != nil {
		return apperr.Invalid(err)
	}

	existing, ok := s.CourseByID(id)
	if !ok {
		return apperr.Missing(fmt.Errorf("course[%s] is not in the snapshot", id))
	}

	desc := existing.Description
	if up.Description != nil {
		desc = *up.Description
	}
	status := existing.Status
	if up.Status != nil {
		status = *up.Status
	}
	if status == course.Published && strings.TrimSpace(desc) == "" {
		return apperr.Invalid(errors.New("a published course must have a description"))
	}

	patch := fromCourseUp(up)
	if len(patch) == 0 {
		return nil
	}

	if err := s.gw.Update(ctx, coursesTable, id, patch); err != nil {
		return apperr.Unavailable(fmt.Errorf("updating course[%s]: %w", id, err))
	}

	s.Refresh(ctx)
	return nil
}

func (s *Store) UpdateCourseStatus(ctx context.Context, id string, status course.Status) error {
	return s.UpdateCourse(ctx, id, course.CourseUp{Status: &status})
}

func (s *Store) DeleteCourse(ctx context.Context, id string) error {
	if err := s.requirePrincipal(ctx); err != nil {
		return err
	}

	if err := s.gw.Delete(ctx, coursesTable, id); err != nil {
		return apperr.Unavailable(fmt.Errorf("deleting course[%s]: %w", id, err))
	}

	s.Refresh(ctx)
	return nil
}

func (s *Store) AddReview(ctx context.Context, userID string, nr review.ReviewNew) error {
	if err := s.requirePrincipal(ctx); err != nil {
		return err
	}
	if err := validate.Check(nr); err != nil {
		return apperr.Invalid(err)
	}

	err := s.gw.Insert(ctx, reviewsTable, fromReviewNew(userID, nr))
	if err != nil {
		if errors.Is(err, gateway.ErrConflict) {
			return apperr.AlreadyReviewed(err, apperr.WithFields(map[string]interface{}{
				"course_id": nr.CourseID,
				"user_id":   userID,
			}))
		}
		return apperr.Unavailable(fmt.Errorf("creating review: %w", err))
	}

	s.Refresh(ctx)
	return nil
}

// MarkHelpful bumps the helpful counter from the snapshot value.
// Concurrent bumps from two sessions can lose one increment,
// last-write-wins.
func (s *Store) MarkHelpful(ctx context.Context, reviewID string) error {
	if err := s.requirePrincipal(ctx); err != nil {
		return err
	}

	current, ok := s.reviewByID(reviewID)
	if !ok {
		return apperr.Missing(fmt.Errorf("review[%s] is not in the snapshot", reviewID))
	}

	patch := gateway.Record{"helpful": current.Helpful + 1}
	if err := s.gw.Update(ctx, reviewsTable, reviewID, patch); err != nil {
		return apperr.Unavailable(fmt.Errorf("marking review[%s] helpful: %w", reviewID, err))
	}

	s.Refresh(ctx)
	return nil
}

// Students loads the roster on demand: student user ids from the role
// table, then their profiles. Not part of the snapshot.
func (s *Store) Students(ctx context.Context) ([]profile.Profile, error) {
	if err := s.requirePrincipal(ctx); err != nil {
		return nil, err
	}

	roleRows, err := s.gw.Select(ctx, rolesTable, gateway.Eq("role", string(profile.RoleStudent)))
	if err != nil {
		return nil, apperr.Unavailable(fmt.Errorf("fetching student roles: %w", err))
	}

	ids := make([]string, 0, len(roleRows))
	for _, rec := range roleRows {
		if id, ok := rec["user_id"].(string); ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return []profile.Profile{}, nil
	}

	rows, err := s.gw.Select(ctx, profilesTable, gateway.In("id", ids...))
	if err != nil {
		return nil, apperr.Unavailable(fmt.Errorf("fetching student profiles: %w", err))
	}

	students := make([]profile.Profile, 0, len(rows))
	for _, rec := range rows {
		p, err := toProfile(rec)
		if err != nil {
			return nil, err
		}
		students = append(students, p)
	}

	sort.Slice(students, func(i, j int) bool { return students[i].Name < students[j].Name })
	return students, nil
}

func (s *Store) reviewByID(id string) (review.Review, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.snap.reviews {
		if r.ID == id {
			return r, true
		}
	}
	return review.Review{}, false
}

func (s *Store) requirePrincipal(ctx context.Context) error {
	if _, err := s.ids.Current(ctx); err != nil {
		return apperr.Unauthenticated(err)
	}
	return nil
}
