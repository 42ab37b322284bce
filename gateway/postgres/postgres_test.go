package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/irsalhamdi/edtech-platform/database"
	"github.com/irsalhamdi/edtech-platform/gateway"
	"github.com/irsalhamdi/edtech-platform/validate"
	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/sirupsen/logrus"
)

func startPostgres(t *testing.T) *sqlx.DB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker is not available: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker is not available: %v", err)
	}

	res, err := pool.Run("postgres", "15-alpine", []string{
		"POSTGRES_USER=postgres",
		"POSTGRES_PASSWORD=postgres",
		"POSTGRES_DB=edtech",
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pool.Purge(res) })

	db, err := database.Open(database.Config{
		User:       "postgres",
		Password:   "postgres",
		Host:       fmt.Sprintf("localhost:%s", res.GetPort("5432/tcp")),
		Name:       "edtech",
		DisableTLS: true,
	})
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.StatusCheck(ctx, db); err != nil {
		t.Fatalf("database never became ready: %v", err)
	}

	if err := database.Migrate(db, "file://../../database/migrations"); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	return db
}

func TestGateway(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := startPostgres(t)

	log := logrus.New()
	log.SetOutput(io.Discard)
	gw := NewGateway(db, log)

	ctx := context.Background()

	courseID := validate.GenerateID()
	courseRec := gateway.Record{
		"id":         courseID,
		"title":      "Go for Backends",
		"category":   "programming",
		"instructor": "Carla Dias",
		"status":     "published",
		"price":      "99.90",
	}
	if err := gw.Insert(ctx, "courses", courseRec); err != nil {
		t.Fatalf("inserting course: %v", err)
	}

	rows, err := gw.Select(ctx, "courses", gateway.Eq("status", "published"))
	if err != nil {
		t.Fatalf("selecting courses: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 course, got %d", len(rows))
	}
	if rows[0]["title"] != "Go for Backends" {
		t.Fatalf("unexpected row: %v", rows[0])
	}
	if _, ok := rows[0]["price"].(string); !ok {
		t.Fatalf("decimal columns should normalize to strings, got %T", rows[0]["price"])
	}

	userID := validate.GenerateID()
	enrID := validate.GenerateID()
	enrRec := gateway.Record{
		"id":        enrID,
		"course_id": courseID,
		"user_id":   userID,
	}
	if err := gw.Insert(ctx, "enrollments", enrRec); err != nil {
		t.Fatalf("inserting enrollment: %v", err)
	}

	dup := gateway.Record{
		"id":        validate.GenerateID(),
		"course_id": courseID,
		"user_id":   userID,
	}
	if err := gw.Insert(ctx, "enrollments", dup); !errors.Is(err, gateway.ErrConflict) {
		t.Fatalf("a duplicate enrollment should conflict, got %v", err)
	}

	if err := gw.Update(ctx, "enrollments", enrID, gateway.Record{"progress": 60, "status": "active"}); err != nil {
		t.Fatalf("updating enrollment: %v", err)
	}

	rows, err = gw.Select(ctx, "enrollments", gateway.Eq("user_id", userID))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0]["progress"] != int64(60) {
		t.Fatalf("update did not stick: %v", rows)
	}

	rows, err = gw.Select(ctx, "courses", gateway.In("id", courseID, validate.GenerateID()))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("in-set filter should match the existing course, got %d rows", len(rows))
	}

	if err := gw.Delete(ctx, "courses", courseID); err != nil {
		t.Fatalf("deleting course: %v", err)
	}
	rows, err = gw.Select(ctx, "courses")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Fatalf("course should be gone, got %d rows", len(rows))
	}
}
