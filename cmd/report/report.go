package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/irsalhamdi/edtech-platform/config"
	"github.com/irsalhamdi/edtech-platform/core/analytics"
	"github.com/irsalhamdi/edtech-platform/core/catalog"
	"github.com/irsalhamdi/edtech-platform/core/identity"
	"github.com/irsalhamdi/edtech-platform/database"
	"github.com/irsalhamdi/edtech-platform/gateway"
	"github.com/irsalhamdi/edtech-platform/gateway/postgres"
	"github.com/irsalhamdi/edtech-platform/gateway/postgrest"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	if err := Run(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func Run(logger *logrus.Logger) error {
	const prefix = "EDTECH"
	var cfg config.Config
	if _, err := conf.Parse(prefix, &cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	principal := identity.Principal{ID: cfg.Principal.ID, Email: cfg.Principal.Email}

	if cfg.Auth.IDToken != "" {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Auth.DiscoveryTimeout)
		defer cancel()

		verifier, err := identity.NewOIDC(ctx, cfg.Auth.IssuerURL, cfg.Auth.ClientID)
		if err != nil {
			return fmt.Errorf("building token verifier: %w", err)
		}
		principal, err = verifier.Authenticate(ctx, cfg.Auth.IDToken)
		if err != nil {
			return fmt.Errorf("authenticating: %w", err)
		}
	}

	gw, err := buildGateway(cfg, logger)
	if err != nil {
		return err
	}

	session := identity.NewNotifier()
	store := catalog.New(gw, session, logger)
	store.Bind(session)

	session.Login(principal)
	defer session.Logout()

	if len(store.Courses()) == 0 {
		logger.Warn("snapshot is empty, nothing to report on")
	}

	return printReport(context.Background(), store, cfg.Report)
}

func buildGateway(cfg config.Config, logger *logrus.Logger) (gateway.Gateway, error) {
	switch cfg.Remote.Driver {
	case "postgrest":
		var tokens oauth2.TokenSource
		if cfg.Auth.IDToken != "" {
			tokens = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Auth.IDToken})
		}

		return postgrest.NewClient(postgrest.Config{
			URL:      cfg.Remote.URL,
			APIKey:   cfg.Remote.APIKey,
			Timeout:  cfg.Remote.Timeout,
			LimitRPS: cfg.Remote.LimitRPS,
			Burst:    cfg.Remote.Burst,
			Tokens:   tokens,
			Log:      logger,
		}), nil

	case "postgres":
		db, err := database.Open(database.Config(cfg.DB))
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Remote.Timeout)
		defer cancel()
		if err := database.StatusCheck(ctx, db); err != nil {
			return nil, fmt.Errorf("checking database status: %w", err)
		}

		return postgres.NewGateway(db, logger), nil
	}

	return nil, fmt.Errorf("unknown remote driver %q", cfg.Remote.Driver)
}

func printReport(ctx context.Context, store *catalog.Store, cfg config.Report) error {
	courses := store.Courses()
	enrollments := store.Enrollments()
	reviews := store.Reviews()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	k := analytics.Dashboard(courses, enrollments, reviews)
	fmt.Fprintf(w, "courses\t%d (%d published)\n", k.TotalCourses, k.PublishedCourses)
	fmt.Fprintf(w, "students\t%d\n", k.TotalStudents)
	fmt.Fprintf(w, "revenue\t%.2f\n", k.TotalRevenue)
	fmt.Fprintf(w, "avg rating\t%.1f\n", k.AvgRating)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "category\tcourses\tstudents\trevenue\tavg ticket")
	for _, cs := range analytics.ByCategory(courses) {
		ticket := "n/a"
		if t, ok := cs.AvgTicket(); ok {
			ticket = fmt.Sprintf("%.2f", t)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%.2f\t%s\n", cs.Category, cs.Courses, cs.Students, cs.Revenue, ticket)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "month\tenrollments")
	for _, mc := range analytics.MonthlySeries(enrollments, cfg.Months, time.Now()) {
		fmt.Fprintf(w, "%s\t%d\n", mc.Month.Format("2006-01"), mc.Count)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "recently added courses")
	for _, c := range analytics.RecentCourses(courses, cfg.Recent) {
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.CreatedAt.Format("2006-01-02"), c.Title, c.Status)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "recent enrollments")
	for _, e := range analytics.Recent(enrollments, cfg.Recent) {
		title := e.CourseID
		if c, ok := store.CourseByID(e.CourseID); ok {
			title = c.Title
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d%%\n", e.EnrolledAt.Format("2006-01-02"), title, e.Status, e.Progress)
	}
	fmt.Fprintln(w)

	students, err := store.Students(ctx)
	if err != nil {
		return fmt.Errorf("loading student roster: %w", err)
	}
	fmt.Fprintf(w, "registered students\t%d\n", len(students))
	for _, s := range students {
		fmt.Fprintf(w, "%s\t%s\n", s.Name, s.Email)
	}

	return w.Flush()
}
