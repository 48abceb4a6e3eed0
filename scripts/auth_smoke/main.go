package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/teamhub-api/pkg/apiclient"
	"github.com/noah-isme/teamhub-api/pkg/viewcache"
)

type step struct {
	Name     string
	Critical bool
	Err      error
	Duration time.Duration
}

// smoke walks one session through login, logout and the revoked second tab.
type smoke struct {
	base    string
	timeout time.Duration
	logger  *zap.Logger

	client  *http.Client
	primary *apiclient.Gateway
	cache   *viewcache.Invalidator

	other      *apiclient.Gateway
	otherCache *viewcache.Invalidator
	revoked    chan string
}

func main() {
	var (
		base     string
		username string
		password string
		timeout  time.Duration
		verbose  bool
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&username, "username", os.Getenv("SMOKE_USERNAME"), "Account username")
	flag.StringVar(&password, "password", os.Getenv("SMOKE_PASSWORD"), "Account password")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.BoolVar(&verbose, "v", false, "Log gateway activity")
	flag.Parse()

	if username == "" || password == "" {
		log.Fatal("username and password are required (flags or SMOKE_USERNAME/SMOKE_PASSWORD)")
	}

	logger := zap.NewNop()
	if verbose {
		dev, err := zap.NewDevelopment()
		if err != nil {
			log.Fatalf("failed to init logger: %v", err)
		}
		logger = dev
	}
	defer logger.Sync() //nolint:errcheck

	s := &smoke{base: base, timeout: timeout, logger: logger, revoked: make(chan string, 1)}
	steps := s.run(context.Background(), username, password)
	printReport(steps)

	breaking := 0
	for _, st := range steps {
		if st.Err != nil && st.Critical {
			breaking++
		}
	}
	fmt.Printf("Failed critical steps: %d\n", breaking)
	if breaking > 0 {
		os.Exit(1)
	}
}

func (s *smoke) run(ctx context.Context, username, password string) []step {
	plan := []struct {
		name     string
		critical bool
		fn       func(context.Context) error
	}{
		{"login", true, func(ctx context.Context) error { return s.login(ctx, username, password) }},
		{"current user", true, s.currentUser},
		{"rotate twice", true, s.rotateTwice},
		{"open second tab", true, s.openSecondTab},
		{"logout", true, s.logout},
		{"second tab sees TOKEN_REVOKED", true, s.secondTabRevoked},
		{"security check after logout", false, s.securityCheckAfterLogout},
	}

	steps := make([]step, 0, len(plan))
	for _, p := range plan {
		start := time.Now()
		err := p.fn(ctx)
		steps = append(steps, step{Name: p.name, Critical: p.critical, Err: err, Duration: time.Since(start)})
		if err != nil && p.critical {
			break
		}
	}
	return steps
}

func (s *smoke) login(ctx context.Context, username, password string) error {
	s.client = &http.Client{Timeout: s.timeout}
	s.cache = viewcache.New()
	g, err := apiclient.New(s.base, apiclient.WithHTTPClient(s.client), apiclient.WithInvalidator(s.cache), apiclient.WithLogger(s.logger))
	if err != nil {
		return err
	}
	s.primary = g

	session, err := g.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if session.SessionID == "" {
		return errors.New("session issued without an id")
	}
	return nil
}

func (s *smoke) currentUser(ctx context.Context) error {
	_, err := s.primary.CurrentUser(ctx)
	return err
}

func (s *smoke) rotateTwice(ctx context.Context) error {
	for i := 0; i < 2; i++ {
		if err := s.primary.Rotate(ctx); err != nil {
			return fmt.Errorf("rotation %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *smoke) openSecondTab(ctx context.Context) error {
	u, err := url.Parse(s.base)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: s.timeout}
	s.otherCache = viewcache.New()
	other, err := apiclient.New(s.base, apiclient.WithHTTPClient(client), apiclient.WithInvalidator(s.otherCache), apiclient.WithLogger(s.logger))
	if err != nil {
		return err
	}
	client.Jar.SetCookies(u, s.client.Jar.Cookies(u))
	other.Signals().OnTokenRevoked(func(message string) {
		select {
		case s.revoked <- message:
		default:
		}
	})
	s.other = other
	s.otherCache.Add("dashboard")

	_, err = other.CurrentUser(ctx)
	return err
}

func (s *smoke) logout(ctx context.Context) error {
	if err := s.primary.Logout(ctx); err != nil {
		return err
	}
	if n := s.cache.Len(); n != 0 {
		return fmt.Errorf("view cache still holds %d entries", n)
	}
	return nil
}

func (s *smoke) secondTabRevoked(ctx context.Context) error {
	result, err := s.other.DoJSON(ctx, http.MethodGet, apiclient.PathCurrentUser, nil)
	if err != nil {
		return err
	}
	if !result.Revoked() {
		return fmt.Errorf("expected TOKEN_REVOKED, got status %d", result.Status)
	}
	select {
	case <-s.revoked:
	default:
		return errors.New("token-revoked signal not emitted")
	}
	if n := s.otherCache.Len(); n != 0 {
		return fmt.Errorf("second tab view cache still holds %d entries", n)
	}
	return nil
}

func (s *smoke) securityCheckAfterLogout(ctx context.Context) error {
	result, err := s.primary.DoJSON(ctx, http.MethodGet, apiclient.PathSecurityCheck, nil)
	if err != nil {
		return err
	}
	if result.Status != http.StatusUnauthorized {
		return fmt.Errorf("expected 401, got %d", result.Status)
	}
	return nil
}

func printReport(steps []step) {
	fmt.Println("Auth Smoke Report")
	fmt.Println("=================")
	for _, st := range steps {
		status := "OK"
		if st.Err != nil {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s (%s)\n", status, st.Name, st.Duration)
		if st.Err != nil {
			fmt.Printf("  Error: %v | Critical: %t\n", st.Err, st.Critical)
		}
	}
}
