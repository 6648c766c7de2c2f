package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"taskservice/internal/auth"
	"taskservice/internal/config"
	apperrors "taskservice/internal/errors"
	"taskservice/internal/logging"
	"taskservice/internal/model"
	"taskservice/internal/repository"
	"taskservice/internal/service"
)

// SeedUser is one fixture entry: an account and the tasks it owns.
type SeedUser struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Tasks    []SeedTask `json:"tasks"`
}

// SeedTask is a fixture task. Status is optional and may be any v2 status.
type SeedTask struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
	Status      string `json:"status,omitempty"`
}

// Stats counts what a seed run did.
type Stats struct {
	UsersCreated int
	UsersReused  int
	TasksCreated int
}

func main() {
	fs := pflag.NewFlagSet("seed", pflag.ExitOnError)
	fixture := fs.StringP("fixture", "f", "", "fixture file path or http(s) URL")
	_ = fs.Parse(os.Args[1:])

	if *fixture == "" {
		fmt.Fprintln(os.Stderr, "seed: --fixture is required")
		os.Exit(2)
	}

	if err := run(*fixture); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run(fixture string) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return err
	}
	log := logging.New(os.Stdout, cfg.LogLevel)
	ctx := context.Background()

	log.Info(ctx, "loading fixture", "source", fixture)
	users, err := loadFixture(ctx, fixture)
	if err != nil {
		return err
	}

	stores, err := repository.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	authService := service.NewAuthService(stores.Users, auth.NewJWTService(cfg.JWTSecret, cfg.TokenTTL), cfg.BcryptCost, log)
	taskService := service.NewTaskService(stores.Tasks, log)

	stats, err := seed(ctx, authService, taskService, users)
	if err != nil {
		return err
	}

	log.Info(ctx, "seed completed",
		"users_created", stats.UsersCreated,
		"users_reused", stats.UsersReused,
		"tasks_created", stats.TasksCreated,
	)
	return nil
}

// loadFixture reads the fixture from a file or, for http(s) sources, over
// the network.
func loadFixture(ctx context.Context, source string) ([]SeedUser, error) {
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		data, err = fetch(ctx, source)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	var users []SeedUser
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return users, nil
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fixture source returned status code: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// seed registers each fixture user, reusing accounts that already exist,
// and creates their tasks.
func seed(ctx context.Context, authService service.AuthService, taskService service.TaskService, users []SeedUser) (Stats, error) {
	var stats Stats
	for _, u := range users {
		identity, created, err := ensureUser(ctx, authService, u)
		if err != nil {
			return stats, fmt.Errorf("user %s: %w", u.Email, err)
		}
		if created {
			stats.UsersCreated++
		} else {
			stats.UsersReused++
		}

		for _, st := range u.Tasks {
			task, err := taskService.Create(ctx, identity, service.CreateTaskInput{
				Name:        st.Name,
				Description: st.Description,
				DueDate:     st.DueDate,
			})
			if err != nil {
				return stats, fmt.Errorf("user %s task %q: %w", u.Email, st.Name, err)
			}
			if st.Status != "" && model.TaskStatus(st.Status) != model.TaskStatusNew {
				status := st.Status
				if _, err := taskService.Update(ctx, task, service.UpdateTaskInput{Status: &status}, model.V2Statuses); err != nil {
					return stats, fmt.Errorf("user %s task %q status: %w", u.Email, st.Name, err)
				}
			}
			stats.TasksCreated++
		}
	}
	return stats, nil
}

func ensureUser(ctx context.Context, authService service.AuthService, u SeedUser) (*model.Identity, bool, error) {
	user, err := authService.Register(ctx, u.Email, u.Password)
	if err == nil {
		return user.Identity(), true, nil
	}
	if !errors.Is(err, apperrors.ErrConflict) {
		return nil, false, err
	}
	identity, err := authService.Authenticate(ctx, u.Email, u.Password)
	if err != nil {
		return nil, false, err
	}
	return identity, false, nil
}
