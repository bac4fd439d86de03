// todo-cli — консольный клиент todo-app. Хранит сессию в файле и
// прозрачно обновляет токены между запусками.
//
// Использование:
//
//	todo-cli [-server URL] [-session PATH] [-v] <command> [flags]
//
// Команды: login, register, me, logout, change-password, users.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/ChiNguyen3107/todo-app/pkg/api"
	"github.com/ChiNguyen3107/todo-app/pkg/guard"
	"github.com/ChiNguyen3107/todo-app/pkg/session"
)

const (
	defaultServer = "http://localhost:8080/api"
	// passwordEnv — пароль можно передать через окружение, чтобы он не попал в историю shell.
	passwordEnv = "TODO_PASSWORD"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		switch {
		case errors.Is(err, session.ErrSessionExpired):
			fmt.Fprintln(os.Stderr, "session expired, run: todo-cli login")
		case errors.Is(err, session.ErrNotLoggedIn):
			fmt.Fprintln(os.Stderr, "not logged in, run: todo-cli login")
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("todo-cli", flag.ContinueOnError)
	server := fs.String("server", envOr("TODO_API_URL", defaultServer), "API base URL")
	sessionPath := fs.String("session", defaultSessionPath(), "session file")
	verbose := fs.Bool("v", false, "verbose logging")
	timeout := fs.Duration("timeout", session.DefaultTimeout, "request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("command required: login, register, me, logout, change-password, users")
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := session.New(*server,
		session.WithStore(session.NewFileStore(*sessionPath)),
		session.WithLogger(log),
		session.WithTimeout(*timeout),
		session.WithOnLogout(func(ev session.LogoutEvent) {
			log.Info("logged_out", slog.String("reason", ev.Reason.String()))
		}),
	)

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "login":
		return cmdLogin(ctx, c, rest)
	case "register":
		return cmdRegister(ctx, c, rest)
	case "me":
		id, err := c.Me(ctx)
		if err != nil {
			return err
		}
		return printJSON(id)
	case "logout":
		return c.Logout(ctx)
	case "change-password":
		return cmdChangePassword(ctx, c, rest)
	case "users":
		return cmdUsers(ctx, c, rest)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdLogin(ctx context.Context, c *session.Client, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "e-mail")
	password := fs.String("password", os.Getenv(passwordEnv), "password (or "+passwordEnv+")")
	if err := fs.Parse(args); err != nil {
		return err
	}

	id, err := c.Login(ctx, *email, *password)
	if err != nil {
		return err
	}

	return printJSON(id)
}

func cmdRegister(ctx context.Context, c *session.Client, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	email := fs.String("email", "", "e-mail")
	password := fs.String("password", os.Getenv(passwordEnv), "password (or "+passwordEnv+")")
	name := fs.String("name", "", "full name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	id, err := c.Register(ctx, *email, *password, *name)
	if err != nil {
		return err
	}

	return printJSON(id)
}

func cmdChangePassword(ctx context.Context, c *session.Client, args []string) error {
	fs := flag.NewFlagSet("change-password", flag.ContinueOnError)
	oldPW := fs.String("old", "", "current password")
	newPW := fs.String("new", "", "new password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := c.ChangePassword(ctx, *oldPW, *newPW); err != nil {
		return err
	}

	fmt.Println("password changed, please log in again")
	return nil
}

// cmdUsers — список пользователей (только ADMIN).
func cmdUsers(ctx context.Context, c *session.Client, args []string) error {
	fs := flag.NewFlagSet("users", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "page size")
	offset := fs.Int("offset", 0, "page offset")
	search := fs.String("search", "", "filter by e-mail or name substring")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Без identity (новый процесс) роль неизвестна: восстанавливаем её через Me.
	if _, ok := c.Identity(); !ok && c.Authenticated() {
		if _, err := c.Me(ctx); err != nil {
			return err
		}
	}

	if d, redirect := c.Guard(guard.RoleAdmin, "/admin/users"); !d.Allowed {
		if d.Reason == guard.ReasonUnauthenticated {
			return fmt.Errorf("not logged in (see %s)", redirect)
		}
		return errors.New("access denied: ADMIN role required")
	}

	var users []api.UserResponse
	q := url.Values{}
	q.Set("limit", strconv.Itoa(*limit))
	q.Set("offset", strconv.Itoa(*offset))
	if *search != "" {
		q.Set("search", *search)
	}
	path := "/admin/users?" + q.Encode()
	if err := c.GetJSON(ctx, path, &users); err != nil {
		return err
	}

	return printJSON(users)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "todo-app-session.json")
	}
	return filepath.Join(dir, "todo-app", "session.json")
}
