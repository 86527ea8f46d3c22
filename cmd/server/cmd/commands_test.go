package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wryteon/wryteon/internal/auth"
	"github.com/wryteon/wryteon/internal/config"
	"github.com/wryteon/wryteon/internal/domain/posts"
	"github.com/wryteon/wryteon/internal/editorjs"
	"github.com/wryteon/wryteon/internal/storage/sqlite"
)

// blogEnv points every command at a fresh SQLite database.
func blogEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbURL := "sqlite:" + filepath.Join(dir, "blog.db")
	t.Setenv("DATABASE_URL", dbURL)
	t.Setenv("UPLOAD_DIR", filepath.Join(dir, "uploads"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("SERVER_BASE_URL", "http://localhost:8080")
	t.Setenv("ADMIN_USERNAME", "admin")
	t.Setenv("ADMIN_PASSWORD", "correct horse battery")
	t.Setenv("ADMIN_EMAIL", "admin@example.com")
	return dbURL
}

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func openBlog(t *testing.T, dbURL string) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.Open(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestSeedCommand(t *testing.T) {
	dbURL := blogEnv(t)

	out, err := runCLI(t, "", "seed")
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if !strings.Contains(out, `Created admin user "admin"`) {
		t.Errorf("unexpected output: %s", out)
	}

	out, err = runCLI(t, "", "seed")
	if err != nil {
		t.Fatalf("second seed failed: %v", err)
	}
	if !strings.Contains(out, "already exists") {
		t.Errorf("expected seed to be idempotent, got: %s", out)
	}

	repo := openBlog(t, dbURL)
	svc := auth.NewService(repo.Users(), repo.Sessions(), time.Hour, zerolog.Nop())
	if _, err := svc.VerifyLogin(context.Background(), "admin", "correct horse battery"); err != nil {
		t.Errorf("seeded admin cannot log in: %v", err)
	}
}

func TestUserCreateCommand(t *testing.T) {
	dbURL := blogEnv(t)
	defer func() {
		userPassword = ""
		userPasswordStdin = false
		userEmail = ""
	}()

	out, err := runCLI(t, "", "user", "create", "--username", "editor", "--password", "s3cret-words")
	if err != nil {
		t.Fatalf("user create failed: %v", err)
	}
	if !strings.Contains(out, "Created user editor") {
		t.Errorf("unexpected output: %s", out)
	}

	if _, err := runCLI(t, "", "user", "create", "--username", "editor", "--password", "other"); err == nil {
		t.Error("expected duplicate username to fail")
	}

	userPassword = ""
	if _, err := runCLI(t, "from-stdin\n", "user", "create", "--username", "writer", "--password-stdin"); err != nil {
		t.Fatalf("user create from stdin failed: %v", err)
	}

	repo := openBlog(t, dbURL)
	svc := auth.NewService(repo.Users(), repo.Sessions(), time.Hour, zerolog.Nop())
	user, err := svc.VerifyLogin(context.Background(), "writer", "from-stdin")
	if err != nil {
		t.Fatalf("stdin password not stored: %v", err)
	}
	if user.Email != "writer@localhost" {
		t.Errorf("expected default email, got %q", user.Email)
	}
}

func TestResolvePassword(t *testing.T) {
	tests := []struct {
		name      string
		stdin     string
		flag      string
		fromStdin bool
		want      string
		wantErr   bool
	}{
		{name: "flag", flag: "pw", want: "pw"},
		{name: "stdin with newline", stdin: "pw\r\n", fromStdin: true, want: "pw"},
		{name: "stdin without newline", stdin: "pw", fromStdin: true, want: "pw"},
		{name: "empty stdin", fromStdin: true, wantErr: true},
		{name: "both sources", flag: "pw", fromStdin: true, wantErr: true},
		{name: "no source", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolvePassword(strings.NewReader(tt.stdin), tt.flag, tt.fromStdin)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %q", got)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("got %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

func TestExportCommand(t *testing.T) {
	dbURL := blogEnv(t)
	repo := openBlog(t, dbURL)

	doc, err := editorjs.ParseDocument([]byte(`{"blocks":[{"type":"header","data":{"text":"Hello","level":2}}]}`))
	if err != nil {
		t.Fatal(err)
	}
	svc := posts.NewService(repo.Posts(), zerolog.Nop())
	for _, p := range []posts.SavePayload{
		{Title: "Out In The Open", Slug: "out-in-the-open", Blocks: doc, Status: posts.StatusPublished},
		{Title: "Not Yet", Slug: "not-yet", Blocks: doc, Status: posts.StatusDraft},
	} {
		if _, err := svc.Save(context.Background(), p); err != nil {
			t.Fatalf("save %s: %v", p.Slug, err)
		}
	}

	outDir := filepath.Join(t.TempDir(), "public")
	out, err := runCLI(t, "", "export", "--out", outDir, "--base-url", "https://static.example.com/")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.Contains(out, "Exported 3 pages, 1 assets and 0 uploads") {
		t.Errorf("unexpected output: %s", out)
	}

	page, err := os.ReadFile(filepath.Join(outDir, "out-in-the-open", "index.html"))
	if err != nil {
		t.Fatalf("post page missing: %v", err)
	}
	if !strings.Contains(string(page), `href="https://static.example.com/out-in-the-open"`) {
		t.Errorf("canonical link should use --base-url:\n%s", page)
	}
	if _, err := os.Stat(filepath.Join(outDir, "not-yet")); !os.IsNotExist(err) {
		t.Errorf("drafts must not be exported, stat err=%v", err)
	}
}

func TestSessionsCleanupCommand(t *testing.T) {
	dbURL := blogEnv(t)
	if _, err := runCLI(t, "", "seed"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	repo := openBlog(t, dbURL)
	ctx := context.Background()
	admin, err := repo.Users().GetUserByUsername(ctx, "admin")
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC()
	for i, expires := range []time.Time{now.Add(-time.Hour), now.Add(-time.Minute), now.Add(time.Hour)} {
		err := repo.Sessions().CreateSession(ctx, auth.Session{
			ID:        uuid.NewString(),
			UserID:    admin.ID,
			Token:     "token-" + string(rune('a'+i)),
			ExpiresAt: expires,
			CreatedAt: now.Add(-2 * time.Hour),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	out, err := runCLI(t, "", "sessions", "cleanup")
	if err != nil {
		t.Fatalf("sessions cleanup failed: %v", err)
	}
	if !strings.Contains(out, "Deleted 2 expired session(s)") {
		t.Errorf("unexpected output: %s", out)
	}
	if _, err := repo.Sessions().GetSessionByToken(ctx, "token-c"); err != nil {
		t.Errorf("live session was removed: %v", err)
	}
}

func TestMigrateCommandSQLite(t *testing.T) {
	blogEnv(t)

	out, err := runCLI(t, "", "migrate", "up")
	if err != nil || !strings.Contains(out, "Migrations applied") {
		t.Fatalf("migrate up: %v\n%s", err, out)
	}

	out, err = runCLI(t, "", "migrate", "version")
	if err != nil || !strings.Contains(out, "applied on open") {
		t.Fatalf("migrate version: %v\n%s", err, out)
	}

	if _, err := runCLI(t, "", "migrate", "down"); err == nil {
		t.Error("expected migrate down to be rejected for sqlite")
	}
}

func TestBootstrapAdminUserSkipsWithoutCredentials(t *testing.T) {
	dbURL := blogEnv(t)
	repo := openBlog(t, dbURL)

	cfg := config.Defaults()
	cfg.AdminBootstrap.Password = ""
	svc := auth.NewService(repo.Users(), repo.Sessions(), time.Hour, zerolog.Nop())

	created, err := bootstrapAdminUser(context.Background(), cfg, svc, zerolog.Nop())
	if err != nil || created {
		t.Fatalf("expected a skip, got created=%v err=%v", created, err)
	}
	if _, err := svc.GetUserByUsername(context.Background(), cfg.AdminBootstrap.Username); err == nil {
		t.Error("no user should have been created")
	}
}
