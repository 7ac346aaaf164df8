package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/user/secaudit/pkg/engine"
	"github.com/user/secaudit/pkg/lifecycle"
	"github.com/user/secaudit/pkg/store"
)

var (
	alice = Actor{ID: "alice", Role: RoleAuditor}
	admin = Actor{ID: "root", Role: RoleAdmin}
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	c, err := engine.DefaultCatalog()
	if err != nil {
		t.Fatalf("Failed to load catalog: %v", err)
	}
	return NewService(st, engine.NewEngine(c)), st
}

// fixtureRoot yields CRITICAL (eval), MEDIUM (no rate limit) and MEDIUM (no .gitignore)
func fixtureRoot(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"package.json": `{"dependencies":{"helmet":"^7.0.0"}}`,
		"src/app.js":   "const app = express();\nconst x = eval(input);\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func seedScan(t *testing.T, svc *Service, sourcePath string) *store.Scan {
	t.Helper()
	ctx := context.Background()
	p := &store.Project{Name: "shop", Client: "ACME", SourcePath: sourcePath}
	if err := svc.CreateProject(ctx, alice, p); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	sc, err := svc.CreateScan(ctx, alice, p.ID, "Q3 audit", "", "")
	if err != nil {
		t.Fatalf("CreateScan failed: %v", err)
	}
	return sc
}

// forceStatus moves a scan directly in the store
func forceStatus(t *testing.T, st *store.Store, id string, to lifecycle.Status) *store.Scan {
	t.Helper()
	ctx := context.Background()
	sc, err := st.GetScan(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	sc, err = st.SetStatus(ctx, id, sc.Version, to)
	if err != nil {
		t.Fatal(err)
	}
	return sc
}

// faultyRepo fails selected store operations
type faultyRepo struct {
	*store.Store
	applyErr    error
	rollbackErr error
}

func (r *faultyRepo) ApplyRun(ctx context.Context, scanID string, version int, result *engine.ScanResult, status lifecycle.Status) (*store.Scan, error) {
	if r.applyErr != nil {
		return nil, r.applyErr
	}
	return r.Store.ApplyRun(ctx, scanID, version, result, status)
}

func (r *faultyRepo) SetStatus(ctx context.Context, id string, version int, status lifecycle.Status) (*store.Scan, error) {
	if status == lifecycle.Planned && r.rollbackErr != nil {
		return nil, r.rollbackErr
	}
	return r.Store.SetStatus(ctx, id, version, status)
}
