package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/factbase/internal/config"
	"github.com/roach88/factbase/internal/fact"
	"github.com/roach88/factbase/internal/judge"
	"github.com/roach88/factbase/internal/pred"
	"github.com/roach88/factbase/internal/store"
	"github.com/roach88/factbase/internal/testutil"
)

// writeConfig writes a CUE config into dir and returns its path.
func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "factbase.cue")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

// seedIssues records issue-was-opened facts the way the judge would.
func seedIssues(t *testing.T, dbPath string, issues ...int64) {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(dbPath)
	require.NoError(t, err)
	defer s.Close()
	for _, n := range issues {
		f, err := s.Insert(ctx)
		require.NoError(t, err)
		attrs := fact.NewAttrs()
		attrs.Add("what", fact.S("issue-was-opened"))
		attrs.Add("repository", fact.I(1))
		attrs.Add("issue", fact.I(n))
		attrs.Add("who", fact.I(42))
		require.NoError(t, f.AddAll(ctx, attrs))
	}
}

func readFacts(t *testing.T, dbPath, text string) []*fact.Fact {
	t.Helper()
	s, err := store.Open(dbPath)
	require.NoError(t, err)
	defer s.Close()
	found, err := s.Query(context.Background(), pred.MustParse(text))
	require.NoError(t, err)
	return found
}

func newTestRun(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	opts := &RunOptions{
		RootOptions:  &RootOptions{Format: format},
		JobGenerator: testutil.NewFixedJobGenerator("job-1"),
		Clock:        testutil.NewManualClock(testutil.Epoch, 0),
	}
	cmd := newRunCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func TestRunAwardForIssue(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "facts.db")
	metricsPath := filepath.Join(dir, "metrics.prom")
	seedIssues(t, dbPath, 7, 8)
	cfg := writeConfig(t, dir, fmt.Sprintf("db: %q\njudges: [\"award-for-issue\"]\n", dbPath))

	out, err := newTestRun(t, "text", "--config", cfg, "--metrics", metricsPath)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Ran 1 judge(s)")

	awards := readFacts(t, dbPath, "(eq what 'award-for-issue')")
	require.Len(t, awards, 2)
	for _, a := range awards {
		points, _ := a.Int("award")
		job, _ := a.Str(fact.AttrJob)
		assert.Equal(t, int64(15), points)
		assert.Equal(t, "job-1", job)
	}

	metrics, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "factbase_tuples_processed_total")
	assert.Contains(t, string(metrics), `judge="award-for-issue"`)

	// a second run finds nothing new
	_, err = newTestRun(t, "text", "--config", cfg)
	require.NoError(t, err)
	assert.Len(t, readFacts(t, dbPath, "(eq what 'award-for-issue')"), 2)
}

func TestRunJudgeArgsReplaceConfig(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "facts.db")
	seedIssues(t, dbPath, 7)
	cfg := writeConfig(t, dir, fmt.Sprintf("db: %q\n", dbPath))

	out, err := newTestRun(t, "json", "--config", cfg, "award-for-issue", "quality-of-service")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   RunSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"award-for-issue", "quality-of-service"}, resp.Data.Judges)
	assert.Positive(t, resp.Data.Stats.Facts)

	qos := readFacts(t, dbPath, "(eq what 'quality-of-service')")
	require.Len(t, qos, 1)
	awards, _ := qos[0].Int("total_awards")
	assert.Equal(t, int64(1), awards)
}

func TestRunIssueWasOpened(t *testing.T) {
	api := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "4999")
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/repos/acme/tool":
			fmt.Fprint(w, `{"id": 1, "full_name": "acme/tool"}`)
		case "/repositories/1/issues/1":
			fmt.Fprint(w, `{"number": 1, "title": "crash", "state": "open",
				"user": {"id": 42, "login": "dev"}, "created_at": "2024-04-30T08:00:00Z"}`)
		case "/repositories/1/issues":
			fmt.Fprint(w, `[{"number": 1}]`)
		default:
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message": "Not Found"}`)
		}
	})
	srv := httptest.NewServer(api)
	defer srv.Close()

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "facts.db")
	cfg := writeConfig(t, dir, fmt.Sprintf(`db: %q
repositories: "acme/tool"
repeat: 3
github: base_url: %q
judges: ["issue-was-opened", "award-for-issue"]
`, dbPath, srv.URL))

	_, err := newTestRun(t, "text", "--config", cfg)
	require.NoError(t, err)

	issues := readFacts(t, dbPath, "(eq what 'issue-was-opened')")
	require.Len(t, issues, 1)
	who, _ := issues[0].Int("who")
	assert.Equal(t, int64(42), who)

	cursors := readFacts(t, dbPath, "(eq what 'issue_was_opened')")
	require.Len(t, cursors, 1)
	cursor, _ := cursors[0].Int("issue_was_opened")
	assert.Equal(t, int64(1), cursor)

	assert.Len(t, readFacts(t, dbPath, "(eq what 'award-for-issue')"), 1)
}

func TestRunUnknownJudge(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, fmt.Sprintf("db: %q\n", filepath.Join(dir, "facts.db")))

	_, err := newTestRun(t, "text", "--config", cfg, "no-such-judge")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.True(t, judge.IsConfigError(err))
}

func TestRunMissingConfig(t *testing.T) {
	_, err := newTestRun(t, "text", "--config", filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestRunBadRules(t *testing.T) {
	dir := t.TempDir()
	rules := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(rules, []byte("rules:\n  - kind: linear\n    x: lines\n    k: 1\n    because: size\n"), 0644))
	cfg := writeConfig(t, dir, fmt.Sprintf("db: %q\nrules: \"rules.yaml\"\n", filepath.Join(dir, "facts.db")))

	_, err := newTestRun(t, "text", "--config", cfg, "award-for-issue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "lines")
}

func TestRunCustomRules(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "facts.db")
	seedIssues(t, dbPath, 7)
	rules := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(rules, []byte("name: generous\nrules:\n  - kind: const\n    points: 40\n    because: reporting\n"), 0644))
	cfg := writeConfig(t, dir, fmt.Sprintf("db: %q\nrules: \"rules.yaml\"\n", dbPath))

	_, err := newTestRun(t, "text", "--config", cfg, "award-for-issue")
	require.NoError(t, err)

	awards := readFacts(t, dbPath, "(eq what 'award-for-issue')")
	require.Len(t, awards, 1)
	points, _ := awards[0].Int("award")
	assert.Equal(t, int64(40), points)
}

func TestLifetimeBudget(t *testing.T) {
	clock := testutil.NewManualClock(testutil.Epoch, 0)

	budget, err := lifetimeBudget(&config.Config{Lifetime: "90s"}, clock)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, budget.Lifetime)
	assert.False(t, budget.Over(testutil.Epoch, testutil.Epoch))
	clock.Advance(2 * time.Minute)
	assert.True(t, budget.Over(testutil.Epoch, testutil.Epoch))

	_, err = lifetimeBudget(&config.Config{Lifetime: "soon"}, clock)
	require.Error(t, err)
	var le *config.LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, config.ErrCodeInvalid, le.Code)
}
