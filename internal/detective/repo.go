package detective

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"auditor/internal/court"
)

// GitFunc runs git with args inside dir and returns stdout.
type GitFunc func(ctx context.Context, dir string, args ...string) ([]byte, error)

// RepoInvestigator reads git history and scans source files for
// orchestration, state, tooling and output-schema signals.
type RepoInvestigator struct {
	MaxCommits int
	// MaxFlaws caps security-flaw items so one bad file cannot flood the set.
	MaxFlaws int
	Git      GitFunc
}

// NewRepoInvestigator returns an investigator that shells out to the git binary.
func NewRepoInvestigator() *RepoInvestigator {
	return &RepoInvestigator{MaxCommits: 200, MaxFlaws: 20, Git: runGit}
}

func (r *RepoInvestigator) ID() string { return IDRepo }

func (r *RepoInvestigator) Produce(ctx context.Context, c court.Case) ([]court.EvidenceItem, error) {
	if err := requireDir(c.Repository, ErrNoRepository); err != nil {
		return nil, err
	}

	items, err := r.history(ctx, c.Repository)
	if err != nil {
		return nil, err
	}
	scan, err := r.scan(ctx, c.Repository)
	if err != nil {
		return nil, err
	}
	return append(items, scan...), nil
}

func runGit(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) && len(ee.Stderr) > 0 {
			return nil, fmt.Errorf("git %s: %s", strings.Join(args, " "), strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

type commit struct {
	hash    string
	when    time.Time
	subject string
}

func (r *RepoInvestigator) history(ctx context.Context, repo string) ([]court.EvidenceItem, error) {
	if _, err := os.Stat(filepath.Join(repo, ".git")); err != nil {
		return []court.EvidenceItem{{
			Category:   court.CategoryRepo,
			Claim:      "no git history: the repository is not a git checkout",
			Found:      false,
			Confidence: 0.9,
			Locator:    court.Locator{Path: repo},
		}}, nil
	}

	limit := r.MaxCommits
	if limit <= 0 {
		limit = 200
	}
	git := r.Git
	if git == nil {
		git = runGit
	}
	out, err := git(ctx, repo, "log", "--max-count="+strconv.Itoa(limit), "--pretty=format:%h|%at|%s")
	if err != nil {
		return nil, err
	}
	commits := parseLog(out)
	return commitEvidence(commits), nil
}

func parseLog(out []byte) []commit {
	var commits []commit
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		parts := strings.SplitN(line, "|", 3)
		if len(parts) != 3 {
			continue
		}
		ts, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			continue
		}
		commits = append(commits, commit{hash: parts[0], when: time.Unix(ts, 0).UTC(), subject: parts[2]})
	}
	return commits
}

// commitEvidence classifies the history: two commits or fewer is a bulk
// upload; more than three spread over more than an hour is atomic
// progression; anything else is clustered.
func commitEvidence(commits []commit) []court.EvidenceItem {
	n := len(commits)
	if n == 0 {
		return []court.EvidenceItem{{
			Category: court.CategoryRepo, Claim: "git history has no commits", Confidence: 0.9,
		}}
	}

	oldest, newest := commits[0].when, commits[0].when
	meaningful := 0
	for _, c := range commits {
		if c.when.Before(oldest) {
			oldest = c.when
		}
		if c.when.After(newest) {
			newest = c.when
		}
		if len(c.subject) > 10 {
			meaningful++
		}
	}
	span := newest.Sub(oldest)

	items := []court.EvidenceItem{{
		Category:   court.CategoryRepo,
		Claim:      fmt.Sprintf("git history has %d commits spanning %s, %d with meaningful messages", n, span.Round(time.Minute), meaningful),
		Found:      true,
		Confidence: 1,
	}}
	switch {
	case n <= 2:
		items = append(items, court.EvidenceItem{
			Category: court.CategoryRepo, Confidence: 0.9,
			Claim: fmt.Sprintf("commit history looks like a bulk upload (%d commits)", n),
		})
	case n > 3 && span > time.Hour:
		items = append(items, court.EvidenceItem{
			Category: court.CategoryRepo, Confidence: 0.8, Found: true,
			Claim: fmt.Sprintf("commit history shows atomic progression across %d commits", n),
		})
	default:
		items = append(items, court.EvidenceItem{
			Category: court.CategoryRepo, Confidence: 0.6,
			Claim: fmt.Sprintf("commit history is clustered: %d commits within %s", n, span.Round(time.Minute)),
		})
	}
	return items
}

// signal is one source pattern the scan looks for. Claims must carry the
// rubric keywords of the dimension they inform.
type signal struct {
	name    string
	pattern *regexp.Regexp
	found   string // claim when present; %d files, %s first location
	absent  string // claim when missing; empty means say nothing
}

var (
	unsafeExec = regexp.MustCompile(`os\.system\(|os\.popen\(|subprocess\.\w+\([^)]*shell\s*=\s*True|exec\.Command(Context)?\([^)]*"(sh|bash)",\s*"-c"|child_process\.exec\(`)

	signals = []signal{
		{
			name:    "argv-exec",
			pattern: regexp.MustCompile(`subprocess\.run\(\[|exec\.Command(Context)?\(`),
			found:   "argument-vector process exec found in %d files (first: %s)",
		},
		{
			name:    "sandbox",
			pattern: regexp.MustCompile(`tempfile\.(TemporaryDirectory|mkdtemp)|os\.MkdirTemp\(|ioutil\.TempDir\(`),
			found:   "sandboxed temporary working directories used in %d files (first: %s)",
			absent:  "no sandbox: tools never create temporary working directories",
		},
		{
			name:    "typed-state",
			pattern: regexp.MustCompile(`class \w+\((BaseModel|TypedDict)\)|type \w+State struct`),
			found:   "typed state definitions found in %d files (first: %s)",
			absent:  "no typed state definitions found",
		},
		{
			name:    "reducer",
			pattern: regexp.MustCompile(`operator\.(add|ior)|Annotated\[.*,\s*\w+\]|[Rr]educer`),
			found:   "state reducer found in %d files (first: %s)",
			absent:  "no state reducer found for concurrent writers",
		},
		{
			name:    "graph",
			pattern: regexp.MustCompile(`StateGraph\(|\.add_edge\(|\.add_conditional_edges\(`),
			found:   "graph construct (StateGraph / add_edge) found in %d files (first: %s)",
		},
		{
			name:    "parallel",
			pattern: regexp.MustCompile(`errgroup\.|sync\.WaitGroup|asyncio\.gather\(|Send\(|ThreadPoolExecutor`),
			found:   "parallel fan-out construct found in %d files (first: %s)",
			absent:  "no parallel fan-out construct found; execution looks linear",
		},
		{
			name:    "structured",
			pattern: regexp.MustCompile(`with_structured_output\(|json_schema|jsonschema|model_validate`),
			found:   "structured output schema binding found in %d files (first: %s)",
			absent:  "no structured output schema binding found",
		},
	}

	sourceExt = map[string]bool{".go": true, ".py": true, ".js": true, ".ts": true, ".sh": true, ".rb": true}
	skipDirs  = map[string]bool{".git": true, "vendor": true, "node_modules": true, ".venv": true, "venv": true, "__pycache__": true}
)

type hit struct {
	path string
	line int
}

func (r *RepoInvestigator) scan(ctx context.Context, repo string) ([]court.EvidenceItem, error) {
	hits := make(map[string][]hit, len(signals))
	var flaws []court.EvidenceItem
	files := 0
	maxFlaws := r.MaxFlaws
	if maxFlaws <= 0 {
		maxFlaws = 20
	}

	err := filepath.WalkDir(repo, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !sourceExt[filepath.Ext(path)] {
			return nil
		}
		rel, _ := filepath.Rel(repo, path)
		rel = filepath.ToSlash(rel)
		files++

		f, err := os.Open(path)
		if err != nil {
			return nil
		}
		defer f.Close()

		seen := make(map[string]bool)
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for ln := 1; sc.Scan(); ln++ {
			text := sc.Text()
			if m := unsafeExec.FindString(text); m != "" && len(flaws) < maxFlaws {
				flaws = append(flaws, court.EvidenceItem{
					Category:   court.CategorySecurityFlaw,
					Claim:      fmt.Sprintf("unsafe shell exec via %s", strings.TrimSuffix(m, "(")),
					Found:      true,
					Confidence: 0.9,
					Locator:    court.Locator{Path: rel, LineStart: ln},
				})
			}
			for _, s := range signals {
				if !seen[s.name] && s.pattern.MatchString(text) {
					seen[s.name] = true
					hits[s.name] = append(hits[s.name], hit{path: rel, line: ln})
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	items := []court.EvidenceItem{}
	for _, s := range signals {
		h := hits[s.name]
		if len(h) == 0 {
			if s.absent != "" {
				items = append(items, court.EvidenceItem{Category: court.CategoryRepo, Claim: s.absent, Confidence: 0.7})
			}
			continue
		}
		sort.Slice(h, func(i, j int) bool { return h[i].path < h[j].path })
		first := court.Locator{Path: h[0].path, LineStart: h[0].line}
		items = append(items, court.EvidenceItem{
			Category:   court.CategoryRepo,
			Claim:      fmt.Sprintf(s.found, len(h), first),
			Found:      true,
			Confidence: 0.8,
			Locator:    first,
		})
	}
	if len(flaws) == 0 {
		items = append(items, court.EvidenceItem{
			Category:   court.CategoryRepo,
			Claim:      fmt.Sprintf("no unsafe shell exec found in %d source files", files),
			Found:      true,
			Confidence: 0.8,
		})
	}
	return append(items, flaws...), nil
}
