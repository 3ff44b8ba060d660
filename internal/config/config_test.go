package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	env, err := LoadDotEnv(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(env) != 0 {
		t.Errorf("missing .env should be empty, got %v", env)
	}

	writeFile(t, filepath.Join(dir, ".env"), `# comment
HTTP=:4000
BASE = "/site/"

not a pair
REPO_URL="https://example.com/tree\tx"
`)
	env, err = LoadDotEnv(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"HTTP":     ":4000",
		"BASE":     "/site/",
		"REPO_URL": "https://example.com/tree\tx",
	}
	if diff := cmp.Diff(want, env); diff != "" {
		t.Errorf("env mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadDotEnv_SingleQuotes(t *testing.T) {
	for _, line := range []string{"BASE='/x/'", "BASE='/x/", "BASE=/x/'"} {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, ".env"), line+"\n")
		if _, err := LoadDotEnv(dir); err == nil {
			t.Errorf("%s: expected an error", line)
		}
	}
}

func TestResolve_Precedence(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".env"), "HTTP=:4000\nBASE=site\nLOG_LEVEL=debug\nRATE_LIMIT=60\nREPO_URL=https://example.com/tree\n")

	c := Default()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)
	if err := fs.Parse([]string{"-root", root, "-log-level", "warn"}); err != nil {
		t.Fatal(err)
	}
	if err := c.Resolve(fs); err != nil {
		t.Fatal(err)
	}
	if c.HTTP != "localhost:4000" {
		t.Errorf("HTTP = %q", c.HTTP)
	}
	if c.Base != "/site/" {
		t.Errorf("Base = %q", c.Base)
	}
	if c.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, the flag should win over .env", c.LogLevel)
	}
	if c.RateLimit != 60 {
		t.Errorf("RateLimit = %d", c.RateLimit)
	}
	if c.RepoTreeURL != "https://example.com/tree" || c.LiveURL != DefaultLiveURL {
		t.Errorf("links = %q, %q", c.RepoTreeURL, c.LiveURL)
	}
	links := c.Links()
	if links.Base != "/site/" || links.RepoTreeURL != c.RepoTreeURL {
		t.Errorf("Links() = %+v", links)
	}
	if got := c.Path("solutions.yaml"); got != filepath.Join(root, "solutions.yaml") {
		t.Errorf("Path = %q", got)
	}
}

func TestResolve_Errors(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".env"), "RATE_LIMIT=lots\n")
	c := Default()
	c.Root = root
	if err := c.Resolve(flag.NewFlagSet("test", flag.ContinueOnError)); err == nil {
		t.Error("expected an error for a bad RATE_LIMIT")
	}

	c = Default()
	c.Root = filepath.Join(root, "missing")
	if err := c.Validate(); err == nil {
		t.Error("expected an error for a missing root")
	}

	c = Default()
	c.Root = root
	c.RateLimit = -1
	if err := c.Validate(); err == nil {
		t.Error("expected an error for a negative rate limit")
	}
}

func TestNormalizeBase(t *testing.T) {
	tests := map[string]string{
		"":                            "/",
		"/":                           "/",
		"site":                        "/site/",
		"/site":                       "/site/",
		"/site/":                      "/site/",
		" /a//b/ ":                    "/a/b/",
		"/frontend-mentor-solutions/": "/frontend-mentor-solutions/",
	}
	for in, want := range tests {
		if got := NormalizeBase(in); got != want {
			t.Errorf("NormalizeBase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseGitHubRemote(t *testing.T) {
	tests := []struct {
		in    string
		owner string
		name  string
		ok    bool
	}{
		{"https://github.com/avisek/frontend-mentor-solutions.git", "avisek", "frontend-mentor-solutions", true},
		{"https://github.com/avisek/frontend-mentor-solutions", "avisek", "frontend-mentor-solutions", true},
		{"git@github.com:avisek/frontend-mentor-solutions.git", "avisek", "frontend-mentor-solutions", true},
		{"ssh://git@github.com/avisek/site/", "avisek", "site", true},
		{"https://gitlab.com/avisek/site.git", "", "", false},
		{"https://github.com/avisek", "", "", false},
		{"https://github.com/a/b/c", "", "", false},
	}
	for _, tt := range tests {
		owner, name, ok := ParseGitHubRemote(tt.in)
		if owner != tt.owner || name != tt.name || ok != tt.ok {
			t.Errorf("ParseGitHubRemote(%q) = %q, %q, %v", tt.in, owner, name, ok)
		}
	}
}

func TestPagesURL(t *testing.T) {
	if got := PagesURL("Avisek", "frontend-mentor-solutions"); got != "https://avisek.github.io/frontend-mentor-solutions/" {
		t.Errorf("PagesURL = %q", got)
	}
	if got := PagesURL("avisek", "avisek.github.io"); got != "https://avisek.github.io/" {
		t.Errorf("PagesURL = %q", got)
	}
}

func TestDetectLinks(t *testing.T) {
	dir := t.TempDir()
	repo, err := gogit.PlainInitWithOptions(dir, &gogit.PlainInitOptions{
		InitOptions: gogit.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("gh-pages-src")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{"git@github.com:avisek/frontend-mentor-solutions.git"},
	}); err != nil {
		t.Fatal(err)
	}
	site := filepath.Join(dir, "site")
	if err := os.Mkdir(site, 0o755); err != nil {
		t.Fatal(err)
	}

	repoTree, live, err := DetectLinks(site, "solutions")
	if err != nil {
		t.Fatal(err)
	}
	if want := "https://github.com/avisek/frontend-mentor-solutions/tree/gh-pages-src/site/solutions"; repoTree != want {
		t.Errorf("repoTree = %q, want %q", repoTree, want)
	}
	if want := "https://avisek.github.io/frontend-mentor-solutions/"; live != want {
		t.Errorf("live = %q, want %q", live, want)
	}

	if _, _, err := DetectLinks(t.TempDir(), "solutions"); err == nil {
		t.Error("expected an error outside a git repository")
	}
}
