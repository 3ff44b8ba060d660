// Package config holds the settings shared by fmsite and fmbuild.
//
// Values come from built-in defaults, then a .env file in the site root,
// then command line flags that were explicitly set.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/avisek/frontend-mentor-solutions/internal/registry"
)

// Defaults from the published site.
const (
	DefaultBase         = "/frontend-mentor-solutions/"
	DefaultHTTP         = "localhost:3368"
	DefaultManifest     = "solutions.yaml"
	DefaultHomepageDir  = "homepage"
	DefaultSolutionsDir = "solutions"
	DefaultOutDir       = "dist"
	DefaultRepoTreeURL  = "https://github.com/avisek/frontend-mentor-solutions/tree/main/solutions"
	DefaultLiveURL      = "https://avisek.github.io/frontend-mentor-solutions/"

	// RegistryFile is the name of the resolved registry document.
	RegistryFile = "solutions.json"
	// SchemaFile is the name of the manifest JSON Schema document.
	SchemaFile = "solutions.schema.json"
	// DesignDir is the per-solution directory of reference images.
	DesignDir = "design"
	// NotFoundFile is the fallback document static hosts serve on a miss.
	NotFoundFile = "404.html"
)

// Config is the resolved configuration.
type Config struct {
	Root         string
	Base         string
	HTTP         string
	LogLevel     string
	ManifestPath string
	HomepageDir  string
	SolutionsDir string
	OutDir       string
	RepoTreeURL  string
	LiveURL      string
	// RateLimit is the number of requests per minute allowed per client. 0
	// disables rate limiting.
	RateLimit int
	// DetectLinks derives RepoTreeURL and LiveURL from the git origin remote
	// when neither .env nor flags set them.
	DetectLinks bool
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Root:         ".",
		Base:         DefaultBase,
		HTTP:         DefaultHTTP,
		LogLevel:     "info",
		ManifestPath: DefaultManifest,
		HomepageDir:  DefaultHomepageDir,
		SolutionsDir: DefaultSolutionsDir,
		OutDir:       DefaultOutDir,
		RepoTreeURL:  DefaultRepoTreeURL,
		LiveURL:      DefaultLiveURL,
		DetectLinks:  true,
	}
}

// RegisterFlags binds the configuration to fs.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Root, "root", c.Root, "Site root containing the manifest, homepage/ and solutions/")
	fs.StringVar(&c.Base, "base", c.Base, "Public base path the site is published under")
	fs.StringVar(&c.HTTP, "http", c.HTTP, "Address to listen on (e.g., localhost:3368, :3368)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&c.ManifestPath, "manifest", c.ManifestPath, "Solution manifest, relative to -root (.yaml, .yml or .toml)")
	fs.StringVar(&c.OutDir, "out", c.OutDir, "Build output directory, relative to -root")
	fs.StringVar(&c.RepoTreeURL, "repo-url", c.RepoTreeURL, "Default repository link prefix; the solution id is appended")
	fs.StringVar(&c.LiveURL, "live-url", c.LiveURL, "Default live link prefix; the solution id is appended")
	fs.IntVar(&c.RateLimit, "rate-limit", c.RateLimit, "Requests per minute per client, 0 to disable")
	fs.BoolVar(&c.DetectLinks, "detect-links", c.DetectLinks, "Derive default links from the git origin remote")
}

// envKeys maps .env keys to the flag they stand in for.
var envKeys = []struct {
	key  string
	flag string
}{
	{"HTTP", "http"},
	{"BASE", "base"},
	{"LOG_LEVEL", "log-level"},
	{"REPO_URL", "repo-url"},
	{"LIVE_URL", "live-url"},
	{"RATE_LIMIT", "rate-limit"},
}

// Resolve applies the .env file found in the root to every setting whose
// flag was not explicitly set on fs, detects repository links, and
// validates the result.
func (c *Config) Resolve(fs *flag.FlagSet) error {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	env, err := LoadDotEnv(c.Root)
	if err != nil {
		return err
	}
	if err := c.ApplyEnv(env, set); err != nil {
		return err
	}
	linksSet := set["repo-url"] || set["live-url"] || env["REPO_URL"] != "" || env["LIVE_URL"] != ""
	if c.DetectLinks && !linksSet {
		repoTree, live, err := DetectLinks(c.Root, c.SolutionsDir)
		if err == nil {
			c.RepoTreeURL, c.LiveURL = repoTree, live
		}
	}
	return c.Validate()
}

// ApplyEnv overrides settings from env unless their flag is in set.
func (c *Config) ApplyEnv(env map[string]string, set map[string]bool) error {
	for _, k := range envKeys {
		v := env[k.key]
		if v == "" || set[k.flag] {
			continue
		}
		switch k.key {
		case "HTTP":
			c.HTTP = v
		case "BASE":
			c.Base = v
		case "LOG_LEVEL":
			c.LogLevel = v
		case "REPO_URL":
			c.RepoTreeURL = v
		case "LIVE_URL":
			c.LiveURL = v
		case "RATE_LIMIT":
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid RATE_LIMIT in .env: %w", err)
			}
			c.RateLimit = n
		}
	}
	return nil
}

// Validate normalizes and checks the configuration.
func (c *Config) Validate() error {
	c.Base = NormalizeBase(c.Base)
	fi, err := os.Stat(c.Root)
	if err != nil {
		return fmt.Errorf("invalid root: %w", err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("invalid root: %s is not a directory", c.Root)
	}
	if c.RateLimit < 0 {
		return errors.New("rate-limit must not be negative")
	}
	if c.ManifestPath == "" {
		return errors.New("manifest path is required")
	}
	if c.HomepageDir == "" || c.SolutionsDir == "" || c.OutDir == "" {
		return errors.New("homepage, solutions and output directories are required")
	}
	// Normalize addr: ":3368" becomes "localhost:3368".
	if strings.HasPrefix(c.HTTP, ":") {
		c.HTTP = "localhost" + c.HTTP
	}
	return nil
}

// NormalizeBase returns b in "/x/" form.
func NormalizeBase(b string) string {
	b = path.Clean("/" + strings.TrimSpace(b))
	if b == "/" {
		return b
	}
	return b + "/"
}

// Path resolves a root-relative path.
func (c *Config) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(c.Root, rel)
}

// Links returns the link patterns the registry fills defaults from.
func (c *Config) Links() registry.Links {
	return registry.Links{Base: c.Base, RepoTreeURL: c.RepoTreeURL, LiveURL: c.LiveURL}
}

// LoadDotEnv reads KEY=value pairs from dir/.env. A missing file is not an
// error.
func LoadDotEnv(dir string) (map[string]string, error) {
	env := make(map[string]string)
	p := filepath.Join(dir, ".env")
	content, err := os.ReadFile(p) //nolint:gosec // G304: path is constructed from the root flag.
	if err != nil {
		if os.IsNotExist(err) {
			return env, nil
		}
		return nil, err
	}

	for line := range strings.SplitSeq(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)

		if strings.HasPrefix(val, "'") || strings.HasSuffix(val, "'") {
			if strings.HasPrefix(val, "'") && strings.HasSuffix(val, "'") {
				return nil, fmt.Errorf("single quotes are not supported for wrapping in .env: %s", line)
			}
			return nil, fmt.Errorf("unbalanced single quotes in .env: %s", line)
		}

		if strings.HasPrefix(val, "\"") {
			unquoted, err := strconv.Unquote(val)
			if err != nil {
				return nil, fmt.Errorf("failed to unquote %s: %w", key, err)
			}
			val = unquoted
		}

		env[key] = val
	}
	return env, nil
}
