// Derives the default repository and live links from the git checkout.

package config

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// DetectLinks opens the git repository containing root and derives the
// repository tree URL of solutionsDir and the GitHub Pages URL from the
// origin remote and the current branch. Only GitHub remotes are recognized.
func DetectLinks(root, solutionsDir string) (repoTreeURL, liveURL string, err error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", "", err
	}
	repo, err := gogit.PlainOpenWithOptions(abs, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", "", fmt.Errorf("failed to open git repository: %w", err)
	}
	remote, err := repo.Remote("origin")
	if err != nil {
		return "", "", fmt.Errorf("failed to get origin remote: %w", err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", "", errors.New("origin remote has no URL")
	}
	owner, name, ok := ParseGitHubRemote(urls[0])
	if !ok {
		return "", "", fmt.Errorf("origin %q is not a GitHub remote", urls[0])
	}

	branch := "main"
	// HEAD is read unresolved so that a branch without commits still works.
	if ref, err := repo.Reference(plumbing.HEAD, false); err == nil {
		if ref.Type() == plumbing.SymbolicReference {
			branch = ref.Target().Short()
		}
	}

	rel := "."
	if wt, err := repo.Worktree(); err == nil {
		if r, err := relPath(wt.Filesystem.Root(), abs); err == nil {
			rel = r
		}
	}
	repoTreeURL = fmt.Sprintf("https://github.com/%s/%s/tree/%s/%s", owner, name, branch, path.Join(filepath.ToSlash(rel), solutionsDir))
	liveURL = PagesURL(owner, name)
	return repoTreeURL, liveURL, nil
}

func relPath(base, target string) (string, error) {
	if b, err := filepath.EvalSymlinks(base); err == nil {
		base = b
	}
	if t, err := filepath.EvalSymlinks(target); err == nil {
		target = t
	}
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside %s", target, base)
	}
	return rel, nil
}

// ParseGitHubRemote extracts the owner and repository name from an https,
// ssh or scp-style GitHub remote URL.
func ParseGitHubRemote(remote string) (owner, name string, ok bool) {
	var rest string
	switch {
	case strings.HasPrefix(remote, "git@github.com:"):
		rest = strings.TrimPrefix(remote, "git@github.com:")
	default:
		for _, prefix := range []string{"https://github.com/", "http://github.com/", "ssh://git@github.com/", "git://github.com/"} {
			if r, found := strings.CutPrefix(remote, prefix); found {
				rest = r
				break
			}
		}
	}
	if rest == "" {
		return "", "", false
	}
	rest = strings.TrimSuffix(strings.TrimSuffix(rest, "/"), ".git")
	owner, name, ok = strings.Cut(rest, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", false
	}
	return owner, name, true
}

// PagesURL returns the GitHub Pages URL of a repository, with a trailing
// slash.
func PagesURL(owner, name string) string {
	host := strings.ToLower(owner) + ".github.io"
	if strings.EqualFold(name, host) {
		return "https://" + host + "/"
	}
	return "https://" + host + "/" + name + "/"
}
