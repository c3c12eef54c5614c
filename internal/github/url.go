package github

import (
	"regexp"
	"strconv"

	"github.com/hongjs/code-tanuki/internal/apperr"
	"github.com/hongjs/code-tanuki/internal/review"
)

var pullURLRe = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)/pull/(\d+)`)

// ParsePullRequestURL extracts owner, repository and number from a
// github.com pull-request URL.
func ParsePullRequestURL(raw string) (review.PRRef, error) {
	m := pullURLRe.FindStringSubmatch(raw)
	if m == nil {
		return review.PRRef{}, apperr.Validation("invalid GitHub PR URL format, expected https://github.com/owner/repo/pull/123")
	}
	n, err := strconv.Atoi(m[3])
	if err != nil || n < 1 {
		return review.PRRef{}, apperr.Validation("invalid pull request number %q", m[3])
	}
	return review.PRRef{Owner: m[1], Repo: m[2], Number: n}, nil
}
