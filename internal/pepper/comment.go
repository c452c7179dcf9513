// Package pepper implements the comment extraction pipeline for
// pepper-style deal threads (mydealz.de): fetching comments through the
// GraphQL API, recovering them from raw page markup, normalizing both
// shapes into one canonical Comment and ordering them deterministically.
package pepper

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Comment is the canonical representation of a single thread comment,
// regardless of which extraction strategy produced it.
type Comment struct {
	// ID is the comment identifier as a string. Never empty.
	ID string

	// Author is the display name, empty when unknown.
	Author string

	// Text is the plain-text comment body, markup stripped.
	Text string

	// Timestamp is a display or machine timestamp, empty when unknown.
	Timestamp string

	// Images holds absolute image URLs, deduplicated, in first-seen
	// order.
	Images []string

	// CreatedTS is the creation time as an epoch value when the source
	// provided one; nil otherwise.
	CreatedTS *int64
}

var digitRunRe = regexp.MustCompile(`\d+`)

// sortKey returns the ordering key of the comment: the epoch timestamp
// when present, otherwise the last run of digits in the id, otherwise
// the id itself. ok reports whether a numeric key was found.
func (c *Comment) sortKey() (num int64, str string, ok bool) {
	if c.CreatedTS != nil {
		return *c.CreatedTS, "", true
	}

	if digits := digitRunRe.FindAllString(c.ID, -1); len(digits) > 0 {
		if n, err := strconv.ParseInt(digits[len(digits)-1], 10, 64); err == nil {
			return n, "", true
		}
	}

	return 0, c.ID, false
}

// CompareComments orders two comments by their sort key. Numeric keys
// compare numerically; as soon as either side lacks one, both keys
// degrade to string comparison so malformed input can never fail a
// sort.
func CompareComments(a, b *Comment) int {
	aNum, aStr, aOK := a.sortKey()
	bNum, bStr, bOK := b.sortKey()

	if aOK && bOK {
		switch {
		case aNum < bNum:
			return -1
		case aNum > bNum:
			return 1
		default:
			return 0
		}
	}

	if aOK {
		aStr = strconv.FormatInt(aNum, 10)
	}
	if bOK {
		bStr = strconv.FormatInt(bNum, 10)
	}

	return strings.Compare(aStr, bStr)
}

// SortComments sorts the slice ascending by the comment sort key. The
// sort is stable, with the id as a tie breaker for fully deterministic
// output.
func SortComments(comments []Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		if cmp := CompareComments(&comments[i], &comments[j]); cmp != 0 {
			return cmp < 0
		}
		return comments[i].ID < comments[j].ID
	})
}
