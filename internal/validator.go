package internal

import (
	"fmt"
	"regexp"
	"strings"
)

// Regular expressions for validating Reddit data formats
var (
	// base36Regex matches base36 encoded IDs (0-9, a-z)
	base36Regex = regexp.MustCompile(`^[0-9a-z]+$`)

	// subredditRegex matches valid subreddit names (3-21 chars, alphanumeric + underscore)
	subredditRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,21}$`)

	// usernameRegex matches valid Reddit usernames (3-20 chars, alphanumeric + underscore + hyphen)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,20}$`)

	// fullnameRegex matches Reddit fullname IDs: type prefix + base36 ID
	fullnameRegex = regexp.MustCompile(`^t[1-6]_[0-9a-z]+$`)
)

const (
	// MaxListingLimit is the largest page size Reddit accepts for listings.
	MaxListingLimit = 100

	// MaxMoreChildrenIDs is the largest id batch morechildren accepts per call.
	MaxMoreChildrenIDs = 100
)

// IsValidBase36 checks if a string is a valid base36 encoded ID.
func IsValidBase36(s string) bool {
	return s != "" && base36Regex.MatchString(s)
}

// IsValidSubreddit checks if a string is a valid subreddit name.
func IsValidSubreddit(s string) bool {
	return subredditRegex.MatchString(s)
}

// IsValidUsername checks if a string is a valid Reddit username.
func IsValidUsername(s string) bool {
	return usernameRegex.MatchString(s)
}

// IsValidFullname checks if a string is a valid Reddit fullname ID.
func IsValidFullname(s string) bool {
	return fullnameRegex.MatchString(s)
}

// ValidateSubreddit returns an error describing why a subreddit name is
// unusable, or nil. A leading "r/" or "/r/" prefix is rejected rather than
// stripped so callers notice they passed the wrong form.
func ValidateSubreddit(name string) error {
	if name == "" {
		return fmt.Errorf("subreddit name is required")
	}
	if strings.HasPrefix(name, "r/") || strings.HasPrefix(name, "/r/") {
		return fmt.Errorf("subreddit name %q must not include the r/ prefix", name)
	}
	if !IsValidSubreddit(name) {
		return fmt.Errorf("invalid subreddit name: %q", name)
	}
	return nil
}

// ValidateUsername returns an error describing why a username is unusable,
// or nil.
func ValidateUsername(name string) error {
	if name == "" {
		return fmt.Errorf("username is required")
	}
	if strings.HasPrefix(name, "u/") || strings.HasPrefix(name, "/u/") {
		return fmt.Errorf("username %q must not include the u/ prefix", name)
	}
	if !IsValidUsername(name) {
		return fmt.Errorf("invalid username: %q", name)
	}
	return nil
}

// ValidateFullname checks that s is a well-formed fullname such as "t3_abc123".
func ValidateFullname(s string) error {
	if s == "" {
		return fmt.Errorf("fullname is required")
	}
	if !IsValidFullname(s) {
		return fmt.Errorf("invalid fullname: %q", s)
	}
	return nil
}

// ValidateLimit checks a listing page size. Zero means "use the server
// default" and is always valid.
func ValidateLimit(limit int) error {
	if limit < 0 {
		return fmt.Errorf("limit must not be negative, got %d", limit)
	}
	if limit > MaxListingLimit {
		return fmt.Errorf("limit must be at most %d, got %d", MaxListingLimit, limit)
	}
	return nil
}

// ValidateStickySlot checks a sticky position. Reddit exposes exactly two
// sticky slots per subreddit.
func ValidateStickySlot(slot int) error {
	if slot != 1 && slot != 2 {
		return fmt.Errorf("sticky slot must be 1 or 2, got %d", slot)
	}
	return nil
}

// ChunkIDs splits a list of comment ids into batches no larger than
// MaxMoreChildrenIDs, preserving order.
func ChunkIDs(ids []string) [][]string {
	if len(ids) == 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(ids)+MaxMoreChildrenIDs-1)/MaxMoreChildrenIDs)
	for len(ids) > MaxMoreChildrenIDs {
		chunks = append(chunks, ids[:MaxMoreChildrenIDs])
		ids = ids[MaxMoreChildrenIDs:]
	}
	chunks = append(chunks, ids)
	return chunks
}
