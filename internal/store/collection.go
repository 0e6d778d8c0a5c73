package store

import (
	"regexp"
	"strings"
)

const collectionPrefix = "rsvps-"

var (
	nonSlugChars = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespace   = regexp.MustCompile(`\s+`)
	dashRuns     = regexp.MustCompile(`-+`)
)

// CollectionNameFor derives the RSVP collection identifier for an event
// name: lower-cased, special characters stripped, whitespace runs collapsed
// to single dashes. Compute it once when the event is created; the result is
// the permanent key of the event's RSVP collection.
func CollectionNameFor(eventName string) string {
	slug := strings.ToLower(eventName)
	slug = nonSlugChars.ReplaceAllString(slug, "")
	slug = whitespace.ReplaceAllString(slug, "-")
	slug = dashRuns.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	return collectionPrefix + slug
}

// DegenerateCollectionName reports whether name carries no slug at all,
// which happens when the event name had no alphanumeric characters. Such
// names are rejected at event creation.
func DegenerateCollectionName(name string) bool {
	return name == collectionPrefix
}
