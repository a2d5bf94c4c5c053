// Package model holds the plain data types shared by the repositories, the
// services and the templates. Nothing here touches storage or HTTP.
package model

import "time"

// Environment selects how a snippet is rendered in the preview frame.
type Environment string

const (
	Environment2D Environment = "2d"
	Environment3D Environment = "3d" // adds the three.js runtime to the preview
)

// Valid reports whether e is one of the known rendering environments.
func (e Environment) Valid() bool {
	return e == Environment2D || e == Environment3D
}

// Snippet is a user-authored unit of HTML/CSS/JS code plus its social metadata.
//
// SLUG vs ID:
// ID is the opaque primary key (an xid). Slug is the human-readable URL key
// derived from the title once, at creation. Both are unique; only the slug
// appears in page URLs.
//
// COUNTERS:
// ViewsCount, LikesCount and ForksCount are denormalised aggregates. They are
// only ever changed by atomic SQL increments in the repository, never written
// back from a value the application read earlier.
type Snippet struct {
	ID          string      `json:"id"`
	UserID      string      `json:"userId"`
	Username    string      `json:"username,omitempty"` // owner's username, filled by list/detail queries
	Title       string      `json:"title"`
	Slug        string      `json:"slug"`
	Description string      `json:"description"`
	HTMLCode    string      `json:"htmlCode"`
	CSSCode     string      `json:"cssCode"`
	JSCode      string      `json:"jsCode"`
	Environment Environment `json:"environment"`
	Tags        []string    `json:"tags"`

	ViewsCount int `json:"viewsCount"`
	LikesCount int `json:"likesCount"`
	ForksCount int `json:"forksCount"`

	// ForkedFrom is the ID of the snippet this one was copied from.
	// nil for originals, and reset to nil when the parent is deleted.
	ForkedFrom *string `json:"forkedFrom,omitempty"`

	IsPublic bool `json:"isPublic"`
	IsPinned bool `json:"isPinned"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// View is one entry in the append-only view log.
// UserID is empty for anonymous viewers.
type View struct {
	ID        string    `json:"id"`
	SnippetID string    `json:"snippetId"`
	UserID    string    `json:"userId,omitempty"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
}

// Comment is a single comment on a snippet.
type Comment struct {
	ID        string    `json:"id"`
	SnippetID string    `json:"snippetId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
