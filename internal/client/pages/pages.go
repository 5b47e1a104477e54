// Package pages holds the views of the SEC-NEXUS client. Each page keeps its
// own transient state (field values, loading flag, error text) and renders
// itself as plain text; the cli package drives them from user input.
package pages

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/secnexus/internal/models"
)

// Route names a page.
type Route string

const (
	RouteHome    Route = "/"
	RouteLogin   Route = "/login"
	RouteLanding Route = "/landing"
	RouteAbout   Route = "/about"
	RouteContact Route = "/contact"
	RouteCreate  Route = "/create"
)

// SnapshotReader reads the persisted user snapshot.
type SnapshotReader interface {
	Snapshot(ctx context.Context) (*models.User, error)
}

// CollegeSite is the official site of the college.
const CollegeSite = "https://sec.edu.in/"

func heading(w io.Writer, title string) {
	fmt.Fprintln(w, title)
	fmt.Fprintln(w, strings.Repeat("=", len(title)))
}
