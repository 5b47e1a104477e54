package pages

import (
	"context"
	"fmt"
	"io"
)

const homeIntro = "Event creation, registration, and management are often handled across multiple platforms such as Google Forms, WhatsApp, and spreadsheets, leading to inefficiency, data loss, and a fragmented experience for both organisers and participants. There is no unified, real-time system to manage events end-to-end, resulting in communication delays, duplicate work and a lack of scalability."

// HomePage is the landing page shown before sign-in.
type HomePage struct {
	snapshots SnapshotReader
}

func NewHomePage(snapshots SnapshotReader) *HomePage {
	return &HomePage{snapshots: snapshots}
}

// GetStarted routes to the event landing page when a user snapshot is
// persisted and to the login page otherwise. The snapshot is not validated
// against the Identity Service.
func (p *HomePage) GetStarted(ctx context.Context) Route {
	u, err := p.snapshots.Snapshot(ctx)
	if err != nil || u == nil {
		return RouteLogin
	}
	return RouteLanding
}

func (p *HomePage) Render(w io.Writer) {
	fmt.Fprintf(w, "Click the link to visit St. Edmund's College Official Website: %s\n\n", CollegeSite)
	heading(w, "Welcome to SEC-NEXUS")
	fmt.Fprintln(w, homeIntro)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Get started:  nexus login   (or nexus home --start)")
	fmt.Fprintln(w, "Learn more:   nexus about")
}
