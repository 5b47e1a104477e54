package pages

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/secnexus/internal/common"
	"github.com/dmitrijs2005/secnexus/internal/models"
)

// EventCreator is the event adapter as seen by the form.
type EventCreator interface {
	CreateEvent(ctx context.Context, in models.EventInput, banner models.Banner, sponsors []models.Sponsor) (string, error)
}

// openFile is a test seam.
var openFile = func(path string) (io.ReadCloser, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, st.Size(), nil
}

// EventFormPage collects a new event and submits it.
type EventFormPage struct {
	events EventCreator

	Input      models.EventInput
	BannerPath string
	Sponsors   []models.Sponsor

	Loading bool
	Error   string
	Created bool
}

func NewEventFormPage(events EventCreator) *EventFormPage {
	return &EventFormPage{events: events}
}

// AddSponsor appends a sponsor row; order is kept.
func (p *EventFormPage) AddSponsor(name, url string) {
	p.Sponsors = append(p.Sponsors, models.Sponsor{Name: strings.TrimSpace(name), URL: strings.TrimSpace(url)})
}

// Validate reports the first missing required field or sponsor value the
// store would reject.
func (p *EventFormPage) Validate() error {
	switch {
	case strings.TrimSpace(p.Input.Name) == "":
		return fmt.Errorf("event name is required")
	case strings.TrimSpace(p.Input.Date) == "":
		return fmt.Errorf("event date is required")
	case p.BannerPath == "":
		return fmt.Errorf("banner image is required")
	case p.Input.Attendees < 0:
		return fmt.Errorf("attendees cannot be negative")
	case p.Input.Price < 0:
		return fmt.Errorf("price cannot be negative")
	}
	for i, sp := range p.Sponsors {
		if utf8.RuneCountInString(sp.Name) > models.SponsorFieldMax {
			return fmt.Errorf("sponsor %d: name is longer than %d characters", i+1, models.SponsorFieldMax)
		}
		if utf8.RuneCountInString(sp.URL) > models.SponsorFieldMax {
			return fmt.Errorf("sponsor %d: url is longer than %d characters", i+1, models.SponsorFieldMax)
		}
	}
	return nil
}

// Submit uploads the banner and creates the event. On success it routes to
// the landing page.
func (p *EventFormPage) Submit(ctx context.Context) (Route, bool) {
	p.Error, p.Created = "", false
	if err := p.Validate(); err != nil {
		p.Error = err.Error()
		return RouteCreate, false
	}

	body, size, err := openFile(p.BannerPath)
	if err != nil {
		p.Error = fmt.Sprintf("cannot read banner: %v", err)
		return RouteCreate, false
	}
	defer body.Close()

	p.Loading = true
	defer func() { p.Loading = false }()

	name := filepath.Base(p.BannerPath)
	res, err := p.events.CreateEvent(ctx, p.Input, models.Banner{
		FileName:    name,
		ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(name))),
		Size:        size,
		Body:        body,
	}, p.Sponsors)
	if err != nil {
		p.Error = err.Error()
		return RouteCreate, false
	}
	p.Created = res == common.SuccessMarker
	return RouteLanding, p.Created
}

func (p *EventFormPage) Render(w io.Writer) {
	heading(w, "Create Event")
	fmt.Fprintf(w, "Name:      %s\n", p.Input.Name)
	fmt.Fprintf(w, "Date:      %s\n", p.Input.Date)
	fmt.Fprintf(w, "Host:      %s\n", p.Input.HostName)
	fmt.Fprintf(w, "Banner:    %s\n", p.BannerPath)
	fmt.Fprintf(w, "Sponsors:  %d\n", len(p.Sponsors))
	switch {
	case p.Loading:
		fmt.Fprintln(w, "Creating event...")
	case p.Error != "":
		fmt.Fprintf(w, "! %s\n", p.Error)
	case p.Created:
		fmt.Fprintln(w, "Event created. Registration and sponsor lists are being prepared.")
	}
}
