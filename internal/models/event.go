package models

import "io"

// EventInput carries the fields of the event-creation form.
type EventInput struct {
	Name        string
	Description string
	HostName    string
	Date        string
	Email       string
	Country     string
	Address     string
	City        string
	State       string
	Postal      string
	Audience    string
	Type        string
	Attendees   int
	Price       float64
	Tech        string
	Agenda      string
	Approval    string
	Twitter     string
	Website     string
	LinkedIn    string
	Instagram   string
}

// Event is the stored event record. JSON keys match the events collection.
type Event struct {
	ID            string   `json:"$id,omitempty"`
	Name          string   `json:"eventname"`
	Description   string   `json:"description"`
	BannerURL     string   `json:"url"`
	HostName      string   `json:"hostname"`
	Date          string   `json:"eventdate"`
	Email         string   `json:"email"`
	Country       string   `json:"country"`
	Address       string   `json:"address"`
	City          string   `json:"city"`
	State         string   `json:"state"`
	Postal        string   `json:"postal"`
	Audience      string   `json:"audience"`
	Type          string   `json:"type"`
	Attendees     int      `json:"attendees"`
	Price         float64  `json:"price"`
	Tech          string   `json:"tech"`
	Agenda        string   `json:"agenda"`
	Approval      string   `json:"approval"`
	CreatedBy     string   `json:"created"`
	Twitter       string   `json:"twitter"`
	Website       string   `json:"website"`
	LinkedIn      string   `json:"linkedin"`
	Instagram     string   `json:"instagram"`
	Registrations []string `json:"registrations"`
}

// NewEvent builds the record for in, owned by creatorID. Registrations is
// always an empty, non-nil list so it is stored as [] rather than null.
func NewEvent(in EventInput, bannerURL, creatorID string) *Event {
	return &Event{
		Name:          in.Name,
		Description:   in.Description,
		BannerURL:     bannerURL,
		HostName:      in.HostName,
		Date:          in.Date,
		Email:         in.Email,
		Country:       in.Country,
		Address:       in.Address,
		City:          in.City,
		State:         in.State,
		Postal:        in.Postal,
		Audience:      in.Audience,
		Type:          in.Type,
		Attendees:     in.Attendees,
		Price:         in.Price,
		Tech:          in.Tech,
		Agenda:        in.Agenda,
		Approval:      in.Approval,
		CreatedBy:     creatorID,
		Twitter:       in.Twitter,
		Website:       in.Website,
		LinkedIn:      in.LinkedIn,
		Instagram:     in.Instagram,
		Registrations: []string{},
	}
}

// Fields returns the record as a document field map.
func (e *Event) Fields() map[string]any {
	return map[string]any{
		"eventname":     e.Name,
		"description":   e.Description,
		"url":           e.BannerURL,
		"hostname":      e.HostName,
		"eventdate":     e.Date,
		"email":         e.Email,
		"country":       e.Country,
		"address":       e.Address,
		"city":          e.City,
		"state":         e.State,
		"postal":        e.Postal,
		"audience":      e.Audience,
		"type":          e.Type,
		"attendees":     e.Attendees,
		"price":         e.Price,
		"tech":          e.Tech,
		"agenda":        e.Agenda,
		"approval":      e.Approval,
		"created":       e.CreatedBy,
		"twitter":       e.Twitter,
		"website":       e.Website,
		"linkedin":      e.LinkedIn,
		"instagram":     e.Instagram,
		"registrations": e.Registrations,
	}
}

// Banner is the image uploaded with a new event.
type Banner struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}
