package models

// SponsorFieldMax is the longest sponsor name or URL, in characters, the
// sponsor sub-collection stores.
const SponsorFieldMax = 50

// Sponsor is one row of an event's sponsor sub-collection.
type Sponsor struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Registration is one row of an event's registration sub-collection.
type Registration struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Confirm string `json:"confirm"`
}
