package pages

import (
	"fmt"
	"io"
)

// Contact details shown on the contact page.
const (
	SupportEmail   = "support@sec-nexus.edu.in"
	SupportPhone   = "+91 123 456 7890"
	CollegeAddress = "St. Edmund's College, Shillong"
)

var aboutText = []string{
	"SEC-NEXUS is a comprehensive event management platform designed specifically for St. Edmund's College. " +
		"Our mission is to streamline the process of organizing, managing, and participating in college events.",
	"Built with modern web technologies, SEC-NEXUS provides a unified platform for event creation, " +
		"registration, and management, eliminating the need for multiple disconnected tools.",
}

// AboutPage is static.
type AboutPage struct{}

func (AboutPage) Render(w io.Writer) {
	heading(w, "About SEC-NEXUS")
	for _, p := range aboutText {
		fmt.Fprintln(w, p)
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, "← Back to Home (nexus home)")
}

// ContactPage is static.
type ContactPage struct{}

func (ContactPage) Render(w io.Writer) {
	heading(w, "Contact Us")
	fmt.Fprintln(w, "Have questions about SEC-NEXUS? We're here to help!")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Email:   %s\n", SupportEmail)
	fmt.Fprintf(w, "Phone:   %s\n", SupportPhone)
	fmt.Fprintf(w, "Address: %s\n", CollegeAddress)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "← Back to Home (nexus home)")
}
