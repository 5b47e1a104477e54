// Package cli provides the SEC-NEXUS command-line client.
//
// It wires configuration, the local state database, the session and event
// adapters and the provisioning dispatcher behind a cobra command tree.
// Every command drives one page from internal/client/pages and renders it
// to the terminal:
//
//	nexus                    home page
//	nexus about | contact    static pages
//	nexus login              sign in (--signup, --google, --reset)
//	nexus logout | whoami    session management
//	nexus profile            change the display name
//	nexus events create      event form
//	nexus events list        events created by the signed-in user
//	nexus events watch [id]  provisioning outcomes
package cli
