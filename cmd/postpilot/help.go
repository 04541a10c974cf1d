// ABOUTME: Help display for the postpilot CLI with grouped flags, examples, and environment status.
// ABOUTME: Provides printHelp for usage output and envStatus for configuration detection.
package main

import (
	"fmt"
	"io"
	"os"
)

const postpilotASCII = `
        __
       /  \__        ____  ____  _____/ /_____  (_) /___  / /_
      (    @\___    / __ \/ __ \/ ___/ __/ __ \/ / / __ \/ __/
      /         O  / /_/ / /_/ (__  ) /_/ /_/ / / / /_/ / /_
     /   (_____/  / .___/\____/____/\__/ .___/_/_/\____/\__/
    /_____/   U  /_/                  /_/
`

// printHelp writes a formatted help message to w, including usage patterns,
// grouped flags, examples, environment status, and a docs link.
func printHelp(w io.Writer, ver string) {
	fmt.Fprint(w, postpilotASCII)
	fmt.Fprintf(w, "postpilot %s — social post campaign runner\n", ver)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  postpilot <campaign.yaml>           Run a campaign")
	fmt.Fprintln(w, "  postpilot -validate <campaign.yaml> Validate without executing")
	fmt.Fprintln(w, "  postpilot -server                   Start HTTP API server")
	fmt.Fprintln(w, "  postpilot -credits <owner>          Show a credit balance")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -tui                  Run with interactive terminal UI")
	fmt.Fprintln(w, "  -verbose              Verbose output")
	fmt.Fprintln(w, "  -validate             Validate a campaign without executing")
	fmt.Fprintln(w, "  -server               Start HTTP server mode")
	fmt.Fprintln(w, "  -credits <owner>      Show the credit balance for an owner")
	fmt.Fprintln(w, "  -version              Print version and exit")
	fmt.Fprintln(w, "  -help                 Show this help")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  postpilot campaigns/spring_launch.yaml")
	fmt.Fprintln(w, "  postpilot -tui campaigns/spring_launch.yaml")
	fmt.Fprintln(w, "  postpilot -validate campaigns/spring_launch.yaml")
	fmt.Fprintln(w, "  postpilot -server")
	fmt.Fprintln(w, "  postpilot -credits acme-team")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment:")
	fmt.Fprintf(w, "  POSTPILOT_CREDENTIALS    %s\n", envStatus("POSTPILOT_CREDENTIALS"))
	fmt.Fprintf(w, "  POSTPILOT_DATABASE_URL   %s\n", envStatus("POSTPILOT_DATABASE_URL"))
	fmt.Fprintf(w, "  POSTPILOT_GENERATOR_URL  %s\n", envStatus("POSTPILOT_GENERATOR_URL"))
	fmt.Fprintf(w, "  POSTPILOT_GRAPH_TOKEN    %s\n", envStatus("POSTPILOT_GRAPH_TOKEN"))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  A credentials file is required for campaign execution;")
	fmt.Fprintln(w, "  without a Graph token, publish steps run in dry-run mode.")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Docs: https://github.com/postpilot-io/postpilot")
}

// envStatus returns "[set]" if the named environment variable is non-empty,
// or "[not set]" otherwise.
func envStatus(key string) string {
	if os.Getenv(key) != "" {
		return "[set]"
	}
	return "[not set]"
}
