package review

import (
	"fmt"
	"strings"

	"github.com/aimd54/component-directory/internal/models"
	"github.com/aimd54/component-directory/internal/source"
)

// BuildPrompt renders the review instructions, rubric and repository snapshot.
func BuildPrompt(pkg *models.Package, snapshot *source.Snapshot, rubric *Rubric) string {
	var sb strings.Builder

	sb.WriteString("You are reviewing an npm package that claims to be a reusable backend component. ")
	sb.WriteString("Check the repository contents below against each rubric criterion.\n\n")

	fmt.Fprintf(&sb, "Package: %s", pkg.Name)
	if pkg.Version != "" {
		fmt.Fprintf(&sb, "@%s", pkg.Version)
	}
	sb.WriteString("\n")
	if pkg.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", pkg.Description)
	}
	fmt.Fprintf(&sb, "Repository: %s\n\n", pkg.RepositoryURL)

	sb.WriteString("Rubric:\n")
	for _, c := range rubric.Criteria {
		kind := "optional"
		if c.Critical {
			kind = "critical"
		}
		fmt.Fprintf(&sb, "- %s (%s, %s): %s\n", c.Key, c.Name, kind, strings.TrimSpace(c.Description))
	}

	sb.WriteString("\nRepository contents:\n")
	if snapshot.Definition != nil {
		writeFile(&sb, *snapshot.Definition)
	} else {
		sb.WriteString("(no convex.config.ts found in any conventional location)\n")
	}
	for _, f := range snapshot.Files {
		writeFile(&sb, f)
	}

	sb.WriteString("\nAnswer format. You may think out loud first, then end with exactly these lines and nothing after them:\n")
	sb.WriteString("SUMMARY: <one paragraph overall assessment>\n")
	sb.WriteString("CRITERION: <key> | PASS or FAIL | <short justification>\n")
	sb.WriteString("Write one CRITERION line for every rubric key listed above, using the key verbatim. ")
	sb.WriteString("Use FAIL when the evidence is missing. Do not wrap the lines in markdown.\n")

	return sb.String()
}

func writeFile(sb *strings.Builder, f source.File) {
	fmt.Fprintf(sb, "\n--- %s", f.Path)
	if f.Truncated {
		sb.WriteString(" (truncated)")
	}
	sb.WriteString(" ---\n")
	sb.WriteString(f.Content)
	if !strings.HasSuffix(f.Content, "\n") {
		sb.WriteString("\n")
	}
}
