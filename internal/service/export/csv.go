// Package export renders the public directory as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/aimd54/component-directory/internal/models"
)

// Header is the fixed column order of the export.
var Header = []string{
	"name",
	"description",
	"version",
	"license",
	"weeklyDownloads",
	"unpackedSize",
	"totalFiles",
	"lastPublish",
	"repositoryUrl",
	"homepageUrl",
	"npmUrl",
	"submittedAt",
}

// WriteCSV writes the header and one row per listed package. Packages that are not
// listed are skipped.
func WriteCSV(w io.Writer, packages []models.Package) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for i := range packages {
		pkg := &packages[i]
		if !pkg.IsListed() {
			continue
		}
		if err := cw.Write(row(pkg)); err != nil {
			return fmt.Errorf("failed to write csv row for %s: %w", pkg.Name, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

func row(pkg *models.Package) []string {
	return []string{
		pkg.Name,
		pkg.Description,
		pkg.Version,
		pkg.License,
		strconv.FormatInt(pkg.WeeklyDownloads, 10),
		strconv.FormatInt(pkg.UnpackedSize, 10),
		strconv.Itoa(pkg.TotalFiles),
		formatTime(pkg.LastPublish),
		pkg.RepositoryURL,
		pkg.HomepageURL,
		pkg.NpmURL,
		formatTime(&pkg.SubmittedAt),
	}
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
