package ports

import (
	"context"

	"metareview/domain/meta"
)

// StudyReader loads a study table from an external file into domain studies.
// Implementations own format detection and cell coercion; the returned
// studies are ready for validation and analysis.
type StudyReader interface {
	ReadStudies(ctx context.Context, path string) ([]meta.Study, error)
}
