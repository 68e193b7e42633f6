package records

// Store keys. Values are JSON.
const (
	KeySchemaVersion = "schema_version"
	KeyPostings      = "postings"
	KeyConnections   = "connections"

	// KeyLegacyBackup holds the untouched generation-1 dataset once it has
	// been migrated.
	KeyLegacyBackup = "job_applications_backup"
)

// LegacyKeys lists the names older releases stored generation-1 records under,
// in the order they are probed. The first key holding a non-empty list is the
// legacy dataset; later keys are ignored even when they hold data.
var LegacyKeys = []string{
	"job_applications",
	"applications",
}

// CurrentSchemaVersion is the generation this build reads and writes.
const CurrentSchemaVersion = 3
