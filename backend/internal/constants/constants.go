package constants

// Provenance tags stamped into metadata["source"] by parsers. Extractor
// selection dispatches on these values.
const (
	SourceMarkdown  = "markdown"
	SourceFacebook  = "facebook"
	SourceGenealogy = "ancestry_gedcom"
)

// Metadata keys used on graphs and records
const (
	MetaSource       = "source"
	MetaCreatedAt    = "created_at"
	MetaLastUpdated  = "last_updated"
	MetaIngestionID  = "ingestion_id"
	MetaFilePath     = "file_path"
	MetaFocusPerson  = "focus_person_id"
	MetaIndividuals  = "total_individuals"
	MetaFamilies     = "total_families"
	MetaExportPath   = "export_path"
	MetaProfileOwner = "profile_owner"
)

// Confidence levels for extracted facts. Structural facts taken directly
// from a record field are certain; heuristic matches on free text are not.
const (
	ConfidenceStructural   = 1.0
	ConfidenceDescription  = 0.9
	ConfidenceEventPlace   = 0.8
	ConfidenceWorkplace    = 0.8
	ConfidenceEventPerson  = 0.7
	ConfidencePostMention  = 0.6
	ConfidenceFamilyPlace  = 0.6
	ConfidenceSocialFriend = 0.9
)

// Query defaults
const (
	// DefaultQueryDepth is accepted for forward compatibility; only one hop is expanded
	DefaultQueryDepth = 2
	// LiteralType marks a triplet object that is not an entity reference
	LiteralType = "literal"
	// IncomingPrefix and IncomingSuffix build reverse predicate labels (is_<predicate>_of)
	IncomingPrefix = "is_"
	IncomingSuffix = "_of"
)

// Storage defaults
const (
	StorageJSON   = "json"
	StorageSQLite = "sqlite"
	StorageNeo4j  = "neo4j"
)
