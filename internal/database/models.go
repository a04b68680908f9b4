package database

// Source item lifecycle states. Transitions are guarded by compare-and-set
// so that a manual rerun and a batch run can never both own an item.
const (
	StatusNew        = "new"
	StatusGenerating = "generating"
	StatusGenerated  = "generated"
	StatusImaging    = "imaging"
	StatusDrafted    = "drafted"
	StatusSkipped    = "skipped"
	StatusFailed     = "failed"
)

// SourceItem is one externally-sourced candidate story.
type SourceItem struct {
	ID          int64
	Link        string
	Title       string
	Summary     *string
	Body        *string
	Source      *string
	Category    *string
	CapturedAt  *string
	Status      string
	Error       *string
	Fingerprint *string
	Generated   *GeneratedPayload
}

// GeneratedPayload holds the rewrite output stored on a source item.
// Kept on the item so a failed imaging stage never discards generated text.
type GeneratedPayload struct {
	Title      string
	Summary    string
	BodyHTML   string
	Keywords   []string
	Similarity float64
	Strict     bool
	WordCount  int
}

// TopicFingerprint is a durable record of a covered topic.
type TopicFingerprint struct {
	Key         string
	FirstSeenAt *string
	LastSeenAt  *string
	Sources     []string
	LastTitle   string
	LastLink    string
}

// ImageAsset is a catalog entry describing one selectable image.
type ImageAsset struct {
	ID        int64
	PublicID  string
	URL       string
	Tags      []string
	Category  string
	Priority  int
	CreatedAt *string
}

// Draft is a pipeline-produced article payload pending promotion.
type Draft struct {
	ID              string
	ItemID          int64
	Title           string
	Slug            string
	Summary         string
	BodyHTML        string
	Category        string
	Tags            []string
	ImagePublicID   string
	ImageURL        string
	ImageTier       int
	ImageAlt        string
	MetaTitle       string
	MetaDescription string
	GeoMode         string
	GeoAreas        []string
	SourceURL       string
	SourceLabel     string
	Similarity      float64
	Strict          bool
	WordCount       int
	CreatedAt       *string
}

// Stats contains aggregate database statistics.
type Stats struct {
	TotalItems   int
	ByStatus     map[string]int
	Fingerprints int
	Assets       int
	Drafts       int
}
