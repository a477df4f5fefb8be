package domain

// Release holds the metadata needed to create a hosting-platform release.
type Release struct {
	Version *Version
	Package string
	Notes   string
	Title   string
	Draft   bool
	Target  string
}
