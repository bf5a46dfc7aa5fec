package schema

// Style is a catalog entry: a named nail style with a display-only size range
// and a reference image under images/.
type Style struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MinLabel  string `json:"minLabel"`
	MaxLabel  string `json:"maxLabel"`
	ImageFile string `json:"imageFile"`
}

// Validate checks if the Style has valid field values.
// The image file is a reference only and is not required to exist.
func (s *Style) Validate() error {
	if s.ID == "" {
		return invalid("style", "id", "is required")
	}
	return nil
}

// Key returns the primary key.
func (s *Style) Key() string { return s.ID }

// ImagePath returns the relative asset path of the style image, or "" when the
// style has none.
func (s *Style) ImagePath() string {
	if s.ImageFile == "" {
		return ""
	}
	return "./images/" + s.ImageFile
}
