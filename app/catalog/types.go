package catalog

// User is the request-scoped identity of the authenticated collector,
// resolved by the API layer and passed explicitly into services.
type User struct {
	ID       int64
	Username string
}

type Artist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Format struct {
	Name         string   `json:"name"`
	Qty          string   `json:"qty"`
	Descriptions []string `json:"descriptions"`
}

type Track struct {
	Position string `json:"position"`
	Title    string `json:"title"`
	Duration string `json:"duration"`
}

type Identifier struct {
	Type        string `json:"type"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

type Image struct {
	Type string `json:"type"` // "primary" or "secondary"
	URI  string `json:"uri"`
}

// ReleaseDetail is the full release resource from /releases/{id}.
type ReleaseDetail struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Year        int          `json:"year"`
	Artists     []Artist     `json:"artists"`
	Formats     []Format     `json:"formats"`
	Tracklist   []Track      `json:"tracklist"`
	Identifiers []Identifier `json:"identifiers"`
	Images      []Image      `json:"images"`
	Notes       string       `json:"notes"`
	Thumb       string       `json:"thumb"`
}

type Pagination struct {
	Page    int `json:"page"`
	Pages   int `json:"pages"`
	PerPage int `json:"per_page"`
	Items   int `json:"items"`
}

// BasicInformation is the release summary embedded in collection and
// wantlist listings.
type BasicInformation struct {
	ID         int64    `json:"id"`
	Title      string   `json:"title"`
	Year       int      `json:"year"`
	Artists    []Artist `json:"artists"`
	Formats    []Format `json:"formats"`
	CoverImage string   `json:"cover_image"`
	Thumb      string   `json:"thumb"`
}

type CollectionRelease struct {
	ID               int64            `json:"id"`
	InstanceID       int64            `json:"instance_id"`
	DateAdded        string           `json:"date_added"`
	BasicInformation BasicInformation `json:"basic_information"`
}

type CollectionPage struct {
	Pagination Pagination          `json:"pagination"`
	Releases   []CollectionRelease `json:"releases"`
}

type Want struct {
	ID               int64            `json:"id"`
	DateAdded        string           `json:"date_added"`
	BasicInformation BasicInformation `json:"basic_information"`
}

type WantlistPage struct {
	Pagination Pagination `json:"pagination"`
	Wants      []Want     `json:"wants"`
}

type SearchResult struct {
	ID         int64    `json:"id"`
	Type       string   `json:"type"`
	Title      string   `json:"title"`
	Year       string   `json:"year"`
	Format     []string `json:"format"`
	Thumb      string   `json:"thumb"`
	CoverImage string   `json:"cover_image"`
}

type SearchPage struct {
	Pagination Pagination     `json:"pagination"`
	Results    []SearchResult `json:"results"`
}

// DisplayArtist flattens the artist list to a single display string.
func (b BasicInformation) DisplayArtist() string {
	return joinArtists(b.Artists)
}

func (d ReleaseDetail) DisplayArtist() string {
	return joinArtists(d.Artists)
}

func joinArtists(artists []Artist) string {
	switch len(artists) {
	case 0:
		return ""
	case 1:
		return artists[0].Name
	}
	s := artists[0].Name
	for _, a := range artists[1:] {
		s += ", " + a.Name
	}
	return s
}

// PrimaryFormat returns the first format name and a comma-joined detail
// string of its descriptions.
func (d ReleaseDetail) PrimaryFormat() (string, string) {
	if len(d.Formats) == 0 {
		return "", ""
	}
	f := d.Formats[0]
	details := ""
	for i, desc := range f.Descriptions {
		if i > 0 {
			details += ", "
		}
		details += desc
	}
	return f.Name, details
}

// PrimaryImage returns the primary image URI, falling back to the first
// image, then the thumbnail.
func (d ReleaseDetail) PrimaryImage() string {
	for _, img := range d.Images {
		if img.Type == "primary" {
			return img.URI
		}
	}
	if len(d.Images) > 0 {
		return d.Images[0].URI
	}
	return d.Thumb
}
