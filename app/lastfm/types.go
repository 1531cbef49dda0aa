package lastfm

type SimilarArtist struct {
	Name  string `json:"name"`
	Match string `json:"match"` // 0..1 similarity score as reported upstream
	URL   string `json:"url"`
}

type similarArtistsResponse struct {
	SimilarArtists struct {
		Artists []SimilarArtist `json:"artist"`
	} `json:"similarartists"`
	Error   int    `json:"error"`
	Message string `json:"message"`
}
