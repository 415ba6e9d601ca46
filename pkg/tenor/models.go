package tenor

// SearchResponse is the body of a /v2/search call
type SearchResponse struct {
	Results []Result `json:"results"`
	Next    string   `json:"next"`
}

// Result is a single search hit
type Result struct {
	ID           string                 `json:"id"`
	Title        string                 `json:"title"`
	ItemURL      string                 `json:"itemurl"`
	MediaFormats map[string]MediaFormat `json:"media_formats"`
}

// MediaFormat describes one rendition of a result
type MediaFormat struct {
	URL      string  `json:"url"`
	Dims     []int   `json:"dims"`
	Duration float64 `json:"duration"`
	Size     int64   `json:"size"`
}

// GIFURL returns the URL of the full gif rendition, if any
func (r Result) GIFURL() string {
	return r.MediaFormats["gif"].URL
}
