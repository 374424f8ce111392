package places

import (
	"fmt"
	"net/url"
)

// ImageURLs builds static map and street-view image URLs for a coordinate.
// These are plain URL builders; rendering happens entirely in the browser.
type ImageURLs struct {
	APIKey  string
	BaseURL string
	Size    string
	Zoom    int
}

// NewImageURLs creates a builder with the production defaults.
func NewImageURLs(apiKey string) *ImageURLs {
	return &ImageURLs{
		APIKey:  apiKey,
		BaseURL: "https://maps.googleapis.com",
		Size:    "600x300",
		Zoom:    15,
	}
}

// StreetView returns a static street-view image URL for the coordinate.
func (b *ImageURLs) StreetView(lat, lng float64) string {
	params := url.Values{
		"size":     {b.Size},
		"location": {fmt.Sprintf("%f,%f", lat, lng)},
		"key":      {b.APIKey},
	}
	return b.BaseURL + "/maps/api/streetview?" + params.Encode()
}

// StaticMap returns a static map image URL centered on the coordinate with a
// single red marker.
func (b *ImageURLs) StaticMap(lat, lng float64) string {
	center := fmt.Sprintf("%f,%f", lat, lng)
	params := url.Values{
		"size":    {b.Size},
		"zoom":    {fmt.Sprintf("%d", b.Zoom)},
		"center":  {center},
		"markers": {"color:red|" + center},
		"key":     {b.APIKey},
	}
	return b.BaseURL + "/maps/api/staticmap?" + params.Encode()
}
