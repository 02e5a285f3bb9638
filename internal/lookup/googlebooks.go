package lookup

import (
	"fmt"
	"strings"

	"github.com/arcana-family/arcana/internal/models"
	"github.com/arcana-family/arcana/internal/utils"
	books "google.golang.org/api/books/v1"
)

func toCandidate(v *books.Volume) models.MetadataCandidate {
	c := models.MetadataCandidate{ExternalID: v.Id, Categories: []string{}}
	info := v.VolumeInfo
	if info == nil {
		return c
	}

	c.Title = info.Title
	c.Subtitle = info.Subtitle
	c.Authors = info.Authors
	c.Publisher = info.Publisher
	c.PublishedDate = info.PublishedDate
	c.Description = info.Description
	c.PageCount = int(info.PageCount)
	if len(info.Categories) > 0 {
		c.Categories = info.Categories
	}
	c.ISBN = isbnFrom(info.IndustryIdentifiers)
	c.CoverURL = bestCoverURL(info.ImageLinks)
	if c.CoverURL == "" && c.ISBN != "" {
		c.CoverURL = openLibraryCoverURL(c.ISBN)
	}
	return c
}

// isbnFrom prefers ISBN-13 over ISBN-10.
func isbnFrom(ids []*books.VolumeVolumeInfoIndustryIdentifiers) string {
	var isbn10 string
	for _, id := range ids {
		if id == nil {
			continue
		}
		switch id.Type {
		case "ISBN_13":
			return id.Identifier
		case "ISBN_10":
			if isbn10 == "" {
				isbn10 = id.Identifier
			}
		}
	}
	return isbn10
}

// bestCoverURL picks the largest image and rewrites it into a flat https URL.
func bestCoverURL(links *books.VolumeVolumeInfoImageLinks) string {
	if links == nil {
		return ""
	}

	var url string
	for _, candidate := range []string{
		links.ExtraLarge,
		links.Large,
		links.Medium,
		links.Small,
		links.Thumbnail,
		links.SmallThumbnail,
	} {
		if candidate != "" {
			url = candidate
			break
		}
	}
	if url == "" {
		return ""
	}

	url = strings.Replace(url, "http:", "https:", 1)
	url = strings.Replace(url, "&edge=curl", "", 1)
	url = strings.Replace(url, "&zoom=1", "&zoom=0", 1)
	return url
}

func openLibraryCoverURL(isbn string) string {
	return fmt.Sprintf("https://covers.openlibrary.org/b/isbn/%s-L.jpg", utils.CleanISBN(isbn))
}
