package recommend

import "github.com/actuallystonmai/meme-recommendation-service/internal/domain"

type DiversityMetrics struct {
	UniqueTags      int     `json:"unique_tags"`
	TotalTags       int     `json:"total_tags"`
	TagDiversity    float64 `json:"tag_diversity"`
	UniqueAuthors   int     `json:"unique_authors"`
	TotalAuthors    int     `json:"total_authors"`
	AuthorDiversity float64 `json:"author_diversity"`
}

// AnalyzeDiversity measures tag and author variety of a result set. Items
// without an author do not count towards TotalAuthors. Nil items are ignored.
func AnalyzeDiversity(items []*domain.Item) DiversityMetrics {
	tags := make(map[string]struct{})
	authors := make(map[int64]struct{})

	var m DiversityMetrics
	for _, it := range items {
		if it == nil {
			continue
		}
		m.TotalTags += len(it.Tags)
		for _, t := range it.Tags {
			tags[t] = struct{}{}
		}
		if it.AuthorID != 0 {
			m.TotalAuthors++
			authors[it.AuthorID] = struct{}{}
		}
	}

	m.UniqueTags = len(tags)
	m.UniqueAuthors = len(authors)
	if m.TotalTags > 0 {
		m.TagDiversity = float64(m.UniqueTags) / float64(m.TotalTags)
	}
	if m.TotalAuthors > 0 {
		m.AuthorDiversity = float64(m.UniqueAuthors) / float64(m.TotalAuthors)
	}
	return m
}
