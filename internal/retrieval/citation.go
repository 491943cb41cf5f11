package retrieval

// BuildCitations projects the ranked, deduplicated item list into citation
// records, numbered sequentially from 1 in final ranked order. Pure function:
// the i-th citation always corresponds to the i-th ranked item, and missing
// optional fields render as empty strings.
func BuildCitations(ranked []*Item) []*Citation {
	citations := make([]*Citation, len(ranked))
	for i, item := range ranked {
		citations[i] = &Citation{
			ID:             i + 1,
			Title:          item.Title,
			URL:            item.URL,
			Domain:         item.Domain,
			Published:      item.PublishedAt,
			Author:         item.Author,
			RelevanceScore: item.RelevanceScore,
			AuthorityScore: item.AuthorityScore,
		}
	}
	return citations
}
