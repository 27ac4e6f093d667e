package models

// TableOfContents is the index page of a news site: article titles mapped
// to article URLs.
type TableOfContents struct {
	*Resource
}

// NewTableOfContents creates an empty table of contents for url.
func NewTableOfContents(url string) *TableOfContents {
	return &TableOfContents{Resource: NewResource(url)}
}

// TitlesAndURLs returns the titles with their article URLs, in page order.
func (t *TableOfContents) TitlesAndURLs() []Entry {
	return t.Entries()
}

// Article is a single news article. Its content keys are the paragraphs
// (headings included) in page order; links are unused.
type Article struct {
	*Resource
}

// NewArticle creates an empty article for url.
func NewArticle(url string) *Article {
	return &Article{Resource: NewResource(url)}
}

// Text returns the article paragraphs.
func (a *Article) Text() []string {
	c := a.Content()
	text := make([]string, 0, c.Len())
	for p := c.Oldest(); p != nil; p = p.Next() {
		text = append(text, p.Key)
	}
	return text
}

// Title returns the first paragraph, which site scripts emit as the headline.
func (a *Article) Title() string {
	if p := a.Content().Oldest(); p != nil {
		return p.Key
	}
	return ""
}
