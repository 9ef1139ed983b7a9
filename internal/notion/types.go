package notion

// Request and response shapes for the subset of the Notion REST API used by
// the importer. Field names follow the API's JSON.

type Filter struct {
	And      []Filter       `json:"and,omitempty"`
	Property string         `json:"property,omitempty"`
	RichText *TextCondition `json:"rich_text,omitempty"`
	Date     *DateCondition `json:"date,omitempty"`
}

// TextCondition always sends "contains"; an empty value matches any title
// and the API rejects an empty condition object.
type TextCondition struct {
	Contains string `json:"contains"`
}

type DateCondition struct {
	Equals string `json:"equals,omitempty"`
}

type QueryRequest struct {
	Filter   *Filter `json:"filter,omitempty"`
	PageSize int     `json:"page_size,omitempty"`
}

type QueryResponse struct {
	Object  string `json:"object"`
	Results []Page `json:"results"`
	HasMore bool   `json:"has_more"`
}

type Page struct {
	Object string `json:"object"`
	ID     string `json:"id"`
	URL    string `json:"url,omitempty"`
}

type Parent struct {
	DatabaseID string `json:"database_id"`
}

// PropertyValue is one entry of a page's "properties" object. Exactly one of
// the fields is set.
type PropertyValue struct {
	Title  []RichText `json:"title,omitempty"`
	Date   *DateValue `json:"date,omitempty"`
	People []User     `json:"people,omitempty"`
}

type RichText struct {
	Type string `json:"type,omitempty"`
	Text Text   `json:"text"`
}

type Text struct {
	Content string `json:"content"`
}

type DateValue struct {
	Start string `json:"start"`
}

type User struct {
	ID string `json:"id"`
}

type Block struct {
	Object    string          `json:"object"`
	Type      string          `json:"type"`
	Paragraph *ParagraphBlock `json:"paragraph,omitempty"`
}

type ParagraphBlock struct {
	RichText []RichText `json:"rich_text"`
}

type CreatePageRequest struct {
	Parent     Parent                   `json:"parent"`
	Properties map[string]PropertyValue `json:"properties"`
	Children   []Block                  `json:"children,omitempty"`
}

// Paragraph returns a paragraph block holding a single plain text run.
func Paragraph(content string) Block {
	return Block{
		Object: "block",
		Type:   "paragraph",
		Paragraph: &ParagraphBlock{
			RichText: []RichText{{Type: "text", Text: Text{Content: content}}},
		},
	}
}
