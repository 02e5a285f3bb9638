package recognition

import "github.com/arcana-family/arcana/internal/providers"

// shelfSchema is the answer shape requested from backends that enforce one
var shelfSchema = &providers.Schema{
	Type: providers.TypeArray,
	Items: &providers.Schema{
		Type: providers.TypeObject,
		Properties: map[string]*providers.Schema{
			"title":       {Type: providers.TypeString, Description: "Full title as printed"},
			"author":      {Type: providers.TypeString, Description: "Author name as printed"},
			"confidence":  {Type: providers.TypeNumber, Description: "Legibility of title and author, 0 to 1"},
			"isbn":        {Type: providers.TypeString, Description: "ISBN, only when legible"},
			"publisher":   {Type: providers.TypeString},
			"collection":  {Type: providers.TypeString, Description: "Series or imprint collection"},
			"visualHints": {Type: providers.TypeString},
		},
		Required: []string{"title", "author", "confidence"},
	},
}

const shelfPrompt = `You are an expert bibliographer. Identify every book visible in this photo of a bookshelf.

Be exhaustive: read every spine, including thin, tilted or partly hidden ones.

For each book return:
- "title": the full title as printed on the spine or cover.
- "author": the author's name as printed.
- "isbn": an ISBN-10 or ISBN-13 only if it is actually legible (back cover, spine or barcode). Omit it otherwise.
- "publisher": the publisher, if its name or logo is visible.
- "collection": the series or imprint collection (for example "Folio SF", "Le Livre de Poche", "Penguin Classics"), if visible.
- "visualHints": a short note on the visual cues you relied on (colours, typography, logo).
- "confidence": a number between 0 and 1 reflecting how legible the title and author were. Use 1.0 when an ISBN is legible.

Rules:
- If a spine is completely illegible, leave that book out. Never guess a title you cannot read.
- If the title or author is only partly legible, give your best reading and lower the confidence.
- If no book can be identified, return an empty array [].

Respond with ONLY a raw JSON array, no Markdown and no commentary:
[{"title": "...", "author": "...", "publisher": "...", "collection": "...", "isbn": "...", "visualHints": "...", "confidence": 0.85}]`
