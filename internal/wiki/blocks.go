package wiki

import "unicode/utf8"

// Block is one Notion block object.
type Block map[string]any

// RichText is one element of a rich_text array.
type RichText map[string]any

// MaxTextLength is the longest content a single rich text element may hold.
const MaxTextLength = 2000

func Text(s string) RichText {
	return RichText{"type": "text", "text": map[string]any{"content": s}}
}

func Bold(s string) RichText {
	rt := Text(s)
	rt["annotations"] = map[string]any{"bold": true}
	return rt
}

func Link(s, href string) RichText {
	return RichText{
		"type":        "text",
		"text":        map[string]any{"content": s, "link": map[string]any{"url": href}},
		"annotations": map[string]any{"bold": true},
	}
}

func block(kind string, body map[string]any) Block {
	return Block{"object": "block", "type": kind, kind: body}
}

func rich(rt []RichText) map[string]any {
	if rt == nil {
		rt = []RichText{}
	}
	return map[string]any{"rich_text": rt}
}

// Heading builds heading_1..heading_3; other levels are clamped.
func Heading(level int, s string) Block {
	kind := "heading_2"
	switch {
	case level <= 1:
		kind = "heading_1"
	case level >= 3:
		kind = "heading_3"
	}
	return block(kind, rich([]RichText{Text(s)}))
}

func Paragraph(rt ...RichText) Block { return block("paragraph", rich(rt)) }

func Bullet(rt ...RichText) Block { return block("bulleted_list_item", rich(rt)) }

func Numbered(rt ...RichText) Block { return block("numbered_list_item", rich(rt)) }

func Divider() Block { return block("divider", map[string]any{}) }

// Callout builds a callout with an emoji icon. An empty color keeps the
// default.
func Callout(emoji, color string, rt ...RichText) Block {
	body := rich(rt)
	body["icon"] = map[string]any{"type": "emoji", "emoji": emoji}
	if color != "" {
		body["color"] = color
	}
	return block("callout", body)
}

func Code(language, content string) Block {
	body := rich([]RichText{Text(content)})
	body["language"] = language
	return block("code", body)
}

func Toggle(title []RichText, children []Block) Block {
	body := rich(title)
	body["children"] = children
	return block("toggle", body)
}

// CodeChunks splits content into code blocks that each fit the text limit.
func CodeChunks(language, content string) []Block {
	var out []Block
	for _, chunk := range Chunk(content, MaxTextLength) {
		out = append(out, Code(language, chunk))
	}
	return out
}

// Chunk splits s into pieces of at most n runes. Concatenating the pieces
// gives back s.
func Chunk(s string, n int) []string {
	if s == "" {
		return nil
	}
	var out []string
	for len(s) > 0 {
		if utf8.RuneCountInString(s) <= n {
			out = append(out, s)
			break
		}
		cut, count := 0, 0
		for i := range s {
			if count == n {
				cut = i
				break
			}
			count++
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	return out
}

// TitleProperty is the value of a title property.
func TitleProperty(s string) map[string]any {
	return map[string]any{"title": []RichText{Text(s)}}
}

func SelectProperty(name string) map[string]any {
	return map[string]any{"select": map[string]any{"name": name}}
}

func RichTextProperty(s string) map[string]any {
	return map[string]any{"rich_text": []RichText{Text(s)}}
}
