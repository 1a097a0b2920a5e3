package notion

import (
	"time"

	"github.com/jomei/notionapi"
)

// Property constructors for the page shapes the export sink writes.
// Each returns a ready Property value for a PageCreateRequest or
// PageUpdateRequest properties map.

// Title builds the database title property.
func Title(s string) notionapi.TitleProperty {
	return notionapi.TitleProperty{
		Type: notionapi.PropertyTypeTitle,
		Title: []notionapi.RichText{
			{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}},
		},
	}
}

// Text builds a rich_text property holding a single plain string.
func Text(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		Type: notionapi.PropertyTypeRichText,
		RichText: []notionapi.RichText{
			{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}},
		},
	}
}

// SelectOption builds a select property with the given option name.
func SelectOption(s string) notionapi.SelectProperty {
	return notionapi.SelectProperty{
		Type:   notionapi.PropertyTypeSelect,
		Select: notionapi.Option{Name: s},
	}
}

// DateValue builds a date property starting at t.
func DateValue(t time.Time) notionapi.DateProperty {
	d := notionapi.Date(t)
	return notionapi.DateProperty{
		Type: notionapi.PropertyTypeDate,
		Date: &notionapi.DateObject{Start: &d},
	}
}

// Checkbox builds a checkbox property.
func Checkbox(b bool) notionapi.CheckboxProperty {
	return notionapi.CheckboxProperty{
		Type:     notionapi.PropertyTypeCheckbox,
		Checkbox: b,
	}
}

// Number builds a number property.
func Number(f float64) notionapi.NumberProperty {
	return notionapi.NumberProperty{
		Type:   notionapi.PropertyTypeNumber,
		Number: f,
	}
}

// PlainText extracts the text of a title or rich_text property,
// concatenating its fragments. The API decodes properties as pointers;
// values built locally arrive by value, so both shapes are handled.
// Other property types yield "".
func PlainText(p notionapi.Property) string {
	switch v := p.(type) {
	case *notionapi.TitleProperty:
		return joinRichText(v.Title)
	case notionapi.TitleProperty:
		return joinRichText(v.Title)
	case *notionapi.RichTextProperty:
		return joinRichText(v.RichText)
	case notionapi.RichTextProperty:
		return joinRichText(v.RichText)
	}
	return ""
}

func joinRichText(parts []notionapi.RichText) string {
	var out string
	for _, rt := range parts {
		if rt.PlainText != "" {
			out += rt.PlainText
			continue
		}
		if rt.Text != nil {
			out += rt.Text.Content
		}
	}
	return out
}
