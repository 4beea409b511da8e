package adjust

import "encoding/json"

// Document is a parsed edit document: the schemaless JSON object the
// editing surface persists per photo. Missing keys mean "untouched" and
// compile to the neutral value.
type Document = map[string]any

// ParseDocument decodes an edit document from JSON.
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// docNum reads a numeric key, returning def when absent or non-numeric.
func docNum(doc map[string]any, key string, def float64) float64 {
	if v, ok := doc[key].(float64); ok {
		return v
	}
	return def
}

func docStr(doc map[string]any, key string) (string, bool) {
	s, ok := doc[key].(string)
	return s, ok
}

func docObj(doc map[string]any, key string) map[string]any {
	if v, ok := doc[key].(map[string]any); ok {
		return v
	}
	return nil
}

func docArr(doc map[string]any, key string) []any {
	if v, ok := doc[key].([]any); ok {
		return v
	}
	return nil
}

// visibility answers whether an editing section contributes to the
// compiled output. Hiding a section in the UI zeroes its adjustments
// without touching the stored values.
type visibility map[string]any

func sectionVisibility(doc map[string]any) visibility {
	return visibility(docObj(doc, "sectionVisibility"))
}

func (v visibility) visible(section string) bool {
	if v == nil {
		return true
	}
	if b, ok := v[section].(bool); ok {
		return b
	}
	return true
}
