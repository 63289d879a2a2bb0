package vault

import (
	"github.com/avoiney/oppy/internal/records"
)

// Item is the part of a full vault item oppy prints: identifiers plus the
// first username and password fields.
type Item struct {
	UUID     string `json:"uuid"`
	Title    string `json:"title,omitempty"`
	URL      string `json:"url,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// Summarize extracts an Item from the JSON printed by `op get item`.
func Summarize(raw records.Record) Item {
	item := Item{UUID: str(raw["uuid"])}
	if overview, ok := raw["overview"].(map[string]any); ok {
		item.Title = str(overview["title"])
		item.URL = str(overview["url"])
	}
	details, _ := raw["details"].(map[string]any)
	fields, _ := details["fields"].([]any)
	for _, f := range fields {
		field, ok := f.(map[string]any)
		if !ok {
			continue
		}
		switch field["designation"] {
		case "username":
			if item.Username == "" {
				item.Username = str(field["value"])
			}
		case "password":
			if item.Password == "" {
				item.Password = str(field["value"])
			}
		}
	}
	return item
}

func str(v any) string {
	s, _ := records.Stringify(v)
	return s
}
