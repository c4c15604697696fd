package api

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
)

const maxFormBytes = 1 << 20

// formValues reads a submitted form. JSON bodies and url-encoded bodies are
// both accepted so the HTML and JSON surfaces share the handlers.
func formValues(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("invalid form body: %w", err)
		}
		return r.Form, nil
	}

	var raw map[string]any
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes))
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	values := make(url.Values, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
		case string:
			values.Set(key, v)
		case bool:
			values.Set(key, strconv.FormatBool(v))
		case json.Number:
			values.Set(key, v.String())
		default:
			values.Set(key, fmt.Sprint(v))
		}
	}
	return values, nil
}

func checked(values url.Values, key string) bool {
	switch values.Get(key) {
	case "true", "on", "1", "yes":
		return true
	default:
		return false
	}
}
