package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/noolite-core/internal/bulb"
)

// params is the merged set of request parameters for bulb endpoints.
// A key is present only when the client supplied a non-null value.
type params map[string]string

// requestParams collects parameters from the query string, a form body and
// a JSON object body, in that order; later sources do not overwrite earlier
// ones. Finally a "data" parameter holding a JSON object fills any keys
// still missing.
func requestParams(r *http.Request) (params, error) {
	p := params{}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("parsing form: %w", err)
	}
	for key, values := range r.Form {
		if len(values) > 0 {
			p[key] = values[0]
		}
	}

	if isJSON(r) && r.Body != nil {
		var body map[string]any
		dec := json.NewDecoder(r.Body)
		if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing JSON body: %w", err)
		}
		p.fill(body)
	}

	if raw, ok := p["data"]; ok {
		var data map[string]any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return nil, fmt.Errorf("parsing data parameter: %w", err)
		}
		p.fill(data)
	}

	return p, nil
}

// fill adds keys from m that are not yet present. Nulls are skipped;
// strings are kept verbatim and other scalars use their JSON text.
func (p params) fill(m map[string]any) {
	for key, v := range m {
		if _, ok := p[key]; ok || v == nil {
			continue
		}
		switch val := v.(type) {
		case string:
			p[key] = val
		default:
			text, err := json.Marshal(val)
			if err != nil {
				continue
			}
			p[key] = string(text)
		}
	}
}

func (p params) ptr(key string) *string {
	v, ok := p[key]
	if !ok {
		return nil
	}
	return &v
}

// fields returns the descriptive bulb fields present in p.
func (p params) fields() bulb.Fields {
	return bulb.Fields{
		Name:     p.ptr("name"),
		Location: p.ptr("location"),
		Type:     p.ptr("type"),
	}
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// bulbID parses the {id} URL parameter.
func bulbID(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// smooth reads the smooth query parameter. Anything unparsable is false.
func smooth(r *http.Request) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get("smooth"))
	return err == nil && v
}
