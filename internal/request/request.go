package request

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

// maxBodySize bounds how much of a request body is buffered in memory.
const maxBodySize = 32 << 20

// Request is a content-type independent view of an inbound HTTP request.
// It is safe to hand to a worker goroutine after the handler has returned.
type Request struct {
	Method      string
	ContentType string

	Args    url.Values
	JSON    map[string]any
	Form    url.Values
	Files   map[string][]*multipart.FileHeader
	Data    []byte
	Headers http.Header
	Cookies map[string]string

	RemoteAddr string
	URL        string
	BaseURL    string
	URLRoot    string
	HostURL    string
	Host       string
	Path       string
	FullPath   string
}

// FromHTTP normalizes r. Malformed bodies degrade to empty mappings.
// The body is restored on r so it can still be read by later handlers.
func FromHTTP(r *http.Request) *Request {
	data := readBody(r)
	mediaType := mediaTypeOf(r.Header.Get("Content-Type"))

	req := &Request{
		Method:      r.Method,
		ContentType: r.Header.Get("Content-Type"),
		Args:        cloneValues(r.URL.Query()),
		JSON:        map[string]any{},
		Form:        url.Values{},
		Files:       map[string][]*multipart.FileHeader{},
		Data:        data,
		Headers:     r.Header.Clone(),
		Cookies:     make(map[string]string),
		RemoteAddr:  r.RemoteAddr,
		Host:        r.Host,
		Path:        r.URL.Path,
		FullPath:    r.URL.Path + "?" + r.URL.RawQuery,
	}

	for _, c := range r.Cookies() {
		req.Cookies[c.Name] = c.Value
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	req.HostURL = scheme + "://" + r.Host + "/"
	req.URLRoot = req.HostURL
	req.BaseURL = scheme + "://" + r.Host + r.URL.Path
	req.URL = req.BaseURL
	if r.URL.RawQuery != "" {
		req.URL += "?" + r.URL.RawQuery
	}

	switch mediaType {
	case "application/json":
		var body map[string]any
		if err := json.Unmarshal(data, &body); err == nil && body != nil {
			req.JSON = body
		}
	case "application/x-www-form-urlencoded":
		if values, err := url.ParseQuery(string(data)); err == nil {
			req.Form = values
		}
	case "multipart/form-data":
		parseMultipart(r, data, req)
	}

	return req
}

// TaskID returns the first non-empty task_id found in the JSON body,
// the form fields or the query string, in that order.
func (r *Request) TaskID() string {
	if id, ok := r.JSON["task_id"].(string); ok && id != "" {
		return id
	}
	if id := r.Form.Get("task_id"); id != "" {
		return id
	}
	return r.Args.Get("task_id")
}

func readBody(r *http.Request) []byte {
	if r.Body == nil {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	_ = r.Body.Close()
	if err != nil {
		data = nil
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data
}

func mediaTypeOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mt
}

func parseMultipart(r *http.Request, data []byte, req *Request) {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || params["boundary"] == "" {
		return
	}
	form, err := multipart.NewReader(bytes.NewReader(data), params["boundary"]).ReadForm(maxBodySize)
	if err != nil {
		return
	}
	for k, v := range form.Value {
		req.Form[k] = append([]string(nil), v...)
	}
	for k, v := range form.File {
		req.Files[k] = v
	}
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
