package offline

import (
	"errors"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/kjstillabower/weather-pro-dashboard/internal/cache"
)

// ShellTransport serves the application shell for Host out of FS and sends
// every other request to Next. It stands in for the static web server the
// shell would otherwise be fetched from.
type ShellTransport struct {
	Host string
	FS   fs.FS
	Next http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *ShellTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Host != t.Host {
		next := t.Next
		if next == nil {
			next = http.DefaultTransport
		}
		return next.RoundTrip(req)
	}
	if err := req.Context().Err(); err != nil {
		return nil, err
	}

	name := strings.TrimPrefix(path.Clean("/"+req.URL.Path), "/")
	if name == "" {
		name = "index.html"
	}
	body, err := fs.ReadFile(t.FS, name)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, fs.ErrNotExist) {
			status = http.StatusNotFound
		}
		e := &cache.Entry{
			Status: status,
			Header: http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}},
			Body:   []byte(http.StatusText(status)),
		}
		return e.Response(req), nil
	}
	e := &cache.Entry{
		URL:    req.URL.String(),
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{contentType(name)}},
		Body:   body,
	}
	return e.Response(req), nil
}

func contentType(name string) string {
	if strings.HasSuffix(name, ".webmanifest") {
		return "application/manifest+json"
	}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Handler answers browser requests for the shell through the worker, mapping
// the incoming path onto the shell origin.
type Handler struct {
	Worker *Worker
}

// forwardedHeaders are copied from the browser request to the worker request.
var forwardedHeaders = []string{"Accept", "Accept-Language", "Sec-Fetch-Mode", "Sec-Fetch-Dest"}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := h.Worker.Origin().ResolveReference(&url.URL{
		Path:     strings.TrimPrefix(r.URL.Path, "/"),
		RawQuery: r.URL.RawQuery,
	})

	out, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), nil)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	for _, k := range forwardedHeaders {
		if v := r.Header.Get(k); v != "" {
			out.Header.Set(k, v)
		}
	}

	resp, err := h.Worker.RoundTrip(out)
	if err != nil {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if r.Method != http.MethodHead {
		_, _ = io.Copy(w, resp.Body)
	}
}
