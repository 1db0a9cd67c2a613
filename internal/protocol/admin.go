package protocol

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"net/http"
	"strings"

	"tailscale.com/tsweb"

	"github.com/banshee-data/tinysa/internal/httputil"
)

//go:embed templates/*
var adminTemplateFS embed.FS

var sendCommandTemplate = template.Must(template.ParseFS(adminTemplateFS, "templates/send-command.html.tmpl"))

// AttachAdminRoutes mounts a command form and its API under /debug/. The
// routes share the client with the console, so commands are interleaved
// with the operator's rather than run concurrently.
func (c *Client) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleFunc("send-command", "send a command to the tinySA", func(w http.ResponseWriter, r *http.Request) {
		buf := bytes.NewBuffer(nil)
		if err := sendCommandTemplate.Execute(buf, struct{ Prompt string }{Prompt}); err != nil {
			http.Error(w, "Failed to render template", http.StatusInternalServerError)
			return
		}
		io.Copy(w, buf)
	})

	debug.HandleSilentFunc("send-command-api", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		if command == ExitCommand {
			http.Error(w, "exit is only valid in the console", http.StatusBadRequest)
			return
		}
		resp, err := c.Execute(r.Context(), command)
		if err != nil {
			http.Error(w, "Failed to execute command: "+err.Error(), http.StatusInternalServerError)
			return
		}

		if strings.Contains(r.Header.Get("Accept"), "application/json") {
			httputil.WriteJSONOK(w, map[string]any{
				"command":     resp.Command,
				"lines":       resp.Lines(),
				"duration_ms": resp.Duration.Milliseconds(),
				"short_write": resp.ShortWrite(),
			})
			return
		}
		io.WriteString(w, resp.Body())
	})
}
