package store

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/tinysa/internal/httputil"
	"github.com/banshee-data/tinysa/internal/monitoring"
)

// AttachAdminRoutes mounts tailsql, the recent transcript and preset check
// listings, and a backup download under /debug/.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(db.path), db.DB, &tailsql.DBOptions{
		Label: "tinySA transcripts",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.HandleFunc("transcript", "Recent console exchanges (JSON)", func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		exchanges, err := db.RecentExchanges(r.Context(), r.URL.Query().Get("session"), limit)
		if err != nil {
			httputil.InternalServerError(w, "reading transcript", err)
			return
		}
		httputil.WriteJSONOK(w, exchanges)
	})

	debug.HandleFunc("preset-checks", "Preset verification history (JSON)", func(w http.ResponseWriter, r *http.Request) {
		checks, err := db.PresetChecks(r.Context(), r.URL.Query().Get("path"))
		if err != nil {
			httputil.InternalServerError(w, "reading preset checks", err)
			return
		}
		httputil.WriteJSONOK(w, checks)
	})

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(db.serveBackup))
	return nil
}

func (db *DB) serveBackup(w http.ResponseWriter, r *http.Request) {
	dir, err := os.MkdirTemp("", "tinysa-backup-")
	if err != nil {
		httputil.InternalServerError(w, "creating backup", err)
		return
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			monitoring.Logf("Failed to remove backup directory: %v", err)
		}
	}()

	name := fmt.Sprintf("backup-%d.db", db.clock.Now().Unix())
	backupPath := filepath.Join(dir, name)
	if _, err := db.ExecContext(r.Context(), "VACUUM INTO ?", backupPath); err != nil {
		httputil.InternalServerError(w, "creating backup", err)
		return
	}

	backupFile, err := os.Open(backupPath)
	if err != nil {
		httputil.InternalServerError(w, "opening backup", err)
		return
	}
	defer backupFile.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", name))
	w.Header().Set("Content-Type", "application/gzip")

	gzipWriter := gzip.NewWriter(w)
	defer gzipWriter.Close()
	if _, err := io.Copy(gzipWriter, backupFile); err != nil {
		monitoring.Logf("Failed to send backup: %v", err)
	}
}
