package panel

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
)

//go:embed web/*
var content embed.FS

// Handler serves the web remote.
//
// Assets come from dir when it names an existing directory, so the page can
// be edited without a rebuild. Otherwise the copy built into the binary is
// used. Paths that match no asset get index.html.
func Handler(dir string) http.Handler {
	assets := assetFS(dir)
	files := http.FileServer(assets)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Assets are not content-hashed.
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")

		name := path.Clean(r.URL.Path)
		if name != "/" && name != "." && !exists(assets, name) {
			r.URL.Path = "/"
		}
		files.ServeHTTP(w, r)
	})
}

// assetFS picks the on-disk directory or the embedded assets.
func assetFS(dir string) http.FileSystem {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return http.Dir(dir)
		}
	}
	web, err := fs.Sub(content, "web")
	if err != nil {
		panic(fmt.Sprintf("panel: embedded assets missing: %v", err))
	}
	return http.FS(web)
}

func exists(assets http.FileSystem, name string) bool {
	f, err := assets.Open(name)
	if err != nil {
		return !errors.Is(err, fs.ErrNotExist)
	}
	f.Close() //nolint:errcheck // Existence check only
	return true
}
