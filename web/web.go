// Package web embeds the browser shell served through the offline worker.
package web

import (
	"embed"
	"io/fs"
)

//go:embed static
var assets embed.FS

// Shell returns the shell files rooted at the page origin (index.html at the top).
func Shell() fs.FS {
	sub, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
