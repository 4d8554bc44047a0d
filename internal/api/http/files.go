package http

import (
	"io/fs"
	"net/http"
	"strings"

	"github.com/spf13/afero"
)

// FileServer serves the storage root read-only. Dot-prefixed entries such as the
// temp directory are neither listed nor served.
func FileServer(fsys afero.Fs, root, mount string) http.Handler {
	dir := afero.NewHttpFs(afero.NewReadOnlyFs(fsys)).Dir(root)
	return http.StripPrefix(mount, http.FileServer(hiddenDotFS{dir}))
}

type hiddenDotFS struct {
	fs http.FileSystem
}

func (h hiddenDotFS) Open(name string) (http.File, error) {
	for _, seg := range strings.Split(name, "/") {
		if strings.HasPrefix(seg, ".") {
			return nil, fs.ErrNotExist
		}
	}
	f, err := h.fs.Open(name)
	if err != nil {
		return nil, err
	}
	return hiddenDotFile{f}, nil
}

type hiddenDotFile struct {
	http.File
}

func (f hiddenDotFile) Readdir(n int) ([]fs.FileInfo, error) {
	infos, err := f.File.Readdir(n)
	visible := infos[:0]
	for _, fi := range infos {
		if !strings.HasPrefix(fi.Name(), ".") {
			visible = append(visible, fi)
		}
	}
	return visible, err
}
