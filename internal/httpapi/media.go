package httpapi

import (
	"io/fs"
	"net/http"
)

// filesOnly serves regular files from dir and reports directories as missing,
// so the media tree cannot be listed.
type filesOnly struct {
	root http.FileSystem
}

func newMediaFS(dir string) http.FileSystem {
	return filesOnly{root: http.Dir(dir)}
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.root.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}
