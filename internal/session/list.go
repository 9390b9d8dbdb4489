package session

import (
	"errors"
	"io/fs"
	"os"
	"sort"
)

// Info describes a session directory found on disk.
type Info struct {
	Name          string
	Path          string
	DaemonRunning bool
	LoggedIn      bool
}

// List returns every valid session under SessionsDir, sorted by name.
// A session counts as running when its socket file exists.
func List() ([]Info, error) {
	entries, err := os.ReadDir(SessionsDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var out []Info
	for _, e := range entries {
		if !e.IsDir() || ValidateName(e.Name()) != nil {
			continue
		}
		info := Info{Name: e.Name(), Path: Dir(e.Name())}
		if _, err := os.Stat(SocketPath(e.Name())); err == nil {
			info.DaemonRunning = true
		}
		if _, err := LoadCredentials(CredentialsPath(e.Name())); err == nil {
			info.LoggedIn = true
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
