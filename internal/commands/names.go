// Package commands is the client-facing operation surface of the daemon.
//
// Every operation has a Name in a closed enum and a handler in a fixed lookup
// table. Invocations carry JSON arguments and always produce a Result, which
// the IPC and HTTP transports pass through unchanged.
package commands

import "fmt"

// Name enumerates the invocable commands.
type Name int

const (
	NameInvalid Name = iota
	DownloadEpisodes
	ShowPathInFileManager
	GetComic
	Search
	RemoveWatermark
	GetConfig
	nameCount
)

var nameStrings = [nameCount]string{
	DownloadEpisodes:      "download_episodes",
	ShowPathInFileManager: "show_path_in_file_manager",
	GetComic:              "get_comic",
	Search:                "search",
	RemoveWatermark:       "remove_watermark",
	GetConfig:             "get_config",
}

var namesByString = func() map[string]Name {
	out := make(map[string]Name, len(nameStrings))
	for i, s := range nameStrings {
		if s != "" {
			out[s] = Name(i)
		}
	}
	return out
}()

// String returns the wire name.
func (n Name) String() string {
	if !n.Valid() {
		return fmt.Sprintf("command(%d)", int(n))
	}
	return nameStrings[n]
}

// Valid reports whether n is a registered command.
func (n Name) Valid() bool {
	return n > NameInvalid && n < nameCount
}

// Lookup resolves a wire name.
func Lookup(name string) (Name, bool) {
	n, ok := namesByString[name]
	return n, ok
}

// Names lists every command in declaration order.
func Names() []Name {
	out := make([]Name, 0, int(nameCount)-1)
	for n := NameInvalid + 1; n < nameCount; n++ {
		out = append(out, n)
	}
	return out
}
