package library

import (
	"fmt"
	"net/url"
	"strings"
)

// driveAliases maps drive names that differ from the library id.
var driveAliases = map[string]ID{
	"DOCUMENTOS_CLIENTES_V2": Clients,
	"DOCUMENTOS_ADMIN_HH":    HR,
	"DOCUMENTOS_CONSULADO":   Consulate,
}

// Options identifies a library from CLI/MCP input.
type Options struct {
	ID        string
	DriveName string
}

// Resolve finds the library named by opts. An explicit id wins over the
// drive name. Drive names are matched exactly, then through the alias table,
// then by requiring every underscore-separated part of the name to appear
// in the library id.
func Resolve(opts Options) (Library, error) {
	if opts.ID != "" {
		return Get(ID(strings.ToUpper(strings.TrimSpace(opts.ID))))
	}
	if strings.TrimSpace(opts.DriveName) == "" {
		return Library{}, fmt.Errorf("%w: no library id or drive name given", ErrUnknownLibrary)
	}

	name := normalizeDriveName(opts.DriveName)
	if lib, err := Get(ID(name)); err == nil {
		return lib, nil
	}
	if id, ok := driveAliases[name]; ok {
		return Get(id)
	}

	parts := strings.Split(strings.ToLower(name), "_")
	for _, lib := range libraries {
		id := strings.ToLower(string(lib.ID))
		if containsAll(id, parts) {
			return lib, nil
		}
	}
	return Library{}, fmt.Errorf("%w: drive %q", ErrUnknownLibrary, opts.DriveName)
}

func normalizeDriveName(name string) string {
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToUpper(name)
}

func containsAll(s string, parts []string) bool {
	matched := false
	for _, part := range parts {
		if part == "" {
			continue
		}
		if !strings.Contains(s, part) {
			return false
		}
		matched = true
	}
	return matched
}
