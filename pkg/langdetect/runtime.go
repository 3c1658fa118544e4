package langdetect

import (
	"sort"
	"strings"
)

// LanguageInfo describes a language runbox can build and run.
type LanguageInfo struct {
	// ID is the toolchain identifier used in requests (e.g., "objc").
	ID string

	// Name is the linguist name reported by go-enry (e.g., "Objective-C").
	Name string

	// Aliases are alternative identifiers accepted in requests.
	Aliases []string

	// FileExt is the source extension, including the dot.
	FileExt string

	// DockerImage is the default image for the docker provider.
	DockerImage string

	// Compiled reports whether a compile step precedes execution.
	Compiled bool

	// Fixtures reports whether the language supports fixture mode.
	Fixtures bool
}

// Languages lists the supported languages keyed by ID.
var Languages = map[string]*LanguageInfo{
	"go": {
		ID:          "go",
		Name:        "Go",
		Aliases:     []string{"golang"},
		FileExt:     ".go",
		DockerImage: "golang:1.24-alpine",
		Compiled:    true,
		Fixtures:    true,
	},
	"c": {
		ID:          "c",
		Name:        "C",
		FileExt:     ".c",
		DockerImage: "gcc:14",
		Compiled:    true,
	},
	"cpp": {
		ID:          "cpp",
		Name:        "C++",
		Aliases:     []string{"c++", "cxx"},
		FileExt:     ".cpp",
		DockerImage: "gcc:14",
		Compiled:    true,
	},
	"objc": {
		ID:          "objc",
		Name:        "Objective-C",
		Aliases:     []string{"objective-c", "objectivec"},
		FileExt:     ".m",
		DockerImage: "gnustep/gnustep-base:latest",
		Compiled:    true,
	},
	"python": {
		ID:          "python",
		Name:        "Python",
		Aliases:     []string{"python3", "py"},
		FileExt:     ".py",
		DockerImage: "python:3.12-slim",
	},
}

var aliasMap map[string]*LanguageInfo

func init() {
	aliasMap = make(map[string]*LanguageInfo)
	for _, info := range Languages {
		aliasMap[info.ID] = info
		aliasMap[strings.ToLower(info.Name)] = info
		for _, alias := range info.Aliases {
			aliasMap[strings.ToLower(alias)] = info
		}
	}
}

// Lookup resolves an ID, alias or linguist name.
func Lookup(language string) (*LanguageInfo, bool) {
	info, ok := aliasMap[strings.ToLower(strings.TrimSpace(language))]
	return info, ok
}

// Normalize returns the ID for language, or "" if it is not supported.
func Normalize(language string) string {
	if info, ok := Lookup(language); ok {
		return info.ID
	}
	return ""
}

// GetDockerImage returns the default Docker image for a language.
func GetDockerImage(language string) string {
	if info, ok := Lookup(language); ok {
		return info.DockerImage
	}
	return ""
}

// SupportedLanguages returns the IDs of all supported languages, sorted.
func SupportedLanguages() []string {
	ids := make([]string, 0, len(Languages))
	for id := range Languages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
