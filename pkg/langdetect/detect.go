// Package langdetect identifies the language of a submission and maps it to
// the toolchain that builds it.
package langdetect

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-enry/go-enry/v2"
)

// Detector handles language detection.
type Detector struct {
	customMappings map[string]string
}

// New creates a new language detector.
func New() *Detector {
	return &Detector{
		customMappings: make(map[string]string),
	}
}

// DetectResult contains detection results.
type DetectResult struct {
	// Language is the toolchain ID, or "" when nothing supported matched.
	Language string

	// Name is the linguist name go-enry reported, if any.
	Name string

	// Confidence is the detection confidence (0.0 to 1.0).
	Confidence float64

	// Method indicates how the language was detected.
	Method string
}

// Detect identifies the language of code. filename is an optional hint.
func (d *Detector) Detect(code, filename string) *DetectResult {
	if filename != "" {
		if r := d.DetectFromFilename(filename); r.Language != "" {
			return r
		}
	}

	if strings.HasPrefix(strings.TrimSpace(code), "#!") {
		if lang, safe := enry.GetLanguageByShebang([]byte(code)); safe && lang != "" {
			if r := supported(lang, 0.95, "shebang"); r != nil {
				return r
			}
		}
	}

	if r := d.detectByPatterns(code); r != nil && r.Confidence >= 0.6 {
		return r
	}

	name := filename
	if name == "" {
		name = "main"
	}
	for _, lang := range enry.GetLanguages(name, []byte(code)) {
		if r := supported(lang, 0.8, "classifier"); r != nil {
			return r
		}
	}

	if r := d.detectByPatterns(code); r != nil {
		return r
	}
	return &DetectResult{Method: "unknown"}
}

func supported(name string, confidence float64, method string) *DetectResult {
	info, ok := Lookup(name)
	if !ok {
		return nil
	}
	return &DetectResult{Language: info.ID, Name: info.Name, Confidence: confidence, Method: method}
}

var patterns = map[string][]*regexp.Regexp{
	"objc": compile(
		`(?m)^\s*#import\s*[<"]`,
		`(?m)^@interface\s+\w+`,
		`(?m)^@implementation\s+\w+`,
		`(?m)^@end\b`,
		`\[\[\w+\s+alloc\]\s*init`,
		`@"[^"]*"`,
		`NS(String|Log|Object|Exception|Array|Dictionary)\b`,
	),
	"go": compile(
		`(?m)^package\s+\w+`,
		`(?m)^import\s*\(`,
		`(?m)^func\s+(\([^)]*\)\s*)?\w+\s*\(`,
		`:=`,
		`fmt\.Print`,
		`\*unitkit\.T\b`,
	),
	"cpp": compile(
		`(?m)^#include\s*<(iostream|vector|string|map|memory)>`,
		`std::`,
		`cout\s*<<`,
		`(?m)^namespace\s+\w+`,
		`(?m)^using\s+namespace\s+`,
		`(?m)^template\s*<`,
	),
	"c": compile(
		`(?m)^#include\s*<(stdio|stdlib|string|math)\.h>`,
		`(?m)^int\s+main\s*\(`,
		`printf\s*\(`,
		`malloc\s*\(`,
	),
	"python": compile(
		`(?m)^def\s+\w+\s*\(.*\)\s*:`,
		`(?m)^(import|from)\s+\w+`,
		`(?m)^\s*print\s*\(`,
		`if\s+__name__\s*==`,
		`(?m):\s*$`,
	),
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

// detectByPatterns scores each supported language by marker count.
func (d *Detector) detectByPatterns(code string) *DetectResult {
	var best string
	var bestScore int
	for _, id := range SupportedLanguages() {
		score := 0
		for _, re := range patterns[id] {
			if re.MatchString(code) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = id, score
		}
	}
	if bestScore == 0 {
		return nil
	}

	confidence := float64(bestScore) / 5.0
	if confidence > 0.8 {
		confidence = 0.8
	}
	if confidence < 0.2 {
		confidence = 0.2
	}
	return &DetectResult{Language: best, Name: Languages[best].Name, Confidence: confidence, Method: "heuristic"}
}

// AddMapping maps a file extension to a language ID.
func (d *Detector) AddMapping(extension, language string) {
	d.customMappings[extension] = language
}

// DetectFromFilename detects language from filename only.
func (d *Detector) DetectFromFilename(filename string) *DetectResult {
	ext := filepath.Ext(filename)
	if lang, ok := d.customMappings[ext]; ok {
		if r := supported(lang, 1.0, "custom"); r != nil {
			return r
		}
	}

	// .m and .h are ambiguous in linguist; inside runbox they are Objective-C
	// and C.
	switch ext {
	case ".m":
		return supported("objc", 0.95, "extension")
	case ".h":
		return supported("c", 0.7, "extension")
	}

	if lang, safe := enry.GetLanguageByFilename(filename); safe && lang != "" {
		if r := supported(lang, 1.0, "filename"); r != nil {
			return r
		}
	}
	if lang, safe := enry.GetLanguageByExtension(filename); safe && lang != "" {
		if r := supported(lang, 0.95, "extension"); r != nil {
			return r
		}
	}
	return &DetectResult{Method: "unknown"}
}

// Quick returns the detected language ID of code, or "".
func Quick(code string) string {
	return New().Detect(code, "").Language
}
