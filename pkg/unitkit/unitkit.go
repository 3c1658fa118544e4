// Package unitkit is the test runtime linked into Go fixture programs.
//
// A generated entry point registers every discovered suite and test with a
// Registry and hands it to Main, which runs the tests one at a time and
// writes the tagged-line report to stdout. The package depends only on the
// standard library because its sources are compiled inside the submission's
// own module, where nothing else is available.
package unitkit

// Protocol tags. Every report line starts with exactly one of them.
const (
	TagDescribe    = "<DESCRIBE::>"
	TagIt          = "<IT::>"
	TagPassed      = "<PASSED::>"
	TagFailed      = "<FAILED::>"
	TagCompletedIn = "<COMPLETEDIN::>"
	TagLog         = "<LOG::>"
)

// LineFeed stands in for a newline inside a tag payload.
const LineFeed = "<:LF:>"

// PassedMessage is the payload written after TagPassed.
const PassedMessage = "Test Passed"
