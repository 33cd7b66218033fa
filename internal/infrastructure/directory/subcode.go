package directory

import (
	"regexp"
	"strings"
)

// subcodePattern extracts the 3-character hex subcode the directory embeds
// in its bind diagnostics, e.g. "… AcceptSecurityContext error, data 52e, v2580".
var subcodePattern = regexp.MustCompile(`data ([0-9A-Fa-f]{3})`)

// bindFailure is a semantic interpretation of a bind-failure subcode.
type bindFailure struct {
	Reason             string
	MustChangePassword bool
}

// bindFailures maps known directory subcodes to semantic reasons. The table
// is data, not behavior: an unlisted subcode degrades to an unknown error,
// never a panic.
var bindFailures = map[string]bindFailure{
	"525": {Reason: "user not found"},
	"52e": {Reason: "invalid credentials"},
	"530": {Reason: "not permitted to logon at this time"},
	"531": {Reason: "not permitted to logon at this workstation"},
	"532": {Reason: "password expired", MustChangePassword: true},
	"533": {Reason: "account disabled"},
	"701": {Reason: "account expired"},
	"773": {Reason: "user must reset password", MustChangePassword: true},
	"775": {Reason: "account locked out"},
}

// parseBindFailure inspects a server bind-error message for a known subcode.
// It tolerates any message shape: absence of the pattern simply reports not
// found.
func parseBindFailure(message string) (bindFailure, bool) {
	match := subcodePattern.FindStringSubmatch(message)
	if match == nil {
		return bindFailure{}, false
	}
	failure, known := bindFailures[strings.ToLower(match[1])]
	return failure, known
}
