package transform

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxResponseLength caps stored responses in runes.
	MaxResponseLength = 500
	// MaxResponseLines caps stored responses in lines.
	MaxResponseLines = 5
)

var (
	invitePattern        = regexp.MustCompile(`(?i)(?:discord\.gg|discord(?:app)?\.com/invite)/[\w-]+`)
	guildTemplatePattern = regexp.MustCompile(`(?i)discord(?:app)?\.com/template/[\w-]+`)
	appInvitePattern     = regexp.MustCompile(`(?i)discord(?:app)?\.com/(?:(?:api/)?oauth2/authorize/?\?\S*client_id=(\d{17,20})|application-directory/(\d{17,20}))`)
)

// Filter gates text before it enters the corpus. The prompt side is looser;
// the response side is the strict gate applied once at ingestion — stored
// data is trusted at retrieval time.
type Filter struct {
	// AppID, when set, rejects responses carrying an invite to this exact
	// application. Empty means any application invite is rejected.
	AppID string
}

// UsableResponse reports whether anonymized response text may be stored.
func (f Filter) UsableResponse(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if utf8.RuneCountInString(s) > MaxResponseLength {
		return false
	}
	if strings.Count(s, "\n") >= MaxResponseLines {
		return false
	}
	if invitePattern.MatchString(s) || guildTemplatePattern.MatchString(s) {
		return false
	}
	return !f.matchesAppInvite(s)
}

// UsablePrompt reports whether canonicalized prompt text is worth pairing.
func (f Filter) UsablePrompt(s string) bool {
	return strings.TrimSpace(s) != ""
}

func (f Filter) matchesAppInvite(s string) bool {
	matches := appInvitePattern.FindAllStringSubmatch(s, -1)
	for _, m := range matches {
		id := m[1]
		if id == "" {
			id = m[2]
		}
		if f.AppID == "" || id == f.AppID {
			return true
		}
	}
	return false
}
