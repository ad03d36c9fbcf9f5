package broadcast

import (
	"encoding/json"
	"strings"
)

// Privacy is the remote service's lowercase privacy token.
type Privacy string

const (
	PrivacyPublic   Privacy = "public"
	PrivacyPrivate  Privacy = "private"
	PrivacyUnlisted Privacy = "unlisted"
)

// ParsePrivacy normalizes s case-insensitively.
func ParsePrivacy(s string) (Privacy, error) {
	switch p := Privacy(strings.ToLower(strings.TrimSpace(s))); p {
	case PrivacyPublic, PrivacyPrivate, PrivacyUnlisted:
		return p, nil
	default:
		return "", Validationf("invalid privacy %q (want public, private or unlisted)", s)
	}
}

func (p Privacy) String() string { return string(p) }

func (p *Privacy) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParsePrivacy(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}
