package gpp

import (
	"errors"
	"fmt"

	gpplib "github.com/prebid/go-gpp"
	gppConstants "github.com/prebid/go-gpp/constants"

	"github.com/prebid/prebid-request-core/util/stringutil"
)

// Parse decodes a GPP string. Errors raised by individual sections are tolerated as long as the header
// could be read, so a container listing at least one section type is always returned without error.
func Parse(consent string) (gpplib.GppContainer, error) {
	if consent == "" {
		return gpplib.GppContainer{}, errors.New("empty GPP string")
	}

	container, errs := gpplib.Parse(consent)
	if len(errs) > 0 && len(container.SectionTypes) == 0 {
		return container, errs[0]
	}
	return container, nil
}

// IsValidConsent reports whether consent carries a readable GPP header.
func IsValidConsent(consent string) bool {
	_, err := Parse(consent)
	return err == nil
}

// ParseSIDs parses the CSV section id list of a gpp_sid query parameter.
func ParseSIDs(raw string) ([]int8, error) {
	if raw == "" {
		return nil, nil
	}
	sids, err := stringutil.StrToInt8Slice(raw)
	if err != nil {
		return nil, fmt.Errorf("gpp_sid %q is not a comma separated list of section ids", raw)
	}
	return sids, nil
}

// SectionValue returns the encoded value of the sid section, or an empty string if the container lacks it.
func SectionValue(gpp gpplib.GppContainer, sid gppConstants.SectionID) string {
	for _, section := range gpp.Sections {
		if section != nil && section.GetID() == sid {
			return section.GetValue()
		}
	}
	return ""
}

// IsSIDInList returns true if the 'sid' value is found in the gppSIDs array.
func IsSIDInList(gppSIDs []int8, sid gppConstants.SectionID) bool {
	for _, id := range gppSIDs {
		if id == int8(sid) {
			return true
		}
	}
	return false
}

// IndexOfSID returns the position of the 'sid' value in the 'gpp.SectionTypes' array, or -1 when the
// container does not hold it.
func IndexOfSID(gpp gpplib.GppContainer, sid gppConstants.SectionID) int {
	for i, id := range gpp.SectionTypes {
		if id == sid {
			return i
		}
	}
	return -1
}
