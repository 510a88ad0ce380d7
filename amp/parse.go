package amp

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/prebid/openrtb/v20/openrtb2"
)

// accountPlaceholder is the literal sent by AMP pages whose account macro was never substituted.
const accountPlaceholder = "ACCOUNT_ID"

// Params defines the parameters of an AMP request.
type Params struct {
	Account         string
	CanonicalURL    string
	Debug           bool
	Origin          string
	Size            Size
	Slot            string
	StoredRequestID string
	Targeting       string
	Timeout         *uint64
}

// Size defines size information of an AMP request.
type Size struct {
	Height         int64
	Multisize      []openrtb2.Format
	OverrideHeight int64
	OverrideWidth  int64
	Width          int64
}

// ParseParams parses the AMP parameters from the query of an HTTP request.
func ParseParams(query url.Values) (Params, error) {
	tagID := query.Get("tag_id")
	if len(tagID) == 0 {
		return Params{}, errors.New("AMP requests require an AMP tag_id")
	}

	params := Params{
		Account:         ParseAccount(query),
		CanonicalURL:    query.Get("curl"),
		Debug:           query.Get("debug") == "1",
		Origin:          query.Get("__amp_source_origin"),
		Size:            ParseSize(query),
		Slot:            query.Get("slot"),
		StoredRequestID: tagID,
		Targeting:       query.Get("targeting"),
	}
	// A malformed AMP timeout is ignored rather than rejected.
	params.Timeout, _ = ParseTimeout(query)
	return params, nil
}

// ParseAccount returns the explicit account of the query. pubid wins over account.
func ParseAccount(query url.Values) string {
	for _, key := range []string{"pubid", "account"} {
		if value := strings.TrimSpace(query.Get(key)); value != "" && value != accountPlaceholder {
			return value
		}
	}
	return ""
}

// ParseSize reads the w, h, ow, oh and ms size parameters.
func ParseSize(query url.Values) Size {
	return Size{
		Height:         parseInt(query.Get("h")),
		Multisize:      ParseMultisize(query.Get("ms")),
		OverrideHeight: parseInt(query.Get("oh")),
		OverrideWidth:  parseInt(query.Get("ow")),
		Width:          parseInt(query.Get("w")),
	}
}

// ParseTimeout reads the timeout parameter, or tmax when timeout is absent.
func ParseTimeout(query url.Values) (*uint64, error) {
	value := query.Get("timeout")
	if value == "" {
		value = query.Get("tmax")
	}
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout value %q", value)
	}
	return &parsed, nil
}

// Formats returns the banner formats requested by the size parameters, or nil when the stored
// formats should be kept. An explicit width and height pair wins over the multisize list.
func (s Size) Formats() []openrtb2.Format {
	width, height := s.Width, s.Height
	if s.OverrideWidth != 0 {
		width = s.OverrideWidth
	}
	if s.OverrideHeight != 0 {
		height = s.OverrideHeight
	}
	if width != 0 && height != 0 {
		return []openrtb2.Format{{W: width, H: height}}
	}
	if len(s.Multisize) > 0 {
		return s.Multisize
	}
	return nil
}

// Apply overrides the formats of a banner. When only one dimension is known it is applied to
// every existing format.
func (s Size) Apply(banner *openrtb2.Banner) {
	if banner == nil {
		return
	}
	if formats := s.Formats(); formats != nil {
		banner.Format = formats
		return
	}
	width := s.OverrideWidth
	if width == 0 {
		width = s.Width
	}
	height := s.OverrideHeight
	if height == 0 {
		height = s.Height
	}
	if width != 0 {
		for i := range banner.Format {
			banner.Format[i].W = width
		}
	}
	if height != 0 {
		for i := range banner.Format {
			banner.Format[i].H = height
		}
	}
}

func parseInt(value string) int64 {
	if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
		return parsed
	}
	return 0
}

// ParseMultisize reads a comma separated list of WxH sizes. A malformed entry discards the whole list.
func ParseMultisize(multisize string) []openrtb2.Format {
	if multisize == "" {
		return nil
	}

	sizeStrings := strings.Split(multisize, ",")
	sizes := make([]openrtb2.Format, 0, len(sizeStrings))
	for _, sizeString := range sizeStrings {
		wh := strings.Split(sizeString, "x")
		if len(wh) != 2 {
			return nil
		}
		f := openrtb2.Format{
			W: parseInt(wh[0]),
			H: parseInt(wh[1]),
		}
		if f.W == 0 && f.H == 0 {
			return nil
		}

		sizes = append(sizes, f)
	}
	return sizes
}
