package openrtb_ext

import (
	"github.com/prebid/openrtb/v20/adcom1"
	"github.com/prebid/openrtb/v20/openrtb2"
)

// BidRequestVideo is the body accepted by the video endpoint. Either App or Site must be set.
type BidRequestVideo struct {
	// StoredRequestId is required when video.enforce_stored_requests is set.
	StoredRequestId string    `json:"storedrequestid"`
	PodConfig       PodConfig `json:"podconfig"`

	App    *openrtb2.App   `json:"app,omitempty"`
	Site   *openrtb2.Site  `json:"site,omitempty"`
	User   *SimplifiedUser `json:"user,omitempty"`
	Device openrtb2.Device `json:"device,omitempty"`

	// IncludeBrandCategory asks for ad server specific content categories in the response.
	IncludeBrandCategory *IncludeBrandCategory `json:"includebrandcategory,omitempty"`
	// Video describes the player. It is required.
	Video *SimplifiedVideo `json:"video,omitempty"`
	// Content is metadata about the stream the pods play in.
	Content *openrtb2.Content `json:"content,omitempty"`

	Test             int8              `json:"test,omitempty"`
	PriceGranularity *PriceGranularity `json:"pricegranularity,omitempty"`
	TMax             int64             `json:"tmax,omitempty"`
	BCat             []string          `json:"bcat,omitempty"`
	BAdv             []string          `json:"badv,omitempty"`
	Regs             *openrtb2.Regs    `json:"regs,omitempty"`
}

type PodConfig struct {
	// DurationRangeSec lists the ad durations allowed in the response.
	DurationRangeSec     []int `json:"durationrangesec"`
	RequireExactDuration bool  `json:"requireexactduration,omitempty"`
	Pods                 []Pod `json:"pods"`
}

// Pod is one ad break. ConfigId names the stored imp the pod's imps are built from.
type Pod struct {
	PodId            int    `json:"podid"`
	AdPodDurationSec int    `json:"adpoddurationsec"`
	ConfigId         string `json:"configid"`
}

type IncludeBrandCategory struct {
	// PrimaryAdserver is 1 for Freewheel and 2 for DFP.
	PrimaryAdserver     int    `json:"primaryadserver"`
	Publisher           string `json:"publisher"`
	TranslateCategories *bool  `json:"translatecategories,omitempty"`
}

type SimplifiedUser struct {
	Gdpr     *SimplifiedGdpr `json:"gdpr,omitempty"`
	Yob      int64           `json:"yob,omitempty"`
	Keywords string          `json:"keywords,omitempty"`
}

type SimplifiedGdpr struct {
	ConsentRequired bool   `json:"consentrequired"`
	ConsentString   string `json:"consentstring"`
}

type SimplifiedVideo struct {
	W         *int64                        `json:"w,omitempty"`
	H         *int64                        `json:"h,omitempty"`
	Mimes     []string                      `json:"mimes"`
	Protocols []adcom1.MediaCreativeSubtype `json:"protocols"`
}
