package ortb

import (
	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/prebid/prebid-request-core/errortypes"
	"github.com/prebid/prebid-request-core/openrtb_ext"
	"github.com/prebid/prebid-request-core/util/ptrutil"
)

const (
	DefaultPriceGranularityPrecision  = 2
	DefaultTargetingIncludeWinners    = true
	DefaultTargetingIncludeBidderKeys = true
	DefaultSecure                     = int8(1)
	DefaultAuctionType                = int64(1)
)

// DefaultOptions carries the request independent inputs of SetDefaults.
type DefaultOptions struct {
	// AMP forces targeting and cache defaults and the amp channel.
	AMP bool
	// Secure sets imp.secure on impressions without one.
	Secure bool
	// WinningOnly is the host default for ext.prebid.cache.winningonly.
	WinningOnly bool
	// Currency is the ad server currency used when request.cur is empty.
	Currency string
}

// SetDefaults fills the auction-level fields of the request which are still absent. Present values are never
// replaced, so applying it to its own output changes nothing.
func SetDefaults(r *openrtb_ext.RequestWrapper, opts DefaultOptions) error {
	requestExt, err := r.GetRequestExt()
	if err != nil {
		return err
	}

	requestExtPrebid := requestExt.GetPrebid()
	if requestExtPrebid == nil && opts.AMP {
		requestExtPrebid = &openrtb_ext.ExtRequestPrebid{}
	}
	if requestExtPrebid != nil {
		modified, err := setDefaultsPrebid(requestExtPrebid, r, opts)
		if err != nil {
			return err
		}
		if modified {
			requestExt.SetPrebid(requestExtPrebid)
		}
	} else if channel := defaultChannel(r.BidRequest, opts.AMP); channel != "" {
		requestExt.SetPrebid(&openrtb_ext.ExtRequestPrebid{Channel: &openrtb_ext.ExtRequestPrebidChannel{Name: channel}})
	}

	if opts.Secure {
		imps := r.GetImp()
		if len(imps) > 0 {
			if setDefaultsImp(imps) {
				r.SetImp(imps)
			}
		}
	}

	if r.AT == 0 {
		r.AT = DefaultAuctionType
	}

	if len(r.Cur) == 0 && opts.Currency != "" {
		r.Cur = []string{opts.Currency}
	}

	return nil
}

func setDefaultsPrebid(prebid *openrtb_ext.ExtRequestPrebid, r *openrtb_ext.RequestWrapper, opts DefaultOptions) (bool, error) {
	modified := false

	if opts.AMP {
		if prebid.Targeting == nil {
			prebid.Targeting = &openrtb_ext.ExtRequestTargeting{}
			modified = true
		}
		if prebid.Cache.IsEmpty() {
			prebid.Cache = &openrtb_ext.ExtRequestPrebidCache{
				Bids:    &openrtb_ext.ExtRequestPrebidCacheBids{},
				VastXML: &openrtb_ext.ExtRequestPrebidCacheVAST{},
			}
			modified = true
		}
	}

	if prebid.Targeting != nil || prebid.Cache != nil {
		if setDefaultsCache(prebid, opts.WinningOnly) {
			modified = true
		}
	}

	winningOnly := opts.WinningOnly
	if prebid.Cache != nil && prebid.Cache.WinningOnly != nil {
		winningOnly = *prebid.Cache.WinningOnly
	}
	if setDefaultsTargeting(prebid.Targeting, winningOnly) {
		modified = true
	}

	channelModified, err := setDefaultsChannel(prebid, r.BidRequest, opts.AMP)
	if err != nil {
		return false, err
	}

	return modified || channelModified, nil
}

// setDefaultsCache applies the host winningonly default when the request does not state one.
func setDefaultsCache(prebid *openrtb_ext.ExtRequestPrebid, winningOnly bool) bool {
	if !winningOnly {
		return false
	}
	if prebid.Cache == nil {
		prebid.Cache = &openrtb_ext.ExtRequestPrebidCache{}
	}
	if prebid.Cache.WinningOnly != nil {
		return false
	}
	prebid.Cache.WinningOnly = ptrutil.ToPtr(true)
	return true
}

func setDefaultsTargeting(targeting *openrtb_ext.ExtRequestTargeting, winningOnly bool) bool {
	if targeting == nil {
		return false
	}

	modified := false

	if newPG, updated := setDefaultsPriceGranularity(targeting.PriceGranularity); updated {
		modified = true
		targeting.PriceGranularity = newPG
	}

	// A media type granularity is only normalized when present; absent ones fall back to the
	// request level granularity.
	if targeting.MediaTypePriceGranularity != nil {
		if targeting.MediaTypePriceGranularity.Video != nil {
			if newVideoPG, updated := setDefaultsPriceGranularity(targeting.MediaTypePriceGranularity.Video); updated {
				modified = true
				targeting.MediaTypePriceGranularity.Video = newVideoPG
			}
		}
		if targeting.MediaTypePriceGranularity.Banner != nil {
			if newBannerPG, updated := setDefaultsPriceGranularity(targeting.MediaTypePriceGranularity.Banner); updated {
				modified = true
				targeting.MediaTypePriceGranularity.Banner = newBannerPG
			}
		}
		if targeting.MediaTypePriceGranularity.Native != nil {
			if newNativePG, updated := setDefaultsPriceGranularity(targeting.MediaTypePriceGranularity.Native); updated {
				modified = true
				targeting.MediaTypePriceGranularity.Native = newNativePG
			}
		}
	}

	if targeting.IncludeWinners == nil {
		targeting.IncludeWinners = ptrutil.ToPtr(DefaultTargetingIncludeWinners)
		modified = true
	}

	if targeting.IncludeBidderKeys == nil {
		targeting.IncludeBidderKeys = ptrutil.ToPtr(DefaultTargetingIncludeBidderKeys && !winningOnly)
		modified = true
	}

	return modified
}

func setDefaultsPriceGranularity(pg *openrtb_ext.PriceGranularity) (*openrtb_ext.PriceGranularity, bool) {
	if pg == nil || len(pg.Ranges) == 0 {
		pg = ptrutil.ToPtr(openrtb_ext.NewPriceGranularityDefault())
		return pg, true
	}

	modified := false

	if pg.Precision == nil {
		pg.Precision = ptrutil.ToPtr(DefaultPriceGranularityPrecision)
		modified = true
	}

	if setDefaultsPriceGranularityRange(pg.Ranges) {
		modified = true
	}

	return pg, modified
}

func setDefaultsPriceGranularityRange(ranges []openrtb_ext.GranularityRange) bool {
	modified := false

	var prevMax float64 = 0
	for i, r := range ranges {
		if ranges[i].Min != prevMax {
			ranges[i].Min = prevMax
			modified = true
		}
		prevMax = r.Max
	}

	return modified
}

func setDefaultsChannel(prebid *openrtb_ext.ExtRequestPrebid, req *openrtb2.BidRequest, amp bool) (bool, error) {
	if prebid.Channel != nil {
		if prebid.Channel.Name == "" {
			return false, &errortypes.BadInput{Message: "ext.prebid.channel.name can't be empty"}
		}
		return false, nil
	}

	channel := defaultChannel(req, amp)
	if channel == "" {
		return false, nil
	}
	prebid.Channel = &openrtb_ext.ExtRequestPrebidChannel{Name: channel}
	return true, nil
}

func defaultChannel(req *openrtb2.BidRequest, amp bool) string {
	switch {
	case amp:
		return openrtb_ext.ChannelAMP
	case req.App != nil:
		return openrtb_ext.ChannelApp
	case req.Site != nil:
		return openrtb_ext.ChannelWeb
	case req.DOOH != nil:
		return openrtb_ext.ChannelDOOH
	}
	return ""
}

func setDefaultsImp(imps []*openrtb_ext.ImpWrapper) bool {
	modified := false

	for _, i := range imps {
		if i != nil && i.Imp != nil && i.Secure == nil {
			i.Secure = ptrutil.ToPtr(DefaultSecure)
			modified = true
		}
	}

	return modified
}
