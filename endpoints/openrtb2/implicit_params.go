package openrtb2

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/prebid/openrtb/v20/openrtb2"
	"golang.org/x/net/publicsuffix"

	"github.com/prebid/prebid-request-core/errortypes"
	"github.com/prebid/prebid-request-core/openrtb_ext"
	"github.com/prebid/prebid-request-core/ortb"
	"github.com/prebid/prebid-request-core/privacy/lmt"
	"github.com/prebid/prebid-request-core/util/httputil"
	"github.com/prebid/prebid-request-core/util/iputil"
	"github.com/prebid/prebid-request-core/util/jsonutil"
	"github.com/prebid/prebid-request-core/util/ptrutil"
)

// implicitParamsStep fills the fields the caller left empty from the transport and the host configuration.
// Fields which already hold a value are never changed, so running it twice is the same as running it once.
// It is also where the final auction budget is fixed, since only now the merged tmax is known.
func (deps *endpointDeps) implicitParamsStep(_ context.Context, ac *AuctionContext) (*AuctionContext, []error) {
	req := ac.Request
	desc := ac.input.desc
	settings := endpointSettingsTable[ac.Kind]

	deps.setDeviceImplicitly(desc, req)
	if req.App == nil && req.DOOH == nil {
		if err := setSiteImplicitly(desc, req, settings.amp); err != nil {
			return ac, []error{&errortypes.BadInput{Message: err.Error()}}
		}
	}
	if err := deps.setSourceImplicitly(req); err != nil {
		return ac, []error{err}
	}
	setImpIDsImplicitly(req.BidRequest)

	if err := moveBidderParams(req); err != nil {
		return ac, []error{&errortypes.BadInput{Message: err.Error()}}
	}

	opts := ortb.DefaultOptions{
		AMP:         settings.amp,
		Secure:      desc.Secure,
		WinningOnly: deps.cfg.Cache.WinningOnly,
		Currency:    deps.cfg.AdServerCurrency,
	}
	if err := ortb.SetDefaults(req, opts); err != nil {
		if _, isBadInput := err.(*errortypes.BadInput); isBadInput {
			return ac, []error{err}
		}
		return ac, []error{&errortypes.BadInput{Message: err.Error()}}
	}

	requested := time.Duration(req.TMax) * time.Millisecond
	if limited := deps.cfg.AuctionTimeouts.LimitAuctionTimeout(requested); limited > 0 {
		req.TMax = limited.Milliseconds()
	}

	return ac.withBudget(deps.budget(requested)), nil
}

func (deps *endpointDeps) setDeviceImplicitly(desc RequestDescriptor, req *openrtb_ext.RequestWrapper) {
	if req.Device == nil {
		req.Device = &openrtb2.Device{}
	}
	device := req.Device

	if device.UA == "" {
		device.UA = desc.Header.Get("User-Agent")
	}

	normalizeIPFamily(device)
	if ip, ver := httputil.FindIP(desc.Header, desc.RemoteAddr, deps.ipValidator); ip != nil {
		switch ver {
		case iputil.IPv4:
			if device.IP == "" {
				device.IP = ip.String()
			}
		case iputil.IPv6:
			if device.IPv6 == "" {
				device.IPv6 = ip.String()
			}
		}
	}

	if device.DNT == nil {
		switch dnt := desc.Header.Get("DNT"); dnt {
		case "0", "1":
			value, _ := strconv.ParseInt(dnt, 10, 8)
			device.DNT = ptrutil.ToPtr(int8(value))
		}
	}

	lmt.ModifyForIOS(req)
}

// normalizeIPFamily moves an address sent in the field of the other family to the right one.
func normalizeIPFamily(device *openrtb2.Device) {
	if device.IP != "" {
		if _, ver := iputil.ParseIP(device.IP); ver == iputil.IPv6 {
			if device.IPv6 == "" {
				device.IPv6 = device.IP
			}
			device.IP = ""
		}
	}
	if device.IPv6 != "" {
		if _, ver := iputil.ParseIP(device.IPv6); ver == iputil.IPv4 {
			if device.IP == "" {
				device.IP = device.IPv6
			}
			device.IPv6 = ""
		}
	}
}

// setSiteImplicitly fills the page from the Referer header, the domain from the page and the publisher
// domain from the registrable part of the domain. The page is only taken from the header when a publisher
// domain can be derived from it.
func setSiteImplicitly(desc RequestDescriptor, req *openrtb_ext.RequestWrapper, amp bool) error {
	if req.Site == nil {
		req.Site = &openrtb2.Site{}
	}
	site := req.Site

	page := strings.TrimSpace(site.Page)
	refererPage := ""
	if page == "" {
		refererPage = desc.Header.Get("Referer")
		page = refererPage
	}

	if strings.TrimSpace(site.Domain) == "" {
		if domain := hostOf(page); domain != "" {
			site.Domain = domain
		}
	}

	if site.Domain != "" && (site.Publisher == nil || site.Publisher.Domain == "") {
		if registrable, err := publicsuffix.EffectiveTLDPlusOne(site.Domain); err == nil {
			if site.Publisher == nil {
				site.Publisher = &openrtb2.Publisher{}
			}
			site.Publisher.Domain = registrable
		} else {
			glog.V(2).Infof("deriving publisher domain of %s: %v", site.Domain, err)
		}
	}

	if refererPage != "" && site.Publisher != nil && site.Publisher.Domain != "" {
		site.Page = refererPage
	}

	siteExt, err := req.GetSiteExt()
	if err != nil {
		return err
	}
	if siteExt.GetAmp() == nil {
		value := int8(0)
		if amp {
			value = 1
		}
		siteExt.SetAmp(&value)
	}
	return nil
}

func hostOf(page string) string {
	if page == "" {
		return ""
	}
	parsed, err := url.Parse(page)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

func (deps *endpointDeps) setSourceImplicitly(req *openrtb_ext.RequestWrapper) error {
	if req.Source == nil {
		req.Source = &openrtb2.Source{}
	}
	if req.Source.TID != "" {
		return nil
	}
	tid, err := deps.uuidGenerator.Generate()
	if err != nil {
		return fmt.Errorf("generating source.tid: %v", err)
	}
	req.Source.TID = tid
	return nil
}

// setImpIDsImplicitly renumbers every imp from 1 when one id is blank or two ids collide.
func setImpIDsImplicitly(req *openrtb2.BidRequest) {
	seen := make(map[string]struct{}, len(req.Imp))
	valid := true
	for i := range req.Imp {
		id := req.Imp[i].ID
		if _, dup := seen[id]; dup || id == "" {
			valid = false
			break
		}
		seen[id] = struct{}{}
	}
	if valid {
		return
	}
	for i := range req.Imp {
		req.Imp[i].ID = strconv.Itoa(i + 1)
	}
}

// moveBidderParams relocates the bidder blocks found at the top of imp.ext under imp.ext.prebid.bidder, then
// adds the ext.prebid.bidderparams of every bidder to each imp without replacing what the imp already states.
func moveBidderParams(req *openrtb_ext.RequestWrapper) error {
	globalParams, err := globalBidderParams(req)
	if err != nil {
		return err
	}

	for i, imp := range req.GetImp() {
		impExt, err := imp.GetImpExt()
		if err != nil {
			return fmt.Errorf("request.imp[%d].ext is invalid: %v", i, err)
		}

		ext := impExt.GetExt()
		prebid := impExt.GetOrCreatePrebid()
		modified := false

		for key, value := range ext {
			if openrtb_ext.IsReservedImpExtKey(key) || key == "bidder" {
				continue
			}
			if prebid.Bidder == nil {
				prebid.Bidder = make(map[string]json.RawMessage)
			}
			merged, err := jsonutil.MergePatch(prebid.Bidder[key], value)
			if err != nil {
				return fmt.Errorf("request.imp[%d].ext.%s: %v", i, key, err)
			}
			prebid.Bidder[key] = merged
			delete(ext, key)
			modified = true
		}

		for bidder, params := range globalParams {
			if prebid.Bidder == nil {
				prebid.Bidder = make(map[string]json.RawMessage)
			}
			merged, err := jsonutil.MergeUnder(prebid.Bidder[bidder], params)
			if err != nil {
				return fmt.Errorf("request.imp[%d].ext.prebid.bidder.%s: %v", i, bidder, err)
			}
			prebid.Bidder[bidder] = merged
			modified = true
		}

		if modified {
			impExt.SetExt(ext)
			impExt.SetPrebid(prebid)
		}
	}
	return nil
}

func globalBidderParams(req *openrtb_ext.RequestWrapper) (map[string]json.RawMessage, error) {
	requestExt, err := req.GetRequestExt()
	if err != nil {
		return nil, err
	}
	prebid := requestExt.GetPrebid()
	if prebid == nil || jsonutil.IsEmpty(prebid.BidderParams) {
		return nil, nil
	}

	var params map[string]json.RawMessage
	if err := json.Unmarshal(prebid.BidderParams, &params); err != nil {
		return nil, fmt.Errorf("ext.prebid.bidderparams must be an object: %v", err)
	}
	for key := range params {
		if openrtb_ext.IsReservedImpExtKey(key) {
			delete(params, key)
		}
	}
	return params, nil
}
