package openrtb2

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/prebid/openrtb/v20/adcom1"
	"github.com/prebid/openrtb/v20/openrtb2"

	"github.com/prebid/prebid-request-core/amp"
	"github.com/prebid/prebid-request-core/config"
	"github.com/prebid/prebid-request-core/errortypes"
	"github.com/prebid/prebid-request-core/geolocation"
	"github.com/prebid/prebid-request-core/metrics"
	"github.com/prebid/prebid-request-core/openrtb_ext"
	"github.com/prebid/prebid-request-core/privacy"
	"github.com/prebid/prebid-request-core/stored_requests"
	"github.com/prebid/prebid-request-core/util/iputil"
	"github.com/prebid/prebid-request-core/util/ptrutil"
	"github.com/prebid/prebid-request-core/util/uuidutil"
)

// NewGetEndpoint builds the handler of /openrtb2/get, which describes a whole auction in query parameters
// applied over a stored request.
func NewGetEndpoint(
	uuidGenerator uuidutil.UUIDGenerator,
	requestsByID stored_requests.Fetcher,
	accounts stored_requests.AccountFetcher,
	geo geolocation.GeoLocation,
	cfg *config.Configuration,
	metricsEngine metrics.MetricsEngine,
) (httprouter.Handle, error) {
	deps, err := newEndpointDeps(uuidGenerator, requestsByID, accounts, geo, cfg, metricsEngine)
	if err != nil {
		return nil, fmt.Errorf("NewGetEndpoint: %v", err)
	}
	return httprouter.Handle(deps.GetAuction), nil
}

func (deps *endpointDeps) GetAuction(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	deps.serve(KindGet, w, r)
}

// getParams are the overrides of a GET request. Unset numeric fields are nil; unset lists are nil.
type getParams struct {
	storedID  string
	account   string
	debug     bool
	timeout   *uint64
	size      amp.Size
	slot      string
	targeting string
	page      string

	// device
	dnt        *int8
	lmt        *int8
	ip         string
	ua         string
	ifa        string
	deviceType *int64

	// media
	mimes      []string
	minDur     *int64
	maxDur     *int64
	protocols  []int64
	api        []int64
	battr      []int64
	delivery   []int64
	linearity  *int64
	minBitrate *int64
	maxBitrate *int64
	skip       *int64
	startDelay *int64
	placement  *int64
	plcmt      *int64
	pos        *int64

	// request, app and content
	bcat     []string
	badv     []string
	bundle   string
	name     string
	storeURL string
	cgenre   string
	clang    string
	ctitle   string
	cseries  string
	curl     string
}

// parseGetParams reads every override of the query. A malformed number fails the whole request.
func parseGetParams(query url.Values) (*getParams, error) {
	p := &getParams{
		account:   amp.ParseAccount(query),
		debug:     query.Get("debug") == "1",
		size:      amp.ParseSize(query),
		slot:      query.Get("slot"),
		targeting: query.Get("targeting"),
		page:      query.Get("page"),
		ip:        strings.TrimSpace(query.Get("ip")),
		ua:        query.Get("ua"),
		ifa:       query.Get("ifa"),
		mimes:     parseStringList(query.Get("mimes")),
		bcat:      parseStringList(query.Get("bcat")),
		badv:      parseStringList(query.Get("badv")),
		bundle:    query.Get("bundle"),
		name:      query.Get("name"),
		storeURL:  query.Get("storeurl"),
		cgenre:    query.Get("cgenre"),
		clang:     query.Get("clang"),
		ctitle:    query.Get("ctitle"),
		cseries:   query.Get("cseries"),
		curl:      query.Get("curl"),
	}

	for _, key := range endpointSettingsTable[KindGet].storedIDParams {
		if id := query.Get(key); id != "" {
			p.storedID = id
			break
		}
	}
	if sizes := query.Get("sizes"); sizes != "" {
		p.size.Multisize = amp.ParseMultisize(sizes)
	}

	var err error
	if p.timeout, err = parseTimeoutParam(query); err != nil {
		return nil, err
	}

	ints := []struct {
		keys   []string
		target **int64
	}{
		{[]string{"dtype"}, &p.deviceType},
		{[]string{"mindur"}, &p.minDur},
		{[]string{"maxdur"}, &p.maxDur},
		{[]string{"linearity"}, &p.linearity},
		{[]string{"minbr"}, &p.minBitrate},
		{[]string{"maxbr"}, &p.maxBitrate},
		{[]string{"skip"}, &p.skip},
		{[]string{"startdelay"}, &p.startDelay},
		{[]string{"placement"}, &p.placement},
		{[]string{"plcmt"}, &p.plcmt},
		{[]string{"pos"}, &p.pos},
	}
	for _, field := range ints {
		if *field.target, err = parseIntParam(query, field.keys...); err != nil {
			return nil, err
		}
	}

	lists := []struct {
		keys   []string
		target *[]int64
	}{
		{[]string{"protocols", "proto"}, &p.protocols},
		{[]string{"api"}, &p.api},
		{[]string{"battr"}, &p.battr},
		{[]string{"delivery"}, &p.delivery},
	}
	for _, field := range lists {
		if *field.target, err = parseIntListParam(query, field.keys...); err != nil {
			return nil, err
		}
	}

	flags := []struct {
		key    string
		target **int8
	}{
		{"dnt", &p.dnt},
		{"lmt", &p.lmt},
	}
	for _, field := range flags {
		value, err := parseIntParam(query, field.key)
		if err != nil {
			return nil, err
		}
		if value != nil {
			if *value != 0 && *value != 1 {
				return nil, &errortypes.BadInput{Message: fmt.Sprintf("%s must be 0 or 1, got %d", field.key, *value)}
			}
			*field.target = ptrutil.ToPtr(int8(*value))
		}
	}

	return p, nil
}

// parseTimeoutParam reads the timeout or tmax parameter.
func parseTimeoutParam(query url.Values) (*uint64, error) {
	timeout, err := amp.ParseTimeout(query)
	if err != nil {
		return nil, &errortypes.BadInput{Message: err.Error()}
	}
	return timeout, nil
}

func firstValue(query url.Values, keys ...string) (string, string) {
	for _, key := range keys {
		if value := strings.TrimSpace(query.Get(key)); value != "" {
			return key, value
		}
	}
	return "", ""
}

func parseIntParam(query url.Values, keys ...string) (*int64, error) {
	key, value := firstValue(query, keys...)
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, &errortypes.BadInput{Message: fmt.Sprintf("%s must be an integer, got %q", key, value)}
	}
	return &parsed, nil
}

func parseIntListParam(query url.Values, keys ...string) ([]int64, error) {
	key, value := firstValue(query, keys...)
	if value == "" {
		return nil, nil
	}
	parts := strings.Split(value, ",")
	parsed := make([]int64, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, &errortypes.BadInput{Message: fmt.Sprintf("%s must be a comma separated list of integers, got %q", key, value)}
		}
		parsed = append(parsed, n)
	}
	return parsed, nil
}

func parseStringList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return strings.Split(value, ",")
}

func convertList[T ~int64](values []int64) []T {
	if values == nil {
		return nil
	}
	converted := make([]T, len(values))
	for i, v := range values {
		converted[i] = T(v)
	}
	return converted
}

func convertPtr[T ~int64](value *int64) *T {
	if value == nil {
		return nil
	}
	converted := T(*value)
	return &converted
}

func (deps *endpointDeps) parseGetStep(_ context.Context, ac *AuctionContext) (*AuctionContext, []error) {
	input := *ac.input

	params, err := parseGetParams(input.desc.Query)
	if err != nil {
		return ac, []error{err}
	}
	if params.storedID == "" {
		return ac, []error{&errortypes.BadInput{Message: "GET requests require a stored request id in srid or tag_id"}}
	}

	input.getParams = params
	input.storedID = params.storedID
	input.explicitAccount = params.account
	input.consent = privacy.ConsentParamsFromQuery(input.desc.Query, input.desc.Header)
	input.debug = params.debug

	next := ac.withInput(&input)
	next.Debug = input.debug
	return next, nil
}

// getOverrideStep applies the query parameters over the stored request. Lists replace the stored lists.
func (deps *endpointDeps) getOverrideStep(_ context.Context, ac *AuctionContext) (*AuctionContext, []error) {
	params := ac.input.getParams
	req := ac.Request

	if len(req.Imp) == 0 {
		return ac, []error{&errortypes.BadInput{Message: fmt.Sprintf("data for srid='%s' does not define the required imp array", params.storedID)}}
	}

	var warnings []error
	imp := &req.Imp[0]

	if params.slot != "" {
		imp.TagID = params.slot
	}
	overrideBanner(imp.Banner, params)
	overrideVideo(imp.Video, params)
	overrideAudio(imp.Audio, params)
	if warning := setTargeting(imp, params.targeting); warning != nil {
		warnings = append(warnings, warning)
	}

	overrideDevice(req.BidRequest, params)
	overrideChannel(req.BidRequest, params)
	setEffectivePubID(req.BidRequest, params.account)

	if params.bcat != nil {
		req.BCat = params.bcat
	}
	if params.badv != nil {
		req.BAdv = params.badv
	}
	if params.timeout != nil {
		req.TMax = int64(*params.timeout)
	}

	if params.debug {
		req.Test = 1
		requestExt, err := req.GetRequestExt()
		if err != nil {
			return ac, append(warnings, &errortypes.BadInput{Message: err.Error()})
		}
		prebid := requestExt.GetPrebid()
		if prebid == nil {
			prebid = &openrtb_ext.ExtRequestPrebid{}
		}
		prebid.Debug = true
		requestExt.SetPrebid(prebid)
	}

	return ac, warnings
}

func overrideBanner(banner *openrtb2.Banner, p *getParams) {
	if banner == nil {
		return
	}
	p.size.Apply(banner)
	if p.mimes != nil {
		banner.MIMEs = p.mimes
	}
	if p.battr != nil {
		banner.BAttr = convertList[adcom1.CreativeAttribute](p.battr)
	}
	if p.api != nil {
		banner.API = convertList[adcom1.APIFramework](p.api)
	}
	if p.pos != nil {
		banner.Pos = convertPtr[adcom1.PlacementPosition](p.pos)
	}
}

func overrideVideo(video *openrtb2.Video, p *getParams) {
	if video == nil {
		return
	}
	if formats := p.size.Formats(); len(formats) == 1 {
		video.W = ptrutil.ToPtr(formats[0].W)
		video.H = ptrutil.ToPtr(formats[0].H)
	}
	if p.mimes != nil {
		video.MIMEs = p.mimes
	}
	if p.minDur != nil {
		video.MinDuration = *p.minDur
	}
	if p.maxDur != nil {
		video.MaxDuration = *p.maxDur
	}
	if p.protocols != nil {
		video.Protocols = convertList[adcom1.MediaCreativeSubtype](p.protocols)
	}
	if p.api != nil {
		video.API = convertList[adcom1.APIFramework](p.api)
	}
	if p.battr != nil {
		video.BAttr = convertList[adcom1.CreativeAttribute](p.battr)
	}
	if p.delivery != nil {
		video.Delivery = convertList[adcom1.DeliveryMethod](p.delivery)
	}
	if p.linearity != nil {
		video.Linearity = adcom1.LinearityMode(*p.linearity)
	}
	if p.minBitrate != nil {
		video.MinBitRate = *p.minBitrate
	}
	if p.maxBitrate != nil {
		video.MaxBitRate = *p.maxBitrate
	}
	if p.skip != nil {
		video.Skip = ptrutil.ToPtr(int8(*p.skip))
	}
	if p.startDelay != nil {
		video.StartDelay = convertPtr[adcom1.StartDelay](p.startDelay)
	}
	if p.placement != nil {
		video.Placement = adcom1.VideoPlacementSubtype(*p.placement)
	}
	if p.plcmt != nil {
		video.Plcmt = adcom1.VideoPlcmtSubtype(*p.plcmt)
	}
	if p.pos != nil {
		video.Pos = convertPtr[adcom1.PlacementPosition](p.pos)
	}
}

func overrideAudio(audio *openrtb2.Audio, p *getParams) {
	if audio == nil {
		return
	}
	if p.mimes != nil {
		audio.MIMEs = p.mimes
	}
	if p.minDur != nil {
		audio.MinDuration = *p.minDur
	}
	if p.maxDur != nil {
		audio.MaxDuration = *p.maxDur
	}
	if p.protocols != nil {
		audio.Protocols = convertList[adcom1.MediaCreativeSubtype](p.protocols)
	}
	if p.api != nil {
		audio.API = convertList[adcom1.APIFramework](p.api)
	}
	if p.battr != nil {
		audio.BAttr = convertList[adcom1.CreativeAttribute](p.battr)
	}
	if p.delivery != nil {
		audio.Delivery = convertList[adcom1.DeliveryMethod](p.delivery)
	}
	if p.minBitrate != nil {
		audio.MinBitrate = *p.minBitrate
	}
	if p.maxBitrate != nil {
		audio.MaxBitrate = *p.maxBitrate
	}
	if p.startDelay != nil {
		audio.StartDelay = convertPtr[adcom1.StartDelay](p.startDelay)
	}
}

// overrideDevice applies the device parameters. The ip parameter goes to the field of its family.
func overrideDevice(req *openrtb2.BidRequest, p *getParams) {
	if p.dnt == nil && p.lmt == nil && p.ip == "" && p.ua == "" && p.ifa == "" && p.deviceType == nil {
		return
	}
	if req.Device == nil {
		req.Device = &openrtb2.Device{}
	}
	device := req.Device

	if p.dnt != nil {
		device.DNT = p.dnt
	}
	if p.lmt != nil {
		device.Lmt = p.lmt
	}
	if p.ua != "" {
		device.UA = p.ua
	}
	if p.ifa != "" {
		device.IFA = p.ifa
	}
	if p.deviceType != nil {
		device.DeviceType = adcom1.DeviceType(*p.deviceType)
	}
	if p.ip != "" {
		switch ip, ver := iputil.ParseIP(p.ip); ver {
		case iputil.IPv4:
			device.IP = ip.String()
		case iputil.IPv6:
			device.IPv6 = ip.String()
		}
	}
}

// overrideChannel applies the page, app and content parameters to the channel of the stored request.
func overrideChannel(req *openrtb2.BidRequest, p *getParams) {
	var content **openrtb2.Content
	switch {
	case req.App != nil:
		if p.bundle != "" {
			req.App.Bundle = p.bundle
		}
		if p.name != "" {
			req.App.Name = p.name
		}
		if p.storeURL != "" {
			req.App.StoreURL = p.storeURL
		}
		content = &req.App.Content
	case req.DOOH != nil:
		content = &req.DOOH.Content
	default:
		if req.Site == nil {
			req.Site = &openrtb2.Site{}
		}
		if page := p.page; page != "" {
			req.Site.Page = page
			if domain := hostOf(page); domain != "" {
				req.Site.Domain = domain
			}
		}
		content = &req.Site.Content
	}

	if p.cgenre == "" && p.clang == "" && p.ctitle == "" && p.cseries == "" && p.curl == "" {
		return
	}
	if *content == nil {
		*content = &openrtb2.Content{}
	}
	c := *content
	if p.cgenre != "" {
		c.Genre = p.cgenre
	}
	if p.clang != "" {
		c.Language = p.clang
	}
	if p.ctitle != "" {
		c.Title = p.ctitle
	}
	if p.cseries != "" {
		c.Series = p.cseries
	}
	if p.curl != "" {
		c.URL = p.curl
	}
}
