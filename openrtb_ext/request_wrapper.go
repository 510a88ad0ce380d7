package openrtb_ext

import (
	"encoding/json"
	"errors"

	"github.com/prebid/openrtb/v20/openrtb2"
)

// RequestWrapper wraps the OpenRTB request to provide a storage location for unmarshalled ext fields, so they
// will not need to be unmarshalled multiple times.
//
// To start with, the wrapper can be created for a request 'req' via:
// reqWrapper := openrtb_ext.RequestWrapper{BidRequest: req}
//
// In order to access an object's ext field, fetch it via:
// userExt, err := reqWrapper.GetUserExt()
// or other Get method as appropriate.
//
// To read or write values, use the Ext objects Get and Set methods. If you need to write to a field that has its own Set
// method, use that to set the value rather than using SetExt() with that change done in the map; when rewriting the
// ext JSON the code will overwrite the values in the map with the values stored in the separate fields.
//
// The GetExt() and SetExt() should only be used to access fields that have not already been resolved in the object.
//
// NOTE: The RequestWrapper methods (particularly the ones calling (un)Marshal are not thread safe)
type RequestWrapper struct {
	*openrtb2.BidRequest
	impWrappers         []*ImpWrapper
	impWrappersAccessed bool
	userExt             *UserExt
	deviceExt           *DeviceExt
	requestExt          *RequestExt
	regExt              *RegExt
	siteExt             *SiteExt
}

const (
	jsonEmptyObjectLength               = 2
	consentedProvidersSettingsStringKey = "ConsentedProvidersSettings"
	consentKey                          = "consent"
	ampKey                              = "amp"
	attsKey                             = "atts"
	gdprKey                             = "gdpr"
	usPrivacyKey                        = "us_privacy"
	gpcKey                              = "gpc"
	prebidKey                           = "prebid"
)

// LenImp returns the number of impressions without causing the creation of ImpWrapper objects.
func (rw *RequestWrapper) LenImp() int {
	if rw.impWrappersAccessed {
		return len(rw.impWrappers)
	}

	return len(rw.Imp)
}

func (rw *RequestWrapper) GetImp() []*ImpWrapper {
	if rw.impWrappersAccessed {
		return rw.impWrappers
	}

	// There is minimal difference between nil and empty arrays in Go, but it matters
	// for json encoding. In practice there will always be at least one imp, so this
	// is an optimization for tests with (appropriately) incomplete requests.
	if rw.Imp != nil {
		rw.impWrappers = make([]*ImpWrapper, len(rw.Imp))
		for i := range rw.Imp {
			rw.impWrappers[i] = &ImpWrapper{Imp: &rw.Imp[i]}
		}
	}

	rw.impWrappersAccessed = true

	return rw.impWrappers
}

func (rw *RequestWrapper) SetImp(imps []*ImpWrapper) {
	rw.impWrappers = imps
	rw.impWrappersAccessed = true
}

func (rw *RequestWrapper) GetUserExt() (*UserExt, error) {
	if rw.userExt != nil {
		return rw.userExt, nil
	}
	rw.userExt = &UserExt{}
	if rw.BidRequest == nil || rw.User == nil || rw.User.Ext == nil {
		return rw.userExt, rw.userExt.unmarshal(json.RawMessage{})
	}

	return rw.userExt, rw.userExt.unmarshal(rw.User.Ext)
}

func (rw *RequestWrapper) GetDeviceExt() (*DeviceExt, error) {
	if rw.deviceExt != nil {
		return rw.deviceExt, nil
	}
	rw.deviceExt = &DeviceExt{}
	if rw.BidRequest == nil || rw.Device == nil || rw.Device.Ext == nil {
		return rw.deviceExt, rw.deviceExt.unmarshal(json.RawMessage{})
	}
	return rw.deviceExt, rw.deviceExt.unmarshal(rw.Device.Ext)
}

func (rw *RequestWrapper) GetRequestExt() (*RequestExt, error) {
	if rw.requestExt != nil {
		return rw.requestExt, nil
	}
	rw.requestExt = &RequestExt{}
	if rw.BidRequest == nil || rw.Ext == nil {
		return rw.requestExt, rw.requestExt.unmarshal(json.RawMessage{})
	}
	return rw.requestExt, rw.requestExt.unmarshal(rw.Ext)
}

func (rw *RequestWrapper) GetRegExt() (*RegExt, error) {
	if rw.regExt != nil {
		return rw.regExt, nil
	}
	rw.regExt = &RegExt{}
	if rw.BidRequest == nil || rw.Regs == nil || rw.Regs.Ext == nil {
		return rw.regExt, rw.regExt.unmarshal(json.RawMessage{})
	}
	return rw.regExt, rw.regExt.unmarshal(rw.Regs.Ext)
}

func (rw *RequestWrapper) GetSiteExt() (*SiteExt, error) {
	if rw.siteExt != nil {
		return rw.siteExt, nil
	}
	rw.siteExt = &SiteExt{}
	if rw.BidRequest == nil || rw.Site == nil || rw.Site.Ext == nil {
		return rw.siteExt, rw.siteExt.unmarshal(json.RawMessage{})
	}
	return rw.siteExt, rw.siteExt.unmarshal(rw.Site.Ext)
}

// GetPublisher returns the publisher of the channel in use, giving app precedence over site and dooh.
func (rw *RequestWrapper) GetPublisher() *openrtb2.Publisher {
	switch {
	case rw.App != nil:
		return rw.App.Publisher
	case rw.Site != nil:
		return rw.Site.Publisher
	case rw.DOOH != nil:
		return rw.DOOH.Publisher
	}
	return nil
}

func (rw *RequestWrapper) RebuildRequest() error {
	if rw.BidRequest == nil {
		return errors.New("Requestwrapper RebuildRequest called on a nil BidRequest")
	}

	if err := rw.rebuildImp(); err != nil {
		return err
	}
	if err := rw.rebuildUserExt(); err != nil {
		return err
	}
	if err := rw.rebuildDeviceExt(); err != nil {
		return err
	}
	if err := rw.rebuildRequestExt(); err != nil {
		return err
	}
	if err := rw.rebuildRegExt(); err != nil {
		return err
	}
	if err := rw.rebuildSiteExt(); err != nil {
		return err
	}

	return nil
}

func (rw *RequestWrapper) rebuildImp() error {
	if !rw.impWrappersAccessed {
		return nil
	}

	if rw.impWrappers == nil {
		rw.Imp = nil
		return nil
	}

	rw.Imp = make([]openrtb2.Imp, len(rw.impWrappers))
	for i := range rw.impWrappers {
		if err := rw.impWrappers[i].RebuildImp(); err != nil {
			return err
		}
		rw.Imp[i] = *rw.impWrappers[i].Imp
		rw.impWrappers[i].Imp = &rw.Imp[i]
	}

	return nil
}

func (rw *RequestWrapper) rebuildUserExt() error {
	if rw.userExt == nil || !rw.userExt.Dirty() {
		return nil
	}

	userJson, err := rw.userExt.marshal()
	if err != nil {
		return err
	}

	if userJson != nil && rw.User == nil {
		rw.User = &openrtb2.User{Ext: userJson}
	} else if rw.User != nil {
		rw.User.Ext = userJson
	}

	return nil
}

func (rw *RequestWrapper) rebuildDeviceExt() error {
	if rw.deviceExt == nil || !rw.deviceExt.Dirty() {
		return nil
	}

	deviceJson, err := rw.deviceExt.marshal()
	if err != nil {
		return err
	}

	if deviceJson != nil && rw.Device == nil {
		rw.Device = &openrtb2.Device{Ext: deviceJson}
	} else if rw.Device != nil {
		rw.Device.Ext = deviceJson
	}

	return nil
}

func (rw *RequestWrapper) rebuildRequestExt() error {
	if rw.requestExt == nil || !rw.requestExt.Dirty() {
		return nil
	}

	requestJson, err := rw.requestExt.marshal()
	if err != nil {
		return err
	}

	rw.Ext = requestJson

	return nil
}

func (rw *RequestWrapper) rebuildRegExt() error {
	if rw.regExt == nil || !rw.regExt.Dirty() {
		return nil
	}

	regsJson, err := rw.regExt.marshal()
	if err != nil {
		return err
	}

	if regsJson != nil && rw.Regs == nil {
		rw.Regs = &openrtb2.Regs{Ext: regsJson}
	} else if rw.Regs != nil {
		rw.Regs.Ext = regsJson
	}

	return nil
}

func (rw *RequestWrapper) rebuildSiteExt() error {
	if rw.siteExt == nil || !rw.siteExt.Dirty() {
		return nil
	}

	siteJson, err := rw.siteExt.marshal()
	if err != nil {
		return err
	}

	if siteJson != nil && rw.Site == nil {
		rw.Site = &openrtb2.Site{Ext: siteJson}
	} else if rw.Site != nil {
		rw.Site.Ext = siteJson
	}

	return nil
}

// ---------------------------------------------------------------
// UserExt provides an interface for request.user.ext
// ---------------------------------------------------------------

type UserExt struct {
	ext                             map[string]json.RawMessage
	extDirty                        bool
	consent                         *string
	consentDirty                    bool
	consentedProvidersSettings      *ExtUserConsentedProvidersSettings
	consentedProvidersSettingsDirty bool
}

func (ue *UserExt) unmarshal(extJson json.RawMessage) error {
	if len(ue.ext) != 0 || ue.Dirty() {
		return nil
	}

	ue.ext = make(map[string]json.RawMessage)

	if len(extJson) == 0 {
		return nil
	}

	if err := json.Unmarshal(extJson, &ue.ext); err != nil {
		return err
	}

	if consentJson, hasConsent := ue.ext[consentKey]; hasConsent && consentJson != nil {
		if err := json.Unmarshal(consentJson, &ue.consent); err != nil {
			return errors.New("request.user.ext.consent must be a string")
		}
	}

	if cpsJson, hasCPS := ue.ext[consentedProvidersSettingsStringKey]; hasCPS && cpsJson != nil {
		ue.consentedProvidersSettings = &ExtUserConsentedProvidersSettings{}
		if err := json.Unmarshal(cpsJson, ue.consentedProvidersSettings); err != nil {
			return err
		}
	}

	return nil
}

func (ue *UserExt) marshal() (json.RawMessage, error) {
	if ue.consentDirty {
		if ue.consent != nil && len(*ue.consent) > 0 {
			consentJson, err := json.Marshal(ue.consent)
			if err != nil {
				return nil, err
			}
			ue.ext[consentKey] = json.RawMessage(consentJson)
		} else {
			delete(ue.ext, consentKey)
		}
		ue.consentDirty = false
	}

	if ue.consentedProvidersSettingsDirty {
		if ue.consentedProvidersSettings != nil {
			cpsJson, err := json.Marshal(ue.consentedProvidersSettings)
			if err != nil {
				return nil, err
			}
			if len(cpsJson) > jsonEmptyObjectLength {
				ue.ext[consentedProvidersSettingsStringKey] = json.RawMessage(cpsJson)
			} else {
				delete(ue.ext, consentedProvidersSettingsStringKey)
			}
		} else {
			delete(ue.ext, consentedProvidersSettingsStringKey)
		}
		ue.consentedProvidersSettingsDirty = false
	}

	ue.extDirty = false
	if len(ue.ext) == 0 {
		return nil, nil
	}
	return json.Marshal(ue.ext)
}

func (ue *UserExt) Dirty() bool {
	return ue.extDirty || ue.consentDirty || ue.consentedProvidersSettingsDirty
}

func (ue *UserExt) GetExt() map[string]json.RawMessage {
	return cloneRawMap(ue.ext)
}

func (ue *UserExt) SetExt(ext map[string]json.RawMessage) {
	ue.ext = ext
	ue.extDirty = true
}

func (ue *UserExt) GetConsent() *string {
	if ue.consent == nil {
		return nil
	}
	consent := *ue.consent
	return &consent
}

func (ue *UserExt) SetConsent(consent *string) {
	ue.consent = consent
	ue.consentDirty = true
}

func (ue *UserExt) GetConsentedProvidersSettings() *ExtUserConsentedProvidersSettings {
	if ue.consentedProvidersSettings == nil {
		return nil
	}
	cps := *ue.consentedProvidersSettings
	return &cps
}

func (ue *UserExt) SetConsentedProvidersSettings(cps *ExtUserConsentedProvidersSettings) {
	ue.consentedProvidersSettings = cps
	ue.consentedProvidersSettingsDirty = true
}

// ---------------------------------------------------------------
// RequestExt provides an interface for request.ext
// ---------------------------------------------------------------

type RequestExt struct {
	ext         map[string]json.RawMessage
	extDirty    bool
	prebid      *ExtRequestPrebid
	prebidDirty bool
}

func (re *RequestExt) unmarshal(extJson json.RawMessage) error {
	if len(re.ext) != 0 || re.Dirty() {
		return nil
	}

	re.ext = make(map[string]json.RawMessage)

	if len(extJson) == 0 {
		return nil
	}

	if err := json.Unmarshal(extJson, &re.ext); err != nil {
		return err
	}

	prebidJson, hasPrebid := re.ext[prebidKey]
	if hasPrebid && prebidJson != nil {
		re.prebid = &ExtRequestPrebid{}
		if err := json.Unmarshal(prebidJson, re.prebid); err != nil {
			return err
		}
	}

	return nil
}

func (re *RequestExt) marshal() (json.RawMessage, error) {
	if re.prebidDirty {
		if re.prebid != nil {
			prebidJson, err := json.Marshal(re.prebid)
			if err != nil {
				return nil, err
			}
			if len(prebidJson) > jsonEmptyObjectLength {
				re.ext[prebidKey] = json.RawMessage(prebidJson)
			} else {
				delete(re.ext, prebidKey)
			}
		} else {
			delete(re.ext, prebidKey)
		}
		re.prebidDirty = false
	}

	re.extDirty = false
	if len(re.ext) == 0 {
		return nil, nil
	}
	return json.Marshal(re.ext)
}

func (re *RequestExt) Dirty() bool {
	return re.extDirty || re.prebidDirty
}

func (re *RequestExt) GetExt() map[string]json.RawMessage {
	return cloneRawMap(re.ext)
}

func (re *RequestExt) SetExt(ext map[string]json.RawMessage) {
	re.ext = ext
	re.extDirty = true
}

// GetPrebid returns a shallow copy of ext.prebid. Nested pointers are shared, so callers that modify
// them must call SetPrebid.
func (re *RequestExt) GetPrebid() *ExtRequestPrebid {
	if re.prebid == nil {
		return nil
	}
	prebid := *re.prebid
	return &prebid
}

func (re *RequestExt) SetPrebid(prebid *ExtRequestPrebid) {
	re.prebid = prebid
	re.prebidDirty = true
}

// ---------------------------------------------------------------
// DeviceExt provides an interface for request.device.ext
// ---------------------------------------------------------------

type DeviceExt struct {
	ext       map[string]json.RawMessage
	extDirty  bool
	atts      *IOSAppTrackingStatus
	attsDirty bool
}

func (de *DeviceExt) unmarshal(extJson json.RawMessage) error {
	if len(de.ext) != 0 || de.Dirty() {
		return nil
	}

	de.ext = make(map[string]json.RawMessage)

	if len(extJson) == 0 {
		return nil
	}

	if err := json.Unmarshal(extJson, &de.ext); err != nil {
		return err
	}

	if _, hasATTS := de.ext[attsKey]; hasATTS {
		atts, err := ParseDeviceExtATTS(extJson)
		if err != nil {
			return errors.New("request.device.ext.atts must be a positive integer")
		}
		de.atts = atts
	}

	return nil
}

func (de *DeviceExt) marshal() (json.RawMessage, error) {
	if de.attsDirty {
		if de.atts != nil {
			attsJson, err := json.Marshal(*de.atts)
			if err != nil {
				return nil, err
			}
			de.ext[attsKey] = json.RawMessage(attsJson)
		} else {
			delete(de.ext, attsKey)
		}
		de.attsDirty = false
	}

	de.extDirty = false
	if len(de.ext) == 0 {
		return nil, nil
	}
	return json.Marshal(de.ext)
}

func (de *DeviceExt) Dirty() bool {
	return de.extDirty || de.attsDirty
}

func (de *DeviceExt) GetExt() map[string]json.RawMessage {
	return cloneRawMap(de.ext)
}

func (de *DeviceExt) SetExt(ext map[string]json.RawMessage) {
	de.ext = ext
	de.extDirty = true
}

func (de *DeviceExt) GetATTS() *IOSAppTrackingStatus {
	if de.atts == nil {
		return nil
	}
	atts := *de.atts
	return &atts
}

func (de *DeviceExt) SetATTS(atts *IOSAppTrackingStatus) {
	de.atts = atts
	de.attsDirty = true
}

// ---------------------------------------------------------------
// RegExt provides an interface for request.regs.ext
// ---------------------------------------------------------------

type RegExt struct {
	ext            map[string]json.RawMessage
	extDirty       bool
	gdpr           *int8
	gdprDirty      bool
	usPrivacy      string
	usPrivacyDirty bool
	gpc            *string
	gpcDirty       bool
}

func (re *RegExt) unmarshal(extJson json.RawMessage) error {
	if len(re.ext) != 0 || re.Dirty() {
		return nil
	}

	re.ext = make(map[string]json.RawMessage)

	if len(extJson) == 0 {
		return nil
	}

	if err := json.Unmarshal(extJson, &re.ext); err != nil {
		return err
	}

	if gdprJson, hasGDPR := re.ext[gdprKey]; hasGDPR && gdprJson != nil {
		if err := json.Unmarshal(gdprJson, &re.gdpr); err != nil {
			return errors.New("request.regs.ext.gdpr must be either 0 or 1")
		}
	}

	if uspJson, hasUsp := re.ext[usPrivacyKey]; hasUsp && uspJson != nil {
		if err := json.Unmarshal(uspJson, &re.usPrivacy); err != nil {
			return errors.New("request.regs.ext.us_privacy must be a string")
		}
	}

	if gpcJson, hasGPC := re.ext[gpcKey]; hasGPC && gpcJson != nil {
		if err := json.Unmarshal(gpcJson, &re.gpc); err != nil {
			return errors.New("request.regs.ext.gpc must be a string")
		}
	}

	return nil
}

func (re *RegExt) marshal() (json.RawMessage, error) {
	if re.gdprDirty {
		if re.gdpr != nil {
			rawjson, err := json.Marshal(re.gdpr)
			if err != nil {
				return nil, err
			}
			re.ext[gdprKey] = rawjson
		} else {
			delete(re.ext, gdprKey)
		}
		re.gdprDirty = false
	}

	if re.usPrivacyDirty {
		if len(re.usPrivacy) > 0 {
			rawjson, err := json.Marshal(re.usPrivacy)
			if err != nil {
				return nil, err
			}
			re.ext[usPrivacyKey] = rawjson
		} else {
			delete(re.ext, usPrivacyKey)
		}
		re.usPrivacyDirty = false
	}

	if re.gpcDirty {
		if re.gpc != nil {
			rawjson, err := json.Marshal(re.gpc)
			if err != nil {
				return nil, err
			}
			re.ext[gpcKey] = rawjson
		} else {
			delete(re.ext, gpcKey)
		}
		re.gpcDirty = false
	}

	re.extDirty = false
	if len(re.ext) == 0 {
		return nil, nil
	}
	return json.Marshal(re.ext)
}

func (re *RegExt) Dirty() bool {
	return re.extDirty || re.gdprDirty || re.usPrivacyDirty || re.gpcDirty
}

func (re *RegExt) GetExt() map[string]json.RawMessage {
	return cloneRawMap(re.ext)
}

func (re *RegExt) SetExt(ext map[string]json.RawMessage) {
	re.ext = ext
	re.extDirty = true
}

func (re *RegExt) GetGDPR() *int8 {
	if re.gdpr == nil {
		return nil
	}
	gdpr := *re.gdpr
	return &gdpr
}

func (re *RegExt) SetGDPR(gdpr *int8) {
	re.gdpr = gdpr
	re.gdprDirty = true
}

func (re *RegExt) GetUSPrivacy() string {
	return re.usPrivacy
}

func (re *RegExt) SetUSPrivacy(usPrivacy string) {
	re.usPrivacy = usPrivacy
	re.usPrivacyDirty = true
}

func (re *RegExt) GetGPC() *string {
	if re.gpc == nil {
		return nil
	}
	gpc := *re.gpc
	return &gpc
}

func (re *RegExt) SetGPC(gpc *string) {
	re.gpc = gpc
	re.gpcDirty = true
}

// ---------------------------------------------------------------
// SiteExt provides an interface for request.site.ext
// ---------------------------------------------------------------

type SiteExt struct {
	ext      map[string]json.RawMessage
	extDirty bool
	amp      *int8
	ampDirty bool
}

func (se *SiteExt) unmarshal(extJson json.RawMessage) error {
	if len(se.ext) != 0 || se.Dirty() {
		return nil
	}

	se.ext = make(map[string]json.RawMessage)

	if len(extJson) == 0 {
		return nil
	}

	if err := json.Unmarshal(extJson, &se.ext); err != nil {
		return err
	}

	ampJson, hasAmp := se.ext[ampKey]
	if hasAmp && ampJson != nil {
		if err := json.Unmarshal(ampJson, &se.amp); err != nil {
			return errors.New(`request.site.ext.amp must be either 1, 0, or undefined`)
		}
	}

	return nil
}

func (se *SiteExt) marshal() (json.RawMessage, error) {
	if se.ampDirty {
		if se.amp != nil {
			ampJson, err := json.Marshal(se.amp)
			if err != nil {
				return nil, err
			}
			se.ext[ampKey] = json.RawMessage(ampJson)
		} else {
			delete(se.ext, ampKey)
		}
		se.ampDirty = false
	}

	se.extDirty = false
	if len(se.ext) == 0 {
		return nil, nil
	}
	return json.Marshal(se.ext)
}

func (se *SiteExt) Dirty() bool {
	return se.extDirty || se.ampDirty
}

func (se *SiteExt) GetExt() map[string]json.RawMessage {
	return cloneRawMap(se.ext)
}

func (se *SiteExt) SetExt(ext map[string]json.RawMessage) {
	se.ext = ext
	se.extDirty = true
}

func (se *SiteExt) GetAmp() *int8 {
	if se.amp == nil {
		return nil
	}
	amp := *se.amp
	return &amp
}

func (se *SiteExt) SetAmp(amp *int8) {
	se.amp = amp
	se.ampDirty = true
}

// ---------------------------------------------------------------
// ImpWrapper wraps an OpenRTB impression object to provide storage for unmarshalled ext fields, so they
// will not need to be unmarshalled multiple times. It is intended to use the ImpWrapper via the RequestWrapper
// and follow the same usage conventions.
// ---------------------------------------------------------------

type ImpWrapper struct {
	*openrtb2.Imp
	impExt *ImpExt
}

func (w *ImpWrapper) GetImpExt() (*ImpExt, error) {
	if w.impExt != nil {
		return w.impExt, nil
	}
	w.impExt = &ImpExt{}
	if w.Imp == nil || w.Ext == nil {
		return w.impExt, w.impExt.unmarshal(json.RawMessage{})
	}
	return w.impExt, w.impExt.unmarshal(w.Ext)
}

func (w *ImpWrapper) RebuildImp() error {
	if w.Imp == nil {
		return errors.New("ImpWrapper RebuildImp called on a nil Imp")
	}

	if w.impExt == nil || !w.impExt.Dirty() {
		return nil
	}

	impJson, err := w.impExt.marshal()
	if err != nil {
		return err
	}
	w.Ext = impJson

	return nil
}

// ---------------------------------------------------------------
// ImpExt provides an interface for imp.ext
// ---------------------------------------------------------------

type ImpExt struct {
	ext         map[string]json.RawMessage
	extDirty    bool
	prebid      *ExtImpPrebid
	prebidDirty bool
}

func (e *ImpExt) unmarshal(extJson json.RawMessage) error {
	if len(e.ext) != 0 || e.Dirty() {
		return nil
	}

	e.ext = make(map[string]json.RawMessage)

	if len(extJson) == 0 {
		return nil
	}

	if err := json.Unmarshal(extJson, &e.ext); err != nil {
		return err
	}

	prebidJson, hasPrebid := e.ext[prebidKey]
	if hasPrebid && prebidJson != nil {
		e.prebid = &ExtImpPrebid{}
		if err := json.Unmarshal(prebidJson, e.prebid); err != nil {
			return err
		}
	}

	return nil
}

func (e *ImpExt) marshal() (json.RawMessage, error) {
	if e.prebidDirty {
		if e.prebid != nil {
			prebidJson, err := json.Marshal(e.prebid)
			if err != nil {
				return nil, err
			}
			if len(prebidJson) > jsonEmptyObjectLength {
				e.ext[prebidKey] = json.RawMessage(prebidJson)
			} else {
				delete(e.ext, prebidKey)
			}
		} else {
			delete(e.ext, prebidKey)
		}
		e.prebidDirty = false
	}

	e.extDirty = false
	if len(e.ext) == 0 {
		return nil, nil
	}
	return json.Marshal(e.ext)
}

func (e *ImpExt) Dirty() bool {
	return e.extDirty || e.prebidDirty
}

func (e *ImpExt) GetExt() map[string]json.RawMessage {
	return cloneRawMap(e.ext)
}

func (e *ImpExt) SetExt(ext map[string]json.RawMessage) {
	e.ext = ext
	e.extDirty = true
}

func (e *ImpExt) GetPrebid() *ExtImpPrebid {
	if e.prebid == nil {
		return nil
	}
	prebid := *e.prebid
	return &prebid
}

// GetOrCreatePrebid returns ext.prebid, creating an empty one when absent.
func (e *ImpExt) GetOrCreatePrebid() *ExtImpPrebid {
	if e.prebid == nil {
		return &ExtImpPrebid{}
	}
	return e.GetPrebid()
}

func (e *ImpExt) SetPrebid(prebid *ExtImpPrebid) {
	e.prebid = prebid
	e.prebidDirty = true
}
