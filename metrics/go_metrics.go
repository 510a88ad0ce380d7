package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/rcrowley/go-metrics"
)

// Metrics is the go-metrics implementation of the MetricsEngine interface
type Metrics struct {
	MetricsRegistry            metrics.Registry
	ConnectionCounter          metrics.Counter
	ConnectionAcceptErrorMeter metrics.Meter
	ConnectionCloseErrorMeter  metrics.Meter
	ImpMeter                   metrics.Meter
	SafariRequestMeter         metrics.Meter
	RequestTimer               metrics.Timer
	RequestStatuses            map[RequestType]map[RequestStatus]metrics.Meter
	DemandMeters               map[DemandSource]metrics.Meter

	ImpsTypeBanner metrics.Meter
	ImpsTypeVideo  metrics.Meter
	ImpsTypeAudio  metrics.Meter
	ImpsTypeNative metrics.Meter

	ImpsTruncatedMeter map[RequestType]metrics.Meter

	StoredReqCacheMeter map[CacheResult]metrics.Meter
	StoredImpCacheMeter map[CacheResult]metrics.Meter
	AccountCacheMeter   map[CacheResult]metrics.Meter

	StoredDataFetchTimer map[StoredDataType]map[StoredDataFetchType]metrics.Timer
	StoredDataErrorMeter map[StoredDataType]map[StoredDataError]metrics.Meter

	PrivacyCCPARequest       metrics.Meter
	PrivacyCCPARequestOptOut metrics.Meter
	PrivacyCOPPARequest      metrics.Meter
	PrivacyGDPRRequest       metrics.Meter
	PrivacyGPPRequest        metrics.Meter
	PrivacyLMTRequest        metrics.Meter
	PrivacyTCFRequestVersion map[TCFVersionValue]metrics.Meter

	// per account request meters are created lazily, guarded by accountMetricsRWMutex
	accountMetrics        map[string]metrics.Meter
	accountMetricsRWMutex sync.RWMutex
	recordAccounts        bool
}

// NewBlankMetrics creates a new Metrics object with all blank metrics object. This may also be useful for
// testing routines to ensure that no metrics are written anywhere.
func NewBlankMetrics(registry metrics.Registry) *Metrics {
	blankMeter := &metrics.NilMeter{}
	newMetrics := &Metrics{
		MetricsRegistry:            registry,
		ConnectionCounter:          metrics.NilCounter{},
		ConnectionAcceptErrorMeter: blankMeter,
		ConnectionCloseErrorMeter:  blankMeter,
		ImpMeter:                   blankMeter,
		SafariRequestMeter:         blankMeter,
		RequestTimer:               &metrics.NilTimer{},
		RequestStatuses:            make(map[RequestType]map[RequestStatus]metrics.Meter),
		DemandMeters:               make(map[DemandSource]metrics.Meter),

		ImpsTypeBanner: blankMeter,
		ImpsTypeVideo:  blankMeter,
		ImpsTypeAudio:  blankMeter,
		ImpsTypeNative: blankMeter,

		ImpsTruncatedMeter: make(map[RequestType]metrics.Meter),

		StoredReqCacheMeter: make(map[CacheResult]metrics.Meter),
		StoredImpCacheMeter: make(map[CacheResult]metrics.Meter),
		AccountCacheMeter:   make(map[CacheResult]metrics.Meter),

		StoredDataFetchTimer: make(map[StoredDataType]map[StoredDataFetchType]metrics.Timer),
		StoredDataErrorMeter: make(map[StoredDataType]map[StoredDataError]metrics.Meter),

		PrivacyCCPARequest:       blankMeter,
		PrivacyCCPARequestOptOut: blankMeter,
		PrivacyCOPPARequest:      blankMeter,
		PrivacyGDPRRequest:       blankMeter,
		PrivacyGPPRequest:        blankMeter,
		PrivacyLMTRequest:        blankMeter,
		PrivacyTCFRequestVersion: make(map[TCFVersionValue]metrics.Meter, len(TCFVersions())),

		accountMetrics: make(map[string]metrics.Meter),
	}

	for _, t := range RequestTypes() {
		newMetrics.RequestStatuses[t] = make(map[RequestStatus]metrics.Meter)
		for _, s := range RequestStatuses() {
			newMetrics.RequestStatuses[t][s] = blankMeter
		}
		newMetrics.ImpsTruncatedMeter[t] = blankMeter
	}

	for _, d := range DemandTypes() {
		newMetrics.DemandMeters[d] = blankMeter
	}

	for _, c := range CacheResults() {
		newMetrics.StoredReqCacheMeter[c] = blankMeter
		newMetrics.StoredImpCacheMeter[c] = blankMeter
		newMetrics.AccountCacheMeter[c] = blankMeter
	}

	for _, dt := range StoredDataTypes() {
		newMetrics.StoredDataFetchTimer[dt] = make(map[StoredDataFetchType]metrics.Timer)
		newMetrics.StoredDataErrorMeter[dt] = make(map[StoredDataError]metrics.Meter)
		for _, ft := range StoredDataFetchTypes() {
			newMetrics.StoredDataFetchTimer[dt][ft] = &metrics.NilTimer{}
		}
		for _, e := range StoredDataErrors() {
			newMetrics.StoredDataErrorMeter[dt][e] = blankMeter
		}
	}

	for _, v := range TCFVersions() {
		newMetrics.PrivacyTCFRequestVersion[v] = blankMeter
	}

	return newMetrics
}

// NewMetrics creates a new Metrics object with needed metrics defined. When recordAccounts is set a
// request meter is kept for every publisher seen.
func NewMetrics(registry metrics.Registry, recordAccounts bool) *Metrics {
	newMetrics := NewBlankMetrics(registry)
	newMetrics.recordAccounts = recordAccounts
	newMetrics.ConnectionCounter = metrics.GetOrRegisterCounter("active_connections", registry)
	newMetrics.ConnectionAcceptErrorMeter = metrics.GetOrRegisterMeter("connection_accept_errors", registry)
	newMetrics.ConnectionCloseErrorMeter = metrics.GetOrRegisterMeter("connection_close_errors", registry)
	newMetrics.ImpMeter = metrics.GetOrRegisterMeter("imps_requested", registry)
	newMetrics.SafariRequestMeter = metrics.GetOrRegisterMeter("safari_requests", registry)
	newMetrics.RequestTimer = metrics.GetOrRegisterTimer("request_time", registry)

	newMetrics.ImpsTypeBanner = metrics.GetOrRegisterMeter("imp_banner", registry)
	newMetrics.ImpsTypeVideo = metrics.GetOrRegisterMeter("imp_video", registry)
	newMetrics.ImpsTypeAudio = metrics.GetOrRegisterMeter("imp_audio", registry)
	newMetrics.ImpsTypeNative = metrics.GetOrRegisterMeter("imp_native", registry)

	for typ, statusMap := range newMetrics.RequestStatuses {
		for stat := range statusMap {
			statusMap[stat] = metrics.GetOrRegisterMeter("requests."+string(stat)+"."+string(typ), registry)
		}
		newMetrics.ImpsTruncatedMeter[typ] = metrics.GetOrRegisterMeter("imps_truncated."+string(typ), registry)
	}

	for d := range newMetrics.DemandMeters {
		newMetrics.DemandMeters[d] = metrics.GetOrRegisterMeter("requests_by_demand."+string(d), registry)
	}

	for _, c := range CacheResults() {
		newMetrics.StoredReqCacheMeter[c] = metrics.GetOrRegisterMeter(fmt.Sprintf("stored_request_cache_%s", string(c)), registry)
		newMetrics.StoredImpCacheMeter[c] = metrics.GetOrRegisterMeter(fmt.Sprintf("stored_imp_cache_%s", string(c)), registry)
		newMetrics.AccountCacheMeter[c] = metrics.GetOrRegisterMeter(fmt.Sprintf("account_cache_%s", string(c)), registry)
	}

	for _, dt := range StoredDataTypes() {
		for _, ft := range StoredDataFetchTypes() {
			newMetrics.StoredDataFetchTimer[dt][ft] = metrics.GetOrRegisterTimer(fmt.Sprintf("stored_%s_fetch_time.%s", string(dt), string(ft)), registry)
		}
		for _, e := range StoredDataErrors() {
			newMetrics.StoredDataErrorMeter[dt][e] = metrics.GetOrRegisterMeter(fmt.Sprintf("stored_%s_error.%s", string(dt), string(e)), registry)
		}
	}

	newMetrics.PrivacyCCPARequest = metrics.GetOrRegisterMeter("privacy.request.ccpa.specified", registry)
	newMetrics.PrivacyCCPARequestOptOut = metrics.GetOrRegisterMeter("privacy.request.ccpa.opt-out", registry)
	newMetrics.PrivacyCOPPARequest = metrics.GetOrRegisterMeter("privacy.request.coppa", registry)
	newMetrics.PrivacyGDPRRequest = metrics.GetOrRegisterMeter("privacy.request.gdpr", registry)
	newMetrics.PrivacyGPPRequest = metrics.GetOrRegisterMeter("privacy.request.gpp", registry)
	newMetrics.PrivacyLMTRequest = metrics.GetOrRegisterMeter("privacy.request.lmt", registry)
	for _, version := range TCFVersions() {
		newMetrics.PrivacyTCFRequestVersion[version] = metrics.GetOrRegisterMeter(fmt.Sprintf("privacy.request.tcf.%s", string(version)), registry)
	}

	return newMetrics
}

func (me *Metrics) getAccountMetrics(id string) metrics.Meter {
	me.accountMetricsRWMutex.RLock()
	am, ok := me.accountMetrics[id]
	me.accountMetricsRWMutex.RUnlock()
	if ok {
		return am
	}

	me.accountMetricsRWMutex.Lock()
	defer me.accountMetricsRWMutex.Unlock()
	// Made sure to use the write lock, so an entry can't have been added since the read lock was released.
	if am, ok = me.accountMetrics[id]; ok {
		return am
	}
	am = metrics.GetOrRegisterMeter(fmt.Sprintf("account.%s.requests", id), me.MetricsRegistry)
	me.accountMetrics[id] = am
	return am
}

// RecordConnectionAccept implements a part of the MetricsEngine interface
func (me *Metrics) RecordConnectionAccept(success bool) {
	if success {
		me.ConnectionCounter.Inc(1)
	} else {
		me.ConnectionAcceptErrorMeter.Mark(1)
	}
}

// RecordConnectionClose implements a part of the MetricsEngine interface
func (me *Metrics) RecordConnectionClose(success bool) {
	if success {
		me.ConnectionCounter.Dec(1)
	} else {
		me.ConnectionCloseErrorMeter.Mark(1)
	}
}

// RecordRequest implements a part of the MetricsEngine interface
func (me *Metrics) RecordRequest(labels Labels) {
	if statuses, ok := me.RequestStatuses[labels.RType]; ok {
		if meter, ok := statuses[labels.RequestStatus]; ok {
			meter.Mark(1)
		}
	}
	if meter, ok := me.DemandMeters[labels.Source]; ok {
		meter.Mark(1)
	}
	if labels.Browser == BrowserSafari {
		me.SafariRequestMeter.Mark(1)
	}

	if !me.recordAccounts || labels.PubID == PublisherUnknown || labels.PubID == "" {
		return
	}
	me.getAccountMetrics(labels.PubID).Mark(1)
}

// RecordImps implements a part of the MetricsEngine interface
func (me *Metrics) RecordImps(labels ImpLabels) {
	me.ImpMeter.Mark(1)
	if labels.BannerImps {
		me.ImpsTypeBanner.Mark(1)
	}
	if labels.VideoImps {
		me.ImpsTypeVideo.Mark(1)
	}
	if labels.AudioImps {
		me.ImpsTypeAudio.Mark(1)
	}
	if labels.NativeImps {
		me.ImpsTypeNative.Mark(1)
	}
}

// RecordRequestTime implements a part of the MetricsEngine interface. Only successful requests are timed.
func (me *Metrics) RecordRequestTime(labels Labels, length time.Duration) {
	if labels.RequestStatus == RequestStatusOK {
		me.RequestTimer.Update(length)
	}
}

// RecordStoredReqCacheResult implements a part of the MetricsEngine interface
func (me *Metrics) RecordStoredReqCacheResult(cacheResult CacheResult, inc int) {
	me.StoredReqCacheMeter[cacheResult].Mark(int64(inc))
}

// RecordStoredImpCacheResult implements a part of the MetricsEngine interface
func (me *Metrics) RecordStoredImpCacheResult(cacheResult CacheResult, inc int) {
	me.StoredImpCacheMeter[cacheResult].Mark(int64(inc))
}

// RecordAccountCacheResult implements a part of the MetricsEngine interface
func (me *Metrics) RecordAccountCacheResult(cacheResult CacheResult, inc int) {
	me.AccountCacheMeter[cacheResult].Mark(int64(inc))
}

// RecordStoredDataFetchTime implements a part of the MetricsEngine interface
func (me *Metrics) RecordStoredDataFetchTime(labels StoredDataLabels, length time.Duration) {
	if timers, ok := me.StoredDataFetchTimer[labels.DataType]; ok {
		if timer, ok := timers[labels.DataFetchType]; ok {
			timer.Update(length)
		}
	}
}

// RecordStoredDataError implements a part of the MetricsEngine interface
func (me *Metrics) RecordStoredDataError(labels StoredDataLabels) {
	if meters, ok := me.StoredDataErrorMeter[labels.DataType]; ok {
		if meter, ok := meters[labels.Error]; ok {
			meter.Mark(1)
		}
	}
}

// RecordRequestPrivacy implements a part of the MetricsEngine interface
func (me *Metrics) RecordRequestPrivacy(privacy PrivacyLabels) {
	if privacy.CCPAProvided {
		me.PrivacyCCPARequest.Mark(1)
		if privacy.CCPAEnforced {
			me.PrivacyCCPARequestOptOut.Mark(1)
		}
	}

	if privacy.COPPAEnforced {
		me.PrivacyCOPPARequest.Mark(1)
	}

	if privacy.GDPREnforced {
		me.PrivacyGDPRRequest.Mark(1)
		if metric, ok := me.PrivacyTCFRequestVersion[privacy.GDPRTCFVersion]; ok {
			metric.Mark(1)
		} else {
			me.PrivacyTCFRequestVersion[TCFVersionErr].Mark(1)
		}
	}

	if privacy.GPPProvided {
		me.PrivacyGPPRequest.Mark(1)
	}

	if privacy.LMTEnforced {
		me.PrivacyLMTRequest.Mark(1)
	}
}

// RecordImpsTruncated implements a part of the MetricsEngine interface
func (me *Metrics) RecordImpsTruncated(requestType RequestType, dropped int) {
	if meter, ok := me.ImpsTruncatedMeter[requestType]; ok {
		meter.Mark(int64(dropped))
	}
}
