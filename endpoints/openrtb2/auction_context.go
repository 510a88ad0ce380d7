package openrtb2

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/prebid/prebid-request-core/account"
	"github.com/prebid/prebid-request-core/amp"
	"github.com/prebid/prebid-request-core/errortypes"
	"github.com/prebid/prebid-request-core/metrics"
	"github.com/prebid/prebid-request-core/openrtb_ext"
	"github.com/prebid/prebid-request-core/privacy"
	"github.com/prebid/prebid-request-core/util/httputil"
)

// EndpointKind names the entry point a request came in through.
type EndpointKind string

const (
	KindAuction EndpointKind = "auction"
	KindAMP     EndpointKind = "amp"
	KindVideo   EndpointKind = "video"
	KindGet     EndpointKind = "get"
)

// endpointSettings are the per entry point differences of the assembly pipeline.
type endpointSettings struct {
	// storedIDParams are the query parameters naming the stored request, highest precedence first.
	storedIDParams []string
	// storedRequired rejects requests which do not resolve a stored request.
	storedRequired bool
	// maxImps caps the impression count. 0 means unlimited.
	maxImps     int
	amp         bool
	requestType metrics.RequestType
	dataType    metrics.StoredDataType
}

var endpointSettingsTable = map[EndpointKind]endpointSettings{
	KindAuction: {
		requestType: metrics.ReqTypeORTB2Web,
		dataType:    metrics.RequestDataType,
	},
	KindAMP: {
		storedIDParams: []string{"tag_id"},
		storedRequired: true,
		maxImps:        1,
		amp:            true,
		requestType:    metrics.ReqTypeAMP,
		dataType:       metrics.AMPDataType,
	},
	KindVideo: {
		maxImps:     1,
		requestType: metrics.ReqTypeVideo,
		dataType:    metrics.VideoDataType,
	},
	KindGet: {
		storedIDParams: []string{"srid", "tag_id"},
		storedRequired: true,
		maxImps:        1,
		requestType:    metrics.ReqTypeGet,
		dataType:       metrics.RequestDataType,
	},
}

// RequestDescriptor is the transport input of a request, captured once when it arrives.
type RequestDescriptor struct {
	Body       []byte
	Query      url.Values
	Header     http.Header
	RemoteAddr string
	Secure     bool
}

// NewRequestDescriptor reads the HTTP request. Bodies larger than maxSize are rejected.
func NewRequestDescriptor(r *http.Request, maxSize int64) (RequestDescriptor, error) {
	desc := RequestDescriptor{
		Query:      r.URL.Query(),
		Header:     r.Header,
		RemoteAddr: r.RemoteAddr,
		Secure:     httputil.IsSecure(r),
	}
	if r.Body == nil || r.Method == http.MethodGet {
		return desc, nil
	}

	lr := &io.LimitedReader{R: r.Body, N: maxSize + 1}
	if maxSize <= 0 {
		lr.N = 1<<63 - 1
	}
	body, err := io.ReadAll(lr)
	if err != nil {
		return desc, &errortypes.BadInput{Message: fmt.Sprintf("reading request body: %v", err)}
	}
	if maxSize > 0 && int64(len(body)) > maxSize {
		return desc, &errortypes.BadInput{Message: fmt.Sprintf("request size exceeded max size of %d bytes.", maxSize)}
	}
	desc.Body = body
	return desc, nil
}

// requestInput is what the parse step extracted from the transport, before any I/O happened.
type requestInput struct {
	desc RequestDescriptor
	// partial is the caller supplied request which is merged over the stored template.
	partial         json.RawMessage
	storedID        string
	storedAccount   string
	explicitAccount string
	consent         privacy.ConsentParams
	debug           bool
	ampParams       *amp.Params
	getParams       *getParams
	video           *openrtb_ext.BidRequestVideo
	podErrors       []PodError
}

// AuctionContext is the outcome of the assembly pipeline. Steps never modify the context they are
// given; each returns a derived copy.
type AuctionContext struct {
	Kind      EndpointKind
	Request   *openrtb_ext.RequestWrapper
	Privacy   privacy.Context
	Account   *account.Context
	StartTime time.Time
	// Timeout is the budget left to the auction after the safety margin.
	Timeout  time.Duration
	Deadline time.Time
	Debug    bool
	Warnings []error

	input *requestInput
}

func (ac *AuctionContext) withInput(input *requestInput) *AuctionContext {
	next := *ac
	next.input = input
	return &next
}

func (ac *AuctionContext) withRequest(req *openrtb_ext.RequestWrapper) *AuctionContext {
	next := *ac
	next.Request = req
	return &next
}

func (ac *AuctionContext) withPrivacy(p privacy.Context) *AuctionContext {
	next := *ac
	next.Privacy = p
	return &next
}

func (ac *AuctionContext) withAccount(acct *account.Context) *AuctionContext {
	next := *ac
	next.Account = acct
	return &next
}

func (ac *AuctionContext) withBudget(timeout time.Duration) *AuctionContext {
	next := *ac
	next.Timeout = timeout
	next.Deadline = ac.StartTime.Add(timeout)
	return &next
}

// withWarnings appends to a fresh slice so earlier contexts keep their own list.
func (ac *AuctionContext) withWarnings(warnings []error) *AuctionContext {
	if len(warnings) == 0 {
		return ac
	}
	next := *ac
	next.Warnings = make([]error, 0, len(ac.Warnings)+len(warnings))
	next.Warnings = append(next.Warnings, ac.Warnings...)
	next.Warnings = append(next.Warnings, warnings...)
	return &next
}
