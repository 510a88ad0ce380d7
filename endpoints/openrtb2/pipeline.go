package openrtb2

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/prebid/prebid-request-core/account"
	"github.com/prebid/prebid-request-core/errortypes"
	"github.com/prebid/prebid-request-core/ortb"
)

// step is one stage of the assembly pipeline. It derives a new context from ac and returns it with
// the errors it found. A fatal error stops the pipeline.
type step struct {
	name string
	run  func(ctx context.Context, ac *AuctionContext) (*AuctionContext, []error)
}

type stepResult struct {
	ac   *AuctionContext
	errs []error
}

// stepPool runs pipeline steps off the request goroutine. A step which finds the queue full gets a
// goroutine of its own rather than waiting for a worker.
type stepPool struct {
	tasks chan func()
}

func newStepPool(workers, queue int) *stepPool {
	if workers <= 0 {
		workers = 1
	}
	p := &stepPool{tasks: make(chan func(), queue)}
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

func (p *stepPool) work() {
	for task := range p.tasks {
		task()
	}
}

func (p *stepPool) submit(task func()) {
	select {
	case p.tasks <- task:
	default:
		go task()
	}
}

// awaitStep runs s on the pool and waits for its result or for the request deadline, whichever
// comes first. A step still running at the deadline is abandoned; its result is discarded.
func (deps *endpointDeps) awaitStep(ctx context.Context, s step, ac *AuctionContext) (*AuctionContext, []error) {
	stepCtx, cancel := context.WithDeadline(ctx, ac.Deadline)
	defer cancel()

	if stepCtx.Err() != nil {
		return ac, []error{timeoutError(s.name, ac)}
	}

	done := make(chan stepResult, 1)
	deps.pool.submit(func() {
		defer func() {
			if r := recover(); r != nil {
				glog.Errorf("pipeline step %s panicked: %v", s.name, r)
				done <- stepResult{ac: ac, errs: []error{fmt.Errorf("pipeline step %s failed", s.name)}}
			}
		}()
		next, errs := s.run(stepCtx, ac)
		done <- stepResult{ac: next, errs: errs}
	})

	select {
	case res := <-done:
		if res.ac == nil {
			res.ac = ac
		}
		return res.ac, res.errs
	case <-stepCtx.Done():
		return ac, []error{timeoutError(s.name, ac)}
	}
}

func timeoutError(stepName string, ac *AuctionContext) error {
	return &errortypes.Timeout{
		Message: fmt.Sprintf("request timed out during %s after %d ms", stepName, ac.Timeout.Milliseconds()),
	}
}

// runPipeline assembles the request of the given kind. The returned context is complete only when
// the errors hold no fatal error; warnings are also collected on the context.
func (deps *endpointDeps) runPipeline(ctx context.Context, kind EndpointKind, desc RequestDescriptor) (*AuctionContext, []error) {
	ac := &AuctionContext{
		Kind:      kind,
		StartTime: deps.clock.Now(),
		input:     &requestInput{desc: desc},
	}
	ac = ac.withBudget(deps.provisionalBudget(kind, desc))

	for _, s := range deps.steps(kind) {
		next, errs := deps.awaitStep(ctx, s, ac)
		if fatal, warnings := errortypes.Split(errs); len(fatal) > 0 {
			return next.withWarnings(warnings), fatal
		}
		ac = next.withWarnings(errs)
	}

	if err := ac.Request.RebuildRequest(); err != nil {
		return ac, []error{err}
	}
	return ac, ac.Warnings
}

// steps lists the pipeline of an entry point. Only parsing, stored template resolution and explicit
// overrides differ between kinds.
func (deps *endpointDeps) steps(kind EndpointKind) []step {
	var parse, stored, override step
	switch kind {
	case KindAMP:
		parse = step{"amp parse", deps.parseAmpStep}
		stored = step{"stored request", deps.storedTemplateStep}
		override = step{"amp overrides", deps.ampOverrideStep}
	case KindVideo:
		parse = step{"video parse", deps.parseVideoStep}
		stored = step{"stored video request", deps.videoStoredStep}
		override = step{"video overrides", deps.videoOverrideStep}
	case KindGet:
		parse = step{"get parse", deps.parseGetStep}
		stored = step{"stored request", deps.storedTemplateStep}
		override = step{"get overrides", deps.getOverrideStep}
	default:
		parse = step{"auction parse", deps.parseAuctionStep}
		stored = step{"stored request", deps.storedTemplateStep}
		override = step{"auction overrides", noOverrides}
	}

	return []step{
		parse,
		stored,
		override,
		{"implicit params", deps.implicitParamsStep},
		{"privacy", deps.privacyStep},
		{"account", deps.accountStep},
		{"account enrichment", accountEnrichmentStep},
		{"validation", validationStep},
	}
}

func noOverrides(_ context.Context, ac *AuctionContext) (*AuctionContext, []error) {
	return ac, nil
}

// provisionalBudget bounds the steps which run before the merged tmax is known. It is computed from the
// tmax the caller sent, if any.
func (deps *endpointDeps) provisionalBudget(kind EndpointKind, desc RequestDescriptor) time.Duration {
	var requested time.Duration
	switch kind {
	case KindAuction, KindVideo:
		if tmax := tmaxFromBody(desc.Body); tmax > 0 {
			requested = time.Duration(tmax) * time.Millisecond
		}
	default:
		if timeout, err := parseTimeoutParam(desc.Query); err == nil && timeout != nil {
			requested = time.Duration(*timeout) * time.Millisecond
		}
	}
	return deps.budget(requested)
}

// budget limits the requested tmax by the host timeouts and takes off the safety margin. A request
// with no tmax and no configured default is bounded by maxPipelineBudget.
func (deps *endpointDeps) budget(requested time.Duration) time.Duration {
	limited := deps.cfg.AuctionTimeouts.LimitAuctionTimeout(requested)
	if limited <= 0 {
		return maxPipelineBudget
	}
	return deps.cfg.AuctionTimeouts.Budget(limited)
}

// maxPipelineBudget bounds requests which neither ask for a tmax nor get a configured default.
const maxPipelineBudget = 30 * time.Second

func accountEnrichmentStep(_ context.Context, ac *AuctionContext) (*AuctionContext, []error) {
	if err := account.EnrichRequest(ac.Request, ac.Account); err != nil {
		return ac, []error{&errortypes.BadInput{Message: err.Error()}}
	}
	return ac, nil
}

func validationStep(_ context.Context, ac *AuctionContext) (*AuctionContext, []error) {
	if err := ac.Request.RebuildRequest(); err != nil {
		return ac, []error{&errortypes.BadInput{Message: err.Error()}}
	}
	return ac, ortb.ValidateRequest(ac.Request)
}
