// Package flow implements the report wizard state machine: five steps from
// the hero address prompt to the results page, with the valuation and CRM
// calls fired at the transitions the funnel defines.
package flow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/truepricereport/leadgen/internal/valuation"
	"github.com/truepricereport/leadgen/pkg/brivity"
	"github.com/truepricereport/leadgen/pkg/places"
)

// Step identifies a wizard state.
type Step string

// Wizard states, in forward order.
const (
	StepHero    Step = "hero"
	StepAddress Step = "step1"
	StepBasics  Step = "step2"
	StepContact Step = "step3"
	StepResults Step = "results"
)

// CTA identifies a results-page call to action. Each is one-shot per session.
type CTA string

// Results-page calls to action.
const (
	CTACashOffer    CTA = "cash_offer"
	CTARefinance    CTA = "refinance"
	CTAContactAgent CTA = "contact_agent"
)

func (c CTA) message() string {
	switch c {
	case CTACashOffer:
		return "I am interested in getting a Cash Offer."
	case CTARefinance:
		return "I am interested in Refinancing."
	case CTAContactAgent:
		return "I am interested in contacting a Real Estate Agent."
	}
	return ""
}

// Valuer resolves an address to a valuation estimate.
type Valuer interface {
	Estimate(ctx context.Context, streetAddress, zipcode string) (*valuation.Estimate, error)
}

// LeadSink forwards lead payloads to the CRM.
type LeadSink interface {
	CreateLead(ctx context.Context, payload map[string]any) (*brivity.LeadResponse, error)
}

// Option configures the Controller.
type Option func(*Controller)

// WithPromptDelay sets the delay before the manual-valuation prompt appears
// on the results page when no estimate was obtained.
func WithPromptDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.promptDelay = d
		}
	}
}

// WithOnChange registers a callback invoked after every state change,
// including asynchronous patches. It is called without the controller lock.
func WithOnChange(fn func()) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

// WithCountry sets the default country for free-text addresses.
func WithCountry(country string) Option {
	return func(c *Controller) {
		if country != "" {
			c.country = country
		}
	}
}

// WithImageURLs enables street-view image URLs on address selection.
func WithImageURLs(b *places.ImageURLs) Option {
	return func(c *Controller) {
		c.images = b
	}
}

// Controller is the wizard state machine. All state lives in memory for the
// duration of one session; StartOver discards everything. Methods are safe
// for concurrent use: asynchronous completions patch state under the same
// lock the accessors take.
type Controller struct {
	mu        sync.Mutex
	gen       int // bumped by StartOver so stale completions no-op
	step      Step
	form      FormData
	lead      *LeadInfo
	descParts []string
	ctaSent   map[CTA]bool

	promptTimer   *time.Timer
	promptVisible bool

	sessionID string
	valuer    Valuer
	leads     LeadSink

	promptDelay time.Duration
	country     string
	images      *places.ImageURLs
	onChange    func()

	inflight sync.WaitGroup
}

// NewController creates a Controller in the hero state.
func NewController(valuer Valuer, leads LeadSink, opts ...Option) *Controller {
	c := &Controller{
		step:        StepHero,
		valuer:      valuer,
		leads:       leads,
		ctaSent:     make(map[CTA]bool),
		promptDelay: 20 * time.Second,
		country:     "USA",
		sessionID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.form = newForm(c.country)
	return c
}

// Step returns the current wizard state.
func (c *Controller) Step() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// Form returns a copy of the accumulated form data.
func (c *Controller) Form() FormData {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.form.clone()
}

// Lead returns the recorded lead info, or nil before a successful submission.
func (c *Controller) Lead() *LeadInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lead == nil {
		return nil
	}
	l := *c.lead
	return &l
}

// PromptVisible reports whether the manual-valuation prompt is showing.
func (c *Controller) PromptVisible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.promptVisible
}

// SessionID returns the session correlation id.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Wait blocks until all background calls issued so far have completed.
// Useful in tests and on shutdown; the wizard itself never waits on them.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// SubmitAddress moves hero → step1, populating the address fields from the
// resolved place details, or falling back to the raw free-text address.
// Details travel as an explicit parameter, never through shared globals.
func (c *Controller) SubmitAddress(address string, details *places.Details) error {
	c.mu.Lock()
	if c.step != StepHero {
		c.mu.Unlock()
		return eris.Errorf("flow: submit address in state %s", c.step)
	}

	if details != nil {
		street := details.StreetAddress()
		if street == "" {
			street = address
		}
		country := details.Country
		if country == "" {
			country = c.country
		}
		if details.FullAddress != "" {
			address = details.FullAddress
		}
		c.form.Step1 = AddressDetails{
			StreetAddress: street,
			UnitNumber:    details.UnitNumber,
			City:          details.City,
			State:         details.State,
			Country:       country,
			Zipcode:       details.Zipcode,
		}
		c.form.Latitude = details.Latitude
		c.form.Longitude = details.Longitude
		if c.images != nil && details.Latitude != nil && details.Longitude != nil {
			c.form.StreetViewURL = c.images.StreetView(*details.Latitude, *details.Longitude)
		}
	} else {
		c.form.Step1 = AddressDetails{
			StreetAddress: address,
			Country:       c.country,
		}
	}

	c.form.SelectedAddress = address
	c.step = StepAddress
	c.mu.Unlock()

	c.notify()
	return nil
}

// SetAddress updates the editable step1 fields and recomputes the displayed
// address. Estimate fields and the valuation flag are preserved.
func (c *Controller) SetAddress(d AddressDetails) error {
	c.mu.Lock()
	if c.step != StepAddress {
		c.mu.Unlock()
		return eris.Errorf("flow: set address in state %s", c.step)
	}

	d.PriceEstimate = c.form.Step1.PriceEstimate
	d.LowEstimate = c.form.Step1.LowEstimate
	d.HighEstimate = c.form.Step1.HighEstimate
	d.ValuationAvailable = c.form.Step1.ValuationAvailable
	c.form.Step1 = d
	c.form.SelectedAddress = strings.TrimSpace(fmt.Sprintf("%s, %s, %s %s",
		d.StreetAddress, d.City, d.State, d.Zipcode))
	c.mu.Unlock()

	c.notify()
	return nil
}

// ConfirmAddress moves step1 → step2 immediately and fires the valuation
// lookup and the initial lead capture in the background. Step2 renders
// before either resolves; their completions patch the form afterwards.
// Each call fires the background pair once; there is no deduplication.
func (c *Controller) ConfirmAddress(ctx context.Context) error {
	c.mu.Lock()
	if c.step != StepAddress {
		c.mu.Unlock()
		return eris.Errorf("flow: confirm address in state %s", c.step)
	}

	gen := c.gen
	street := c.form.Step1.StreetAddress
	zip := c.form.Step1.Zipcode
	capture := c.addressPayloadLocked()
	session := c.sessionID
	c.step = StepBasics
	c.mu.Unlock()

	c.notify()

	// Results are discarded if the session restarted in the meantime; that
	// is a no-op, not an error.
	bg := context.WithoutCancel(ctx)
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()

		g, gctx := errgroup.WithContext(bg)
		g.Go(func() error {
			est, err := c.valuer.Estimate(gctx, street, zip)
			c.applyValuation(gen, est, err)
			return nil
		})
		g.Go(func() error {
			resp, err := c.leads.CreateLead(gctx, capture)
			if err != nil {
				zap.L().Warn("initial lead capture failed",
					zap.String("session", session),
					zap.Error(err),
				)
				return nil
			}
			zap.L().Info("initial lead captured",
				zap.String("session", session),
				zap.Int("status", resp.StatusCode),
			)
			return nil
		})
		_ = g.Wait()
	}()

	return nil
}

// applyValuation patches step1 with the valuation outcome. The tri-state
// flag distinguishes "not yet known" (nil) from "confirmed unavailable"
// (false); a transport error leaves it nil.
func (c *Controller) applyValuation(gen int, est *valuation.Estimate, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}

	switch {
	case err != nil:
		var le *valuation.LookupError
		if eris.As(err, &le) {
			unavailable := false
			c.form.Step1.ValuationAvailable = &unavailable
			zap.L().Info("valuation not found",
				zap.String("session", c.sessionID),
				zap.Int("status", le.StatusCode),
			)
		} else {
			zap.L().Warn("valuation lookup failed",
				zap.String("session", c.sessionID),
				zap.Error(err),
			)
		}
	case est == nil:
		// A Valuer returning neither an estimate nor an error is treated
		// like a transport failure: the flag stays unknown.
		zap.L().Warn("valuation returned no result", zap.String("session", c.sessionID))
	case est.Available:
		available := true
		c.form.Step1.ValuationAvailable = &available
		c.form.Step1.PriceEstimate = est.PriceEstimate
		c.form.Step1.LowEstimate = est.LowEstimate
		c.form.Step1.HighEstimate = est.HighEstimate
		c.form.UnitNumbers = append([]string(nil), est.UnitNumbers...)
		// An estimate arriving after the results page rendered cancels the
		// pending manual-valuation prompt.
		if c.promptTimer != nil {
			c.promptTimer.Stop()
			c.promptTimer = nil
		}
		c.promptVisible = false
	default:
		unavailable := false
		c.form.Step1.ValuationAvailable = &unavailable
		c.form.UnitNumbers = append([]string(nil), est.UnitNumbers...)
	}
	c.mu.Unlock()

	c.notify()
}

// SetHomeBasics updates the step2 fields.
func (c *Controller) SetHomeBasics(b HomeBasics) error {
	c.mu.Lock()
	if c.step != StepBasics {
		c.mu.Unlock()
		return eris.Errorf("flow: set home basics in state %s", c.step)
	}
	c.form.Step2 = b
	c.mu.Unlock()

	c.notify()
	return nil
}

// Next moves step2 → step3. Beds and baths are required.
func (c *Controller) Next() error {
	c.mu.Lock()
	if c.step != StepBasics {
		c.mu.Unlock()
		return eris.Errorf("flow: next in state %s", c.step)
	}
	if c.form.Step2.Beds == "" || c.form.Step2.Baths == "" {
		c.mu.Unlock()
		return eris.New("flow: beds and baths are required")
	}
	c.step = StepContact
	c.mu.Unlock()

	c.notify()
	return nil
}

// Previous moves one step back: step2 → step1 or step3 → step2.
func (c *Controller) Previous() error {
	c.mu.Lock()
	switch c.step {
	case StepBasics:
		c.step = StepAddress
	case StepContact:
		c.step = StepBasics
	default:
		step := c.step
		c.mu.Unlock()
		return eris.Errorf("flow: previous in state %s", step)
	}
	c.mu.Unlock()

	c.notify()
	return nil
}

// SetContact updates the step3 fields.
func (c *Controller) SetContact(ct Contact) error {
	c.mu.Lock()
	if c.step != StepContact {
		c.mu.Unlock()
		return eris.Errorf("flow: set contact in state %s", c.step)
	}
	c.form.Step3 = ct
	c.mu.Unlock()

	c.notify()
	return nil
}

// Submit sends the complete lead to the CRM. Unlike every other network call
// in the wizard this one blocks: only a 2xx answer moves step3 → results and
// records the LeadInfo. On failure the state stays at step3 and the error is
// returned for a user-driven retry.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.step != StepContact {
		c.mu.Unlock()
		return eris.Errorf("flow: submit in state %s", c.step)
	}
	ct := c.form.Step3
	if ct.FirstName == "" || ct.LastName == "" || ct.Phone == "" || ct.Email == "" {
		c.mu.Unlock()
		return eris.New("flow: first name, last name, phone, and email are required")
	}

	gen := c.gen
	description := fmt.Sprintf("Requested a TruePriceReport for %s.", c.form.SelectedAddress)
	payload := c.addressPayloadLocked()
	payload["first_name"] = ct.FirstName
	payload["last_name"] = ct.LastName
	payload["phone_number"] = ct.Phone
	payload["email"] = ct.Email
	payload["description"] = description
	c.mu.Unlock()

	resp, err := c.leads.CreateLead(ctx, payload)
	if err != nil {
		return eris.Wrap(err, "flow: submit lead")
	}
	if !resp.OK() {
		return eris.Errorf("flow: submit lead: crm status %d: %s", resp.StatusCode, string(resp.Body))
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return nil
	}
	c.step = StepResults
	c.lead = &LeadInfo{Email: ct.Email, InitialDescription: description}
	c.startPromptTimerLocked()
	c.mu.Unlock()

	c.notify()
	zap.L().Info("lead submitted",
		zap.String("session", c.SessionID()),
		zap.Int("status", resp.StatusCode),
	)
	return nil
}

// RequestCTA fires a results-page call to action. Each CTA is one-shot for
// the session; the description update is fire-and-forget.
func (c *Controller) RequestCTA(ctx context.Context, cta CTA) error {
	msg := cta.message()
	if msg == "" {
		return eris.Errorf("flow: unknown call to action %q", cta)
	}

	c.mu.Lock()
	if c.step != StepResults {
		c.mu.Unlock()
		return eris.Errorf("flow: call to action in state %s", c.step)
	}
	if c.ctaSent[cta] {
		c.mu.Unlock()
		return eris.Errorf("flow: call to action %s already sent", cta)
	}
	c.ctaSent[cta] = true
	c.mu.Unlock()

	c.sendDescriptionUpdate(ctx, msg)
	return nil
}

// RequestManualValuation captures free-text intent from the delayed prompt
// and hides it. An empty message falls back to the default.
func (c *Controller) RequestManualValuation(ctx context.Context, msg string) error {
	c.mu.Lock()
	if c.step != StepResults {
		c.mu.Unlock()
		return eris.Errorf("flow: manual valuation request in state %s", c.step)
	}
	if msg == "" {
		msg = "I am interested in a personalized valuation."
	}
	c.promptVisible = false
	c.mu.Unlock()

	c.sendDescriptionUpdate(ctx, msg)
	c.notify()
	return nil
}

// sendDescriptionUpdate appends the part to the lead's description and fires
// an update keyed by the stored email. Append, never replace: every interest
// signal from the session stays on the record.
func (c *Controller) sendDescriptionUpdate(ctx context.Context, part string) {
	c.mu.Lock()
	if c.lead == nil {
		c.mu.Unlock()
		return
	}
	c.descParts = append(c.descParts, part)
	description := strings.Join(append([]string{c.lead.InitialDescription}, c.descParts...), " ")
	payload := map[string]any{
		"email":       c.lead.Email,
		"description": description,
	}
	session := c.sessionID
	c.mu.Unlock()

	bg := context.WithoutCancel(ctx)
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		resp, err := c.leads.CreateLead(bg, payload)
		if err != nil {
			zap.L().Warn("description update failed",
				zap.String("session", session),
				zap.Error(err),
			)
			return
		}
		zap.L().Info("description updated",
			zap.String("session", session),
			zap.Int("status", resp.StatusCode),
		)
	}()
}

// startPromptTimerLocked arms the manual-valuation prompt when the results
// page is entered without a positive estimate. Caller holds the lock.
func (c *Controller) startPromptTimerLocked() {
	flag := c.form.Step1.ValuationAvailable
	if flag != nil && *flag {
		return
	}
	gen := c.gen
	c.promptTimer = time.AfterFunc(c.promptDelay, func() {
		c.mu.Lock()
		if gen != c.gen || c.step != StepResults {
			c.mu.Unlock()
			return
		}
		flag := c.form.Step1.ValuationAvailable
		if flag != nil && *flag {
			c.mu.Unlock()
			return
		}
		c.promptVisible = true
		c.mu.Unlock()
		c.notify()
	})
}

// StartOver discards the whole session, the in-memory analog of a page
// reload. Any in-flight completion for the old session becomes a no-op.
func (c *Controller) StartOver() {
	c.mu.Lock()
	c.gen++
	if c.promptTimer != nil {
		c.promptTimer.Stop()
		c.promptTimer = nil
	}
	c.step = StepHero
	c.form = newForm(c.country)
	c.lead = nil
	c.descParts = nil
	c.ctaSent = make(map[CTA]bool)
	c.promptVisible = false
	c.sessionID = uuid.NewString()
	c.mu.Unlock()

	c.notify()
}

// addressPayloadLocked builds the address portion of a CRM lead payload.
// Caller holds the lock.
func (c *Controller) addressPayloadLocked() map[string]any {
	s1 := c.form.Step1
	payload := map[string]any{
		"street_address": s1.StreetAddress,
		"city":           s1.City,
		"state":          s1.State,
		"zip_code":       s1.Zipcode,
		"country":        s1.Country,
		"source":         "TruePriceReport",
	}
	if s1.UnitNumber != "" {
		payload["unit_number"] = s1.UnitNumber
	}
	return payload
}

func (c *Controller) notify() {
	if c.onChange != nil {
		c.onChange()
	}
}
