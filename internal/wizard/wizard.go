// Package wizard drives the four-step estimator flow: choose a project,
// describe its scope, enter contact details, and confirm.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Simplici0/homebuild/internal/pricing"
	"github.com/Simplici0/homebuild/internal/submission"
)

// Step is a position in the flow.
type Step int

const (
	StepSelectProject Step = iota + 1
	StepEnterDetails
	StepEnterContact
	StepConfirmation
)

func (s Step) String() string {
	switch s {
	case StepSelectProject:
		return "select-project"
	case StepEnterDetails:
		return "enter-details"
	case StepEnterContact:
		return "enter-contact"
	case StepConfirmation:
		return "confirmation"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

var (
	// ErrInvalidTransition is returned for any move the flow does not allow.
	ErrInvalidTransition = errors.New("wizard: invalid step transition")
	// ErrNoProject is returned when details are set before a project is chosen.
	ErrNoProject = errors.New("wizard: no project selected")
	// ErrIncomplete is returned by Submit while contact or address fields fail validation.
	ErrIncomplete = errors.New("wizard: contact information incomplete")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ContactInfo identifies the visitor.
type ContactInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// AddressInfo is the job site.
type AddressInfo struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// Submitter delivers a completed estimate request.
type Submitter interface {
	SubmitEstimate(ctx context.Context, key string, req *submission.EstimateRequest) (*submission.Receipt, error)
}

// Controller holds one visitor's progress. It is not safe for concurrent use.
type Controller struct {
	step    Step
	details pricing.Details
	contact ContactInfo
	address AddressInfo
	key     string

	lastErr      string
	fieldErrors  map[string][]string
	lastEstimate *pricing.Bands

	newKey func() string
	now    func() time.Time
}

// New starts a flow at step 1 with a fresh submission key.
func New() *Controller {
	c := &Controller{
		step:   StepSelectProject,
		newKey: submission.NewKey,
		now:    time.Now,
	}
	c.key = c.newKey()
	return c
}

// Step returns the current step.
func (c *Controller) Step() Step { return c.step }

// Project returns the selected project, or "" when none is chosen.
func (c *Controller) Project() pricing.Project {
	if c.details == nil {
		return ""
	}
	return c.details.Project()
}

// Details returns the scope entered so far; nil without a project.
func (c *Controller) Details() pricing.Details { return c.details }

// Contact returns the visitor's contact details.
func (c *Controller) Contact() ContactInfo { return c.contact }

// Address returns the job site.
func (c *Controller) Address() AddressInfo { return c.address }

// SubmissionKey is the idempotency key the next Submit will use.
func (c *Controller) SubmissionKey() string { return c.key }

// SelectProject chooses the project and advances to the details step.
// Choosing a different project discards the previous project's details;
// contact and address are kept. Re-selecting the current project keeps them.
func (c *Controller) SelectProject(p pricing.Project) error {
	if c.step != StepSelectProject {
		return fmt.Errorf("%w: select project from %s", ErrInvalidTransition, c.step)
	}
	if !p.Valid() {
		return fmt.Errorf("wizard: unknown project %q", p)
	}

	if c.details == nil || c.details.Project() != p {
		empty, err := pricing.Empty(p)
		if err != nil {
			return err
		}
		c.details = empty
	}
	c.step = StepEnterDetails
	c.clearError()
	return nil
}

// SetDetail sets one scope field. A blank value clears it. Keys or values
// the selected project does not accept are rejected and the state is unchanged.
func (c *Controller) SetDetail(key, value string) error {
	return c.SetDetails(map[string]string{key: value})
}

// SetDetails merges several scope fields at once.
func (c *Controller) SetDetails(values map[string]string) error {
	if c.details == nil {
		return ErrNoProject
	}
	if c.step == StepConfirmation {
		return fmt.Errorf("%w: edit details from %s", ErrInvalidTransition, c.step)
	}

	fields := c.details.Fields()
	for k, v := range values {
		if strings.TrimSpace(v) == "" {
			delete(fields, k)
			continue
		}
		fields[k] = v
	}

	next, err := pricing.ParseDetails(c.details.Project(), fields)
	if err != nil {
		return err
	}
	c.details = next
	return nil
}

// SetContact replaces the contact details.
func (c *Controller) SetContact(info ContactInfo) {
	c.contact = info
	c.clearError()
}

// SetAddress replaces the job site.
func (c *Controller) SetAddress(addr AddressInfo) {
	c.address = addr
	c.clearError()
}

// Next moves forward one step. Step 3 can only be left by submitting.
func (c *Controller) Next() error {
	switch c.step {
	case StepSelectProject:
		if c.details == nil {
			return fmt.Errorf("%w: choose a project first", ErrInvalidTransition)
		}
	case StepEnterDetails:
	default:
		return fmt.Errorf("%w: next from %s", ErrInvalidTransition, c.step)
	}
	c.step++
	return nil
}

// Back moves back one step. The first step and the confirmation have no way back.
func (c *Controller) Back() error {
	if c.step != StepEnterDetails && c.step != StepEnterContact {
		return fmt.Errorf("%w: back from %s", ErrInvalidTransition, c.step)
	}
	c.step--
	c.clearError()
	return nil
}

// Estimate recomputes the bands from the current scope. It is nil until a
// project is chosen.
func (c *Controller) Estimate() *pricing.Bands {
	return pricing.Estimate(c.details)
}

// ContactErrors maps each failing contact field to its message.
func (c *Controller) ContactErrors() map[string]string {
	errs := map[string]string{}
	if utf8.RuneCountInString(strings.TrimSpace(c.contact.FirstName)) < 2 {
		errs["firstName"] = "First name must be at least 2 characters"
	}
	if utf8.RuneCountInString(strings.TrimSpace(c.contact.LastName)) < 2 {
		errs["lastName"] = "Last name must be at least 2 characters"
	}
	if !emailPattern.MatchString(c.contact.Email) {
		errs["email"] = "Enter a valid email address"
	}
	if digits(c.contact.Phone) < 10 {
		errs["phone"] = "Phone number must have at least 10 digits"
	}
	return errs
}

// AddressErrors maps each failing address field to its message.
func (c *Controller) AddressErrors() map[string]string {
	errs := map[string]string{}
	if strings.TrimSpace(c.address.Street) == "" {
		errs["street"] = "Street is required"
	}
	if strings.TrimSpace(c.address.City) == "" {
		errs["city"] = "City is required"
	}
	if strings.TrimSpace(c.address.State) == "" {
		errs["state"] = "State is required"
	}
	if utf8.RuneCountInString(strings.TrimSpace(c.address.Zip)) < 5 {
		errs["zip"] = "ZIP code must be at least 5 characters"
	}
	return errs
}

// CanSubmit reports whether Submit would be attempted.
func (c *Controller) CanSubmit() bool {
	return c.step == StepEnterContact && len(c.ContactErrors()) == 0 && len(c.AddressErrors()) == 0
}

// Submit sends the request through s. On success the flow moves to the
// confirmation step and project, details and address are cleared for a
// fresh request. On failure nothing is reset and the error is kept in the
// state for display.
func (c *Controller) Submit(ctx context.Context, s Submitter, meta submission.Meta) (*submission.Receipt, error) {
	if c.step != StepEnterContact {
		return nil, fmt.Errorf("%w: submit from %s", ErrInvalidTransition, c.step)
	}
	if !c.CanSubmit() {
		return nil, ErrIncomplete
	}

	receipt, err := s.SubmitEstimate(ctx, c.key, c.request(meta))
	if err != nil {
		c.recordFailure(err)
		return nil, err
	}

	if receipt.Estimate != nil {
		shown := *receipt.Estimate
		shown.BreakdownLines = nil
		c.lastEstimate = &shown
	}
	c.step = StepConfirmation
	c.details = nil
	c.address = AddressInfo{}
	c.key = c.newKey()
	c.clearError()
	return receipt, nil
}

// StartOver returns to step 1 with a fresh submission key. Contact details
// are kept so a returning visitor need not retype them.
func (c *Controller) StartOver() {
	c.step = StepSelectProject
	c.details = nil
	c.address = AddressInfo{}
	c.lastEstimate = nil
	c.key = c.newKey()
	c.clearError()
}

func (c *Controller) request(meta submission.Meta) *submission.EstimateRequest {
	p := c.details.Project()

	details := map[string]any{}
	for k, v := range c.details.Fields() {
		details[k] = v
	}

	var figures *submission.EstimateFigures
	if b := c.Estimate(); b != nil {
		figures = &submission.EstimateFigures{
			Conservative:   b.Conservative,
			Likely:         b.Likely,
			Premium:        b.Premium,
			BreakdownLines: b.BreakdownLines,
		}
	}

	if meta.Source == "" {
		meta.Source = "estimator"
	}
	if meta.SubmittedAt == "" {
		meta.SubmittedAt = c.now().UTC().Format(time.RFC3339)
	}

	return &submission.EstimateRequest{
		Project:      string(p),
		ProjectLabel: p.Label(),
		Address: submission.Address{
			Street: strings.TrimSpace(c.address.Street),
			City:   strings.TrimSpace(c.address.City),
			State:  strings.TrimSpace(c.address.State),
			Zip:    strings.TrimSpace(c.address.Zip),
		},
		Contact: submission.Contact{
			FirstName: strings.TrimSpace(c.contact.FirstName),
			LastName:  strings.TrimSpace(c.contact.LastName),
			Email:     strings.TrimSpace(c.contact.Email),
			Phone:     strings.TrimSpace(c.contact.Phone),
		},
		Details:  details,
		Estimate: figures,
		Meta:     &meta,
	}
}

func (c *Controller) recordFailure(err error) {
	var verr *submission.ValidationError
	if errors.As(err, &verr) {
		c.lastErr = "Some of your information needs attention."
		c.fieldErrors = verr.Fields
		return
	}
	if errors.Is(err, submission.ErrInProgress) {
		c.lastErr = "Your request is already being sent. Please wait a moment."
		c.fieldErrors = nil
		return
	}
	c.lastErr = "We couldn't send your request right now. Please try again in a moment or give us a call."
	c.fieldErrors = nil
}

func (c *Controller) clearError() {
	c.lastErr = ""
	c.fieldErrors = nil
}

func digits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
