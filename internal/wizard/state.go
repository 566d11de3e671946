package wizard

import (
	"fmt"
	"time"

	"github.com/Simplici0/homebuild/internal/pricing"
	"github.com/Simplici0/homebuild/internal/submission"
)

// State is the serializable form of a Controller.
type State struct {
	Step          Step                `json:"step"`
	Project       pricing.Project     `json:"project,omitempty"`
	Details       map[string]string   `json:"details,omitempty"`
	Contact       ContactInfo         `json:"contact"`
	Address       AddressInfo         `json:"address"`
	SubmissionKey string              `json:"submissionKey"`
	Error         string              `json:"error,omitempty"`
	FieldErrors   map[string][]string `json:"fieldErrors,omitempty"`
	LastEstimate  *pricing.Bands      `json:"lastEstimate,omitempty"`
}

// State snapshots the controller.
func (c *Controller) State() State {
	s := State{
		Step:          c.step,
		Contact:       c.contact,
		Address:       c.address,
		SubmissionKey: c.key,
		Error:         c.lastErr,
		FieldErrors:   c.fieldErrors,
		LastEstimate:  c.lastEstimate,
	}
	if c.details != nil {
		s.Project = c.details.Project()
		s.Details = c.details.Fields()
	}
	return s
}

// Restore rebuilds a controller from a snapshot. Snapshots that could not
// have been produced by the flow are rejected.
func Restore(s State) (*Controller, error) {
	if s.Step < StepSelectProject || s.Step > StepConfirmation {
		return nil, fmt.Errorf("wizard: invalid step %d", s.Step)
	}

	c := &Controller{
		step:         s.Step,
		contact:      s.Contact,
		address:      s.Address,
		key:          s.SubmissionKey,
		lastErr:      s.Error,
		fieldErrors:  s.FieldErrors,
		lastEstimate: s.LastEstimate,
		newKey:       submission.NewKey,
		now:          time.Now,
	}
	if c.key == "" {
		c.key = c.newKey()
	}

	if s.Project != "" {
		d, err := pricing.ParseDetails(s.Project, s.Details)
		if err != nil {
			return nil, fmt.Errorf("wizard: restore details: %w", err)
		}
		c.details = d
	}
	if c.details == nil && (c.step == StepEnterDetails || c.step == StepEnterContact) {
		return nil, fmt.Errorf("wizard: step %s requires a project", c.step)
	}

	return c, nil
}
