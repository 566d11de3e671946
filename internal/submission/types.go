package submission

// Contact is the submitter block of an estimator payload.
type Contact struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	PhoneFormatted string `json:"phoneFormatted,omitempty"`
}

// FullName joins first and last name.
func (c Contact) FullName() string {
	return joinName(c.FirstName, c.LastName)
}

// Address is the job site.
type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// EstimateFigures are the bands as shown to the visitor. They are never
// trusted; the gateway recomputes them.
type EstimateFigures struct {
	Conservative   float64  `json:"conservative"`
	Likely         float64  `json:"likely"`
	Premium        float64  `json:"premium"`
	BreakdownLines []string `json:"breakdownLines,omitempty"`
}

// Meta describes where a submission came from.
type Meta struct {
	Source      string `json:"source,omitempty"`
	SubmittedAt string `json:"submittedAt,omitempty"`
	URL         string `json:"url,omitempty"`
}

// EstimateRequest is the estimator payload.
type EstimateRequest struct {
	Project      string           `json:"project"`
	ProjectLabel string           `json:"projectLabel,omitempty"`
	Address      Address          `json:"address"`
	Contact      Contact          `json:"contact"`
	Details      map[string]any   `json:"details,omitempty"`
	Estimate     *EstimateFigures `json:"estimate,omitempty"`
	Meta         *Meta            `json:"meta,omitempty"`
}

// ContactRequest is the standalone contact form payload.
type ContactRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address,omitempty"`
	Message   string `json:"message"`
}

// FullName joins first and last name.
func (c ContactRequest) FullName() string {
	return joinName(c.FirstName, c.LastName)
}

func joinName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	}
	return first + " " + last
}
