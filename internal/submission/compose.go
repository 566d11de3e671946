package submission

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Simplici0/homebuild/internal/mailer"
	"github.com/Simplici0/homebuild/internal/pricing"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/*.html.tmpl"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/*.txt.tmpl"))
)

// Settings are the delivery settings the gateway composes messages with.
type Settings struct {
	SiteName   string
	From       string
	EstimateTo []string
	ContactTo  []string
	CC         []string
	BCC        []string
}

type detailLine struct {
	Label string
	Value string
}

type emailView struct {
	SiteName    string
	Name        string
	FirstName   string
	Email       string
	Phone       string
	RawPhone    string
	AddressLine string
	Message     string

	ProjectLabel string
	Details      []detailLine
	Conservative string
	Likely       string
	Premium      string
	Breakdown    []string

	Source            string
	URL               string
	SubmittedAt       string
	ClientSubmittedAt string
}

func render(name string, view emailView) (string, string, error) {
	var html, text bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&html, name+".html.tmpl", view); err != nil {
		return "", "", eris.Wrapf(err, "render %s html", name)
	}
	if err := textTemplates.ExecuteTemplate(&text, name+".txt.tmpl", view); err != nil {
		return "", "", eris.Wrapf(err, "render %s text", name)
	}
	return html.String(), text.String(), nil
}

func composeEstimate(s Settings, req *EstimateRequest, details pricing.Details, bands *pricing.Bands, at time.Time) (*mailer.Message, *mailer.Message, error) {
	project := details.Project()
	label := req.ProjectLabel
	if label == "" {
		label = project.Label()
	}

	view := emailView{
		SiteName:     s.SiteName,
		Name:         req.Contact.FullName(),
		FirstName:    req.Contact.FirstName,
		Email:        req.Contact.Email,
		Phone:        displayPhone(req.Contact.PhoneFormatted, req.Contact.Phone),
		AddressLine:  addressLine(req.Address),
		ProjectLabel: label,
		Details:      detailLines(project, details),
		Conservative: pricing.FormatUSD(bands.Conservative),
		Likely:       pricing.FormatUSD(bands.Likely),
		Premium:      pricing.FormatUSD(bands.Premium),
		Breakdown:    bands.BreakdownLines,
		Source:       "estimator",
		SubmittedAt:  at.Format("Jan 2, 2006 3:04 PM MST"),
	}
	if req.Meta != nil {
		if req.Meta.Source != "" {
			view.Source = req.Meta.Source
		}
		view.URL = req.Meta.URL
		view.ClientSubmittedAt = strings.TrimSpace(req.Meta.SubmittedAt)
	}
	if raw := strings.TrimSpace(req.Contact.Phone); raw != view.Phone {
		view.RawPhone = raw
	}

	notifyHTML, notifyText, err := render("estimate_notify", view)
	if err != nil {
		return nil, nil, err
	}
	ackHTML, ackText, err := render("estimate_ack", view)
	if err != nil {
		return nil, nil, err
	}

	notify := &mailer.Message{
		From:    s.From,
		To:      s.EstimateTo,
		CC:      s.CC,
		BCC:     s.BCC,
		ReplyTo: req.Contact.Email,
		Subject: "New " + label + " estimate request from " + view.Name,
		HTML:    notifyHTML,
		Text:    notifyText,
	}
	ack := &mailer.Message{
		From:    s.From,
		To:      []string{req.Contact.Email},
		Subject: "Your " + label + " estimate from " + s.SiteName,
		HTML:    ackHTML,
		Text:    ackText,
	}
	return notify, ack, nil
}

func composeContact(s Settings, req *ContactRequest, at time.Time) (*mailer.Message, *mailer.Message, error) {
	view := emailView{
		SiteName:    s.SiteName,
		Name:        req.FullName(),
		FirstName:   req.FirstName,
		Email:       req.Email,
		Phone:       displayPhone("", req.Phone),
		AddressLine: strings.TrimSpace(req.Address),
		Message:     req.Message,
		SubmittedAt: at.Format("Jan 2, 2006 3:04 PM MST"),
	}

	notifyHTML, notifyText, err := render("contact_notify", view)
	if err != nil {
		return nil, nil, err
	}
	ackHTML, ackText, err := render("contact_ack", view)
	if err != nil {
		return nil, nil, err
	}

	notify := &mailer.Message{
		From:    s.From,
		To:      s.ContactTo,
		CC:      s.CC,
		BCC:     s.BCC,
		ReplyTo: req.Email,
		Subject: "New contact form message from " + view.Name,
		HTML:    notifyHTML,
		Text:    notifyText,
	}
	ack := &mailer.Message{
		From:    s.From,
		To:      []string{req.Email},
		Subject: "Thanks for contacting " + s.SiteName,
		HTML:    ackHTML,
		Text:    ackText,
	}
	return notify, ack, nil
}

// detailLines lists the entered details in the project's field order.
func detailLines(p pricing.Project, d pricing.Details) []detailLine {
	fields := d.Fields()
	var out []detailLine
	for _, key := range pricing.AllowedKeys(p) {
		v, ok := fields[key]
		if !ok {
			continue
		}
		out = append(out, detailLine{Label: humanize(key), Value: humanize(v)})
	}
	return out
}

// humanize turns a camelCase key or option into title-cased words.
func humanize(s string) string {
	if s == "sqft" {
		return "Square Feet"
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	// Casers hold state, so each call gets its own.
	return cases.Title(language.AmericanEnglish).String(b.String())
}

func addressLine(a Address) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.Street, a.City, strings.TrimSpace(a.State + " " + a.Zip)} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// displayPhone prefers the client's formatting, then formats ten-digit
// US numbers, then falls back to the raw input.
func displayPhone(formatted, raw string) string {
	if formatted = strings.TrimSpace(formatted); formatted != "" {
		return formatted
	}
	var digits []rune
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return strings.TrimSpace(raw)
	}
	d := string(digits)
	return "(" + d[:3] + ") " + d[3:6] + "-" + d[6:]
}
