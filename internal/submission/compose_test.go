package submission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/homebuild/internal/pricing"
)

func TestHumanize(t *testing.T) {
	assert.Equal(t, "Square Feet", humanize("sqft"))
	assert.Equal(t, "Roof Complexity", humanize("roofComplexity"))
	assert.Equal(t, "Pressure Treated", humanize("pressureTreated"))
	assert.Equal(t, "2", humanize("2"))
}

func TestDisplayPhone(t *testing.T) {
	assert.Equal(t, "(555) 123-4567", displayPhone("", "555.123.4567"))
	assert.Equal(t, "(555) 123-4567", displayPhone("", "+1 555 123 4567"))
	assert.Equal(t, "+44 20 7946 0958", displayPhone("", "+44 20 7946 0958"))
	assert.Equal(t, "555-123-4567", displayPhone("555-123-4567", "5551234567"))
}

func TestAddressLine(t *testing.T) {
	assert.Equal(t, "12 Oak St, Springfield, IL 62704", addressLine(Address{"12 Oak St", "Springfield", "IL", "62704"}))
	assert.Equal(t, "Springfield", addressLine(Address{City: "Springfield"}))
}

func TestDetailStrings(t *testing.T) {
	got := DetailStrings(map[string]any{"sqft": 1250.0, "railing": true, "deckHeight": "raised", "note": nil})
	assert.Equal(t, map[string]string{"sqft": "1250", "railing": "yes", "deckHeight": "raised"}, got)
	assert.Nil(t, DetailStrings(nil))
}

func TestComposeEstimateKeepsClientPhoneAndTimestamp(t *testing.T) {
	details, err := pricing.ParseDetails(pricing.ProjectKitchen, map[string]string{"sqft": "200"})
	require.NoError(t, err)
	at := time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC)

	req := &EstimateRequest{
		Project: "kitchen",
		Contact: Contact{FirstName: "Jane", LastName: "Doe", Email: "jane@example.com", Phone: "5551234567", PhoneFormatted: "(555) 123-4567"},
		Meta:    &Meta{Source: "estimator", SubmittedAt: "2026-03-04T09:29:58-06:00", URL: "https://ridgeline.test/estimate"},
	}
	notify, _, err := composeEstimate(Settings{SiteName: "Ridgeline Builders"}, req, details, pricing.Estimate(details), at)
	require.NoError(t, err)

	for _, body := range []string{notify.Text, notify.HTML} {
		assert.Contains(t, body, "(555) 123-4567 (entered as 5551234567)")
		assert.Contains(t, body, "Mar 4, 2026 3:30 PM UTC (client reported 2026-03-04T09:29:58-06:00)")
	}

	req.Contact.Phone = "(555) 123-4567"
	req.Meta = nil
	notify, _, err = composeEstimate(Settings{SiteName: "Ridgeline Builders"}, req, details, pricing.Estimate(details), at)
	require.NoError(t, err)
	assert.NotContains(t, notify.Text, "entered as")
	assert.NotContains(t, notify.Text, "client reported")
}
