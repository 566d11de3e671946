package submission

import (
	"embed"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Simplici0/homebuild/internal/pricing"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	estimateSchema = mustSchema("schemas/estimate.json")
	contactSchema  = mustSchema("schemas/contact.json")
)

func mustSchema(name string) *gojsonschema.Schema {
	raw, err := schemaFS.ReadFile(name)
	if err != nil {
		panic(err)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("submission: compile %s: %v", name, err))
	}
	return schema
}

// checkSchema validates doc and flattens every schema violation into a
// field-keyed ValidationError. The result is empty when doc is valid.
func checkSchema(schema *gojsonschema.Schema, doc gojsonschema.JSONLoader) *ValidationError {
	verr := &ValidationError{}

	result, err := schema.Validate(doc)
	if err != nil {
		verr.add("body", "must be a valid JSON object")
		return verr
	}

	for _, re := range result.Errors() {
		field := fieldOf(re)
		verr.add(field, messageOf(field, re))
	}
	return verr
}

// fieldOf turns the error context into a dotted path. Required errors are
// reported against the missing property rather than its parent object.
func fieldOf(re gojsonschema.ResultError) string {
	field := strings.TrimPrefix(re.Context().String("."), gojsonschema.STRING_ROOT_SCHEMA_PROPERTY)
	field = strings.TrimPrefix(field, ".")

	if re.Type() == "required" {
		if prop, ok := re.Details()["property"].(string); ok && prop != "" {
			if field == "" {
				field = prop
			} else {
				field += "." + prop
			}
		}
	}

	if field == "" {
		return "body"
	}
	return field
}

func messageOf(field string, re gojsonschema.ResultError) string {
	details := re.Details()
	switch re.Type() {
	case "required":
		return "is required"
	case "string_gte":
		return fmt.Sprintf("must be at least %v characters", details["min"])
	case "pattern":
		if strings.HasSuffix(field, "email") {
			return "must be a valid email address"
		}
	case "enum":
		return fmt.Sprintf("must be one of %v", details["allowed"])
	case "number_gte":
		return "must be zero or greater"
	case "invalid_type":
		return fmt.Sprintf("must be a %v", details["expected"])
	}
	return re.Description()
}

// checkEstimate runs the checks a schema cannot express and returns the
// parsed scope of work.
func checkEstimate(req *EstimateRequest, verr *ValidationError) pricing.Details {
	if digitCount(req.Contact.Phone) < 10 {
		verr.add("contact.phone", "must contain at least 10 digits")
	}

	project, err := pricing.ParseProject(req.Project)
	if err != nil {
		verr.add("project", "is not a supported project")
		return nil
	}

	details, err := pricing.ParseDetails(project, DetailStrings(req.Details))
	if err != nil {
		var fieldErrs pricing.FieldErrors
		if !errors.As(err, &fieldErrs) {
			verr.add("details", err.Error())
			return nil
		}
		keys := make([]string, 0, len(fieldErrs))
		for k := range fieldErrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			verr.add("details."+k, fieldErrs[k])
		}
		return nil
	}
	return details
}

func checkContact(req *ContactRequest, verr *ValidationError) {
	if digitCount(req.Phone) < 10 {
		verr.add("phone", "must contain at least 10 digits")
	}
	if strings.TrimSpace(req.Message) == "" {
		verr.add("message", "must not be blank")
	}
}

// DetailStrings converts JSON detail values into the string form the
// pricing engine parses. Nulls count as missing.
func DetailStrings(in map[string]any) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch val := v.(type) {
		case nil:
		case string:
			out[k] = val
		case bool:
			if val {
				out[k] = "yes"
			} else {
				out[k] = "no"
			}
		case float64:
			out[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case int:
			out[k] = strconv.Itoa(val)
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
