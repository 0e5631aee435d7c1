package snapshot

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Records reach us from dashboards, spreadsheet imports and SQL rows with the
// same field spelled several ways. Keys are folded (lower case, no separators)
// and then mapped through these aliases onto the canonical mapstructure tags.
var (
	candidateAliases = map[string]string{
		"first":              "firstname",
		"givenname":          "firstname",
		"last":               "lastname",
		"surname":            "lastname",
		"familyname":         "lastname",
		"mobile":             "phone",
		"phonenumber":        "phone",
		"mobilenumber":       "phone",
		"emailaddress":       "email",
		"nextstartdate":      "startdate",
		"start":              "startdate",
		"currentprojectid":   "projectid",
		"assignedprojectid":  "projectid",
		"projectname":        "currentproject",
		"currentsite":        "currentproject",
		"address":            "siteaddress",
		"currentsiteaddress": "siteaddress",
		"visaexpirydate":     "visaexpiry",
		"visaexpires":        "visaexpiry",
	}

	complianceAliases = map[string]string{
		"sitesafeexpiry":              "sitesafetyexpiry",
		"sitesafetyexpirydate":        "sitesafetyexpiry",
		"sitesafetycertexpiry":        "sitesafetyexpiry",
		"sitesafetycertificateexpiry": "sitesafetyexpiry",
		"sitesafeexpirydate":          "sitesafetyexpiry",
	}

	projectAliases = map[string]string{
		"projectname":         "name",
		"title":               "name",
		"client":              "clientid",
		"projectstartdate":    "startdate",
		"start":               "startdate",
		"ssa":                 "ssastatus",
		"sitesafetyagreement": "ssastatus",
		"address":             "siteaddress",
		"clientcontact":       "contactname",
		"clientcontactname":   "contactname",
		"clientphone":         "contactphone",
		"clientcontactphone":  "contactphone",
	}

	clientAliases = map[string]string{
		"companyname":     "name",
		"clientname":      "name",
		"contact":         "contactname",
		"contactperson":   "contactname",
		"contactphone":    "phone",
		"phonenumber":     "phone",
		"contactemail":    "email",
		"lastcontactdate": "lastcontact",
		"lastcontacted":   "lastcontact",
		"lastcontactedat": "lastcontact",
	}
)

// NormalizeCandidate converts a loosely shaped record into a Candidate.
// Compliance dates may be nested under "compliance" (as a map or a JSON
// document) or flattened onto the record.
func NormalizeCandidate(raw map[string]any) (Candidate, error) {
	record := foldKeys(raw, candidateAliases)

	compliance := map[string]any{}
	if nested, ok := record["compliance"]; ok {
		compliance = foldKeys(asMap(nested), complianceAliases)
	}
	for key, value := range foldKeys(raw, complianceAliases) {
		if key != "sitesafetyexpiry" {
			continue
		}
		if _, set := compliance[key]; !set {
			compliance[key] = value
		}
	}
	record["compliance"] = compliance

	var c Candidate
	if err := decode(record, &c); err != nil {
		return Candidate{}, fmt.Errorf("invalid candidate record: %w", err)
	}
	return c, nil
}

// NormalizeProject converts a loosely shaped record into a Project.
func NormalizeProject(raw map[string]any) (Project, error) {
	var p Project
	if err := decode(foldKeys(raw, projectAliases), &p); err != nil {
		return Project{}, fmt.Errorf("invalid project record: %w", err)
	}
	return p, nil
}

// NormalizeClient converts a loosely shaped record into a Client.
func NormalizeClient(raw map[string]any) (Client, error) {
	var c Client
	if err := decode(foldKeys(raw, clientAliases), &c); err != nil {
		return Client{}, fmt.Errorf("invalid client record: %w", err)
	}
	return c, nil
}

func decode(record map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook:       dateHook,
	})
	if err != nil {
		return err
	}
	return dec.Decode(record)
}

var timeType = reflect.TypeOf(time.Time{})

// dateHook turns any date-ish value into a time.Time. Unreadable dates become
// the zero time rather than failing the record.
func dateHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != timeType {
		return data, nil
	}
	return ParseDate(data), nil
}

// foldKey lower-cases k and drops separators so "visa_expiry", "visaExpiry"
// and "Visa Expiry" all become "visaexpiry".
func foldKey(k string) string {
	var b strings.Builder
	b.Grow(len(k))
	for _, r := range strings.ToLower(k) {
		switch r {
		case '_', '-', ' ', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// foldKeys maps raw onto canonical keys. A canonical spelling wins over an
// alias for the same field; between aliases, the raw key that sorts first
// wins. Nil values are dropped.
func foldKeys(raw map[string]any, aliases map[string]string) map[string]any {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(raw))
	for _, canonicalPass := range []bool{true, false} {
		for _, k := range keys {
			v := raw[k]
			if v == nil {
				continue
			}
			key := foldKey(k)
			_, isAlias := aliases[key]
			if isAlias == canonicalPass {
				continue
			}
			if isAlias {
				key = aliases[key]
			}
			if _, exists := out[key]; exists {
				continue
			}
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			out[key] = v
		}
	}
	return out
}

// asMap accepts a nested object given as a map or as JSON text.
func asMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case string:
		return unmarshalMap([]byte(m))
	case []byte:
		return unmarshalMap(m)
	default:
		return map[string]any{}
	}
}

func unmarshalMap(b []byte) map[string]any {
	m := map[string]any{}
	if len(b) == 0 {
		return m
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return map[string]any{}
	}
	return m
}
