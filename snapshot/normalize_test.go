package snapshot

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalizeCandidate(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want Candidate
	}{
		{
			name: "canonical camel case",
			raw: map[string]any{
				"id":             "cand-1",
				"firstName":      "Aroha",
				"lastName":       "Ngata",
				"phone":          "0211234567",
				"startDate":      "2025-03-13",
				"currentProject": "Harbour Tower",
				"siteAddress":    "1 Quay St",
				"visaExpiry":     "2025-04-24",
				"compliance":     map[string]any{"siteSafetyExpiry": "2025-03-20"},
			},
			want: Candidate{
				ID:             "cand-1",
				FirstName:      "Aroha",
				LastName:       "Ngata",
				Phone:          "0211234567",
				StartDate:      date(2025, 3, 13),
				CurrentProject: "Harbour Tower",
				SiteAddress:    "1 Quay St",
				VisaExpiry:     date(2025, 4, 24),
				Compliance:     Compliance{SiteSafetyExpiry: date(2025, 3, 20)},
			},
		},
		{
			name: "snake case aliases and day-first dates",
			raw: map[string]any{
				"id":                  "cand-2",
				"first_name":          "Sione",
				"surname":             "Tupou",
				"mobile":              "0229876543",
				"next_start_date":     "13/03/2025",
				"assigned_project_id": "proj-9",
				"visa_expiry_date":    "01/05/2025",
			},
			want: Candidate{
				ID:         "cand-2",
				FirstName:  "Sione",
				LastName:   "Tupou",
				Phone:      "0229876543",
				StartDate:  date(2025, 3, 13),
				ProjectID:  "proj-9",
				VisaExpiry: date(2025, 5, 1),
			},
		},
		{
			name: "compliance as json text",
			raw: map[string]any{
				"id":         "cand-3",
				"compliance": `{"site_safe_expiry": "2025-03-20"}`,
			},
			want: Candidate{ID: "cand-3", Compliance: Compliance{SiteSafetyExpiry: date(2025, 3, 20)}},
		},
		{
			name: "compliance flattened onto the record",
			raw: map[string]any{
				"id":                 "cand-4",
				"site_safety_expiry": []byte("2025-03-20"),
			},
			want: Candidate{ID: "cand-4", Compliance: Compliance{SiteSafetyExpiry: date(2025, 3, 20)}},
		},
		{
			name: "nested compliance wins over flattened",
			raw: map[string]any{
				"id":               "cand-5",
				"siteSafetyExpiry": "2025-01-01",
				"compliance":       map[string]any{"siteSafetyExpiry": "2025-03-20"},
			},
			want: Candidate{ID: "cand-5", Compliance: Compliance{SiteSafetyExpiry: date(2025, 3, 20)}},
		},
		{
			name: "bad dates and bad json become unknown",
			raw: map[string]any{
				"id":         "cand-6",
				"startDate":  "soon",
				"visaExpiry": nil,
				"compliance": "{not json",
			},
			want: Candidate{ID: "cand-6"},
		},
		{
			name: "numeric id is accepted",
			raw:  map[string]any{"id": 42, "firstName": "Mere"},
			want: Candidate{ID: "42", FirstName: "Mere"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeCandidate(tt.raw)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("NormalizeCandidate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeCandidateRejectsWrongShape(t *testing.T) {
	_, err := NormalizeCandidate(map[string]any{
		"id":        "cand-1",
		"firstName": map[string]any{"given": "Aroha"},
	})
	assert.Error(t, err)
}

func TestNormalizeProject(t *testing.T) {
	got, err := NormalizeProject(map[string]any{
		"id":                    "proj-1",
		"project_name":          "Harbour Tower",
		"client":                "client-1",
		"project_start_date":    "2025-03-15",
		"site_safety_agreement": "Pending",
		"client_contact_name":   "Jo Bloggs",
		"client_contact_phone":  "095551234",
	})
	require.NoError(t, err)

	want := Project{
		ID:           "proj-1",
		Name:         "Harbour Tower",
		ClientID:     "client-1",
		StartDate:    date(2025, 3, 15),
		SSAStatus:    "Pending",
		ContactName:  "Jo Bloggs",
		ContactPhone: "095551234",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NormalizeProject() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeProjectCanonicalWinsOverAlias(t *testing.T) {
	got, err := NormalizeProject(map[string]any{
		"name":  "Harbour Tower",
		"title": "Old title",
	})
	require.NoError(t, err)
	assert.Equal(t, "Harbour Tower", got.Name)
}

func TestNormalizeCandidateAliasPrecedence(t *testing.T) {
	raw := map[string]any{
		"phoneNumber":  "0229876543",
		"mobile":       "0211234567",
		"mobileNumber": "0270000000",
	}
	for i := 0; i < 50; i++ {
		got, err := NormalizeCandidate(raw)
		require.NoError(t, err)
		assert.Equal(t, "0211234567", got.Phone, "the alias sorting first wins")
	}

	raw["Phone"] = nil
	got, err := NormalizeCandidate(raw)
	require.NoError(t, err)
	assert.Equal(t, "0211234567", got.Phone, "a nil canonical value does not hide the aliases")

	raw["phone"] = "0800838383"
	got, err = NormalizeCandidate(raw)
	require.NoError(t, err)
	assert.Equal(t, "0800838383", got.Phone)
}

func TestNormalizeClient(t *testing.T) {
	contact := time.Date(2025, 1, 19, 14, 5, 0, 0, time.UTC)
	got, err := NormalizeClient(map[string]any{
		"id":             "client-1",
		"company_name":   "Fletcher",
		"contact_person": "Jo",
		"phone_number":   "095551234",
		"last_contacted": contact,
	})
	require.NoError(t, err)

	want := Client{
		ID:          "client-1",
		Name:        "Fletcher",
		ContactName: "Jo",
		Phone:       "095551234",
		LastContact: contact,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NormalizeClient() mismatch (-want +got):\n%s", diff)
	}
}

func TestFoldKey(t *testing.T) {
	for _, k := range []string{"visa_expiry", "visaExpiry", "Visa Expiry", "visa-expiry", "VISA.EXPIRY"} {
		assert.Equal(t, "visaexpiry", foldKey(k), k)
	}
}

func TestAssignedTo(t *testing.T) {
	snap := Snapshot{Candidates: []Candidate{
		{ID: "1", ProjectID: "proj-1"},
		{ID: "2", CurrentProject: "  harbour   TOWER "},
		{ID: "3", CurrentProject: "Quay Park"},
		{ID: "4"},
	}}

	var ids []string
	for _, c := range snap.AssignedTo(Project{ID: "proj-1", Name: "Harbour Tower"}) {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"1", "2"}, ids)

	assert.Empty(t, snap.AssignedTo(Project{ID: "proj-2", Name: "Wynyard"}))
	assert.Empty(t, snap.AssignedTo(Project{}), "an unnamed project matches nobody")
}
