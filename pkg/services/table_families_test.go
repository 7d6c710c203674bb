package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/ekaya-taxonomy/pkg/models"
)

var testFamilySuffixes = []string{"app", "web", "ios", "android"}

func TestFamilyBase(t *testing.T) {
	tests := []struct {
		table  string
		base   string
		suffix string
	}{
		{"session_app", "session", "app"},
		{"prescription_web", "prescription", "web"},
		{"Session_APP", "Session", "app"},
		{"patient_diagnosis_data", "", ""},
		{"app", "", ""},
		{"_app", "", ""},
		{"session_", "", ""},
		{"user_session_ios", "user_session", "ios"},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			assert.Equal(t, tt.base, familyBase(tt.table, testFamilySuffixes))
			assert.Equal(t, tt.suffix, familySuffix(tt.table, testFamilySuffixes))
		})
	}
}

func TestDetectTableFamilies(t *testing.T) {
	tables := []string{
		"session_web", "patient", "prescription_app", "session_app",
		"prescription_web", "prescription", "login_ios",
	}

	families := DetectTableFamilies(tables, testFamilySuffixes)

	assert.Equal(t, []models.TableFamily{
		{Base: "prescription", Variants: []string{"prescription_app", "prescription_web"}},
		{Base: "session", Variants: []string{"session_app", "session_web"}},
	}, families)
}

func TestDetectTableFamilies_NoFamilies(t *testing.T) {
	assert.Empty(t, DetectTableFamilies([]string{"login_ios", "patient"}, testFamilySuffixes))
	assert.Empty(t, DetectTableFamilies(nil, testFamilySuffixes))
	assert.Empty(t, DetectTableFamilies([]string{"session_app", "session_web"}, nil))
}

func TestSchemaLoader_DetectsFamilies(t *testing.T) {
	model := loadFixture(t, clinicalExport)

	var bases []string
	for _, f := range model.Families {
		bases = append(bases, f.Base)
	}
	assert.Equal(t, []string{"prescription", "session"}, bases)

	family := model.FamilyOf("session_web")
	if assert.NotNil(t, family) {
		assert.Equal(t, "session", family.Base)
	}
	assert.Nil(t, model.FamilyOf("prescription"))
}
