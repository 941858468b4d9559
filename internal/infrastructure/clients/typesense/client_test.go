package typesense

import (
	"context"
	"os"
	"testing"

	"github.com/soberbookings/backend/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFacilitySchema_SearchableFields(t *testing.T) {
	schema := FacilitySchema()

	fields := map[string]string{}
	for _, f := range schema.Fields {
		fields[f.Name] = f.Type
	}

	assert.Equal(t, FacilitiesCollection, schema.Name)
	assert.Equal(t, "geopoint", fields["location"])
	assert.Equal(t, "string[]", fields["care_levels"])
	assert.Equal(t, "string[]", fields["accepted_insurance"])
	assert.Equal(t, "string", fields["verification_tier"])
	require.NotNil(t, schema.DefaultSortingField)
	assert.Equal(t, "updated_at", *schema.DefaultSortingField)
}

func TestClient_Integration(t *testing.T) {
	if os.Getenv("TEST_INTEGRATION") != "true" {
		t.Skip("set TEST_INTEGRATION=true to run against a local Typesense")
	}

	cfg := &config.TypesenseConfig{
		URL:    "http://localhost:8108",
		APIKey: "xyz",
	}

	client, err := NewClient(cfg)
	require.NoError(t, err)
	require.NotNil(t, client)

	assert.NoError(t, client.InitSchema(context.Background()))
}
