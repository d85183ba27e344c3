// cmd/common_test.go - Tests for command flag parsing
package cmd

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/mapillary/internal/config"
	"github.com/valpere/mapillary/pkg/filter"
	"github.com/valpere/mapillary/pkg/tiles"
)

func TestParseBoundingBox(t *testing.T) {
	b, err := parseBoundingBox("13.40, 52.51,13.41,52.52")
	require.NoError(t, err)
	assert.Equal(t, orb.Bound{Min: orb.Point{13.40, 52.51}, Max: orb.Point{13.41, 52.52}}, b)

	_, err = parseBoundingBox("1,2,3")
	assert.Error(t, err)
	_, err = parseBoundingBox("1,2,x,4")
	assert.Error(t, err)
}

func TestParseTileAddress(t *testing.T) {
	addr, err := parseTileAddress("14/8802/5373")
	require.NoError(t, err)
	assert.Equal(t, tiles.NewAddress(14, 8802, 5373), addr)

	for _, bad := range []string{"14/8802", "a/1/2", "1/b/2", "1/2/c", "1/2/0", "2/4/0"} {
		_, err := parseTileAddress(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseLngLat(t *testing.T) {
	lng, lat, err := parseLngLat([]string{"13.4", "-52.5"})
	require.NoError(t, err)
	assert.Equal(t, 13.4, lng)
	assert.Equal(t, -52.5, lat)

	_, _, err = parseLngLat([]string{"east", "1"})
	assert.Error(t, err)
	_, _, err = parseLngLat([]string{"1"})
	assert.Error(t, err)
}

func TestParseAngleRange(t *testing.T) {
	r, err := parseAngleRange("350, 10")
	require.NoError(t, err)
	assert.Equal(t, 350.0, r.Min)
	assert.Equal(t, 10.0, r.Max)

	_, err = parseAngleRange("90")
	assert.Error(t, err)
}

func newCriteriaCommand(args ...string) (*cobra.Command, error) {
	c := &cobra.Command{Use: "test", RunE: func(*cobra.Command, []string) error { return nil }}
	addImageCriteriaFlags(c)
	addMapFeatureCriteriaFlags(c)
	return c, c.ParseFlags(args)
}

func TestImageCriteria_FallsBackToConfig(t *testing.T) {
	cfg := &config.QueryConfig{Radius: 75, Units: filter.UnitFeet, LookAtTolerance: 12, Computed: true}

	c, err := newCriteriaCommand("--image-type", "pano", "--organization-id", "1,2")
	require.NoError(t, err)
	crit, err := imageCriteria(c, cfg)
	require.NoError(t, err)
	assert.Equal(t, 75.0, crit.Radius)
	assert.Equal(t, filter.UnitFeet, crit.Units)
	assert.Equal(t, 12.0, crit.LookAtTolerance)
	assert.True(t, crit.Computed)
	assert.Equal(t, "pano", crit.ImageType)
	assert.Equal(t, []string{"1", "2"}, crit.OrganizationIDs)
	assert.Nil(t, crit.CompassAngle)
}

func TestImageCriteria_FlagsOverride(t *testing.T) {
	cfg := &config.QueryConfig{Radius: 75, Units: filter.UnitFeet, Computed: true}

	c, err := newCriteriaCommand(
		"--radius", "1", "--units", "km", "--computed=false",
		"--compass-angle", "0,90",
		"--filter", "haversine_dist:lng=1,lat=2,radius=10",
		"--filter", "image_type:type=flat",
	)
	require.NoError(t, err)
	crit, err := imageCriteria(c, cfg)
	require.NoError(t, err)
	assert.Equal(t, 1.0, crit.Radius)
	assert.Equal(t, filter.UnitKilometers, crit.Units)
	assert.False(t, crit.Computed)
	require.NotNil(t, crit.CompassAngle)
	assert.Equal(t, 90.0, crit.CompassAngle.Max)
	require.Len(t, crit.Filters, 2)
	assert.Equal(t, "haversine_dist", crit.Filters[0].Name())
}

func TestImageCriteria_Zoom(t *testing.T) {
	c, err := newCriteriaCommand()
	require.NoError(t, err)
	crit, err := imageCriteria(c, &config.QueryConfig{})
	require.NoError(t, err)
	assert.Nil(t, crit.Zoom)

	c, err = newCriteriaCommand("--zoom", "0")
	require.NoError(t, err)
	crit, err = imageCriteria(c, &config.QueryConfig{})
	require.NoError(t, err)
	require.NotNil(t, crit.Zoom)
	assert.Equal(t, 0, *crit.Zoom)
}

func TestMapFeatureCriteria_DateFlagUsage(t *testing.T) {
	c, err := newCriteriaCommand()
	require.NoError(t, err)
	assert.Equal(t, "keep features first seen at or after this date", c.Flags().Lookup("existed-at").Usage)
	assert.Equal(t, "keep features first seen strictly before this date", c.Flags().Lookup("existed-before").Usage)
}

func TestImageCriteria_BadFilter(t *testing.T) {
	c, err := newCriteriaCommand("--filter", "nearest:k=1")
	require.NoError(t, err)
	_, err = imageCriteria(c, &config.QueryConfig{})
	var unknown *filter.UnknownFilterError
	assert.ErrorAs(t, err, &unknown)
}

func TestMapFeatureCriteria(t *testing.T) {
	c, err := newCriteriaCommand("--object-values", "object--bench,object--bike-rack", "--existed-at", "2020")
	require.NoError(t, err)
	crit, err := mapFeatureCriteria(c)
	require.NoError(t, err)
	assert.Equal(t, []string{"object--bench", "object--bike-rack"}, crit.ObjectValues)
	assert.Equal(t, "2020", crit.ExistedAt)
	assert.Empty(t, crit.ExistedBefore)
}
