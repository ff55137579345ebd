package tunnel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionDirectoryResolveDirectEndpoint(t *testing.T) {
	dir := NewRegionDirectory(nil)

	for _, sep := range []string{"-", ":", "="} {
		ep, err := dir.Resolve("example.org" + sep + "443")
		require.NoError(t, err)
		assert.Equal(t, UpstreamEndpoint{Host: "example.org", Port: 443}, ep)
	}
}

func TestRegionDirectoryResolveRegionList(t *testing.T) {
	dir := NewRegionDirectory(map[string][]string{
		"US": {"1.1.1.1:443"},
		"SG": {"2.2.2.2:443"},
	})

	ep, err := dir.Resolve("US,SG")
	require.NoError(t, err)
	assert.Contains(t, []string{"1.1.1.1", "2.2.2.2"}, ep.Host)
	assert.EqualValues(t, 443, ep.Port)
}

func TestRegionDirectoryResolveUnknownRegionIsEmptyError(t *testing.T) {
	dir := NewRegionDirectory(map[string][]string{"US": {"1.1.1.1:443"}})

	_, err := dir.Resolve("JP")
	require.Error(t, err)
	var rerr *RegionEmptyError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "JP", rerr.Region)
}

func TestRegionDirectoryResolveEmptyRegionList(t *testing.T) {
	dir := NewRegionDirectory(map[string][]string{"US": {}})

	_, err := dir.Resolve("US")
	require.Error(t, err)
	var rerr *RegionEmptyError
	require.ErrorAs(t, err, &rerr)
}

func TestRegionDirectoryResolveUnrecognizedSelector(t *testing.T) {
	dir := NewRegionDirectory(nil)
	_, err := dir.Resolve("not a valid selector!!")
	require.Error(t, err)
}

func TestPickRandomEmptySliceErrors(t *testing.T) {
	_, err := pickRandom([]string{})
	require.Error(t, err)
}

func TestPickRandomSingleElement(t *testing.T) {
	v, err := pickRandom([]string{"only"})
	require.NoError(t, err)
	assert.Equal(t, "only", v)
}

func TestUpstreamEndpointAddr(t *testing.T) {
	ep := UpstreamEndpoint{Host: "10.0.0.1", Port: 9000}
	assert.Equal(t, "10.0.0.1:9000", ep.Addr())
}
