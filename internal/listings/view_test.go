package listings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jredh-dev/waypost/pkg/geo"
	"github.com/jredh-dev/waypost/pkg/models"
)

type fakeSource struct {
	items []models.Item
	err   error

	origin geo.Coordinate
	limit  int
}

func (f *fakeSource) FindNearbyItems(_ context.Context, origin geo.Coordinate, limit int) ([]models.Item, error) {
	f.origin = origin
	f.limit = limit
	return f.items, f.err
}

func ptr(v float64) *float64 { return &v }

func item(id string, lat, lng float64) models.Item {
	return models.Item{ID: id, QRCodeID: id, Lat: ptr(lat), Lng: ptr(lng)}
}

var (
	downtown = geo.Coordinate{Lat: 43.6532, Lng: -79.3832}
	uptown   = geo.Coordinate{Lat: 43.7615, Lng: -79.4111}

	union    = item("union", 43.6453, -79.3806)
	eglinton = item("eglinton", 43.7065, -79.3981)
	finch    = item("finch", 43.7806, -79.4155)
	nowhere  = models.Item{ID: "nowhere", QRCodeID: "nowhere"}
)

func ids(ranked []geo.Ranked[models.Item]) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.Entity.ID
	}
	return out
}

func TestRefresh_RanksFromOrigin(t *testing.T) {
	src := &fakeSource{items: []models.Item{finch, nowhere, union, eglinton}}
	v := NewView(src, nil)

	require.NoError(t, v.Refresh(context.Background(), downtown, 0))
	assert.Equal(t, DefaultLimit, src.limit)
	assert.Equal(t, downtown, src.origin)
	assert.Equal(t, []string{"union", "eglinton", "finch", "nowhere"}, ids(v.Ranked()))

	origin, ok := v.Origin()
	assert.True(t, ok)
	assert.Equal(t, downtown, origin)
}

func TestSetOrigin_Reranks(t *testing.T) {
	v := NewView(&fakeSource{}, nil)
	v.SetItems([]models.Item{union, eglinton, finch})

	v.SetOrigin(&uptown)
	assert.Equal(t, []string{"finch", "eglinton", "union"}, ids(v.Ranked()))

	v.SetOrigin(&downtown)
	assert.Equal(t, []string{"union", "eglinton", "finch"}, ids(v.Ranked()))

	v.SetOrigin(nil)
	for _, r := range v.Ranked() {
		assert.Nil(t, r.DistanceKm, "no origin, no distance")
	}
}

func TestServerDistanceWins(t *testing.T) {
	far := finch
	far.DistanceKm = ptr(0.1)
	v := NewView(&fakeSource{}, nil)
	v.SetItems([]models.Item{union, far})
	v.SetOrigin(&downtown)

	assert.Equal(t, []string{"finch", "union"}, ids(v.Ranked()))
}

func TestWithin(t *testing.T) {
	v := NewView(&fakeSource{items: []models.Item{union, eglinton, finch, nowhere}}, nil)
	require.NoError(t, v.Refresh(context.Background(), downtown, 10))

	assert.Equal(t, []string{"union", "eglinton"}, ids(v.Within(7)))
}

func TestInBoundsAndNearest(t *testing.T) {
	v := NewView(&fakeSource{}, nil)
	v.SetItems([]models.Item{union, eglinton, finch, nowhere})

	box := geo.BoundingBox{
		SouthWest: geo.Coordinate{Lat: 43.64, Lng: -79.41},
		NorthEast: geo.Coordinate{Lat: 43.71, Lng: -79.37},
	}
	got := v.InBounds(box)
	gotIDs := make([]string, len(got))
	for i, it := range got {
		gotIDs[i] = it.ID
	}
	assert.ElementsMatch(t, []string{"union", "eglinton"}, gotIDs)

	nearest := v.Nearest(uptown, 1)
	require.Len(t, nearest, 1)
	assert.Equal(t, "finch", nearest[0].ID)
}

func TestRefresh_Errors(t *testing.T) {
	boom := errors.New("backend down")
	v := NewView(&fakeSource{err: boom}, nil)

	assert.ErrorIs(t, v.Refresh(context.Background(), downtown, 5), boom)
	assert.Error(t, v.Refresh(context.Background(), geo.Coordinate{Lat: 120}, 5))
	assert.Empty(t, v.Ranked())
}
