package carriers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/printz/fulfillment-backend/pkg/enums"
)

func TestEmbeddedCatalogStatusMaps(t *testing.T) {
	catalog, err := LoadCatalog()
	require.NoError(t, err)
	require.Equal(t, []string{"ghn", "ghtk", "viettel-post", "jt", "ninjavan"}, catalog.Codes())

	cases := []struct {
		carrier string
		raw     string
		want    enums.ShipmentStatus
	}{
		{"ghn", "ready_to_pick", enums.ShipmentCreated},
		{"ghn", "picked", enums.ShipmentPickedUp},
		{"ghn", "transporting", enums.ShipmentInTransit},
		{"ghn", "delivering", enums.ShipmentOutForDelivery},
		{"ghn", "return", enums.ShipmentReturned},
		{"ghn", "exception", enums.ShipmentFailed},
		{"ghn", "lost_in_space", enums.ShipmentUnknown},
		{"viettel-post", "500", enums.ShipmentDelivered},
		{"viettel-post", "600", enums.ShipmentCancelled},
		{"ghtk", "5", enums.ShipmentOutForDelivery},
		{"ghtk", "4", enums.ShipmentUnknown},
		{"ninjavan", "On Vehicle for Delivery", enums.ShipmentOutForDelivery},
		{"pigeon", "1", enums.ShipmentUnknown},
	}
	for _, tc := range cases {
		if got := catalog.MapStatus(tc.carrier, tc.raw); got != tc.want {
			t.Fatalf("%s %q: got %s want %s", tc.carrier, tc.raw, got, tc.want)
		}
	}

	require.Equal(t, "https://donhang.ghn.vn/?order_code=GHN123", catalog.TrackingURL("ghn", "GHN123"))
	require.Empty(t, catalog.TrackingURL("pigeon", "X"))
}

func TestParseCatalogRejectsUnknownStatus(t *testing.T) {
	_, err := ParseCatalog([]byte("carriers:\n  - code: x\n    statuses:\n      a: teleported\n"))
	require.Error(t, err)

	_, err = ParseCatalog([]byte("carriers:\n  - code: x\n  - code: x\n"))
	require.Error(t, err)
}
