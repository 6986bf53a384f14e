package carriers

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/printz/fulfillment-backend/pkg/enums"
)

//go:embed carriers.yaml
var catalogYAML []byte

type CatalogEntry struct {
	Code        string            `yaml:"code" json:"code"`
	Name        string            `yaml:"name" json:"name"`
	TrackingURL string            `yaml:"trackingUrl" json:"trackingUrlTemplate"`
	Statuses    map[string]string `yaml:"statuses" json:"-"`
}

// Catalog is the static carrier metadata keyed by carrier code.
type Catalog struct {
	entries map[string]CatalogEntry
	order   []string
}

// LoadCatalog parses the embedded carrier catalog.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

func ParseCatalog(raw []byte) (*Catalog, error) {
	var doc struct {
		Carriers []CatalogEntry `yaml:"carriers"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse carrier catalog: %w", err)
	}
	c := &Catalog{entries: make(map[string]CatalogEntry, len(doc.Carriers))}
	for _, entry := range doc.Carriers {
		if entry.Code == "" {
			return nil, fmt.Errorf("carrier catalog entry without code")
		}
		if _, dup := c.entries[entry.Code]; dup {
			return nil, fmt.Errorf("duplicate carrier %q in catalog", entry.Code)
		}
		statuses := make(map[string]string, len(entry.Statuses))
		for raw, local := range entry.Statuses {
			if !enums.ShipmentStatus(local).IsValid() {
				return nil, fmt.Errorf("carrier %s maps %q to unknown status %q", entry.Code, raw, local)
			}
			statuses[normalizeStatus(raw)] = local
		}
		entry.Statuses = statuses
		c.entries[entry.Code] = entry
		c.order = append(c.order, entry.Code)
	}
	return c, nil
}

func (c *Catalog) Entry(code string) (CatalogEntry, bool) {
	entry, ok := c.entries[code]
	return entry, ok
}

func (c *Catalog) Codes() []string {
	return append([]string(nil), c.order...)
}

// MapStatus translates a carrier status into a shipment status. Anything the
// catalog does not know becomes ShipmentUnknown.
func (c *Catalog) MapStatus(code, raw string) enums.ShipmentStatus {
	entry, ok := c.entries[code]
	if !ok {
		return enums.ShipmentUnknown
	}
	local, ok := entry.Statuses[normalizeStatus(raw)]
	if !ok {
		return enums.ShipmentUnknown
	}
	return enums.ParseShipmentStatus(local)
}

func (c *Catalog) TrackingURL(code, tracking string) string {
	entry, ok := c.entries[code]
	if !ok || entry.TrackingURL == "" || tracking == "" {
		return ""
	}
	return strings.ReplaceAll(entry.TrackingURL, "{tracking}", tracking)
}

func normalizeStatus(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
