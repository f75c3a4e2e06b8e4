package room

import (
	"fmt"
	"strings"

	"github.com/chazu/badplaner/pkg/scene"
	"github.com/samber/lo"
)

// CatalogItem is static reference data for one furnishing item.
type CatalogItem struct {
	Name     string      `json:"name"`
	Category string      `json:"category"`
	Size     string      `json:"size"`       // nominal size label, millimeters
	Nominal  Vec3        `json:"dimensions"` // meters
	Shape    scene.Shape `json:"-"`
}

// Category groups catalog items under a heading.
type Category struct {
	Name  string        `json:"name"`
	Items []CatalogItem `json:"items"`
}

// Catalog is an ordered list of categories.
type Catalog []Category

func item(category, name string, shape scene.Shape, mm ...float64) CatalogItem {
	labels := lo.Map(mm, func(v float64, _ int) string { return fmt.Sprintf("%g", v) })
	it := CatalogItem{
		Name:     name,
		Category: category,
		Size:     strings.Join(labels, " × ") + " mm",
		Shape:    shape,
	}
	switch len(mm) {
	case 2:
		// Flat goods: width × length.
		it.Nominal = Vec3{X: mm[0] / 1000, Y: 0.01, Z: mm[1] / 1000}
	case 3:
		it.Nominal = Vec3{X: mm[0] / 1000, Y: mm[2] / 1000, Z: mm[1] / 1000}
	}
	return it
}

// DefaultCatalog returns the built-in catalog. Sizes are width × depth ×
// height.
func DefaultCatalog() Catalog {
	const (
		basins    = "Waschtische"
		toilets   = "WCs"
		showers   = "Duschen"
		tubs      = "Badewannen"
		furniture = "Möbel"
		decor     = "Deko"
		materials = "Materialien"
	)
	return Catalog{
		{Name: basins, Items: []CatalogItem{
			item(basins, "Waschtisch 80 cm", scene.ShapeBasin, 800, 480, 120),
			item(basins, "Aufsatzwaschbecken", scene.ShapeBowl, 420, 420, 140),
		}},
		{Name: toilets, Items: []CatalogItem{
			item(toilets, "Wand-WC", scene.ShapeToilet, 360, 540, 365),
			item(toilets, "Stand-WC", scene.ShapeToilet, 380, 650, 400),
		}},
		{Name: showers, Items: []CatalogItem{
			item(showers, "Walk-In Dusche", scene.ShapeShower, 1200, 900, 2100),
			item(showers, "Duschkabine", scene.ShapeShower, 900, 900, 2000),
		}},
		{Name: tubs, Items: []CatalogItem{
			item(tubs, "Freistehende Wanne", scene.ShapeTub, 1700, 750, 580),
			item(tubs, "Eckbadewanne", scene.ShapeTub, 1450, 1450, 570),
		}},
		{Name: furniture, Items: []CatalogItem{
			item(furniture, "Unterschrank", scene.ShapeBox, 800, 500, 480),
			item(furniture, "Spiegelschrank", scene.ShapeBox, 800, 140, 700),
		}},
		{Name: decor, Items: []CatalogItem{
			item(decor, "Pflanze", scene.ShapeCylinder, 250, 250, 800),
			item(decor, "Handtuchhalter", scene.ShapeRail, 600, 80, 80),
		}},
		{Name: materials, Items: []CatalogItem{
			item(materials, "Fliesen Beton", scene.ShapeTile, 600, 600),
			item(materials, "Eiche Natur", scene.ShapeTile, 200, 1200),
		}},
	}
}

// Items returns every item in catalog order.
func (c Catalog) Items() []CatalogItem {
	return lo.FlatMap(c, func(cat Category, _ int) []CatalogItem { return cat.Items })
}

// Find looks up an item by exact name.
func (c Catalog) Find(name string) (CatalogItem, error) {
	it, ok := lo.Find(c.Items(), func(it CatalogItem) bool { return it.Name == name })
	if !ok {
		return CatalogItem{}, fmt.Errorf("%w: %q", ErrUnknownItem, name)
	}
	return it, nil
}

// Search keeps the items whose name or category contains query, ignoring
// case. Categories left empty are dropped. An empty query returns c.
func (c Catalog) Search(query string) Catalog {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return c
	}
	out := lo.FilterMap(c, func(cat Category, _ int) (Category, bool) {
		catHit := strings.Contains(strings.ToLower(cat.Name), q)
		items := lo.Filter(cat.Items, func(it CatalogItem, _ int) bool {
			return catHit || strings.Contains(strings.ToLower(it.Name), q)
		})
		return Category{Name: cat.Name, Items: items}, len(items) > 0
	})
	return Catalog(out)
}
