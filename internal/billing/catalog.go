package billing

import "strings"

// FallbackPrice is charged for a detected class missing from the catalog.
const FallbackPrice = 0.99

// ProductInfo is the name and unit price for a detected class.
type ProductInfo struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Catalog maps detected class names to products. Keys are case-insensitive.
type Catalog struct {
	entries map[string]ProductInfo
}

// NewCatalog builds a catalog from entries keyed by class name.
func NewCatalog(entries map[string]ProductInfo) *Catalog {
	c := &Catalog{entries: make(map[string]ProductInfo, len(entries))}
	for class, info := range entries {
		c.entries[strings.ToLower(class)] = info
	}
	return c
}

// Lookup returns the product for class. An unknown class is sold under its
// own name at FallbackPrice; found reports which case applied.
func (c *Catalog) Lookup(class string) (info ProductInfo, found bool) {
	if c != nil {
		if info, ok := c.entries[strings.ToLower(class)]; ok {
			return info, true
		}
	}
	return ProductInfo{Name: class, Price: FallbackPrice}, false
}

// Len is the number of catalog entries.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}
