package billing

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultMinConfidence is the lowest detection score added to a cart.
	DefaultMinConfidence = 0.6
	// DefaultCooldown is the pause after an add during which further scans
	// are ignored, so one item held in front of the camera counts once.
	DefaultCooldown = 3 * time.Second
)

var ErrProductNotFound = errors.New("product not in cart")

// Scan is one detected object offered to the cart.
type Scan struct {
	Class      string
	Confidence float32
}

// CartOption configures a Cart.
type CartOption func(*Cart)

// WithMinConfidence sets the score a scan needs to be added.
func WithMinConfidence(v float32) CartOption {
	return func(c *Cart) { c.minConfidence = v }
}

// WithCooldown sets the quiet period after an add. Zero disables it.
func WithCooldown(d time.Duration) CartOption {
	return func(c *Cart) { c.cooldown = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CartOption {
	return func(c *Cart) { c.now = now }
}

// Cart accumulates products from scans. Safe for concurrent use.
type Cart struct {
	mu            sync.Mutex
	catalog       *Catalog
	products      []Product
	lastAdd       time.Time
	minConfidence float32
	cooldown      time.Duration
	now           func() time.Time
}

// NewCart creates an empty cart priced from catalog.
func NewCart(catalog *Catalog, opts ...CartOption) *Cart {
	c := &Cart{
		catalog:       catalog,
		minConfidence: DefaultMinConfidence,
		cooldown:      DefaultCooldown,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddScans adds every confident scan and returns the lines that changed.
// A scan whose product is already in the cart bumps its quantity. While the
// cooldown from a previous add is running, nothing is added.
func (c *Cart) AddScans(scans []Scan) []Product {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.lastAdd.IsZero() && now.Sub(c.lastAdd) < c.cooldown {
		return nil
	}

	var changed []Product
	for _, s := range scans {
		if s.Confidence < c.minConfidence {
			continue
		}
		changed = append(changed, c.addLocked(s.Class))
	}
	if len(changed) > 0 {
		c.lastAdd = now
	}

	return changed
}

// Add puts one unit of class in the cart, ignoring confidence and cooldown.
func (c *Cart) Add(class string) Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addLocked(class)
}

func (c *Cart) addLocked(class string) Product {
	info, _ := c.catalog.Lookup(class)
	for i := range c.products {
		if strings.EqualFold(c.products[i].Name, info.Name) {
			c.products[i].Quantity++
			return c.products[i]
		}
	}

	p := Product{
		ID:       uuid.NewString(),
		Name:     info.Name,
		Price:    info.Price,
		Quantity: 1,
	}
	c.products = append(c.products, p)
	return p
}

// UpdateQuantity sets a line's quantity. Zero or less removes it.
func (c *Cart) UpdateQuantity(id string, quantity int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(id)
	if i < 0 {
		return ErrProductNotFound
	}
	if quantity <= 0 {
		c.products = append(c.products[:i], c.products[i+1:]...)
		return nil
	}
	c.products[i].Quantity = quantity
	return nil
}

// Remove deletes a line.
func (c *Cart) Remove(id string) error {
	return c.UpdateQuantity(id, 0)
}

// Products returns a copy of the cart lines.
func (c *Cart) Products() []Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Product(nil), c.products...)
}

// Clear empties the cart and resets the cooldown.
func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = nil
	c.lastAdd = time.Time{}
}

func (c *Cart) indexLocked(id string) int {
	for i, p := range c.products {
		if p.ID == id {
			return i
		}
	}
	return -1
}
