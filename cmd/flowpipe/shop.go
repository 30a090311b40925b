package main

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed shop.yaml
var defaultShop []byte

// Shop is the data the shop examples run against.
type Shop struct {
	Prices    PriceBook `yaml:"prices"`
	Checkout  []Order   `yaml:"checkout"`
	Express   []Order   `yaml:"express"`
	Surcharge int       `yaml:"surcharge"`
}

// ParseShop parses a shop definition from YAML.
func ParseShop(data []byte) (*Shop, error) {
	var shop Shop
	if err := yaml.Unmarshal(data, &shop); err != nil {
		return nil, err
	}
	for item, price := range shop.Prices {
		if price < 0 {
			return nil, fmt.Errorf("price of %s is negative: %d", item, price)
		}
	}
	return &shop, nil
}

// LoadShop reads a shop definition from path, or the built-in one when path
// is empty.
func LoadShop(path string) (*Shop, error) {
	if path == "" {
		return ParseShop(defaultShop)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	shop, err := ParseShop(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return shop, nil
}
