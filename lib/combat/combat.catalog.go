package combat

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	Scout       = "scout"
	Fighter     = "fighter"
	Corvette    = "corvette"
	Destroyer   = "destroyer"
	Cruiser     = "cruiser"
	Battleship  = "battleship"
	Dreadnought = "dreadnought"
)

// ShipStats are the per-hull figures of a ship type.
type ShipStats struct {
	Cost   int `json:"cost" yaml:"cost"`
	Attack int `json:"attack" yaml:"attack"`
	Health int `json:"health" yaml:"health"`
}

var defaultStats = map[string]ShipStats{
	Scout:       {Cost: 10, Attack: 2, Health: 10},
	Fighter:     {Cost: 25, Attack: 5, Health: 20},
	Corvette:    {Cost: 60, Attack: 12, Health: 45},
	Destroyer:   {Cost: 150, Attack: 30, Health: 110},
	Cruiser:     {Cost: 400, Attack: 80, Health: 280},
	Battleship:  {Cost: 1000, Attack: 200, Health: 700},
	Dreadnought: {Cost: 2500, Attack: 500, Health: 1750},
}

// Catalog is a read-only table of ship stats. It is passed by value to the
// components that need it and no method ever mutates it, so a catalog can be
// shared by any number of concurrent battles.
type Catalog struct {
	stats map[string]ShipStats
	order []string
}

// DefaultCatalog returns the catalog the game ships with.
func DefaultCatalog() Catalog {
	catalog, err := NewCatalog(defaultStats)
	if err != nil {
		panic(err)
	}
	return catalog
}

// NewCatalog builds a catalog from a copy of stats.
func NewCatalog(stats map[string]ShipStats) (Catalog, error) {
	if len(stats) == 0 {
		return Catalog{}, fmt.Errorf("%w: no ship types", ErrInvalidCatalog)
	}

	copied := make(map[string]ShipStats, len(stats))
	order := make([]string, 0, len(stats))
	for name, ship_stats := range stats {
		ship_type := strings.ToLower(strings.TrimSpace(name))
		if ship_type == "" {
			return Catalog{}, fmt.Errorf("%w: empty ship type name", ErrInvalidCatalog)
		}
		if ship_stats.Cost < 0 || ship_stats.Attack <= 0 || ship_stats.Health <= 0 {
			return Catalog{}, fmt.Errorf("%w: %s needs positive attack and health", ErrInvalidCatalog, ship_type)
		}
		if _, exists := copied[ship_type]; exists {
			return Catalog{}, fmt.Errorf("%w: duplicate ship type %s", ErrInvalidCatalog, ship_type)
		}
		copied[ship_type] = ship_stats
		order = append(order, ship_type)
	}

	sort.Slice(order, func(i, j int) bool {
		a, b := copied[order[i]], copied[order[j]]
		if a.Cost != b.Cost {
			return a.Cost < b.Cost
		}
		return order[i] < order[j]
	})

	return Catalog{stats: copied, order: order}, nil
}

type catalogFile struct {
	Ships map[string]ShipStats `yaml:"ships"`
}

// LoadCatalog reads a YAML catalog of the form:
//
//	ships:
//	  scout: {cost: 10, attack: 2, health: 10}
func LoadCatalog(r io.Reader) (Catalog, error) {
	var file catalogFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return Catalog{}, fmt.Errorf("failed to decode catalog: %w", err)
	}
	return NewCatalog(file.Ships)
}

// StatsFor returns the stats of shipType.
func (c Catalog) StatsFor(shipType string) (ShipStats, error) {
	ship_stats, ok := c.stats[shipType]
	if !ok {
		return ShipStats{}, fmt.Errorf("%w: %q", ErrUnknownShipType, shipType)
	}
	return ship_stats, nil
}

func (c Catalog) Has(shipType string) bool {
	_, ok := c.stats[shipType]
	return ok
}

// Types lists the ship types by ascending cost.
func (c Catalog) Types() []string {
	return append([]string(nil), c.order...)
}

func (c Catalog) Len() int {
	return len(c.order)
}
