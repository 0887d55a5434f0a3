package model

import "github.com/shopspring/decimal"

// ProductKind distinguishes stocked goods from services.
type ProductKind string

const (
	KindService    ProductKind = "service"
	KindGoods      ProductKind = "goods"
	KindConsumable ProductKind = "consumable"
)

// Product is a sold or purchased item.
type Product struct {
	ID            int
	DefaultCode   string // internal reference; must be unique for LU
	Name          string
	Category      string
	UoMID         int
	CommodityCode string // intrastat commodity (CN8) code
	OriginCountry string // ISO 3166-1 alpha-2
	Kind          ProductKind
}

// UoM is a unit of measure. Non-reference units carry a factor
// converting one unit into the category's reference unit.
type UoM struct {
	ID          int
	Name        string
	Category    string
	Factor      decimal.Decimal // quantity in reference units per unit
	IsReference bool
}
