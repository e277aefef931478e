// Unit system for simulation signals: unit strings are resolved to SI
// base-dimension vectors with a linear (factor, offset) mapping to SI.
package units

import (
	"fmt"
	"strings"
)

// siDef is the exponent vector over the SI base dimensions plus the linear
// mapping of the unit to its SI representation: si = value*Factor + Offset.
type siDef struct {
	kg, m, s, A, K, mol, cd, rad int

	Factor float64
	Offset float64
}

func (d siDef) sameDimension(o siDef) bool {
	return d.kg == o.kg && d.m == o.m && d.s == o.s && d.A == o.A &&
		d.K == o.K && d.mol == o.mol && d.cd == o.cd && d.rad == o.rad
}

type Unit struct {
	name string
	def  siDef
	// valid is false for unknown unit strings; conversions involving an
	// invalid unit degrade to identity.
	valid bool
}

func (u Unit) Valid() bool    { return u.valid }
func (u Unit) String() string { return u.name }

// The built-in table covers the SI base units and the derived units common in
// automotive co-simulation models. Keys are canonical spellings; lookup is
// exact first, then case-insensitive.
var unitTable = map[string]siDef{
	"-":     {Factor: 1},
	"1":     {Factor: 1},
	"%":     {Factor: 0.01},
	"kg":    {kg: 1, Factor: 1},
	"g":     {kg: 1, Factor: 1e-3},
	"t":     {kg: 1, Factor: 1e3},
	"m":     {m: 1, Factor: 1},
	"km":    {m: 1, Factor: 1e3},
	"cm":    {m: 1, Factor: 1e-2},
	"mm":    {m: 1, Factor: 1e-3},
	"l":     {m: 3, Factor: 1e-3},
	"m^2":   {m: 2, Factor: 1},
	"m^3":   {m: 3, Factor: 1},
	"s":     {s: 1, Factor: 1},
	"ms":    {s: 1, Factor: 1e-3},
	"min":   {s: 1, Factor: 60},
	"h":     {s: 1, Factor: 3600},
	"Hz":    {s: -1, Factor: 1},
	"A":     {A: 1, Factor: 1},
	"K":     {K: 1, Factor: 1},
	"degC":  {K: 1, Factor: 1, Offset: 273.15},
	"mol":   {mol: 1, Factor: 1},
	"cd":    {cd: 1, Factor: 1},
	"rad":   {rad: 1, Factor: 1},
	"deg":   {rad: 1, Factor: 0.017453292519943295},
	"rev":   {rad: 1, Factor: 6.283185307179586},
	"m/s":   {m: 1, s: -1, Factor: 1},
	"km/h":  {m: 1, s: -1, Factor: 1.0 / 3.6},
	"m/s^2": {m: 1, s: -2, Factor: 1},
	"rad/s": {rad: 1, s: -1, Factor: 1},
	"deg/s": {rad: 1, s: -1, Factor: 0.017453292519943295},
	"rpm":   {rad: 1, s: -1, Factor: 0.10471975511965977},
	"1/min": {s: -1, Factor: 1.0 / 60.0},
	"N":     {kg: 1, m: 1, s: -2, Factor: 1},
	"kN":    {kg: 1, m: 1, s: -2, Factor: 1e3},
	"Nm":    {kg: 1, m: 2, s: -2, Factor: 1},
	"J":     {kg: 1, m: 2, s: -2, Factor: 1},
	"kJ":    {kg: 1, m: 2, s: -2, Factor: 1e3},
	"Wh":    {kg: 1, m: 2, s: -2, Factor: 3600},
	"kWh":   {kg: 1, m: 2, s: -2, Factor: 3.6e6},
	"W":     {kg: 1, m: 2, s: -3, Factor: 1},
	"kW":    {kg: 1, m: 2, s: -3, Factor: 1e3},
	"Pa":    {kg: 1, m: -1, s: -2, Factor: 1},
	"kPa":   {kg: 1, m: -1, s: -2, Factor: 1e3},
	"bar":   {kg: 1, m: -1, s: -2, Factor: 1e5},
	"mbar":  {kg: 1, m: -1, s: -2, Factor: 1e2},
	"V":     {kg: 1, m: 2, s: -3, A: -1, Factor: 1},
	"Ohm":   {kg: 1, m: 2, s: -3, A: -2, Factor: 1},
	"C":     {s: 1, A: 1, Factor: 1},
	"Ah":    {s: 1, A: 1, Factor: 3600},
	"kg/h":  {kg: 1, s: -1, Factor: 1.0 / 3600.0},
	"g/s":   {kg: 1, s: -1, Factor: 1e-3},
	"l/min": {m: 3, s: -1, Factor: 1e-3 / 60.0},
}

var lowerTable = func() map[string]string {
	t := make(map[string]string, len(unitTable))
	for k := range unitTable {
		t[strings.ToLower(k)] = k
	}
	return t
}()

// NewUnit resolves a unit string. An empty string is the dimensionless unit.
// Unknown strings yield an invalid unit; callers decide whether that is a
// warning (identity conversion) or an error.
func NewUnit(name string) Unit {
	if name == "" {
		return Unit{name: "-", def: unitTable["-"], valid: true}
	}
	if def, ok := unitTable[name]; ok {
		return Unit{name: name, def: def, valid: true}
	}
	if canonical, ok := lowerTable[strings.ToLower(name)]; ok {
		return Unit{name: canonical, def: unitTable[canonical], valid: true}
	}
	return Unit{name: name}
}

// Conversion returns (factor, offset) such that a value in the from-unit maps
// to to-unit as value*factor + offset. Both units must be known and share the
// same dimension vector.
func Conversion(from, to Unit) (factor, offset float64, err error) {
	if !from.valid || !to.valid {
		return 1, 0, fmt.Errorf("unknown unit '%s'", pickInvalid(from, to))
	}
	if !from.def.sameDimension(to.def) {
		return 1, 0, fmt.Errorf("units '%s' and '%s' have different dimensions", from.name, to.name)
	}
	// from -> SI -> to
	factor = from.def.Factor / to.def.Factor
	offset = (from.def.Offset - to.def.Offset) / to.def.Factor
	return factor, offset, nil
}

// ConversionStrings is Conversion on raw unit strings.
func ConversionStrings(from, to string) (factor, offset float64, err error) {
	return Conversion(NewUnit(from), NewUnit(to))
}

func pickInvalid(a, b Unit) string {
	if !a.valid {
		return a.name
	}
	return b.name
}
