// Package product reads L1A burst files and writes and reads the L1B and
// L1B-S NetCDF products.
package product

import (
	"fmt"
	"math"
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
)

// Fill values for packed integer variables.
const (
	fillInt32 = math.MinInt32
	fillInt16 = math.MinInt16
	fillInt8  = math.MinInt8
)

// packing is a CF scale_factor/add_offset pair.
type packing struct {
	Scale  float64
	Offset float64
}

func (p packing) int32(v float64) int32 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fillInt32
	}
	q := math.Round((v - p.Offset) / p.Scale)
	if q <= math.MinInt32 || q > math.MaxInt32 {
		return fillInt32
	}
	return int32(q)
}

func (p packing) unpack(v float64) float64 {
	return v*p.Scale + p.Offset
}

// attrs builds an ordered attribute map, keeping the key order given.
func attrs(kv ...any) api.AttributeMap {
	if len(kv)%2 != 0 {
		panic("attrs: odd number of arguments")
	}
	keys := make([]string, 0, len(kv)/2)
	vals := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		k := kv[i].(string)
		keys = append(keys, k)
		vals[k] = kv[i+1]
	}
	m, err := util.NewOrderedMap(keys, vals)
	if err != nil {
		panic(fmt.Sprintf("attrs: %v", err))
	}
	return m
}

// flatten converts any numeric scalar or (nested) slice read from a NetCDF
// variable into row-major float64 data plus its shape.
func flatten(v any) ([]float64, []int, error) {
	rv := reflect.ValueOf(v)
	var shape []int
	for t := rv.Type(); t.Kind() == reflect.Slice; t = t.Elem() {
		shape = append(shape, 0)
	}
	var out []float64
	var walk func(reflect.Value, int) error
	walk = func(x reflect.Value, depth int) error {
		if x.Kind() == reflect.Slice {
			if shape[depth] == 0 {
				shape[depth] = x.Len()
			} else if x.Len() != shape[depth] {
				return fmt.Errorf("ragged array at depth %d", depth)
			}
			for i := 0; i < x.Len(); i++ {
				if err := walk(x.Index(i), depth+1); err != nil {
					return err
				}
			}
			return nil
		}
		f, ok := scalarFloat(x)
		if !ok {
			return fmt.Errorf("unsupported element type %s", x.Type())
		}
		out = append(out, f)
		return nil
	}
	if err := walk(rv, 0); err != nil {
		return nil, nil, err
	}
	return out, shape, nil
}

func scalarFloat(x reflect.Value) (float64, bool) {
	switch x.Kind() {
	case reflect.Float32, reflect.Float64:
		return x.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(x.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(x.Uint()), true
	default:
		return 0, false
	}
}

// attrFloat returns a numeric attribute, accepting scalars and one-element
// slices.
func attrFloat(m api.AttributeMap, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	v, ok := m.Get(key)
	if !ok {
		return 0, false
	}
	data, _, err := flatten(v)
	if err != nil || len(data) == 0 {
		return 0, false
	}
	return data[0], true
}

// attrString returns a string attribute.
func attrString(m api.AttributeMap, key string) string {
	if m == nil {
		return ""
	}
	v, ok := m.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// namedVar pairs a variable with the name it is written under.
type namedVar struct {
	name string
	v    api.Variable
}

// numericVar is a variable read back as float64 with CF packing undone.
type numericVar struct {
	Data  []float64
	Shape []int
}

// row returns the i-th slab along the first dimension.
func (v numericVar) row(i int) []float64 {
	if len(v.Shape) == 0 {
		return v.Data
	}
	stride := 1
	for _, d := range v.Shape[1:] {
		stride *= d
	}
	return v.Data[i*stride : (i+1)*stride]
}

// readNumeric loads a variable from g, unpacks scale_factor/add_offset and
// maps fill values to NaN.
func readNumeric(g api.Group, name string) (numericVar, error) {
	vr, err := g.GetVariable(name)
	if err != nil {
		return numericVar{}, fmt.Errorf("variable %s: %w", name, err)
	}
	data, shape, err := flatten(vr.Values)
	if err != nil {
		return numericVar{}, fmt.Errorf("variable %s: %w", name, err)
	}
	fill, hasFill := attrFloat(vr.Attributes, "_FillValue")
	scale, hasScale := attrFloat(vr.Attributes, "scale_factor")
	offset, _ := attrFloat(vr.Attributes, "add_offset")
	if !hasScale {
		scale = 1
	}
	if hasFill || hasScale || offset != 0 {
		p := packing{Scale: scale, Offset: offset}
		for i, v := range data {
			if hasFill && v == fill {
				data[i] = math.NaN()
				continue
			}
			data[i] = p.unpack(v)
		}
	}
	return numericVar{Data: data, Shape: shape}, nil
}

func hasVariable(g api.Group, name string) bool {
	for _, v := range g.ListVariables() {
		if v == name {
			return true
		}
	}
	return false
}
