package contract

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/wippyai/mfe-bridge/errors"
	"github.com/wippyai/mfe-bridge/reactive"
)

// PropTag names the struct tag that overrides a field's property name.
const PropTag = "prop"

// ContentProperty is the property written when a component has no
// ContentReceiver capability.
const ContentProperty = "content"

var eventSourceType = reflect.TypeOf((*reactive.EventSource)(nil)).Elem()

// Component drives a value of unknown shape through the contract.
// Every call recovers panics raised by the component and reports them as
// errors.
type Component struct {
	value  any
	rv     reflect.Value
	fields map[string]int
	extras map[string]any
	mu     sync.Mutex
}

// Adapt wraps v. v is typically a pointer to a struct, a map[string]any,
// or a type implementing some of the capability interfaces.
func Adapt(v any) *Component {
	c := &Component{
		value:  v,
		rv:     reflect.ValueOf(v),
		extras: make(map[string]any),
	}
	c.fields = indexFields(c.structValue())
	return c
}

// Value returns the wrapped component.
func (c *Component) Value() any {
	return c.value
}

// structValue returns the addressable struct behind the component, or an
// invalid Value when there is none.
func (c *Component) structValue() reflect.Value {
	v := c.rv
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	if !v.IsValid() || v.Kind() != reflect.Struct || !v.CanAddr() {
		return reflect.Value{}
	}
	return v
}

// readableStruct is like structValue but also accepts a struct held by
// value. Its fields can be read, not written.
func (c *Component) readableStruct() reflect.Value {
	v := c.rv
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	if !v.IsValid() || v.Kind() != reflect.Struct {
		return reflect.Value{}
	}
	return v
}

// indexFields maps property names (prop tag, field name, and the
// lower-camel field name) to exported field indexes.
func indexFields(sv reflect.Value) map[string]int {
	fields := make(map[string]int)
	if !sv.IsValid() {
		return fields
	}
	st := sv.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if !f.IsExported() {
			continue
		}
		if tag := f.Tag.Get(PropTag); tag != "" && tag != "-" {
			fields[tag] = i
		}
		fields[f.Name] = i
		fields[lowerFirst(f.Name)] = i
	}
	return fields
}

// field finds the field for a property name: exact match first, then a
// case-insensitive match.
func (c *Component) field(name string) (reflect.Value, bool) {
	sv := c.structValue()
	if !sv.IsValid() {
		return reflect.Value{}, false
	}
	if idx, ok := c.fields[name]; ok {
		return sv.Field(idx), true
	}
	for key, idx := range c.fields {
		if strings.EqualFold(key, name) {
			return sv.Field(idx), true
		}
	}
	return reflect.Value{}, false
}

// Set writes value to the named property. A component without a matching
// property keeps the value in its overflow bag.
func (c *Component) Set(name string, value any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Panic(errors.PhaseProject, r)
		}
	}()

	// PropertySetters synchronize themselves and may emit re-entrantly.
	if ps, ok := c.value.(PropertySetter); ok {
		return ps.SetProperty(name, value)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.value.(map[string]any); ok {
		m[name] = value
		return nil
	}

	if f, ok := c.field(name); ok && f.CanSet() {
		return assign(f, value)
	}

	c.extras[name] = value
	return nil
}

// Get reads a property through PropertyGetter, a struct field, a map key,
// or an overflow entry.
func (c *Component) Get(name string) (any, bool) {
	if pg, ok := c.value.(PropertyGetter); ok {
		return pg.Property(name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.value.(map[string]any); ok {
		v, ok := m[name]
		return v, ok
	}
	if f, ok := c.field(name); ok {
		return f.Interface(), true
	}
	v, ok := c.extras[name]
	return v, ok
}

// Extras returns a copy of properties that had no matching field.
func (c *Component) Extras() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]any, len(c.extras))
	for k, v := range c.extras {
		out[k] = v
	}
	return out
}

// Refresh asks the component to update its visible state.
func (c *Component) Refresh() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Panic(errors.PhaseGuest, r)
		}
	}()
	if r, ok := c.value.(Refresher); ok {
		r.Refresh()
	}
	return nil
}

// SetContent forwards a body fragment.
func (c *Component) SetContent(content any) error {
	if cr, ok := c.value.(ContentReceiver); ok {
		var err error
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = errors.Panic(errors.PhaseProject, r)
				}
			}()
			cr.SetContent(content)
		}()
		return err
	}
	return c.Set(ContentProperty, content)
}

// Init runs the Initializer capability and returns its cleanup.
func (c *Component) Init() (cleanup func(), err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Panic(errors.PhaseMount, r)
		}
	}()
	if in, ok := c.value.(Initializer); ok {
		return in.Init(), nil
	}
	return nil, nil
}

// Destroy releases the component.
func (c *Component) Destroy() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Panic(errors.PhaseLifecycle, r)
		}
	}()
	if d, ok := c.value.(Destroyer); ok {
		d.Destroy()
	}
	return nil
}

// Outputs enumerates emitter-shaped properties at call time. Emitters added
// to the component later are not seen by earlier callers.
func (c *Component) Outputs() (outs map[string]reactive.EventSource, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Panic(errors.PhaseBind, r)
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()

	if declared, ok := c.value.(OutputSource); ok {
		outs = make(map[string]reactive.EventSource)
		for name, src := range declared.Outputs() {
			if src != nil {
				outs[name] = src
			}
		}
		return outs, nil
	}

	outs = make(map[string]reactive.EventSource)

	if m, ok := c.value.(map[string]any); ok {
		for name, v := range m {
			if src, ok := v.(reactive.EventSource); ok && src != nil {
				outs[name] = src
			}
		}
		return outs, nil
	}

	sv := c.readableStruct()
	if !sv.IsValid() {
		return outs, nil
	}
	st := sv.Type()
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if !f.IsExported() {
			continue
		}
		if src, ok := eventSource(sv.Field(i)); ok {
			outs[propertyName(f)] = src
		}
	}
	return outs, nil
}

// OutputNames returns the sorted emitter names.
func OutputNames(outs map[string]reactive.EventSource) []string {
	names := make([]string, 0, len(outs))
	for name := range outs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// eventSource returns the emitter held by fv. Emitter fields stored by
// value are reached through their address; a copied struct has none, so
// its value emitters are not discoverable.
func eventSource(fv reflect.Value) (reactive.EventSource, bool) {
	switch fv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice:
		if fv.IsNil() {
			return nil, false
		}
	}
	if fv.Type().Implements(eventSourceType) {
		return fv.Interface().(reactive.EventSource), true
	}
	if fv.Kind() == reflect.Interface && fv.Elem().Type().Implements(eventSourceType) {
		return fv.Elem().Interface().(reactive.EventSource), true
	}
	if fv.CanAddr() && fv.Addr().Type().Implements(eventSourceType) {
		return fv.Addr().Interface().(reactive.EventSource), true
	}
	return nil, false
}

func propertyName(f reflect.StructField) string {
	if tag := f.Tag.Get(PropTag); tag != "" && tag != "-" {
		return tag
	}
	return lowerFirst(f.Name)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}

// assign stores v into dst, converting between numeric kinds and between
// string kinds. Other mismatches are reported as errors.
func assign(dst reflect.Value, v any) error {
	if v == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}

	src := reflect.ValueOf(v)
	dt := dst.Type()

	if src.Type().AssignableTo(dt) {
		dst.Set(src)
		return nil
	}
	if isNumeric(src.Kind()) && isNumeric(dt.Kind()) {
		if err := checkNumeric(src, dt); err != nil {
			return err
		}
		dst.Set(src.Convert(dt))
		return nil
	}
	if src.Kind() == reflect.String && dt.Kind() == reflect.String {
		dst.Set(src.Convert(dt))
		return nil
	}
	if dt.Kind() == reflect.Pointer && src.Type().AssignableTo(dt.Elem()) {
		p := reflect.New(dt.Elem())
		p.Elem().Set(src)
		dst.Set(p)
		return nil
	}
	return fmt.Errorf("cannot assign %s to %s", src.Type(), dt)
}

// checkNumeric rejects conversions of src to dt that would wrap, truncate
// or overflow.
func checkNumeric(src reflect.Value, dt reflect.Type) error {
	zero := reflect.Zero(dt)
	switch {
	case src.CanInt():
		i := src.Int()
		switch {
		case zero.CanUint():
			if i < 0 || zero.OverflowUint(uint64(i)) {
				return fmt.Errorf("value %d out of range for %s", i, dt)
			}
		case zero.CanInt():
			if zero.OverflowInt(i) {
				return fmt.Errorf("value %d out of range for %s", i, dt)
			}
		}
	case src.CanUint():
		u := src.Uint()
		switch {
		case zero.CanUint():
			if zero.OverflowUint(u) {
				return fmt.Errorf("value %d out of range for %s", u, dt)
			}
		case zero.CanInt():
			if u > math.MaxInt64 || zero.OverflowInt(int64(u)) {
				return fmt.Errorf("value %d out of range for %s", u, dt)
			}
		}
	case src.CanFloat():
		f := src.Float()
		switch {
		case zero.CanFloat():
			if zero.OverflowFloat(f) {
				return fmt.Errorf("value %v out of range for %s", f, dt)
			}
		case math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f):
			return fmt.Errorf("value %v is not an integer", f)
		case zero.CanUint():
			if f < 0 || f >= math.Exp2(float64(dt.Bits())) {
				return fmt.Errorf("value %v out of range for %s", f, dt)
			}
		case zero.CanInt():
			limit := math.Exp2(float64(dt.Bits() - 1))
			if f < -limit || f >= limit {
				return fmt.Errorf("value %v out of range for %s", f, dt)
			}
		}
	}
	return nil
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
